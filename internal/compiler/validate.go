package compiler

import (
	"fmt"
	"regexp"

	"github.com/roach88/modkit/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// ModuleSpec errors (E101-E109)
	ErrInvalidModuleName   = "E101" // module name empty or malformed
	ErrModuleEmpty         = "E102" // module contributes nothing
	ErrInvalidPath         = "E103" // malformed dotted path
	ErrInvalidFieldType    = "E104" // invalid type string
	ErrDuplicateName       = "E105" // duplicate capability/arg/config name
	ErrFloatTypeForbidden  = "E106" // float types not allowed
	ErrDefaultTypeMismatch = "E107" // default does not match declared type
	ErrReservedField       = "E108" // reserved base field redeclared as non-object
	ErrInvalidCapability   = "E109" // capability name malformed

	// Module set errors (E110-E119)
	ErrDuplicateModule     = "E110" // two modules share a name
	ErrDuplicateCapability = "E111" // two modules contribute the same capability
)

// ReservedFields are the base configuration fields every composition
// carries. Modules may declare fields under them but never replace them
// with a non-object type.
var ReservedFields = []string{"ctx", "meta", "ctxOverride"}

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates compiled IR against schema rules.
// Returns all errors found (does not fail-fast).
// Supports ModuleSpec and []ModuleSpec.
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.ModuleSpec:
		return validateModuleSpec(spec)
	case ir.ModuleSpec:
		return validateModuleSpec(&spec)
	case []ir.ModuleSpec:
		return validateModuleSet(spec)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

// moduleNamePattern allows identifiers with dashes ("rate-limit").
var moduleNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// capabilityNamePattern matches Go/JS style method names.
var capabilityNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validateModuleSpec validates a single module specification.
func validateModuleSpec(spec *ir.ModuleSpec) []ValidationError {
	var errs []ValidationError

	// E101: module name
	if !moduleNamePattern.MatchString(spec.Name) {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("invalid module name %q", spec.Name),
			Code:    ErrInvalidModuleName,
		})
	}

	// E102: a module must contribute something
	if len(spec.Capabilities) == 0 && len(spec.Config) == 0 {
		errs = append(errs, ValidationError{
			Field:   "capabilities",
			Message: "module contributes no capabilities and no config fields",
			Code:    ErrModuleEmpty,
		})
	}

	capNames := make(map[string]bool)
	for i, c := range spec.Capabilities {
		prefix := fmt.Sprintf("capabilities[%d]", i)

		// E109: capability name
		if !capabilityNamePattern.MatchString(c.Name) {
			errs = append(errs, ValidationError{
				Field:   prefix + ".name",
				Message: fmt.Sprintf("invalid capability name %q", c.Name),
				Code:    ErrInvalidCapability,
			})
		}

		// E105: duplicate capability name within the module
		if capNames[c.Name] {
			errs = append(errs, ValidationError{
				Field:   prefix + ".name",
				Message: fmt.Sprintf("duplicate capability name: %q", c.Name),
				Code:    ErrDuplicateName,
			})
		}
		capNames[c.Name] = true

		argNames := make(map[string]bool)
		for j, arg := range c.Args {
			if argNames[arg.Name] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.args[%d].name", prefix, j),
					Message: fmt.Sprintf("duplicate argument name: %q", arg.Name),
					Code:    ErrDuplicateName,
				})
			}
			argNames[arg.Name] = true
			errs = append(errs, validateFieldType(arg.Type, fmt.Sprintf("%s.args[%d].type", prefix, j), arg.Name)...)
		}

		// E103: writes must be a valid path when present
		if c.Writes != "" {
			if _, err := ir.SplitPath(c.Writes); err != nil {
				errs = append(errs, ValidationError{
					Field:   prefix + ".writes",
					Message: err.Error(),
					Code:    ErrInvalidPath,
				})
			}
		}
	}

	paths := make(map[string]bool)
	for i, f := range spec.Config {
		prefix := fmt.Sprintf("config[%d]", i)

		if _, err := ir.SplitPath(f.Path); err != nil {
			errs = append(errs, ValidationError{
				Field:   prefix + ".path",
				Message: err.Error(),
				Code:    ErrInvalidPath,
			})
		}

		if paths[f.Path] {
			errs = append(errs, ValidationError{
				Field:   prefix + ".path",
				Message: fmt.Sprintf("duplicate config path: %q", f.Path),
				Code:    ErrDuplicateName,
			})
		}
		paths[f.Path] = true

		typeErrs := validateFieldType(f.Type, prefix+".type", f.Path)
		errs = append(errs, typeErrs...)

		// E107: default must match the declared type
		if f.Default != nil && len(typeErrs) == 0 && !ir.MatchesType(f.Default, f.Type) {
			errs = append(errs, ValidationError{
				Field:   prefix + ".default",
				Message: fmt.Sprintf("default for %q is %s, want %s", f.Path, ir.TypeName(f.Default), f.Type),
				Code:    ErrDefaultTypeMismatch,
			})
		}

		// E108: reserved base fields stay objects
		if isReservedField(f.Path) && f.Type != ir.TypeObject {
			errs = append(errs, ValidationError{
				Field:   prefix + ".type",
				Message: fmt.Sprintf("reserved field %q must stay an object, got %q", f.Path, f.Type),
				Code:    ErrReservedField,
			})
		}
	}

	return errs
}

// validateModuleSet validates each module plus the rules that span modules:
// unique module names and a disjoint capability union.
func validateModuleSet(specs []ir.ModuleSpec) []ValidationError {
	var errs []ValidationError

	names := make(map[string]bool)
	owners := make(map[string]string)
	for i := range specs {
		spec := &specs[i]
		for _, e := range validateModuleSpec(spec) {
			e.Field = fmt.Sprintf("modules[%d].%s", i, e.Field)
			errs = append(errs, e)
		}

		if names[spec.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("modules[%d].name", i),
				Message: fmt.Sprintf("duplicate module name: %q", spec.Name),
				Code:    ErrDuplicateModule,
			})
		}
		names[spec.Name] = true

		for _, c := range spec.Capabilities {
			if owner, ok := owners[c.Name]; ok && owner != spec.Name {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("modules[%d].capabilities.%s", i, c.Name),
					Message: fmt.Sprintf("capability %q contributed by both %q and %q", c.Name, owner, spec.Name),
					Code:    ErrDuplicateCapability,
				})
				continue
			}
			owners[c.Name] = spec.Name
		}
	}

	return errs
}

// validateFieldType validates a type string, returning errors for invalid types and floats.
func validateFieldType(fieldType, fieldPath, fieldName string) []ValidationError {
	// E106: float forbidden, reported instead of E104
	if isFloatType(fieldType) {
		return []ValidationError{{
			Field:   fieldPath,
			Message: fmt.Sprintf("float type forbidden for field %q, use int instead", fieldName),
			Code:    ErrFloatTypeForbidden,
		}}
	}

	// E104: check for valid type
	if !ir.ValidFieldTypes[fieldType] {
		return []ValidationError{{
			Field:   fieldPath,
			Message: fmt.Sprintf("invalid type %q for field %q", fieldType, fieldName),
			Code:    ErrInvalidFieldType,
		}}
	}

	return nil
}

// isFloatType checks if a type string represents a float type.
func isFloatType(t string) bool {
	floatTypes := map[string]bool{
		"float":   true,
		"float32": true,
		"float64": true,
		"number":  true,
		"double":  true,
	}
	return floatTypes[t]
}

func isReservedField(path string) bool {
	for _, r := range ReservedFields {
		if path == r {
			return true
		}
	}
	return false
}
