package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/modkit/internal/ir"
)

// CompileModule parses a CUE value into a ModuleSpec.
//
// The CUE value should be the module struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`module: auth: { ... }`)
//	spec, err := CompileModule(v.LookupPath(cue.ParsePath("module.auth")))
func CompileModule(v cue.Value) (*ir.ModuleSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.ModuleSpec{
		Capabilities: []ir.CapabilitySig{},
		Config:       []ir.ConfigField{},
	}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = unquoteLabel(labels[len(labels)-1])
	}

	if purposeVal := v.LookupPath(cue.ParsePath("purpose")); purposeVal.Exists() {
		purpose, err := purposeVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec.Purpose = purpose
	}

	var err error
	spec.Capabilities, err = parseCapabilities(v)
	if err != nil {
		return nil, err
	}

	spec.Config, err = parseConfig(v)
	if err != nil {
		return nil, err
	}

	return spec, nil
}

// CompileModules compiles every field of the top-level "module" struct in
// declaration order. Failures are collected; modules that compile are
// returned alongside them.
func CompileModules(v cue.Value) ([]ir.ModuleSpec, []error) {
	modulesVal := v.LookupPath(cue.ParsePath("module"))
	if !modulesVal.Exists() {
		return []ir.ModuleSpec{}, nil
	}

	iter, err := modulesVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	specs := []ir.ModuleSpec{}
	var errs []error
	for iter.Next() {
		spec, err := CompileModule(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("module.%s: %w", iter.Selector().String(), err))
			continue
		}
		specs = append(specs, *spec)
	}
	return specs, errs
}

// parseCapabilities extracts capability signatures in declaration order.
func parseCapabilities(v cue.Value) ([]ir.CapabilitySig, error) {
	caps := []ir.CapabilitySig{}

	capVal := v.LookupPath(cue.ParsePath("capability"))
	if !capVal.Exists() {
		return caps, nil
	}

	iter, err := capVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		name := unquoteLabel(iter.Selector())
		capValue := iter.Value()

		sig := ir.CapabilitySig{Name: name, Args: []ir.NamedArg{}}

		argsVal := capValue.LookupPath(cue.ParsePath("args"))
		if argsVal.Exists() {
			argsIter, err := argsVal.Fields()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for argsIter.Next() {
				argType, err := extractTypeName(argsIter.Value())
				if err != nil {
					return nil, err
				}
				sig.Args = append(sig.Args, ir.NamedArg{
					Name: unquoteLabel(argsIter.Selector()),
					Type: argType,
				})
			}
		}

		writesVal := capValue.LookupPath(cue.ParsePath("writes"))
		if writesVal.Exists() {
			writes, err := writesVal.String()
			if err != nil {
				return nil, &CompileError{
					Field:   fmt.Sprintf("capability.%s.writes", name),
					Message: "writes must be a dotted configuration path",
					Pos:     writesVal.Pos(),
				}
			}
			sig.Writes = writes
		}

		caps = append(caps, sig)
	}

	return caps, nil
}

// parseConfig extracts configuration fields. Labels are dotted paths, so
// they are usually quoted: config: "ctx.tenant": { type: "string" }.
func parseConfig(v cue.Value) ([]ir.ConfigField, error) {
	fields := []ir.ConfigField{}

	configVal := v.LookupPath(cue.ParsePath("config"))
	if !configVal.Exists() {
		return fields, nil
	}

	iter, err := configVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		path := unquoteLabel(iter.Selector())
		fieldVal := iter.Value()

		typeVal := fieldVal.LookupPath(cue.ParsePath("type"))
		if !typeVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("config.%s.type", path),
				Message: "config field type is required",
				Pos:     fieldVal.Pos(),
			}
		}
		typ, err := typeVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}

		field := ir.ConfigField{Path: path, Type: typ}

		if reqVal := fieldVal.LookupPath(cue.ParsePath("required")); reqVal.Exists() {
			required, err := reqVal.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
			field.Required = required
		}

		if defVal := fieldVal.LookupPath(cue.ParsePath("default")); defVal.Exists() {
			def, err := cueToIR(defVal)
			if err != nil {
				return nil, err
			}
			field.Default = def
		}

		fields = append(fields, field)
	}

	return fields, nil
}

// extractTypeName converts a CUE type to an IR field type name.
// Floats are forbidden.
func extractTypeName(v cue.Value) (string, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		return ir.TypeString, nil
	case cue.IntKind:
		return ir.TypeInt, nil
	case cue.BoolKind:
		return ir.TypeBool, nil
	case cue.ListKind:
		return ir.TypeArray, nil
	case cue.StructKind:
		return ir.TypeObject, nil
	case cue.TopKind:
		return ir.TypeAny, nil
	case cue.FloatKind, cue.NumberKind:
		return "", &CompileError{
			Field:   "type",
			Message: "float types are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// cueToIR converts a concrete CUE value into an IRValue.
func cueToIR(v cue.Value) (ir.IRValue, error) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRInt(i), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.IRArray{}
		for iter.Next() {
			elem, err := cueToIR(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.IRObject{}
		for iter.Next() {
			elem, err := cueToIR(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[unquoteLabel(iter.Selector())] = elem
		}
		return obj, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   "default",
			Message: "float values are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	case cue.NullKind:
		return nil, &CompileError{
			Field:   "default",
			Message: "null defaults are not allowed - omit the default instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   "default",
			Message: "default must be a concrete value",
			Pos:     v.Pos(),
		}
	}
}

// unquoteLabel returns the field name of a selector without CUE quoting.
func unquoteLabel(sel cue.Selector) string {
	if sel.LabelType() == cue.StringLabel {
		return sel.Unquoted()
	}
	return sel.String()
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
