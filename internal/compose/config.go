package compose

import (
	"fmt"
	"strings"

	"github.com/roach88/modkit/internal/ir"
)

// Reserved base fields. Every composition starts from these three empty
// objects and they must stay objects.
const (
	FieldCtx         = "ctx"
	FieldMeta        = "meta"
	FieldCtxOverride = "ctxOverride"
)

var reservedFields = []string{FieldCtx, FieldMeta, FieldCtxOverride}

// baseShape returns the configuration shape every composition starts from.
func baseShape() []ir.ConfigField {
	shape := make([]ir.ConfigField, len(reservedFields))
	for i, name := range reservedFields {
		shape[i] = ir.ConfigField{Path: name, Type: ir.TypeObject}
	}
	return shape
}

// baseRecord returns the base configuration record.
func baseRecord() ir.IRObject {
	rec := make(ir.IRObject, len(reservedFields))
	for _, name := range reservedFields {
		rec[name] = ir.IRObject{}
	}
	return rec
}

func isReserved(path string) bool {
	for _, name := range reservedFields {
		if path == name {
			return true
		}
	}
	return false
}

// validateField checks a contributed field in isolation.
func validateField(f ir.ConfigField) error {
	if _, err := ir.SplitPath(f.Path); err != nil {
		return fmt.Errorf("config field: %w", err)
	}
	if !ir.ValidFieldTypes[f.Type] {
		return fmt.Errorf("config field %q: unknown type %q", f.Path, f.Type)
	}
	if isReserved(f.Path) && f.Type != ir.TypeObject {
		return fmt.Errorf("config field %q is reserved and must stay an object, got %q", f.Path, f.Type)
	}
	if f.Default != nil && !ir.MatchesType(f.Default, f.Type) {
		return fmt.Errorf("config field %q: default is %s, want %s", f.Path, ir.TypeName(f.Default), f.Type)
	}
	return nil
}

// validateNesting rejects shapes where a field nests under a field whose
// type cannot hold it, e.g. "ctx.user" string and "ctx.user.id" int.
func validateNesting(shape []ir.ConfigField) error {
	types := make(map[string]ir.ConfigField, len(shape))
	for _, f := range shape {
		types[f.Path] = f
	}
	for _, f := range shape {
		segs := strings.Split(f.Path, ".")
		for i := 1; i < len(segs); i++ {
			prefix := strings.Join(segs[:i], ".")
			parent, ok := types[prefix]
			if !ok || parent.Type == ir.TypeObject || parent.Type == ir.TypeAny {
				continue
			}
			return &Error{
				Code:    CodeInvalidDescriptor,
				Message: fmt.Sprintf("config field %q nests under %q which is %s", f.Path, prefix, parent.Type),
				Module:  f.Module,
				Fields:  []string{f.Path, prefix},
			}
		}
	}
	return nil
}

// effectiveConfig layers the base record, field defaults and overrides.
// Defaults are applied in contribution order; an object default merges
// into whatever earlier defaults left at its path.
func effectiveConfig(defaults []ir.ConfigField, overrides ir.IRObject) (ir.IRObject, error) {
	cfg := baseRecord()
	for _, f := range defaults {
		value := f.Default
		if obj, ok := value.(ir.IRObject); ok {
			if existing, found := cfg.Lookup(f.Path); found {
				if prev, isObj := existing.(ir.IRObject); isObj {
					value = ir.DeepMerge(prev, obj)
				}
			}
		}
		next, err := cfg.SetPath(f.Path, value)
		if err != nil {
			return nil, &Error{
				Code:    CodeInvalidConfigField,
				Message: fmt.Sprintf("applying default: %v", err),
				Module:  f.Module,
				Fields:  []string{f.Path},
			}
		}
		cfg = next
	}
	return ir.DeepMerge(cfg, overrides), nil
}

// checkConfig verifies cfg against shape: reserved fields are objects,
// every required field is present and every present field has its
// declared type. All missing fields are reported together.
func checkConfig(shape []ir.ConfigField, cfg ir.IRObject) error {
	for _, name := range reservedFields {
		if v, ok := cfg[name]; ok {
			if _, isObj := v.(ir.IRObject); !isObj {
				return &Error{
					Code:    CodeInvalidConfigField,
					Message: fmt.Sprintf("reserved field %q must be an object, got %s", name, ir.TypeName(v)),
					Fields:  []string{name},
				}
			}
		}
	}

	var missing []ir.ConfigField
	for _, f := range shape {
		if !f.Required {
			continue
		}
		if _, ok := cfg.Lookup(f.Path); !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		paths := make([]string, len(missing))
		described := make([]string, len(missing))
		for i, f := range missing {
			paths[i] = f.Path
			described[i] = fmt.Sprintf("%s (%s, required by %s)", f.Path, f.Type, moduleLabel(f.Module))
		}
		return &Error{
			Code:    CodeMissingConfigField,
			Message: "missing required config field(s): " + strings.Join(described, ", "),
			Module:  missing[0].Module,
			Fields:  paths,
		}
	}

	var mistyped []string
	var described []string
	module := ""
	for _, f := range shape {
		v, ok := cfg.Lookup(f.Path)
		if !ok || ir.MatchesType(v, f.Type) {
			continue
		}
		if module == "" {
			module = f.Module
		}
		mistyped = append(mistyped, f.Path)
		described = append(described, fmt.Sprintf("%s is %s, want %s", f.Path, ir.TypeName(v), f.Type))
	}
	if len(mistyped) > 0 {
		return &Error{
			Code:    CodeInvalidConfigField,
			Message: "config field type mismatch: " + strings.Join(described, ", "),
			Module:  module,
			Fields:  mistyped,
		}
	}
	return nil
}

func moduleLabel(module string) string {
	if module == "" {
		return "base"
	}
	return module
}
