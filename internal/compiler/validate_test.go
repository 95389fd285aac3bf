package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/modkit/internal/ir"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

// =============================================================================
// ModuleSpec Validation Tests
// =============================================================================

func TestValidateModuleSpecValid(t *testing.T) {
	spec := &ir.ModuleSpec{
		Name: "auth",
		Capabilities: []ir.CapabilitySig{
			{Name: "withUser", Args: []ir.NamedArg{{Name: "id", Type: "int"}}, Writes: "ctx.user"},
		},
		Config: []ir.ConfigField{
			{Path: "ctx.tenant", Type: "string", Required: true},
			{Path: "ctx.region", Type: "string", Default: ir.IRString("eu")},
		},
	}

	errs := Validate(spec)
	assert.Empty(t, errs, "valid spec should have no errors")
}

func TestValidateModuleSpecByValue(t *testing.T) {
	spec := ir.ModuleSpec{Name: "core", Capabilities: []ir.CapabilitySig{{Name: "coreFn"}}}
	assert.Empty(t, Validate(spec))
}

func TestValidateModuleSpecConfigOnly(t *testing.T) {
	spec := &ir.ModuleSpec{
		Name:   "defaults",
		Config: []ir.ConfigField{{Path: "meta.source", Type: "string", Default: ir.IRString("cli")}},
	}
	assert.Empty(t, Validate(spec))
}

func TestValidateModuleSpecInvalidName(t *testing.T) {
	for _, name := range []string{"", "1core", "has space", "dot.ted"} {
		spec := &ir.ModuleSpec{Name: name, Capabilities: []ir.CapabilitySig{{Name: "op"}}}
		errs := Validate(spec)
		require.Len(t, errs, 1, name)
		assert.Equal(t, ErrInvalidModuleName, errs[0].Code)
	}
}

func TestValidateModuleSpecEmpty(t *testing.T) {
	errs := Validate(&ir.ModuleSpec{Name: "empty"})
	require.Len(t, errs, 1)
	assert.Equal(t, ErrModuleEmpty, errs[0].Code)
}

func TestValidateModuleSpecCapabilityErrors(t *testing.T) {
	spec := &ir.ModuleSpec{
		Name: "m",
		Capabilities: []ir.CapabilitySig{
			{Name: "op"},
			{Name: "op"},
			{Name: "bad-name"},
			{Name: "w", Writes: "ctx..user"},
			{Name: "a", Args: []ir.NamedArg{{Name: "x", Type: "int"}, {Name: "x", Type: "float"}}},
		},
	}

	errs := Validate(spec)
	assert.ElementsMatch(t, []string{
		ErrDuplicateName,
		ErrInvalidCapability,
		ErrInvalidPath,
		ErrDuplicateName,
		ErrFloatTypeForbidden,
	}, codes(errs))
}

func TestValidateModuleSpecConfigErrors(t *testing.T) {
	spec := &ir.ModuleSpec{
		Name: "m",
		Config: []ir.ConfigField{
			{Path: "", Type: "string"},
			{Path: "ctx.a", Type: "text"},
			{Path: "ctx.b", Type: "int", Default: ir.IRString("nope")},
			{Path: "ctx.c", Type: "string"},
			{Path: "ctx.c", Type: "string"},
			{Path: "meta", Type: "string"},
		},
	}

	errs := Validate(spec)
	assert.ElementsMatch(t, []string{
		ErrInvalidPath,
		ErrInvalidFieldType,
		ErrDefaultTypeMismatch,
		ErrDuplicateName,
		ErrReservedField,
	}, codes(errs))
}

func TestValidateReservedFieldAsObjectAllowed(t *testing.T) {
	spec := &ir.ModuleSpec{
		Name:   "m",
		Config: []ir.ConfigField{{Path: "ctxOverride", Type: "object", Default: ir.IRObject{}}},
	}
	assert.Empty(t, Validate(spec))
}

func TestValidateAnyTypeDefault(t *testing.T) {
	spec := &ir.ModuleSpec{
		Name:   "m",
		Config: []ir.ConfigField{{Path: "meta.extra", Type: "any", Default: ir.IRArray{}}},
	}
	assert.Empty(t, Validate(spec))
}

// =============================================================================
// Module Set Validation Tests
// =============================================================================

func TestValidateModuleSetValid(t *testing.T) {
	specs := []ir.ModuleSpec{
		{Name: "core", Capabilities: []ir.CapabilitySig{{Name: "coreFn"}}},
		{Name: "extension", Capabilities: []ir.CapabilitySig{{Name: "extFn"}}},
	}
	assert.Empty(t, Validate(specs))
}

func TestValidateModuleSetDuplicates(t *testing.T) {
	specs := []ir.ModuleSpec{
		{Name: "core", Capabilities: []ir.CapabilitySig{{Name: "shared"}}},
		{Name: "extension", Capabilities: []ir.CapabilitySig{{Name: "shared"}}},
		{Name: "core", Capabilities: []ir.CapabilitySig{{Name: "other"}}},
	}

	errs := Validate(specs)
	require.Len(t, errs, 2)
	assert.Equal(t, ErrDuplicateCapability, errs[0].Code)
	assert.Contains(t, errs[0].Message, `"core" and "extension"`)
	assert.Equal(t, "modules[1].capabilities.shared", errs[0].Field)
	assert.Equal(t, ErrDuplicateModule, errs[1].Code)
	assert.Equal(t, "modules[2].name", errs[1].Field)
}

func TestValidateModuleSetPrefixesFields(t *testing.T) {
	specs := []ir.ModuleSpec{
		{Name: "core", Capabilities: []ir.CapabilitySig{{Name: "coreFn"}}},
		{Name: "bad", Config: []ir.ConfigField{{Path: "ctx.x", Type: "float"}}},
	}

	errs := Validate(specs)
	require.Len(t, errs, 1)
	assert.Equal(t, "modules[1].config[0].type", errs[0].Field)
	assert.Equal(t, ErrFloatTypeForbidden, errs[0].Code)
}

// =============================================================================
// General
// =============================================================================

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate("not a spec")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedIRType, errs[0].Code)
}

func TestValidationErrorFormat(t *testing.T) {
	e := ValidationError{Field: "name", Message: "bad", Code: ErrInvalidModuleName}
	assert.Equal(t, "[E101] name: bad", e.Error())

	e.Line = 4
	assert.Equal(t, "[E101] line 4: name: bad", e.Error())
}
