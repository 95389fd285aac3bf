package compiler

import (
	"errors"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/modkit/internal/ir"
)

func compileModuleString(t *testing.T, src, path string) (*ir.ModuleSpec, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return CompileModule(v.LookupPath(cue.ParsePath(path)))
}

func TestCompileModuleBasic(t *testing.T) {
	spec, err := compileModuleString(t, `
		module: auth: {
			purpose: "Attaches the calling user"

			capability: withUser: {
				args: { id: int, name: string }
				writes: "ctx.user"
			}
			capability: ping: {}

			config: "ctx.tenant": { type: "string", required: true }
			config: "ctx.region": { type: "string", default: "eu" }
		}
	`, "module.auth")
	require.NoError(t, err)

	assert.Equal(t, "auth", spec.Name)
	assert.Equal(t, "Attaches the calling user", spec.Purpose)
	require.Len(t, spec.Capabilities, 2)

	assert.Equal(t, "withUser", spec.Capabilities[0].Name)
	assert.Equal(t, []ir.NamedArg{
		{Name: "id", Type: "int"},
		{Name: "name", Type: "string"},
	}, spec.Capabilities[0].Args)
	assert.Equal(t, "ctx.user", spec.Capabilities[0].Writes)

	assert.Equal(t, "ping", spec.Capabilities[1].Name)
	assert.Empty(t, spec.Capabilities[1].Args)
	assert.Empty(t, spec.Capabilities[1].Writes)

	assert.Equal(t, []ir.ConfigField{
		{Path: "ctx.tenant", Type: "string", Required: true},
		{Path: "ctx.region", Type: "string", Default: ir.IRString("eu")},
	}, spec.Config)
}

func TestCompileModuleMinimal(t *testing.T) {
	spec, err := compileModuleString(t, `
		module: core: capability: coreFn: {}
	`, "module.core")
	require.NoError(t, err)

	assert.Equal(t, "core", spec.Name)
	assert.Empty(t, spec.Purpose)
	require.Len(t, spec.Capabilities, 1)
	assert.Equal(t, "coreFn", spec.Capabilities[0].Name)
	assert.NotNil(t, spec.Config)
	assert.Empty(t, spec.Config)
}

func TestCompileModuleQuotedName(t *testing.T) {
	spec, err := compileModuleString(t, `
		module: "rate-limit": capability: limit: {}
	`, `module."rate-limit"`)
	require.NoError(t, err)
	assert.Equal(t, "rate-limit", spec.Name)
}

func TestCompileModuleArgTypes(t *testing.T) {
	spec, err := compileModuleString(t, `
		module: m: capability: op: args: {
			s: string
			i: int
			b: bool
			l: [...string]
			o: {...}
			a: _
		}
	`, "module.m")
	require.NoError(t, err)

	types := map[string]string{}
	for _, a := range spec.Capabilities[0].Args {
		types[a.Name] = a.Type
	}
	assert.Equal(t, map[string]string{
		"s": "string",
		"i": "int",
		"b": "bool",
		"l": "array",
		"o": "object",
		"a": "any",
	}, types)
}

func TestCompileModuleFloatArgForbidden(t *testing.T) {
	_, err := compileModuleString(t, `
		module: m: capability: op: args: ratio: float
	`, "module.m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "float")

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "type", ce.Field)
}

func TestCompileModuleStructuredDefault(t *testing.T) {
	spec, err := compileModuleString(t, `
		module: m: config: "meta.limits": {
			type: "object"
			default: { burst: 10, tags: ["a", "b"], strict: true }
		}
	`, "module.m")
	require.NoError(t, err)

	require.Len(t, spec.Config, 1)
	assert.Equal(t, ir.IRObject{
		"burst":  ir.IRInt(10),
		"tags":   ir.IRArray{ir.IRString("a"), ir.IRString("b")},
		"strict": ir.IRBool(true),
	}, spec.Config[0].Default)
}

func TestCompileModuleFloatDefaultForbidden(t *testing.T) {
	_, err := compileModuleString(t, `
		module: m: config: "ctx.ratio": { type: "int", default: 1.5 }
	`, "module.m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "float values are forbidden")
}

func TestCompileModuleNullDefaultForbidden(t *testing.T) {
	_, err := compileModuleString(t, `
		module: m: config: "ctx.x": { type: "string", default: null }
	`, "module.m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null defaults")
}

func TestCompileModuleIncompleteDefault(t *testing.T) {
	_, err := compileModuleString(t, `
		module: m: config: "ctx.x": { type: "string", default: string }
	`, "module.m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concrete")
}

func TestCompileModuleConfigTypeRequired(t *testing.T) {
	_, err := compileModuleString(t, `
		module: m: config: "ctx.x": { required: true }
	`, "module.m")
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "config.ctx.x.type", ce.Field)
}

func TestCompileModuleWritesMustBeString(t *testing.T) {
	_, err := compileModuleString(t, `
		module: m: capability: op: writes: 3
	`, "module.m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capability.op.writes")
}

func TestCompileModules(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		module: core: capability: coreFn: {}
		module: extension: capability: extFn: {}
		module: broken: capability: op: args: x: float
	`)
	require.NoError(t, v.Err())

	specs, errs := CompileModules(v)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "module.broken")

	require.Len(t, specs, 2)
	assert.Equal(t, "core", specs[0].Name)
	assert.Equal(t, "extension", specs[1].Name)
}

func TestCompileModulesNone(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`other: 1`)

	specs, errs := CompileModules(v)
	assert.Empty(t, errs)
	assert.Empty(t, specs)
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "purpose", Message: "must be a string"}
	assert.Equal(t, "purpose: must be a string", err.Error())
}
