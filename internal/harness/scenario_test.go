package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestSpec writes a minimal CUE module file for testing.
func createTestSpec(t *testing.T, dir, name string) string {
	t.Helper()
	specsDir := filepath.Join(dir, "specs")
	require.NoError(t, os.MkdirAll(specsDir, 0755))
	specPath := filepath.Join(specsDir, name)
	require.NoError(t, os.WriteFile(specPath, []byte("module: core: capability: coreFn: {}\n"), 0644))
	return specPath
}

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	createTestSpec(t, dir, "core.cue")

	path := writeScenario(t, dir, `
name: test_scenario
description: "Test scenario for validation"
specs:
  - specs/core.cue
modules: [core]
overrides:
  ctx:
    tenant: acme
flow:
  - call: coreFn
  - call: extFn
    expect_error: UNSUPPORTED_CAPABILITY
assertions:
  - type: has_operation
    operation: coreFn
  - type: trace_count
    call: coreFn
    count: 1
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, []string{filepath.Join(dir, "specs", "core.cue")}, scenario.Specs)
	assert.Equal(t, []string{"core"}, scenario.Modules)
	assert.Equal(t, map[string]any{"tenant": "acme"}, scenario.Overrides["ctx"])
	require.Len(t, scenario.Flow, 2)
	assert.Equal(t, "UNSUPPORTED_CAPABILITY", scenario.Flow[1].ExpectError)
	require.Len(t, scenario.Assertions, 2)
	assert.Equal(t, 1, scenario.Assertions[1].Count)
}

func TestLoadScenario_ExpectErrorNeedsNoAssertions(t *testing.T) {
	dir := t.TempDir()
	createTestSpec(t, dir, "core.cue")

	path := writeScenario(t, dir, `
name: failing
description: "Construction must fail"
specs: [specs/core.cue]
expect_error: MISSING_CONFIG_FIELD
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "MISSING_CONFIG_FIELD", scenario.ExpectError)
}

func TestLoadScenario_WithBasePath(t *testing.T) {
	dir := t.TempDir()
	createTestSpec(t, dir, "core.cue")

	scenarioDir := filepath.Join(dir, "scenarios")
	require.NoError(t, os.MkdirAll(scenarioDir, 0755))
	path := writeScenario(t, scenarioDir, `
name: based
description: "Specs resolved against an explicit base"
specs: [specs/core.cue]
assertions:
  - type: has_operation
    operation: coreFn
`)

	scenario, err := LoadScenarioWithBasePath(path, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "specs", "core.cue"), scenario.Specs[0])
}

func TestLoadScenario_UnknownFieldRejected(t *testing.T) {
	dir := t.TempDir()
	createTestSpec(t, dir, "core.cue")

	path := writeScenario(t, dir, `
name: typo
description: "assertion instead of assertions"
specs: [specs/core.cue]
assertion:
  - type: has_operation
    operation: coreFn
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing name",
			body:    "description: d\nspecs: [specs/core.cue]\nassertions: [{type: has_operation, operation: coreFn}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			body:    "name: n\nspecs: [specs/core.cue]\nassertions: [{type: has_operation, operation: coreFn}]\n",
			wantErr: "description is required",
		},
		{
			name:    "missing specs",
			body:    "name: n\ndescription: d\nassertions: [{type: has_operation, operation: coreFn}]\n",
			wantErr: "specs list is required",
		},
		{
			name:    "spec not found",
			body:    "name: n\ndescription: d\nspecs: [specs/missing.cue]\nassertions: [{type: has_operation, operation: coreFn}]\n",
			wantErr: "spec file not found",
		},
		{
			name:    "no assertions",
			body:    "name: n\ndescription: d\nspecs: [specs/core.cue]\n",
			wantErr: "assertions list is required unless expect_error is set",
		},
		{
			name:    "expect_error with flow",
			body:    "name: n\ndescription: d\nspecs: [specs/core.cue]\nexpect_error: NOT_READY\nflow: [{call: coreFn}]\n",
			wantErr: "expect_error scenarios cannot have flow or assertions",
		},
		{
			name:    "duplicate module",
			body:    "name: n\ndescription: d\nspecs: [specs/core.cue]\nmodules: [core, core]\nassertions: [{type: has_operation, operation: coreFn}]\n",
			wantErr: `modules[1]: "core" listed twice`,
		},
		{
			name:    "flow step without call",
			body:    "name: n\ndescription: d\nspecs: [specs/core.cue]\nflow: [{args: {a: 1}}]\nassertions: [{type: has_operation, operation: coreFn}]\n",
			wantErr: "flow[0]: call is required",
		},
		{
			name:    "unknown assertion type",
			body:    "name: n\ndescription: d\nspecs: [specs/core.cue]\nassertions: [{type: final_state}]\n",
			wantErr: `unknown assertion type "final_state"`,
		},
		{
			name:    "config_equals without value",
			body:    "name: n\ndescription: d\nspecs: [specs/core.cue]\nassertions: [{type: config_equals, path: meta.key}]\n",
			wantErr: "value is required for config_equals",
		},
		{
			name:    "trace_order without calls",
			body:    "name: n\ndescription: d\nspecs: [specs/core.cue]\nassertions: [{type: trace_order}]\n",
			wantErr: "calls list is required for trace_order",
		},
		{
			name:    "negative count",
			body:    "name: n\ndescription: d\nspecs: [specs/core.cue]\nassertions: [{type: trace_count, call: coreFn, count: -1}]\n",
			wantErr: "count must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			createTestSpec(t, dir, "core.cue")
			path := writeScenario(t, dir, tt.body)

			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_OperationsEqualAcceptsEmptyList(t *testing.T) {
	dir := t.TempDir()
	createTestSpec(t, dir, "core.cue")

	path := writeScenario(t, dir, `
name: empty_ops
description: "operations: [] is an explicit empty set"
specs: [specs/core.cue]
assertions:
  - type: operations_equal
    operations: []
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.NotNil(t, scenario.Assertions[0].Operations)
}
