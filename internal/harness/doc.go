// Package harness provides conformance testing for module compositions.
//
// The harness compiles module specs from CUE, composes them, applies a
// chain of calls and checks the resulting surface, configuration and call
// trace against declared assertions and golden files.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	specs:
//	  - path/to/modules.cue
//	modules: [core, extension]      # optional registration order
//	overrides:                      # optional builder overrides
//	  ctx: { tenant: "acme" }
//	flow:
//	  - call: extFn
//	    args: { key: value }
//	  - call: missingFn
//	    expect_error: UNSUPPORTED_CAPABILITY
//	assertions:
//	  - type: operations_equal
//	    operations: [coreFn, extFn]
//	  - type: config_equals
//	    path: meta.key
//	    value: value
//
// A scenario may instead set expect_error to the code composition or
// builder construction must fail with; such scenarios carry no flow and
// no assertions.
//
// # Assertion Types
//
//   - operations_equal: the exact set of exposed operations
//   - has_operation / lacks_operation: one operation is, or is not, exposed
//   - config_equals: the configuration value at a dotted path
//   - config_missing: no configuration value at a dotted path
//   - trace_order: calls appear in the given order
//   - trace_count: a call appears exactly N times
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory SQLite store, with
// composition IDs from testutil.SequentialGenerator. The trace under test
// is the one read back from the store, so golden files also cover
// persistence.
package harness
