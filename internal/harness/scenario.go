package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// A scenario composes modules compiled from CUE specs, optionally applies a
// chain of calls, and asserts on the resulting surface, configuration and
// call trace.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists paths to CUE spec files to compile and load.
	// Paths are relative to the scenario file location.
	Specs []string `yaml:"specs"`

	// Modules selects the modules to register, in registration order.
	// If empty, every compiled module is registered in spec order.
	Modules []string `yaml:"modules,omitempty"`

	// Overrides are passed to builder construction.
	Overrides map[string]any `yaml:"overrides,omitempty"`

	// ExpectError is the error code composition or builder construction
	// must fail with (e.g. "DUPLICATE_CAPABILITY"). When set, flow and
	// assertions are skipped.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Flow is a chain of calls applied to the builder in order.
	Flow []FlowStep `yaml:"flow,omitempty"`

	// Assertions validate the final builder.
	// Supported types: operations_equal, has_operation, lacks_operation,
	// config_equals, config_missing, trace_order, trace_count
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// FlowStep is one call in the chain.
type FlowStep struct {
	// Call is the capability name.
	Call string `yaml:"call"`

	// Args contains the call arguments.
	// Values are converted to ir.IRValue types during execution.
	Args map[string]any `yaml:"args,omitempty"`

	// ExpectError is the error code the call must fail with. A failed call
	// leaves the chain on the previous builder.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates the final builder.
type Assertion struct {
	// Type specifies the assertion type:
	// - "operations_equal": exact set of exposed operations
	// - "has_operation": operation is exposed
	// - "lacks_operation": operation is not exposed
	// - "config_equals": configuration value at path
	// - "config_missing": no configuration value at path
	// - "trace_order": calls appear in order
	// - "trace_count": call appears exactly N times
	Type string `yaml:"type"`

	// Operation is the capability name (has_operation, lacks_operation).
	Operation string `yaml:"operation,omitempty"`

	// Operations is the expected operation set (operations_equal).
	Operations []string `yaml:"operations,omitempty"`

	// Path is a dotted configuration path (config_equals, config_missing).
	Path string `yaml:"path,omitempty"`

	// Value is the expected configuration value (config_equals).
	Value any `yaml:"value,omitempty"`

	// Calls is the expected call order (trace_order).
	Calls []string `yaml:"calls,omitempty"`

	// Call is the capability name (trace_count).
	Call string `yaml:"call,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertOperationsEqual = "operations_equal"
	AssertHasOperation    = "has_operation"
	AssertLacksOperation  = "lacks_operation"
	AssertConfigEquals    = "config_equals"
	AssertConfigMissing   = "config_missing"
	AssertTraceOrder      = "trace_order"
	AssertTraceCount      = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Spec paths are resolved relative to the scenario file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving spec paths relative to the provided base path.
// An empty base path leaves relative paths as they are.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve spec paths relative to base path BEFORE validation
	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}

	if s.ExpectError == "" && len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required unless expect_error is set")
	}

	if s.ExpectError != "" && (len(s.Flow) > 0 || len(s.Assertions) > 0) {
		return fmt.Errorf("expect_error scenarios cannot have flow or assertions")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	seen := make(map[string]bool, len(s.Modules))
	for i, name := range s.Modules {
		if name == "" {
			return fmt.Errorf("modules[%d]: name is empty", i)
		}
		if seen[name] {
			return fmt.Errorf("modules[%d]: %q listed twice", i, name)
		}
		seen[name] = true
	}

	for i, step := range s.Flow {
		if step.Call == "" {
			return fmt.Errorf("flow[%d]: call is required", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertOperationsEqual:
		if a.Operations == nil {
			return fmt.Errorf("assertions[%d]: operations list is required for operations_equal", index)
		}
	case AssertHasOperation, AssertLacksOperation:
		if a.Operation == "" {
			return fmt.Errorf("assertions[%d]: operation is required for %s", index, a.Type)
		}
	case AssertConfigEquals:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for config_equals", index)
		}
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for config_equals", index)
		}
	case AssertConfigMissing:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for config_missing", index)
		}
	case AssertTraceOrder:
		if len(a.Calls) == 0 {
			return fmt.Errorf("assertions[%d]: calls list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
