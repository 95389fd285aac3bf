package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/modkit/internal/ir"
)

// GoldenSnapshot is what a golden file records for one scenario: the
// registered modules, the exposed operations, the per-step outcomes, the
// persisted trace and the final configuration. The fingerprint is left
// out so golden files stay readable and hand-checkable.
type GoldenSnapshot struct {
	ScenarioName string
	ErrorCode    string
	Modules      []string
	Operations   []string
	Steps        []StepResult
	Trace        []ir.CallRecord
	Config       ir.IRObject
}

// NewGoldenSnapshot builds a snapshot from a scenario result.
func NewGoldenSnapshot(name string, result *Result) GoldenSnapshot {
	return GoldenSnapshot{
		ScenarioName: name,
		ErrorCode:    result.ErrorCode,
		Modules:      result.Surface.Modules,
		Operations:   result.Surface.OperationNames(),
		Steps:        result.Steps,
		Trace:        result.Trace,
		Config:       result.Config,
	}
}

// toCanonicalMap converts the snapshot to a map[string]any for canonical
// JSON serialization. ir.MarshalCanonical only handles IR types and
// primitives.
func (s GoldenSnapshot) toCanonicalMap() map[string]any {
	modules := make([]any, len(s.Modules))
	for i, m := range s.Modules {
		modules[i] = m
	}

	ops := make([]any, len(s.Operations))
	for i, op := range s.Operations {
		ops[i] = op
	}

	steps := make([]any, len(s.Steps))
	for i, st := range s.Steps {
		step := map[string]any{"call": st.Call}
		if st.Error != "" {
			step["error"] = st.Error
		}
		steps[i] = step
	}

	trace := make([]any, len(s.Trace))
	for i, c := range s.Trace {
		args := c.Args
		if args == nil {
			args = ir.IRObject{}
		}
		trace[i] = map[string]any{
			"position":   c.Position,
			"capability": c.Capability,
			"module":     c.Module,
			"args":       args,
		}
	}

	config := s.Config
	if config == nil {
		config = ir.IRObject{}
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"modules":       modules,
		"operations":    ops,
		"steps":         steps,
		"trace":         trace,
		"config":        config,
	}
	if s.ErrorCode != "" {
		result["error_code"] = s.ErrorCode
	}
	return result
}

// Marshal renders the snapshot as canonical JSON.
func (s GoldenSnapshot) Marshal() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewGoldenSnapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
