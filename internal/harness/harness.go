package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/modkit/internal/compiler"
	"github.com/roach88/modkit/internal/compose"
	"github.com/roach88/modkit/internal/ir"
	"github.com/roach88/modkit/internal/store"
	"github.com/roach88/modkit/internal/testutil"
)

// Harness runs one scenario against a fresh in-memory store.
type Harness struct {
	store  *store.Store
	ids    *testutil.SequentialGenerator
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Composition IDs come from a sequential generator, so results are
// reproducible.
//
// Execution flow:
// 1. Load and compile module specs
// 2. Compose the selected modules and build with the overrides
// 3. Apply the flow's calls in order
// 4. Persist the snapshot and trace, and read the trace back
// 5. Evaluate assertions
//
// The returned error reports problems with the scenario itself (specs that
// do not compile, unknown module names, invalid override values).
// Composition and call failures are reported through the Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with a caller-provided logger for the composer.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	specs, err := loadSpecs(scenario.Specs)
	if err != nil {
		return nil, err
	}

	selected, err := selectModules(specs, scenario.Modules)
	if err != nil {
		return nil, err
	}

	overrides, err := ir.ObjectFromGo(scenario.Overrides)
	if err != nil {
		return nil, fmt.Errorf("overrides: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		ids:    testutil.NewSequentialGenerator("harness"),
		logger: logger,
	}
	return h.run(context.Background(), scenario, selected, overrides)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario, specs []ir.ModuleSpec, overrides ir.IRObject) (*Result, error) {
	result := NewResult()

	comp, err := compose.Compose(compose.FromSpecs(specs),
		compose.WithLogger(h.logger),
		compose.WithIDGenerator(h.ids),
	)
	if err != nil {
		constructionFailed(result, scenario, err)
		return result, nil
	}
	result.Surface = comp.Surface()

	b, err := comp.NewBuilder(overrides)
	if err != nil {
		constructionFailed(result, scenario, err)
		return result, nil
	}
	if scenario.ExpectError != "" {
		result.AddError(fmt.Sprintf("expected construction to fail with %s, it succeeded", scenario.ExpectError))
		return result, nil
	}

	b, err = h.executeFlow(scenario.Flow, b, result)
	if err != nil {
		return nil, err
	}

	if err := h.persist(ctx, comp, b, scenario.Name, result); err != nil {
		return nil, err
	}
	result.Config = b.Config()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// executeFlow applies each step to the current builder. A failed call
// leaves the chain on the previous builder; an unexpected failure stops
// the flow.
func (h *Harness) executeFlow(flow []FlowStep, b *compose.Builder, result *Result) (*compose.Builder, error) {
	for i, step := range flow {
		args, err := ir.ObjectFromGo(step.Args)
		if err != nil {
			return nil, fmt.Errorf("flow step %d: failed to convert args: %w", i, err)
		}

		next, err := b.Call(step.Call, args)
		if err != nil {
			code := string(compose.CodeOf(err))
			result.Steps = append(result.Steps, StepResult{Call: step.Call, Error: code})
			switch {
			case step.ExpectError == "":
				result.AddError(fmt.Sprintf("flow[%d] %s: %v", i, step.Call, err))
				return b, nil
			case step.ExpectError != code:
				result.AddError(fmt.Sprintf("flow[%d] %s: expected %s, got %v", i, step.Call, step.ExpectError, err))
			}
			h.logger.Debug("flow step failed as expected", "step", i, "call", step.Call, "code", code)
			continue
		}

		result.Steps = append(result.Steps, StepResult{Call: step.Call})
		if step.ExpectError != "" {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected %s, call succeeded", i, step.Call, step.ExpectError))
		}
		b = next

		h.logger.Debug("flow step completed", "step", i, "call", step.Call)
	}
	return b, nil
}

// persist records the composition and the builder's trace, then reads the
// trace back into the result so assertions and golden files see what was
// stored.
func (h *Harness) persist(ctx context.Context, comp *compose.Composition, b *compose.Builder, name string, result *Result) error {
	snap, err := h.store.WriteSnapshot(ctx, comp.Snapshot("harness:"+name))
	if err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}

	if err := h.store.WriteCalls(ctx, snap.ID, b.CallRecords()); err != nil {
		return fmt.Errorf("persist trace: %w", err)
	}

	result.Trace, err = h.store.ReadCalls(ctx, snap.ID)
	if err != nil {
		return fmt.Errorf("read trace: %w", err)
	}
	return nil
}

func constructionFailed(result *Result, scenario *Scenario, err error) {
	code := string(compose.CodeOf(err))
	result.ErrorCode = code
	switch {
	case scenario.ExpectError == "":
		result.AddError(fmt.Sprintf("construction failed: %v", err))
	case scenario.ExpectError != code:
		result.AddError(fmt.Sprintf("expected construction to fail with %s, got %v", scenario.ExpectError, err))
	}
}

// loadSpecs compiles the spec files and validates each module on its own.
// Cross-module conflicts are left for the composer to report.
func loadSpecs(paths []string) ([]ir.ModuleSpec, error) {
	value, err := compiler.LoadFiles(cuecontext.New(), paths)
	if err != nil {
		return nil, err
	}

	specs, errs := compiler.CompileModules(value)
	if len(errs) > 0 {
		return nil, fmt.Errorf("compile specs: %w", errors.Join(errs...))
	}

	for i := range specs {
		if verrs := compiler.Validate(&specs[i]); len(verrs) > 0 {
			joined := make([]error, len(verrs))
			for j, v := range verrs {
				joined[j] = v
			}
			return nil, fmt.Errorf("module %s: %w", specs[i].Name, errors.Join(joined...))
		}
	}
	return specs, nil
}

// selectModules picks modules by name in the given order. No names
// selects every module in spec order.
func selectModules(specs []ir.ModuleSpec, names []string) ([]ir.ModuleSpec, error) {
	if len(names) == 0 {
		return specs, nil
	}

	byName := make(map[string]ir.ModuleSpec, len(specs))
	for _, s := range specs {
		byName[s.Name] = s
	}

	selected := make([]ir.ModuleSpec, 0, len(names))
	for _, name := range names {
		spec, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("module %q not found in specs", name)
		}
		selected = append(selected, spec)
	}
	return selected, nil
}
