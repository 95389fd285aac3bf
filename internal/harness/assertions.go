package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/modkit/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string          // Assertion type for categorization
	Expected string          // Human-readable expected outcome
	Actual   string          // Human-readable actual outcome
	Trace    []ir.CallRecord // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, c := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s (%s) %s\n", c.Position+1, c.Capability, c.Module, formatValue(c.Args))
		}
	}

	return buf.String()
}

// assertOperationsEqual checks that the surface exposes exactly the given
// operations. Order is ignored.
func assertOperationsEqual(result *Result, assertion Assertion) error {
	got := result.Surface.OperationNames()
	want := slices.Clone(assertion.Operations)
	slices.Sort(got)
	slices.Sort(want)

	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertOperationsEqual,
			Expected: fmt.Sprintf("operations %v", want),
			Actual:   fmt.Sprintf("operations %v", got),
		}
	}
	return nil
}

// assertHasOperation checks presence (or absence, when want is false) of
// one operation.
func assertHasOperation(result *Result, assertion Assertion, want bool) error {
	has := slices.Contains(result.Surface.OperationNames(), assertion.Operation)
	if has == want {
		return nil
	}

	typ, expected := AssertHasOperation, "operation %s exposed"
	if !want {
		typ, expected = AssertLacksOperation, "operation %s not exposed"
	}
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprintf(expected, assertion.Operation),
		Actual:   fmt.Sprintf("operations %v", result.Surface.OperationNames()),
	}
}

// assertConfigEquals checks the configuration value at a dotted path.
func assertConfigEquals(result *Result, assertion Assertion) error {
	want, err := ir.FromGo(assertion.Value)
	if err != nil {
		return fmt.Errorf("config_equals %s: invalid value: %w", assertion.Path, err)
	}

	got, ok := result.Config.Lookup(assertion.Path)
	if !ok {
		return &AssertionError{
			Type:     AssertConfigEquals,
			Expected: fmt.Sprintf("%s = %s", assertion.Path, formatValue(want)),
			Actual:   fmt.Sprintf("%s not present", assertion.Path),
			Trace:    result.Trace,
		}
	}
	if !ir.Equal(got, want) {
		return &AssertionError{
			Type:     AssertConfigEquals,
			Expected: fmt.Sprintf("%s = %s", assertion.Path, formatValue(want)),
			Actual:   fmt.Sprintf("%s = %s", assertion.Path, formatValue(got)),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertConfigMissing checks that nothing is stored at a dotted path.
func assertConfigMissing(result *Result, assertion Assertion) error {
	if got, ok := result.Config.Lookup(assertion.Path); ok {
		return &AssertionError{
			Type:     AssertConfigMissing,
			Expected: fmt.Sprintf("%s not present", assertion.Path),
			Actual:   fmt.Sprintf("%s = %s", assertion.Path, formatValue(got)),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertTraceOrder checks if calls appear in the specified order.
// Calls don't need to be consecutive (intervening calls are allowed).
func assertTraceOrder(trace []ir.CallRecord, assertion Assertion) error {
	// Step 1: Find first position of each expected call
	positions := make(map[string]int)
	for i, c := range trace {
		if _, seen := positions[c.Capability]; !seen {
			positions[c.Capability] = i + 1 // 1-indexed for readability
		}
	}

	// Step 2: Verify all calls found
	for _, call := range assertion.Calls {
		if positions[call] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all calls present: %v", assertion.Calls),
				Actual:   fmt.Sprintf("missing call: %s", call),
				Trace:    trace,
			}
		}
	}

	// Step 3: Verify order
	for i := 1; i < len(assertion.Calls); i++ {
		prev := assertion.Calls[i-1]
		curr := assertion.Calls[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("calls in order: %v", assertion.Calls),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks if the call appears exactly the specified number of times.
func assertTraceCount(trace []ir.CallRecord, assertion Assertion) error {
	count := 0
	for _, c := range trace {
		if c.Capability == assertion.Call {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Call),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// formatValue renders a value as canonical JSON, falling back to %v for
// values canonical JSON rejects.
func formatValue(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertOperationsEqual:
			err = assertOperationsEqual(result, assertion)
		case AssertHasOperation:
			err = assertHasOperation(result, assertion, true)
		case AssertLacksOperation:
			err = assertHasOperation(result, assertion, false)
		case AssertConfigEquals:
			err = assertConfigEquals(result, assertion)
		case AssertConfigMissing:
			err = assertConfigMissing(result, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
