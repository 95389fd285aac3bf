package harness

import "github.com/roach88/modkit/internal/ir"

// StepResult records the outcome of one flow step.
type StepResult struct {
	Call string `json:"call"`
	// Error is the error code of a failed call, empty on success.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// ErrorCode is the code composition or builder construction failed
	// with, empty when both succeeded.
	ErrorCode string `json:"error_code,omitempty"`

	// Surface is the composition surface. Zero if composition failed.
	Surface ir.Surface `json:"surface"`

	// Steps holds one entry per flow step, in order.
	Steps []StepResult `json:"steps"`

	// Trace is the call trace of the final builder, as persisted.
	Trace []ir.CallRecord `json:"trace"`

	// Config is the final effective configuration.
	Config ir.IRObject `json:"config"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
		Steps:  []StepResult{},
		Trace:  []ir.CallRecord{},
		Config: ir.IRObject{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
