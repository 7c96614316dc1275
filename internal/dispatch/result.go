package dispatch

import (
	"time"

	"github.com/zclconf/go-cty/cty"
)

// Status classifies the outcome of one component dispatch.
type Status string

const (
	// StatusExecuted means the predicate was true and every step succeeded.
	StatusExecuted Status = "executed"
	// StatusSkipped means the component never ran: its predicate was false
	// or unevaluable, it was outside the limit set, or a fail-fast abort
	// preceded it. The Reason field says which.
	StatusSkipped Status = "skipped"
	// StatusWouldRun is the dry-run stand-in for StatusExecuted.
	StatusWouldRun Status = "would-run"
	// StatusFailed means the predicate was true and a step returned an error.
	StatusFailed Status = "failed"
)

// StepResult records the outcome of a single step invocation.
type StepResult struct {
	Name     string
	Uses     string
	Output   cty.Value
	Err      error
	Duration time.Duration
}

// Result records the outcome of one component.
type Result struct {
	Component string
	Status    Status
	Reason    string
	Err       error
	Steps     []StepResult
	Duration  time.Duration
}

// Failed returns the results of components that failed, preserving order.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if r.Status == StatusFailed {
			failed = append(failed, r)
		}
	}
	return failed
}
