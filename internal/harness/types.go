package harness

import "github.com/roach88/conteo/internal/reconcile"

// TraceEvent records one executed scenario step.
type TraceEvent struct {
	Step     int    `json:"step"`
	Action   string `json:"action"`
	UserID   string `json:"user_id,omitempty"`
	Code     string `json:"code,omitempty"`
	Quantity int64  `json:"quantity,omitempty"`

	// EventID is the ID returned by the engine; empty for finalize and for
	// corrections that changed nothing.
	EventID string `json:"event_id,omitempty"`

	// ErrorCode is the engine error code when the step failed.
	ErrorCode string `json:"error_code,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step behaved as declared and all assertions hold.
	Pass bool `json:"pass"`

	// Trace contains the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Report is the count's report after all steps, history included.
	Report *reconcile.Report `json:"report,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an executed step.
func (r *Result) AddTrace(ev TraceEvent) {
	ev.Step = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
