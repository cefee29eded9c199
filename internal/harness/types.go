package harness

import (
	"errors"

	"github.com/HGData/basex/internal/engine"
	"github.com/HGData/basex/internal/ir"
)

// TraceEvent is one fired rewrite rule.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Rule   string `json:"rule"`
	Detail string `json:"detail"`
}

// ErrorInfo describes a compile or runtime failure.
type ErrorInfo struct {
	Class   string `json:"class,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	QueryID       string `json:"query_id"`
	Plan          string `json:"plan,omitempty"`
	PlanHash      string `json:"plan_hash,omitempty"`
	ClausesBefore int    `json:"clauses_before"`
	ClausesAfter  int    `json:"clauses_after"`

	// Trace lists the fired rewrites in order.
	Trace []TraceEvent `json:"trace"`

	// Deferred lists the error codes postponed to run time.
	Deferred []string `json:"deferred,omitempty"`

	// Items is the evaluation result; nil when compilation or evaluation
	// failed.
	Items ir.Seq `json:"-"`

	// Output is Items in query serialization.
	Output string `json:"output,omitempty"`

	CompileError *ErrorInfo `json:"compile_error,omitempty"`
	RuntimeError *ErrorInfo `json:"runtime_error,omitempty"`

	// Errors contains failed assertion messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Fired reports whether rule appears in the rewrite trace.
func (r *Result) Fired(rule string) bool {
	return r.firstFired(rule) >= 0
}

func (r *Result) firstFired(rule string) int {
	for i, ev := range r.Trace {
		if ev.Rule == rule {
			return i
		}
	}
	return -1
}

// describeError reduces a compile or runtime error to its class and code.
func describeError(err error) *ErrorInfo {
	info := &ErrorInfo{Message: err.Error()}
	var ce *engine.CompileError
	if errors.As(err, &ce) {
		info.Class = string(ce.Class)
	}
	if engine.IsStepsExceededError(err) {
		info.Class = "STEPS_EXCEEDED"
	}
	if qe, ok := ir.AsQueryError(err); ok {
		info.Code = string(qe.Code)
	}
	return info
}
