package harness

import (
	"fmt"
	"strings"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq  int      `json:"seq"`
	Op   string   `json:"op"`
	Args []string `json:"args,omitempty"`
	As   string   `json:"as,omitempty"`
	// Result is the q text of the step's value; empty when the step failed.
	Result string `json:"result,omitempty"`
	// Error is "CODE: message" for a failed step.
	Error string `json:"error,omitempty"`
}

// String renders the event as one trace line:
//
//	2 join x y -> z = 1 2 3
//	3 to_list t ! TYPE_MISMATCH: invalid type, expected an atom or a list
func (e TraceEvent) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s", e.Seq, e.Op)
	for _, a := range e.Args {
		b.WriteString(" ")
		b.WriteString(a)
	}
	if e.As != "" {
		b.WriteString(" -> ")
		b.WriteString(e.As)
	}
	if e.Error != "" {
		b.WriteString(" ! ")
		b.WriteString(e.Error)
	} else {
		b.WriteString(" = ")
		b.WriteString(e.Result)
	}
	return b.String()
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held and the
	// runtime ended with no live objects beyond its enum domains.
	Pass bool `json:"pass"`

	// Trace has one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
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

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Ops returns the op of every trace event.
func (r *Result) Ops() []string {
	ops := make([]string, len(r.Trace))
	for i, e := range r.Trace {
		ops[i] = e.Op
	}
	return ops
}
