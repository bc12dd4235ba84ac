package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/kbind/internal/kval"
	"github.com/roach88/kbind/internal/schema"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  %s\n", event)
	}
	return buf.String()
}

func assertFinalValue(trace []TraceEvent, values map[string]kval.Value, a Assertion) error {
	got := kval.Format(values[a.Name])
	if got == a.Expect {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalValue,
		Expected: fmt.Sprintf("%s = %s", a.Name, a.Expect),
		Actual:   fmt.Sprintf("%s = %s", a.Name, got),
		Trace:    trace,
	}
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op == a.Op {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%s %d times", a.Op, a.Count),
		Actual:   fmt.Sprintf("%s %d times", a.Op, count),
		Trace:    trace,
	}
}

// assertTraceOrder checks that the ops occur in order, not necessarily
// adjacent.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(a.Ops) && event.Op == a.Ops[next] {
			next++
		}
	}
	if next == len(a.Ops) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("ops in order: %v", a.Ops),
		Actual:   fmt.Sprintf("no %s after %v", a.Ops[next], a.Ops[:next]),
		Trace:    trace,
	}
}

func assertSchema(trace []TraceEvent, values map[string]kval.Value, a Assertion) error {
	s, err := schema.Compile(a.Name+".cue", []byte(a.Schema))
	if err != nil {
		return &AssertionError{
			Type:     AssertSchema,
			Expected: "a valid schema",
			Actual:   err.Error(),
			Trace:    trace,
		}
	}
	violations := s.CheckValue(values[a.Name])
	if len(violations) == 0 {
		return nil
	}
	msgs := make([]string, len(violations))
	for i, v := range violations {
		msgs[i] = v.Error()
	}
	return &AssertionError{
		Type:     AssertSchema,
		Expected: fmt.Sprintf("%s to satisfy its schema", a.Name),
		Actual:   strings.Join(msgs, "; "),
		Trace:    trace,
	}
}

// EvaluateAssertions checks every assertion and returns the failure
// messages, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion, values map[string]kval.Value) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertFinalValue:
			err = assertFinalValue(result.Trace, values, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertSchema:
			err = assertSchema(result.Trace, values, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}
