package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/kbind/internal/codec"
	"github.com/roach88/kbind/internal/heap"
	"github.com/roach88/kbind/internal/k"
	"github.com/roach88/kbind/internal/kval"
)

// Option configures Run.
type Option func(*Harness)

// WithLogger logs step execution to l.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Harness holds the state of one scenario run.
type Harness struct {
	rt     *heap.Runtime
	logger *slog.Logger

	// values are bound by name. Loaded values borrow runtime memory held in
	// owned until the run ends.
	values map[string]kval.Value
	owned  []*k.K
}

// Run executes a scenario against a fresh runtime and returns the result.
// The error return is reserved for failures of the harness itself; failing
// expectations are reported in the Result.
//
// Execution flow:
// 1. Register the scenario's enum domains
// 2. Run each step, checking expect and expect_error
// 3. Evaluate assertions
// 4. Release loaded values and check the runtime for leaks
func Run(ctx context.Context, s *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		rt:     heap.New(heap.DefaultConfig()),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		values: make(map[string]kval.Value),
	}
	for _, opt := range opts {
		opt(h)
	}
	defer h.rt.Close()

	for name, syms := range s.Enums {
		if err := h.rt.DefineEnum(name, syms); err != nil {
			return nil, fmt.Errorf("enum %s: %w", name, err)
		}
	}
	baseline := h.rt.Stats().Objects

	result := NewResult()
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			h.release()
			return nil, err
		}
		h.execute(i, step, result)
	}

	for _, msg := range EvaluateAssertions(result, s.Assertions, h.values) {
		result.AddError(msg)
	}

	h.release()
	if live := h.rt.Stats().Objects; live != baseline {
		result.AddError(fmt.Sprintf("leak: %d live objects after release, want %d", live, baseline))
	}
	return result, nil
}

// execute runs one step, records it and checks its expectations.
func (h *Harness) execute(i int, step Step, result *Result) {
	event := TraceEvent{Seq: i + 1, Op: step.Op, Args: step.Args, As: step.As}

	v, err := h.apply(step)
	if err != nil {
		event.Error = errorText(err)
	} else {
		event.Result = kval.Format(v)
		if step.As != "" {
			h.values[step.As] = v
		}
	}
	result.Trace = append(result.Trace, event)

	h.logger.Debug("step executed",
		"step", event.Seq,
		"op", step.Op,
		"result", event.Result,
		"error", event.Error,
	)

	switch {
	case step.ExpectError != "" && err == nil:
		result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got %s", event.Seq, step.Op, step.ExpectError, event.Result))
	case step.ExpectError != "" && errorCode(err) != step.ExpectError:
		result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got %s", event.Seq, step.Op, step.ExpectError, event.Error))
	case step.ExpectError == "" && err != nil:
		result.AddError(fmt.Sprintf("step %d (%s): %s", event.Seq, step.Op, event.Error))
	case step.Expect != "" && event.Result != step.Expect:
		result.AddError(fmt.Sprintf("step %d (%s): expected %s, got %s", event.Seq, step.Op, step.Expect, event.Result))
	}
}

func (h *Harness) apply(step Step) (kval.Value, error) {
	args := make([]kval.Value, len(step.Args))
	for i, name := range step.Args {
		args[i] = h.values[name]
	}

	switch step.Op {
	case OpLoad:
		return h.load(step)
	case OpToList:
		return kval.ToList(args[0])
	case OpToCompound:
		return kval.ToCompoundList(args[0])
	case OpJoin:
		return kval.Join(args[0], args[1])
	case OpColumn:
		t, err := asTable(args[0], "get_column")
		if err != nil {
			return nil, err
		}
		return t.GetColumn(step.Index, step.EnumSource)
	case OpRow:
		t, err := asTable(args[0], "get_row")
		if err != nil {
			return nil, err
		}
		return t.GetRow(step.Index, step.EnumSources)
	case OpRoundTrip:
		return h.roundTrip(args[0], step.EnumSource)
	}
	return nil, fmt.Errorf("unknown op %q", step.Op)
}

// load decodes the step's descriptor, builds it in the runtime and binds
// the runtime's view of it, the way a value arrives from q.
func (h *Harness) load(step Step) (kval.Value, error) {
	v, err := codec.Decode(*step.Value)
	if err != nil {
		return nil, err
	}
	raw, err := kval.ToK(h.rt, v)
	if err != nil {
		return nil, err
	}
	h.owned = append(h.owned, raw)
	return kval.FromK(raw, loadSource(step)), nil
}

func loadSource(step Step) string {
	if step.EnumSource != "" {
		return step.EnumSource
	}
	return step.Value.Source
}

// roundTrip sends v through the runtime and IPC and reads it back. The
// result must equal v.
func (h *Harness) roundTrip(v kval.Value, enumSource string) (kval.Value, error) {
	if e, ok := v.(kval.Enum); ok && enumSource == "" {
		enumSource = e.Source
	}

	raw, err := kval.ToK(h.rt, v)
	if err != nil {
		return nil, err
	}
	msg, err := h.rt.Serialize(raw)
	h.rt.Unref(raw)
	if err != nil {
		return nil, err
	}
	back, err := h.rt.Deserialize(msg)
	if err != nil {
		return nil, err
	}
	defer h.rt.Unref(back)

	out := kval.Clone(kval.FromK(back, enumSource))
	if !kval.Equal(v, out) {
		return nil, fmt.Errorf("round trip changed %s into %s", kval.Format(v), kval.Format(out))
	}
	return out, nil
}

func (h *Harness) release() {
	for _, raw := range h.owned {
		h.rt.Unref(raw)
	}
	h.owned = nil
}

func asTable(v kval.Value, op string) (kval.Table, error) {
	t, ok := v.(kval.Table)
	if !ok {
		return kval.Table{}, &kval.Error{Code: kval.ErrCodeTypeMismatch, Op: op, Message: "not a table"}
	}
	return t, nil
}

// errorCode is the kval code of err, or RUNTIME for errors raised below
// the value layer.
func errorCode(err error) string {
	if code := kval.CodeOf(err); code != "" {
		return string(code)
	}
	return "RUNTIME"
}

func errorText(err error) string {
	return errorCode(err) + ": " + kval.Text(err)
}
