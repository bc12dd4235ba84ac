package kval

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/kbind/internal/k"
)

// ToK builds a new runtime object holding v. The caller owns the result
// and hands it to the runtime, which frees it. If any allocation fails,
// everything already allocated for v is released before returning.
//
// Converting is a move: do not convert the same Value twice or keep using
// it afterwards, since Foreign values transfer a reference.
func ToK(rt k.Runtime, v Value) (*k.K, error) {
	if v == nil {
		return rt.NewNull()
	}
	return v.toK(rt)
}

func allocError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

func (v Typed[T, Q]) toK(rt k.Runtime) (*k.K, error) {
	at := atomTypeOf[Q]()
	if at == k.TypeSymbolAtom {
		return symbolToK(rt, any(v.Data).(Data[string]))
	}
	if !v.isList {
		if at == k.TypeGUIDAtom {
			raw, err := rt.NewGUID(any(v.atom).(uuid.UUID))
			if err != nil {
				return nil, allocError("to_k", err)
			}
			return raw, nil
		}
		raw, err := rt.NewAtom(at)
		if err != nil {
			return nil, allocError("to_k", err)
		}
		*k.Cast[T](raw) = v.atom
		return raw, nil
	}
	raw, err := rt.NewList(-at, int64(len(v.list)))
	if err != nil {
		return nil, allocError("to_k", err)
	}
	copy(k.Slice[T](raw), v.list)
	return raw, nil
}

func symbolToK(rt k.Runtime, d Data[string]) (*k.K, error) {
	if !d.isList {
		raw, err := rt.NewSymbol(d.atom)
		if err != nil {
			return nil, allocError("to_k", err)
		}
		return raw, nil
	}
	raw, err := rt.NewList(k.TypeSymbolList, int64(len(d.list)))
	if err != nil {
		return nil, allocError("to_k", err)
	}
	slots := k.Slice[*byte](raw)
	for i, s := range d.list {
		p, err := rt.Intern(s)
		if err != nil {
			rt.Unref(raw)
			return nil, allocError("to_k", err)
		}
		slots[i] = p
	}
	return raw, nil
}

func (v Enum) toK(rt k.Runtime) (*k.K, error) {
	if !v.isList {
		if v.Source == "" {
			return nil, newError(ErrCodeMissingEnumSource, "to_k", "enum_source must be provided for enumerated atoms")
		}
		raw, err := rt.NewEnum(v.Source, v.atom)
		if err != nil {
			return nil, allocError("to_k", err)
		}
		return raw, nil
	}
	raw, err := rt.NewList(k.TypeEnumList, int64(len(v.list)))
	if err != nil {
		return nil, allocError("to_k", err)
	}
	copy(k.Slice[int64](raw), v.list)
	return raw, nil
}

func (c Char) toK(rt k.Runtime) (*k.K, error) {
	raw, err := rt.NewAtom(k.TypeChar)
	if err != nil {
		return nil, allocError("to_k", err)
	}
	*k.Cast[byte](raw) = byte(c)
	return raw, nil
}

func (s String) toK(rt k.Runtime) (*k.K, error) {
	raw, err := rt.NewString(string(s))
	if err != nil {
		return nil, allocError("to_k", err)
	}
	return raw, nil
}

func (e ErrorValue) toK(rt k.Runtime) (*k.K, error) {
	raw := rt.NewError(string(e))
	if raw == nil {
		return nil, allocError("to_k", fmt.Errorf("cannot allocate error %q", string(e)))
	}
	return raw, nil
}

func (Null) toK(rt k.Runtime) (*k.K, error) {
	raw, err := rt.NewNull()
	if err != nil {
		return nil, allocError("to_k", err)
	}
	return raw, nil
}

func (l CompoundList) toK(rt k.Runtime) (*k.K, error) {
	raw, err := rt.NewList(k.TypeCompoundList, int64(len(l)))
	if err != nil {
		return nil, allocError("to_k", err)
	}
	kids := k.Children(raw)
	for i, v := range l {
		child, err := ToK(rt, v)
		if err != nil {
			// unfilled slots are nil, which Unref skips
			rt.Unref(raw)
			return nil, err
		}
		kids[i] = child
	}
	return raw, nil
}

func (d Dict) toK(rt k.Runtime) (*k.K, error) {
	keys, err := ToK(rt, d.keys)
	if err != nil {
		return nil, err
	}
	values, err := ToK(rt, d.values)
	if err != nil {
		rt.Unref(keys)
		return nil, err
	}
	raw, err := rt.NewDict(keys, values)
	if err != nil {
		return nil, allocError("to_k", err)
	}
	if d.sorted {
		raw.T = k.TypeSortedDict
	}
	return raw, nil
}

func (t Table) toK(rt k.Runtime) (*k.K, error) {
	d := t.dict
	d.sorted = false
	dict, err := d.toK(rt)
	if err != nil {
		return nil, err
	}
	raw, err := rt.Flip(dict)
	if err != nil {
		return nil, allocError("to_k", err)
	}
	return raw, nil
}

func (f Foreign) toK(rt k.Runtime) (*k.K, error) {
	if f.raw == nil {
		return nil, newError(ErrCodeUnimplemented, "to_k", "foreign object has no backing pointer")
	}
	return rt.Ref(f.raw), nil
}

// pinnedInterner is implemented by runtimes that check the symbol pin.
type pinnedInterner interface {
	InternPinned(pin *k.SymbolPin, s string) (*byte, error)
}

// pinnedRuntime interns under the pin it holds.
type pinnedRuntime struct {
	k.Runtime
	pin *k.SymbolPin
	in  pinnedInterner
}

func (r pinnedRuntime) Intern(s string) (*byte, error) { return r.in.InternPinned(r.pin, s) }

// ToKConcurrent converts values on separate goroutines while holding the
// runtime's symbol pin, so symbols interned off the main goroutine stay
// valid. Runtimes that check the pin see every intern made under it. The results line up with values. On any failure every object
// already built is released and the first error is returned. ctx is only
// checked before each conversion starts.
func ToKConcurrent(ctx context.Context, rt k.Runtime, values []Value) ([]*k.K, error) {
	pin, err := rt.PinSymbols()
	if err != nil {
		return nil, fmt.Errorf("to_k: pin symbols: %w", err)
	}
	defer pin.Release()
	conv := rt
	if in, ok := rt.(pinnedInterner); ok {
		conv = pinnedRuntime{Runtime: rt, pin: pin, in: in}
	}

	out := make([]*k.K, len(values))
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range values {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			raw, err := ToK(conv, v)
			if err != nil {
				return err
			}
			out[i] = raw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, raw := range out {
			if raw != nil {
				rt.Unref(raw)
			}
		}
		return nil, err
	}
	return out, nil
}

// Raise builds the runtime error object for err, carrying the same text the
// runtime would show for a native error.
func Raise(rt k.Runtime, err error) *k.K {
	return rt.NewError(Text(err))
}

// Guard runs fn at the boundary with the runtime. A returned error becomes
// the runtime's error object, and so does a panic, which must never unwind
// into the host process.
func Guard(rt k.Runtime, fn func() (*k.K, error)) (out *k.K) {
	defer func() {
		if r := recover(); r != nil {
			out = rt.NewError(fmt.Sprintf("panic: %v", r))
		}
	}()
	raw, err := fn()
	if err != nil {
		return Raise(rt, err)
	}
	return raw
}
