package heap

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/roach88/kbind/internal/k"
)

// interner stores each distinct symbol once, NUL-terminated, in append-only
// mapped memory. Pointers it returns are never invalidated before close.
type interner struct {
	chunkSize int
	table     map[string]*byte
	chunks    [][]byte
	tail      []byte
}

func newInterner(chunkSize int) *interner {
	return &interner{
		chunkSize: chunkSize,
		table:     make(map[string]*byte),
	}
}

func (in *interner) intern(s string) (*byte, error) {
	if p, ok := in.table[s]; ok {
		return p, nil
	}
	need := len(s) + 1
	if len(in.tail) < need {
		size := max(in.chunkSize, need)
		mem, err := mapAnon(size)
		if err != nil {
			return nil, err
		}
		in.chunks = append(in.chunks, mem)
		in.tail = mem
	}
	copy(in.tail, s)
	in.tail[len(s)] = 0
	p := &in.tail[0]
	in.tail = in.tail[need:]
	in.table[s] = p
	return p, nil
}

func (in *interner) close() error {
	var first error
	for _, mem := range in.chunks {
		if err := unix.Munmap(mem); err != nil && first == nil {
			first = err
		}
	}
	in.chunks, in.tail = nil, nil
	in.table = make(map[string]*byte)
	return first
}

// Intern returns the canonical pointer for s. It does not consult the
// symbol pin.
func (r *Runtime) Intern(s string) (*byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.internLocked(s)
}

// InternPinned interns s on behalf of the holder of pin. It fails with
// k.ErrNotPinned once pin has been released or when pin is not the one the
// runtime handed out.
func (r *Runtime) InternPinned(pin *k.SymbolPin, s string) (*byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if pin == nil || r.pin != pin {
		return nil, k.ErrNotPinned
	}
	return r.internLocked(s)
}

func (r *Runtime) internLocked(s string) (*byte, error) {
	if r.closed {
		return nil, ErrClosed
	}
	return r.syms.intern(s)
}

// DefineEnum registers (or replaces) a named domain that enum values index.
func (r *Runtime) DefineEnum(name string, symbols []string) error {
	if name == "" {
		return fmt.Errorf("%w: enum domain needs a name", ErrBadType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	dom, err := r.listLocked(k.TypeSymbolList, int64(len(symbols)))
	if err != nil {
		return err
	}
	slots := k.Slice[*byte](dom)
	for i, s := range symbols {
		p, err := r.internLocked(s)
		if err != nil {
			r.unrefLocked(dom)
			return err
		}
		slots[i] = p
	}
	if old, ok := r.enums[name]; ok {
		r.unrefLocked(old)
	}
	r.enums[name] = dom
	r.log.Debug("enum defined", "name", name, "size", len(symbols))
	return nil
}

// DropEnum unregisters a domain. It reports whether the domain existed.
func (r *Runtime) DropEnum(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	dom, ok := r.enums[name]
	if ok {
		r.unrefLocked(dom)
		delete(r.enums, name)
	}
	return ok
}

// EnumDomain returns a copy of the symbols of a registered domain.
func (r *Runtime) EnumDomain(name string) ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dom, ok := r.enums[name]
	if !ok {
		return nil, false
	}
	ptrs := k.Slice[*byte](dom)
	out := make([]string, len(ptrs))
	for i, p := range ptrs {
		out[i] = k.GoString(p)
	}
	return out, true
}

// NewEnum allocates an enum atom. The domain must be registered and the
// index must address one of its symbols.
func (r *Runtime) NewEnum(source string, index int64) (*k.K, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dom, ok := r.enums[source]
	if !ok {
		return nil, fmt.Errorf("%w: no enum domain %q", ErrBadType, source)
	}
	if dom.T != k.TypeSymbolList {
		return nil, fmt.Errorf("%w: enum must be cast to symbol list", ErrBadType)
	}
	if index < 0 || index >= dom.N() {
		return nil, fmt.Errorf("%w: index %d out of enum range %d", ErrLength, index, dom.N())
	}
	raw, err := r.allocLocked(k.Size)
	if err != nil {
		return nil, err
	}
	raw.T = k.TypeEnumAtom
	*k.Cast[int64](raw) = index
	return raw, nil
}

