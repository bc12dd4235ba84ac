package heap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/kbind/internal/k"
)

var (
	// ErrClosed is returned by every allocation after Close.
	ErrClosed = errors.New("runtime closed")
	// ErrBadType is returned when a constructor is asked for a tag it cannot build.
	ErrBadType = errors.New("bad type")
	// ErrLength is returned by NewDict and Flip when lengths disagree.
	ErrLength = errors.New("length")
)

// Config holds the tunables of a Runtime.
type Config struct {
	// ChunkSize is the size of each mmap'd chunk. Blocks larger than a chunk
	// get a mapping of their own.
	ChunkSize int

	// Logger receives allocator diagnostics. Nil discards them.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with 1 MiB chunks and no logging.
func DefaultConfig() Config {
	return Config{
		ChunkSize: 1 << 20,
	}
}

// Stats is a snapshot of live allocations.
type Stats struct {
	Objects int64
	Bytes   int64
	Chunks  int
	Symbols int
	Enums   int
}

// Runtime implements k.Runtime on top of an mmap arena.
type Runtime struct {
	mu     sync.Mutex
	log    *slog.Logger
	arena  *arena
	syms   *interner
	enums  map[string]*k.K
	pin    *k.SymbolPin
	closed bool
}

var _ k.Runtime = (*Runtime)(nil)

// New creates a Runtime. A zero ChunkSize falls back to the default.
func New(cfg Config) *Runtime {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultConfig().ChunkSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runtime{
		log:   logger,
		arena: newArena(cfg.ChunkSize),
		syms:  newInterner(cfg.ChunkSize),
		enums: make(map[string]*k.K),
	}
}

// Stats reports live objects and bytes.
func (r *Runtime) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Objects: r.arena.objects,
		Bytes:   r.arena.bytes,
		Chunks:  len(r.arena.chunks),
		Symbols: len(r.syms.table),
		Enums:   len(r.enums),
	}
}

// Close releases enum domains and unmaps all memory. Every *K handed out
// becomes invalid.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	for name, dom := range r.enums {
		r.unrefLocked(dom)
		delete(r.enums, name)
	}
	if r.arena.objects > 0 {
		r.log.Warn("closing runtime with live objects",
			"objects", r.arena.objects,
			"bytes", r.arena.bytes)
	}
	r.closed = true
	err := r.arena.close()
	if serr := r.syms.close(); err == nil {
		err = serr
	}
	r.log.Debug("runtime closed")
	return err
}

func (r *Runtime) allocLocked(size int) (*k.K, error) {
	if r.closed {
		return nil, ErrClosed
	}
	chunks := len(r.arena.chunks)
	raw, err := r.arena.alloc(size)
	if err != nil {
		return nil, err
	}
	if len(r.arena.chunks) != chunks {
		r.log.Debug("mapped chunk", "chunks", len(r.arena.chunks), "size", r.arena.chunkSize)
	}
	return raw, nil
}

func (r *Runtime) listLocked(t k.Type, n int64) (*k.K, error) {
	if !t.IsList() {
		return nil, fmt.Errorf("%w: %d is not a list type", ErrBadType, t)
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative list length %d", ErrLength, n)
	}
	raw, err := r.allocLocked(listSize(t, n))
	if err != nil {
		return nil, err
	}
	raw.T = t
	raw.SetN(n)
	return raw, nil
}

// NewAtom allocates a zeroed atom of tag t.
func (r *Runtime) NewAtom(t k.Type) (*k.K, error) {
	switch {
	case t == k.TypeGUIDAtom:
		return r.NewGUID([16]byte{})
	case t == k.TypeSymbolAtom:
		return r.NewSymbol("")
	case t == k.TypeNull:
		return r.NewNull()
	case !t.IsAtom():
		return nil, fmt.Errorf("%w: %d is not an atom type", ErrBadType, t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, err := r.allocLocked(k.Size)
	if err != nil {
		return nil, err
	}
	raw.T = t
	return raw, nil
}

// NewList allocates a zeroed list of n elements.
func (r *Runtime) NewList(t k.Type, n int64) (*k.K, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listLocked(t, n)
}

// NewGUID allocates a GUID atom, laid out as a one-element list.
func (r *Runtime) NewGUID(g [16]byte) (*k.K, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, err := r.allocLocked(k.ListDataOffset + 16)
	if err != nil {
		return nil, err
	}
	raw.T = k.TypeGUIDAtom
	raw.SetN(1)
	*k.CastWide[[16]byte](raw) = g
	return raw, nil
}

// NewSymbol interns s and wraps it in a symbol atom.
func (r *Runtime) NewSymbol(s string) (*k.K, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.internLocked(s)
	if err != nil {
		return nil, err
	}
	raw, err := r.allocLocked(k.Size)
	if err != nil {
		return nil, err
	}
	raw.T = k.TypeSymbolAtom
	*k.Cast[*byte](raw) = p
	return raw, nil
}

// NewString allocates a char list holding a copy of s.
func (r *Runtime) NewString(s string) (*k.K, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, err := r.listLocked(k.TypeString, int64(len(s)))
	if err != nil {
		return nil, err
	}
	copy(k.BytesView(raw), s)
	return raw, nil
}

// NewError builds an error value. The message is interned, so it outlives
// the record like the static strings krr expects. It returns nil if the
// runtime cannot allocate.
func (r *Runtime) NewError(msg string) *k.K {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.internLocked(msg)
	if err != nil {
		return nil
	}
	raw, err := r.allocLocked(k.Size)
	if err != nil {
		return nil
	}
	raw.T = k.TypeError
	*k.Cast[*byte](raw) = p
	return raw
}

// NewNull allocates the general null.
func (r *Runtime) NewNull() (*k.K, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, err := r.allocLocked(k.Size)
	if err != nil {
		return nil, err
	}
	raw.T = k.TypeNull
	return raw, nil
}

// count is the logical length used by NewDict and Flip.
func count(raw *k.K) int64 {
	switch {
	case raw.T == k.TypeTable:
		cols := k.Children(k.Target(raw))[1]
		if cols.T == k.TypeCompoundList {
			if kids := k.Children(cols); len(kids) > 0 {
				return count(kids[0])
			}
			return 0
		}
		return count(cols)
	case raw.T.IsDict():
		return count(k.Children(raw)[0])
	case raw.T.IsList():
		return raw.N()
	}
	return 1
}

func listLike(raw *k.K) bool {
	return raw != nil && (raw.T.IsList() || raw.T == k.TypeTable)
}

// NewDict pairs keys and values. It consumes both arguments, also on failure.
func (r *Runtime) NewDict(keys, values *k.K) (*k.K, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fail := func(err error) (*k.K, error) {
		r.unrefLocked(keys)
		r.unrefLocked(values)
		return nil, err
	}
	if !listLike(keys) || !listLike(values) {
		return fail(fmt.Errorf("%w: dictionary keys and values must be lists", ErrBadType))
	}
	if count(keys) != count(values) {
		return fail(fmt.Errorf("%w: %d keys, %d values", ErrLength, count(keys), count(values)))
	}
	raw, err := r.listLocked(k.TypeCompoundList, 2)
	if err != nil {
		return fail(err)
	}
	raw.T = k.TypeDict
	kids := k.Children(raw)
	kids[0], kids[1] = keys, values
	return raw, nil
}

// Flip turns a dictionary of symbol keys to equal-length columns into a
// table. It consumes dict, also on failure.
func (r *Runtime) Flip(dict *k.K) (*k.K, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fail := func(err error) (*k.K, error) {
		r.unrefLocked(dict)
		return nil, err
	}
	if dict == nil || !dict.T.IsDict() {
		return fail(fmt.Errorf("%w: flip needs a dictionary", ErrBadType))
	}
	kids := k.Children(dict)
	if kids[0].T != k.TypeSymbolList {
		return fail(fmt.Errorf("%w: table columns must be named by symbols", ErrBadType))
	}
	if cols := kids[1]; cols.T == k.TypeCompoundList {
		var rows int64 = -1
		for _, col := range k.Children(cols) {
			if !col.T.IsList() {
				return fail(fmt.Errorf("%w: table columns must be lists", ErrBadType))
			}
			if rows >= 0 && col.N() != rows {
				return fail(fmt.Errorf("%w: column lengths differ", ErrLength))
			}
			rows = col.N()
		}
	} else if !cols.T.IsSimpleList() || kids[0].N() != 1 {
		return fail(fmt.Errorf("%w: table columns must be lists", ErrBadType))
	}
	raw, err := r.allocLocked(k.Size)
	if err != nil {
		return fail(err)
	}
	raw.T = k.TypeTable
	*k.Cast[*k.K](raw) = dict
	return raw, nil
}

// Ref increments raw's reference count.
func (r *Runtime) Ref(raw *k.K) *k.K {
	if raw == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	raw.R++
	return raw
}

// Unref drops one reference, freeing raw and releasing its children when it
// was the last one.
func (r *Runtime) Unref(raw *k.K) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unrefLocked(raw)
}

func (r *Runtime) unrefLocked(raw *k.K) {
	if raw == nil || r.closed {
		return
	}
	if raw.R > 0 {
		raw.R--
		return
	}
	switch {
	case raw.T == k.TypeCompoundList, raw.T.IsDict():
		for _, child := range k.Children(raw) {
			r.unrefLocked(child)
		}
	case raw.T == k.TypeTable:
		r.unrefLocked(k.Target(raw))
	}
	if err := r.arena.release(raw); err != nil {
		r.log.Error("release failed", "error", err)
	}
}

// PinSymbols hands out the symbol pin. Only one pin may be held at a time.
//
// The interner is guarded by the runtime mutex, so Intern is safe from any
// goroutine whether or not a pin is held. Helper goroutines that should
// only intern while a batch owns the pin call InternPinned with it.
func (r *Runtime) PinSymbols() (*k.SymbolPin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if r.pin != nil {
		return nil, k.ErrPinned
	}
	var pin *k.SymbolPin
	pin = k.NewSymbolPin(func() {
		r.mu.Lock()
		if r.pin == pin {
			r.pin = nil
		}
		r.mu.Unlock()
		r.log.Debug("symbols unpinned")
	})
	r.pin = pin
	r.log.Debug("symbols pinned")
	return pin, nil
}

// Pinned reports whether a symbol pin is currently held.
func (r *Runtime) Pinned() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pin != nil
}
