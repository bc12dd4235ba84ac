package k

import (
	"errors"
	"strings"
	"sync"
)

// Runtime is the set of primitives the host process provides for building
// and releasing K objects. Every *K crossing the boundary is allocated here.
//
// Ownership follows the C API: NewDict consumes keys and values, Flip
// consumes its dictionary, and both consume their arguments on failure too.
type Runtime interface {
	// NewAtom allocates an atom of tag t with a zeroed payload (ka).
	NewAtom(t Type) (*K, error)
	// NewList allocates a list of tag t with n zeroed elements (ktn).
	NewList(t Type, n int64) (*K, error)
	// NewGUID allocates a GUID atom (ku).
	NewGUID(g [16]byte) (*K, error)
	// NewSymbol interns s and allocates a symbol atom (ks).
	NewSymbol(s string) (*K, error)
	// NewString allocates a char list holding s (kpn).
	NewString(s string) (*K, error)
	// NewEnum allocates an enum atom indexing the named symbol list.
	NewEnum(source string, index int64) (*K, error)
	// NewDict pairs keys and values into a dictionary (xD).
	NewDict(keys, values *K) (*K, error)
	// Flip turns a column dictionary into a table (xT).
	Flip(dict *K) (*K, error)
	// NewError builds the runtime's error value (krr).
	NewError(msg string) *K
	// NewNull allocates the general null (::).
	NewNull() (*K, error)
	// Intern returns the canonical NUL-terminated pointer for s (ss).
	Intern(s string) (*byte, error)
	// Ref increments raw's reference count (r1).
	Ref(raw *K) *K
	// Unref decrements raw's reference count, freeing it at zero (r0).
	Unref(raw *K)
	// PinSymbols lets non-main goroutines intern durably until released (setm).
	PinSymbols() (*SymbolPin, error)
}

var (
	// ErrPinned is returned by PinSymbols while another holder owns the pin.
	ErrPinned = errors.New("symbol pin already held")
	// ErrNotPinned is returned when interning under a pin that is not held.
	ErrNotPinned = errors.New("symbol pin not held")
)

// SymbolPin is the guard returned by Runtime.PinSymbols.
// Release must be called once the helper goroutines have joined.
type SymbolPin struct {
	once    sync.Once
	release func()
}

// NewSymbolPin wraps a release callback. Runtime implementations use it.
func NewSymbolPin(release func()) *SymbolPin {
	return &SymbolPin{release: release}
}

// Release clears the pin. Calling it more than once is harmless.
func (p *SymbolPin) Release() {
	if p == nil {
		return
	}
	p.once.Do(func() {
		if p.release != nil {
			p.release()
		}
	})
}

// CString returns msg with the NUL terminator the runtime expects on error
// text. Interior NULs truncate the message.
func CString(msg string) string {
	if i := strings.IndexByte(msg, 0); i >= 0 {
		msg = msg[:i]
	}
	return msg + "\x00"
}
