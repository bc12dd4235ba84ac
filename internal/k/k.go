package k

import "unsafe"

// K is the runtime's value record. Its size and field offsets match the
// C definition exactly; instances only ever live in memory owned by a Runtime.
type K struct {
	_ [0]uint64

	// M is reserved for the allocator.
	M int8
	// A is reserved for the allocator.
	A int8
	// T is the type tag.
	T Type
	// U is the attribute byte (sorted, unique, parted, grouped).
	U uint8
	// R is the reference count; 0 means exactly one owner.
	R int32

	union [16]byte
}

const (
	// HeaderSize is the number of bytes before the union.
	HeaderSize = int(unsafe.Offsetof(K{}.union))
	// Size is the size of an atom record.
	Size = int(unsafe.Sizeof(K{}))
	// ListDataOffset is where list elements begin, relative to the record.
	ListDataOffset = HeaderSize + 8
)

// Attribute values for K.U.
const (
	AttrNone    uint8 = 0
	AttrSorted  uint8 = 1
	AttrUnique  uint8 = 2
	AttrParted  uint8 = 3
	AttrGrouped uint8 = 5
)

// IsNil reports whether raw is a nil pointer. Dispatch maps a nil pointer and
// a genuine general null to the same value, so callers that care must ask first.
func IsNil(raw *K) bool {
	return raw == nil
}

// Cast reinterprets the union at offset 0 as a *T.
// The caller must have checked raw.T; a wrong T reads garbage.
func Cast[T any](raw *K) *T {
	return (*T)(unsafe.Pointer(&raw.union[0]))
}

// CastWide reinterprets the union one word in as a *T. GUID atoms are stored
// as one-element lists, so their 16 bytes sit after the length field.
func CastWide[T any](raw *K) *T {
	return (*T)(unsafe.Pointer(&raw.union[8]))
}

// N returns the element count of a list.
func (raw *K) N() int64 {
	return *Cast[int64](raw)
}

// SetN stores the element count of a list.
func (raw *K) SetN(n int64) {
	*Cast[int64](raw) = n
}

// Slice views the elements of a list as a []T aliasing runtime memory.
func Slice[T any](raw *K) []T {
	n := raw.N()
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&raw.union[8])), n)
}

// Children views a compound list, dictionary or table dictionary as K pointers.
func Children(raw *K) []*K {
	return Slice[*K](raw)
}

// Target returns the dictionary pointer held by a table record.
func Target(raw *K) *K {
	return *Cast[*K](raw)
}

// GoString copies a NUL-terminated runtime string into Go memory.
func GoString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}

// BytesView returns a char list's bytes without copying.
func BytesView(raw *K) []byte {
	return Slice[byte](raw)
}
