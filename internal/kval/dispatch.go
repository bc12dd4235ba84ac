package kval

import (
	"unsafe"

	"github.com/google/uuid"

	"github.com/roach88/kbind/internal/k"
)

type reader func(raw *k.K) Value

// readers maps every scalar atom and list tag to its reader. Symbols and
// GUID atoms need layout-specific readers and override the generic ones.
var readers = map[k.Type]reader{}

func register[T Scalar, Q kind]() {
	t := atomTypeOf[Q]()
	readers[t] = func(raw *k.K) Value {
		return Typed[T, Q]{Atom(*k.Cast[T](raw))}
	}
	readers[-t] = func(raw *k.K) Value {
		return Typed[T, Q]{borrow(k.Slice[T](raw))}
	}
}

func init() {
	register[bool, boolKind]()
	register[uuid.UUID, guidKind]()
	register[uint8, byteKind]()
	register[int16, shortKind]()
	register[int32, intKind]()
	register[int64, longKind]()
	register[float32, realKind]()
	register[float64, floatKind]()
	register[int64, timestampKind]()
	register[int32, monthKind]()
	register[int32, dateKind]()
	register[float64, datetimeKind]()
	register[int64, timespanKind]()
	register[int32, minuteKind]()
	register[int32, secondKind]()
	register[int32, timeKind]()

	readers[k.TypeGUIDAtom] = func(raw *k.K) Value {
		return GUID{Atom(*k.CastWide[uuid.UUID](raw))}
	}
	// Symbols are interned pointers the runtime may move or drop after the
	// call returns, so they are copied out immediately.
	readers[k.TypeSymbolAtom] = func(raw *k.K) Value {
		return Symbol{Atom(k.GoString(*k.Cast[*byte](raw)))}
	}
	readers[k.TypeSymbolList] = func(raw *k.K) Value {
		ptrs := k.Slice[*byte](raw)
		out := make([]string, len(ptrs))
		for i, p := range ptrs {
			out[i] = k.GoString(p)
		}
		return Symbol{List(out...)}
	}
}

// FromK classifies raw by its tag and wraps it without copying wherever the
// layout allows. Lists and strings in the result alias raw's memory, so raw
// must outlive the Value (or the Value must be Cloned).
//
// enumSource is attached to every enum found at the top level or inside
// compound lists. A nil raw, the general null, and any unknown tag all
// return Null; use k.IsNil first to tell a nil pointer apart.
func FromK(raw *k.K, enumSource string) Value {
	if raw == nil {
		return Null{}
	}
	t := raw.T
	if read, ok := readers[t]; ok {
		return read(raw)
	}
	switch t {
	case k.TypeError:
		return ErrorValue(k.GoString(*k.Cast[*byte](raw)))
	case k.TypeEnumAtom:
		return Enum{Data: Atom(*k.Cast[int64](raw)), Source: enumSource}
	case k.TypeEnumList:
		return Enum{Data: borrow(k.Slice[int64](raw)), Source: enumSource}
	case k.TypeChar:
		return Char(*k.Cast[byte](raw))
	case k.TypeString:
		b := k.BytesView(raw)
		if len(b) == 0 {
			return String("")
		}
		return String(unsafe.String(&b[0], len(b)))
	case k.TypeCompoundList:
		kids := k.Children(raw)
		out := make(CompoundList, len(kids))
		for i, child := range kids {
			out[i] = FromK(child, enumSource)
		}
		return out
	case k.TypeDict, k.TypeSortedDict:
		return newDictFromK(raw)
	case k.TypeTable:
		return newTableFromK(raw)
	case k.TypeForeign:
		return Foreign{raw: raw}
	}
	return Null{}
}
