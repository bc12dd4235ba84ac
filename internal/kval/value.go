package kval

import (
	"github.com/google/uuid"

	"github.com/roach88/kbind/internal/k"
)

// Value is a q value. The set of implementations is closed: the typed
// scalars (Bool through Time), Enum, Char, String, ErrorValue, Null,
// CompoundList, Dict, Table and Foreign.
type Value interface {
	// Type returns the q type tag the value converts to.
	Type() k.Type
	// Len follows q's count: 1 for atoms, errors and null, elements for
	// lists, characters for strings, keys for dictionaries, rows for tables.
	Len() int64
	IsList() bool
	IsAtom() bool
	// String renders the value in q syntax.
	String() string

	toK(rt k.Runtime) (*k.K, error)
	clone() Value
	equal(o Value) bool
}

// simple is implemented by the variants backed by Data: the typed scalars
// and Enum.
type simple interface {
	Value
	promote() Value
	concat(o Value) (Value, bool)
	explode(op string) ([]Value, error)
	index(i int64) (Value, bool)
}

// Scalar lists the Go element types that share a bit layout with a q type.
type Scalar interface {
	~bool | ~uint8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64 | ~string | ~[16]byte
}

// kind binds a Typed instantiation to its q atom tag.
type kind interface {
	atomType() k.Type
}

type (
	boolKind      struct{}
	guidKind      struct{}
	byteKind      struct{}
	shortKind     struct{}
	intKind       struct{}
	longKind      struct{}
	realKind      struct{}
	floatKind     struct{}
	symbolKind    struct{}
	timestampKind struct{}
	monthKind     struct{}
	dateKind      struct{}
	datetimeKind  struct{}
	timespanKind  struct{}
	minuteKind    struct{}
	secondKind    struct{}
	timeKind      struct{}
)

func (boolKind) atomType() k.Type      { return k.TypeBoolAtom }
func (guidKind) atomType() k.Type      { return k.TypeGUIDAtom }
func (byteKind) atomType() k.Type      { return k.TypeByteAtom }
func (shortKind) atomType() k.Type     { return k.TypeShortAtom }
func (intKind) atomType() k.Type       { return k.TypeIntAtom }
func (longKind) atomType() k.Type      { return k.TypeLongAtom }
func (realKind) atomType() k.Type      { return k.TypeRealAtom }
func (floatKind) atomType() k.Type     { return k.TypeFloatAtom }
func (symbolKind) atomType() k.Type    { return k.TypeSymbolAtom }
func (timestampKind) atomType() k.Type { return k.TypeTimestampAtom }
func (monthKind) atomType() k.Type     { return k.TypeMonthAtom }
func (dateKind) atomType() k.Type      { return k.TypeDateAtom }
func (datetimeKind) atomType() k.Type  { return k.TypeDatetimeAtom }
func (timespanKind) atomType() k.Type  { return k.TypeTimespanAtom }
func (minuteKind) atomType() k.Type    { return k.TypeMinuteAtom }
func (secondKind) atomType() k.Type    { return k.TypeSecondAtom }
func (timeKind) atomType() k.Type      { return k.TypeTimeAtom }

// Typed is the one implementation behind every scalar variant. T is the
// element type and Q pins the q tag, so Long and Timestamp (both int64) are
// distinct types that never join.
type Typed[T Scalar, Q kind] struct {
	Data[T]
}

// The scalar variants. Temporal payloads use q's epoch (2000.01.01):
// Timestamp and Timespan are nanoseconds, Month is months, Date is days,
// Datetime is fractional days, Minute minutes, Second seconds, Time
// milliseconds.
type (
	Bool      = Typed[bool, boolKind]
	GUID      = Typed[uuid.UUID, guidKind]
	Byte      = Typed[uint8, byteKind]
	Short     = Typed[int16, shortKind]
	Int       = Typed[int32, intKind]
	Long      = Typed[int64, longKind]
	Real      = Typed[float32, realKind]
	Float     = Typed[float64, floatKind]
	Symbol    = Typed[string, symbolKind]
	Timestamp = Typed[int64, timestampKind]
	Month     = Typed[int32, monthKind]
	Date      = Typed[int32, dateKind]
	Datetime  = Typed[float64, datetimeKind]
	Timespan  = Typed[int64, timespanKind]
	Minute    = Typed[int32, minuteKind]
	Second    = Typed[int32, secondKind]
	Time      = Typed[int32, timeKind]
)

func atomTypeOf[Q kind]() k.Type {
	var q Q
	return q.atomType()
}

func (v Typed[T, Q]) Type() k.Type {
	if v.isList {
		return -atomTypeOf[Q]()
	}
	return atomTypeOf[Q]()
}

func (v Typed[T, Q]) String() string { return formatTyped(atomTypeOf[Q](), v.Data) }

func (v Typed[T, Q]) clone() Value { return Typed[T, Q]{v.Data.Clone()} }

func (v Typed[T, Q]) equal(o Value) bool {
	ov, ok := o.(Typed[T, Q])
	return ok && v.Data.equal(ov.Data, same[T])
}

func (v Typed[T, Q]) promote() Value { return Typed[T, Q]{v.Data.ToList()} }

func (v Typed[T, Q]) concat(o Value) (Value, bool) {
	ov, ok := o.(Typed[T, Q])
	if !ok {
		return nil, false
	}
	return Typed[T, Q]{v.Data.Append(ov.Data)}, true
}

func (v Typed[T, Q]) explode(string) ([]Value, error) {
	out := make([]Value, len(v.list))
	for i, x := range v.list {
		out[i] = Typed[T, Q]{Atom(x)}
	}
	return out, nil
}

func (v Typed[T, Q]) index(i int64) (Value, bool) {
	x, ok := v.At(i)
	if !ok {
		return nil, false
	}
	return Typed[T, Q]{Atom(x)}, true
}

// same is == except that NaN (q's float null) equals itself.
func same[T comparable](a, b T) bool {
	return a == b || (a != a && b != b)
}

// Enum holds indices into a named symbol list. Source is "" when unknown.
type Enum struct {
	Data[int64]
	Source string
}

func (v Enum) Type() k.Type {
	if v.isList {
		return k.TypeEnumList
	}
	return k.TypeEnumAtom
}

func (v Enum) String() string { return formatEnum(v) }

func (v Enum) clone() Value { return Enum{Data: v.Data.Clone(), Source: v.Source} }

func (v Enum) equal(o Value) bool {
	ov, ok := o.(Enum)
	return ok && v.Source == ov.Source && v.Data.equal(ov.Data, same[int64])
}

func (v Enum) promote() Value { return Enum{Data: v.Data.ToList(), Source: v.Source} }

func (v Enum) concat(o Value) (Value, bool) {
	ov, ok := o.(Enum)
	if !ok {
		return nil, false
	}
	src := v.Source
	if src == "" {
		src = ov.Source
	}
	return Enum{Data: v.Data.Append(ov.Data), Source: src}, true
}

func (v Enum) explode(op string) ([]Value, error) {
	if v.Source == "" {
		return nil, newError(ErrCodeMissingEnumSource, op, "Enum list must have exactly one source per atom")
	}
	out := make([]Value, len(v.list))
	for i, x := range v.list {
		out[i] = Enum{Data: Atom(x), Source: v.Source}
	}
	return out, nil
}

func (v Enum) index(i int64) (Value, bool) {
	x, ok := v.At(i)
	if !ok {
		return nil, false
	}
	return Enum{Data: Atom(x), Source: v.Source}, true
}

// Char is a single character atom.
type Char byte

func (Char) Type() k.Type         { return k.TypeChar }
func (Char) Len() int64           { return 1 }
func (Char) IsList() bool         { return false }
func (Char) IsAtom() bool         { return true }
func (c Char) String() string     { return quote(string([]byte{byte(c)})) }
func (c Char) clone() Value       { return c }
func (c Char) equal(o Value) bool { return o == Value(c) }

// String is a char list. When dispatched from runtime memory it aliases
// that memory; Clone detaches it.
type String string

func (String) Type() k.Type     { return k.TypeString }
func (s String) Len() int64     { return int64(len(s)) }
func (String) IsList() bool     { return true }
func (String) IsAtom() bool     { return false }
func (s String) String() string { return formatString(string(s)) }
func (s String) clone() Value   { return String(cloneString(string(s))) }

func (s String) equal(o Value) bool {
	os, ok := o.(String)
	return ok && s == os
}

func (s String) index(i int64) (Value, bool) {
	if i < 0 || i >= int64(len(s)) {
		return nil, false
	}
	return Char(s[i]), true
}

func (s String) explode() []Value {
	out := make([]Value, len(s))
	for i := range len(s) {
		out[i] = Char(s[i])
	}
	return out
}

// ErrorValue is the runtime's error object (type -128).
type ErrorValue string

func (ErrorValue) Type() k.Type         { return k.TypeError }
func (ErrorValue) Len() int64           { return 1 }
func (ErrorValue) IsList() bool         { return false }
func (ErrorValue) IsAtom() bool         { return false }
func (e ErrorValue) String() string     { return "'" + string(e) }
func (e ErrorValue) clone() Value       { return e }
func (e ErrorValue) equal(o Value) bool { return o == Value(e) }

// Null is the general null (::). A nil K pointer and any tag this package
// does not recognise also dispatch to Null.
type Null struct{}

func (Null) Type() k.Type   { return k.TypeNull }
func (Null) Len() int64     { return 1 }
func (Null) IsList() bool   { return false }
func (Null) IsAtom() bool   { return false }
func (Null) String() string { return "::" }
func (Null) clone() Value   { return Null{} }

func (Null) equal(o Value) bool {
	_, ok := o.(Null)
	return ok
}

// CompoundList is a general list whose elements are independent values.
type CompoundList []Value

func (CompoundList) Type() k.Type     { return k.TypeCompoundList }
func (l CompoundList) Len() int64     { return int64(len(l)) }
func (CompoundList) IsList() bool     { return true }
func (CompoundList) IsAtom() bool     { return false }
func (l CompoundList) String() string { return formatCompound(l) }

func (l CompoundList) clone() Value {
	out := make(CompoundList, len(l))
	for i, v := range l {
		out[i] = Clone(v)
	}
	return out
}

func (l CompoundList) equal(o Value) bool {
	ol, ok := o.(CompoundList)
	if !ok || len(l) != len(ol) {
		return false
	}
	for i := range l {
		if !Equal(l[i], ol[i]) {
			return false
		}
	}
	return true
}

// Foreign wraps an opaque runtime object (type 112). Nothing but ToK is
// supported on it; ToK hands back the same object with one more reference.
type Foreign struct {
	raw *k.K
}

// Raw returns the wrapped runtime object.
func (f Foreign) Raw() *k.K { return f.raw }

func (Foreign) Type() k.Type   { return k.TypeForeign }
func (Foreign) Len() int64     { return 1 }
func (Foreign) IsList() bool   { return false }
func (Foreign) IsAtom() bool   { return false }
func (Foreign) String() string { return "foreign" }
func (f Foreign) clone() Value { return f }

func (f Foreign) equal(o Value) bool {
	of, ok := o.(Foreign)
	return ok && of.raw == f.raw
}

// Clone returns a deep copy of v that shares no memory with the runtime.
func Clone(v Value) Value {
	if v == nil {
		return Null{}
	}
	return v.clone()
}

// Equal reports whether a and b hold the same variant and contents,
// ignoring whether either one borrows runtime memory.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.equal(b)
}
