package k

import "fmt"

// Type is the signed tag stored in K.T.
// Negative tags are atoms, 0 is a compound list, 1..20 are simple lists.
type Type int8

const (
	TypeError Type = -128

	TypeEnumAtom      Type = -20
	TypeTimeAtom      Type = -19
	TypeSecondAtom    Type = -18
	TypeMinuteAtom    Type = -17
	TypeTimespanAtom  Type = -16
	TypeDatetimeAtom  Type = -15
	TypeDateAtom      Type = -14
	TypeMonthAtom     Type = -13
	TypeTimestampAtom Type = -12
	TypeSymbolAtom    Type = -11
	TypeChar          Type = -10
	TypeFloatAtom     Type = -9
	TypeRealAtom      Type = -8
	TypeLongAtom      Type = -7
	TypeIntAtom       Type = -6
	TypeShortAtom     Type = -5
	TypeByteAtom      Type = -4
	TypeGUIDAtom      Type = -2
	TypeBoolAtom      Type = -1

	TypeCompoundList  Type = 0
	TypeBoolList      Type = 1
	TypeGUIDList      Type = 2
	TypeByteList      Type = 4
	TypeShortList     Type = 5
	TypeIntList       Type = 6
	TypeLongList      Type = 7
	TypeRealList      Type = 8
	TypeFloatList     Type = 9
	TypeString        Type = 10
	TypeSymbolList    Type = 11
	TypeTimestampList Type = 12
	TypeMonthList     Type = 13
	TypeDateList      Type = 14
	TypeDatetimeList  Type = 15
	TypeTimespanList  Type = 16
	TypeMinuteList    Type = 17
	TypeSecondList    Type = 18
	TypeTimeList      Type = 19
	TypeEnumList      Type = 20

	TypeTable      Type = 98
	TypeDict       Type = 99
	TypeNull       Type = 101
	TypeForeign    Type = 112
	TypeSortedDict Type = 127
)

var typeNames = map[Type]string{
	TypeBoolList:      "boolean",
	TypeGUIDList:      "guid",
	TypeByteList:      "byte",
	TypeShortList:     "short",
	TypeIntList:       "int",
	TypeLongList:      "long",
	TypeRealList:      "real",
	TypeFloatList:     "float",
	TypeString:        "char",
	TypeSymbolList:    "symbol",
	TypeTimestampList: "timestamp",
	TypeMonthList:     "month",
	TypeDateList:      "date",
	TypeDatetimeList:  "datetime",
	TypeTimespanList:  "timespan",
	TypeMinuteList:    "minute",
	TypeSecondList:    "second",
	TypeTimeList:      "time",
	TypeEnumList:      "enum",
}

// elemSizes holds the width in bytes of one element of each list tag.
var elemSizes = [...]int{
	TypeCompoundList:  8,
	TypeBoolList:      1,
	TypeGUIDList:      16,
	3:                 0,
	TypeByteList:      1,
	TypeShortList:     2,
	TypeIntList:       4,
	TypeLongList:      8,
	TypeRealList:      4,
	TypeFloatList:     8,
	TypeString:        1,
	TypeSymbolList:    8,
	TypeTimestampList: 8,
	TypeMonthList:     4,
	TypeDateList:      4,
	TypeDatetimeList:  8,
	TypeTimespanList:  8,
	TypeMinuteList:    4,
	TypeSecondList:    4,
	TypeTimeList:      4,
	TypeEnumList:      8,
}

// IsAtom reports whether t tags a scalar atom (excluding errors).
func (t Type) IsAtom() bool {
	return t < 0 && t >= TypeEnumAtom && t != -3
}

// IsList reports whether t tags a compound or simple list.
func (t Type) IsList() bool {
	return t >= TypeCompoundList && t <= TypeEnumList && t != 3
}

// IsSimpleList reports whether t tags a list of one uniform scalar type.
func (t Type) IsSimpleList() bool {
	return t > TypeCompoundList && t.IsList()
}

// IsDict reports whether t tags a dictionary, sorted or not.
func (t Type) IsDict() bool {
	return t == TypeDict || t == TypeSortedDict
}

// ListOf returns the list tag for an atom tag. Other tags are returned unchanged.
func (t Type) ListOf() Type {
	if t.IsAtom() {
		return -t
	}
	return t
}

// AtomOf returns the atom tag for a simple list tag. Other tags are returned unchanged.
func (t Type) AtomOf() Type {
	if t.IsSimpleList() {
		return -t
	}
	return t
}

// ElemSize returns the width of one element of list tag t, or 0 for tags
// that are not lists.
func (t Type) ElemSize() int {
	if !t.IsList() {
		return 0
	}
	return elemSizes[t]
}

// Char returns the q type character ("j" for long, "s" for symbol...).
func (t Type) Char() byte {
	const chars = " bg xhijefcspmdznuvt"
	l := t.ListOf()
	if l > TypeCompoundList && int(l) < len(chars) {
		if t.IsAtom() {
			return chars[l]
		}
		return chars[l] - 'a' + 'A'
	}
	return ' '
}

// String returns a readable name such as "long", "long list" or "table".
func (t Type) String() string {
	switch {
	case t == TypeError:
		return "error"
	case t == TypeCompoundList:
		return "compound list"
	case t == TypeTable:
		return "table"
	case t == TypeDict:
		return "dictionary"
	case t == TypeSortedDict:
		return "sorted dictionary"
	case t == TypeNull:
		return "null"
	case t == TypeForeign:
		return "foreign"
	case t == TypeString:
		return "string"
	case t.IsAtom():
		return typeNames[-t]
	case t.IsSimpleList():
		return typeNames[t] + " list"
	}
	return fmt.Sprintf("type(%d)", int8(t))
}

// ParseType resolves an atom name ("long", "symbol") to its atom tag.
func ParseType(name string) (Type, bool) {
	for t, n := range typeNames {
		if n == name {
			return -t, true
		}
	}
	return 0, false
}
