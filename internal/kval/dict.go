package kval

import (
	"github.com/roach88/kbind/internal/k"
)

// Dict pairs two equal-length lists. Keys may also be a table (a keyed
// table) when the dictionary came from the runtime.
type Dict struct {
	keys   Value
	values Value
	sorted bool
}

// NewDict validates and builds a dictionary. Both sides must be lists of
// the same length.
func NewDict(keys, values Value) (Dict, error) {
	const op = "new_dict"
	if keys == nil || !keys.IsList() {
		return Dict{}, newError(ErrCodeTypeMismatch, op, "invalid keys, must be a list")
	}
	if values == nil || !values.IsList() {
		return Dict{}, newError(ErrCodeTypeMismatch, op, "invalid values, must be a list")
	}
	if keys.Len() != values.Len() {
		return Dict{}, newError(ErrCodeShapeViolation, op, "invalid dictionary, keys and values must be of equal length")
	}
	return Dict{keys: keys, values: values}, nil
}

// newDictFromK wraps a dictionary the runtime built, so its shape is trusted.
func newDictFromK(raw *k.K) Dict {
	invariant(raw.T.IsDict(), "dictionary dispatch on type %d", raw.T)
	kids := k.Children(raw)
	invariant(len(kids) == 2, "dictionary with %d children", len(kids))
	return Dict{
		keys:   FromK(kids[0], ""),
		values: FromK(kids[1], ""),
		sorted: raw.T == k.TypeSortedDict,
	}
}

// Keys returns the key list.
func (d Dict) Keys() Value { return d.keys }

// Values returns the value list.
func (d Dict) Values() Value { return d.values }

// Sorted reports whether the dictionary carries the sorted tag (127).
func (d Dict) Sorted() bool { return d.sorted }

// AsSorted returns a copy of d tagged as a sorted dictionary.
func (d Dict) AsSorted() Dict {
	d.sorted = true
	return d
}

// Get returns the value stored under the first key equal to key.
func (d Dict) Get(key Value) (Value, bool) {
	keys, err := ToCompoundList(d.keys)
	if err != nil {
		return nil, false
	}
	for i, kv := range keys.(CompoundList) {
		if Equal(kv, key) {
			return elementAt(d.values, int64(i))
		}
	}
	return nil, false
}

func (d Dict) Type() k.Type {
	if d.sorted {
		return k.TypeSortedDict
	}
	return k.TypeDict
}

func (d Dict) Len() int64 {
	if d.keys == nil {
		return 0
	}
	return d.keys.Len()
}

func (Dict) IsList() bool { return false }
func (Dict) IsAtom() bool { return false }

func (d Dict) String() string { return formatDict(d) }

func (d Dict) clone() Value {
	return Dict{keys: Clone(d.keys), values: Clone(d.values), sorted: d.sorted}
}

func (d Dict) equal(o Value) bool {
	od, ok := o.(Dict)
	return ok && d.sorted == od.sorted && Equal(d.keys, od.keys) && Equal(d.values, od.values)
}

// elementAt returns element i of any list-like value as a standalone value.
func elementAt(v Value, i int64) (Value, bool) {
	switch l := v.(type) {
	case CompoundList:
		if i < 0 || i >= int64(len(l)) {
			return nil, false
		}
		return l[i], true
	case String:
		return l.index(i)
	case simple:
		return l.index(i)
	}
	return nil, false
}
