package kval

import "slices"

// Data holds either one scalar (an atom) or a run of scalars (a list).
//
// A list may alias memory owned by the runtime. Such a list is borrowed:
// reading it is free, and Mut copies it before handing out a writable slice,
// so nobody else holding the same K object sees it change.
type Data[T any] struct {
	atom     T
	list     []T
	isList   bool
	borrowed bool
}

// Atom returns Data holding the single value v.
func Atom[T any](v T) Data[T] {
	return Data[T]{atom: v}
}

// List returns Data holding vs. The list takes ownership of vs.
func List[T any](vs ...T) Data[T] {
	return Data[T]{list: vs, isList: true}
}

// borrow wraps runtime memory without copying it.
func borrow[T any](vs []T) Data[T] {
	return Data[T]{list: vs, isList: true, borrowed: true}
}

// IsAtom reports whether d holds a single value.
func (d Data[T]) IsAtom() bool { return !d.isList }

// IsList reports whether d holds a list.
func (d Data[T]) IsList() bool { return d.isList }

// Borrowed reports whether d aliases runtime memory.
func (d Data[T]) Borrowed() bool { return d.borrowed }

// Len returns 1 for an atom, else the number of elements.
func (d Data[T]) Len() int64 {
	if !d.isList {
		return 1
	}
	return int64(len(d.list))
}

// Value returns the atom. ok is false for lists.
func (d Data[T]) Value() (v T, ok bool) {
	if d.isList {
		return v, false
	}
	return d.atom, true
}

// Values returns the list elements, or nil for an atom. The slice may alias
// runtime memory and must not be written; use Mut for that.
func (d Data[T]) Values() []T {
	if !d.isList {
		return nil
	}
	return d.list
}

// At returns element i. An atom only has element 0.
func (d Data[T]) At(i int64) (v T, ok bool) {
	if !d.isList {
		if i == 0 {
			return d.atom, true
		}
		return v, false
	}
	if i < 0 || i >= int64(len(d.list)) {
		return v, false
	}
	return d.list[i], true
}

// Mut returns a writable view of a list, copying borrowed memory first.
// It returns nil for an atom; build a new Atom to change one.
func (d *Data[T]) Mut() []T {
	if !d.isList {
		return nil
	}
	if d.borrowed {
		d.list = slices.Clone(d.list)
		d.borrowed = false
	}
	return d.list
}

// ToList lifts an atom to a one-element list. A list is returned unchanged.
func (d Data[T]) ToList() Data[T] {
	if d.isList {
		return d
	}
	return List(d.atom)
}

// Clone returns a copy that owns all of its memory.
func (d Data[T]) Clone() Data[T] {
	if !d.isList {
		return d
	}
	return Data[T]{list: slices.Clone(d.list), isList: true}
}

// Append returns a new owned list holding d's elements followed by o's.
// Atoms count as one-element lists.
func (d Data[T]) Append(o Data[T]) Data[T] {
	a, b := d.ToList().list, o.ToList().list
	out := make([]T, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return List(out...)
}

func (d Data[T]) equal(o Data[T], eq func(a, b T) bool) bool {
	if d.isList != o.isList {
		return false
	}
	if !d.isList {
		return eq(d.atom, o.atom)
	}
	return slices.EqualFunc(d.list, o.list, eq)
}
