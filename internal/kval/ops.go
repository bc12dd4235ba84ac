package kval

// Join returns base followed by other as a new owned value.
//
// Two compound lists concatenate. Two scalar values of the same variant
// concatenate into a list, an atom counting as a one-element list. Enum
// joins keep base's source when it has one, else take other's. Every other
// pairing, including any mix of compound and simple, is a type mismatch:
// convert with ToCompoundList first to combine heterogeneous data. A Foreign
// operand fails as unimplemented.
func Join(base, other Value) (Value, error) {
	const op = "join"
	mismatch := newError(ErrCodeTypeMismatch, op, "not a list or types do not match")

	_, bf := base.(Foreign)
	_, of := other.(Foreign)
	if bf || of {
		return nil, newError(ErrCodeUnimplemented, op, "foreign objects are not supported")
	}

	switch b := base.(type) {
	case CompoundList:
		o, ok := other.(CompoundList)
		if !ok {
			return nil, mismatch
		}
		out := make(CompoundList, 0, len(b)+len(o))
		for _, item := range b {
			out = append(out, Clone(item))
		}
		for _, item := range o {
			out = append(out, Clone(item))
		}
		return out, nil
	case simple:
		if joined, ok := b.concat(other); ok {
			return joined, nil
		}
	}
	return nil, mismatch
}

// ToList lifts an atom to a one-element list of the same variant. Lists
// and compound lists are returned unchanged; strings are rejected.
func ToList(v Value) (Value, error) {
	switch x := v.(type) {
	case CompoundList:
		return x, nil
	case simple:
		if x.IsList() {
			return x, nil
		}
		return x.promote(), nil
	case Foreign:
		return nil, newError(ErrCodeUnimplemented, "to_list", "foreign objects are not supported")
	}
	return nil, newError(ErrCodeTypeMismatch, "to_list", "invalid type, expected an atom or a list")
}

// ToCompoundList turns a simple list into a compound list of atoms of the
// same variant. A compound list is returned unchanged, a string becomes a
// list of chars, and an enum list must carry its source.
func ToCompoundList(v Value) (Value, error) {
	const op = "to_compound_list"
	switch x := v.(type) {
	case CompoundList:
		return x, nil
	case String:
		return CompoundList(x.explode()), nil
	case simple:
		if x.IsList() {
			items, err := x.explode(op)
			if err != nil {
				return nil, err
			}
			return CompoundList(items), nil
		}
	case Foreign:
		return nil, newError(ErrCodeUnimplemented, op, "foreign objects are not supported")
	}
	return nil, newError(ErrCodeTypeMismatch, op, "self is not a simple list")
}
