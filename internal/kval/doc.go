// Package kval is the typed view of runtime objects.
//
// FromK classifies a *k.K by its tag into a Value: one of the scalar
// variants (atom or list), Enum, Char, String, ErrorValue, Null,
// CompoundList, Dict, Table or Foreign. Simple lists and strings read from
// the runtime alias its memory; Clone detaches them. ToK goes the other way
// and allocates through a k.Runtime.
//
// The structural operations (Join, ToList, ToCompoundList, Table.GetColumn,
// Table.GetRow) never mutate their inputs and return *Error values whose
// Message is the text handed back to the q process.
package kval
