// Package codec reads and writes values as YAML/JSON descriptors and
// computes their canonical form and content hash.
//
// A descriptor names its type and carries its payload:
//
//	type: long
//	list: [1, 2, 0N]
//
//	type: table
//	order: [sym, px]
//	columns:
//	  sym: {type: symbol, list: [a, b]}
//	  px: {type: float, list: [1.5, 2.25]}
//
// Decode validates shapes through the kval constructors, so a descriptor
// that decodes always describes a well-formed value.
package codec
