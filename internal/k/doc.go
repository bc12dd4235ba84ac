// Package k describes the raw K object shared with a q/kdb+ process.
//
// Everything here mirrors the runtime's ABI exactly:
//   - K is the 24-byte record {m, a, t, u, r, union[16]}
//   - list length n lives at union offset 0, list elements start at union offset 8
//   - a GUID atom is a one-element list, so its payload also starts at offset 8
//   - a table's union holds a pointer to its dictionary
//   - a dictionary is a two-element list of K pointers (keys, values)
//
// The package imports nothing internal. Allocation, interning and reference
// counting belong to whatever implements Runtime; higher layers only read and
// write memory the runtime handed them.
package k
