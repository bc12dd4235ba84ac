// Package heap is an in-process implementation of k.Runtime.
//
// K objects live in mmap'd chunks outside the Go heap, the same way the q
// allocator hands out memory: blocks come in power-of-two size classes, the
// class index is kept in the record's M byte, and freed blocks go back on a
// per-class free list. Reference counts follow q exactly (R == 0 is one
// owner; Unref at zero frees the block and releases its children).
//
// Symbols are interned into append-only memory that is never returned, so a
// symbol pointer stays valid for the life of the Runtime. Enumeration
// domains are registered with DefineEnum and checked by NewEnum.
//
// The package also speaks the q IPC byte format (Serialize/Deserialize) so
// values can be persisted and reloaded without a q process.
package heap
