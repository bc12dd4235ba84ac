// Package store provides SQLite-backed storage for named values.
//
// Each entry keeps the value's q IPC message (the bytes -8! would produce)
// next to what a listing needs without decoding it: type, count, q text and
// the codec content hash. Enum domains are stored too and registered with
// the store's runtime when it opens, so enum atoms survive a restart. IPC
// does not carry enum sources, so every entry also records the sources of
// its enums, nested ones by path, and Get puts them back.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Listings are ordered by seq (bumped on every write), then name.
package store
