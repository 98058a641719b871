// Package mapstore implements the pluggable persistence layer between a
// partition record store and its external backing store.
//
// # Store modes
//
// A MapDataStore comes in three tagged variants, distinguished by Mode and
// never by instance identity:
//
//   - ModeNone: no backing store is configured. Every operation is a no-op
//     and loads always miss. Callers may check the tag to skip work early.
//   - ModeWriteThrough: every add and remove reaches the Backend
//     synchronously before the in-memory write is acknowledged.
//   - ModeWriteBehind: adds and removes are buffered and drained to the
//     Backend after a configured delay, by an explicit Flush, or when the
//     buffer exceeds its batch cap. Transient entries are tracked in the
//     buffer but never persisted.
//
// # Backend
//
// Backend is the contract the actual durable store implements. The package
// ships FakeBackend, an in-memory implementation for tests and local use,
// and FileBackend, a JSON-file store used by the demo binary.
//
// The record store's partition writer and the write-behind flusher both
// touch a write-behind buffer, so the buffer is mutex guarded. The no-store
// and write-through variants hold no shared state beyond the Backend itself.
package mapstore
