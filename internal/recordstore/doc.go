// Package recordstore implements the authoritative in-memory record store
// for one partition of a distributed map. It is the component that keeps
// persistence, expiration, locking, indexing, and merge conflict resolution
// mutually consistent under a single-writer-per-partition execution model.
//
// # Composition
//
// A RecordStore owns nothing but its Storage. Everything else is injected:
//
//   - mapstore.MapDataStore: the persistence strategy (none, write-through,
//     write-behind) shared by all partitions of the map.
//   - locks.LockStore: the per-key lock manager for this partition's
//     namespace. The record store never locks on its own behalf; it
//     forwards queries and skips locked keys in clear and evict-all sweeps.
//   - index.Registry: the secondary-index engine, fed add and remove events
//     on every mutation.
//   - loader.KeyLoader: the asynchronous bulk-load subsystem.
//   - eviction.Evictor: the pressure gate consulted before admitting
//     loaded records.
//   - interceptor.Chain: the get/put/remove hooks applied at the
//     serialization boundary.
//
// # Concurrency
//
// All mutations run on the partition's single logical writer, enforced by
// the surrounding execution framework, so Storage and the records carry no
// locking. Bulk loads respect that model: fetch goroutines only read the
// backing store and stage their batches in the load handles; the staged
// values reach Storage when the first gated operation drains the tracker,
// on the writer. The tracker itself is the one concurrently touched piece,
// since monitoring and query threads poll IsLoaded while fetches complete
// in the background.
//
// # Error model
//
// Operations requiring the full data set call the load gate first. While
// the partition is still loading they fail fast with a RetryableError; a
// load that failed is logged, surfaced verbatim exactly once, and then
// discarded from the tracker.
package recordstore
