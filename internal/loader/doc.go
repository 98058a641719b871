// Package loader implements the asynchronous loading lifecycle of a
// partition record store: the load handles that stand in for in-flight bulk
// loads, the concurrency-safe tracker that gates record-store operations
// until the partition is fully materialized, and the key loader that pulls
// keys out of a backing store in batches.
//
// # Tracker semantics
//
// The tracker is the single source of truth for "is this partition loaded".
// It grows when a load is triggered and shrinks only when a completed
// handle's outcome has been observed and drained exactly once. Loads are
// never cancelled; they run to completion and their failures surface to
// whichever caller drains them first.
//
// The tracker is the one piece of record-store state that tolerates
// concurrent access: the partition writer adds and drains handles while
// monitoring and query threads poll AllDone.
package loader
