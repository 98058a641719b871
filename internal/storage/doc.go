// Package storage implements the key to record mapping owned by one
// partition of a distributed map.
//
// # Concurrency model
//
// Storage deliberately carries no locking. Every partition has exactly one
// logical writer at a time, enforced by the execution framework that drives
// the record store, and all reads that feed mutation decisions happen on
// that same writer. Code running off the partition writer must not touch
// Storage directly; it goes through record snapshots handed out by the
// record store's iterators.
//
// # Size accuracy
//
// Expired records are purged lazily, so Size may temporarily include
// entries that are already expired but not yet removed. The count converges
// once the expired entries are observed by a read or a cleanup pass.
package storage
