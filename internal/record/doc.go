// Package record implements the in-memory cell for a single key owned by a
// partition record store, holding the current value together with the
// expiration and access metadata the store needs to enforce time-to-live,
// drive eviction decisions, and feed merge policies during cluster merges.
//
// # Ownership model
//
// A Record is owned and mutated exclusively by the single logical writer of
// its partition. It carries no internal synchronization. Code running off the
// partition writer (monitoring, query serving, iterators) must never touch a
// live Record; it receives an immutable View produced by Snapshot instead.
//
// # Expiration
//
// Two independent clocks can expire a record:
//
//   - TTL: measured from the last update. Zero means the record never
//     expires by TTL.
//   - Max idle: measured from the last access. Zero means the record never
//     expires by idleness.
//
// Backup replicas apply a fixed grace delay before considering a record
// expired, so that a primary always expires an entry before its backups do.
//
// # Store dirty flag
//
// When the partition is configured with a write-behind persistent store, a
// record whose value has not yet reached the backing store is dirty. The
// store adapter reports completed writes back through OnStore, which clears
// the flag.
package record
