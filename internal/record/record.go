package record

import (
	"time"
)

// BackupExpiryDelay is the grace period applied to TTL and max-idle checks on
// backup replicas. A backup must never observe a record as expired before the
// primary does, otherwise a failover could resurrect or prematurely drop an
// entry; the delay absorbs clock and replication skew between the two.
const BackupExpiryDelay = 10 * time.Second

// Record is the mutable in-memory cell for one key.
// All fields are mutated in place by the partition writer; concurrent
// observers receive copies via Snapshot.
type Record struct {
	key            string        // Immutable identity for the record's life
	value          []byte        // Current value, never nil while stored
	ttl            time.Duration // Time-to-live from last update, 0 = none
	maxIdle        time.Duration // Idle timeout from last access, 0 = none
	creationTime   time.Time     // When the record was first created
	lastAccessTime time.Time     // Refreshed on reads
	lastUpdateTime time.Time     // Refreshed on writes
	hits           int64         // Number of accesses since creation
	version        int64         // Incremented on every value update
	dirty          bool          // Pending write-behind store write
}

// New creates a record for key holding value, created at now.
// A zero ttl means the record never expires by TTL.
func New(key string, value []byte, ttl time.Duration, now time.Time) *Record {
	return &Record{
		key:            key,
		value:          value,
		ttl:            ttl,
		creationTime:   now,
		lastAccessTime: now,
		lastUpdateTime: now,
	}
}

// Key returns the record's immutable key.
func (r *Record) Key() string { return r.key }

// Value returns the current value. The returned slice is the live backing
// array; callers outside the partition writer must use Snapshot instead.
func (r *Record) Value() []byte { return r.value }

// TTL returns the record's time-to-live. Zero means no TTL expiry.
func (r *Record) TTL() time.Duration { return r.ttl }

// MaxIdle returns the record's idle timeout. Zero means no idle expiry.
func (r *Record) MaxIdle() time.Duration { return r.maxIdle }

// Hits returns the access count since creation.
func (r *Record) Hits() int64 { return r.hits }

// Version returns the update version, starting at 0 for a fresh record.
func (r *Record) Version() int64 { return r.version }

// CreationTime returns when the record was created.
func (r *Record) CreationTime() time.Time { return r.creationTime }

// LastAccessTime returns the time of the most recent access.
func (r *Record) LastAccessTime() time.Time { return r.lastAccessTime }

// LastUpdateTime returns the time of the most recent value update.
func (r *Record) LastUpdateTime() time.Time { return r.lastUpdateTime }

// IsDirty reports whether the record has a write pending in a write-behind
// persistent store.
func (r *Record) IsDirty() bool { return r.dirty }

// SetValue replaces the record's value, bumping the version and refreshing
// the update timestamp.
func (r *Record) SetValue(value []byte, now time.Time) {
	r.value = value
	r.version++
	r.lastUpdateTime = now
}

// SetTTL replaces the record's time-to-live.
func (r *Record) SetTTL(ttl time.Duration) { r.ttl = ttl }

// SetMaxIdle replaces the record's idle timeout.
func (r *Record) SetMaxIdle(maxIdle time.Duration) { r.maxIdle = maxIdle }

// OnAccess records a read of the record at now.
func (r *Record) OnAccess(now time.Time) {
	r.hits++
	r.lastAccessTime = now
}

// MarkDirty flags the record as having a pending persistent-store write.
func (r *Record) MarkDirty() { r.dirty = true }

// OnStore clears the dirty flag after the persistent store confirms the
// record's value has been written.
func (r *Record) OnStore() { r.dirty = false }

// ExpiredAt reports whether the record is expired at now. On backups the
// check is shifted by BackupExpiryDelay so primaries always expire first.
func (r *Record) ExpiredAt(now time.Time, backup bool) bool {
	if backup {
		now = now.Add(-BackupExpiryDelay)
	}
	if r.ttl > 0 && now.Sub(r.lastUpdateTime) >= r.ttl {
		return true
	}
	if r.maxIdle > 0 && now.Sub(r.lastAccessTime) >= r.maxIdle {
		return true
	}
	return false
}

// Snapshot returns an immutable copy of the record safe to hand to code
// running off the partition writer.
func (r *Record) Snapshot() View {
	value := make([]byte, len(r.value))
	copy(value, r.value)

	return View{
		Key:            r.key,
		Value:          value,
		TTL:            r.ttl,
		MaxIdle:        r.maxIdle,
		CreationTime:   r.creationTime,
		LastAccessTime: r.lastAccessTime,
		LastUpdateTime: r.lastUpdateTime,
		Hits:           r.hits,
		Version:        r.version,
		Dirty:          r.dirty,
	}
}

// View is a read-only snapshot of a record at a point in time.
type View struct {
	Key            string        // Record key
	Value          []byte        // Copied value bytes
	TTL            time.Duration // Time-to-live at snapshot time
	MaxIdle        time.Duration // Idle timeout at snapshot time
	CreationTime   time.Time     // Creation timestamp
	LastAccessTime time.Time     // Last access timestamp
	LastUpdateTime time.Time     // Last update timestamp
	Hits           int64         // Access count
	Version        int64         // Update version
	Dirty          bool          // Pending store write
}
