// Package locks implements the per-key pessimistic lock store consulted by a
// partition record store. The record store never takes locks on its own
// behalf; it forwards lock queries and mutations here so upstream code can
// hold a key across several record-store calls, and so clear and evict-all
// sweeps can skip keys that are currently held.
//
// A nil LockStore reference means no lock manager is configured: every key
// behaves as permanently unlocked and always acquirable.
package locks

import (
	"fmt"
	"sync"
	"time"
)

// LockStore is the lock manager contract for one partition namespace.
// Implementations must be safe for concurrent use: lock queries arrive from
// monitoring and query threads as well as the partition writer.
type LockStore interface {
	// TxnLock acquires or re-enters the lock on key for the given owner.
	// referenceID deduplicates retried acquire operations: a repeated
	// referenceID from the current owner succeeds without deepening the
	// reentrancy count. A zero ttl means the lease never expires.
	TxnLock(key, caller string, threadID, referenceID int64, ttl time.Duration) bool

	// ExtendLeaseTime pushes out the lease of a lock held by the given
	// owner. Returns false when the owner does not hold the lock.
	ExtendLeaseTime(key, caller string, threadID int64, ttl time.Duration) bool

	// Unlock releases one level of the lock held by the given owner.
	Unlock(key, caller string, threadID, referenceID int64) bool

	// ForceUnlock releases the lock regardless of owner. Returns false
	// when the key was not locked.
	ForceUnlock(key string) bool

	// IsLocked reports whether any owner currently holds key.
	IsLocked(key string) bool

	// IsTransactionallyLocked reports whether key is held by a
	// transactional acquire.
	IsTransactionallyLocked(key string) bool

	// CanAcquireLock reports whether the given owner could acquire key
	// right now, either because it is free or already owned by them.
	CanAcquireLock(key, caller string, threadID int64) bool

	// OwnerInfo describes the current owner for diagnostics, or "" when
	// the key is not locked.
	OwnerInfo(key string) string

	// LockedKeys returns the set of currently locked keys.
	LockedKeys() map[string]struct{}

	// Clear removes the whole lock namespace, releasing every lock.
	Clear()
}

// lockEntry tracks one held lock.
type lockEntry struct {
	caller        string
	threadID      int64
	count         int            // Reentrancy depth
	referenceIDs  map[int64]bool // Seen acquire reference ids, for retry dedup
	expiresAt     time.Time      // Zero means the lease never expires
	transactional bool
}

func (e *lockEntry) expiredAt(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

func (e *lockEntry) ownedBy(caller string, threadID int64) bool {
	return e.caller == caller && e.threadID == threadID
}

// InMemoryLockStore is the default LockStore. Lease expiry is evaluated
// lazily at query time; there is no background sweeper.
type InMemoryLockStore struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
	now   func() time.Time // Clock indirection for tests
}

var _ LockStore = (*InMemoryLockStore)(nil)

// NewInMemoryLockStore creates an empty lock store.
func NewInMemoryLockStore() *InMemoryLockStore {
	return &InMemoryLockStore{
		locks: make(map[string]*lockEntry),
		now:   time.Now,
	}
}

// live returns the current entry for key, discarding it first if the lease
// has lapsed. Callers must hold s.mu.
func (s *InMemoryLockStore) live(key string) *lockEntry {
	entry, ok := s.locks[key]
	if !ok {
		return nil
	}
	if entry.expiredAt(s.now()) {
		delete(s.locks, key)
		return nil
	}
	return entry
}

// TxnLock implements LockStore.
func (s *InMemoryLockStore) TxnLock(key, caller string, threadID, referenceID int64, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry := s.live(key)
	if entry == nil {
		entry = &lockEntry{
			caller:        caller,
			threadID:      threadID,
			count:         1,
			referenceIDs:  map[int64]bool{referenceID: true},
			transactional: true,
		}
		if ttl > 0 {
			entry.expiresAt = now.Add(ttl)
		}
		s.locks[key] = entry
		return true
	}
	if !entry.ownedBy(caller, threadID) {
		return false
	}
	if entry.referenceIDs[referenceID] {
		// Retried acquire, already counted.
		return true
	}
	entry.referenceIDs[referenceID] = true
	entry.count++
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	return true
}

// ExtendLeaseTime implements LockStore.
func (s *InMemoryLockStore) ExtendLeaseTime(key, caller string, threadID int64, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.live(key)
	if entry == nil || !entry.ownedBy(caller, threadID) {
		return false
	}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	} else {
		entry.expiresAt = time.Time{}
	}
	return true
}

// Unlock implements LockStore.
func (s *InMemoryLockStore) Unlock(key, caller string, threadID, referenceID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.live(key)
	if entry == nil || !entry.ownedBy(caller, threadID) {
		return false
	}
	entry.count--
	delete(entry.referenceIDs, referenceID)
	if entry.count <= 0 {
		delete(s.locks, key)
	}
	return true
}

// ForceUnlock implements LockStore.
func (s *InMemoryLockStore) ForceUnlock(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live(key) == nil {
		return false
	}
	delete(s.locks, key)
	return true
}

// IsLocked implements LockStore.
func (s *InMemoryLockStore) IsLocked(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(key) != nil
}

// IsTransactionallyLocked implements LockStore.
func (s *InMemoryLockStore) IsTransactionallyLocked(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.live(key)
	return entry != nil && entry.transactional
}

// CanAcquireLock implements LockStore.
func (s *InMemoryLockStore) CanAcquireLock(key, caller string, threadID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.live(key)
	return entry == nil || entry.ownedBy(caller, threadID)
}

// OwnerInfo implements LockStore.
func (s *InMemoryLockStore) OwnerInfo(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.live(key)
	if entry == nil {
		return ""
	}
	return fmt.Sprintf("caller=%s threadId=%d count=%d", entry.caller, entry.threadID, entry.count)
}

// LockedKeys implements LockStore.
func (s *InMemoryLockStore) LockedKeys() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	keys := make(map[string]struct{}, len(s.locks))
	for key, entry := range s.locks {
		if entry.expiredAt(now) {
			delete(s.locks, key)
			continue
		}
		keys[key] = struct{}{}
	}
	return keys
}

// Clear implements LockStore.
func (s *InMemoryLockStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks = make(map[string]*lockEntry)
}
