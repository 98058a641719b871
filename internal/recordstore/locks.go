package recordstore

import "time"

// The lock pass-through methods forward to the external lock manager so
// upstream code needs no second component reference. The record store never
// acquires locks on its own behalf; when lock semantics matter, the caller
// already holds the key before invoking a mutating operation.
//
// With no lock manager configured every key is permanently unlocked and
// always acquirable.

// TxnLock acquires or re-enters the per-key lock for the given owner.
func (rs *RecordStore) TxnLock(key, caller string, threadID, referenceID int64, ttl time.Duration) (bool, error) {
	if err := rs.CheckIfLoaded(); err != nil {
		return false, err
	}
	return rs.lockStore != nil && rs.lockStore.TxnLock(key, caller, threadID, referenceID, ttl), nil
}

// ExtendLock pushes out the lease on a lock held by the given owner.
func (rs *RecordStore) ExtendLock(key, caller string, threadID int64, ttl time.Duration) (bool, error) {
	if err := rs.CheckIfLoaded(); err != nil {
		return false, err
	}
	return rs.lockStore != nil && rs.lockStore.ExtendLeaseTime(key, caller, threadID, ttl), nil
}

// Unlock releases one level of the lock held by the given owner.
func (rs *RecordStore) Unlock(key, caller string, threadID, referenceID int64) (bool, error) {
	if err := rs.CheckIfLoaded(); err != nil {
		return false, err
	}
	return rs.lockStore != nil && rs.lockStore.Unlock(key, caller, threadID, referenceID), nil
}

// ForceUnlock releases the lock on key regardless of owner.
func (rs *RecordStore) ForceUnlock(key string) bool {
	return rs.lockStore != nil && rs.lockStore.ForceUnlock(key)
}

// IsLocked reports whether key is currently held.
func (rs *RecordStore) IsLocked(key string) bool {
	return rs.lockStore != nil && rs.lockStore.IsLocked(key)
}

// IsTransactionallyLocked reports whether key is held by a transactional
// acquire.
func (rs *RecordStore) IsTransactionallyLocked(key string) bool {
	return rs.lockStore != nil && rs.lockStore.IsTransactionallyLocked(key)
}

// CanAcquireLock reports whether the given owner could acquire key now.
func (rs *RecordStore) CanAcquireLock(key, caller string, threadID int64) bool {
	return rs.lockStore == nil || rs.lockStore.CanAcquireLock(key, caller, threadID)
}

// LockOwnerInfo describes the current lock owner of key, or "" when free.
func (rs *RecordStore) LockOwnerInfo(key string) string {
	if rs.lockStore == nil {
		return ""
	}
	return rs.lockStore.OwnerInfo(key)
}
