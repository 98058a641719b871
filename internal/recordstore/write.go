package recordstore

import (
	"bytes"
	"time"

	"github.com/dreamware/partmap/internal/record"
)

// Put writes value under key with the given ttl and returns the previous
// value. A miss in memory falls through to the backing store so the
// previous value is resolved even for out-of-band entries. A non-positive
// ttl applies the map's default.
func (rs *RecordStore) Put(key string, value []byte, ttl time.Duration) ([]byte, error) {
	return rs.putInternal(key, value, ttl, true)
}

// Set is the write-only variant of Put: the previous value is never loaded
// from the backing store. It reports whether the key was previously absent
// in memory.
func (rs *RecordStore) Set(key string, value []byte, ttl time.Duration) (bool, error) {
	oldValue, err := rs.putInternal(key, value, ttl, false)
	if err != nil {
		return false, err
	}
	return oldValue == nil, nil
}

func (rs *RecordStore) putInternal(key string, value []byte, ttl time.Duration, loadFromStore bool) ([]byte, error) {
	if err := rs.CheckIfLoaded(); err != nil {
		return nil, err
	}
	now := rs.now()

	r := rs.getRecordOrNull(key, now, false)
	var oldValue []byte
	if r != nil {
		oldValue = r.Value()
	} else if loadFromStore {
		var err error
		oldValue, err = rs.dataStore.Load(key)
		if err != nil {
			return nil, err
		}
	}

	value, err := rs.interceptors.InterceptPut(oldValue, value)
	if err != nil {
		return nil, err
	}
	value, err = rs.dataStore.Add(key, value, now)
	if err != nil {
		return nil, err
	}

	if r == nil {
		r = rs.createRecord(key, value, ttl, now)
		rs.storage.Put(key, r)
	} else {
		rs.storage.UpdateValue(r, value, now)
		rs.updateExpiry(r, ttl)
	}
	rs.afterStoreWrite(r)

	if err := rs.saveIndex(r, oldValue); err != nil {
		return nil, err
	}
	return oldValue, nil
}

// PutIfAbsent writes only when no existing value is found, in memory or,
// transparently, in the backing store (a store hit materializes a record).
// It returns the existing value, or nil when the write happened.
func (rs *RecordStore) PutIfAbsent(key string, value []byte, ttl time.Duration) ([]byte, error) {
	if err := rs.CheckIfLoaded(); err != nil {
		return nil, err
	}
	now := rs.now()

	r := rs.getRecordOrNull(key, now, false)
	var oldValue []byte
	if r == nil {
		var err error
		oldValue, err = rs.dataStore.Load(key)
		if err != nil {
			return nil, err
		}
		if oldValue != nil {
			r = rs.createRecord(key, oldValue, 0, now)
			rs.storage.Put(key, r)
		}
	} else {
		rs.accessRecord(r, now)
		oldValue = r.Value()
	}

	if oldValue == nil {
		var err error
		value, err = rs.interceptors.InterceptPut(nil, value)
		if err != nil {
			return nil, err
		}
		value, err = rs.dataStore.Add(key, value, now)
		if err != nil {
			return nil, err
		}
		r = rs.createRecord(key, value, ttl, now)
		rs.storage.Put(key, r)
		rs.afterStoreWrite(r)
	}

	if err := rs.saveIndex(r, oldValue); err != nil {
		return nil, err
	}
	return oldValue, nil
}

// Replace updates key only when a record already exists in memory and
// returns the previous value, or nil when no update happened. Replace
// deliberately never consults the backing store on a miss: it is a
// cache-only read-modify-write.
func (rs *RecordStore) Replace(key string, update []byte) ([]byte, error) {
	if err := rs.CheckIfLoaded(); err != nil {
		return nil, err
	}
	now := rs.now()

	r := rs.getRecordOrNull(key, now, false)
	if r == nil {
		return nil, nil
	}
	oldValue := r.Value()

	update, err := rs.interceptors.InterceptPut(oldValue, update)
	if err != nil {
		return nil, err
	}
	update, err = rs.dataStore.Add(key, update, now)
	if err != nil {
		return nil, err
	}
	rs.storage.UpdateValue(r, update, now)
	rs.afterStoreWrite(r)

	if err := rs.saveIndex(r, oldValue); err != nil {
		return nil, err
	}
	return oldValue, nil
}

// ReplaceIfSame is the compare-and-swap variant of Replace: the update only
// happens when the current value equals expect.
func (rs *RecordStore) ReplaceIfSame(key string, expect, update []byte) (bool, error) {
	if err := rs.CheckIfLoaded(); err != nil {
		return false, err
	}
	now := rs.now()

	r := rs.getRecordOrNull(key, now, false)
	if r == nil {
		return false, nil
	}
	current := r.Value()
	if !bytes.Equal(expect, current) {
		return false, nil
	}

	update, err := rs.interceptors.InterceptPut(current, update)
	if err != nil {
		return false, err
	}
	update, err = rs.dataStore.Add(key, update, now)
	if err != nil {
		return false, err
	}
	rs.storage.UpdateValue(r, update, now)
	rs.afterStoreWrite(r)

	if err := rs.saveIndex(r, current); err != nil {
		return false, err
	}
	return true, nil
}

// PutTransient writes in memory and marks the key transient in the
// persistence adapter: the value is tracked but never durably persisted.
// Used for TTL-refresh-only writes.
func (rs *RecordStore) PutTransient(key string, value []byte, ttl time.Duration) ([]byte, error) {
	if err := rs.CheckIfLoaded(); err != nil {
		return nil, err
	}
	now := rs.now()

	r := rs.getRecordOrNull(key, now, false)
	var oldValue []byte
	if r != nil {
		oldValue = r.Value()
	}

	value, err := rs.interceptors.InterceptPut(oldValue, value)
	if err != nil {
		return nil, err
	}

	if r == nil {
		r = rs.createRecord(key, value, ttl, now)
		rs.storage.Put(key, r)
	} else {
		rs.storage.UpdateValue(r, value, now)
		rs.updateExpiry(r, ttl)
	}

	if err := rs.saveIndex(r, oldValue); err != nil {
		return nil, err
	}
	rs.dataStore.AddTransient(key, now)
	return oldValue, nil
}

// PutFromLoad is the write path used exclusively by the loading subsystem.
// When the partition is under eviction pressure the write is skipped
// entirely: loaded data that would be evicted immediately is wasted work.
// No load gate and no persistence, the value just came from the store.
func (rs *RecordStore) PutFromLoad(key string, value []byte) ([]byte, error) {
	return rs.PutFromLoadWithTTL(key, value, 0)
}

// PutFromLoadWithTTL is PutFromLoad with an explicit TTL.
func (rs *RecordStore) PutFromLoadWithTTL(key string, value []byte, ttl time.Duration) ([]byte, error) {
	now := rs.now()

	if rs.evictor.ShouldEvict(rs.storage.Size(), now) {
		return nil, nil
	}

	r := rs.getRecordOrNull(key, now, false)
	var oldValue []byte
	if r != nil {
		oldValue = r.Value()
	}

	value, err := rs.interceptors.InterceptPut(oldValue, value)
	if err != nil {
		return nil, err
	}

	if r == nil {
		r = rs.createRecord(key, value, ttl, now)
		rs.storage.Put(key, r)
	} else {
		rs.storage.UpdateValue(r, value, now)
		rs.updateExpiry(r, ttl)
	}

	if err := rs.saveIndex(r, oldValue); err != nil {
		return nil, err
	}
	return oldValue, nil
}

// PutBackup writes a backup-replica record. Backups serve no queries, so
// primary-side interceptors and index maintenance are bypassed. transient
// selects transient tracking over a durable backup write in the adapter.
func (rs *RecordStore) PutBackup(key string, value []byte, ttl time.Duration, transient bool) error {
	now := rs.now()
	rs.markExpirable(ttl)

	r := rs.getRecordOrNull(key, now, true)
	if r == nil {
		r = rs.createRecord(key, value, ttl, now)
		rs.storage.Put(key, r)
	} else {
		rs.storage.UpdateValue(r, value, now)
		rs.updateExpiry(r, ttl)
	}

	if transient {
		rs.dataStore.AddTransient(key, now)
		return nil
	}
	return rs.dataStore.AddBackup(key, value, now)
}

// RemoveBackup is the backup-side removal: no interceptors, no index work.
func (rs *RecordStore) RemoveBackup(key string) error {
	now := rs.now()

	r := rs.getRecordOrNull(key, now, true)
	if r == nil {
		return nil
	}
	rs.storage.RemoveRecord(r)
	return rs.dataStore.RemoveBackup(key, now)
}

// Remove deletes the record for key and returns the removed value. When the
// key is absent in memory the backing store is still consulted, and asked
// to remove the key if it held a value, keeping the store consistent with
// out-of-band entries.
func (rs *RecordStore) Remove(key string) ([]byte, error) {
	if err := rs.CheckIfLoaded(); err != nil {
		return nil, err
	}
	now := rs.now()

	r := rs.getRecordOrNull(key, now, false)
	if r == nil {
		oldValue, err := rs.dataStore.Load(key)
		if err != nil {
			return nil, err
		}
		if oldValue != nil {
			if err := rs.dataStore.Remove(key, now); err != nil {
				return nil, err
			}
		}
		return oldValue, nil
	}
	return rs.removeRecord(key, r, now)
}

// RemoveIfSame deletes the record only when its current value equals
// testValue, reporting whether the removal happened.
func (rs *RecordStore) RemoveIfSame(key string, testValue []byte) (bool, error) {
	if err := rs.CheckIfLoaded(); err != nil {
		return false, err
	}
	now := rs.now()

	r := rs.getRecordOrNull(key, now, false)
	var oldValue []byte
	if r == nil {
		var err error
		oldValue, err = rs.dataStore.Load(key)
		if err != nil {
			return false, err
		}
		if oldValue == nil {
			return false, nil
		}
	} else {
		oldValue = r.Value()
	}

	if !bytes.Equal(testValue, oldValue) {
		return false, nil
	}

	if _, err := rs.interceptors.InterceptRemove(oldValue); err != nil {
		return false, err
	}
	if r != nil {
		rs.removeIndex(r)
	}
	if err := rs.dataStore.Remove(key, now); err != nil {
		return false, err
	}
	if r != nil {
		rs.storage.RemoveRecord(r)
	}
	return true, nil
}

// Delete removes the record for key, reporting whether an in-memory record
// was removed. On a memory miss the backing store is asked to remove the
// key unconditionally.
func (rs *RecordStore) Delete(key string) (bool, error) {
	if err := rs.CheckIfLoaded(); err != nil {
		return false, err
	}
	now := rs.now()

	r := rs.getRecordOrNull(key, now, false)
	if r == nil {
		if err := rs.dataStore.Remove(key, now); err != nil {
			return false, err
		}
		return false, nil
	}
	oldValue, err := rs.removeRecord(key, r, now)
	if err != nil {
		return false, err
	}
	return oldValue != nil, nil
}

// removeRecord applies the remove interceptor, withdraws the index entries,
// notifies the backing store, and drops the record.
func (rs *RecordStore) removeRecord(key string, r *record.Record, now time.Time) ([]byte, error) {
	oldValue := r.Value()
	oldValue, err := rs.interceptors.InterceptRemove(oldValue)
	if err != nil {
		return nil, err
	}
	if oldValue != nil {
		rs.removeIndex(r)
		if err := rs.dataStore.Remove(key, now); err != nil {
			return nil, err
		}
	}
	rs.storage.RemoveRecord(r)
	return oldValue, nil
}
