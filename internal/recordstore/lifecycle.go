package recordstore

import (
	"github.com/dreamware/partmap/internal/record"
)

// Evict unconditionally flushes then removes the record for key, returning
// its value. The external eviction-selection policy calls this once it has
// chosen a victim; the record store itself never selects. Primary-side
// evictions run the remove interceptor.
func (rs *RecordStore) Evict(key string, backup bool) ([]byte, error) {
	r := rs.storage.Get(key)
	if r == nil {
		return nil, nil
	}

	value := r.Value()
	if err := rs.dataStore.FlushKey(key, value, backup); err != nil {
		return nil, err
	}
	rs.removeIndex(r)
	rs.storage.RemoveRecord(r)
	if !backup {
		if intercepted, err := rs.interceptors.InterceptRemove(value); err == nil {
			value = intercepted
		}
	}
	return value, nil
}

// EvictAll evicts every record that is not currently locked, flushing them
// to the backing store first. It returns the number of evicted records.
func (rs *RecordStore) EvictAll(backup bool) (int, error) {
	if err := rs.CheckIfLoaded(); err != nil {
		return 0, err
	}

	evictable := rs.notLockedRecords()
	if err := rs.flushRecords(evictable, backup); err != nil {
		return 0, err
	}
	rs.removeIndexes(evictable)
	rs.resetAccessSequence()
	return rs.removeRecords(evictable), nil
}

// Clear empties the map's partition for user-facing clear semantics: locked
// keys survive, everything else is removed from memory, from the backing
// store, and from the indexes, and the adapter's buffered state is dropped.
func (rs *RecordStore) Clear() (int, error) {
	if err := rs.CheckIfLoaded(); err != nil {
		return 0, err
	}

	clearable := rs.notLockedRecords()
	keys := keysOf(clearable)
	if err := rs.dataStore.RemoveAll(keys); err != nil {
		return 0, err
	}
	rs.dataStore.Clear()
	rs.removeIndexes(clearable)
	rs.resetAccessSequence()
	return rs.removeRecords(clearable), nil
}

// Reset wipes the partition back to its initial state: records gone,
// adapter buffers gone, bookkeeping reset. Used on partition ownership
// loss; unlike Clear it honors no locks and touches no backing store.
func (rs *RecordStore) Reset() {
	rs.resetAccessSequence()
	rs.dataStore.Clear()
	rs.storage.Clear()
}

// ClearPartition tears the partition down for destruction or migration:
// the lock namespace is released, every record's index entries are
// withdrawn, the adapter's buffers are dropped, and storage is emptied.
func (rs *RecordStore) ClearPartition() {
	if rs.lockStore != nil {
		rs.lockStore.Clear()
	}
	if rs.indexes.HasIndex() {
		for _, r := range rs.storage.Values() {
			rs.indexes.RemoveEntryIndex(r.Key(), r.Value())
		}
	}
	rs.resetAccessSequence()
	rs.dataStore.Clear()
	rs.storage.Clear()
}

// Destroy is terminal: the partition is cleared and the underlying storage
// resource is released irreversibly.
func (rs *RecordStore) Destroy() {
	rs.ClearPartition()
	rs.storage.Destroy()
}

// Flush drains buffered write-behind entries to the backing store and
// notifies each flushed record of store completion.
func (rs *RecordStore) Flush() error {
	flushed, err := rs.dataStore.Flush()
	if err != nil {
		return err
	}

	now := rs.now()
	for _, key := range flushed {
		if r := rs.getRecordOrNull(key, now, false); r != nil {
			r.OnStore()
		}
	}
	return nil
}

// notLockedRecords returns the records whose keys are not currently held by
// the lock manager. With no lock manager every record qualifies.
func (rs *RecordStore) notLockedRecords() []*record.Record {
	if rs.lockStore == nil {
		return rs.storage.Values()
	}
	locked := rs.lockStore.LockedKeys()
	if len(locked) == 0 {
		return rs.storage.Values()
	}

	notLocked := make([]*record.Record, 0, rs.storage.Size()-len(locked))
	for _, r := range rs.storage.Values() {
		if _, held := locked[r.Key()]; !held {
			notLocked = append(notLocked, r)
		}
	}
	return notLocked
}

// flushRecords pushes a set of records through the adapter's single-key
// flush, used before bulk eviction so buffered writes cannot be lost.
func (rs *RecordStore) flushRecords(records []*record.Record, backup bool) error {
	for _, r := range records {
		if err := rs.dataStore.FlushKey(r.Key(), r.Value(), backup); err != nil {
			return err
		}
	}
	return nil
}

// removeIndexes withdraws a set of records from the secondary indexes.
func (rs *RecordStore) removeIndexes(records []*record.Record) {
	if !rs.indexes.HasIndex() {
		return
	}
	for _, r := range records {
		rs.indexes.RemoveEntryIndex(r.Key(), r.Value())
	}
}

// removeRecords drops a set of records from storage, returning the count.
func (rs *RecordStore) removeRecords(records []*record.Record) int {
	for _, r := range records {
		rs.storage.RemoveRecord(r)
	}
	return len(records)
}

func keysOf(records []*record.Record) []string {
	keys := make([]string, 0, len(records))
	for _, r := range records {
		keys = append(keys, r.Key())
	}
	return keys
}
