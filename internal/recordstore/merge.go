package recordstore

import (
	"bytes"

	"github.com/dreamware/partmap/internal/merge"
	"github.com/dreamware/partmap/internal/record"
)

// Merge resolves one conflicting key during a cluster merge using policy.
// It reports whether the merge took effect; a removal decided by the policy
// is a successful merge outcome, not a failure. Only a policy that rejects
// the incoming entry against an absent local record reports false.
func (rs *RecordStore) Merge(key string, incoming *merge.MergingEntry, policy merge.Policy) (bool, error) {
	if err := rs.CheckIfLoaded(); err != nil {
		return false, err
	}
	now := rs.now()

	mergingView := incoming.View(rs.codec)
	r := rs.getRecordOrNull(key, now, false)

	if r == nil {
		newValue := policy.Merge(rs.name, mergingView, merge.NewNullView(key))
		if newValue == nil {
			return false, nil
		}
		newValue, err := rs.dataStore.Add(key, newValue, now)
		if err != nil {
			return false, err
		}
		r = rs.createRecord(key, newValue, 0, now)
		rs.mergeRecordExpiration(r, incoming)
		rs.storage.Put(key, r)
		rs.afterStoreWrite(r)

		if err := rs.saveIndex(r, nil); err != nil {
			return false, err
		}
		return true, nil
	}

	oldValue := r.Value()
	existingView := merge.NewRecordView(r.Snapshot(), rs.codec)
	newValue := policy.Merge(rs.name, mergingView, existingView)

	// A nil winner is the tombstone: the entry must not survive the merge.
	if newValue == nil {
		rs.removeIndex(r)
		if err := rs.dataStore.Remove(key, now); err != nil {
			return false, err
		}
		r.OnStore()
		rs.storage.RemoveRecord(r)
		return true, nil
	}

	// Adopting the incoming entry carries its expiration along.
	if bytes.Equal(newValue, incoming.EntryValue) {
		rs.mergeRecordExpiration(r, incoming)
	}

	// Winner equal to the current value: nothing to persist or reindex.
	if bytes.Equal(newValue, oldValue) {
		return true, nil
	}

	newValue, err := rs.dataStore.Add(key, newValue, now)
	if err != nil {
		return false, err
	}
	rs.storage.UpdateValue(r, newValue, now)
	rs.afterStoreWrite(r)

	if err := rs.saveIndex(r, oldValue); err != nil {
		return false, err
	}
	return true, nil
}

// mergeRecordExpiration adopts the incoming entry's expiration metadata.
func (rs *RecordStore) mergeRecordExpiration(r *record.Record, incoming *merge.MergingEntry) {
	if incoming.EntryTTL > 0 {
		r.SetTTL(incoming.EntryTTL)
		rs.markExpirable(incoming.EntryTTL)
	}
}
