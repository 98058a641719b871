package recordstore

import (
	"bytes"
	"time"

	"golang.org/x/exp/slices"

	"github.com/dreamware/partmap/internal/record"
)

// Get returns the current value for key, loading it from the backing store
// on a miss and materializing a record when the load succeeds. Expired
// entries read as absent. The get interceptor chain is applied to the
// result; a miss returns nil.
func (rs *RecordStore) Get(key string, backup bool) ([]byte, error) {
	if err := rs.CheckIfLoaded(); err != nil {
		return nil, err
	}
	now := rs.now()

	r := rs.getRecordOrNull(key, now, backup)
	if r == nil {
		var err error
		r, err = rs.loadRecordOrNull(key, backup)
		if err != nil {
			return nil, err
		}
	} else if !backup {
		rs.accessRecord(r, now)
	}

	var value []byte
	if r != nil {
		value = r.Value()
	}
	value = rs.interceptors.InterceptGet(value)

	rs.postReadCleanup(now)
	return value, nil
}

// ContainsKey reports whether key holds a live value, materializing a
// record from the backing store when the key is absent in memory but
// present in the store. No interceptors run.
func (rs *RecordStore) ContainsKey(key string) (bool, error) {
	if err := rs.CheckIfLoaded(); err != nil {
		return false, err
	}
	now := rs.now()

	r := rs.getRecordOrNull(key, now, false)
	if r == nil {
		var err error
		r, err = rs.loadRecordOrNull(key, false)
		if err != nil {
			return false, err
		}
	}
	if r != nil {
		rs.accessRecord(r, now)
	}

	rs.postReadCleanup(now)
	return r != nil, nil
}

// ContainsValue scans the live records for a value equal to value.
func (rs *RecordStore) ContainsValue(value []byte) (bool, error) {
	if err := rs.CheckIfLoaded(); err != nil {
		return false, err
	}
	now := rs.now()

	for _, r := range rs.storage.Values() {
		if rs.getOrNullIfExpired(r, now, false) == nil {
			continue
		}
		if bytes.Equal(value, r.Value()) {
			return true, nil
		}
	}

	rs.postReadCleanup(now)
	return false, nil
}

// GetMapEntry returns the key/value pair for key at now, loading from the
// backing store on a miss. An absent key yields an Entry with a nil Value.
func (rs *RecordStore) GetMapEntry(key string, now time.Time) (Entry, error) {
	if err := rs.CheckIfLoaded(); err != nil {
		return Entry{}, err
	}

	r := rs.getRecordOrNull(key, now, false)
	if r == nil {
		var err error
		r, err = rs.loadRecordOrNull(key, false)
		if err != nil {
			return Entry{}, err
		}
	} else {
		rs.accessRecord(r, now)
	}

	entry := Entry{Key: key}
	if r != nil {
		entry.Value = r.Value()
	}
	return entry, nil
}

// EntrySetData snapshots every live key/value pair. A partition with no
// qualifying records returns nil without allocating.
func (rs *RecordStore) EntrySetData() ([]Entry, error) {
	if err := rs.CheckIfLoaded(); err != nil {
		return nil, err
	}
	now := rs.now()

	var entries []Entry
	for _, r := range rs.storage.Values() {
		if rs.getOrNullIfExpired(r, now, false) == nil {
			continue
		}
		entries = append(entries, Entry{Key: r.Key(), Value: r.Value()})
	}
	return entries, nil
}

// KeySet returns the live keys in sorted order. A partition with no
// qualifying records returns nil without allocating.
func (rs *RecordStore) KeySet() ([]string, error) {
	if err := rs.CheckIfLoaded(); err != nil {
		return nil, err
	}
	now := rs.now()

	var keys []string
	for _, r := range rs.storage.Values() {
		if rs.getOrNullIfExpired(r, now, false) == nil {
			continue
		}
		keys = append(keys, r.Key())
	}
	slices.Sort(keys)
	return keys, nil
}

// GetAll serves a batched read: keys found in memory come straight from
// their records, the remainder is loaded from the backing store in one
// batch and materialized into storage before being returned.
func (rs *RecordStore) GetAll(keys []string) ([]Entry, error) {
	if err := rs.CheckIfLoaded(); err != nil {
		return nil, err
	}
	now := rs.now()

	var entries []Entry
	var missing []string
	for _, key := range keys {
		r := rs.getRecordOrNull(key, now, false)
		if r == nil {
			missing = append(missing, key)
			continue
		}
		rs.accessRecord(r, now)
		entries = append(entries, Entry{Key: key, Value: rs.interceptors.InterceptGet(r.Value())})
	}

	if len(missing) > 0 {
		loaded, err := rs.dataStore.LoadAll(missing)
		if err != nil {
			return nil, err
		}
		// Preserve the caller's key order for the loaded remainder.
		for _, key := range missing {
			value, ok := loaded[key]
			if !ok {
				continue
			}
			if _, err := rs.PutFromLoad(key, value); err != nil {
				return nil, err
			}
			entries = append(entries, Entry{Key: key, Value: rs.interceptors.InterceptGet(value)})
		}
	}
	return entries, nil
}

// ReadBackupData reads a backup record's value. Expiry is checked without
// the backup grace delay: the delay exists so backups outlive primaries,
// not so a backup read can serve data its primary already expired.
func (rs *RecordStore) ReadBackupData(key string) []byte {
	r := rs.storage.Get(key)
	if r == nil {
		return nil
	}
	if rs.expirable && r.ExpiredAt(rs.now(), false) {
		return nil
	}
	return r.Value()
}

// Iterator returns read-only snapshots of every stored record, expired
// entries included.
func (rs *RecordStore) Iterator() []record.View {
	views := make([]record.View, 0, rs.storage.Size())
	for _, r := range rs.storage.Values() {
		views = append(views, r.Snapshot())
	}
	return views
}

// IteratorAt returns read-only snapshots of the records that are live at
// now on the given side.
func (rs *RecordStore) IteratorAt(now time.Time, backup bool) []record.View {
	var views []record.View
	for _, r := range rs.storage.Values() {
		if rs.expirable && r.ExpiredAt(now, backup) {
			continue
		}
		views = append(views, r.Snapshot())
	}
	return views
}

// LoadAwareIterator is IteratorAt behind the load gate.
func (rs *RecordStore) LoadAwareIterator(now time.Time, backup bool) ([]record.View, error) {
	if err := rs.CheckIfLoaded(); err != nil {
		return nil, err
	}
	return rs.IteratorAt(now, backup), nil
}
