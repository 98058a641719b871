package recordstore

import (
	"fmt"

	"github.com/dreamware/partmap/internal/loader"
	"github.com/dreamware/partmap/internal/mapstore"
)

// StartLoading kicks off the initial bulk load when the map has both a key
// loader and a real backing store, registering the resulting handle.
func (rs *RecordStore) StartLoading() {
	if rs.keyLoader == nil || rs.dataStore.Mode() == mapstore.ModeNone {
		return
	}
	rs.tracker.Add(rs.keyLoader.StartInitialLoad())
}

// LoadAll triggers a full (re)load of the partition's keys.
// replaceExisting controls whether loaded values overwrite records already
// in memory.
func (rs *RecordStore) LoadAll(replaceExisting bool) {
	if rs.keyLoader == nil {
		return
	}
	rs.logger.Printf("starting to load all keys for map %s on partitionId=%d", rs.name, rs.partitionID)
	rs.tracker.Add(rs.keyLoader.StartLoading(replaceExisting))
}

// LoadAllFromStore stages the values for an explicit key set: the batch is
// fetched from the backing store in the background and materialized on the
// partition writer the next time the load gate drains. Fetch goroutines
// never touch partition storage; only the writer does.
//
// This method implements loader.Sink.
func (rs *RecordStore) LoadAllFromStore(keys []string, replaceExisting bool) {
	if len(keys) > 0 {
		batch := append([]string(nil), keys...)
		rs.tracker.Add(loader.RunBatch(replaceExisting, func() (map[string][]byte, error) {
			entries, err := rs.dataStore.LoadAll(batch)
			if err != nil {
				return nil, fmt.Errorf("load values for map %s partition %d: %w", rs.name, rs.partitionID, err)
			}
			return entries, nil
		}))
	}
	if rs.keyLoader != nil {
		rs.keyLoader.TrackLoading(false, nil)
	}
}

// materializeBatch applies one staged batch. The caller holds the partition
// write slot, having passed through the load gate.
func (rs *RecordStore) materializeBatch(b loader.Batch) error {
	for key, value := range b.Entries {
		if !b.ReplaceExisting && rs.storage.Get(key) != nil {
			continue
		}
		if _, err := rs.PutFromLoad(key, value); err != nil {
			return fmt.Errorf("materialize loaded key for map %s partition %d: %w", rs.name, rs.partitionID, err)
		}
	}
	return nil
}

// UpdateLoadStatus relays batch completion or failure to the key loader. On
// the final batch the partition counts as fully populated.
//
// This method implements loader.Sink.
func (rs *RecordStore) UpdateLoadStatus(lastBatch bool, err error) {
	if rs.keyLoader != nil {
		rs.keyLoader.TrackLoading(lastBatch, err)
	}
	if lastBatch {
		rs.logger.Printf("completed loading map %s on partitionId=%d", rs.name, rs.partitionID)
	}
}

// MaybeDoInitialLoad triggers the initial load only when the key loader
// reports it has not started yet, letting lazy-on-first-access and explicit
// triggers converge.
func (rs *RecordStore) MaybeDoInitialLoad() {
	if rs.keyLoader == nil {
		return
	}
	if rs.keyLoader.ShouldDoInitialLoad() {
		rs.LoadAll(false)
	}
}

// OnKeyLoad registers a callback with the key loader, fired when loading
// finishes or fails.
func (rs *RecordStore) OnKeyLoad(fn func(error)) {
	if rs.keyLoader == nil {
		fn(nil)
		return
	}
	rs.keyLoader.OnKeyLoad(fn)
}

// IsLoaded reports, without blocking, whether every tracked load has
// completed. Monitoring and query threads may call this concurrently with
// partition operations.
func (rs *RecordStore) IsLoaded() bool {
	return rs.tracker.AllDone()
}

// CheckIfLoaded is the load gate consulted by every consistency-sensitive
// operation.
//
// With nothing tracked it is a no-op. When every tracked load has completed
// the handles are drained exactly once: their staged batches are
// materialized here, on the gated caller, and any failure among them is
// logged and returned verbatim. While loads are still pending the key
// loader is nudged to retry after a delay and a RetryableError tells the
// caller to retry the whole operation later.
func (rs *RecordStore) CheckIfLoaded() error {
	if rs.tracker.IsEmpty() {
		return nil
	}

	if rs.tracker.AllDone() {
		batches, err := rs.tracker.DrainDone()
		for _, b := range batches {
			if mErr := rs.materializeBatch(b); mErr != nil && err == nil {
				err = mErr
			}
		}
		if err != nil {
			rs.logger.Printf("ERROR: failure while loading map %s: %v", rs.name, err)
			return err
		}
		return nil
	}

	if rs.keyLoader != nil {
		rs.keyLoader.TriggerLoadingWithDelay()
	}
	return NewRetryable(fmt.Errorf("map %s is still loading data from external store", rs.name))
}
