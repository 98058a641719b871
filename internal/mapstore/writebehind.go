package mapstore

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"
)

// writeBehindEntry is one buffered mutation awaiting its flush deadline.
type writeBehindEntry struct {
	value     []byte    // Pending value, nil for removals
	flushAt   time.Time // Earliest time the entry may be drained
	transient bool      // Tracked only, never persisted
	removed   bool      // Pending delete instead of store
}

// WriteBehindStore is the ModeWriteBehind variant. Mutations land in a
// buffer and reach the Backend when their delay elapses, when the buffer
// exceeds its batch cap, or on an explicit Flush.
//
// The buffer is shared between partition writers and the background
// flusher goroutine, so all access is mutex guarded.
type WriteBehindStore struct {
	backend  Backend
	delay    time.Duration // Flush delay per entry
	batchCap int           // Buffer size that forces an inline flush

	mu     sync.Mutex
	buffer map[string]*writeBehindEntry

	stopOnce sync.Once
	stop     chan struct{}
}

// NewWriteBehind creates a write-behind MapDataStore draining to backend.
// Entries are held for at least delay before the background flusher picks
// them up; a buffer larger than batchCap forces a synchronous drain as
// backpressure. The background flusher starts immediately; call Stop when
// the store is discarded.
func NewWriteBehind(backend Backend, delay time.Duration, batchCap int) *WriteBehindStore {
	if batchCap <= 0 {
		batchCap = 1024
	}
	s := &WriteBehindStore{
		backend:  backend,
		delay:    delay,
		batchCap: batchCap,
		buffer:   make(map[string]*writeBehindEntry),
		stop:     make(chan struct{}),
	}
	go s.run()
	return s
}

// Stop terminates the background flusher. Buffered entries are not drained;
// call Flush first if they must reach the backend.
func (s *WriteBehindStore) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// run drains expired entries on a fixed cadence until Stop.
func (s *WriteBehindStore) run() {
	interval := s.delay / 2
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.flushDue(time.Now()); err != nil {
				// Entries stay buffered and are retried next tick.
				log.Printf("write-behind: background flush failed: %v", err)
			}
		case <-s.stop:
			return
		}
	}
}

func (s *WriteBehindStore) Mode() Mode { return ModeWriteBehind }

// Load serves reads from the buffer first so that a value written moments
// ago is visible before it reaches the backend. A buffered removal hides
// any stale backend value.
func (s *WriteBehindStore) Load(key string) ([]byte, error) {
	s.mu.Lock()
	entry, ok := s.buffer[key]
	if ok {
		if entry.removed {
			s.mu.Unlock()
			return nil, nil
		}
		if entry.value != nil {
			value := append([]byte(nil), entry.value...)
			s.mu.Unlock()
			return value, nil
		}
	}
	s.mu.Unlock()

	value, err := s.backend.Load(key)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", key, err)
	}
	return value, nil
}

// LoadAll serves each key from the buffer when possible and batches the
// remainder into one backend call.
func (s *WriteBehindStore) LoadAll(keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte)
	var missing []string

	s.mu.Lock()
	for _, key := range keys {
		entry, ok := s.buffer[key]
		switch {
		case ok && entry.removed:
			// Pending delete, definitively absent.
		case ok && entry.value != nil:
			result[key] = append([]byte(nil), entry.value...)
		default:
			missing = append(missing, key)
		}
	}
	s.mu.Unlock()

	if len(missing) > 0 {
		loaded, err := s.backend.LoadAll(missing)
		if err != nil {
			return nil, fmt.Errorf("load %d keys: %w", len(missing), err)
		}
		for key, value := range loaded {
			result[key] = value
		}
	}
	return result, nil
}

func (s *WriteBehindStore) Add(key string, value []byte, now time.Time) ([]byte, error) {
	s.mu.Lock()
	s.buffer[key] = &writeBehindEntry{
		value:   append([]byte(nil), value...),
		flushAt: now.Add(s.delay),
	}
	full := len(s.buffer) >= s.batchCap
	s.mu.Unlock()

	if full {
		if _, err := s.Flush(); err != nil {
			return nil, fmt.Errorf("backpressure flush: %w", err)
		}
	}
	return value, nil
}

// AddTransient tracks the key without a value; the flusher skips it.
func (s *WriteBehindStore) AddTransient(key string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer[key] = &writeBehindEntry{flushAt: now.Add(s.delay), transient: true}
}

// AddBackup tracks the backup write so the value is visible to Load after a
// promotion, but never persists it: the primary owns the backend write.
func (s *WriteBehindStore) AddBackup(key string, value []byte, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer[key] = &writeBehindEntry{
		value:     append([]byte(nil), value...),
		flushAt:   now.Add(s.delay),
		transient: true,
	}
	return nil
}

func (s *WriteBehindStore) Remove(key string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer[key] = &writeBehindEntry{flushAt: now.Add(s.delay), removed: true}
	return nil
}

// RemoveBackup drops any tracked backup entry for the key.
func (s *WriteBehindStore) RemoveBackup(key string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buffer, key)
	return nil
}

// RemoveAll bypasses the buffer and deletes from the backend immediately,
// dropping any pending mutations for the same keys.
func (s *WriteBehindStore) RemoveAll(keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	s.mu.Lock()
	for _, key := range keys {
		delete(s.buffer, key)
	}
	s.mu.Unlock()

	if err := s.backend.DeleteAll(keys); err != nil {
		return fmt.Errorf("delete %d keys: %w", len(keys), err)
	}
	return nil
}

// Flush drains the whole buffer regardless of deadlines and returns the
// keys whose values were persisted, in sorted order.
func (s *WriteBehindStore) Flush() ([]string, error) {
	return s.drain(func(*writeBehindEntry) bool { return true })
}

// flushDue drains only the entries whose deadline has passed.
func (s *WriteBehindStore) flushDue(now time.Time) ([]string, error) {
	return s.drain(func(e *writeBehindEntry) bool { return !e.flushAt.After(now) })
}

// drain persists every buffered entry matched by due. Matched entries leave
// the buffer only after the backend accepted them and only while the buffer
// still holds the exact entry that was drained, so a failed drain is retried
// in full and a key rewritten during the backend call stays buffered.
func (s *WriteBehindStore) drain(due func(*writeBehindEntry) bool) ([]string, error) {
	stores := make(map[string][]byte)
	var deletes []string
	drained := make(map[string]*writeBehindEntry)

	s.mu.Lock()
	for key, entry := range s.buffer {
		if !due(entry) {
			continue
		}
		drained[key] = entry
		switch {
		case entry.transient:
		case entry.removed:
			deletes = append(deletes, key)
		default:
			stores[key] = entry.value
		}
	}
	s.mu.Unlock()

	if len(stores) > 0 {
		if err := s.backend.StoreAll(stores); err != nil {
			return nil, fmt.Errorf("flush %d entries: %w", len(stores), err)
		}
	}
	if len(deletes) > 0 {
		if err := s.backend.DeleteAll(deletes); err != nil {
			return nil, fmt.Errorf("flush %d removals: %w", len(deletes), err)
		}
	}

	// A key rewritten while the backend call was in flight holds a newer
	// entry now; deleting by key would drop that write unpersisted. Remove
	// only the exact entries observed above.
	s.mu.Lock()
	for key, entry := range drained {
		if s.buffer[key] == entry {
			delete(s.buffer, key)
		}
	}
	s.mu.Unlock()

	flushed := make([]string, 0, len(stores))
	for key := range stores {
		flushed = append(flushed, key)
	}
	sort.Strings(flushed)
	return flushed, nil
}

// FlushKey persists one entry immediately, used on eviction so a buffered
// write cannot be lost with its record. Backup-side flushes only drop the
// tracked entry.
func (s *WriteBehindStore) FlushKey(key string, value []byte, backup bool) error {
	s.mu.Lock()
	delete(s.buffer, key)
	s.mu.Unlock()

	if backup {
		return nil
	}
	if err := s.backend.Store(key, value); err != nil {
		return fmt.Errorf("flush %q: %w", key, err)
	}
	return nil
}

// Clear drops the buffer without touching the backend.
func (s *WriteBehindStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = make(map[string]*writeBehindEntry)
}

// Pending returns the number of buffered entries, for monitoring and tests.
func (s *WriteBehindStore) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}
