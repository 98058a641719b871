package storage

import (
	"sort"
	"time"

	"github.com/dreamware/partmap/internal/record"
)

// Storage holds the key to record mapping for one partition.
// It is not safe for concurrent use; see the package documentation.
type Storage struct {
	records   map[string]*record.Record // Key to live record
	destroyed bool                      // Set by Destroy, terminal
}

// New creates an empty Storage.
func New() *Storage {
	return &Storage{
		records: make(map[string]*record.Record),
	}
}

// Get returns the record for key, or nil if the key is absent.
func (s *Storage) Get(key string) *record.Record {
	return s.records[key]
}

// Put inserts or replaces the record stored under key.
func (s *Storage) Put(key string, r *record.Record) {
	s.records[key] = r
}

// UpdateValue replaces the value of an existing record in place.
func (s *Storage) UpdateValue(r *record.Record, value []byte, now time.Time) {
	r.SetValue(value, now)
}

// RemoveRecord deletes the record from the mapping.
// Removing an absent record is a no-op.
func (s *Storage) RemoveRecord(r *record.Record) {
	delete(s.records, r.Key())
}

// Remove deletes the record stored under key, reporting whether one existed.
func (s *Storage) Remove(key string) bool {
	if _, ok := s.records[key]; !ok {
		return false
	}
	delete(s.records, key)
	return true
}

// Size returns the number of stored records, expired entries included until
// they are purged.
func (s *Storage) Size() int {
	return len(s.records)
}

// IsEmpty reports whether no records are stored.
func (s *Storage) IsEmpty() bool {
	return len(s.records) == 0
}

// Values returns the live records in unspecified order.
// The returned slice is a fresh copy; the records themselves are live.
func (s *Storage) Values() []*record.Record {
	values := make([]*record.Record, 0, len(s.records))
	for _, r := range s.records {
		values = append(values, r)
	}
	return values
}

// Keys returns the stored keys in sorted order.
func (s *Storage) Keys() []string {
	keys := make([]string, 0, len(s.records))
	for key := range s.records {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Clear drops every record, keeping the storage usable.
func (s *Storage) Clear() int {
	removed := len(s.records)
	s.records = make(map[string]*record.Record)
	return removed
}

// Destroy releases the storage irreversibly. Any later mutation panics,
// which surfaces use-after-destroy bugs in the surrounding service layer.
func (s *Storage) Destroy() {
	s.records = nil
	s.destroyed = true
}

// Destroyed reports whether Destroy has been called.
func (s *Storage) Destroyed() bool {
	return s.destroyed
}
