package mapstore

import (
	"fmt"
	"time"
)

// writeThroughStore is the ModeWriteThrough variant. Every mutation reaches
// the Backend before returning, so nothing is ever buffered and Flush has
// nothing to drain.
type writeThroughStore struct {
	backend Backend
}

// NewWriteThrough creates a MapDataStore that persists synchronously to
// backend.
func NewWriteThrough(backend Backend) MapDataStore {
	return &writeThroughStore{backend: backend}
}

func (s *writeThroughStore) Mode() Mode { return ModeWriteThrough }

func (s *writeThroughStore) Load(key string) ([]byte, error) {
	value, err := s.backend.Load(key)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", key, err)
	}
	return value, nil
}

func (s *writeThroughStore) LoadAll(keys []string) (map[string][]byte, error) {
	entries, err := s.backend.LoadAll(keys)
	if err != nil {
		return nil, fmt.Errorf("load %d keys: %w", len(keys), err)
	}
	return entries, nil
}

func (s *writeThroughStore) Add(key string, value []byte, _ time.Time) ([]byte, error) {
	if err := s.backend.Store(key, value); err != nil {
		return nil, fmt.Errorf("store %q: %w", key, err)
	}
	return value, nil
}

// AddTransient is a no-op: there is no buffer to track transient keys in.
func (s *writeThroughStore) AddTransient(string, time.Time) {}

// AddBackup is a no-op: the primary partition performs the synchronous
// write, backups must not write the same entry twice.
func (s *writeThroughStore) AddBackup(string, []byte, time.Time) error { return nil }

func (s *writeThroughStore) Remove(key string, _ time.Time) error {
	if err := s.backend.Delete(key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// RemoveBackup is a no-op for the same reason as AddBackup.
func (s *writeThroughStore) RemoveBackup(string, time.Time) error { return nil }

func (s *writeThroughStore) RemoveAll(keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.backend.DeleteAll(keys); err != nil {
		return fmt.Errorf("delete %d keys: %w", len(keys), err)
	}
	return nil
}

// Flush has nothing buffered to drain.
func (s *writeThroughStore) Flush() ([]string, error) { return nil, nil }

// FlushKey is satisfied trivially: the value already reached the backend
// when it was added.
func (s *writeThroughStore) FlushKey(string, []byte, bool) error { return nil }

// Clear has no buffered state to drop.
func (s *writeThroughStore) Clear() {}
