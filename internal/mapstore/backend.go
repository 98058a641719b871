package mapstore

import (
	"sync"
)

// Backend is the contract a durable key-value store implements to back a
// distributed map. All methods must be safe for concurrent use: the
// write-behind flusher, the key loader, and partition writers of different
// partitions all share one Backend.
type Backend interface {
	// Load reads one value. A nil value with nil error means absent.
	Load(key string) ([]byte, error)

	// LoadAll reads a batch of values. Absent keys are omitted.
	LoadAll(keys []string) (map[string][]byte, error)

	// Store writes one value.
	Store(key string, value []byte) error

	// StoreAll writes a batch of values.
	StoreAll(entries map[string][]byte) error

	// Delete removes one key. Deleting an absent key is not an error.
	Delete(key string) error

	// DeleteAll removes a batch of keys.
	DeleteAll(keys []string) error

	// Keys lists every key currently in the store.
	Keys() ([]string, error)
}

// FakeBackend is an in-memory Backend for tests and local experimentation.
// It optionally injects failures through the Fail* hooks.
type FakeBackend struct {
	mu   sync.RWMutex
	data map[string][]byte

	// FailLoad, when set, is returned by Load and LoadAll.
	FailLoad error
	// FailStore, when set, is returned by Store and StoreAll.
	FailStore error

	loads  int // Load + LoadAll call count
	stores int // Store + StoreAll call count
}

// NewFakeBackend creates a FakeBackend seeded with the given entries.
func NewFakeBackend(seed map[string][]byte) *FakeBackend {
	data := make(map[string][]byte, len(seed))
	for k, v := range seed {
		data[k] = append([]byte(nil), v...)
	}
	return &FakeBackend{data: data}
}

// Load implements Backend.
func (b *FakeBackend) Load(key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.loads++
	if b.FailLoad != nil {
		return nil, b.FailLoad
	}
	value, ok := b.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), value...), nil
}

// LoadAll implements Backend.
func (b *FakeBackend) LoadAll(keys []string) (map[string][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.loads++
	if b.FailLoad != nil {
		return nil, b.FailLoad
	}
	result := make(map[string][]byte)
	for _, key := range keys {
		if value, ok := b.data[key]; ok {
			result[key] = append([]byte(nil), value...)
		}
	}
	return result, nil
}

// Store implements Backend.
func (b *FakeBackend) Store(key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stores++
	if b.FailStore != nil {
		return b.FailStore
	}
	b.data[key] = append([]byte(nil), value...)
	return nil
}

// StoreAll implements Backend.
func (b *FakeBackend) StoreAll(entries map[string][]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stores++
	if b.FailStore != nil {
		return b.FailStore
	}
	for key, value := range entries {
		b.data[key] = append([]byte(nil), value...)
	}
	return nil
}

// Delete implements Backend.
func (b *FakeBackend) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.data, key)
	return nil
}

// DeleteAll implements Backend.
func (b *FakeBackend) DeleteAll(keys []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, key := range keys {
		delete(b.data, key)
	}
	return nil
}

// Keys implements Backend.
func (b *FakeBackend) Keys() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.data))
	for key := range b.data {
		keys = append(keys, key)
	}
	return keys, nil
}

// Has reports whether key is currently stored.
func (b *FakeBackend) Has(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.data[key]
	return ok
}

// Loads returns the number of load calls observed.
func (b *FakeBackend) Loads() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loads
}

// Stores returns the number of store calls observed.
func (b *FakeBackend) Stores() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stores
}
