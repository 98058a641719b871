package mapstore

import (
	"time"
)

// Mode tags the persistence strategy of a MapDataStore.
type Mode int

const (
	// ModeNone means no backing store is configured.
	ModeNone Mode = iota
	// ModeWriteThrough persists synchronously on every mutation.
	ModeWriteThrough
	// ModeWriteBehind buffers mutations and persists them asynchronously.
	ModeWriteBehind
)

// String returns the mode name used in configuration files and logs.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeWriteThrough:
		return "write-through"
	case ModeWriteBehind:
		return "write-behind"
	default:
		return "unknown"
	}
}

// MapDataStore abstracts the relationship between one partition's record
// store and the map's backing store. Implementations are selected by
// configuration; callers branch on Mode, never on concrete type or
// instance identity.
type MapDataStore interface {
	// Mode returns the persistence strategy tag.
	Mode() Mode

	// Load reads one value from the backing store.
	// A nil value with nil error means the key is absent.
	Load(key string) ([]byte, error)

	// LoadAll reads a batch of values from the backing store.
	// Absent keys are simply missing from the result.
	LoadAll(keys []string) (map[string][]byte, error)

	// Add records a new value for key at now and returns the value as the
	// store accepted it. Write-through implementations persist before
	// returning; write-behind implementations buffer.
	Add(key string, value []byte, now time.Time) ([]byte, error)

	// AddTransient tracks key as transiently written at now. The value is
	// never persisted; the entry only keeps the key visible to the buffer.
	AddTransient(key string, now time.Time)

	// AddBackup records a backup-side write. Backups never persist
	// directly (the primary does), so implementations only track state
	// needed for promotion.
	AddBackup(key string, value []byte, now time.Time) error

	// Remove records the removal of key at now.
	Remove(key string, now time.Time) error

	// RemoveBackup records a backup-side removal.
	RemoveBackup(key string, now time.Time) error

	// RemoveAll removes a batch of keys from the backing store
	// immediately, bypassing any buffering.
	RemoveAll(keys []string) error

	// Flush drains all buffered entries to the backing store and returns
	// the keys whose writes were completed.
	Flush() ([]string, error)

	// FlushKey immediately persists a single entry, used when a record is
	// evicted while a buffered write may still be pending. Backup-side
	// flushes are tracked but not persisted.
	FlushKey(key string, value []byte, backup bool) error

	// Clear drops any buffered state without touching the backing store.
	Clear()
}

// NewNoStore returns the MapDataStore used when no backing store is
// configured.
func NewNoStore() MapDataStore {
	return noStore{}
}

// noStore is the ModeNone variant. All operations succeed and do nothing.
type noStore struct{}

func (noStore) Mode() Mode                                       { return ModeNone }
func (noStore) Load(string) ([]byte, error)                      { return nil, nil }
func (noStore) LoadAll([]string) (map[string][]byte, error)      { return nil, nil }
func (noStore) Add(_ string, value []byte, _ time.Time) ([]byte, error) {
	return value, nil
}
func (noStore) AddTransient(string, time.Time)                {}
func (noStore) AddBackup(string, []byte, time.Time) error     { return nil }
func (noStore) Remove(string, time.Time) error                { return nil }
func (noStore) RemoveBackup(string, time.Time) error          { return nil }
func (noStore) RemoveAll([]string) error                      { return nil }
func (noStore) Flush() ([]string, error)                      { return nil, nil }
func (noStore) FlushKey(string, []byte, bool) error           { return nil }
func (noStore) Clear()                                        {}
