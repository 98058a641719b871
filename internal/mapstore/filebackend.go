package mapstore

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileBackend is a Backend persisting entries as a single JSON document on
// disk. It is intended for the demo binary and local experimentation, not
// for production durability: every mutation rewrites the whole file.
type FileBackend struct {
	mu   sync.Mutex
	path string
}

// NewFileBackend creates a FileBackend at path. The file is created on the
// first write; a missing file reads as an empty store.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// read loads the whole document. Values are base64 in the file so arbitrary
// bytes survive the JSON round trip.
func (b *FileBackend) read() (map[string][]byte, error) {
	raw, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return map[string][]byte{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}

	var encoded map[string]string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, fmt.Errorf("parse %s: %w", b.path, err)
	}

	data := make(map[string][]byte, len(encoded))
	for key, enc := range encoded {
		value, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, fmt.Errorf("decode %q in %s: %w", key, b.path, err)
		}
		data[key] = value
	}
	return data, nil
}

func (b *FileBackend) write(data map[string][]byte) error {
	encoded := make(map[string]string, len(data))
	for key, value := range data {
		encoded[key] = base64.StdEncoding.EncodeToString(value)
	}

	raw, err := json.MarshalIndent(encoded, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", b.path, err)
	}
	if err := os.WriteFile(b.path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", b.path, err)
	}
	return nil
}

// Load implements Backend.
func (b *FileBackend) Load(key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := b.read()
	if err != nil {
		return nil, err
	}
	return data[key], nil
}

// LoadAll implements Backend.
func (b *FileBackend) LoadAll(keys []string) (map[string][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := b.read()
	if err != nil {
		return nil, err
	}
	result := make(map[string][]byte)
	for _, key := range keys {
		if value, ok := data[key]; ok {
			result[key] = value
		}
	}
	return result, nil
}

// Store implements Backend.
func (b *FileBackend) Store(key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := b.read()
	if err != nil {
		return err
	}
	data[key] = value
	return b.write(data)
}

// StoreAll implements Backend.
func (b *FileBackend) StoreAll(entries map[string][]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := b.read()
	if err != nil {
		return err
	}
	for key, value := range entries {
		data[key] = value
	}
	return b.write(data)
}

// Delete implements Backend.
func (b *FileBackend) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := b.read()
	if err != nil {
		return err
	}
	delete(data, key)
	return b.write(data)
}

// DeleteAll implements Backend.
func (b *FileBackend) DeleteAll(keys []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := b.read()
	if err != nil {
		return err
	}
	for _, key := range keys {
		delete(data, key)
	}
	return b.write(data)
}

// Keys implements Backend.
func (b *FileBackend) Keys() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := b.read()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	return keys, nil
}
