// Package index implements the secondary-index registry a partition record
// store reports key/value add and remove events to. The record store does
// not own index storage; it only keeps the registry consistent with every
// mutation so query code can resolve attribute lookups to keys.
package index

import (
	"fmt"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/dreamware/partmap/internal/serialization"
)

// Extractor derives the indexed attribute value from a stored value.
type Extractor func(value []byte) (string, error)

// JSONFieldExtractor returns an Extractor reading the named top-level field
// from JSON values decoded through codec. Missing fields index under the
// empty attribute and are skipped.
func JSONFieldExtractor(field string, codec serialization.Codec) Extractor {
	return func(value []byte) (string, error) {
		obj, err := codec.Decode(value)
		if err != nil {
			return "", fmt.Errorf("index %q: %w", field, err)
		}
		doc, ok := obj.(map[string]any)
		if !ok {
			return "", nil
		}
		attr, ok := doc[field]
		if !ok {
			return "", nil
		}
		return fmt.Sprint(attr), nil
	}
}

// inverted is one attribute index: attribute value to key set.
type inverted struct {
	extract Extractor
	entries map[string]map[string]struct{}
}

// Registry holds the indexes registered for one map. Reads come from query
// threads while the partition writer applies mutations, so the registry is
// mutex guarded.
type Registry struct {
	mu      sync.RWMutex
	indexes map[string]*inverted
}

// NewRegistry creates an empty index registry.
func NewRegistry() *Registry {
	return &Registry{indexes: make(map[string]*inverted)}
}

// HasIndex reports whether any index is registered. Record stores use this
// to skip index bookkeeping entirely on unindexed maps.
func (r *Registry) HasIndex() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.indexes) > 0
}

// AddIndex registers an index under name. Registering an existing name
// replaces the previous index definition and its entries.
func (r *Registry) AddIndex(name string, extract Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexes[name] = &inverted{
		extract: extract,
		entries: make(map[string]map[string]struct{}),
	}
}

// SaveEntryIndex records that key now maps to value, replacing the entry
// previously derived from oldValue. A nil oldValue means the key is new.
func (r *Registry) SaveEntryIndex(key string, value, oldValue []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, idx := range r.indexes {
		if oldValue != nil {
			if err := idx.remove(key, oldValue); err != nil {
				return fmt.Errorf("index %q: unindex %q: %w", name, key, err)
			}
		}
		attr, err := idx.extract(value)
		if err != nil {
			return fmt.Errorf("index %q: extract %q: %w", name, key, err)
		}
		if attr == "" {
			continue
		}
		keys, ok := idx.entries[attr]
		if !ok {
			keys = make(map[string]struct{})
			idx.entries[attr] = keys
		}
		keys[key] = struct{}{}
	}
	return nil
}

// RemoveEntryIndex removes key's entry derived from value from every index.
func (r *Registry) RemoveEntryIndex(key string, value []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, idx := range r.indexes {
		// A value that never indexed cleanly has nothing to remove.
		_ = idx.remove(key, value)
	}
}

func (idx *inverted) remove(key string, value []byte) error {
	attr, err := idx.extract(value)
	if err != nil {
		return err
	}
	if attr == "" {
		return nil
	}
	if keys, ok := idx.entries[attr]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(idx.entries, attr)
		}
	}
	return nil
}

// Query returns the keys indexed under attr by the named index, sorted.
func (r *Registry) Query(name, attr string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.indexes[name]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(idx.entries[attr]))
	for key := range idx.entries[attr] {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
