// Package merge implements the conflict-resolution side of cluster merging
// (split-brain healing) for a partition record store: the entry views handed
// to merge policies and a set of standard policies.
//
// A merge policy is a pure function of (map name, incoming view, existing
// view) returning the winning value, or nil as a tombstone meaning the entry
// must not survive the merge. Policies see entries through EntryView, which
// deserializes the underlying bytes lazily so policies that only compare
// metadata never pay for decoding.
package merge

import (
	"sync"
	"time"

	"github.com/dreamware/partmap/internal/record"
	"github.com/dreamware/partmap/internal/serialization"
)

// EntryView is the read-only window a merge policy gets onto one replica of
// an entry. A view representing an absent entry has a nil Value.
type EntryView interface {
	// Key returns the entry key.
	Key() string

	// Value returns the raw serialized value, nil for an absent entry.
	Value() []byte

	// ValueObject lazily deserializes the value, memoizing the result.
	// Absent entries return nil.
	ValueObject() (any, error)

	// CreationTime returns when the entry was created on its replica.
	CreationTime() time.Time

	// LastAccessTime returns the entry's last read time.
	LastAccessTime() time.Time

	// LastUpdateTime returns the entry's last write time.
	LastUpdateTime() time.Time

	// TTL returns the entry's time-to-live, zero for none.
	TTL() time.Duration

	// Hits returns the entry's access count.
	Hits() int64

	// Version returns the entry's update version.
	Version() int64
}

// Policy resolves one conflicting key during a cluster merge. A nil return
// is the tombstone: the entry must be removed rather than written.
type Policy interface {
	Merge(mapName string, merging, existing EntryView) []byte
}

// MergingEntry is the incoming replica of an entry carried by a merge
// operation, with the metadata captured on its source member.
type MergingEntry struct {
	EntryKey   string        // Entry key
	EntryValue []byte        // Serialized value
	Created    time.Time     // Creation time on the source member
	Accessed   time.Time     // Last access time on the source member
	Updated    time.Time     // Last update time on the source member
	EntryTTL   time.Duration // TTL carried from the source member
	EntryHits  int64         // Access count on the source member
	EntryVer   int64         // Update version on the source member
}

// View wraps the merging entry in a lazily deserializing EntryView.
func (e *MergingEntry) View(codec serialization.Codec) EntryView {
	return &lazyView{
		key:      e.EntryKey,
		value:    e.EntryValue,
		created:  e.Created,
		accessed: e.Accessed,
		updated:  e.Updated,
		ttl:      e.EntryTTL,
		hits:     e.EntryHits,
		version:  e.EntryVer,
		codec:    codec,
	}
}

// lazyView implements EntryView over raw bytes plus metadata, decoding the
// value at most once.
type lazyView struct {
	key      string
	value    []byte
	created  time.Time
	accessed time.Time
	updated  time.Time
	ttl      time.Duration
	hits     int64
	version  int64

	codec      serialization.Codec
	decodeOnce sync.Once
	object     any
	decodeErr  error
}

func (v *lazyView) Key() string               { return v.key }
func (v *lazyView) Value() []byte             { return v.value }
func (v *lazyView) CreationTime() time.Time   { return v.created }
func (v *lazyView) LastAccessTime() time.Time { return v.accessed }
func (v *lazyView) LastUpdateTime() time.Time { return v.updated }
func (v *lazyView) TTL() time.Duration        { return v.ttl }
func (v *lazyView) Hits() int64               { return v.hits }
func (v *lazyView) Version() int64            { return v.version }

func (v *lazyView) ValueObject() (any, error) {
	if v.value == nil {
		return nil, nil
	}
	v.decodeOnce.Do(func() {
		v.object, v.decodeErr = v.codec.Decode(v.value)
	})
	return v.object, v.decodeErr
}

// NewRecordView wraps a record snapshot in a lazily deserializing EntryView
// for the existing side of a merge.
func NewRecordView(snapshot record.View, codec serialization.Codec) EntryView {
	return &lazyView{
		key:      snapshot.Key,
		value:    snapshot.Value,
		created:  snapshot.CreationTime,
		accessed: snapshot.LastAccessTime,
		updated:  snapshot.LastUpdateTime,
		ttl:      snapshot.TTL,
		hits:     snapshot.Hits,
		version:  snapshot.Version,
		codec:    codec,
	}
}

// NewNullView returns the EntryView representing an absent local entry.
func NewNullView(key string) EntryView {
	return &lazyView{key: key}
}
