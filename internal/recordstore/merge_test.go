package recordstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/partmap/internal/mapstore"
	"github.com/dreamware/partmap/internal/merge"
)

// tombstonePolicy always decides the entry must not survive.
type tombstonePolicy struct{}

func (tombstonePolicy) Merge(string, merge.EntryView, merge.EntryView) []byte { return nil }

// keepExistingPolicy always keeps the local replica.
type keepExistingPolicy struct{}

func (keepExistingPolicy) Merge(_ string, _, existing merge.EntryView) []byte {
	return existing.Value()
}

func incoming(key, value string, ttl time.Duration) *merge.MergingEntry {
	return &merge.MergingEntry{
		EntryKey:   key,
		EntryValue: []byte(value),
		EntryTTL:   ttl,
	}
}

func TestMergeIntoAbsentKey(t *testing.T) {
	t.Run("adopted incoming creates a record", func(t *testing.T) {
		backend := mapstore.NewFakeBackend(nil)
		rs, _ := newTestStore(mapstore.NewWriteThrough(backend))

		applied, err := rs.Merge("k", incoming("k", "v", 0), merge.PassThroughPolicy{})
		require.NoError(t, err)
		assert.True(t, applied)

		value, err := rs.Get("k", false)
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), value)
		assert.True(t, backend.Has("k"), "An adopted merge is persisted")
	})

	t.Run("rejected incoming against a gap reports false", func(t *testing.T) {
		rs, _ := newTestStore(nil)

		applied, err := rs.Merge("k", incoming("k", "v", 0), keepExistingPolicy{})
		require.NoError(t, err)
		assert.False(t, applied, "Nothing to write and nothing to remove")
		assert.Equal(t, 0, rs.Size())
	})

	t.Run("adopted incoming carries its expiration", func(t *testing.T) {
		rs, clock := newTestStore(nil)

		applied, err := rs.Merge("k", incoming("k", "v", time.Minute), merge.PassThroughPolicy{})
		require.NoError(t, err)
		require.True(t, applied)

		clock.Advance(2 * time.Minute)
		value, err := rs.Get("k", false)
		require.NoError(t, err)
		assert.Nil(t, value, "Merged entry must honor the incoming TTL")
	})
}

func TestMergeIntoExistingKey(t *testing.T) {
	t.Run("tombstone removes and counts as applied", func(t *testing.T) {
		backend := mapstore.NewFakeBackend(nil)
		rs, _ := newTestStore(mapstore.NewWriteThrough(backend))
		_, err := rs.Put("k", []byte("local"), 0)
		require.NoError(t, err)

		applied, err := rs.Merge("k", incoming("k", "other", 0), tombstonePolicy{})
		require.NoError(t, err)
		assert.True(t, applied, "A policy-decided removal is a successful merge")
		assert.Equal(t, 0, rs.Size())
		assert.False(t, backend.Has("k"))
	})

	t.Run("equal winner short-circuits without a store write", func(t *testing.T) {
		backend := mapstore.NewFakeBackend(nil)
		rs, _ := newTestStore(mapstore.NewWriteThrough(backend))
		_, err := rs.Put("k", []byte("same"), 0)
		require.NoError(t, err)

		stores := backend.Stores()
		applied, err := rs.Merge("k", incoming("k", "same", 0), merge.PassThroughPolicy{})
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, stores, backend.Stores(), "A no-op merge must not write the store")

		r := rs.GetRecord("k")
		require.NotNil(t, r)
		assert.Equal(t, int64(0), r.Version(), "A no-op merge must not bump the version")
	})

	t.Run("different winner updates the record", func(t *testing.T) {
		rs, _ := newTestStore(nil)
		_, err := rs.Put("k", []byte("local"), 0)
		require.NoError(t, err)

		applied, err := rs.Merge("k", incoming("k", "remote", 0), merge.PassThroughPolicy{})
		require.NoError(t, err)
		assert.True(t, applied)

		value, err := rs.Get("k", false)
		require.NoError(t, err)
		assert.Equal(t, []byte("remote"), value)
		assert.Equal(t, int64(1), rs.GetRecord("k").Version())
	})

	t.Run("keeping the local replica still counts as applied", func(t *testing.T) {
		rs, _ := newTestStore(nil)
		_, err := rs.Put("k", []byte("local"), 0)
		require.NoError(t, err)

		applied, err := rs.Merge("k", incoming("k", "remote", 0), keepExistingPolicy{})
		require.NoError(t, err)
		assert.True(t, applied)

		value, err := rs.Get("k", false)
		require.NoError(t, err)
		assert.Equal(t, []byte("local"), value)
	})

	t.Run("adopting the incoming value adopts its ttl", func(t *testing.T) {
		rs, clock := newTestStore(nil)
		_, err := rs.Put("k", []byte("local"), 0)
		require.NoError(t, err)

		applied, err := rs.Merge("k", incoming("k", "remote", time.Minute), merge.PassThroughPolicy{})
		require.NoError(t, err)
		require.True(t, applied)

		clock.Advance(2 * time.Minute)
		value, err := rs.Get("k", false)
		require.NoError(t, err)
		assert.Nil(t, value)
	})
}

func TestMergeIsDeterministic(t *testing.T) {
	// The same inputs through the same policy converge on every member.
	run := func() []byte {
		rs, _ := newTestStore(nil)
		_, err := rs.Put("k", []byte(`{"n":1}`), 0)
		require.NoError(t, err)

		e := &merge.MergingEntry{
			EntryKey:   "k",
			EntryValue: []byte(`{"n":2}`),
			Updated:    time.Date(2026, 8, 25, 13, 0, 0, 0, time.UTC),
		}
		_, err = rs.Merge("k", e, merge.LatestUpdatePolicy{})
		require.NoError(t, err)

		value, err := rs.Get("k", false)
		require.NoError(t, err)
		return value
	}

	first := run()
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, run())
	}
}
