package mapstore

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStoppedWriteBehind builds a write-behind store whose background flusher
// is stopped immediately, so tests control every drain explicitly.
func newStoppedWriteBehind(backend Backend, batchCap int) *WriteBehindStore {
	s := NewWriteBehind(backend, time.Hour, batchCap)
	s.Stop()
	return s
}

// TestWriteBehindBuffering verifies that mutations stay buffered until a
// flush and that reads observe the buffer before the backend.
func TestWriteBehindBuffering(t *testing.T) {
	backend := NewFakeBackend(map[string][]byte{"old": []byte("stale")})
	s := newStoppedWriteBehind(backend, 0)
	now := time.Now()

	// Add buffers without touching the backend.
	_, err := s.Add("a", []byte("1"), now)
	require.NoError(t, err)
	assert.Equal(t, 0, backend.Stores(), "Add must not reach the backend before the flush")
	assert.Equal(t, 1, s.Pending())

	// A buffered value is visible through Load without a backend hit.
	loads := backend.Loads()
	value, err := s.Load("a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)
	assert.Equal(t, loads, backend.Loads(), "Buffered read must not reach the backend")

	// A buffered removal hides a stale backend value.
	require.NoError(t, s.Remove("old", now))
	value, err = s.Load("old")
	require.NoError(t, err)
	assert.Nil(t, value, "Pending removal must hide the backend value")

	// Flush persists the store, applies the delete, and reports stored keys.
	flushed, err := s.Flush()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, flushed)
	assert.True(t, backend.Has("a"))
	assert.False(t, backend.Has("old"))
	assert.Equal(t, 0, s.Pending())
}

// TestWriteBehindLoadAll verifies mixed buffer/backend batch reads.
func TestWriteBehindLoadAll(t *testing.T) {
	backend := NewFakeBackend(map[string][]byte{
		"stored":  []byte("from-backend"),
		"deleted": []byte("doomed"),
	})
	s := newStoppedWriteBehind(backend, 0)
	now := time.Now()

	_, err := s.Add("buffered", []byte("from-buffer"), now)
	require.NoError(t, err)
	require.NoError(t, s.Remove("deleted", now))

	result, err := s.LoadAll([]string{"buffered", "stored", "deleted", "absent"})
	require.NoError(t, err)

	assert.Equal(t, []byte("from-buffer"), result["buffered"])
	assert.Equal(t, []byte("from-backend"), result["stored"])
	assert.NotContains(t, result, "deleted")
	assert.NotContains(t, result, "absent")
}

// TestWriteBehindTransient verifies transient and backup entries never reach
// the backend.
func TestWriteBehindTransient(t *testing.T) {
	backend := NewFakeBackend(nil)
	s := newStoppedWriteBehind(backend, 0)
	now := time.Now()

	s.AddTransient("t", now)
	require.NoError(t, s.AddBackup("b", []byte("replica"), now))

	// The backup value is readable, for promotion after a failover.
	value, err := s.Load("b")
	require.NoError(t, err)
	assert.Equal(t, []byte("replica"), value)

	flushed, err := s.Flush()
	require.NoError(t, err)
	assert.Empty(t, flushed, "Transient entries must not be persisted")
	assert.Equal(t, 0, backend.Stores())
	assert.Equal(t, 0, s.Pending(), "Flush must still clear transient entries")
}

// TestWriteBehindBackpressure verifies the batch cap forces an inline drain.
func TestWriteBehindBackpressure(t *testing.T) {
	backend := NewFakeBackend(nil)
	s := newStoppedWriteBehind(backend, 2)
	now := time.Now()

	_, err := s.Add("a", []byte("1"), now)
	require.NoError(t, err)
	assert.Equal(t, 0, backend.Stores())

	// Second add hits the cap and drains synchronously.
	_, err = s.Add("b", []byte("2"), now)
	require.NoError(t, err)
	assert.True(t, backend.Has("a"))
	assert.True(t, backend.Has("b"))
	assert.Equal(t, 0, s.Pending())
}

// TestWriteBehindFlushFailure verifies failed drains keep entries buffered
// for retry.
func TestWriteBehindFlushFailure(t *testing.T) {
	backend := NewFakeBackend(nil)
	backend.FailStore = errors.New("backend down")
	s := newStoppedWriteBehind(backend, 0)

	_, err := s.Add("a", []byte("1"), time.Now())
	require.NoError(t, err)

	_, err = s.Flush()
	require.Error(t, err)
	assert.Equal(t, 1, s.Pending(), "Failed flush must keep the entry buffered")

	// Once the backend recovers the retry succeeds.
	backend.FailStore = nil
	flushed, err := s.Flush()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, flushed)
	assert.True(t, backend.Has("a"))
}

// TestWriteBehindFlushKey verifies the single-key eviction flush.
func TestWriteBehindFlushKey(t *testing.T) {
	backend := NewFakeBackend(nil)
	s := newStoppedWriteBehind(backend, 0)
	now := time.Now()

	_, err := s.Add("a", []byte("1"), now)
	require.NoError(t, err)

	require.NoError(t, s.FlushKey("a", []byte("1"), false))
	assert.True(t, backend.Has("a"))
	assert.Equal(t, 0, s.Pending())

	// Backup-side flush only drops the tracked entry.
	require.NoError(t, s.AddBackup("b", []byte("2"), now))
	require.NoError(t, s.FlushKey("b", []byte("2"), true))
	assert.False(t, backend.Has("b"))
	assert.Equal(t, 0, s.Pending())
}

// TestWriteBehindRemoveAll verifies bulk removal bypasses the buffer.
func TestWriteBehindRemoveAll(t *testing.T) {
	backend := NewFakeBackend(map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
	})
	s := newStoppedWriteBehind(backend, 0)

	// A pending write for "a" is dropped along with the backend entry.
	_, err := s.Add("a", []byte("new"), time.Now())
	require.NoError(t, err)

	require.NoError(t, s.RemoveAll([]string{"a", "b"}))
	assert.False(t, backend.Has("a"))
	assert.False(t, backend.Has("b"))
	assert.Equal(t, 0, s.Pending())
}

// TestWriteBehindBackgroundFlush verifies the flusher goroutine drains due
// entries on its own.
func TestWriteBehindBackgroundFlush(t *testing.T) {
	backend := NewFakeBackend(nil)
	s := NewWriteBehind(backend, 20*time.Millisecond, 0)
	defer s.Stop()

	_, err := s.Add("a", []byte("1"), time.Now())
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for !backend.Has("a") {
		if time.Now().After(deadline) {
			t.Fatal("Background flusher never persisted the entry")
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 0, s.Pending())
}

// TestWriteThrough verifies the synchronous variant has no buffered state.
func TestWriteThrough(t *testing.T) {
	backend := NewFakeBackend(map[string][]byte{"k": []byte("v")})
	s := NewWriteThrough(backend)
	now := time.Now()

	assert.Equal(t, ModeWriteThrough, s.Mode())

	value, err := s.Load("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)

	_, err = s.Add("a", []byte("1"), now)
	require.NoError(t, err)
	assert.True(t, backend.Has("a"), "Add must reach the backend synchronously")

	require.NoError(t, s.Remove("a", now))
	assert.False(t, backend.Has("a"))

	// Backup writes never hit the backend: the primary already did.
	require.NoError(t, s.AddBackup("b", []byte("2"), now))
	assert.False(t, backend.Has("b"))

	flushed, err := s.Flush()
	require.NoError(t, err)
	assert.Empty(t, flushed)
}

// TestNoStore verifies the mode-none adapter loads nothing and accepts
// everything.
func TestNoStore(t *testing.T) {
	s := NewNoStore()
	now := time.Now()

	assert.Equal(t, ModeNone, s.Mode())

	value, err := s.Load("k")
	require.NoError(t, err)
	assert.Nil(t, value)

	returned, err := s.Add("k", []byte("v"), now)
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), returned)

	require.NoError(t, s.Remove("k", now))

	flushed, err := s.Flush()
	require.NoError(t, err)
	assert.Empty(t, flushed)
}

// gatedBackend blocks its first StoreAll until released, so a test can
// interleave buffer writes with an in-flight drain.
type gatedBackend struct {
	*FakeBackend
	entered chan struct{}
	release chan struct{}
	first   sync.Once
}

func (b *gatedBackend) StoreAll(entries map[string][]byte) error {
	gate := false
	b.first.Do(func() { gate = true })
	if gate {
		close(b.entered)
		<-b.release
	}
	return b.FakeBackend.StoreAll(entries)
}

// TestDrainKeepsValueRewrittenDuringBackendCall pins the write-behind
// guarantee that a drain never drops an acknowledged write: a key rewritten
// while the backend call is in flight stays buffered for the next drain.
func TestDrainKeepsValueRewrittenDuringBackendCall(t *testing.T) {
	backend := &gatedBackend{
		FakeBackend: NewFakeBackend(nil),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	s := newStoppedWriteBehind(backend, 64)

	_, err := s.Add("k", []byte("v1"), time.Now())
	require.NoError(t, err)

	flushDone := make(chan error, 1)
	go func() {
		_, err := s.Flush()
		flushDone <- err
	}()

	// The drain is inside the backend call; overwrite the key.
	<-backend.entered
	_, err = s.Add("k", []byte("v2"), time.Now())
	require.NoError(t, err)
	close(backend.release)
	require.NoError(t, <-flushDone)

	// v1 reached the backend, but the newer v2 must survive the drain.
	assert.Equal(t, 1, s.Pending(), "The rewritten entry must stay buffered")
	value, err := s.Load("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), value)

	flushed, err := s.Flush()
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, flushed)
	assert.Equal(t, 0, s.Pending())

	stored, err := backend.FakeBackend.Load("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), stored)
}
