package loader

import (
	"sync"

	"github.com/google/uuid"
)

// Handle is the future for one asynchronous load. It completes exactly once,
// with a nil error on success.
type Handle struct {
	id    string        // Stable identity for logs
	done  chan struct{} // Closed on completion
	once  sync.Once
	err   error  // Written before done closes, read after
	batch *Batch // Staged before done closes, taken after via TakeBatch
}

// NewHandle creates an incomplete handle.
func NewHandle() *Handle {
	return &Handle{
		id:   uuid.NewString(),
		done: make(chan struct{}),
	}
}

// Run starts fn in its own goroutine and returns a handle completing with
// fn's result.
func Run(fn func() error) *Handle {
	h := NewHandle()
	go func() {
		h.Complete(fn())
	}()
	return h
}

// Batch is the staged result of one bulk-load fetch: values pulled from the
// backing store, waiting for the partition writer to materialize them.
// Fetch goroutines must never write partition storage themselves.
type Batch struct {
	Entries         map[string][]byte
	ReplaceExisting bool
}

// RunBatch starts fetch in its own goroutine and returns a handle that
// stages the fetched values for TakeBatch before completing.
func RunBatch(replaceExisting bool, fetch func() (map[string][]byte, error)) *Handle {
	h := NewHandle()
	go func() {
		entries, err := fetch()
		if err == nil {
			h.batch = &Batch{Entries: entries, ReplaceExisting: replaceExisting}
		}
		h.Complete(err)
	}()
	return h
}

// TakeBatch hands out the staged batch at most once, nil when there is none
// or it was already taken. Only meaningful once Done reports true; the stage
// happens before the handle completes.
func (h *Handle) TakeBatch() *Batch {
	if !h.Done() {
		return nil
	}
	b := h.batch
	h.batch = nil
	return b
}

// ID returns the handle's identity.
func (h *Handle) ID() string { return h.id }

// Complete finishes the handle. Later calls are ignored.
func (h *Handle) Complete(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
	})
}

// Done reports whether the handle has completed, without blocking.
func (h *Handle) Done() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Err returns the completion error. It is only meaningful once Done reports
// true; an incomplete handle returns nil.
func (h *Handle) Err() error {
	if !h.Done() {
		return nil
	}
	return h.err
}

// Wait blocks until the handle completes and returns its error.
// Only tests and shutdown paths wait; the partition writer always polls.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}
