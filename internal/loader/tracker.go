package loader

import (
	"sync"

	"github.com/fishy/errbatch"
)

// Tracker is the concurrency-safe collection of outstanding load handles for
// one partition.
type Tracker struct {
	mu      sync.Mutex
	handles []*Handle
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Add registers an in-flight load.
func (t *Tracker) Add(h *Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handles = append(t.handles, h)
}

// IsEmpty reports whether no loads are tracked.
func (t *Tracker) IsEmpty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles) == 0
}

// AllDone reports whether every tracked load has completed. An empty
// tracker counts as done.
func (t *Tracker) AllDone() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, h := range t.handles {
		if !h.Done() {
			return false
		}
	}
	return true
}

// Pending returns the number of tracked loads still in flight.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	pending := 0
	for _, h := range t.handles {
		if !h.Done() {
			pending++
		}
	}
	return pending
}

// DrainDone removes every completed handle, returning the batches they
// staged, in registration order, and their failures folded into one error.
// Each completion is observed exactly once: a batch or failure returned here
// is gone from the tracker and will not be returned again. The caller owns
// materializing the batches; it must be the partition writer.
func (t *Tracker) DrainDone() ([]Batch, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var batches []Batch
	var errs errbatch.ErrBatch
	remaining := t.handles[:0]
	for _, h := range t.handles {
		if !h.Done() {
			remaining = append(remaining, h)
			continue
		}
		if staged := h.TakeBatch(); staged != nil {
			batches = append(batches, *staged)
		}
		errs.Add(h.Err())
	}
	t.handles = remaining
	return batches, errs.Compile()
}
