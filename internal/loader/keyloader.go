package loader

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dreamware/partmap/internal/mapstore"
)

// Sink is the record-store side of the key-loading pipeline. The key loader
// pushes key batches into it and reports overall progress through it.
type Sink interface {
	// LoadAllFromStore materializes the values for a batch of keys.
	LoadAllFromStore(keys []string, replaceExisting bool)

	// UpdateLoadStatus relays batch completion or failure. lastBatch true
	// marks the partition fully populated.
	UpdateLoadStatus(lastBatch bool, err error)
}

// KeyLoader drives the bulk key load for one partition.
type KeyLoader interface {
	// StartInitialLoad begins the first bulk load and returns its handle.
	StartInitialLoad() *Handle

	// StartLoading begins a bulk (re)load and returns its handle.
	StartLoading(replaceExisting bool) *Handle

	// TrackLoading records batch progress. err marks the load failed;
	// lastBatch true marks it finished.
	TrackLoading(lastBatch bool, err error)

	// ShouldDoInitialLoad reports whether no load has been triggered yet.
	ShouldDoInitialLoad() bool

	// TriggerLoadingWithDelay schedules a retry nudge for a load whose
	// batches appear stalled. Repeated calls collapse into one pending
	// nudge.
	TriggerLoadingWithDelay()

	// OnKeyLoad registers a callback invoked once loading finishes or
	// fails. A callback registered after completion fires immediately.
	OnKeyLoad(fn func(error))
}

// BackendKeyLoader loads keys out of a mapstore.Backend in fixed-size
// batches and feeds them to a Sink on a background goroutine.
type BackendKeyLoader struct {
	backend    mapstore.Backend
	sink       Sink
	batchSize  int
	retryDelay time.Duration

	mu           sync.Mutex
	started      bool
	finished     bool
	result       error
	retryPending bool
	callbacks    []func(error)
}

var _ KeyLoader = (*BackendKeyLoader)(nil)

// NewBackendKeyLoader creates a key loader reading from backend and feeding
// sink. batchSize caps the keys per LoadAllFromStore call; retryDelay spaces
// the stall nudges.
func NewBackendKeyLoader(backend mapstore.Backend, sink Sink, batchSize int, retryDelay time.Duration) *BackendKeyLoader {
	if batchSize <= 0 {
		batchSize = 1000
	}
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return &BackendKeyLoader{
		backend:    backend,
		sink:       sink,
		batchSize:  batchSize,
		retryDelay: retryDelay,
	}
}

// StartInitialLoad implements KeyLoader.
func (l *BackendKeyLoader) StartInitialLoad() *Handle {
	return l.StartLoading(false)
}

// StartLoading implements KeyLoader.
func (l *BackendKeyLoader) StartLoading(replaceExisting bool) *Handle {
	l.mu.Lock()
	l.started = true
	l.mu.Unlock()

	return Run(func() error {
		keys, err := l.backend.Keys()
		if err != nil {
			err = fmt.Errorf("list keys: %w", err)
			l.sink.UpdateLoadStatus(true, err)
			return err
		}

		for start := 0; start < len(keys); start += l.batchSize {
			end := start + l.batchSize
			if end > len(keys) {
				end = len(keys)
			}
			l.sink.LoadAllFromStore(keys[start:end], replaceExisting)
		}

		l.sink.UpdateLoadStatus(true, nil)
		return nil
	})
}

// TrackLoading implements KeyLoader.
func (l *BackendKeyLoader) TrackLoading(lastBatch bool, err error) {
	if !lastBatch && err == nil {
		return
	}

	l.mu.Lock()
	if l.finished {
		l.mu.Unlock()
		return
	}
	l.finished = true
	l.result = err
	callbacks := l.callbacks
	l.callbacks = nil
	l.mu.Unlock()

	for _, fn := range callbacks {
		fn(err)
	}
}

// ShouldDoInitialLoad implements KeyLoader.
func (l *BackendKeyLoader) ShouldDoInitialLoad() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.started
}

// TriggerLoadingWithDelay implements KeyLoader. The nudge observes and logs
// but never starts a second load: load goroutines run in process and always
// complete their handles, so a load still unfinished when the nudge fires
// means the backend call itself is in flight, and launching another load
// would only duplicate that fetch. A deployment where load triggers can be
// lost in transit would hook its retrigger here.
func (l *BackendKeyLoader) TriggerLoadingWithDelay() {
	l.mu.Lock()
	if l.retryPending || l.finished {
		l.mu.Unlock()
		return
	}
	l.retryPending = true
	l.mu.Unlock()

	time.AfterFunc(l.retryDelay, func() {
		l.mu.Lock()
		l.retryPending = false
		stalled := l.started && !l.finished
		l.mu.Unlock()

		if stalled {
			log.Printf("key loader: load still in progress after %v", l.retryDelay)
		}
	})
}

// OnKeyLoad implements KeyLoader.
func (l *BackendKeyLoader) OnKeyLoad(fn func(error)) {
	l.mu.Lock()
	if l.finished {
		result := l.result
		l.mu.Unlock()
		fn(result)
		return
	}
	l.callbacks = append(l.callbacks, fn)
	l.mu.Unlock()
}
