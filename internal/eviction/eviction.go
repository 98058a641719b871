// Package eviction defines the eviction capability a partition record store
// composes in. The record store never decides which records to evict; an
// external selection policy does that and calls Evict with its victims. The
// Evictor here only answers whether the partition is under enough pressure
// that new records are not worth admitting, which gates the load path.
package eviction

import "time"

// Evictor is the pressure gate consulted before admitting loaded records.
type Evictor interface {
	// ShouldEvict reports whether a partition holding size records is
	// under eviction pressure at now.
	ShouldEvict(size int, now time.Time) bool
}

// NeverEvict reports no pressure ever, the default for maps without an
// eviction policy.
type NeverEvict struct{}

// ShouldEvict implements Evictor.
func (NeverEvict) ShouldEvict(int, time.Time) bool { return false }

// MaxSizeEvictor reports pressure once a partition reaches MaxSize records.
type MaxSizeEvictor struct {
	MaxSize int // Record count per partition that triggers pressure
}

// ShouldEvict implements Evictor.
func (e MaxSizeEvictor) ShouldEvict(size int, _ time.Time) bool {
	return e.MaxSize > 0 && size >= e.MaxSize
}
