package merge

// PassThroughPolicy always adopts the incoming entry. An absent incoming
// value falls back to the existing one so a pass-through merge never
// manufactures a tombstone.
type PassThroughPolicy struct{}

// Merge implements Policy.
func (PassThroughPolicy) Merge(_ string, merging, existing EntryView) []byte {
	if merging.Value() != nil {
		return merging.Value()
	}
	return existing.Value()
}

// PutIfAbsentPolicy keeps the existing entry when one exists and only adopts
// the incoming entry into a gap.
type PutIfAbsentPolicy struct{}

// Merge implements Policy.
func (PutIfAbsentPolicy) Merge(_ string, merging, existing EntryView) []byte {
	if existing.Value() != nil {
		return existing.Value()
	}
	return merging.Value()
}

// LatestUpdatePolicy is last-writer-wins by update timestamp. Ties go to the
// incoming entry, which keeps the policy deterministic for replicas whose
// clocks agree.
type LatestUpdatePolicy struct{}

// Merge implements Policy.
func (LatestUpdatePolicy) Merge(_ string, merging, existing EntryView) []byte {
	if existing.Value() == nil {
		return merging.Value()
	}
	if merging.Value() == nil {
		return existing.Value()
	}
	if existing.LastUpdateTime().After(merging.LastUpdateTime()) {
		return existing.Value()
	}
	return merging.Value()
}

// HigherHitsPolicy keeps whichever replica served more reads, favoring the
// incoming entry on ties.
type HigherHitsPolicy struct{}

// Merge implements Policy.
func (HigherHitsPolicy) Merge(_ string, merging, existing EntryView) []byte {
	if existing.Value() == nil {
		return merging.Value()
	}
	if merging.Value() == nil {
		return existing.Value()
	}
	if existing.Hits() > merging.Hits() {
		return existing.Value()
	}
	return merging.Value()
}
