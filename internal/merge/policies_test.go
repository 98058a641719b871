package merge

import (
	"bytes"
	"testing"
	"time"

	"github.com/dreamware/partmap/internal/serialization"
)

var codec = serialization.JSONCodec{}

func incomingEntry(value string, updated time.Time, hits int64) EntryView {
	e := &MergingEntry{
		EntryKey:   "k",
		EntryValue: []byte(value),
		Updated:    updated,
		EntryHits:  hits,
	}
	return e.View(codec)
}

func existingEntry(value string, updated time.Time, hits int64) EntryView {
	var raw []byte
	if value != "" {
		raw = []byte(value)
	}
	return &lazyView{
		key:     "k",
		value:   raw,
		updated: updated,
		hits:    hits,
		codec:   codec,
	}
}

// TestPolicies tests the built-in merge policies over present/absent replica
// combinations.
func TestPolicies(t *testing.T) {
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	older := base.Add(-time.Hour)

	tests := []struct {
		name     string
		policy   Policy
		merging  EntryView
		existing EntryView
		want     string
	}{
		{
			name:     "pass-through adopts incoming",
			policy:   PassThroughPolicy{},
			merging:  incomingEntry(`"new"`, base, 0),
			existing: existingEntry(`"old"`, older, 9),
			want:     `"new"`,
		},
		{
			name:     "pass-through keeps existing when incoming absent",
			policy:   PassThroughPolicy{},
			merging:  NewNullView("k"),
			existing: existingEntry(`"old"`, older, 0),
			want:     `"old"`,
		},
		{
			name:     "put-if-absent keeps existing",
			policy:   PutIfAbsentPolicy{},
			merging:  incomingEntry(`"new"`, base, 0),
			existing: existingEntry(`"old"`, older, 0),
			want:     `"old"`,
		},
		{
			name:     "put-if-absent fills a gap",
			policy:   PutIfAbsentPolicy{},
			merging:  incomingEntry(`"new"`, base, 0),
			existing: NewNullView("k"),
			want:     `"new"`,
		},
		{
			name:     "latest-update keeps the newer existing",
			policy:   LatestUpdatePolicy{},
			merging:  incomingEntry(`"new"`, older, 0),
			existing: existingEntry(`"old"`, base, 0),
			want:     `"old"`,
		},
		{
			name:     "latest-update adopts the newer incoming",
			policy:   LatestUpdatePolicy{},
			merging:  incomingEntry(`"new"`, base, 0),
			existing: existingEntry(`"old"`, older, 0),
			want:     `"new"`,
		},
		{
			name:     "latest-update ties go to incoming",
			policy:   LatestUpdatePolicy{},
			merging:  incomingEntry(`"new"`, base, 0),
			existing: existingEntry(`"old"`, base, 0),
			want:     `"new"`,
		},
		{
			name:     "higher-hits keeps the busier existing",
			policy:   HigherHitsPolicy{},
			merging:  incomingEntry(`"new"`, base, 2),
			existing: existingEntry(`"old"`, base, 5),
			want:     `"old"`,
		},
		{
			name:     "higher-hits ties go to incoming",
			policy:   HigherHitsPolicy{},
			merging:  incomingEntry(`"new"`, base, 3),
			existing: existingEntry(`"old"`, base, 3),
			want:     `"new"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.policy.Merge("test-map", tt.merging, tt.existing)
			if !bytes.Equal(got, []byte(tt.want)) {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

// TestPoliciesAgainstAbsentIncoming verifies metadata policies fall back to
// the existing value instead of manufacturing a tombstone.
func TestPoliciesAgainstAbsentIncoming(t *testing.T) {
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	existing := existingEntry(`"old"`, base, 1)

	for _, policy := range []Policy{LatestUpdatePolicy{}, HigherHitsPolicy{}} {
		if got := policy.Merge("m", NewNullView("k"), existing); !bytes.Equal(got, []byte(`"old"`)) {
			t.Errorf("%T: expected existing value, got %s", policy, got)
		}
	}
}

// TestLazyDecode verifies views decode at most once and absent views decode
// to nil.
func TestLazyDecode(t *testing.T) {
	e := &MergingEntry{EntryKey: "k", EntryValue: []byte(`{"a":1}`)}
	view := e.View(codec)

	first, err := view.ValueObject()
	if err != nil {
		t.Fatalf("ValueObject failed: %v", err)
	}
	doc, ok := first.(map[string]any)
	if !ok || doc["a"] != float64(1) {
		t.Errorf("Unexpected decoded object: %#v", first)
	}

	// Memoized: the exact decoded object comes back again.
	second, err := view.ValueObject()
	if err != nil {
		t.Fatalf("ValueObject failed on repeat: %v", err)
	}
	if doc2, ok := second.(map[string]any); !ok || doc2["a"] != float64(1) {
		t.Errorf("Unexpected object on repeat decode: %#v", second)
	}

	null := NewNullView("k")
	obj, err := null.ValueObject()
	if err != nil || obj != nil {
		t.Errorf("Expected nil object for an absent view, got %v err %v", obj, err)
	}
}
