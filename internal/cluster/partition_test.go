package cluster

import (
	"fmt"
	"testing"
)

func TestPartitionForKey(t *testing.T) {
	t.Run("routing is deterministic", func(t *testing.T) {
		for _, key := range []string{"", "a", "user:123", "some/long/key"} {
			first := PartitionForKey(key, DefaultPartitionCount)
			second := PartitionForKey(key, DefaultPartitionCount)
			if first != second {
				t.Errorf("Key %q routed to %d then %d", key, first, second)
			}
			if first < 0 || first >= DefaultPartitionCount {
				t.Errorf("Key %q routed out of range: %d", key, first)
			}
		}
	})

	t.Run("keys spread across partitions", func(t *testing.T) {
		seen := make(map[int]bool)
		for i := 0; i < 1000; i++ {
			seen[PartitionForKey(fmt.Sprintf("key-%d", i), DefaultPartitionCount)] = true
		}
		// 1000 keys over 271 partitions should touch a large share of them.
		if len(seen) < 200 {
			t.Errorf("Expected broad distribution, got %d partitions", len(seen))
		}
	})

	t.Run("non-positive count routes to zero", func(t *testing.T) {
		if got := PartitionForKey("k", 0); got != 0 {
			t.Errorf("Expected 0, got %d", got)
		}
	})
}

func TestOwnsKey(t *testing.T) {
	key := "user:42"
	owner := PartitionForKey(key, DefaultPartitionCount)

	if !OwnsKey(key, owner, DefaultPartitionCount) {
		t.Error("Expected the routed partition to own the key")
	}
	if OwnsKey(key, (owner+1)%DefaultPartitionCount, DefaultPartitionCount) {
		t.Error("Expected a different partition not to own the key")
	}
}
