package index

import (
	"fmt"
	"testing"

	"github.com/dreamware/partmap/internal/serialization"
)

func userDoc(city string) []byte {
	return []byte(fmt.Sprintf(`{"name":"x","city":%q}`, city))
}

// TestRegistry tests index registration and entry bookkeeping.
func TestRegistry(t *testing.T) {
	codec := serialization.JSONCodec{}

	t.Run("empty registry has no index", func(t *testing.T) {
		r := NewRegistry()
		if r.HasIndex() {
			t.Error("Expected HasIndex false for an empty registry")
		}
		if r.Query("city", "paris") != nil {
			t.Error("Expected nil result from an unknown index")
		}
	})

	t.Run("save and query", func(t *testing.T) {
		r := NewRegistry()
		r.AddIndex("city", JSONFieldExtractor("city", codec))

		if !r.HasIndex() {
			t.Fatal("Expected HasIndex true after AddIndex")
		}

		for i, city := range []string{"paris", "tokyo", "paris"} {
			key := fmt.Sprintf("user:%d", i)
			if err := r.SaveEntryIndex(key, userDoc(city), nil); err != nil {
				t.Fatalf("SaveEntryIndex failed: %v", err)
			}
		}

		keys := r.Query("city", "paris")
		expected := []string{"user:0", "user:2"}
		if fmt.Sprint(keys) != fmt.Sprint(expected) {
			t.Errorf("Expected %v, got %v", expected, keys)
		}

		if len(r.Query("city", "berlin")) != 0 {
			t.Error("Expected no keys for an unindexed attribute")
		}
	})

	t.Run("update moves the entry", func(t *testing.T) {
		r := NewRegistry()
		r.AddIndex("city", JSONFieldExtractor("city", codec))

		old := userDoc("paris")
		if err := r.SaveEntryIndex("user:1", old, nil); err != nil {
			t.Fatalf("SaveEntryIndex failed: %v", err)
		}
		if err := r.SaveEntryIndex("user:1", userDoc("tokyo"), old); err != nil {
			t.Fatalf("SaveEntryIndex update failed: %v", err)
		}

		if len(r.Query("city", "paris")) != 0 {
			t.Error("Expected the old attribute entry to be removed on update")
		}
		keys := r.Query("city", "tokyo")
		if len(keys) != 1 || keys[0] != "user:1" {
			t.Errorf("Expected [user:1] under tokyo, got %v", keys)
		}
	})

	t.Run("remove entry", func(t *testing.T) {
		r := NewRegistry()
		r.AddIndex("city", JSONFieldExtractor("city", codec))

		value := userDoc("paris")
		if err := r.SaveEntryIndex("user:1", value, nil); err != nil {
			t.Fatalf("SaveEntryIndex failed: %v", err)
		}

		r.RemoveEntryIndex("user:1", value)
		if len(r.Query("city", "paris")) != 0 {
			t.Error("Expected no keys after RemoveEntryIndex")
		}
	})

	t.Run("missing field is skipped", func(t *testing.T) {
		r := NewRegistry()
		r.AddIndex("city", JSONFieldExtractor("city", codec))

		if err := r.SaveEntryIndex("user:1", []byte(`{"name":"x"}`), nil); err != nil {
			t.Fatalf("SaveEntryIndex failed: %v", err)
		}
		if len(r.Query("city", "")) != 0 {
			t.Error("Values without the indexed field must not be indexed")
		}
	})

	t.Run("broken value reports an error", func(t *testing.T) {
		r := NewRegistry()
		r.AddIndex("city", JSONFieldExtractor("city", codec))

		if err := r.SaveEntryIndex("user:1", []byte("not json"), nil); err == nil {
			t.Error("Expected an error for an undecodable value")
		}
	})
}
