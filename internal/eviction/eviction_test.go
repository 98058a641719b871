package eviction

import (
	"testing"
	"time"
)

func TestNeverEvict(t *testing.T) {
	e := NeverEvict{}
	if e.ShouldEvict(1<<20, time.Now()) {
		t.Error("NeverEvict must never report pressure")
	}
}

func TestMaxSizeEvictor(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		maxSize int
		size    int
		want    bool
	}{
		{"below the limit", 100, 99, false},
		{"at the limit", 100, 100, true},
		{"over the limit", 100, 150, true},
		{"zero limit disables pressure", 0, 1 << 20, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := MaxSizeEvictor{MaxSize: tt.maxSize}
			if got := e.ShouldEvict(tt.size, now); got != tt.want {
				t.Errorf("ShouldEvict(%d) with max %d = %v, want %v", tt.size, tt.maxSize, got, tt.want)
			}
		})
	}
}
