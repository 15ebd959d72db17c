package ids

import (
	"testing"
	"time"
)

func TestNewAtIsMonotonicWithinMillisecond(t *testing.T) {
	ts := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	prev := NewAt(ts)
	for i := 0; i < 100; i++ {
		next := NewAt(ts)
		if next <= prev {
			t.Fatalf("id %s not after %s", next, prev)
		}
		prev = next
	}
}
