package testfixtures

import (
	"sync"
	"testing"
	"time"
)

func TestClockSteps(t *testing.T) {
	start := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)
	clock := NewClock(start, time.Second)

	if got := clock.Now(); !got.Equal(start) {
		t.Fatalf("first Now: expected %v, got %v", start, got)
	}
	if got := clock.Now(); !got.Equal(start.Add(time.Second)) {
		t.Fatalf("second Now: expected %v, got %v", start.Add(time.Second), got)
	}

	clock.Advance(time.Hour)
	if got := clock.Peek(); !got.Equal(start.Add(time.Hour + 2*time.Second)) {
		t.Fatalf("Peek after advance: got %v", got)
	}
}

func TestClockWithoutStepStandsStill(t *testing.T) {
	clock := NewClock(time.Time{}, 0)
	if !clock.Now().Equal(ReferenceTime()) || !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected the clock to stay at ReferenceTime, got %v", clock.Peek())
	}
}

func TestSequenceIsUniqueUnderConcurrency(t *testing.T) {
	seq := NewSequence("classroom")
	if first := seq.Next(); first != "classroom-1" {
		t.Fatalf("expected classroom-1, got %q", first)
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
		wg   sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := seq.Next()
			mu.Lock()
			seen[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != 50 {
		t.Fatalf("expected 50 distinct ids, got %d", len(seen))
	}
}
