package testfixtures

import (
	"strconv"
	"sync"
	"time"
)

// Clock is a test time source. Every call to Now returns the current instant
// and then moves the clock forward by its step, so successive writes receive
// strictly increasing timestamps when step is positive.
type Clock struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

// NewClock returns a clock starting at start, or at ReferenceTime when start
// is zero.
func NewClock(start time.Time, step time.Duration) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start, step: step}
}

// Now returns the current instant and applies the step.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.current
	c.current = c.current.Add(c.step)
	return now
}

// Peek returns the instant the next Now call will report.
func (c *Clock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	c.mu.Unlock()
}

// Sequence hands out identifiers of the form "<prefix>-<n>".
type Sequence struct {
	mu     sync.Mutex
	prefix string
	next   uint64
}

// NewSequence returns a sequence starting at 1. An empty prefix means "id".
func NewSequence(prefix string) *Sequence {
	if prefix == "" {
		prefix = "id"
	}
	return &Sequence{prefix: prefix}
}

// Next returns the next identifier.
func (s *Sequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.prefix + "-" + strconv.FormatUint(s.next, 10)
}
