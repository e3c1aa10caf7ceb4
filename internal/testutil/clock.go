package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is the first instant returned by a DeterministicClock created
// with a zero base.
var DefaultEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock provides a thread-safe monotonic wall clock for tests.
//
// Each call to Now advances the clock by a fixed step, so the same scenario
// produces the same timestamps on every run. The clock can be reset for
// test reuse.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu   sync.Mutex
	base time.Time
	step time.Duration
	n    int64
}

// NewDeterministicClock creates a clock starting at base and advancing by
// step on every call. A zero base uses DefaultEpoch; a zero step uses one
// millisecond.
//
// The first call to Now() returns base.
func NewDeterministicClock(base time.Time, step time.Duration) *DeterministicClock {
	if base.IsZero() {
		base = DefaultEpoch
	}
	if step == 0 {
		step = time.Millisecond
	}
	return &DeterministicClock{base: base.UTC(), step: step}
}

// Now returns the current instant and advances the clock.
// Matches the signature of time.Now so it can be injected as a clock func.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.base.Add(time.Duration(c.n) * c.step)
	c.n++
	return t
}

// Current returns the instant the next call to Now will return.
func (c *DeterministicClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.Add(time.Duration(c.n) * c.step)
}

// Reset rewinds the clock to its base.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
