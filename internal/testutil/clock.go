package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start of a DeterministicClock.
var Epoch = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock hands out strictly increasing timestamps for fixtures.
//
// Each call to Next advances by Step, so two fixtures built from the same
// clock never share a download time unless the test asks for it.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	now   time.Time
	Step  time.Duration
}

// NewDeterministicClock creates a clock at Epoch advancing one hour per tick.
//
// The first call to Next() returns Epoch + 1h.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{start: Epoch, now: Epoch, Step: time.Hour}
}

// Next advances the clock by Step and returns the new time.
func (c *DeterministicClock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.Step)
	return c.now
}

// Current returns the current time without advancing.
func (c *DeterministicClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Reset rewinds the clock to its start.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
}
