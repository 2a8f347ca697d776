// Package testutil provides deterministic test doubles shared across the
// engine and scheduler tests.
package testutil

import "sync"

// FakeClock is a deterministic engine.Clock for tests.
//
// Unlike the system clock it only moves when a test calls Advance or Set,
// which makes time-boxed behavior (undo expiry, dedup lookback, schedule
// catch-up) exactly reproducible.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeClock struct {
	mu  sync.Mutex
	now int64
}

// NewFakeClock creates a clock frozen at the given epoch-ms instant.
func NewFakeClock(now int64) *FakeClock {
	return &FakeClock{now: now}
}

// Now returns the frozen instant.
func (c *FakeClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by ms. Negative advances are ignored so a
// fake clock is always monotonic.
func (c *FakeClock) Advance(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ms > 0 {
		c.now += ms
	}
}

// Set jumps the clock to an absolute instant.
func (c *FakeClock) Set(now int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
