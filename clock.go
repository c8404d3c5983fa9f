package snowfall

import "time"

// Clock returns the current wall-clock time in milliseconds since the Unix
// epoch. Implementations must be monotonic-nondecreasing within a single
// process; small non-monotonicity is tolerated by the sequence-throttling
// path in Generator.NextID, which falls through to the "new millisecond"
// branch whenever the clock appears to have moved backward.
type Clock interface {
	NowMS() int64
}

// SystemClock is the production Clock. It captures a monotonic reference
// point at construction and derives all subsequent readings from
// time.Since, so NTP adjustments, leap seconds and manual clock changes
// cannot move it backward mid-process.
type SystemClock struct {
	ref     time.Time
	refUnix int64
}

// NewSystemClock returns a SystemClock anchored to the current time.
func NewSystemClock() *SystemClock {
	now := time.Now()
	return &SystemClock{ref: now, refUnix: now.UnixMilli()}
}

// NowMS implements Clock.
func (c *SystemClock) NowMS() int64 {
	return c.refUnix + time.Since(c.ref).Milliseconds()
}

// FixedClock is a Clock with a caller-controlled value, used by tests that
// need deterministic timestamps instead of the real wall clock.
type FixedClock struct {
	ms int64
}

// NewFixedClock returns a FixedClock pinned at ms.
func NewFixedClock(ms int64) *FixedClock {
	return &FixedClock{ms: ms}
}

// NowMS implements Clock.
func (c *FixedClock) NowMS() int64 {
	return c.ms
}

// Set moves the fixed clock to a new value. Not safe for concurrent use
// with concurrent NowMS calls; tests should serialize access.
func (c *FixedClock) Set(ms int64) {
	c.ms = ms
}

// Advance moves the fixed clock forward by delta milliseconds and returns
// the new value.
func (c *FixedClock) Advance(delta int64) int64 {
	c.ms += delta
	return c.ms
}
