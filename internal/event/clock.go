package event

import "sync/atomic"

// Clock is a monotonic logical clock stamping notifications.
//
// Every call to Next returns a strictly larger value, so notification order
// is explicit and reproducible without wall-clock time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0; the first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value issued without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
