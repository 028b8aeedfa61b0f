package idgen

import "sync/atomic"

// Clock is a monotonic logical clock. Every journal entry and snapshot row is
// stamped with a strictly increasing seq from it, so stored order never
// depends on wall-clock time.
//
// Safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at start. Used to resume after the
// last stored seq.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new seq.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued seq.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
