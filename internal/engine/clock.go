package engine

import "sync/atomic"

// SequenceClock stamps storage writes. Clock is the production
// implementation; tests substitute a resettable clock.
type SequenceClock interface {
	Next() int64
}

// Clock is a monotonic logical clock. Write log entries are ordered by its
// sequence numbers, never by wall-clock time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific sequence number, so a
// long-lived persister can continue numbering across restarts.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
