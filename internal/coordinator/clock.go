package coordinator

import "sync/atomic"

// Clock is the monotonic logical clock assigning server sequence numbers.
//
// Every accepted mutation is stamped with a strictly increasing seq from
// this clock. This ensures deterministic ordering with no wall-clock race
// conditions, identical order on replay, and explicit causality.
//
// Thread-safety: atomic operations, though the session's single-writer
// design means only one goroutine typically calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0; the first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming from a specific sequence number.
// Used when restoring a session from the durable log.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and advances the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the clock position without advancing it.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
