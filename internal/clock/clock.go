// Package clock provides the time sources used by the scheduler and the log.
//
// Clock is the wall clock for elapsed-time gates and log stamps. Sequence is
// a monotonic logical counter that orders log records within a session.
package clock

import (
	"sync/atomic"
	"time"
)

// Clock reports the current time.
//
// Production code uses System. Tests and the simulation harness use
// testutil.FakeClock, which only moves when advanced.
type Clock interface {
	Now() time.Time
}

// System is the real wall clock.
//
// time.Now carries a monotonic reading, so differences between two Now
// values are immune to wall-clock adjustments.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time {
	return time.Now()
}

// Sequence is a monotonic logical counter for record ordering.
//
// Thread-safety: Sequence is safe for concurrent use (atomic operations).
type Sequence struct {
	seq atomic.Int64
}

// NewSequence creates a sequence starting at 0.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next returns the next sequence number and increments the counter.
// Calls are linearizable - each call returns a unique, increasing value.
func (s *Sequence) Next() int64 {
	return s.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (s *Sequence) Current() int64 {
	return s.seq.Load()
}

// Reset sets the sequence back to 0. Used when a new session log opens.
func (s *Sequence) Reset() {
	s.seq.Store(0)
}
