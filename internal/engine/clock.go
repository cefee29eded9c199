package engine

import (
	"sync/atomic"

	"github.com/HGData/basex/internal/expr"
)

// Clock is the logical clock that orders compilations and the rewrite
// trace entries inside them.
//
// Every compilation and every fired rewrite is stamped with a strictly
// increasing seq. Stored traces are ordered by seq, never by wall time,
// so a trace reads the same on every run.
//
// Clock is safe for concurrent use: CompileAll shares one clock between
// parallel compilations.
type Clock struct {
	seq atomic.Int64
}

var _ expr.Sequencer = (*Clock)(nil)

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific sequence number.
// Used to continue numbering after the last compilation in a store.
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
