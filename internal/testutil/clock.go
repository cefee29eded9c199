package testutil

import "sync"

// TraceClock stamps rewrite trace entries in tests. It implements
// expr.Sequencer and, unlike engine.Clock, can be rewound so that one
// optimizer run can be repeated with identical trace sequence numbers.
type TraceClock struct {
	mu  sync.Mutex
	seq int64
}

// NewTraceClock returns a clock whose first Next is 1.
func NewTraceClock() *TraceClock {
	return &TraceClock{}
}

// Next stamps the next trace entry.
func (c *TraceClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last stamp handed out, 0 before the first rewrite.
func (c *TraceClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock to 0.
func (c *TraceClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
