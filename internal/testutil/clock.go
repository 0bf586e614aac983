package testutil

import "sync"

// LineClock hands out log line ordinals for synthetic logs.
//
// Lines normally advance by one. Jump moves the clock forward so scenarios
// can reproduce logs with gaps (e.g. events interleaved with records no
// validator reads).
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type LineClock struct {
	mu   sync.Mutex
	line uint64
}

// NewLineClock creates a clock whose first call to Next returns 1.
func NewLineClock() *LineClock {
	return &LineClock{}
}

// Next advances and returns the next line.
func (c *LineClock) Next() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.line++
	return c.line
}

// Current returns the last line handed out without advancing.
func (c *LineClock) Current() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.line
}

// Jump makes the next call to Next return line.
// Jumping backwards is ignored; ordinals never decrease.
func (c *LineClock) Jump(line uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if line > 0 && line-1 > c.line {
		c.line = line - 1
	}
}
