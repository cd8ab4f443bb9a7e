// Package counter keeps the process-wide conversions tally.
package counter

import "sync/atomic"

// Counter is a monotonically increasing tally safe for concurrent use.
type Counter struct {
	n atomic.Int64
}

// New returns a Counter starting at initial.
func New(initial int64) *Counter {
	c := &Counter{}
	c.n.Store(initial)
	return c
}

// Load returns the current count.
func (c *Counter) Load() int64 {
	return c.n.Load()
}

// Increment adds one and returns the new count.
func (c *Counter) Increment() int64 {
	return c.n.Add(1)
}

// Default is the process-wide conversions counter.
var Default = New(0)
