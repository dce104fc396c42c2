// internal/sched/tickclock.go

package sched

import (
	"sync"
	"sync/atomic"
	"time"
)

// TickClock emits ticks and counts them atomically.
// A tick that finds the previous one still unconsumed is dropped.
type TickClock struct {
	Ch       chan struct{}
	count    atomic.Int64
	dropped  atomic.Int64
	stop     chan struct{}
	stopOnce sync.Once
}

// NewTickClock creates a clock but does not start it.
func NewTickClock() *TickClock {
	return &TickClock{
		Ch:   make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
}

// Start begins emitting ticks at the given interval.
func (c *TickClock) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.count.Add(1)
				select {
				case c.Ch <- struct{}{}:
				default:
					c.dropped.Add(1)
				}
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop signals the clock to stop emitting ticks. Safe to call more than once.
func (c *TickClock) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Count returns the current tick count atomically.
func (c *TickClock) Count() int64 {
	return c.count.Load()
}

// Dropped returns how many ticks arrived while a cycle was still running.
func (c *TickClock) Dropped() int64 {
	return c.dropped.Load()
}

// Clock supplies the scheduler's notion of now. Aging compares against it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// time.Now carries a monotonic reading, so wall-clock jumps do not affect aging.
func (systemClock) Now() time.Time { return time.Now() }
