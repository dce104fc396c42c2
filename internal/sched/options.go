package sched

import (
	"time"

	"go.uber.org/zap"
)

// Option configures optional Scheduler dependencies.
type Option func(*Scheduler)

// WithClock replaces the clock used for EnqueuedAt and aging.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithIdleSource sets the source that drives the idle loop.
// Without it the scheduler falls back to a TimerIdle of Config.IdleFallbackMS.
func WithIdleSource(src IdleSource) Option {
	return func(s *Scheduler) {
		s.idle = src
	}
}

// WithQuietIdle drives the idle loop from the scheduler's own load: an idle
// period starts when no active queue holds work and no cycle is running.
func WithQuietIdle(poll time.Duration) Option {
	return func(s *Scheduler) {
		s.quietPoll = poll
		s.useQuiet = true
	}
}
