package sched

import (
	"context"
	"time"
)

// Deadline describes one idle period handed to the idle loop.
type Deadline interface {
	// TimeRemaining is the idle budget left in this period.
	TimeRemaining() time.Duration
	// DidTimeout reports that the period was granted because the wait timed out,
	// not because the host went quiet.
	DidTimeout() bool
}

// IdleSource tells the idle loop when to drain the IDLE queue.
//
// Wait blocks until the next idle opportunity and returns its Deadline.
// A nil Deadline means no budget information is available and the idle
// loop drains everything queued. minIdle is the shortest budget the
// caller considers worth reporting.
type IdleSource interface {
	Wait(ctx context.Context, minIdle time.Duration) (Deadline, error)
}

// TimerIdle is the fallback source: it fires after a fixed delay and carries no deadline.
type TimerIdle struct {
	Delay time.Duration
}

func (t TimerIdle) Wait(ctx context.Context, _ time.Duration) (Deadline, error) {
	timer := time.NewTimer(t.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// QuietIdle grants idle periods when the Busy check reports the host quiet.
//
// Busy is polled every Poll, first after one Poll has passed. Once it
// reports false, Wait returns a Deadline of minIdle, or nil when minIdle is
// not positive. If the host stays busy for Timeout, Wait returns a timed-out
// Deadline with no budget left.
type QuietIdle struct {
	Busy    func() bool
	Poll    time.Duration
	Timeout time.Duration
	Clock   Clock
}

const (
	defaultQuietPoll    = 10 * time.Millisecond
	defaultQuietTimeout = time.Second
)

func (q QuietIdle) Wait(ctx context.Context, minIdle time.Duration) (Deadline, error) {
	clock := q.Clock
	if clock == nil {
		clock = systemClock{}
	}
	poll, timeout := q.Poll, q.Timeout
	if poll <= 0 {
		poll = defaultQuietPoll
	}
	if timeout <= 0 {
		timeout = defaultQuietTimeout
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	expire := time.NewTimer(timeout)
	defer expire.Stop()

	for {
		select {
		case <-ticker.C:
		case <-expire.C:
			return newDeadline(clock, 0, true), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if q.Busy == nil || !q.Busy() {
			if minIdle <= 0 {
				return nil, nil
			}
			return newDeadline(clock, minIdle, false), nil
		}
	}
}

type deadline struct {
	clock    Clock
	end      time.Time
	timedOut bool
}

func newDeadline(clock Clock, budget time.Duration, timedOut bool) *deadline {
	return &deadline{clock: clock, end: clock.Now().Add(budget), timedOut: timedOut}
}

func (d *deadline) TimeRemaining() time.Duration {
	if r := d.end.Sub(d.clock.Now()); r > 0 {
		return r
	}
	return 0
}

func (d *deadline) DidTimeout() bool { return d.timedOut }
