package job

import (
	"context"
	"time"

	"coopsched/internal/sched"
)

// SleepWork returns work that just sleeps for the given duration and
// resolves with the time it actually slept.
func SleepWork(ms int64) sched.Work {
	d := time.Duration(ms) * time.Millisecond
	return func(ctx context.Context) (any, error) {
		start := time.Now()
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			// If the time is up, we just return how long it took.
			return time.Since(start), nil
		}
	}
}

// AsyncSleepWork sleeps off the dispatch goroutine: the work returns at once
// and hands the scheduler a Pending that settles after d.
func AsyncSleepWork(ms int64) sched.Work {
	sleep := SleepWork(ms)
	return func(ctx context.Context) (any, error) {
		p := &pending{done: make(chan struct{})}
		go func() {
			p.val, p.err = sleep(ctx)
			close(p.done)
		}()
		return p, nil
	}
}

// FailWork returns work that fails with err.
func FailWork(err error) sched.Work {
	return func(context.Context) (any, error) { return nil, err }
}

type pending struct {
	done chan struct{}
	val  any
	err  error
}

func (p *pending) Await(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
