package job

import (
	"context"

	"coopsched/internal/sched"
)

// WhenVisible schedules cb once per target.
//
// With observation enabled, a target is enqueued at HIGH the first time it
// shows up on signals and is then ignored. With observation disabled every
// target is enqueued at NORMAL straight away and signals is not read.
//
// The returned channel yields one future per scheduled target and is closed
// when every target has been scheduled, signals is closed, or ctx ends.
func WhenVisible[T comparable](
	ctx context.Context,
	s *sched.Scheduler,
	targets []T,
	signals <-chan T,
	cb func(context.Context, T) (any, error),
	enabled bool,
) <-chan *sched.Future {
	out := make(chan *sched.Future, len(targets))

	work := func(target T) sched.Work {
		return func(ctx context.Context) (any, error) { return cb(ctx, target) }
	}

	if !enabled {
		for _, t := range targets {
			out <- s.Enqueue(work(t), sched.Normal)
		}
		close(out)
		return out
	}

	watched := make(map[T]bool, len(targets))
	for _, t := range targets {
		watched[t] = true
	}

	go func() {
		defer close(out)
		for len(watched) > 0 {
			select {
			case <-ctx.Done():
				return
			case t, ok := <-signals:
				if !ok {
					return
				}
				if !watched[t] {
					continue
				}
				delete(watched, t)
				out <- s.Enqueue(work(t), sched.High)
			}
		}
	}()
	return out
}
