package sched

import (
	"context"
	"fmt"
	"sync"
)

// Future is the caller's handle on an enqueued task. It settles exactly
// once, either with the value returned by the work or with its error.
type Future struct {
	id   TaskID
	once sync.Once
	done chan struct{}
	val  any
	err  error
}

func newFuture(id TaskID) *Future {
	return &Future{id: id, done: make(chan struct{})}
}

// Rejected returns a future that is already settled with err. Callers use it
// to fail a request before it ever reaches a queue.
func Rejected(err error) *Future { return rejected(0, err) }

// rejected returns a future that is already settled with err.
func rejected(id TaskID, err error) *Future {
	f := newFuture(id)
	f.reject(err)
	return f
}

// ID returns the task the future belongs to. Zero for rejected-at-enqueue futures.
func (f *Future) ID() TaskID { return f.id }

// Done is closed once the future has settled.
func (f *Future) Done() <-chan struct{} { return f.done }

// Await blocks until the task settles or ctx ends.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result reports the outcome without blocking. settled is false while the task is queued or running.
func (f *Future) Result() (val any, err error, settled bool) {
	select {
	case <-f.done:
		return f.val, f.err, true
	default:
		return nil, nil, false
	}
}

// settle reports whether this call was the one that settled the future.
func (f *Future) settle(v any, err error) bool {
	settled := false
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
		settled = true
	})
	return settled
}

func (f *Future) resolve(v any) bool   { return f.settle(v, nil) }
func (f *Future) reject(err error) bool { return f.settle(nil, err) }

// AwaitAs awaits f and converts its value to T.
func AwaitAs[T any](ctx context.Context, f *Future) (T, error) {
	var zero T
	v, err := f.Await(ctx)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("sched: task %d resolved with %T, not %T", f.id, v, zero)
	}
	return t, nil
}
