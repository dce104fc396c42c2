// internal/sched/task.go

package sched

import (
	"context"
	"fmt"
	"time"
)

// TaskID uniquely identifies a task in the scheduler.
type TaskID uint64

// Work is one opaque unit of work. It may finish synchronously or hand back
// a Pending (for instance another *Future) that the scheduler awaits.
type Work func(ctx context.Context) (any, error)

// Pending is a result that is not available yet.
type Pending interface {
	Await(ctx context.Context) (any, error)
}

// Options travel with a task and reach its Work through the context.
// The scheduler itself never reads them.
type Options struct {
	Label     string        // free-form name used in logs and traces
	Integrity string        // expected digest for loader work, e.g. "sha384-..."
	Timeout   time.Duration // upper bound loader work applies to its own I/O
}

type optionsKey struct{}

// OptionsFromContext returns the Options the running task was enqueued with.
func OptionsFromContext(ctx context.Context) Options {
	o, _ := ctx.Value(optionsKey{}).(Options)
	return o
}

// Task represents one queued unit of work.
type Task struct {
	ID         TaskID
	Priority   Priority  // queue the task currently sits in; changed only by aging
	EnqueuedAt time.Time // set once at Enqueue
	Options    Options

	work   Work
	future *Future
}

func newTask(id TaskID, prio Priority, now time.Time, work Work, opts Options) *Task {
	return &Task{
		ID:         id,
		Priority:   prio,
		EnqueuedAt: now,
		Options:    opts,
		work:       work,
		future:     newFuture(id),
	}
}

// waited reports how long the task has been queued as of now.
func (t *Task) waited(now time.Time) time.Duration { return now.Sub(t.EnqueuedAt) }

// start invokes the work with panics fenced. It returns a Pending when the
// work is still in flight; otherwise the task is already settled.
func (t *Task) start(ctx context.Context) Pending {
	v, err := t.call(ctx)
	if err != nil {
		t.future.reject(err)
		return nil
	}
	if p, ok := v.(Pending); ok {
		return p
	}
	t.future.resolve(v)
	return nil
}

func (t *Task) call(ctx context.Context) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{TaskID: t.ID, Value: r}
		}
	}()
	return t.work(context.WithValue(ctx, optionsKey{}, t.Options))
}

// finish awaits an in-flight result and settles the task with it.
func (t *Task) finish(ctx context.Context, p Pending) {
	v, err := awaitFenced(ctx, t.ID, p)
	if err != nil {
		t.future.reject(err)
		return
	}
	t.future.resolve(v)
}

func awaitFenced(ctx context.Context, id TaskID, p Pending) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{TaskID: id, Value: r}
		}
	}()
	return p.Await(ctx)
}

// run executes the task to settlement.
func (t *Task) run(ctx context.Context) {
	if p := t.start(ctx); p != nil {
		t.finish(ctx, p)
	}
}

func (t *Task) String() string {
	if t.Options.Label != "" {
		return fmt.Sprintf("%d(%s)", t.ID, t.Options.Label)
	}
	return fmt.Sprintf("%d", t.ID)
}
