package sched

import (
	"errors"
	"fmt"
)

var (
	// ErrStopped is returned for work enqueued after Stop, and for work still queued when Stop ran.
	ErrStopped = errors.New("sched: scheduler stopped")

	// ErrUnknownPriority is returned when a priority is outside High..Idle.
	ErrUnknownPriority = errors.New("sched: unknown priority")

	// ErrNilWork is returned when Enqueue receives a nil Work.
	ErrNilWork = errors.New("sched: work func is nil")

	// ErrInvalidConfig is returned by UpdateConfig for values the dispatch loop cannot run with.
	ErrInvalidConfig = errors.New("sched: invalid config")
)

// PanicError wraps a value recovered from a panicking Work.
type PanicError struct {
	TaskID TaskID
	Value  any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("sched: task %d panicked: %v", e.TaskID, e.Value)
}
