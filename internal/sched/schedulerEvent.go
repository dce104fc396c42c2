// internal/sched/schedulerEvent.go

package sched

import (
	"strconv"
	"time"

	"go.uber.org/zap"
)

// StatusKind represents the type of scheduler event
type StatusKind int

const (
	StatusIdle StatusKind = iota // IDLE queue drained during an idle period
	StatusEnqueue
	StatusDispatch
	StatusPromote
	StatusFinish
	StatusFail
	StatusStop
)

// StatusEvent is emitted on key actions while debug mode is on
type StatusEvent struct {
	Time     time.Time
	Kind     StatusKind
	TaskID   TaskID
	Priority Priority // queue the task is in (or was drained from)
	From     Priority // previous queue, StatusPromote only
	Count    int      // chunk size for StatusDispatch, drained tasks for StatusIdle
	Err      error
}

func (sk StatusKind) String() string {
	switch sk {
	case StatusIdle:
		return "Idle"
	case StatusEnqueue:
		return "Enqueued"
	case StatusDispatch:
		return "Dispatch"
	case StatusPromote:
		return "Promote"
	case StatusFinish:
		return "Finish"
	case StatusFail:
		return "Fail"
	case StatusStop:
		return "Stop"
	default:
		return "Unknown"
	}
}

// traceHeader names the columns of csvRecord.
var traceHeader = []string{"timestamp", "cycle", "event", "task_id", "priority", "from", "count", "error"}

// zapFields renders ev for the debug log. Only the fields the kind carries are included.
func (ev StatusEvent) zapFields(cycle int64) []zap.Field {
	fields := []zap.Field{
		zap.String("event", ev.Kind.String()),
		zap.Int64("cycle", cycle),
	}
	if ev.TaskID != 0 {
		fields = append(fields, zap.Uint64("task_id", uint64(ev.TaskID)), zap.Stringer("priority", ev.Priority))
	}
	if ev.Kind == StatusPromote {
		fields = append(fields, zap.Stringer("from", ev.From))
	}
	if ev.Count > 0 {
		fields = append(fields, zap.Int("count", ev.Count))
	}
	if ev.Err != nil {
		fields = append(fields, zap.Error(ev.Err))
	}
	return fields
}

// csvRecord renders ev as one trace row; empty cells for fields the kind lacks.
func (ev StatusEvent) csvRecord(cycle int64) []string {
	var from, errStr string
	if ev.Kind == StatusPromote {
		from = ev.From.String()
	}
	if ev.Err != nil {
		errStr = ev.Err.Error()
	}
	return []string{
		ev.Time.Format(time.RFC3339Nano),
		strconv.FormatInt(cycle, 10),
		ev.Kind.String(),
		strconv.FormatUint(uint64(ev.TaskID), 10),
		ev.Priority.String(),
		from,
		strconv.Itoa(ev.Count),
		errStr,
	}
}
