package sched

import (
	"time"
)

// promote moves long-waiting tasks one class up. NORMAL tasks older than
// threshold join the tail of HIGH; LOW tasks older than twice the threshold
// join the tail of NORMAL. EnqueuedAt is kept, so a promoted LOW task can be
// promoted again on a later cycle. Caller holds s.mu.
func (s *Scheduler) promote(now time.Time, threshold time.Duration) {
	high, normal, low := s.queues[High], s.queues[Normal], s.queues[Low]

	// NORMAL -> HIGH before LOW -> NORMAL: a task climbs at most one class per pass.
	up := normal.FilterOut(func(t *Task) bool { return t.waited(now) > threshold })
	for _, t := range up {
		high.PushBack(t)
	}
	s.notePromoted(up, Normal, High)

	up = low.FilterOut(func(t *Task) bool { return t.waited(now) > 2*threshold })
	for _, t := range up {
		normal.PushBack(t)
	}
	s.notePromoted(up, Low, Normal)
}

func (s *Scheduler) notePromoted(tasks []*Task, from, to Priority) {
	if len(tasks) == 0 {
		return
	}
	s.promoted += uint64(len(tasks))
	for _, t := range tasks {
		s.emit(StatusEvent{
			Time:     s.clock.Now(),
			Kind:     StatusPromote,
			TaskID:   t.ID,
			Priority: to,
			From:     from,
		})
	}
}
