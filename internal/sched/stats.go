package sched

// Stats is a point-in-time snapshot of the scheduler.
type Stats struct {
	High        int  `json:"high"`
	Normal      int  `json:"normal"`
	Low         int  `json:"low"`
	Idle        int  `json:"idle"`
	Dispatching bool `json:"is_dispatching"`

	Cycles       int64  `json:"cycles"`
	Executed     uint64 `json:"executed"`
	Failed       uint64 `json:"failed"`
	Promoted     uint64 `json:"promoted"`
	Ticks        int64  `json:"ticks"`
	DroppedTicks int64  `json:"dropped_ticks"`
}

// Queued returns the number of tasks waiting in all four queues.
func (st Stats) Queued() int { return st.High + st.Normal + st.Low + st.Idle }

// Stats returns queue lengths, loop state and counters. It has no side effects.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		High:         s.queues[High].Len(),
		Normal:       s.queues[Normal].Len(),
		Low:          s.queues[Low].Len(),
		Idle:         s.queues[Idle].Len(),
		Dispatching:  s.dispatching,
		Cycles:       s.cycles,
		Executed:     s.executed,
		Failed:       s.failed,
		Promoted:     s.promoted,
		Ticks:        s.tick.Count(),
		DroppedTicks: s.tick.Dropped(),
	}
}
