// internal/sched/queue.go

package sched

import (
	"github.com/emirpasic/gods/lists/doublylinkedlist"
)

// taskQueue is a FIFO of tasks for a single priority class.
// It is not safe for concurrent use; the Scheduler mutex guards it.
type taskQueue struct {
	prio Priority
	list *doublylinkedlist.List
}

func newTaskQueue(prio Priority) *taskQueue {
	return &taskQueue{prio: prio, list: doublylinkedlist.New()}
}

func (q *taskQueue) Len() int { return q.list.Size() }

// PushBack appends t at the tail and records the queue as its priority.
func (q *taskQueue) PushBack(t *Task) {
	t.Priority = q.prio
	q.list.Add(t)
}

// PopFront removes and returns the head of the queue.
func (q *taskQueue) PopFront() (*Task, bool) {
	v, ok := q.list.Get(0)
	if !ok {
		return nil, false
	}
	q.list.Remove(0)
	return v.(*Task), true
}

// PopN removes up to n tasks from the front, oldest first.
func (q *taskQueue) PopN(n int) []*Task {
	if n > q.Len() {
		n = q.Len()
	}
	if n <= 0 {
		return nil
	}
	out := make([]*Task, 0, n)
	for len(out) < n {
		t, _ := q.PopFront()
		out = append(out, t)
	}
	return out
}

// FilterOut removes every task matching pred and returns them in their
// original relative order. Remaining tasks keep their order too.
func (q *taskQueue) FilterOut(pred func(*Task) bool) []*Task {
	var (
		out  []*Task
		keep []interface{}
	)
	it := q.list.Iterator()
	for it.Next() {
		t := it.Value().(*Task)
		if pred(t) {
			out = append(out, t)
		} else {
			keep = append(keep, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	q.list.Clear()
	q.list.Add(keep...)
	return out
}

// Drain empties the queue and returns its tasks in order.
func (q *taskQueue) Drain() []*Task {
	return q.PopN(q.Len())
}
