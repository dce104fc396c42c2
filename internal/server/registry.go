package server

import (
	"errors"
	"sync"
	"time"

	"github.com/emirpasic/gods/trees/redblacktree"

	"coopsched/internal/sched"
)

var errRegistryFull = errors.New("too many unfinished tasks")

// tracked is one task submitted through the API.
type tracked struct {
	ID          sched.TaskID
	Kind        string
	Label       string
	Priority    sched.Priority
	SubmittedAt time.Time
	future      *sched.Future
}

// registry keeps submitted tasks ordered by ID. It holds at most max entries:
// the oldest settled ones make room for new submissions, and once max tasks
// are still unsettled new submissions are refused.
type registry struct {
	mu   sync.Mutex
	tree *redblacktree.Tree
	max  int
}

func newRegistry(max int) *registry {
	if max <= 0 {
		max = 1024
	}
	return &registry{tree: redblacktree.NewWith(cmpTaskID), max: max}
}

// admit registers the task built by submit, unless max tasks that have not
// settled yet are already tracked. submit runs under the registry lock and is
// not called when the registry is full; a nil result registers nothing.
func (r *registry) admit(submit func() *tracked) (*tracked, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune(r.max - 1)
	if r.tree.Size() >= r.max {
		return nil, errRegistryFull
	}
	t := submit()
	if t != nil {
		r.tree.Put(t.ID, t)
	}
	return t, nil
}

func (r *registry) get(id sched.TaskID) (*tracked, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.tree.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*tracked), true
}

// list returns every tracked task, lowest ID first.
func (r *registry) list() []*tracked {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*tracked, 0, r.tree.Size())
	it := r.tree.Iterator()
	for it.Next() {
		out = append(out, it.Value().(*tracked))
	}
	return out
}

// prune drops settled tasks from the low end until at most limit remain.
// Unsettled tasks are never dropped. Caller holds r.mu.
func (r *registry) prune(limit int) {
	if r.tree.Size() <= limit {
		return
	}
	var drop []sched.TaskID
	excess := r.tree.Size() - limit
	it := r.tree.Iterator()
	for it.Next() && len(drop) < excess {
		t := it.Value().(*tracked)
		if _, _, settled := t.future.Result(); settled {
			drop = append(drop, t.ID)
		}
	}
	for _, id := range drop {
		r.tree.Remove(id)
	}
}

// cmpTaskID implements the Comparator interface for red-black tree ordering.
func cmpTaskID(a, b any) int {
	ka, kb := a.(sched.TaskID), b.(sched.TaskID)
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	default:
		return 0
	}
}
