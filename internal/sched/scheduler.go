// internal/sched/scheduler.go

package sched

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("sched: scheduler already started")

// Scheduler drains four FIFO priority queues cooperatively: a periodic
// dispatch cycle runs a bounded chunk from the first non-empty active queue,
// and an idle loop runs IDLE work whenever its IdleSource grants time.
type Scheduler struct {
	// Scheduler-related
	mu          sync.Mutex               // protects everything below up to the loop fields
	cfg         Config                   // live configuration, read at the start of each cycle
	queues      [numPriorities]*taskQueue // indexed by Priority
	nextID      TaskID                   // last assigned task ID
	dispatching bool                     // re-entrancy guard: at most one cycle at a time
	started     bool
	stopped     bool
	cycles      int64  // dispatch cycles run
	executed    uint64 // tasks settled with a value
	failed      uint64 // tasks settled with an error
	promoted    uint64 // aging promotions

	clock     Clock
	logger    *zap.Logger
	idle      IdleSource
	useQuiet  bool
	quietPoll time.Duration

	// loop-related
	tick     *TickClock    // periodic dispatch trigger
	kick     chan struct{} // immediate dispatch trigger
	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{} // closed when Start returns

	// trace-related
	traceMu   sync.Mutex
	csvFile   *os.File
	csvWriter *csv.Writer
}

// New creates a new Scheduler instance with the given configuration.
// Zero tick, chunk and idle timing values are replaced by defaults.
func New(cfg Config, opts ...Option) *Scheduler {
	def := DefaultConfig()
	if cfg.TickMS <= 0 {
		cfg.TickMS = def.TickMS
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.IdleFallbackMS <= 0 {
		cfg.IdleFallbackMS = def.IdleFallbackMS
	}
	if cfg.IdleTimeoutMS <= 0 {
		cfg.IdleTimeoutMS = def.IdleTimeoutMS
	}

	s := &Scheduler{
		cfg:    cfg,
		clock:  systemClock{},
		logger: zap.NewNop(),
		tick:   NewTickClock(),
		kick:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for p := range s.queues {
		s.queues[p] = newTaskQueue(Priority(p))
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "scheduler"))

	switch {
	case s.useQuiet:
		s.idle = QuietIdle{Busy: s.Busy, Poll: s.quietPoll, Timeout: cfg.IdleTimeout(), Clock: s.clock}
	case s.idle == nil:
		s.idle = TimerIdle{Delay: cfg.IdleFallback()}
	}
	return s
}

// Init creates a scheduler and starts its loops in the background.
// They run until ctx is cancelled or Stop is called.
func Init(ctx context.Context, cfg Config, opts ...Option) *Scheduler {
	s := New(cfg, opts...)
	go func() {
		if err := s.Start(ctx); !CleanExit(err) {
			s.logger.Error("scheduler exited", zap.Error(err))
		}
	}()
	return s
}

// CleanExit reports whether err, as returned by Start, means the scheduler
// was shut down on request: by Stop or by its context ending.
func CleanExit(err error) bool {
	return err == nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrStopped)
}

// Start runs the dispatch and idle loops. Blocks until ctx is cancelled or
// Stop is called; queued tasks are then rejected with ErrStopped.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	cfg := s.cfg
	s.mu.Unlock()
	defer cancel()

	s.logger.Info("scheduler started",
		zap.Duration("tick", cfg.Tick()),
		zap.Int("chunk_size", cfg.ChunkSize),
		zap.Duration("priority_threshold", cfg.PriorityThreshold()),
		zap.String("idle_source", fmt.Sprintf("%T", s.idle)),
	)
	s.tick.Start(cfg.Tick())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.dispatchLoop(runCtx)
	}()
	go func() {
		defer wg.Done()
		s.idleLoop(runCtx)
	}()

	<-runCtx.Done()
	// stop the underlying clock to release its goroutine
	s.tick.Stop()
	wg.Wait()
	s.shutdown()
	close(s.done)

	return ctx.Err()
}

// Stop halts the tick and idle loops, waits for the running cycle to
// finish, and rejects every task still queued. Safe to call more than once.
func (s *Scheduler) Stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		started, cancel := s.started, s.cancel
		if !started {
			s.stopped = true
		}
		s.mu.Unlock()

		if !started {
			s.shutdown()
			return
		}
		cancel()
		<-s.done
	})
	return nil
}

// Enqueue adds work to the tail of the prio queue and returns its future.
// Only the first Options value is used. A HIGH task triggers an immediate
// dispatch attempt when no cycle is running.
func (s *Scheduler) Enqueue(work Work, prio Priority, opts ...Options) *Future {
	if work == nil {
		return rejected(0, ErrNilWork)
	}
	if !prio.valid() {
		return rejected(0, fmt.Errorf("%w: %d", ErrUnknownPriority, int(prio)))
	}
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return rejected(0, ErrStopped)
	}
	s.nextID++
	now := s.clock.Now()
	t := newTask(s.nextID, prio, now, work, o)
	s.queues[prio].PushBack(t)
	s.emit(StatusEvent{Time: now, Kind: StatusEnqueue, TaskID: t.ID, Priority: prio})
	wake := prio == High && !s.dispatching
	s.mu.Unlock()

	if wake {
		s.wake()
	}
	return t.future
}

// Config returns a copy of the live configuration.
func (s *Scheduler) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// UpdateConfig merges p into the live configuration. It takes effect on the
// next cycle. Invalid values leave the configuration unchanged.
func (s *Scheduler) UpdateConfig(p ConfigPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.cfg.apply(p)
	if err != nil {
		return err
	}
	s.cfg = cfg
	s.logger.Info("config updated",
		zap.Int("chunk_size", cfg.ChunkSize),
		zap.Duration("priority_threshold", cfg.PriorityThreshold()),
		zap.Duration("min_idle", cfg.MinIdle()),
		zap.Bool("debug", cfg.DebugMode),
	)
	return nil
}

// Busy reports whether an active queue holds work or a cycle is running.
func (s *Scheduler) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatching || s.queues[High].Len()+s.queues[Normal].Len()+s.queues[Low].Len() > 0
}

// Dispatch runs one dispatch cycle and returns how many tasks it executed.
// It returns 0 without doing anything if another cycle is in progress.
//
// The cycle ages queued tasks, takes up to ChunkSize tasks from the first
// non-empty queue among HIGH, NORMAL and LOW, runs them in order and waits
// for all of them to settle. If HIGH still holds work afterwards the next
// cycle is triggered without waiting for a tick.
func (s *Scheduler) Dispatch(ctx context.Context) int {
	s.mu.Lock()
	if s.dispatching || s.stopped {
		s.mu.Unlock()
		return 0
	}
	s.dispatching = true
	s.cycles++

	now := s.clock.Now()
	s.promote(now, s.cfg.PriorityThreshold())

	var batch []*Task
	for _, p := range [...]Priority{High, Normal, Low} {
		if q := s.queues[p]; q.Len() > 0 {
			batch = q.PopN(s.cfg.ChunkSize)
			s.emit(StatusEvent{Time: now, Kind: StatusDispatch, Priority: p, Count: len(batch)})
			break
		}
	}
	s.mu.Unlock()

	s.runChunk(ctx, batch)

	s.mu.Lock()
	s.dispatching = false
	again := !s.stopped && s.queues[High].Len() > 0
	s.mu.Unlock()

	if again {
		s.wake()
	}
	return len(batch)
}

// runChunk starts every task in order, then waits for the in-flight ones.
// Each task settles on its own; a failure never touches its siblings.
func (s *Scheduler) runChunk(ctx context.Context, batch []*Task) {
	var wg sync.WaitGroup
	for _, t := range batch {
		p := t.start(ctx)
		if p == nil {
			s.settled(t)
			continue
		}
		wg.Add(1)
		go func(t *Task, p Pending) {
			defer wg.Done()
			t.finish(ctx, p)
			s.settled(t)
		}(t, p)
	}
	wg.Wait()
}

// DrainIdle runs IDLE tasks one at a time while the deadline has budget
// left, or until the queue is empty when dl is nil. It returns the number run.
func (s *Scheduler) DrainIdle(ctx context.Context, dl Deadline) int {
	n := 0
	for dl == nil || dl.TimeRemaining() > 0 {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			break
		}
		t, ok := s.queues[Idle].PopFront()
		s.mu.Unlock()
		if !ok {
			break
		}
		t.run(ctx)
		s.settled(t)
		n++
	}

	if n > 0 {
		s.mu.Lock()
		s.emit(StatusEvent{Time: s.clock.Now(), Kind: StatusIdle, Priority: Idle, Count: n})
		s.mu.Unlock()
	}
	return n
}

// dispatchLoop runs a cycle on every tick or kick until ctx ends.
func (s *Scheduler) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.tick.Ch:
		case <-s.kick:
		}
		s.Dispatch(ctx)
	}
}

// idleLoop re-arms on the idle source after every drain.
func (s *Scheduler) idleLoop(ctx context.Context) {
	for {
		s.mu.Lock()
		minIdle := s.cfg.MinIdle()
		s.mu.Unlock()

		dl, err := s.idle.Wait(ctx, minIdle)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Warn("idle source failed", zap.Error(err))
			continue
		}
		s.DrainIdle(ctx, dl)
	}
}

func (s *Scheduler) wake() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// settled books a task that has just settled.
func (s *Scheduler) settled(t *Task) {
	_, err, _ := t.future.Result()

	s.mu.Lock()
	ev := StatusEvent{Time: s.clock.Now(), Kind: StatusFinish, TaskID: t.ID, Priority: t.Priority}
	if err != nil {
		s.failed++
		ev.Kind, ev.Err = StatusFail, err
	} else {
		s.executed++
	}
	s.emit(ev)
	s.mu.Unlock()

	if err == nil {
		return
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		s.logger.Error("task panicked", zap.Stringer("task", t), zap.Any("panic", pe.Value))
		return
	}
	s.logger.Warn("task failed", zap.Stringer("task", t), zap.Stringer("priority", t.Priority), zap.Error(err))
}

// shutdown marks the scheduler stopped and rejects everything still queued.
func (s *Scheduler) shutdown() {
	s.mu.Lock()
	s.stopped = true
	var left []*Task
	for _, q := range s.queues {
		left = append(left, q.Drain()...)
	}
	s.emit(StatusEvent{Time: s.clock.Now(), Kind: StatusStop, Count: len(left)})
	s.mu.Unlock()

	for _, t := range left {
		t.future.reject(ErrStopped)
	}
	s.logger.Info("scheduler stopped", zap.Int("rejected", len(left)))
	s.closeTrace()
}
