package cli

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"coopsched/internal/job"
	"coopsched/internal/sched"
)

// demoStep is one piece of page-initialisation work.
type demoStep struct {
	label string
	prio  sched.Priority
	cost  int64 // multiples of --unit
	async bool
	fail  bool
}

// demoPlan mirrors a page coming up: render-blocking work first, analytics
// late, prefetching only when nothing else is left.
var demoPlan = []demoStep{
	{label: "critical-css", prio: sched.High, cost: 1},
	{label: "hero-image", prio: sched.High, cost: 2, async: true},
	{label: "app-bundle", prio: sched.Normal, cost: 3},
	{label: "web-fonts", prio: sched.Normal, cost: 1, async: true},
	{label: "comments", prio: sched.Normal, cost: 2},
	{label: "recommendations", prio: sched.Normal, cost: 2},
	{label: "analytics", prio: sched.Low, cost: 1},
	{label: "chat-widget", prio: sched.Low, cost: 2, fail: true},
	{label: "ads", prio: sched.Low, cost: 1},
	{label: "prefetch-next-page", prio: sched.Idle, cost: 2},
	{label: "warm-cache", prio: sched.Idle, cost: 1},
}

func newDemoCmd() *cobra.Command {
	var (
		unit    time.Duration
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a page-initialisation style mix of work and print what happened",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runDemo(ctx, cmd.OutOrStdout(), unit)
		},
	}

	cmd.Flags().DurationVar(&unit, "unit", 20*time.Millisecond, "Duration of one unit of task cost")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Give up waiting for tasks after this long")

	return cmd
}

// belowFold are components that load once scrolled into view.
var belowFold = []string{"gallery", "footer-map"}

type demoResult struct {
	label   string
	prio    sched.Priority
	id      sched.TaskID
	waited  time.Duration
	err     error
	settled bool
}

func runDemo(ctx context.Context, out io.Writer, unit time.Duration) error {
	cfg := loadSchedConfig()
	sc := sched.New(cfg, sched.WithLogger(logger), sched.WithQuietIdle(10*time.Millisecond))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	var loop errgroup.Group
	loop.Go(func() error { return sc.Start(runCtx) })

	start := time.Now()
	var (
		mu      sync.Mutex
		results []demoResult
		wg      sync.WaitGroup
	)
	track := func(label string, prio sched.Priority, f *sched.Future) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Await(ctx)
			_, err, settled := f.Result()
			mu.Lock()
			results = append(results, demoResult{label: label, prio: prio, id: f.ID(), waited: time.Since(start), err: err, settled: settled})
			mu.Unlock()
		}()
	}

	for _, step := range demoPlan {
		track(step.label, step.prio, sc.Enqueue(stepWork(step, unit), step.prio, sched.Options{Label: step.label}))
	}

	// Simulated scrolling brings the below-the-fold components into view one by one.
	scroll := make(chan string)
	go func() {
		defer close(scroll)
		for _, target := range belowFold {
			select {
			case <-time.After(5 * unit):
			case <-runCtx.Done():
				return
			}
			select {
			case scroll <- target:
			case <-runCtx.Done():
				return
			}
		}
	}()
	render := func(ctx context.Context, target string) (any, error) {
		return job.SleepWork(unit.Milliseconds())(ctx)
	}
	visiblePrio := sched.Normal
	if cfg.VisibilityLoading {
		visiblePrio = sched.High
	}
	scheduled := job.WhenVisible(runCtx, sc, belowFold, scroll, render, cfg.VisibilityLoading)
	i := 0
	for f := range scheduled {
		track("visible:"+belowFold[i], visiblePrio, f)
		i++
	}
	logger.Debug("demo enqueued", zap.Int("tasks", len(demoPlan)+len(belowFold)))

	wg.Wait()
	// Stop waits out the running cycle, so the counters below are final.
	sc.Stop()
	if err := loop.Wait(); !sched.CleanExit(err) {
		logger.Warn("scheduler exited", zap.Error(err))
	}
	st := sc.Stats()

	slices.SortFunc(results, func(a, b demoResult) int { return cmp.Compare(a.id, b.id) })
	fmt.Fprintf(out, "%-4s %-20s %-7s %-10s %s\n", "ID", "TASK", "PRIO", "DONE AFTER", "RESULT")
	for _, r := range results {
		outcome := "ok"
		switch {
		case !r.settled:
			outcome = "timed out"
		case r.err != nil:
			outcome = "failed: " + r.err.Error()
		}
		fmt.Fprintf(out, "%-4d %-20s %-7s %-10s %s\n",
			r.id, r.label, r.prio, r.waited.Round(time.Millisecond), outcome)
	}
	fmt.Fprintf(out, "\n%s cycles, %s executed, %s failed, %s promoted, %s ticks (%s dropped) in %s\n",
		humanize.Comma(st.Cycles),
		humanize.Comma(int64(st.Executed)),
		humanize.Comma(int64(st.Failed)),
		humanize.Comma(int64(st.Promoted)),
		humanize.Comma(st.Ticks),
		humanize.Comma(st.DroppedTicks),
		time.Since(start).Round(time.Millisecond),
	)
	return ctx.Err()
}

func stepWork(step demoStep, unit time.Duration) sched.Work {
	ms := (time.Duration(step.cost) * unit).Milliseconds()
	switch {
	case step.fail:
		return job.FailWork(fmt.Errorf("%s: upstream unavailable", step.label))
	case step.async:
		return job.AsyncSleepWork(ms)
	default:
		return job.SleepWork(ms)
	}
}
