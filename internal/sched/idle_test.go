package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerIdle_NoDeadline(t *testing.T) {
	dl, err := TimerIdle{Delay: time.Millisecond}.Wait(context.Background(), time.Second)
	if err != nil || dl != nil {
		t.Fatalf("Wait = %v, %v; want nil deadline", dl, err)
	}
}

func TestTimerIdle_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (TimerIdle{Delay: time.Hour}).Wait(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestQuietIdle_GrantsMinIdleWhenQuiet(t *testing.T) {
	var busy atomic.Bool
	busy.Store(true)
	q := QuietIdle{Busy: busy.Load, Poll: time.Millisecond, Timeout: time.Second}

	go func() {
		time.Sleep(10 * time.Millisecond)
		busy.Store(false)
	}()

	dl, err := q.Wait(context.Background(), 200*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if dl.DidTimeout() {
		t.Fatal("deadline reported a timeout")
	}
	if r := dl.TimeRemaining(); r <= 0 || r > 200*time.Millisecond {
		t.Fatalf("TimeRemaining = %v", r)
	}
}

func TestQuietIdle_ZeroMinIdleDrainsEverything(t *testing.T) {
	q := QuietIdle{Busy: func() bool { return false }, Poll: time.Millisecond, Timeout: time.Second}

	dl, err := q.Wait(context.Background(), 0)
	if err != nil || dl != nil {
		t.Fatalf("Wait = %v, %v; want nil deadline", dl, err)
	}
}

func TestQuietIdle_TimesOutWhileBusy(t *testing.T) {
	q := QuietIdle{Busy: func() bool { return true }, Poll: time.Millisecond, Timeout: 10 * time.Millisecond}

	dl, err := q.Wait(context.Background(), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if !dl.DidTimeout() || dl.TimeRemaining() != 0 {
		t.Fatalf("deadline = timeout %v remaining %v; want timed out with nothing left", dl.DidTimeout(), dl.TimeRemaining())
	}
}

func TestDeadline_CountsDown(t *testing.T) {
	clock := newFakeClock()
	dl := newDeadline(clock, 30*time.Millisecond, false)
	clock.Advance(10 * time.Millisecond)
	if got := dl.TimeRemaining(); got != 20*time.Millisecond {
		t.Fatalf("TimeRemaining = %v, want 20ms", got)
	}
	clock.Advance(time.Second)
	if got := dl.TimeRemaining(); got != 0 {
		t.Fatalf("TimeRemaining after expiry = %v", got)
	}
}
