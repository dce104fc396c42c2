package sched

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestTrace_DebugModeOnly(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	cfg := DefaultConfig()
	cfg.ChunkSize = 2
	s := New(cfg, WithLogger(zap.New(core)), WithClock(newFakeClock()))
	path := filepath.Join(t.TempDir(), "trace.csv")
	if err := s.EnableCSVTrace(path); err != nil {
		t.Fatal(err)
	}
	noop := func(context.Context) (any, error) { return nil, nil }

	s.Enqueue(noop, Normal)
	if n := logs.FilterMessage("scheduler event").Len(); n != 0 {
		t.Fatalf("%d events logged with debug mode off", n)
	}

	on := true
	if err := s.UpdateConfig(ConfigPatch{DebugMode: &on}); err != nil {
		t.Fatal(err)
	}
	s.Enqueue(noop, Normal)
	s.Dispatch(context.Background())
	s.Stop()

	var kinds []string
	for _, e := range logs.FilterMessage("scheduler event").All() {
		kinds = append(kinds, e.ContextMap()["event"].(string))
	}
	want := []string{"Enqueued", "Dispatch", "Finish", "Finish", "Stop"}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("events = %v, want %v", kinds, want)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != len(want)+1 {
		t.Fatalf("csv rows = %d, want header + %d", len(rows), len(want))
	}
	if rows[0][2] != "event" || rows[2][2] != "Dispatch" {
		t.Fatalf("unexpected csv content: %v", rows)
	}
}

func TestStatusEvent_PromoteRecord(t *testing.T) {
	ev := StatusEvent{Kind: StatusPromote, TaskID: 4, Priority: High, From: Normal}
	rec := ev.csvRecord(9)
	if len(rec) != len(traceHeader) {
		t.Fatalf("record has %d cells, header %d", len(rec), len(traceHeader))
	}
	if rec[1] != "9" || rec[2] != "Promote" || rec[3] != "4" || rec[4] != "high" || rec[5] != "normal" {
		t.Errorf("record = %v", rec)
	}

	fields := ev.zapFields(9)
	var sawFrom bool
	for _, f := range fields {
		if f.Key == "from" {
			sawFrom = true
		}
	}
	if !sawFrom {
		t.Error("promote event logged without from field")
	}
	if got := (StatusEvent{Kind: StatusFinish, TaskID: 1}).csvRecord(0)[5]; got != "" {
		t.Errorf("from = %q on a finish event, want empty", got)
	}
}
