package sched

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	if got := Load(""); got != DefaultConfig() {
		t.Fatalf("Load(\"\") = %+v", got)
	}
	if got := Load(filepath.Join(t.TempDir(), "missing.yml")); got != DefaultConfig() {
		t.Fatalf("Load(missing) = %+v", got)
	}
}

func TestLoad_OverridesAndClamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := []byte("tick_ms: 20\nchunk_size: -4\npriority_threshold_ms: 250\nmin_idle_ms: 40\ndebug_mode: true\nvisibility_loading: false\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Load(path)
	if cfg.TickMS != 20 || cfg.PriorityThresholdMS != 250 || cfg.MinIdleMS != 40 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.ChunkSize != DefaultConfig().ChunkSize {
		t.Fatalf("chunk_size not clamped: %d", cfg.ChunkSize)
	}
	if !cfg.DebugMode || cfg.VisibilityLoading {
		t.Fatalf("bools not applied: %+v", cfg)
	}
	if cfg.Tick() != 20*time.Millisecond || cfg.PriorityThreshold() != 250*time.Millisecond {
		t.Fatalf("durations: tick=%v threshold=%v", cfg.Tick(), cfg.PriorityThreshold())
	}
}

func TestConfigApply_RejectsNegativeThreshold(t *testing.T) {
	neg := -1
	_, err := DefaultConfig().apply(ConfigPatch{PriorityThresholdMS: &neg})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestParsePriority(t *testing.T) {
	cases := map[string]Priority{"high": High, "NORMAL": Normal, " low ": Low, "idle": Idle, "": Normal}
	for in, want := range cases {
		got, err := ParsePriority(in)
		if err != nil || got != want {
			t.Errorf("ParsePriority(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParsePriority("urgent"); !errors.Is(err, ErrUnknownPriority) {
		t.Errorf("ParsePriority(urgent) err = %v", err)
	}

	var p Priority
	if err := p.UnmarshalText([]byte("low")); err != nil || p != Low {
		t.Errorf("UnmarshalText = %v, %v", p, err)
	}
	if b, err := Idle.MarshalText(); err != nil || string(b) != "idle" {
		t.Errorf("MarshalText = %s, %v", b, err)
	}
}
