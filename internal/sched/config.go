package sched

import (
	"fmt"
	"os"
	"time"

	yaml "github.com/goccy/go-yaml"
)

// Config mirrors config.yml
type Config struct {
	TickMS              int  `yaml:"tick_ms" json:"tick_ms"`                             // 100 (by default)
	ChunkSize           int  `yaml:"chunk_size" json:"chunk_size"`                       // 3 (by default)
	PriorityThresholdMS int  `yaml:"priority_threshold_ms" json:"priority_threshold_ms"` // 500 (by default)
	MinIdleMS           int  `yaml:"min_idle_ms" json:"min_idle_ms"`                     // 1000 (by default)
	IdleFallbackMS      int  `yaml:"idle_fallback_ms" json:"idle_fallback_ms"`           // 1000 (by default)
	IdleTimeoutMS       int  `yaml:"idle_timeout_ms" json:"idle_timeout_ms"`             // 1000 (by default)
	VisibilityLoading   bool `yaml:"visibility_loading" json:"visibility_loading"`       // true (by default)
	DebugMode           bool `yaml:"debug_mode" json:"debug_mode"`
}

// DefaultConfig returns the values used when no config file is given.
func DefaultConfig() Config {
	return Config{
		TickMS:              100,
		ChunkSize:           3,
		PriorityThresholdMS: 500,
		MinIdleMS:           1000,
		IdleFallbackMS:      1000,
		IdleTimeoutMS:       1000,
		VisibilityLoading:   true,
	}
}

// Load reads YAML and overrides defaults; empty path = defaults only
func Load(path string) Config {
	cfg := DefaultConfig()

	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	_ = yaml.Unmarshal(data, &cfg)

	// sanity clamps
	def := DefaultConfig()
	if cfg.TickMS <= 0 {
		cfg.TickMS = def.TickMS
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.PriorityThresholdMS < 0 {
		cfg.PriorityThresholdMS = def.PriorityThresholdMS
	}
	if cfg.MinIdleMS < 0 {
		cfg.MinIdleMS = def.MinIdleMS
	}
	if cfg.IdleFallbackMS <= 0 {
		cfg.IdleFallbackMS = def.IdleFallbackMS
	}
	if cfg.IdleTimeoutMS <= 0 {
		cfg.IdleTimeoutMS = def.IdleTimeoutMS
	}

	return cfg
}

func (c Config) Tick() time.Duration              { return ms(c.TickMS) }
func (c Config) PriorityThreshold() time.Duration { return ms(c.PriorityThresholdMS) }
func (c Config) MinIdle() time.Duration           { return ms(c.MinIdleMS) }
func (c Config) IdleFallback() time.Duration      { return ms(c.IdleFallbackMS) }
func (c Config) IdleTimeout() time.Duration       { return ms(c.IdleTimeoutMS) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// ConfigPatch is a partial Config; nil fields are left alone.
type ConfigPatch struct {
	ChunkSize           *int  `json:"chunk_size,omitempty"`
	PriorityThresholdMS *int  `json:"priority_threshold_ms,omitempty"`
	MinIdleMS           *int  `json:"min_idle_ms,omitempty"`
	VisibilityLoading   *bool `json:"visibility_loading,omitempty"`
	DebugMode           *bool `json:"debug_mode,omitempty"`
}

// apply returns c with p merged in, or an error if the result could not drive a dispatch cycle.
func (c Config) apply(p ConfigPatch) (Config, error) {
	if p.ChunkSize != nil {
		if *p.ChunkSize <= 0 {
			return c, fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidConfig, *p.ChunkSize)
		}
		c.ChunkSize = *p.ChunkSize
	}
	if p.PriorityThresholdMS != nil {
		if *p.PriorityThresholdMS < 0 {
			return c, fmt.Errorf("%w: priority_threshold_ms must not be negative, got %d", ErrInvalidConfig, *p.PriorityThresholdMS)
		}
		c.PriorityThresholdMS = *p.PriorityThresholdMS
	}
	if p.MinIdleMS != nil {
		if *p.MinIdleMS < 0 {
			return c, fmt.Errorf("%w: min_idle_ms must not be negative, got %d", ErrInvalidConfig, *p.MinIdleMS)
		}
		c.MinIdleMS = *p.MinIdleMS
	}
	if p.VisibilityLoading != nil {
		c.VisibilityLoading = *p.VisibilityLoading
	}
	if p.DebugMode != nil {
		c.DebugMode = *p.DebugMode
	}
	return c, nil
}
