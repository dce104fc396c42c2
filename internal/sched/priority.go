// internal/sched/priority.go

package sched

import (
	"fmt"
	"strings"
)

// Priority selects the queue a task waits in. Lower values drain first.
type Priority int

const (
	High Priority = iota
	Normal
	Low
	Idle

	numPriorities = 4
)

func (p Priority) String() string {
	switch p {
	case High:
		return "high"
	case Normal:
		return "normal"
	case Low:
		return "low"
	case Idle:
		return "idle"
	default:
		return "unknown"
	}
}

func (p Priority) valid() bool { return p >= High && p <= Idle }

// ParsePriority accepts "high", "normal", "low" and "idle" in any case.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return High, nil
	case "normal", "":
		return Normal, nil
	case "low":
		return Low, nil
	case "idle":
		return Idle, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPriority, s)
}

// MarshalText lets priorities travel as their names in JSON and YAML.
func (p Priority) MarshalText() ([]byte, error) {
	if !p.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPriority, int(p))
	}
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
