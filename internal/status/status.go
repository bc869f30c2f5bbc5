// Package status holds the runtime snapshot shared by !status and /status.
package status

import (
	"fmt"
	"time"

	"stockbot/internal/runtime/supervisor"
	"stockbot/internal/stock"
	"stockbot/internal/task/scheduler"
)

type Snapshot struct {
	StartedAt        time.Time                   `json:"started_at"`
	Uptime           string                      `json:"uptime"`
	SchedulerEnabled bool                        `json:"scheduler_enabled"`
	Scheduler        scheduler.Snapshot          `json:"scheduler"`
	LastCycle        stock.CycleResult           `json:"last_cycle"`
	Sessions         int                         `json:"reaction_role_sessions"`
	EventsDropped    uint64                      `json:"events_dropped"`
	Goroutines       []supervisor.GoroutineStats `json:"goroutines,omitempty"`
}

type Provider interface {
	Status() Snapshot
}

type ProviderFunc func() Snapshot

func (f ProviderFunc) Status() Snapshot { return f() }

// Lines is the chat rendering of s.
func (s Snapshot) Lines(loc *time.Location) []string {
	if loc == nil {
		loc = time.Local
	}
	out := []string{fmt.Sprintf("Uptime: %s", s.Uptime)}
	switch {
	case !s.SchedulerEnabled:
		out = append(out, "Scheduler: disabled")
	case s.Scheduler.NextWake.IsZero():
		out = append(out, "Scheduler: starting")
	default:
		out = append(out, fmt.Sprintf("Next check: %s (%s)", s.Scheduler.NextWake.In(loc).Format("15:04:05 MST"), s.Scheduler.Schedule))
	}
	if s.LastCycle.At.IsZero() {
		out = append(out, "Last check: none yet")
	} else {
		line := fmt.Sprintf("Last check: %s at %s, %d items, %d pinged",
			s.LastCycle.Outcome, s.LastCycle.At.In(loc).Format("15:04:05"), s.LastCycle.Items, len(s.LastCycle.Pinged))
		if s.LastCycle.Err != "" {
			line += " (" + s.LastCycle.Err + ")"
		}
		out = append(out, line)
	}
	out = append(out, fmt.Sprintf("Reaction-role sessions: %d", s.Sessions))
	if s.EventsDropped > 0 {
		out = append(out, fmt.Sprintf("Events dropped: %d", s.EventsDropped))
	}
	return out
}
