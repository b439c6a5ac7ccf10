// Package sync owns the recurring synchronization schedule and the execution
// state machine: when a mapping runs, how one run progresses, and how failed
// runs chain into retries.
package sync

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// SyncMode describes how executions of a configuration are initiated
type SyncMode string

// Sync modes
const (
	// ModeRealtime means runs are triggered by inbound webhook events
	ModeRealtime SyncMode = "realtime"
	// ModeScheduled means the scheduler triggers runs from the schedule
	ModeScheduled SyncMode = "scheduled"
	// ModeManual means only operators trigger runs
	ModeManual SyncMode = "manual"
	// ModeOnDemand means runs are triggered through the API by other systems
	ModeOnDemand SyncMode = "on_demand"
)

// IsValid checks if the sync mode is valid
func (m SyncMode) IsValid() bool {
	switch m {
	case ModeRealtime, ModeScheduled, ModeManual, ModeOnDemand:
		return true
	}
	return false
}

// String returns the string representation
func (m SyncMode) String() string {
	return string(m)
}

// ScheduleKind tags the schedule variant
type ScheduleKind string

// Schedule kinds
const (
	KindDisabled ScheduleKind = "disabled"
	KindCron     ScheduleKind = "cron"
	KindInterval ScheduleKind = "interval"
)

// cronParser accepts standard 5-field expressions (minute hour dom month dow)
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Schedule is the tagged variant deciding when a configuration runs.
// Exactly one of the variant payloads is meaningful per Kind; consumers
// switch exhaustively on Kind rather than probing optional fields.
type Schedule struct {
	Kind            ScheduleKind `json:"kind"`
	CronExpr        string       `json:"cron_expr,omitempty"`
	Timezone        string       `json:"timezone,omitempty"`
	IntervalMinutes int          `json:"interval_minutes,omitempty"`
}

// DisabledSchedule creates the no-trigger variant
func DisabledSchedule() Schedule {
	return Schedule{Kind: KindDisabled}
}

// CronSchedule creates the cron variant. An empty timezone means UTC.
func CronSchedule(expr, timezone string) Schedule {
	if timezone == "" {
		timezone = "UTC"
	}
	return Schedule{Kind: KindCron, CronExpr: expr, Timezone: timezone}
}

// IntervalSchedule creates the fixed-interval variant
func IntervalSchedule(minutes int) Schedule {
	return Schedule{Kind: KindInterval, IntervalMinutes: minutes}
}

// Validate parses the cron expression and timezone, or checks the interval.
// Invalid schedules are rejected here, at save time, never at trigger time.
func (s Schedule) Validate() error {
	switch s.Kind {
	case KindDisabled:
		return nil
	case KindCron:
		if _, err := cronParser.Parse(s.CronExpr); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidCronExpression, s.CronExpr, err)
		}
		if _, err := s.location(); err != nil {
			return fmt.Errorf("%w: %q", ErrUnknownTimezone, s.Timezone)
		}
		return nil
	case KindInterval:
		if s.IntervalMinutes < 1 {
			return ErrInvalidInterval
		}
		return nil
	}
	return fmt.Errorf("%w: unknown schedule kind %q", ErrInvalidCronExpression, s.Kind)
}

// IsEnabled reports whether the schedule can produce trigger instants
func (s Schedule) IsEnabled() bool {
	return s.Kind == KindCron || s.Kind == KindInterval
}

// location resolves the cron timezone, defaulting to UTC
func (s Schedule) location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}

// Next computes the next trigger instant.
//   - cron: the next matching instant in the schedule's timezone strictly
//     after `after`
//   - interval: lastRun + interval, or now + interval when no prior run
//   - disabled: never (ok=false)
//
// The same function backs both the live scheduler and the NextRuns
// projection, so what operators see is what the scheduler fires.
func (s Schedule) Next(now, after time.Time, lastRun *time.Time) (time.Time, bool) {
	switch s.Kind {
	case KindCron:
		sched, err := cronParser.Parse(s.CronExpr)
		if err != nil {
			return time.Time{}, false
		}
		loc, err := s.location()
		if err != nil {
			return time.Time{}, false
		}
		next := sched.Next(after.In(loc))
		if next.IsZero() {
			return time.Time{}, false
		}
		return next, true
	case KindInterval:
		interval := time.Duration(s.IntervalMinutes) * time.Minute
		if lastRun != nil {
			return lastRun.Add(interval), true
		}
		return now.Add(interval), true
	}
	return time.Time{}, false
}

// NextRuns projects the next count trigger instants from `from`.
// Pure; no side effects on the schedule or configuration.
func (s Schedule) NextRuns(from time.Time, lastRun *time.Time, count int) []time.Time {
	if !s.IsEnabled() || count <= 0 {
		return nil
	}
	runs := make([]time.Time, 0, count)
	after := from
	last := lastRun
	for i := 0; i < count; i++ {
		next, ok := s.Next(from, after, last)
		if !ok {
			break
		}
		runs = append(runs, next)
		after = next
		last = &runs[len(runs)-1]
	}
	return runs
}
