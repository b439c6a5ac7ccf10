package sync

import (
	"time"

	"github.com/google/uuid"

	"github.com/synchub/backend/internal/domain/shared"
)

// Retry policy defaults
const (
	DefaultMaxRetries         = 3
	DefaultRetryDelaySeconds  = 60
	DefaultRetryBackoffFactor = 2.0
	// DefaultTimeoutSeconds is the engine-wide wall-clock budget when neither
	// the configuration nor the connector definition sets one
	DefaultTimeoutSeconds = 3600
)

// maxRetryDelay caps exponential backoff between retry executions
const maxRetryDelay = 30 * time.Minute

// SyncConfiguration schedules one data mapping for recurring execution.
// ConnectionID is denormalized from the mapping so the scheduler can gate
// triggers on connection state without a join.
type SyncConfiguration struct {
	shared.TenantAggregateRoot
	MappingID    uuid.UUID
	ConnectionID uuid.UUID
	Name         string
	SyncMode     SyncMode
	Schedule     Schedule
	UseDeltaSync bool
	// DeltaField names the remote modification field bounding delta fetches
	DeltaField string
	// Watermark is the start instant of the last completed or partial run.
	// Delta fetches are bounded by it; conflict detection compares both
	// sides' modification times against it.
	Watermark           *time.Time
	MaxRetries          int
	RetryDelaySeconds   int
	RetryBackoffFactor  float64
	TimeoutSeconds      int
	NotifyOnSuccess     bool
	NotifyOnError       bool
	NotificationTargets []string
	NextRunAt           *time.Time
	LastRunAt           *time.Time
	LastRunStatus       ExecutionStatus
	TotalRecordsSynced  int64
	IsPaused            bool
	IsActive            bool
}

// NewSyncConfiguration creates an active, unpaused configuration.
// The schedule is validated here so invalid cron/interval settings never
// reach the scheduler.
func NewSyncConfiguration(tenantID, mappingID, connectionID uuid.UUID, name string, mode SyncMode, schedule Schedule) (*SyncConfiguration, error) {
	cfg := &SyncConfiguration{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		MappingID:           mappingID,
		ConnectionID:        connectionID,
		Name:                name,
		SyncMode:            mode,
		Schedule:            schedule,
		MaxRetries:          DefaultMaxRetries,
		RetryDelaySeconds:   DefaultRetryDelaySeconds,
		RetryBackoffFactor:  DefaultRetryBackoffFactor,
		IsActive:            true,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency
func (c *SyncConfiguration) Validate() error {
	if c.Name == "" {
		return ErrConfigNameRequired
	}
	if !c.SyncMode.IsValid() {
		return ErrInvalidSyncMode
	}
	if err := c.Schedule.Validate(); err != nil {
		return err
	}
	if c.SyncMode == ModeScheduled && !c.Schedule.IsEnabled() {
		return ErrScheduleRequired
	}
	if c.UseDeltaSync && c.DeltaField == "" {
		return ErrDeltaFieldRequired
	}
	if c.MaxRetries < 0 || c.RetryDelaySeconds < 0 || c.RetryBackoffFactor < 1 {
		return ErrInvalidRetryPolicy
	}
	if c.TimeoutSeconds < 0 {
		return ErrInvalidRetryPolicy
	}
	return nil
}

// UpdateSchedule replaces the schedule and recomputes the next run from now
func (c *SyncConfiguration) UpdateSchedule(s Schedule, now time.Time) error {
	if err := s.Validate(); err != nil {
		return err
	}
	c.Schedule = s
	c.recomputeNextRun(now)
	c.IncrementVersion()
	c.Touch()
	return nil
}

// EnableDeltaSync turns on watermark-bounded fetching
func (c *SyncConfiguration) EnableDeltaSync(field string) error {
	if field == "" {
		return ErrDeltaFieldRequired
	}
	c.UseDeltaSync = true
	c.DeltaField = field
	c.Touch()
	return nil
}

// DisableDeltaSync reverts to full fetches. The watermark is kept so a later
// re-enable does not replay history.
func (c *SyncConfiguration) DisableDeltaSync() {
	c.UseDeltaSync = false
	c.Touch()
}

// Pause stops future triggers without discarding the schedule
func (c *SyncConfiguration) Pause() {
	if c.IsPaused {
		return
	}
	c.IsPaused = true
	c.NextRunAt = nil
	c.Touch()
}

// Resume re-enables triggers, recomputing the next run from now rather than
// backfilling ticks missed while paused
func (c *SyncConfiguration) Resume(now time.Time) {
	if !c.IsPaused {
		return
	}
	c.IsPaused = false
	c.recomputeNextRun(now)
	c.Touch()
}

// Deactivate disables the configuration entirely
func (c *SyncConfiguration) Deactivate() {
	c.IsActive = false
	c.NextRunAt = nil
	c.Touch()
}

// IsDue reports whether the scheduler should trigger this configuration now
func (c *SyncConfiguration) IsDue(now time.Time) bool {
	return c.IsActive && !c.IsPaused && c.NextRunAt != nil && !now.Before(*c.NextRunAt)
}

// AdvanceNextRun moves next_run_at past now. The scheduler calls it on every
// due tick regardless of whether the execution could start: missed ticks are
// skipped, never queued.
func (c *SyncConfiguration) AdvanceNextRun(now time.Time) {
	c.LastRunAt = &now
	c.recomputeNextRun(now)
	c.Touch()
}

// recomputeNextRun projects the next trigger instant strictly after now.
// The last-run anchor is deliberately ignored: pause/resume and schedule
// edits restart from now rather than backfilling the interval backlog.
func (c *SyncConfiguration) recomputeNextRun(now time.Time) {
	if !c.IsActive || c.IsPaused || !c.Schedule.IsEnabled() {
		c.NextRunAt = nil
		return
	}
	if next, ok := c.Schedule.Next(now, now, nil); ok {
		c.NextRunAt = &next
	} else {
		c.NextRunAt = nil
	}
}

// NextRuns projects the next count trigger instants for operator visibility.
// Matches what the live scheduler would produce for the same instants.
func (c *SyncConfiguration) NextRuns(from time.Time, count int) []time.Time {
	if !c.IsActive || c.IsPaused {
		return nil
	}
	return c.Schedule.NextRuns(from, c.LastRunAt, count)
}

// RecordRunFinished folds a terminal execution into the configuration:
// last run status, synced-record total, and the watermark advance on
// completed/partial runs. startedAt becomes the new watermark so records
// modified while the run was in flight are re-examined next time.
func (c *SyncConfiguration) RecordRunFinished(status ExecutionStatus, startedAt time.Time, recordsSynced int) {
	c.LastRunStatus = status
	c.TotalRecordsSynced += int64(recordsSynced)
	if status == StatusCompleted || status == StatusPartial {
		c.Watermark = &startedAt
	}
	c.Touch()
}

// RetryDelay computes the backoff before retry attempt n (1-based),
// capped at 30 minutes
func (c *SyncConfiguration) RetryDelay(attempt int) time.Duration {
	delay := time.Duration(c.RetryDelaySeconds) * time.Second
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * c.RetryBackoffFactor)
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

// ExecutionTimeout resolves the wall-clock budget for one run:
// configuration override, else the connector definition's, else the engine
// default.
func (c *SyncConfiguration) ExecutionTimeout(definitionTimeoutSeconds int) time.Duration {
	switch {
	case c.TimeoutSeconds > 0:
		return time.Duration(c.TimeoutSeconds) * time.Second
	case definitionTimeoutSeconds > 0:
		return time.Duration(definitionTimeoutSeconds) * time.Second
	}
	return DefaultTimeoutSeconds * time.Second
}
