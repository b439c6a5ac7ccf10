package sync

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/synchub/backend/internal/domain/connector"
	"github.com/synchub/backend/internal/domain/shared"
)

// ExecutionStatus is the sync run state machine
type ExecutionStatus string

// Execution statuses
const (
	// StatusPending means the record exists but has not been queued
	StatusPending ExecutionStatus = "pending"
	// StatusQueued means the run holds the configuration lock and awaits a worker
	StatusQueued ExecutionStatus = "queued"
	// StatusRunning means batches are being processed
	StatusRunning ExecutionStatus = "running"
	// StatusRetrying means a retry execution has been chained and is pending
	StatusRetrying ExecutionStatus = "retrying"
	// StatusCompleted means every record succeeded
	StatusCompleted ExecutionStatus = "completed"
	// StatusPartial means some records succeeded and some failed
	StatusPartial ExecutionStatus = "partial"
	// StatusFailed means the run failed entirely
	StatusFailed ExecutionStatus = "failed"
	// StatusCancelled means an operator cancelled the run
	StatusCancelled ExecutionStatus = "cancelled"
	// StatusTimeout means the wall-clock budget was exceeded. Kept distinct
	// from failed so retry backoff can differ.
	StatusTimeout ExecutionStatus = "timeout"
)

// IsValid checks if the status is valid
func (s ExecutionStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusQueued, StatusRunning, StatusRetrying,
		StatusCompleted, StatusPartial, StatusFailed, StatusCancelled, StatusTimeout:
		return true
	}
	return false
}

// String returns the string representation
func (s ExecutionStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the execution reached a final state.
// The at-most-one-concurrent invariant only inspects non-terminal statuses,
// so archival of terminal rows never breaks it.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusPartial, StatusFailed, StatusCancelled, StatusTimeout:
		return true
	}
	return false
}

// ActiveStatuses are the statuses counted against the at-most-one-concurrent
// invariant per configuration
func ActiveStatuses() []ExecutionStatus {
	return []ExecutionStatus{StatusQueued, StatusRunning, StatusRetrying}
}

// TriggerSource records what started an execution
type TriggerSource string

// Trigger sources
const (
	TriggerManual    TriggerSource = "manual"
	TriggerScheduled TriggerSource = "scheduled"
	TriggerAPI       TriggerSource = "api"
	TriggerWebhook   TriggerSource = "webhook"
)

// IsValid checks if the trigger source is valid
func (t TriggerSource) IsValid() bool {
	switch t {
	case TriggerManual, TriggerScheduled, TriggerAPI, TriggerWebhook:
		return true
	}
	return false
}

// maxRecordedErrors bounds the per-execution error detail list; the full
// trace is in the execution logs
const maxRecordedErrors = 50

// ExecutionError is one recorded per-record failure
type ExecutionError struct {
	RecordID string    `json:"record_id,omitempty"`
	Field    string    `json:"field,omitempty"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// SyncExecution is one synchronization run. Immutable once terminal except
// for retry chaining: a retry is a NEW execution referencing this one
// through RetryOfID, never a reset of this record.
type SyncExecution struct {
	shared.TenantAggregateRoot
	// ConfigID is nil for ad-hoc runs (manual mapping trigger, inbound webhook)
	ConfigID     *uuid.UUID
	MappingID    uuid.UUID
	ConnectionID uuid.UUID
	// ExecutionNumber is assigned monotonically per configuration by the
	// repository at insert time
	ExecutionNumber int64
	Direction       connector.Direction
	EntityType      connector.EntityType
	Status          ExecutionStatus
	TotalRecords    int
	// Progress counters. Monotonically non-decreasing for the lifetime of
	// the execution; updated at batch boundaries only.
	ProcessedRecords int
	CreatedRecords   int
	UpdatedRecords   int
	DeletedRecords   int
	SkippedRecords   int
	FailedRecords    int
	ProgressPercent  int
	Errors           []ExecutionError
	LastError        string
	RetryCount       int
	IsRetry          bool
	RetryOfID        *uuid.UUID
	TriggerSource    TriggerSource
	// CancelRequested is the cooperative cancellation flag, re-read from the
	// store between batches
	CancelRequested bool
	StartedAt       *time.Time
	FinishedAt      *time.Time
	DurationMs      int64
	// Watermark is the delta bound this run fetched against (nil = full sync)
	Watermark *time.Time
}

// NewSyncExecution creates a pending execution
func NewSyncExecution(tenantID uuid.UUID, configID *uuid.UUID, mappingID, connectionID uuid.UUID, direction connector.Direction, entity connector.EntityType, source TriggerSource) *SyncExecution {
	return &SyncExecution{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ConfigID:            configID,
		MappingID:           mappingID,
		ConnectionID:        connectionID,
		Direction:           direction,
		EntityType:          entity,
		Status:              StatusPending,
		TriggerSource:       source,
	}
}

// NewRetryExecution chains a new execution off a terminal failed or timed-out
// one. History and partial progress of the prior run survive untouched.
func NewRetryExecution(prev *SyncExecution) (*SyncExecution, error) {
	if prev.Status != StatusFailed && prev.Status != StatusTimeout {
		return nil, ErrExecutionNotRetryable
	}
	e := NewSyncExecution(prev.TenantID, prev.ConfigID, prev.MappingID, prev.ConnectionID, prev.Direction, prev.EntityType, prev.TriggerSource)
	e.IsRetry = true
	prevID := prev.ID
	e.RetryOfID = &prevID
	e.RetryCount = prev.RetryCount + 1
	return e, nil
}

// ---------------------------------------------------------------------------
// State transitions
// ---------------------------------------------------------------------------

// Enqueue moves a pending execution into the queue
func (e *SyncExecution) Enqueue() error {
	if e.Status != StatusPending {
		return ErrInvalidExecutionState
	}
	e.Status = StatusQueued
	e.Touch()
	return nil
}

// Begin starts batch processing
func (e *SyncExecution) Begin(now time.Time) error {
	if e.Status != StatusQueued && e.Status != StatusRetrying {
		return ErrInvalidExecutionState
	}
	e.Status = StatusRunning
	e.StartedAt = &now
	e.Touch()
	return nil
}

// Finish applies the completion rule and moves the execution to its terminal
// status: zero failures -> completed, everything failed -> failed,
// mixed -> partial.
func (e *SyncExecution) Finish(now time.Time) error {
	if e.Status != StatusRunning {
		return ErrInvalidExecutionState
	}
	switch {
	case e.FailedRecords == 0:
		e.Status = StatusCompleted
	case e.ProcessedRecords > 0 && e.FailedRecords < e.ProcessedRecords:
		e.Status = StatusPartial
	default:
		e.Status = StatusFailed
	}
	e.finishAt(now)
	return nil
}

// Fail terminates the run with a fatal error. Remaining records stay
// unprocessed; they are not counted as failed.
func (e *SyncExecution) Fail(now time.Time, reason string) error {
	if e.Status.IsTerminal() {
		return ErrInvalidExecutionState
	}
	e.Status = StatusFailed
	e.LastError = reason
	e.finishAt(now)
	return nil
}

// MarkTimeout terminates the run because the wall-clock budget was exceeded
func (e *SyncExecution) MarkTimeout(now time.Time, reason string) error {
	if e.Status != StatusRunning && e.Status != StatusQueued {
		return ErrInvalidExecutionState
	}
	e.Status = StatusTimeout
	e.LastError = reason
	e.finishAt(now)
	return nil
}

// Cancel terminates the run after a cooperative cancellation checkpoint.
// Counters stay at the last completed batch boundary.
func (e *SyncExecution) Cancel(now time.Time) error {
	if !e.CanCancel() {
		return ErrExecutionNotCancellable
	}
	e.Status = StatusCancelled
	e.finishAt(now)
	return nil
}

// MarkRetrying records that a retry execution has been chained off this one.
// Valid only from terminal failed/timeout; the terminal counters stay as
// they were, only the status reflects the pending retry.
func (e *SyncExecution) MarkRetrying() error {
	if e.Status != StatusFailed && e.Status != StatusTimeout {
		return ErrInvalidExecutionState
	}
	e.Status = StatusRetrying
	e.Touch()
	return nil
}

// CanCancel reports whether a cancel request is valid now
func (e *SyncExecution) CanCancel() bool {
	return e.Status == StatusQueued || e.Status == StatusRunning
}

// RequestCancel sets the cooperative cancellation flag
func (e *SyncExecution) RequestCancel() error {
	if !e.CanCancel() {
		return ErrExecutionNotCancellable
	}
	e.CancelRequested = true
	e.Touch()
	return nil
}

// CanRetry reports whether a retry may be chained off this execution
func (e *SyncExecution) CanRetry(maxRetries int) bool {
	return (e.Status == StatusFailed || e.Status == StatusTimeout) && e.RetryCount < maxRetries
}

// finishAt stamps the terminal timestamps
func (e *SyncExecution) finishAt(now time.Time) {
	e.FinishedAt = &now
	if e.StartedAt != nil {
		e.DurationMs = now.Sub(*e.StartedAt).Milliseconds()
	}
	e.Touch()
}

// ---------------------------------------------------------------------------
// Progress accounting
// ---------------------------------------------------------------------------

// SetTotal records the total record count once the first fetch reports it
func (e *SyncExecution) SetTotal(total int) {
	if total > e.TotalRecords {
		e.TotalRecords = total
	}
	e.recomputeProgress()
}

// BatchResult is the accounting delta of one processed batch
type BatchResult struct {
	Processed int
	Created   int
	Updated   int
	Deleted   int
	Skipped   int
	Failed    int
}

// ApplyBatch folds one batch into the progress counters. Deltas are
// non-negative so counters never decrease.
func (e *SyncExecution) ApplyBatch(b BatchResult) {
	e.ProcessedRecords += max(0, b.Processed)
	e.CreatedRecords += max(0, b.Created)
	e.UpdatedRecords += max(0, b.Updated)
	e.DeletedRecords += max(0, b.Deleted)
	e.SkippedRecords += max(0, b.Skipped)
	e.FailedRecords += max(0, b.Failed)
	e.recomputeProgress()
	e.Touch()
}

// recomputeProgress derives progress_percent, clamped to [0,100].
// While the total is unknown the percentage stays at zero.
func (e *SyncExecution) recomputeProgress() {
	if e.TotalRecords <= 0 {
		e.ProgressPercent = 0
		return
	}
	pct := int(math.Round(float64(e.ProcessedRecords) / float64(e.TotalRecords) * 100))
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	e.ProgressPercent = pct
}

// RecordError appends to the bounded error detail list and remembers the
// most recent message
func (e *SyncExecution) RecordError(recordID, field, message string, at time.Time) {
	e.LastError = message
	if len(e.Errors) >= maxRecordedErrors {
		return
	}
	e.Errors = append(e.Errors, ExecutionError{
		RecordID: recordID,
		Field:    field,
		Message:  message,
		At:       at,
	})
}

// SucceededRecords is the count of records written this run
func (e *SyncExecution) SucceededRecords() int {
	return e.CreatedRecords + e.UpdatedRecords + e.DeletedRecords
}
