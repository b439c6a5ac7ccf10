package sync

import (
	"github.com/synchub/backend/internal/domain/shared"
)

// Event types emitted by the execution engine
const (
	EventExecutionCompleted = "sync.execution_completed"
	EventExecutionFailed    = "sync.execution_failed"
)

// ExecutionFinishedEvent is emitted when an execution reaches a terminal
// status. Completed and partial runs emit EventExecutionCompleted; failed,
// timeout and cancelled runs emit EventExecutionFailed.
type ExecutionFinishedEvent struct {
	shared.BaseDomainEvent
	ExecutionNumber int64           `json:"execution_number"`
	ConfigID        string          `json:"config_id,omitempty"`
	MappingID       string          `json:"mapping_id"`
	ConnectionID    string          `json:"connection_id"`
	Entity          string          `json:"entity"`
	Direction       string          `json:"direction"`
	TriggerSource   string          `json:"trigger_source"`
	Status          ExecutionStatus `json:"status"`
	TotalRecords    int             `json:"total_records"`
	CreatedRecords  int             `json:"created_records"`
	UpdatedRecords  int             `json:"updated_records"`
	SkippedRecords  int             `json:"skipped_records"`
	FailedRecords   int             `json:"failed_records"`
	DurationMs      int64           `json:"duration_ms"`
	LastError       string          `json:"last_error,omitempty"`
	IsRetry         bool            `json:"is_retry"`
	RetryCount      int             `json:"retry_count"`
}

// NewExecutionFinishedEvent creates the terminal event for an execution
func NewExecutionFinishedEvent(e *SyncExecution) *ExecutionFinishedEvent {
	eventType := EventExecutionCompleted
	if e.Status == StatusFailed || e.Status == StatusTimeout || e.Status == StatusCancelled {
		eventType = EventExecutionFailed
	}
	ev := &ExecutionFinishedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "SyncExecution", e.ID, e.TenantID),
		ExecutionNumber: e.ExecutionNumber,
		MappingID:       e.MappingID.String(),
		ConnectionID:    e.ConnectionID.String(),
		Entity:          e.EntityType.String(),
		Direction:       string(e.Direction),
		TriggerSource:   string(e.TriggerSource),
		Status:          e.Status,
		TotalRecords:    e.TotalRecords,
		CreatedRecords:  e.CreatedRecords,
		UpdatedRecords:  e.UpdatedRecords,
		SkippedRecords:  e.SkippedRecords,
		FailedRecords:   e.FailedRecords,
		DurationMs:      e.DurationMs,
		LastError:       e.LastError,
		IsRetry:         e.IsRetry,
		RetryCount:      e.RetryCount,
	}
	if e.ConfigID != nil {
		ev.ConfigID = e.ConfigID.String()
	}
	return ev
}
