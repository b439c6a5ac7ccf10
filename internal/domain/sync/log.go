package sync

import (
	"time"

	"github.com/google/uuid"

	"github.com/synchub/backend/internal/domain/connector"
)

// LogLevel classifies execution log entries
type LogLevel string

// Log levels
const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid checks if the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// ExecutionLog is one append-only per-record trace entry of an execution.
// Write-once; entries are never updated or individually deleted, only
// archived with their execution.
type ExecutionLog struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	ExecutionID uuid.UUID
	Level       LogLevel
	Message     string
	// SourceID and TargetID are the record identifiers on each side, when known
	SourceID   string
	TargetID   string
	Entity     connector.EntityType
	DurationMs int64
	CreatedAt  time.Time
}

// NewExecutionLog creates a log entry for an execution
func NewExecutionLog(e *SyncExecution, level LogLevel, message, sourceID, targetID string, durationMs int64) *ExecutionLog {
	return &ExecutionLog{
		ID:          uuid.New(),
		TenantID:    e.TenantID,
		ExecutionID: e.ID,
		Level:       level,
		Message:     message,
		SourceID:    sourceID,
		TargetID:    targetID,
		Entity:      e.EntityType,
		DurationMs:  durationMs,
		CreatedAt:   time.Now(),
	}
}
