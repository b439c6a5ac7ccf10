package sync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/synchub/backend/internal/domain/connector"
)

// ConfigFilter carries the optional criteria for configuration queries
type ConfigFilter struct {
	MappingID    *uuid.UUID
	ConnectionID *uuid.UUID
	SyncMode     *SyncMode
	IsPaused     *bool
	IsActive     *bool
	Page         int
	PageSize     int
}

// ConfigRepository persists sync configurations
type ConfigRepository interface {
	// FindByID retrieves a configuration by ID within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*SyncConfiguration, error)

	// FindAll retrieves configurations matching the filter
	FindAll(ctx context.Context, tenantID uuid.UUID, filter ConfigFilter) ([]*SyncConfiguration, error)

	// Count returns the number of configurations matching the filter
	Count(ctx context.Context, tenantID uuid.UUID, filter ConfigFilter) (int64, error)

	// FindDue returns active, unpaused configurations with next_run_at <= now
	// across all tenants, excluding those whose connection is in maintenance
	// or disconnected. The scheduler tick consumes this.
	FindDue(ctx context.Context, now time.Time, limit int) ([]*SyncConfiguration, error)

	// Save persists a configuration (create or update with optimistic locking)
	Save(ctx context.Context, cfg *SyncConfiguration) error

	// Delete removes a configuration
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// ExecutionFilter carries the optional criteria for execution queries
type ExecutionFilter struct {
	ConfigID     *uuid.UUID
	MappingID    *uuid.UUID
	ConnectionID *uuid.UUID
	Status       *ExecutionStatus
	EntityType   *connector.EntityType
	IsRetry      *bool
	Since        *time.Time
	Page         int
	PageSize     int
}

// ExecutionRepository persists sync executions and owns the per-configuration
// execution lock that enforces the at-most-one-concurrent invariant.
type ExecutionRepository interface {
	// FindByID retrieves an execution by ID within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*SyncExecution, error)

	// FindAll retrieves executions matching the filter, newest first
	FindAll(ctx context.Context, tenantID uuid.UUID, filter ExecutionFilter) ([]*SyncExecution, error)

	// Count returns the number of executions matching the filter
	Count(ctx context.Context, tenantID uuid.UUID, filter ExecutionFilter) (int64, error)

	// Create inserts the execution, assigning the next execution_number for
	// its configuration atomically in the same transaction
	Create(ctx context.Context, e *SyncExecution) error

	// Update persists execution state with optimistic locking
	Update(ctx context.Context, e *SyncExecution) error

	// UpdateProgress folds batch counters into the row with a single
	// statement so progress stays monotonic under live polling
	UpdateProgress(ctx context.Context, e *SyncExecution) error

	// RequestCancel sets the cooperative cancellation flag when the
	// execution is still queued or running; returns
	// ErrExecutionNotCancellable otherwise
	RequestCancel(ctx context.Context, tenantID, id uuid.UUID) error

	// IsCancelRequested re-reads the cancellation flag; the executor checks
	// it between batches
	IsCancelRequested(ctx context.Context, id uuid.UUID) (bool, error)

	// AcquireLock takes the execution lock for a lock key (config ID, or
	// mapping ID for ad-hoc runs). Returns ErrExecutionOverlap while another
	// unexpired execution holds it; expired locks are stolen.
	AcquireLock(ctx context.Context, lockKey, executionID uuid.UUID, ttl time.Duration) error

	// ReleaseLock releases the lock if this execution still holds it
	ReleaseLock(ctx context.Context, lockKey, executionID uuid.UUID) error

	// FindTerminalBefore returns terminal executions finished before the
	// cutoff, oldest first; the retention service archives them before
	// deleting
	FindTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]*SyncExecution, error)

	// DeleteTerminalBefore removes terminal executions finished before the
	// cutoff and returns their IDs; the retention service archives them
	// first. Non-terminal rows are never touched.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

// LogRepository persists append-only execution trace entries
type LogRepository interface {
	// Append batch-inserts log entries; entries are write-once
	Append(ctx context.Context, logs []*ExecutionLog) error

	// FindByExecution retrieves entries for one execution in insertion order
	FindByExecution(ctx context.Context, tenantID, executionID uuid.UUID, level *LogLevel, page, pageSize int) ([]*ExecutionLog, error)

	// DeleteByExecutions removes entries belonging to archived executions
	DeleteByExecutions(ctx context.Context, executionIDs []uuid.UUID) error
}
