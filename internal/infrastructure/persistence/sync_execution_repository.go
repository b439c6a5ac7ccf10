package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/synchub/backend/internal/domain/sync"
	"github.com/synchub/backend/internal/infrastructure/persistence/models"
)

// GormSyncExecutionRepository implements sync.ExecutionRepository using GORM.
// It also owns the per-configuration execution lock rows backing the
// at-most-one-concurrent invariant.
type GormSyncExecutionRepository struct {
	db *gorm.DB
}

// NewGormSyncExecutionRepository creates a new GormSyncExecutionRepository
func NewGormSyncExecutionRepository(db *gorm.DB) *GormSyncExecutionRepository {
	return &GormSyncExecutionRepository{db: db}
}

// FindByID finds an execution by ID within a tenant
func (r *GormSyncExecutionRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*sync.SyncExecution, error) {
	var model models.SyncExecutionModel
	if err := r.db.WithContext(ctx).First(&model, "tenant_id = ? AND id = ?", tenantID, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrExecutionNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds executions for a tenant matching the filter, newest first
func (r *GormSyncExecutionRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter sync.ExecutionFilter) ([]*sync.SyncExecution, error) {
	var executionModels []models.SyncExecutionModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.SyncExecutionModel{}).Where("tenant_id = ?", tenantID), filter)

	if filter.PageSize > 0 {
		offset := 0
		if filter.Page > 1 {
			offset = (filter.Page - 1) * filter.PageSize
		}
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if err := query.Order("created_at DESC").Find(&executionModels).Error; err != nil {
		return nil, err
	}

	executions := make([]*sync.SyncExecution, len(executionModels))
	for i := range executionModels {
		executions[i] = executionModels[i].ToDomain()
	}
	return executions, nil
}

// Count returns the number of executions matching the filter
func (r *GormSyncExecutionRepository) Count(ctx context.Context, tenantID uuid.UUID, filter sync.ExecutionFilter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.SyncExecutionModel{}).Where("tenant_id = ?", tenantID), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Create inserts the execution, assigning the next execution number for its
// configuration atomically in the same transaction. Ad-hoc executions
// (no configuration) keep number zero.
func (r *GormSyncExecutionRepository) Create(ctx context.Context, e *sync.SyncExecution) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if e.ConfigID != nil {
			var number int64
			if err := tx.Raw(`
				INSERT INTO sync_execution_sequences (config_id, next_number)
				VALUES (?, 1)
				ON CONFLICT (config_id)
				DO UPDATE SET next_number = sync_execution_sequences.next_number + 1
				RETURNING next_number`, *e.ConfigID).Scan(&number).Error; err != nil {
				return err
			}
			e.ExecutionNumber = number
		}

		model := models.SyncExecutionModelFromDomain(e)
		return tx.Create(model).Error
	})
}

// Update persists execution state
func (r *GormSyncExecutionRepository) Update(ctx context.Context, e *sync.SyncExecution) error {
	model := models.SyncExecutionModelFromDomain(e)
	return r.db.WithContext(ctx).Save(model).Error
}

// UpdateProgress folds the in-memory batch counters into the row with one
// statement so live progress polls never observe a partially written batch
func (r *GormSyncExecutionRepository) UpdateProgress(ctx context.Context, e *sync.SyncExecution) error {
	model := models.SyncExecutionModelFromDomain(e)
	return r.db.WithContext(ctx).Model(&models.SyncExecutionModel{}).
		Where("id = ?", e.ID).
		Updates(map[string]any{
			"total_records":     model.TotalRecords,
			"processed_records": model.ProcessedRecords,
			"created_records":   model.CreatedRecords,
			"updated_records":   model.UpdatedRecords,
			"deleted_records":   model.DeletedRecords,
			"skipped_records":   model.SkippedRecords,
			"failed_records":    model.FailedRecords,
			"progress_percent":  model.ProgressPercent,
			"errors":            model.ErrorsJSON,
			"last_error":        model.LastError,
			"updated_at":        time.Now(),
		}).Error
}

// RequestCancel sets the cooperative cancellation flag while the execution is
// still queued or running
func (r *GormSyncExecutionRepository) RequestCancel(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&models.SyncExecutionModel{}).
		Where("tenant_id = ? AND id = ? AND status IN ?", tenantID, id,
			[]sync.ExecutionStatus{sync.StatusQueued, sync.StatusRunning}).
		Updates(map[string]any{
			"cancel_requested": true,
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.SyncExecutionModel{}).
			Where("tenant_id = ? AND id = ?", tenantID, id).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return sync.ErrExecutionNotFound
		}
		return sync.ErrExecutionNotCancellable
	}
	return nil
}

// IsCancelRequested re-reads the cancellation flag; the executor polls it
// between batches
func (r *GormSyncExecutionRepository) IsCancelRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	var requested bool
	err := r.db.WithContext(ctx).Model(&models.SyncExecutionModel{}).
		Select("cancel_requested").
		Where("id = ?", id).
		Scan(&requested).Error
	return requested, err
}

// AcquireLock takes the execution lock for a lock key. A live lock held by
// another execution surfaces as ErrExecutionOverlap; an expired lock from a
// crashed process is stolen in the same statement.
func (r *GormSyncExecutionRepository) AcquireLock(ctx context.Context, lockKey, executionID uuid.UUID, ttl time.Duration) error {
	expiresAt := time.Now().Add(ttl)
	result := r.db.WithContext(ctx).Exec(`
		INSERT INTO sync_execution_locks (lock_key, execution_id, expires_at, created_at)
		VALUES (?, ?, ?, NOW())
		ON CONFLICT (lock_key)
		DO UPDATE SET execution_id = EXCLUDED.execution_id,
		              expires_at = EXCLUDED.expires_at,
		              created_at = NOW()
		WHERE sync_execution_locks.expires_at <= NOW()`,
		lockKey, executionID, expiresAt)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return sync.ErrExecutionOverlap
	}
	return nil
}

// ReleaseLock releases the lock if this execution still holds it. A lock
// stolen after expiry stays with its new owner.
func (r *GormSyncExecutionRepository) ReleaseLock(ctx context.Context, lockKey, executionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&models.SyncExecutionLockModel{}, "lock_key = ? AND execution_id = ?", lockKey, executionID).Error
}

// FindTerminalBefore returns terminal executions finished before the cutoff,
// oldest first, for archival
func (r *GormSyncExecutionRepository) FindTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]*sync.SyncExecution, error) {
	terminal := []sync.ExecutionStatus{
		sync.StatusCompleted, sync.StatusPartial, sync.StatusFailed,
		sync.StatusCancelled, sync.StatusTimeout,
	}

	var executionModels []models.SyncExecutionModel
	query := r.db.WithContext(ctx).
		Where("status IN ? AND finished_at IS NOT NULL AND finished_at < ?", terminal, cutoff).
		Order("finished_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&executionModels).Error; err != nil {
		return nil, err
	}

	executions := make([]*sync.SyncExecution, len(executionModels))
	for i := range executionModels {
		executions[i] = executionModels[i].ToDomain()
	}
	return executions, nil
}

// DeleteTerminalBefore removes terminal executions finished before the cutoff
// and returns their IDs. Non-terminal rows are never touched, so the
// at-most-one-concurrent invariant survives retention.
func (r *GormSyncExecutionRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	terminal := []sync.ExecutionStatus{
		sync.StatusCompleted, sync.StatusPartial, sync.StatusFailed,
		sync.StatusCancelled, sync.StatusTimeout,
	}

	var ids []uuid.UUID
	query := r.db.WithContext(ctx).Model(&models.SyncExecutionModel{}).
		Select("id").
		Where("status IN ? AND finished_at IS NOT NULL AND finished_at < ?", terminal, cutoff).
		Order("finished_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(&ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if err := r.db.WithContext(ctx).Delete(&models.SyncExecutionModel{}, "id IN ?", ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// applyFilter applies optional filter criteria to a query
func (r *GormSyncExecutionRepository) applyFilter(query *gorm.DB, filter sync.ExecutionFilter) *gorm.DB {
	if filter.ConfigID != nil {
		query = query.Where("config_id = ?", *filter.ConfigID)
	}
	if filter.MappingID != nil {
		query = query.Where("mapping_id = ?", *filter.MappingID)
	}
	if filter.ConnectionID != nil {
		query = query.Where("connection_id = ?", *filter.ConnectionID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.EntityType != nil {
		query = query.Where("entity_type = ?", *filter.EntityType)
	}
	if filter.IsRetry != nil {
		query = query.Where("is_retry = ?", *filter.IsRetry)
	}
	if filter.Since != nil {
		query = query.Where("created_at >= ?", *filter.Since)
	}
	return query
}
