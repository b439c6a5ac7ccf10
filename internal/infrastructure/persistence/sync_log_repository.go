package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/synchub/backend/internal/domain/sync"
	"github.com/synchub/backend/internal/infrastructure/persistence/models"
)

// GormSyncLogRepository implements sync.LogRepository using GORM
type GormSyncLogRepository struct {
	db *gorm.DB
}

// NewGormSyncLogRepository creates a new GormSyncLogRepository
func NewGormSyncLogRepository(db *gorm.DB) *GormSyncLogRepository {
	return &GormSyncLogRepository{db: db}
}

// logInsertBatchSize bounds one multi-row insert
const logInsertBatchSize = 500

// Append batch-inserts log entries
func (r *GormSyncLogRepository) Append(ctx context.Context, logs []*sync.ExecutionLog) error {
	if len(logs) == 0 {
		return nil
	}
	logModels := make([]models.SyncExecutionLogModel, len(logs))
	for i, l := range logs {
		logModels[i].FromDomain(l)
	}
	return r.db.WithContext(ctx).CreateInBatches(logModels, logInsertBatchSize).Error
}

// FindByExecution retrieves entries for one execution in insertion order
func (r *GormSyncLogRepository) FindByExecution(ctx context.Context, tenantID, executionID uuid.UUID, level *sync.LogLevel, page, pageSize int) ([]*sync.ExecutionLog, error) {
	var logModels []models.SyncExecutionLogModel
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND execution_id = ?", tenantID, executionID)
	if level != nil {
		query = query.Where("level = ?", *level)
	}
	if pageSize > 0 {
		offset := 0
		if page > 1 {
			offset = (page - 1) * pageSize
		}
		query = query.Offset(offset).Limit(pageSize)
	}

	if err := query.Order("created_at ASC").Find(&logModels).Error; err != nil {
		return nil, err
	}

	logs := make([]*sync.ExecutionLog, len(logModels))
	for i := range logModels {
		logs[i] = logModels[i].ToDomain()
	}
	return logs, nil
}

// DeleteByExecutions removes entries belonging to archived executions
func (r *GormSyncLogRepository) DeleteByExecutions(ctx context.Context, executionIDs []uuid.UUID) error {
	if len(executionIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Delete(&models.SyncExecutionLogModel{}, "execution_id IN ?", executionIDs).Error
}
