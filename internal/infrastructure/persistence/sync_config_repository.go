package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/synchub/backend/internal/domain/connection"
	"github.com/synchub/backend/internal/domain/sync"
	"github.com/synchub/backend/internal/infrastructure/persistence/models"
)

// GormSyncConfigRepository implements sync.ConfigRepository using GORM
type GormSyncConfigRepository struct {
	db *gorm.DB
}

// NewGormSyncConfigRepository creates a new GormSyncConfigRepository
func NewGormSyncConfigRepository(db *gorm.DB) *GormSyncConfigRepository {
	return &GormSyncConfigRepository{db: db}
}

// FindByID finds a configuration by ID within a tenant
func (r *GormSyncConfigRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*sync.SyncConfiguration, error) {
	var model models.SyncConfigurationModel
	if err := r.db.WithContext(ctx).First(&model, "tenant_id = ? AND id = ?", tenantID, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrConfigNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds configurations for a tenant matching the filter
func (r *GormSyncConfigRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter sync.ConfigFilter) ([]*sync.SyncConfiguration, error) {
	var configModels []models.SyncConfigurationModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.SyncConfigurationModel{}).Where("tenant_id = ?", tenantID), filter)

	if filter.PageSize > 0 {
		offset := 0
		if filter.Page > 1 {
			offset = (filter.Page - 1) * filter.PageSize
		}
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if err := query.Order("created_at DESC").Find(&configModels).Error; err != nil {
		return nil, err
	}

	configs := make([]*sync.SyncConfiguration, len(configModels))
	for i := range configModels {
		configs[i] = configModels[i].ToDomain()
	}
	return configs, nil
}

// Count returns the number of configurations matching the filter
func (r *GormSyncConfigRepository) Count(ctx context.Context, tenantID uuid.UUID, filter sync.ConfigFilter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.SyncConfigurationModel{}).Where("tenant_id = ?", tenantID), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindDue returns active, unpaused configurations with next_run_at <= now
// across all tenants. Configurations whose connection is in maintenance or
// disconnected are excluded at the query so the scheduler never even
// considers them.
func (r *GormSyncConfigRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*sync.SyncConfiguration, error) {
	var configModels []models.SyncConfigurationModel
	query := r.db.WithContext(ctx).
		Joins("JOIN connections ON connections.id = sync_configurations.connection_id").
		Where("sync_configurations.is_active = true AND sync_configurations.is_paused = false").
		Where("sync_configurations.next_run_at IS NOT NULL AND sync_configurations.next_run_at <= ?", now).
		Where("connections.status NOT IN ?", []connection.Status{connection.StatusMaintenance, connection.StatusDisconnected}).
		Order("sync_configurations.next_run_at ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&configModels).Error; err != nil {
		return nil, err
	}

	configs := make([]*sync.SyncConfiguration, len(configModels))
	for i := range configModels {
		configs[i] = configModels[i].ToDomain()
	}
	return configs, nil
}

// Save creates or updates a configuration
func (r *GormSyncConfigRepository) Save(ctx context.Context, cfg *sync.SyncConfiguration) error {
	model := models.SyncConfigurationModelFromDomain(cfg)
	return r.db.WithContext(ctx).Save(model).Error
}

// Delete removes a configuration
func (r *GormSyncConfigRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.SyncConfigurationModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return sync.ErrConfigNotFound
	}
	return nil
}

// applyFilter applies optional filter criteria to a query
func (r *GormSyncConfigRepository) applyFilter(query *gorm.DB, filter sync.ConfigFilter) *gorm.DB {
	if filter.MappingID != nil {
		query = query.Where("mapping_id = ?", *filter.MappingID)
	}
	if filter.ConnectionID != nil {
		query = query.Where("connection_id = ?", *filter.ConnectionID)
	}
	if filter.SyncMode != nil {
		query = query.Where("sync_mode = ?", *filter.SyncMode)
	}
	if filter.IsPaused != nil {
		query = query.Where("is_paused = ?", *filter.IsPaused)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}
