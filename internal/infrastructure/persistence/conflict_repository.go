package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/synchub/backend/internal/domain/conflict"
	"github.com/synchub/backend/internal/infrastructure/persistence/models"
)

// GormConflictRepository implements conflict.Repository using GORM
type GormConflictRepository struct {
	db *gorm.DB
}

// NewGormConflictRepository creates a new GormConflictRepository
func NewGormConflictRepository(db *gorm.DB) *GormConflictRepository {
	return &GormConflictRepository{db: db}
}

// FindByID finds a conflict by ID within a tenant
func (r *GormConflictRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*conflict.Conflict, error) {
	var model models.ConflictModel
	if err := r.db.WithContext(ctx).First(&model, "tenant_id = ? AND id = ?", tenantID, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, conflict.ErrConflictNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds conflicts for a tenant matching the filter, newest first
func (r *GormConflictRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter conflict.Filter) ([]*conflict.Conflict, error) {
	var conflictModels []models.ConflictModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.ConflictModel{}).Where("tenant_id = ?", tenantID), filter)

	if filter.PageSize > 0 {
		offset := 0
		if filter.Page > 1 {
			offset = (filter.Page - 1) * filter.PageSize
		}
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if err := query.Order("created_at DESC").Find(&conflictModels).Error; err != nil {
		return nil, err
	}

	conflicts := make([]*conflict.Conflict, len(conflictModels))
	for i := range conflictModels {
		conflicts[i] = conflictModels[i].ToDomain()
	}
	return conflicts, nil
}

// Count returns the number of conflicts matching the filter
func (r *GormConflictRepository) Count(ctx context.Context, tenantID uuid.UUID, filter conflict.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.ConflictModel{}).Where("tenant_id = ?", tenantID), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountUnresolvedByMapping returns the open conflict count per mapping
func (r *GormConflictRepository) CountUnresolvedByMapping(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]int64, error) {
	type row struct {
		MappingID uuid.UUID
		Count     int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).Model(&models.ConflictModel{}).
		Select("mapping_id, COUNT(*) AS count").
		Where("tenant_id = ? AND is_resolved = false", tenantID).
		Group("mapping_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]int64, len(rows))
	for _, r := range rows {
		counts[r.MappingID] = r.Count
	}
	return counts, nil
}

// Save creates or updates a conflict
func (r *GormConflictRepository) Save(ctx context.Context, c *conflict.Conflict) error {
	model := models.ConflictModelFromDomain(c)
	return r.db.WithContext(ctx).Save(model).Error
}

// applyFilter applies optional filter criteria to a query
func (r *GormConflictRepository) applyFilter(query *gorm.DB, filter conflict.Filter) *gorm.DB {
	if filter.ExecutionID != nil {
		query = query.Where("execution_id = ?", *filter.ExecutionID)
	}
	if filter.MappingID != nil {
		query = query.Where("mapping_id = ?", *filter.MappingID)
	}
	if filter.ConnectionID != nil {
		query = query.Where("connection_id = ?", *filter.ConnectionID)
	}
	if filter.Entity != nil {
		query = query.Where("entity = ?", *filter.Entity)
	}
	if filter.IsResolved != nil {
		query = query.Where("is_resolved = ?", *filter.IsResolved)
	}
	if filter.IsIgnored != nil {
		query = query.Where("is_ignored = ?", *filter.IsIgnored)
	}
	return query
}
