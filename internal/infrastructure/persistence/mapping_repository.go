package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/synchub/backend/internal/domain/connector"
	"github.com/synchub/backend/internal/domain/mapping"
	"github.com/synchub/backend/internal/infrastructure/persistence/models"
)

// GormDataMappingRepository implements mapping.Repository using GORM
type GormDataMappingRepository struct {
	db *gorm.DB
}

// NewGormDataMappingRepository creates a new GormDataMappingRepository
func NewGormDataMappingRepository(db *gorm.DB) *GormDataMappingRepository {
	return &GormDataMappingRepository{db: db}
}

// FindByID finds a mapping by ID within a tenant
func (r *GormDataMappingRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*mapping.DataMapping, error) {
	var model models.DataMappingModel
	if err := r.db.WithContext(ctx).First(&model, "tenant_id = ? AND id = ?", tenantID, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mapping.ErrMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds mappings for a tenant matching the filter
func (r *GormDataMappingRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter mapping.Filter) ([]*mapping.DataMapping, error) {
	var mappingModels []models.DataMappingModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.DataMappingModel{}).Where("tenant_id = ?", tenantID), filter)

	if filter.PageSize > 0 {
		offset := 0
		if filter.Page > 1 {
			offset = (filter.Page - 1) * filter.PageSize
		}
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if err := query.Order("created_at DESC").Find(&mappingModels).Error; err != nil {
		return nil, err
	}

	mappings := make([]*mapping.DataMapping, len(mappingModels))
	for i := range mappingModels {
		mappings[i] = mappingModels[i].ToDomain()
	}
	return mappings, nil
}

// Count returns the number of mappings matching the filter
func (r *GormDataMappingRepository) Count(ctx context.Context, tenantID uuid.UUID, filter mapping.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.DataMappingModel{}).Where("tenant_id = ?", tenantID), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindByConnectionEntity finds the active mappings for one connection and
// source entity
func (r *GormDataMappingRepository) FindByConnectionEntity(ctx context.Context, tenantID, connectionID uuid.UUID, entity connector.EntityType) ([]*mapping.DataMapping, error) {
	var mappingModels []models.DataMappingModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND connection_id = ? AND source_entity = ? AND is_active = true", tenantID, connectionID, entity).
		Order("created_at ASC").
		Find(&mappingModels).Error; err != nil {
		return nil, err
	}

	mappings := make([]*mapping.DataMapping, len(mappingModels))
	for i := range mappingModels {
		mappings[i] = mappingModels[i].ToDomain()
	}
	return mappings, nil
}

// Save creates or updates a mapping
func (r *GormDataMappingRepository) Save(ctx context.Context, m *mapping.DataMapping) error {
	model := models.DataMappingModelFromDomain(m)
	return r.db.WithContext(ctx).Save(model).Error
}

// Delete removes a mapping
func (r *GormDataMappingRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.DataMappingModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return mapping.ErrMappingNotFound
	}
	return nil
}

// applyFilter applies optional filter criteria to a query
func (r *GormDataMappingRepository) applyFilter(query *gorm.DB, filter mapping.Filter) *gorm.DB {
	if filter.ConnectionID != nil {
		query = query.Where("connection_id = ?", *filter.ConnectionID)
	}
	if filter.Direction != nil {
		query = query.Where("direction = ?", *filter.Direction)
	}
	if filter.SourceEntity != nil {
		query = query.Where("source_entity = ?", *filter.SourceEntity)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}
