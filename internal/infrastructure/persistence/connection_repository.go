package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/synchub/backend/internal/domain/connection"
	"github.com/synchub/backend/internal/infrastructure/persistence/models"
)

// GormConnectionRepository implements connection.Repository using GORM
type GormConnectionRepository struct {
	db *gorm.DB
}

// NewGormConnectionRepository creates a new GormConnectionRepository
func NewGormConnectionRepository(db *gorm.DB) *GormConnectionRepository {
	return &GormConnectionRepository{db: db}
}

// FindByID finds a connection by ID within a tenant
func (r *GormConnectionRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*connection.Connection, error) {
	var model models.ConnectionModel
	if err := r.db.WithContext(ctx).First(&model, "tenant_id = ? AND id = ?", tenantID, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, connection.ErrConnectionNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCode finds a connection by its unique code within a tenant
func (r *GormConnectionRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*connection.Connection, error) {
	var model models.ConnectionModel
	if err := r.db.WithContext(ctx).First(&model, "tenant_id = ? AND code = ?", tenantID, code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, connection.ErrConnectionNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds connections for a tenant matching the filter
func (r *GormConnectionRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter connection.Filter) ([]*connection.Connection, error) {
	var connectionModels []models.ConnectionModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.ConnectionModel{}).Where("tenant_id = ?", tenantID), filter)

	if filter.PageSize > 0 {
		offset := 0
		if filter.Page > 1 {
			offset = (filter.Page - 1) * filter.PageSize
		}
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if err := query.Order("created_at DESC").Find(&connectionModels).Error; err != nil {
		return nil, err
	}

	connections := make([]*connection.Connection, len(connectionModels))
	for i := range connectionModels {
		connections[i] = connectionModels[i].ToDomain()
	}
	return connections, nil
}

// Count returns the number of connections matching the filter
func (r *GormConnectionRepository) Count(ctx context.Context, tenantID uuid.UUID, filter connection.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.ConnectionModel{}).Where("tenant_id = ?", tenantID), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindRateLimitedBefore finds rate-limited connections whose backoff deadline
// has passed, across all tenants
func (r *GormConnectionRepository) FindRateLimitedBefore(ctx context.Context, now time.Time) ([]*connection.Connection, error) {
	var connectionModels []models.ConnectionModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND (rate_limited_until IS NULL OR rate_limited_until <= ?)", connection.StatusRateLimited, now).
		Find(&connectionModels).Error; err != nil {
		return nil, err
	}

	connections := make([]*connection.Connection, len(connectionModels))
	for i := range connectionModels {
		connections[i] = connectionModels[i].ToDomain()
	}
	return connections, nil
}

// Save creates or updates a connection
func (r *GormConnectionRepository) Save(ctx context.Context, conn *connection.Connection) error {
	model := models.ConnectionModelFromDomain(conn)
	err := r.db.WithContext(ctx).Save(model).Error
	if err != nil && isUniqueViolation(err) {
		return connection.ErrConnectionExists
	}
	return err
}

// RecordOutcome folds one execution outcome into the connection's rolling
// counters with a single statement. Concurrent executions against the same
// connection update server-side so no increment is lost. The health status
// and the smoothed success rate and response time are derived in the same
// statement; all CASE expressions see the pre-update row.
func (r *GormConnectionRepository) RecordOutcome(ctx context.Context, id uuid.UUID, success bool, latencyMs int64) error {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE connections SET
			consecutive_errors = CASE WHEN ? THEN 0 ELSE consecutive_errors + 1 END,
			health_status = CASE
				WHEN ? THEN 'healthy'
				WHEN consecutive_errors + 1 < 3 THEN 'degraded'
				ELSE 'unhealthy'
			END,
			success_rate_24h = ROUND((success_rate_24h * 0.95 + CASE WHEN ? THEN 5.0 ELSE 0.0 END)::numeric, 2),
			avg_response_time_ms = CASE
				WHEN ? <= 0 THEN avg_response_time_ms
				WHEN avg_response_time_ms = 0 THEN ?
				ELSE (avg_response_time_ms * 0.8 + ? * 0.2)::bigint
			END,
			last_health_check_at = NOW(),
			updated_at = NOW()
		WHERE id = ?`,
		success, success, success, latencyMs, latencyMs, latencyMs, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return connection.ErrConnectionNotFound
	}
	return nil
}

// applyFilter applies optional filter criteria to a query
func (r *GormConnectionRepository) applyFilter(query *gorm.DB, filter connection.Filter) *gorm.DB {
	if filter.ConnectorType != nil {
		query = query.Where("connector_type = ?", *filter.ConnectorType)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.HealthStatus != nil {
		query = query.Where("health_status = ?", *filter.HealthStatus)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", pattern, pattern)
	}
	return query
}

// isUniqueViolation reports whether the error is a Postgres unique constraint
// violation
func isUniqueViolation(err error) bool {
	return err != nil && (errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "duplicate key value"))
}
