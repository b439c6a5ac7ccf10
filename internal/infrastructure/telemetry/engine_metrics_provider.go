package telemetry

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormEngineMetricsProvider implements EngineMetricsProvider with direct
// database queries. Telemetry reads raw counts; the domain repositories are
// not involved.
type GormEngineMetricsProvider struct {
	db *gorm.DB
}

// NewGormEngineMetricsProvider creates a provider backed by the given database
func NewGormEngineMetricsProvider(db *gorm.DB) *GormEngineMetricsProvider {
	return &GormEngineMetricsProvider{db: db}
}

// GetUnresolvedConflictCount returns the open conflict backlog for a tenant
func (p *GormEngineMetricsProvider) GetUnresolvedConflictCount(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("sync_conflicts").
		Where("tenant_id = ? AND is_resolved = false AND is_ignored = false", tenantID).
		Count(&count).Error
	return count, err
}

// GetRunningExecutionCount returns the number of queued or running executions for a tenant
func (p *GormEngineMetricsProvider) GetRunningExecutionCount(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("sync_executions").
		Where("tenant_id = ? AND status IN ?", tenantID, []string{"queued", "running", "retrying"}).
		Count(&count).Error
	return count, err
}

// GormTenantProvider implements TenantProvider by listing tenants with at
// least one active connection
type GormTenantProvider struct {
	db *gorm.DB
}

// NewGormTenantProvider creates a tenant provider backed by the given database
func NewGormTenantProvider(db *gorm.DB) *GormTenantProvider {
	return &GormTenantProvider{db: db}
}

// GetActiveTenantIDs returns the distinct tenants owning active connections
func (p *GormTenantProvider) GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := p.db.WithContext(ctx).
		Table("connections").
		Where("is_active = true").
		Distinct("tenant_id").
		Pluck("tenant_id", &ids).Error
	return ids, err
}
