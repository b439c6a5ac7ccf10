package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/synchub/backend/internal/domain/webhook"
	"github.com/synchub/backend/internal/infrastructure/persistence/models"
)

// GormWebhookRepository implements webhook.Repository using GORM
type GormWebhookRepository struct {
	db *gorm.DB
}

// NewGormWebhookRepository creates a new GormWebhookRepository
func NewGormWebhookRepository(db *gorm.DB) *GormWebhookRepository {
	return &GormWebhookRepository{db: db}
}

// FindByID finds a webhook by ID within a tenant
func (r *GormWebhookRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*webhook.Webhook, error) {
	var model models.WebhookModel
	if err := r.db.WithContext(ctx).First(&model, "tenant_id = ? AND id = ?", tenantID, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, webhook.ErrWebhookNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDAny finds a webhook by ID regardless of tenant. Inbound ingestion
// resolves the channel before any tenant context exists.
func (r *GormWebhookRepository) FindByIDAny(ctx context.Context, id uuid.UUID) (*webhook.Webhook, error) {
	var model models.WebhookModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, webhook.ErrWebhookNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds webhooks for a tenant matching the filter
func (r *GormWebhookRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter webhook.Filter) ([]*webhook.Webhook, error) {
	var webhookModels []models.WebhookModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.WebhookModel{}).Where("tenant_id = ?", tenantID), filter)

	if filter.PageSize > 0 {
		offset := 0
		if filter.Page > 1 {
			offset = (filter.Page - 1) * filter.PageSize
		}
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if err := query.Order("created_at DESC").Find(&webhookModels).Error; err != nil {
		return nil, err
	}

	webhooks := make([]*webhook.Webhook, len(webhookModels))
	for i := range webhookModels {
		webhooks[i] = webhookModels[i].ToDomain()
	}
	return webhooks, nil
}

// Count returns the number of webhooks matching the filter
func (r *GormWebhookRepository) Count(ctx context.Context, tenantID uuid.UUID, filter webhook.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.WebhookModel{}).Where("tenant_id = ?", tenantID), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindSubscribed returns deliverable outbound webhooks of one tenant
// subscribed to the event type. Wildcard subscriptions match every event.
func (r *GormWebhookRepository) FindSubscribed(ctx context.Context, tenantID uuid.UUID, eventType string) ([]*webhook.Webhook, error) {
	var webhookModels []models.WebhookModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND direction = ? AND is_active = true AND status <> ?",
			tenantID, webhook.DirectionOutbound, webhook.StatusPaused).
		Where("? = ANY(events) OR '*' = ANY(events)", eventType).
		Find(&webhookModels).Error; err != nil {
		return nil, err
	}

	webhooks := make([]*webhook.Webhook, len(webhookModels))
	for i := range webhookModels {
		webhooks[i] = webhookModels[i].ToDomain()
	}
	return webhooks, nil
}

// Save creates or updates a webhook
func (r *GormWebhookRepository) Save(ctx context.Context, w *webhook.Webhook) error {
	model := models.WebhookModelFromDomain(w)
	return r.db.WithContext(ctx).Save(model).Error
}

// RecordOutcome folds one finished delivery into the webhook's counters with
// a single statement. A success recovers an errored channel to active.
func (r *GormWebhookRepository) RecordOutcome(ctx context.Context, id uuid.UUID, success bool, lastError string) error {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE webhooks SET
			delivery_count = delivery_count + CASE WHEN ? THEN 1 ELSE 0 END,
			failure_count = failure_count + CASE WHEN ? THEN 0 ELSE 1 END,
			status = CASE WHEN ? THEN 'active' ELSE 'error' END,
			last_error = ?,
			last_delivery_at = NOW(),
			updated_at = NOW()
		WHERE id = ? AND status <> 'paused'`,
		success, success, success, lastError, id)
	if result.Error != nil {
		return result.Error
	}
	return nil
}

// applyFilter applies optional filter criteria to a query
func (r *GormWebhookRepository) applyFilter(query *gorm.DB, filter webhook.Filter) *gorm.DB {
	if filter.ConnectionID != nil {
		query = query.Where("connection_id = ?", *filter.ConnectionID)
	}
	if filter.Direction != nil {
		query = query.Where("direction = ?", *filter.Direction)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}

// GormWebhookDeliveryLogRepository implements webhook.DeliveryLogRepository
// using GORM
type GormWebhookDeliveryLogRepository struct {
	db *gorm.DB
}

// NewGormWebhookDeliveryLogRepository creates a new GormWebhookDeliveryLogRepository
func NewGormWebhookDeliveryLogRepository(db *gorm.DB) *GormWebhookDeliveryLogRepository {
	return &GormWebhookDeliveryLogRepository{db: db}
}

// Append batch-inserts delivery log entries
func (r *GormWebhookDeliveryLogRepository) Append(ctx context.Context, logs []*webhook.DeliveryLog) error {
	if len(logs) == 0 {
		return nil
	}
	logModels := make([]models.WebhookDeliveryLogModel, len(logs))
	for i, l := range logs {
		logModels[i].FromDomain(l)
	}
	return r.db.WithContext(ctx).CreateInBatches(logModels, logInsertBatchSize).Error
}

// FindByWebhook retrieves attempts for one webhook, newest first
func (r *GormWebhookDeliveryLogRepository) FindByWebhook(ctx context.Context, tenantID, webhookID uuid.UUID, page, pageSize int) ([]*webhook.DeliveryLog, error) {
	var logModels []models.WebhookDeliveryLogModel
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND webhook_id = ?", tenantID, webhookID)
	if pageSize > 0 {
		offset := 0
		if page > 1 {
			offset = (page - 1) * pageSize
		}
		query = query.Offset(offset).Limit(pageSize)
	}

	if err := query.Order("created_at DESC").Find(&logModels).Error; err != nil {
		return nil, err
	}

	logs := make([]*webhook.DeliveryLog, len(logModels))
	for i := range logModels {
		logs[i] = logModels[i].ToDomain()
	}
	return logs, nil
}

// CountByWebhook returns the number of attempts for one webhook
func (r *GormWebhookDeliveryLogRepository) CountByWebhook(ctx context.Context, tenantID, webhookID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.WebhookDeliveryLogModel{}).
		Where("tenant_id = ? AND webhook_id = ?", tenantID, webhookID).
		Count(&count).Error
	return count, err
}

// FindBefore returns entries older than the cutoff, oldest first, for
// archival
func (r *GormWebhookDeliveryLogRepository) FindBefore(ctx context.Context, cutoff time.Time, limit int) ([]*webhook.DeliveryLog, error) {
	var logModels []models.WebhookDeliveryLogModel
	query := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&logModels).Error; err != nil {
		return nil, err
	}

	logs := make([]*webhook.DeliveryLog, len(logModels))
	for i := range logModels {
		logs[i] = logModels[i].ToDomain()
	}
	return logs, nil
}

// DeleteBefore removes entries older than the cutoff
func (r *GormWebhookDeliveryLogRepository) DeleteBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	var ids []uuid.UUID
	query := r.db.WithContext(ctx).Model(&models.WebhookDeliveryLogModel{}).
		Select("id").
		Where("created_at < ?", cutoff).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(&ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).Delete(&models.WebhookDeliveryLogModel{}, "id IN ?", ids)
	return result.RowsAffected, result.Error
}
