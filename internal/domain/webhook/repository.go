package webhook

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter carries the optional criteria for webhook queries
type Filter struct {
	ConnectionID *uuid.UUID
	Direction    *Direction
	Status       *Status
	IsActive     *bool
	Page         int
	PageSize     int
}

// Repository persists webhook channels
type Repository interface {
	// FindByID retrieves a webhook by ID within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Webhook, error)

	// FindByIDAny retrieves a webhook by ID regardless of tenant. Inbound
	// ingestion resolves the channel before any tenant context exists.
	FindByIDAny(ctx context.Context, id uuid.UUID) (*Webhook, error)

	// FindAll retrieves webhooks matching the filter
	FindAll(ctx context.Context, tenantID uuid.UUID, filter Filter) ([]*Webhook, error)

	// Count returns the number of webhooks matching the filter
	Count(ctx context.Context, tenantID uuid.UUID, filter Filter) (int64, error)

	// FindSubscribed returns deliverable outbound webhooks of one tenant
	// subscribed to the event type
	FindSubscribed(ctx context.Context, tenantID uuid.UUID, eventType string) ([]*Webhook, error)

	// Save persists a webhook (create or update with optimistic locking)
	Save(ctx context.Context, w *Webhook) error

	// RecordOutcome folds one finished delivery into the webhook's counters
	// with a single atomic statement
	RecordOutcome(ctx context.Context, id uuid.UUID, success bool, lastError string) error
}

// DeliveryLogRepository persists append-only delivery attempts
type DeliveryLogRepository interface {
	// Append batch-inserts delivery log entries
	Append(ctx context.Context, logs []*DeliveryLog) error

	// FindByWebhook retrieves attempts for one webhook, newest first
	FindByWebhook(ctx context.Context, tenantID, webhookID uuid.UUID, page, pageSize int) ([]*DeliveryLog, error)

	// CountByWebhook returns the number of attempts for one webhook
	CountByWebhook(ctx context.Context, tenantID, webhookID uuid.UUID) (int64, error)

	// FindBefore returns entries older than the cutoff, oldest first; the
	// retention service archives them before deleting
	FindBefore(ctx context.Context, cutoff time.Time, limit int) ([]*DeliveryLog, error)

	// DeleteBefore removes entries older than the cutoff and returns how
	// many were removed; the retention service archives them first
	DeleteBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}
