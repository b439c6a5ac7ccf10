package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synchub/backend/internal/domain/webhook"
)

// MemoryWebhookRepo is an in-memory webhook.Repository
type MemoryWebhookRepo struct {
	mu       sync.Mutex
	webhooks map[uuid.UUID]*webhook.Webhook
}

// NewMemoryWebhookRepo creates an empty webhook repository
func NewMemoryWebhookRepo() *MemoryWebhookRepo {
	return &MemoryWebhookRepo{webhooks: make(map[uuid.UUID]*webhook.Webhook)}
}

func (r *MemoryWebhookRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*webhook.Webhook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.webhooks[id]
	if !ok || w.TenantID != tenantID {
		return nil, webhook.ErrWebhookNotFound
	}
	return w, nil
}

func (r *MemoryWebhookRepo) FindByIDAny(_ context.Context, id uuid.UUID) (*webhook.Webhook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.webhooks[id]
	if !ok {
		return nil, webhook.ErrWebhookNotFound
	}
	return w, nil
}

func (r *MemoryWebhookRepo) FindAll(_ context.Context, tenantID uuid.UUID, filter webhook.Filter) ([]*webhook.Webhook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*webhook.Webhook
	for _, w := range r.webhooks {
		if w.TenantID != tenantID {
			continue
		}
		if filter.ConnectionID != nil && w.ConnectionID != *filter.ConnectionID {
			continue
		}
		if filter.Direction != nil && w.Direction != *filter.Direction {
			continue
		}
		if filter.Status != nil && w.Status != *filter.Status {
			continue
		}
		if filter.IsActive != nil && w.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

func (r *MemoryWebhookRepo) Count(ctx context.Context, tenantID uuid.UUID, filter webhook.Filter) (int64, error) {
	all, _ := r.FindAll(ctx, tenantID, filter)
	return int64(len(all)), nil
}

func (r *MemoryWebhookRepo) FindSubscribed(_ context.Context, tenantID uuid.UUID, eventType string) ([]*webhook.Webhook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*webhook.Webhook
	for _, w := range r.webhooks {
		if w.TenantID == tenantID && w.Deliverable() && w.SubscribesTo(eventType) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (r *MemoryWebhookRepo) Save(_ context.Context, w *webhook.Webhook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.webhooks[w.ID] = w
	return nil
}

func (r *MemoryWebhookRepo) RecordOutcome(_ context.Context, id uuid.UUID, success bool, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.webhooks[id]
	if !ok {
		return webhook.ErrWebhookNotFound
	}
	now := time.Now()
	if success {
		w.RecordDeliverySuccess(now)
	} else {
		w.RecordDeliveryFailure(now, lastError)
	}
	return nil
}

var _ webhook.Repository = (*MemoryWebhookRepo)(nil)

// MemoryDeliveryLogRepo is an in-memory webhook.DeliveryLogRepository
type MemoryDeliveryLogRepo struct {
	mu   sync.Mutex
	logs []*webhook.DeliveryLog
}

// NewMemoryDeliveryLogRepo creates an empty delivery log repository
func NewMemoryDeliveryLogRepo() *MemoryDeliveryLogRepo {
	return &MemoryDeliveryLogRepo{}
}

func (r *MemoryDeliveryLogRepo) Append(_ context.Context, logs []*webhook.DeliveryLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, logs...)
	return nil
}

func (r *MemoryDeliveryLogRepo) FindByWebhook(_ context.Context, tenantID, webhookID uuid.UUID, page, pageSize int) ([]*webhook.DeliveryLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*webhook.DeliveryLog
	for _, l := range r.logs {
		if l.TenantID == tenantID && l.WebhookID == webhookID {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryDeliveryLogRepo) CountByWebhook(_ context.Context, tenantID, webhookID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, l := range r.logs {
		if l.TenantID == tenantID && l.WebhookID == webhookID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryDeliveryLogRepo) FindBefore(_ context.Context, cutoff time.Time, limit int) ([]*webhook.DeliveryLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*webhook.DeliveryLog
	for _, l := range r.logs {
		if l.CreatedAt.Before(cutoff) {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryDeliveryLogRepo) DeleteBefore(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	kept := r.logs[:0]
	for _, l := range r.logs {
		if l.CreatedAt.Before(cutoff) && (limit <= 0 || removed < int64(limit)) {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	r.logs = kept
	return removed, nil
}

var _ webhook.DeliveryLogRepository = (*MemoryDeliveryLogRepo)(nil)
