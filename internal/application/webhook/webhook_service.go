// Package webhook provides the application service for webhook channels:
// outbound delivery subscriptions, inbound ingestion with signature
// validation and deduplication, and the ad-hoc syncs inbound events trigger.
package webhook

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/synchub/backend/internal/domain/connection"
	"github.com/synchub/backend/internal/domain/connector"
	"github.com/synchub/backend/internal/domain/mapping"
	"github.com/synchub/backend/internal/domain/shared"
	syncdomain "github.com/synchub/backend/internal/domain/sync"
	"github.com/synchub/backend/internal/domain/webhook"
	"github.com/synchub/backend/internal/infrastructure/delivery"
	"github.com/synchub/backend/internal/infrastructure/scheduler"
)

// RunLauncher creates queued executions with their locks held; the run
// executor implements it
type RunLauncher interface {
	Launch(ctx context.Context, cfg *syncdomain.SyncConfiguration, m *mapping.DataMapping, direction connector.Direction, source syncdomain.TriggerSource) (*scheduler.Job, error)
	Abort(ctx context.Context, job *scheduler.Job, reason string)
}

// RunQueue hands launched jobs to the worker pool
type RunQueue interface {
	Submit(job *scheduler.Job) error
}

// inboundEvent is the expected shape of an inbound webhook payload
type inboundEvent struct {
	Event      string `json:"event"`
	Entity     string `json:"entity"`
	ExternalID string `json:"external_id"`
	EventID    string `json:"event_id"`
}

// WebhookService manages webhook channels and inbound ingestion
type WebhookService struct {
	webhooks    webhook.Repository
	logs        webhook.DeliveryLogRepository
	secrets     connection.SecretStore
	connections connection.Reader
	mappings    mapping.Repository
	launcher    RunLauncher
	queue       RunQueue
	dedup       shared.IdempotencyStore
	dedupTTL    time.Duration
	events      shared.EventPublisher
	logger      *zap.Logger
}

// NewWebhookService creates a new webhook service
func NewWebhookService(
	webhooks webhook.Repository,
	logs webhook.DeliveryLogRepository,
	secrets connection.SecretStore,
	connections connection.Reader,
	mappings mapping.Repository,
	launcher RunLauncher,
	queue RunQueue,
	dedup shared.IdempotencyStore,
	dedupTTL time.Duration,
	events shared.EventPublisher,
	logger *zap.Logger,
) *WebhookService {
	return &WebhookService{
		webhooks:    webhooks,
		logs:        logs,
		secrets:     secrets,
		connections: connections,
		mappings:    mappings,
		launcher:    launcher,
		queue:       queue,
		dedup:       dedup,
		dedupTTL:    dedupTTL,
		events:      events,
		logger:      logger,
	}
}

// CreateOutbound creates an outbound channel. Secret material goes to the
// secret store; only the opaque reference is kept on the webhook.
func (s *WebhookService) CreateOutbound(ctx context.Context, tenantID uuid.UUID, req CreateOutboundWebhookRequest) (*WebhookResponse, error) {
	if _, err := s.connections.FindByID(ctx, tenantID, req.ConnectionID); err != nil {
		return nil, err
	}

	authType := webhook.AuthType(req.AuthType)
	if req.AuthType == "" {
		authType = webhook.AuthNone
	}
	material, err := outboundSecretMaterial(authType, req)
	if err != nil {
		return nil, err
	}

	secretRef := uuid.Nil
	if len(material) > 0 {
		secretRef, err = s.secrets.Put(ctx, tenantID, material)
		if err != nil {
			return nil, err
		}
	}

	w, err := webhook.NewOutboundWebhook(tenantID, req.ConnectionID, req.Name, req.TargetURL, req.Events, authType, secretRef)
	if err != nil {
		return nil, err
	}
	if req.SignatureHeader != "" {
		w.SignatureHeader = req.SignatureHeader
	}
	if req.SignatureAlgorithm != "" {
		w.SignatureAlgorithm = webhook.SignatureAlgorithm(req.SignatureAlgorithm)
	}
	w.PayloadTemplate = req.PayloadTemplate
	if req.MaxRetries != nil {
		w.MaxRetries = *req.MaxRetries
	}
	if req.RetryDelaySeconds != nil {
		w.RetryDelaySeconds = *req.RetryDelaySeconds
	}
	if req.TimeoutSeconds != nil {
		w.TimeoutSeconds = *req.TimeoutSeconds
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	if err := s.webhooks.Save(ctx, w); err != nil {
		return nil, err
	}
	return ToWebhookResponse(w), nil
}

// outboundSecretMaterial assembles the secret map for an outbound channel
// and enforces the material its auth type needs
func outboundSecretMaterial(authType webhook.AuthType, req CreateOutboundWebhookRequest) (map[string]string, error) {
	material := make(map[string]string)
	if req.Secret != "" {
		material[webhook.SecretKeySigning] = req.Secret
	}
	if req.Token != "" {
		material[webhook.SecretKeyToken] = req.Token
	}
	if req.Username != "" {
		material[webhook.SecretKeyUsername] = req.Username
	}
	if req.Password != "" {
		material[webhook.SecretKeyPassword] = req.Password
	}

	switch authType {
	case webhook.AuthHMAC:
		if req.Secret == "" {
			return nil, shared.NewDomainError("WEBHOOK_SECRET_REQUIRED", "HMAC authentication requires a signing secret")
		}
	case webhook.AuthBearer:
		if req.Token == "" {
			return nil, shared.NewDomainError("WEBHOOK_TOKEN_REQUIRED", "Bearer authentication requires a token")
		}
	case webhook.AuthBasic:
		if req.Username == "" || req.Password == "" {
			return nil, shared.NewDomainError("WEBHOOK_BASIC_CREDENTIALS_REQUIRED", "Basic authentication requires a username and password")
		}
	}
	return material, nil
}

// CreateInbound creates an inbound channel; the secret validates incoming
// signatures
func (s *WebhookService) CreateInbound(ctx context.Context, tenantID uuid.UUID, req CreateInboundWebhookRequest) (*WebhookResponse, error) {
	if _, err := s.connections.FindByID(ctx, tenantID, req.ConnectionID); err != nil {
		return nil, err
	}

	secretRef, err := s.secrets.Put(ctx, tenantID, map[string]string{
		webhook.SecretKeySigning: req.Secret,
	})
	if err != nil {
		return nil, err
	}

	algorithm := webhook.SignatureAlgorithm(req.SignatureAlgorithm)
	if req.SignatureAlgorithm == "" {
		algorithm = webhook.SignatureHMACSHA256
	}
	w, err := webhook.NewInboundWebhook(tenantID, req.ConnectionID, req.Name, req.Events, secretRef, algorithm)
	if err != nil {
		return nil, err
	}

	if err := s.webhooks.Save(ctx, w); err != nil {
		return nil, err
	}
	return ToWebhookResponse(w), nil
}

// GetByID retrieves a webhook by ID
func (s *WebhookService) GetByID(ctx context.Context, tenantID, webhookID uuid.UUID) (*WebhookResponse, error) {
	w, err := s.webhooks.FindByID(ctx, tenantID, webhookID)
	if err != nil {
		return nil, err
	}
	return ToWebhookResponse(w), nil
}

// List retrieves webhooks matching the filter
func (s *WebhookService) List(ctx context.Context, tenantID uuid.UUID, filter WebhookListFilter) ([]WebhookResponse, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}

	domainFilter := webhook.Filter{
		ConnectionID: filter.ConnectionID,
		IsActive:     filter.IsActive,
		Page:         filter.Page,
		PageSize:     filter.PageSize,
	}
	if filter.Direction != "" {
		direction := webhook.Direction(filter.Direction)
		domainFilter.Direction = &direction
	}
	if filter.Status != "" {
		status := webhook.Status(filter.Status)
		domainFilter.Status = &status
	}

	webhooks, err := s.webhooks.FindAll(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.webhooks.Count(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToWebhookResponses(webhooks), total, nil
}

// Update updates a webhook channel
func (s *WebhookService) Update(ctx context.Context, tenantID, webhookID uuid.UUID, req UpdateWebhookRequest) (*WebhookResponse, error) {
	w, err := s.webhooks.FindByID(ctx, tenantID, webhookID)
	if err != nil {
		return nil, err
	}
	if !w.IsActive {
		return nil, webhook.ErrWebhookInactive
	}

	if req.Name != nil {
		w.Name = *req.Name
	}
	if req.TargetURL != nil {
		w.TargetURL = *req.TargetURL
	}
	if req.Events != nil {
		w.Events = req.Events
	}
	if req.PayloadTemplate != nil {
		w.PayloadTemplate = *req.PayloadTemplate
	}
	if req.MaxRetries != nil {
		w.MaxRetries = *req.MaxRetries
	}
	if req.RetryDelaySeconds != nil {
		w.RetryDelaySeconds = *req.RetryDelaySeconds
	}
	if req.TimeoutSeconds != nil {
		w.TimeoutSeconds = *req.TimeoutSeconds
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	w.IncrementVersion()
	w.Touch()

	if err := s.webhooks.Save(ctx, w); err != nil {
		return nil, err
	}
	return ToWebhookResponse(w), nil
}

// Pause operator-disables the channel
func (s *WebhookService) Pause(ctx context.Context, tenantID, webhookID uuid.UUID) (*WebhookResponse, error) {
	return s.transition(ctx, tenantID, webhookID, (*webhook.Webhook).Pause)
}

// Resume re-enables a paused or errored channel
func (s *WebhookService) Resume(ctx context.Context, tenantID, webhookID uuid.UUID) (*WebhookResponse, error) {
	return s.transition(ctx, tenantID, webhookID, (*webhook.Webhook).Resume)
}

func (s *WebhookService) transition(ctx context.Context, tenantID, webhookID uuid.UUID, mutate func(*webhook.Webhook)) (*WebhookResponse, error) {
	w, err := s.webhooks.FindByID(ctx, tenantID, webhookID)
	if err != nil {
		return nil, err
	}
	if !w.IsActive {
		return nil, webhook.ErrWebhookInactive
	}
	mutate(w)
	if err := s.webhooks.Save(ctx, w); err != nil {
		return nil, err
	}
	return ToWebhookResponse(w), nil
}

// Deactivate soft-deletes the channel and removes its secret material.
// Delivery logs keep referencing the webhook for audit.
func (s *WebhookService) Deactivate(ctx context.Context, tenantID, webhookID uuid.UUID) error {
	w, err := s.webhooks.FindByID(ctx, tenantID, webhookID)
	if err != nil {
		return err
	}
	w.Deactivate()
	if err := s.webhooks.Save(ctx, w); err != nil {
		return err
	}
	if w.SecretRef != uuid.Nil {
		if err := s.secrets.Delete(ctx, tenantID, w.SecretRef); err != nil {
			s.logger.Warn("Failed to delete webhook secret",
				zap.String("webhook_id", w.ID.String()), zap.Error(err))
		}
	}
	return nil
}

// Deliveries retrieves the delivery attempts of one webhook, newest first
func (s *WebhookService) Deliveries(ctx context.Context, tenantID, webhookID uuid.UUID, page, pageSize int) ([]DeliveryLogResponse, int64, error) {
	if _, err := s.webhooks.FindByID(ctx, tenantID, webhookID); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	logs, err := s.logs.FindByWebhook(ctx, tenantID, webhookID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.logs.CountByWebhook(ctx, tenantID, webhookID)
	if err != nil {
		return nil, 0, err
	}
	return ToDeliveryLogResponses(logs), total, nil
}

// Ingest processes one inbound webhook call: signature validation,
// deduplication, and the ad-hoc inbound syncs for active mappings of the
// event's entity. The webhook ID arrives in the URL; no tenant context
// exists before the channel is resolved.
func (s *WebhookService) Ingest(ctx context.Context, webhookID uuid.UUID, signature string, body []byte) (*IngestResult, error) {
	w, err := s.webhooks.FindByIDAny(ctx, webhookID)
	if err != nil {
		return nil, err
	}
	if !w.IsActive {
		return nil, webhook.ErrWebhookInactive
	}
	if w.Direction != webhook.DirectionInbound {
		return nil, webhook.ErrNotInbound
	}
	if w.Status == webhook.StatusPaused {
		return nil, webhook.ErrWebhookInactive
	}

	if err := s.verifySignature(ctx, w, signature, body); err != nil {
		return nil, err
	}

	var event inboundEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("%w: malformed webhook payload: %v", shared.ErrInvalidInput, err)
	}
	if event.Event == "" {
		return nil, fmt.Errorf("%w: webhook payload has no event field", shared.ErrInvalidInput)
	}

	if event.EventID != "" && s.dedup != nil {
		fresh, err := s.dedup.MarkProcessed(ctx, w.ID.String()+":"+event.EventID, s.dedupTTL)
		if err != nil {
			s.logger.Warn("Webhook dedup store unavailable, processing without dedup",
				zap.String("webhook_id", w.ID.String()), zap.Error(err))
		} else if !fresh {
			return nil, webhook.ErrDuplicateEvent
		}
	}

	result := &IngestResult{WebhookID: w.ID, EventID: event.EventID}
	if !w.SubscribesTo(event.Event) {
		s.publishReceived(ctx, w, event, "")
		return result, nil
	}

	result.ExecutionIDs = s.triggerSyncs(ctx, w, event)
	result.Triggered = len(result.ExecutionIDs) > 0

	first := ""
	if len(result.ExecutionIDs) > 0 {
		first = result.ExecutionIDs[0].String()
	}
	s.publishReceived(ctx, w, event, first)
	return result, nil
}

// verifySignature compares the provided signature against the expected HMAC
// of the raw body in constant time
func (s *WebhookService) verifySignature(ctx context.Context, w *webhook.Webhook, signature string, body []byte) error {
	material, err := s.secrets.Get(ctx, w.TenantID, w.SecretRef)
	if err != nil {
		return fmt.Errorf("resolve webhook secret: %w", err)
	}
	expected := delivery.Sign(w.SignatureAlgorithm, material[webhook.SecretKeySigning], body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return webhook.ErrSignatureMismatch
	}
	return nil
}

// triggerSyncs enqueues an ad-hoc inbound run for every active mapping of
// the connection that syncs the event's entity. A mapping whose lock is
// held by a live run is skipped; the running sync will pick the change up.
func (s *WebhookService) triggerSyncs(ctx context.Context, w *webhook.Webhook, event inboundEvent) []uuid.UUID {
	if event.Entity == "" {
		return nil
	}
	mappings, err := s.mappings.FindByConnectionEntity(ctx, w.TenantID, w.ConnectionID, connector.EntityType(event.Entity))
	if err != nil {
		s.logger.Warn("Failed to resolve mappings for inbound event",
			zap.String("webhook_id", w.ID.String()),
			zap.String("entity", event.Entity),
			zap.Error(err))
		return nil
	}

	var executionIDs []uuid.UUID
	for _, m := range mappings {
		if m.Direction == connector.DirectionOutbound {
			continue
		}
		job, err := s.launcher.Launch(ctx, nil, m, connector.DirectionInbound, syncdomain.TriggerWebhook)
		if err != nil {
			if !errors.Is(err, syncdomain.ErrExecutionOverlap) {
				s.logger.Warn("Failed to launch webhook-triggered sync",
					zap.String("mapping_id", m.ID.String()), zap.Error(err))
			}
			continue
		}
		if err := s.queue.Submit(job); err != nil {
			s.launcher.Abort(ctx, job, "scheduler rejected the job: "+err.Error())
			s.logger.Warn("Failed to queue webhook-triggered sync",
				zap.String("mapping_id", m.ID.String()), zap.Error(err))
			continue
		}
		executionIDs = append(executionIDs, job.Execution.ID)
	}
	return executionIDs
}

func (s *WebhookService) publishReceived(ctx context.Context, w *webhook.Webhook, event inboundEvent, executionID string) {
	if s.events == nil {
		return
	}
	received := webhook.NewReceivedEvent(w, event.Event, event.Entity, event.ExternalID, executionID)
	if err := s.events.Publish(ctx, received); err != nil {
		s.logger.Warn("Failed to publish webhook received event",
			zap.String("webhook_id", w.ID.String()), zap.Error(err))
	}
}
