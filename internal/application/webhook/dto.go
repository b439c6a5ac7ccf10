package webhook

import (
	"time"

	"github.com/google/uuid"

	"github.com/synchub/backend/internal/domain/webhook"
)

// CreateOutboundWebhookRequest is the request to create an outbound channel.
// Secret material is stored in the secret store; the webhook row keeps only
// an opaque reference.
type CreateOutboundWebhookRequest struct {
	ConnectionID       uuid.UUID `json:"connection_id" binding:"required"`
	Name               string    `json:"name" binding:"required,max=200"`
	TargetURL          string    `json:"target_url" binding:"required,url"`
	Events             []string  `json:"events" binding:"required,min=1"`
	AuthType           string    `json:"auth_type" binding:"omitempty,oneof=none hmac_sha256 bearer basic"`
	Secret             string    `json:"secret" binding:"omitempty,max=500"`
	Token              string    `json:"token" binding:"omitempty,max=500"`
	Username           string    `json:"username" binding:"omitempty,max=200"`
	Password           string    `json:"password" binding:"omitempty,max=200"`
	SignatureHeader    string    `json:"signature_header" binding:"omitempty,max=100"`
	SignatureAlgorithm string    `json:"signature_algorithm" binding:"omitempty,oneof=hmac_sha256 hmac_sha1"`
	PayloadTemplate    string    `json:"payload_template" binding:"omitempty,max=4000"`
	MaxRetries         *int      `json:"max_retries" binding:"omitempty,min=0,max=10"`
	RetryDelaySeconds  *int      `json:"retry_delay_seconds" binding:"omitempty,min=0"`
	TimeoutSeconds     *int      `json:"timeout_seconds" binding:"omitempty,min=1,max=120"`
}

// CreateInboundWebhookRequest is the request to create an inbound channel
type CreateInboundWebhookRequest struct {
	ConnectionID       uuid.UUID `json:"connection_id" binding:"required"`
	Name               string    `json:"name" binding:"required,max=200"`
	Events             []string  `json:"events" binding:"required,min=1"`
	Secret             string    `json:"secret" binding:"required,max=500"`
	SignatureAlgorithm string    `json:"signature_algorithm" binding:"omitempty,oneof=hmac_sha256 hmac_sha1"`
}

// UpdateWebhookRequest is the request to update a webhook channel
type UpdateWebhookRequest struct {
	Name              *string  `json:"name" binding:"omitempty,max=200"`
	TargetURL         *string  `json:"target_url" binding:"omitempty,url"`
	Events            []string `json:"events" binding:"omitempty,min=1"`
	PayloadTemplate   *string  `json:"payload_template" binding:"omitempty,max=4000"`
	MaxRetries        *int     `json:"max_retries" binding:"omitempty,min=0,max=10"`
	RetryDelaySeconds *int     `json:"retry_delay_seconds" binding:"omitempty,min=0"`
	TimeoutSeconds    *int     `json:"timeout_seconds" binding:"omitempty,min=1,max=120"`
}

// WebhookResponse is the webhook representation. Secret material never
// appears here.
type WebhookResponse struct {
	ID                 uuid.UUID  `json:"id"`
	TenantID           uuid.UUID  `json:"tenant_id"`
	ConnectionID       uuid.UUID  `json:"connection_id"`
	Name               string     `json:"name"`
	Direction          string     `json:"direction"`
	Events             []string   `json:"events"`
	TargetURL          string     `json:"target_url,omitempty"`
	AuthType           string     `json:"auth_type"`
	SignatureHeader    string     `json:"signature_header"`
	SignatureAlgorithm string     `json:"signature_algorithm"`
	PayloadTemplate    string     `json:"payload_template,omitempty"`
	MaxRetries         int        `json:"max_retries"`
	RetryDelaySeconds  int        `json:"retry_delay_seconds"`
	TimeoutSeconds     int        `json:"timeout_seconds"`
	Status             string     `json:"status"`
	DeliveryCount      int64      `json:"delivery_count"`
	FailureCount       int64      `json:"failure_count"`
	LastDeliveryAt     *time.Time `json:"last_delivery_at,omitempty"`
	LastError          string     `json:"last_error,omitempty"`
	IsActive           bool       `json:"is_active"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// WebhookListFilter carries the query parameters for webhook listing
type WebhookListFilter struct {
	ConnectionID *uuid.UUID `form:"connection_id"`
	Direction    string     `form:"direction" binding:"omitempty,oneof=inbound outbound"`
	Status       string     `form:"status" binding:"omitempty,oneof=active paused error"`
	IsActive     *bool      `form:"is_active"`
	Page         int        `form:"page" binding:"omitempty,min=1"`
	PageSize     int        `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// DeliveryLogResponse is one delivery attempt of an outbound webhook
type DeliveryLogResponse struct {
	ID             uuid.UUID `json:"id"`
	WebhookID      uuid.UUID `json:"webhook_id"`
	EventType      string    `json:"event_type"`
	EventID        string    `json:"event_id"`
	Attempt        int       `json:"attempt"`
	ResponseStatus int       `json:"response_status"`
	ResponseBody   string    `json:"response_body,omitempty"`
	LatencyMs      int64     `json:"latency_ms"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// IngestResult reports what an accepted inbound call triggered
type IngestResult struct {
	WebhookID uuid.UUID `json:"webhook_id"`
	EventID   string    `json:"event_id,omitempty"`
	// Triggered is false when the event type is not subscribed or no active
	// mapping matched the entity
	Triggered bool `json:"triggered"`
	// ExecutionIDs lists the ad-hoc sync executions the call enqueued
	ExecutionIDs []uuid.UUID `json:"execution_ids,omitempty"`
}

// ToWebhookResponse converts a webhook to its response representation
func ToWebhookResponse(w *webhook.Webhook) *WebhookResponse {
	return &WebhookResponse{
		ID:                 w.ID,
		TenantID:           w.TenantID,
		ConnectionID:       w.ConnectionID,
		Name:               w.Name,
		Direction:          string(w.Direction),
		Events:             w.Events,
		TargetURL:          w.TargetURL,
		AuthType:           string(w.AuthType),
		SignatureHeader:    w.SignatureHeader,
		SignatureAlgorithm: string(w.SignatureAlgorithm),
		PayloadTemplate:    w.PayloadTemplate,
		MaxRetries:         w.MaxRetries,
		RetryDelaySeconds:  w.RetryDelaySeconds,
		TimeoutSeconds:     w.TimeoutSeconds,
		Status:             string(w.Status),
		DeliveryCount:      w.DeliveryCount,
		FailureCount:       w.FailureCount,
		LastDeliveryAt:     w.LastDeliveryAt,
		LastError:          w.LastError,
		IsActive:           w.IsActive,
		CreatedAt:          w.CreatedAt,
		UpdatedAt:          w.UpdatedAt,
	}
}

// ToWebhookResponses converts a list of webhooks
func ToWebhookResponses(webhooks []*webhook.Webhook) []WebhookResponse {
	responses := make([]WebhookResponse, len(webhooks))
	for i, w := range webhooks {
		responses[i] = *ToWebhookResponse(w)
	}
	return responses
}

// ToDeliveryLogResponses converts delivery attempts. Request bodies are
// omitted; they may embed payloads the caller should fetch individually.
func ToDeliveryLogResponses(logs []*webhook.DeliveryLog) []DeliveryLogResponse {
	responses := make([]DeliveryLogResponse, len(logs))
	for i, l := range logs {
		responses[i] = DeliveryLogResponse{
			ID:             l.ID,
			WebhookID:      l.WebhookID,
			EventType:      l.EventType,
			EventID:        l.EventID,
			Attempt:        l.Attempt,
			ResponseStatus: l.ResponseStatus,
			ResponseBody:   l.ResponseBody,
			LatencyMs:      l.LatencyMs,
			Success:        l.Success,
			Error:          l.Error,
			CreatedAt:      l.CreatedAt,
		}
	}
	return responses
}
