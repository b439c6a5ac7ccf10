package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/synchub/backend/internal/domain/webhook"
)

// WebhookModel is the persistence model for the Webhook aggregate.
type WebhookModel struct {
	TenantAggregateModel
	ConnectionID       uuid.UUID                  `gorm:"type:uuid;not null;index:idx_webhook_connection,priority:1"`
	Name               string                     `gorm:"type:varchar(255);not null"`
	Direction          webhook.Direction          `gorm:"type:varchar(10);not null;index:idx_webhook_direction,priority:1"`
	Events             pq.StringArray             `gorm:"type:text[];not null"`
	TargetURL          string                     `gorm:"type:varchar(500)"`
	AuthType           webhook.AuthType           `gorm:"type:varchar(20);not null;default:'none'"`
	SecretRef          uuid.UUID                  `gorm:"type:uuid"`
	SignatureHeader    string                     `gorm:"type:varchar(100)"`
	SignatureAlgorithm webhook.SignatureAlgorithm `gorm:"type:varchar(20);not null"`
	PayloadTemplate    string                     `gorm:"type:text"`
	MaxRetries         int                        `gorm:"not null;default:3"`
	RetryDelaySeconds  int                        `gorm:"not null;default:30"`
	TimeoutSeconds     int                        `gorm:"not null;default:10"`
	Status             webhook.Status             `gorm:"type:varchar(10);not null;default:'active'"`
	DeliveryCount      int64                      `gorm:"not null;default:0"`
	FailureCount       int64                      `gorm:"not null;default:0"`
	LastDeliveryAt     *time.Time
	LastError          string `gorm:"type:text"`
	IsActive           bool   `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (WebhookModel) TableName() string {
	return "webhooks"
}

// ToDomain converts the persistence model to a domain Webhook aggregate.
func (m *WebhookModel) ToDomain() *webhook.Webhook {
	w := &webhook.Webhook{
		ConnectionID:       m.ConnectionID,
		Name:               m.Name,
		Direction:          m.Direction,
		Events:             []string(m.Events),
		TargetURL:          m.TargetURL,
		AuthType:           m.AuthType,
		SecretRef:          m.SecretRef,
		SignatureHeader:    m.SignatureHeader,
		SignatureAlgorithm: m.SignatureAlgorithm,
		PayloadTemplate:    m.PayloadTemplate,
		MaxRetries:         m.MaxRetries,
		RetryDelaySeconds:  m.RetryDelaySeconds,
		TimeoutSeconds:     m.TimeoutSeconds,
		Status:             m.Status,
		DeliveryCount:      m.DeliveryCount,
		FailureCount:       m.FailureCount,
		LastDeliveryAt:     m.LastDeliveryAt,
		LastError:          m.LastError,
		IsActive:           m.IsActive,
	}
	m.PopulateTenantAggregateRoot(&w.TenantAggregateRoot)
	return w
}

// FromDomain populates the persistence model from a domain Webhook aggregate.
func (m *WebhookModel) FromDomain(w *webhook.Webhook) {
	m.FromDomainTenantAggregateRoot(w.TenantAggregateRoot)
	m.ConnectionID = w.ConnectionID
	m.Name = w.Name
	m.Direction = w.Direction
	m.Events = pq.StringArray(w.Events)
	m.TargetURL = w.TargetURL
	m.AuthType = w.AuthType
	m.SecretRef = w.SecretRef
	m.SignatureHeader = w.SignatureHeader
	m.SignatureAlgorithm = w.SignatureAlgorithm
	m.PayloadTemplate = w.PayloadTemplate
	m.MaxRetries = w.MaxRetries
	m.RetryDelaySeconds = w.RetryDelaySeconds
	m.TimeoutSeconds = w.TimeoutSeconds
	m.Status = w.Status
	m.DeliveryCount = w.DeliveryCount
	m.FailureCount = w.FailureCount
	m.LastDeliveryAt = w.LastDeliveryAt
	m.LastError = w.LastError
	m.IsActive = w.IsActive
}

// WebhookModelFromDomain creates a new persistence model from a domain Webhook.
func WebhookModelFromDomain(w *webhook.Webhook) *WebhookModel {
	m := &WebhookModel{}
	m.FromDomain(w)
	return m
}

// WebhookDeliveryLogModel is the persistence model for append-only delivery
// attempts.
type WebhookDeliveryLogModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID `gorm:"type:uuid;not null;index:idx_webhook_delivery_tenant,priority:1"`
	WebhookID      uuid.UUID `gorm:"type:uuid;not null;index:idx_webhook_delivery_webhook,priority:1"`
	EventType      string    `gorm:"type:varchar(100);not null"`
	EventID        string    `gorm:"type:varchar(100);not null"`
	Attempt        int       `gorm:"not null;default:1"`
	RequestBody    string    `gorm:"type:text"`
	ResponseStatus int       `gorm:"not null;default:0"`
	ResponseBody   string    `gorm:"type:text"`
	LatencyMs      int64     `gorm:"not null;default:0"`
	Success        bool      `gorm:"not null;default:false"`
	Error          string    `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (WebhookDeliveryLogModel) TableName() string {
	return "webhook_delivery_logs"
}

// ToDomain converts the persistence model to a domain DeliveryLog entry.
func (m *WebhookDeliveryLogModel) ToDomain() *webhook.DeliveryLog {
	return &webhook.DeliveryLog{
		ID:             m.ID,
		TenantID:       m.TenantID,
		WebhookID:      m.WebhookID,
		EventType:      m.EventType,
		EventID:        m.EventID,
		Attempt:        m.Attempt,
		RequestBody:    m.RequestBody,
		ResponseStatus: m.ResponseStatus,
		ResponseBody:   m.ResponseBody,
		LatencyMs:      m.LatencyMs,
		Success:        m.Success,
		Error:          m.Error,
		CreatedAt:      m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain DeliveryLog entry.
func (m *WebhookDeliveryLogModel) FromDomain(l *webhook.DeliveryLog) {
	m.ID = l.ID
	m.TenantID = l.TenantID
	m.WebhookID = l.WebhookID
	m.EventType = l.EventType
	m.EventID = l.EventID
	m.Attempt = l.Attempt
	m.RequestBody = l.RequestBody
	m.ResponseStatus = l.ResponseStatus
	m.ResponseBody = l.ResponseBody
	m.LatencyMs = l.LatencyMs
	m.Success = l.Success
	m.Error = l.Error
	m.CreatedAt = l.CreatedAt
}
