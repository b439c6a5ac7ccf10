package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/synchub/backend/internal/domain/connection"
	"github.com/synchub/backend/internal/domain/connector"
)

// ConnectionModel is the persistence model for the Connection aggregate.
type ConnectionModel struct {
	TenantAggregateModel
	Code                    string                  `gorm:"type:varchar(50);not null;uniqueIndex:idx_connection_tenant_code,priority:2"`
	Name                    string                  `gorm:"type:varchar(255);not null"`
	ConnectorType           connector.Type          `gorm:"type:varchar(30);not null;index:idx_connection_type,priority:1"`
	AuthType                connector.AuthType      `gorm:"type:varchar(20);not null"`
	BaseURL                 string                  `gorm:"type:varchar(500);not null"`
	APIVersion              string                  `gorm:"type:varchar(20)"`
	CredentialRef           uuid.UUID               `gorm:"type:uuid;not null"`
	Status                  connection.Status       `gorm:"type:varchar(20);not null;index:idx_connection_status,priority:1"`
	HealthStatus            connection.HealthStatus `gorm:"type:varchar(20);not null"`
	ConsecutiveErrors       int                     `gorm:"not null;default:0"`
	SuccessRate24h          decimal.Decimal         `gorm:"type:decimal(5,2);column:success_rate_24h;not null;default:0"`
	AvgResponseTimeMs       int64                   `gorm:"not null;default:0"`
	LastError               string                  `gorm:"type:text"`
	LastConnectionTestAt    *time.Time
	LastHealthCheckAt       *time.Time
	RateLimitedUntil        *time.Time        `gorm:"index"`
	StatusBeforeMaintenance connection.Status `gorm:"type:varchar(20)"`
	IsActive                bool              `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (ConnectionModel) TableName() string {
	return "connections"
}

// ToDomain converts the persistence model to a domain Connection aggregate.
func (m *ConnectionModel) ToDomain() *connection.Connection {
	c := &connection.Connection{
		Code:                    m.Code,
		Name:                    m.Name,
		ConnectorType:           m.ConnectorType,
		AuthType:                m.AuthType,
		BaseURL:                 m.BaseURL,
		APIVersion:              m.APIVersion,
		CredentialRef:           m.CredentialRef,
		Status:                  m.Status,
		HealthStatus:            m.HealthStatus,
		ConsecutiveErrors:       m.ConsecutiveErrors,
		SuccessRate24h:          m.SuccessRate24h,
		AvgResponseTimeMs:       m.AvgResponseTimeMs,
		LastError:               m.LastError,
		LastConnectionTestAt:    m.LastConnectionTestAt,
		LastHealthCheckAt:       m.LastHealthCheckAt,
		RateLimitedUntil:        m.RateLimitedUntil,
		StatusBeforeMaintenance: m.StatusBeforeMaintenance,
		IsActive:                m.IsActive,
	}
	m.PopulateTenantAggregateRoot(&c.TenantAggregateRoot)
	return c
}

// FromDomain populates the persistence model from a domain Connection aggregate.
func (m *ConnectionModel) FromDomain(c *connection.Connection) {
	m.FromDomainTenantAggregateRoot(c.TenantAggregateRoot)
	m.Code = c.Code
	m.Name = c.Name
	m.ConnectorType = c.ConnectorType
	m.AuthType = c.AuthType
	m.BaseURL = c.BaseURL
	m.APIVersion = c.APIVersion
	m.CredentialRef = c.CredentialRef
	m.Status = c.Status
	m.HealthStatus = c.HealthStatus
	m.ConsecutiveErrors = c.ConsecutiveErrors
	m.SuccessRate24h = c.SuccessRate24h
	m.AvgResponseTimeMs = c.AvgResponseTimeMs
	m.LastError = c.LastError
	m.LastConnectionTestAt = c.LastConnectionTestAt
	m.LastHealthCheckAt = c.LastHealthCheckAt
	m.RateLimitedUntil = c.RateLimitedUntil
	m.StatusBeforeMaintenance = c.StatusBeforeMaintenance
	m.IsActive = c.IsActive
}

// ConnectionModelFromDomain creates a new persistence model from a domain Connection.
func ConnectionModelFromDomain(c *connection.Connection) *ConnectionModel {
	m := &ConnectionModel{}
	m.FromDomain(c)
	return m
}

// ConnectionSecretModel stores one encrypted credential payload. The
// ciphertext column holds the chacha20poly1305 sealed blob; plaintext
// never reaches this table.
type ConnectionSecretModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID   uuid.UUID `gorm:"type:uuid;not null;index:idx_connection_secret_tenant,priority:1"`
	Ciphertext []byte    `gorm:"type:bytea;not null"`
	Nonce      []byte    `gorm:"type:bytea;not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ConnectionSecretModel) TableName() string {
	return "connection_secrets"
}
