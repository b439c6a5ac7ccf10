package connection

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/synchub/backend/internal/domain/connection"
)

// CreateConnectionRequest represents a request to create a new connection.
// Credentials go straight into the secret store; only the opaque reference
// is kept on the connection.
type CreateConnectionRequest struct {
	Code          string            `json:"code" binding:"required,min=1,max=50"`
	Name          string            `json:"name" binding:"required,min=1,max=200"`
	ConnectorType string            `json:"connector_type" binding:"required"`
	AuthType      string            `json:"auth_type"`
	BaseURL       string            `json:"base_url" binding:"required,url,max=500"`
	APIVersion    string            `json:"api_version" binding:"max=50"`
	Credentials   map[string]string `json:"credentials" binding:"required"`
}

// UpdateConnectionRequest represents a request to update connection settings
type UpdateConnectionRequest struct {
	Name       *string `json:"name" binding:"omitempty,min=1,max=200"`
	BaseURL    *string `json:"base_url" binding:"omitempty,url,max=500"`
	APIVersion *string `json:"api_version" binding:"omitempty,max=50"`
}

// ReauthorizeRequest carries a replacement credential payload
type ReauthorizeRequest struct {
	Credentials map[string]string `json:"credentials" binding:"required"`
}

// ConnectionResponse represents a connection in API responses.
// Credential material is never included, only health and lifecycle state.
type ConnectionResponse struct {
	ID                   uuid.UUID       `json:"id"`
	TenantID             uuid.UUID       `json:"tenant_id"`
	Code                 string          `json:"code"`
	Name                 string          `json:"name"`
	ConnectorType        string          `json:"connector_type"`
	AuthType             string          `json:"auth_type"`
	BaseURL              string          `json:"base_url"`
	APIVersion           string          `json:"api_version"`
	Status               string          `json:"status"`
	HealthStatus         string          `json:"health_status"`
	ConsecutiveErrors    int             `json:"consecutive_errors"`
	SuccessRate24h       decimal.Decimal `json:"success_rate_24h"`
	AvgResponseTimeMs    int64           `json:"avg_response_time_ms"`
	LastError            string          `json:"last_error,omitempty"`
	LastConnectionTestAt *time.Time      `json:"last_connection_test_at,omitempty"`
	RateLimitedUntil     *time.Time      `json:"rate_limited_until,omitempty"`
	IsActive             bool            `json:"is_active"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	Version              int             `json:"version"`
}

// TestConnectionResponse is the outcome of a connectivity probe
type TestConnectionResponse struct {
	Success   bool   `json:"success"`
	Version   string `json:"version,omitempty"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
	Status    string `json:"status"`
}

// ConnectionListFilter represents filter options for connection list
type ConnectionListFilter struct {
	ConnectorType string `form:"connector_type"`
	Status        string `form:"status"`
	HealthStatus  string `form:"health_status"`
	IsActive      *bool  `form:"is_active"`
	Search        string `form:"search"`
	Page          int    `form:"page" binding:"omitempty,min=1"`
	PageSize      int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ToConnectionResponse maps a connection aggregate to its API shape
func ToConnectionResponse(c *connection.Connection) ConnectionResponse {
	return ConnectionResponse{
		ID:                   c.ID,
		TenantID:             c.TenantID,
		Code:                 c.Code,
		Name:                 c.Name,
		ConnectorType:        string(c.ConnectorType),
		AuthType:             string(c.AuthType),
		BaseURL:              c.BaseURL,
		APIVersion:           c.APIVersion,
		Status:               string(c.Status),
		HealthStatus:         string(c.HealthStatus),
		ConsecutiveErrors:    c.ConsecutiveErrors,
		SuccessRate24h:       c.SuccessRate24h,
		AvgResponseTimeMs:    c.AvgResponseTimeMs,
		LastError:            c.LastError,
		LastConnectionTestAt: c.LastConnectionTestAt,
		RateLimitedUntil:     c.RateLimitedUntil,
		IsActive:             c.IsActive,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
		Version:              c.Version,
	}
}

// ToConnectionResponses maps a slice of connections
func ToConnectionResponses(conns []*connection.Connection) []ConnectionResponse {
	out := make([]ConnectionResponse, len(conns))
	for i, c := range conns {
		out[i] = ToConnectionResponse(c)
	}
	return out
}
