package connection

import (
	"github.com/synchub/backend/internal/domain/shared"
)

// Event types emitted by the connection aggregate
const (
	EventStatusChanged = "connection.status_changed"
)

// StatusChangedEvent is emitted on every lifecycle transition
type StatusChangedEvent struct {
	shared.BaseDomainEvent
	Code          string         `json:"code"`
	ConnectorType string         `json:"connector_type"`
	FromStatus    Status         `json:"from_status"`
	ToStatus      Status         `json:"to_status"`
	Health        HealthStatus   `json:"health_status"`
	LastError     string         `json:"last_error,omitempty"`
}

// NewStatusChangedEvent creates a status change event from the aggregate
func NewStatusChangedEvent(c *Connection, from, to Status) *StatusChangedEvent {
	return &StatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventStatusChanged, "Connection", c.ID, c.TenantID),
		Code:            c.Code,
		ConnectorType:   c.ConnectorType.String(),
		FromStatus:      from,
		ToStatus:        to,
		Health:          c.HealthStatus,
		LastError:       c.LastError,
	}
}
