package webhook

import (
	"github.com/synchub/backend/internal/domain/shared"
)

// Event types emitted by webhook ingestion
const (
	EventReceived = "webhook.received"
)

// Credential field names under a webhook's SecretRef. Outbound signing and
// inbound verification read the same keys.
const (
	SecretKeySigning  = "secret"
	SecretKeyToken    = "token"
	SecretKeyUsername = "username"
	SecretKeyPassword = "password"
)

// ReceivedEvent is emitted when an inbound call passed signature validation
type ReceivedEvent struct {
	shared.BaseDomainEvent
	ConnectionID string `json:"connection_id"`
	EventName    string `json:"event_name"`
	Entity       string `json:"entity,omitempty"`
	ExternalID   string `json:"external_id,omitempty"`
	// TriggeredExecutionID is set when the event enqueued an ad-hoc sync
	TriggeredExecutionID string `json:"triggered_execution_id,omitempty"`
}

// NewReceivedEvent creates the ingestion event for an inbound webhook call
func NewReceivedEvent(w *Webhook, eventName, entity, externalID, executionID string) *ReceivedEvent {
	return &ReceivedEvent{
		BaseDomainEvent:      shared.NewBaseDomainEvent(EventReceived, "Webhook", w.ID, w.TenantID),
		ConnectionID:         w.ConnectionID.String(),
		EventName:            eventName,
		Entity:               entity,
		ExternalID:           externalID,
		TriggeredExecutionID: executionID,
	}
}
