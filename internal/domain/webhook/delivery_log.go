package webhook

import (
	"time"

	"github.com/google/uuid"
)

// responseBodyLimit truncates stored response bodies
const responseBodyLimit = 4096

// DeliveryLog records one delivery attempt of one event to one webhook.
// Append-only; retention archives old rows, nothing updates them.
type DeliveryLog struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	WebhookID uuid.UUID
	EventType string
	// EventID identifies the delivered event across attempts
	EventID string
	// Attempt is 1-based within one delivery
	Attempt        int
	RequestBody    string
	ResponseStatus int
	ResponseBody   string
	LatencyMs      int64
	Success        bool
	Error          string
	CreatedAt      time.Time
}

// NewDeliveryLog records one attempt. The response body is truncated to 4KB.
func NewDeliveryLog(w *Webhook, eventType, eventID string, attempt int, requestBody string, responseStatus int, responseBody string, latencyMs int64, success bool, errMsg string) *DeliveryLog {
	if len(responseBody) > responseBodyLimit {
		responseBody = responseBody[:responseBodyLimit]
	}
	return &DeliveryLog{
		ID:             uuid.New(),
		TenantID:       w.TenantID,
		WebhookID:      w.ID,
		EventType:      eventType,
		EventID:        eventID,
		Attempt:        attempt,
		RequestBody:    requestBody,
		ResponseStatus: responseStatus,
		ResponseBody:   responseBody,
		LatencyMs:      latencyMs,
		Success:        success,
		Error:          errMsg,
		CreatedAt:      time.Now(),
	}
}
