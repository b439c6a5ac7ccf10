// Package webhook owns event channels tied to a connection: outbound
// deliveries of engine events to remote endpoints, and inbound calls from
// remote systems that trigger ad-hoc syncs.
package webhook

import (
	"time"

	"github.com/google/uuid"

	"github.com/synchub/backend/internal/domain/shared"
)

// Direction tells whether the channel delivers or receives events
type Direction string

// Webhook directions
const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// IsValid checks if the direction is valid
func (d Direction) IsValid() bool {
	return d == DirectionInbound || d == DirectionOutbound
}

// AuthType is how outbound deliveries authenticate to the target
type AuthType string

// Outbound auth types
const (
	AuthNone   AuthType = "none"
	AuthHMAC   AuthType = "hmac_sha256"
	AuthBearer AuthType = "bearer"
	AuthBasic  AuthType = "basic"
)

// IsValid checks if the auth type is valid
func (a AuthType) IsValid() bool {
	switch a {
	case AuthNone, AuthHMAC, AuthBearer, AuthBasic:
		return true
	}
	return false
}

// SignatureAlgorithm is the HMAC variant used for signing and verification
type SignatureAlgorithm string

// Signature algorithms
const (
	SignatureHMACSHA256 SignatureAlgorithm = "hmac_sha256"
	SignatureHMACSHA1   SignatureAlgorithm = "hmac_sha1"
)

// IsValid checks if the algorithm is valid
func (s SignatureAlgorithm) IsValid() bool {
	return s == SignatureHMACSHA256 || s == SignatureHMACSHA1
}

// Status is the webhook channel state
type Status string

// Webhook statuses
const (
	// StatusActive means the channel delivers or accepts events
	StatusActive Status = "active"
	// StatusPaused means the channel is operator-disabled
	StatusPaused Status = "paused"
	// StatusError means outbound delivery retries were exhausted
	StatusError Status = "error"
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusError:
		return true
	}
	return false
}

// Delivery policy defaults
const (
	DefaultMaxRetries        = 3
	DefaultRetryDelaySeconds = 30
	DefaultTimeoutSeconds    = 10
	// DefaultSignatureHeader carries the HMAC signature on outbound posts
	DefaultSignatureHeader = "X-SyncHub-Signature"
)

// Webhook is a tenant-scoped event channel tied to one connection
type Webhook struct {
	shared.TenantAggregateRoot
	ConnectionID uuid.UUID
	Name         string
	Direction    Direction
	// Events lists the subscribed event types, e.g. sync.execution_completed
	Events []string
	// TargetURL is the delivery endpoint (outbound only)
	TargetURL string
	AuthType  AuthType
	// SecretRef points at the signing/validation secret in the secret store
	SecretRef          uuid.UUID
	SignatureHeader    string
	SignatureAlgorithm SignatureAlgorithm
	// PayloadTemplate optionally overrides the default JSON envelope
	PayloadTemplate   string
	MaxRetries        int
	RetryDelaySeconds int
	TimeoutSeconds    int
	Status            Status
	DeliveryCount     int64
	FailureCount      int64
	LastDeliveryAt    *time.Time
	LastError         string
	IsActive          bool
}

// NewOutboundWebhook creates an active outbound channel
func NewOutboundWebhook(tenantID, connectionID uuid.UUID, name, targetURL string, events []string, authType AuthType, secretRef uuid.UUID) (*Webhook, error) {
	w := &Webhook{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ConnectionID:        connectionID,
		Name:                name,
		Direction:           DirectionOutbound,
		Events:              events,
		TargetURL:           targetURL,
		AuthType:            authType,
		SecretRef:           secretRef,
		SignatureHeader:     DefaultSignatureHeader,
		SignatureAlgorithm:  SignatureHMACSHA256,
		MaxRetries:          DefaultMaxRetries,
		RetryDelaySeconds:   DefaultRetryDelaySeconds,
		TimeoutSeconds:      DefaultTimeoutSeconds,
		Status:              StatusActive,
		IsActive:            true,
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// NewInboundWebhook creates an active inbound channel. The secret validates
// incoming signatures.
func NewInboundWebhook(tenantID, connectionID uuid.UUID, name string, events []string, secretRef uuid.UUID, algorithm SignatureAlgorithm) (*Webhook, error) {
	w := &Webhook{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ConnectionID:        connectionID,
		Name:                name,
		Direction:           DirectionInbound,
		Events:              events,
		AuthType:            AuthHMAC,
		SecretRef:           secretRef,
		SignatureHeader:     DefaultSignatureHeader,
		SignatureAlgorithm:  algorithm,
		MaxRetries:          DefaultMaxRetries,
		RetryDelaySeconds:   DefaultRetryDelaySeconds,
		TimeoutSeconds:      DefaultTimeoutSeconds,
		Status:              StatusActive,
		IsActive:            true,
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// Validate checks the webhook for consistency
func (w *Webhook) Validate() error {
	if w.Name == "" {
		return ErrNameRequired
	}
	if !w.Direction.IsValid() {
		return ErrInvalidDirection
	}
	if len(w.Events) == 0 {
		return ErrNoEvents
	}
	if w.Direction == DirectionOutbound {
		if w.TargetURL == "" {
			return ErrTargetURLRequired
		}
		if !w.AuthType.IsValid() {
			return ErrInvalidAuthType
		}
	}
	if !w.SignatureAlgorithm.IsValid() {
		return ErrInvalidSignatureAlgorithm
	}
	if w.MaxRetries < 0 || w.RetryDelaySeconds < 0 || w.TimeoutSeconds < 1 {
		return ErrInvalidRetryPolicy
	}
	return nil
}

// SubscribesTo reports whether the channel wants events of this type
func (w *Webhook) SubscribesTo(eventType string) bool {
	for _, e := range w.Events {
		if e == eventType || e == "*" {
			return true
		}
	}
	return false
}

// Deliverable reports whether outbound deliveries should be attempted now
func (w *Webhook) Deliverable() bool {
	return w.IsActive && w.Direction == DirectionOutbound && w.Status != StatusPaused
}

// RecordDeliverySuccess folds a successful delivery into the counters.
// A channel in error recovers to active on the first success.
func (w *Webhook) RecordDeliverySuccess(now time.Time) {
	w.DeliveryCount++
	w.LastDeliveryAt = &now
	w.LastError = ""
	w.Status = StatusActive
	w.Touch()
}

// RecordDeliveryFailure folds an exhausted delivery into the counters and
// moves the channel to error
func (w *Webhook) RecordDeliveryFailure(now time.Time, lastError string) {
	w.FailureCount++
	w.LastDeliveryAt = &now
	w.LastError = lastError
	w.Status = StatusError
	w.Touch()
}

// Pause operator-disables the channel
func (w *Webhook) Pause() {
	w.Status = StatusPaused
	w.Touch()
}

// Resume re-enables a paused or errored channel
func (w *Webhook) Resume() {
	w.Status = StatusActive
	w.LastError = ""
	w.Touch()
}

// Deactivate soft-deletes the channel; delivery logs keep referencing it
func (w *Webhook) Deactivate() {
	w.IsActive = false
	w.Touch()
}
