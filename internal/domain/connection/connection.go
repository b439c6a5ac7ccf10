// Package connection owns the lifecycle and health of configured connector
// instances. A Connection is the tenant-scoped, credentialed binding of one
// connector type to one remote system.
package connection

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/synchub/backend/internal/domain/connector"
	"github.com/synchub/backend/internal/domain/shared"
)

// Status is the connection lifecycle state
type Status string

// Connection lifecycle states
const (
	// StatusPending is the initial state after creation, before configuration completes
	StatusPending Status = "pending"
	// StatusConfiguring means setup is in progress (credential exchange, discovery)
	StatusConfiguring Status = "configuring"
	// StatusConnected means the last probe succeeded and syncs may run
	StatusConnected Status = "connected"
	// StatusError means the last probe or a fatal sync error failed the connection
	StatusError Status = "error"
	// StatusRateLimited means the remote system reported throttling; recovers
	// automatically once the backoff window passes
	StatusRateLimited Status = "rate_limited"
	// StatusExpired means the credential is no longer accepted; requires re-auth
	StatusExpired Status = "expired"
	// StatusMaintenance is an operator-set override blocking all triggers
	StatusMaintenance Status = "maintenance"
	// StatusDisconnected means the connection was deactivated by a user
	StatusDisconnected Status = "disconnected"
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfiguring, StatusConnected, StatusError,
		StatusRateLimited, StatusExpired, StatusMaintenance, StatusDisconnected:
		return true
	}
	return false
}

// String returns the string representation
func (s Status) String() string {
	return string(s)
}

// CanTrigger reports whether scheduled or manual syncs may start in this state.
// Rate-limited connections become triggerable again once the backoff expires;
// that check needs the aggregate, see Connection.CanTrigger.
func (s Status) CanTrigger() bool {
	return s == StatusConnected
}

// HealthStatus is the derived health classification of a connection
type HealthStatus string

// Health classifications derived from the consecutive error count
const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthUnknown   HealthStatus = "unknown"
)

// IsValid checks if the health status is valid
func (h HealthStatus) IsValid() bool {
	switch h {
	case HealthHealthy, HealthDegraded, HealthUnhealthy, HealthUnknown:
		return true
	}
	return false
}

// latencyAlpha is the EWMA weight for new response-time samples
const latencyAlpha = 0.2

// Connection is a configured instance of a connector for one tenant.
// Health counters are also updated concurrently by running executions through
// Repository.RecordOutcome; the in-memory methods here cover the single-writer
// paths (probe, explicit transitions).
type Connection struct {
	shared.TenantAggregateRoot
	Code          string
	Name          string
	ConnectorType connector.Type
	AuthType      connector.AuthType
	BaseURL       string
	APIVersion    string
	// CredentialRef is the opaque handle into the secret store. Raw
	// credentials never live on this struct.
	CredentialRef        uuid.UUID
	Status               Status
	HealthStatus         HealthStatus
	ConsecutiveErrors    int
	SuccessRate24h       decimal.Decimal
	AvgResponseTimeMs    int64
	LastError            string
	LastConnectionTestAt *time.Time
	LastHealthCheckAt    *time.Time
	// RateLimitedUntil is the backoff deadline while Status is rate_limited
	RateLimitedUntil *time.Time
	// StatusBeforeMaintenance remembers where to return after maintenance ends
	StatusBeforeMaintenance Status
	IsActive                bool
}

// NewConnection creates a connection in the pending state.
// Credential validation against the connector definition happens in the
// application service before the secret is stored.
func NewConnection(tenantID uuid.UUID, code, name string, ctype connector.Type, authType connector.AuthType, baseURL, apiVersion string, credentialRef uuid.UUID) (*Connection, error) {
	if code == "" {
		return nil, ErrCodeRequired
	}
	if name == "" {
		return nil, ErrNameRequired
	}
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}

	return &Connection{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Code:                code,
		Name:                name,
		ConnectorType:       ctype,
		AuthType:            authType,
		BaseURL:             baseURL,
		APIVersion:          apiVersion,
		CredentialRef:       credentialRef,
		Status:              StatusPending,
		HealthStatus:        HealthUnknown,
		SuccessRate24h:      decimal.Zero,
		IsActive:            true,
	}, nil
}

// ---------------------------------------------------------------------------
// Lifecycle transitions
// ---------------------------------------------------------------------------

// BeginConfiguring moves a pending connection into setup
func (c *Connection) BeginConfiguring() error {
	if c.Status != StatusPending {
		return ErrInvalidStatusTransition
	}
	c.transition(StatusConfiguring)
	return nil
}

// MarkConnected records a successful probe. Valid from configuring, error and
// rate_limited (recovery); connected stays connected.
func (c *Connection) MarkConnected() error {
	switch c.Status {
	case StatusConfiguring, StatusError, StatusRateLimited, StatusConnected, StatusPending:
	default:
		return ErrInvalidStatusTransition
	}
	c.RateLimitedUntil = nil
	c.ConsecutiveErrors = 0
	c.LastError = ""
	c.transition(StatusConnected)
	c.DeriveHealth()
	return nil
}

// MarkProbeFailed records a failed probe and moves the connection to error
func (c *Connection) MarkProbeFailed(errMsg string) error {
	switch c.Status {
	case StatusDisconnected, StatusMaintenance:
		return ErrInvalidStatusTransition
	}
	c.ConsecutiveErrors++
	c.LastError = errMsg
	c.transition(StatusError)
	c.DeriveHealth()
	return nil
}

// MarkRateLimited records remote throttling with a backoff deadline
func (c *Connection) MarkRateLimited(until time.Time) error {
	if c.Status != StatusConnected && c.Status != StatusRateLimited {
		return ErrInvalidStatusTransition
	}
	c.RateLimitedUntil = &until
	c.transition(StatusRateLimited)
	return nil
}

// RecoverFromRateLimit returns a rate-limited connection to connected once
// its backoff deadline has passed. A probe is not required; the next sync
// will surface genuine failures.
func (c *Connection) RecoverFromRateLimit(now time.Time) error {
	if c.Status != StatusRateLimited {
		return ErrInvalidStatusTransition
	}
	if c.RateLimitedUntil != nil && now.Before(*c.RateLimitedUntil) {
		return ErrInvalidStatusTransition
	}
	c.RateLimitedUntil = nil
	c.transition(StatusConnected)
	return nil
}

// MarkExpired records detected credential expiry. Only Reauthorize leaves
// this state.
func (c *Connection) MarkExpired() error {
	if c.Status == StatusDisconnected {
		return ErrInvalidStatusTransition
	}
	c.transition(StatusExpired)
	return nil
}

// Reauthorize installs a replacement credential and returns the connection
// to pending for a fresh probe
func (c *Connection) Reauthorize(credentialRef uuid.UUID) error {
	if c.Status != StatusExpired && c.Status != StatusError {
		return ErrInvalidStatusTransition
	}
	c.CredentialRef = credentialRef
	c.ConsecutiveErrors = 0
	c.LastError = ""
	c.HealthStatus = HealthUnknown
	c.transition(StatusPending)
	return nil
}

// EnterMaintenance sets the operator override blocking all triggers
func (c *Connection) EnterMaintenance() error {
	if c.Status == StatusMaintenance {
		return nil
	}
	if c.Status == StatusDisconnected {
		return ErrInvalidStatusTransition
	}
	c.StatusBeforeMaintenance = c.Status
	c.transition(StatusMaintenance)
	return nil
}

// EndMaintenance lifts the operator override. The connection returns to its
// pre-maintenance state; callers should follow up with a probe.
func (c *Connection) EndMaintenance() error {
	if c.Status != StatusMaintenance {
		return ErrInvalidStatusTransition
	}
	restored := c.StatusBeforeMaintenance
	if restored == "" {
		restored = StatusPending
	}
	c.StatusBeforeMaintenance = ""
	c.transition(restored)
	return nil
}

// Deactivate soft-deletes the connection. Execution history keeps referencing
// it, so rows are never hard-deleted.
func (c *Connection) Deactivate() error {
	if c.Status == StatusDisconnected {
		return nil
	}
	c.IsActive = false
	c.transition(StatusDisconnected)
	return nil
}

// transition applies the status change, stamps UpdatedAt and queues the
// status-changed event
func (c *Connection) transition(to Status) {
	from := c.Status
	c.Status = to
	c.Touch()
	if from != to {
		c.AddDomainEvent(NewStatusChangedEvent(c, from, to))
	}
}

// ---------------------------------------------------------------------------
// Health and telemetry
// ---------------------------------------------------------------------------

// DeriveHealth recomputes HealthStatus from the consecutive error count:
// 0 -> healthy, 1-2 -> degraded, 3+ -> unhealthy.
func (c *Connection) DeriveHealth() {
	now := time.Now()
	c.LastHealthCheckAt = &now
	switch {
	case c.ConsecutiveErrors == 0:
		c.HealthStatus = HealthHealthy
	case c.ConsecutiveErrors < 3:
		c.HealthStatus = HealthDegraded
	default:
		c.HealthStatus = HealthUnhealthy
	}
}

// RecordSuccess folds a successful call into the rolling telemetry
func (c *Connection) RecordSuccess(latencyMs int64) {
	c.ConsecutiveErrors = 0
	c.foldLatency(latencyMs)
	c.DeriveHealth()
}

// RecordFailure folds a failed call into the rolling telemetry
func (c *Connection) RecordFailure(latencyMs int64) {
	c.ConsecutiveErrors++
	if latencyMs > 0 {
		c.foldLatency(latencyMs)
	}
	c.DeriveHealth()
}

// foldLatency maintains the exponentially weighted average response time
func (c *Connection) foldLatency(latencyMs int64) {
	if c.AvgResponseTimeMs == 0 {
		c.AvgResponseTimeMs = latencyMs
		return
	}
	c.AvgResponseTimeMs = int64(float64(c.AvgResponseTimeMs)*(1-latencyAlpha) + float64(latencyMs)*latencyAlpha)
}

// StampConnectionTest records when the connection was last probed
func (c *Connection) StampConnectionTest() {
	now := time.Now()
	c.LastConnectionTestAt = &now
}

// CanTrigger reports whether a sync may start against this connection now.
// Connected always can; rate_limited can once the backoff deadline passed
// (the caller is expected to recover the status).
func (c *Connection) CanTrigger(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	switch c.Status {
	case StatusConnected:
		return true
	case StatusRateLimited:
		return c.RateLimitedUntil == nil || !now.Before(*c.RateLimitedUntil)
	}
	return false
}
