package connector

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ConnectionInfo carries everything an adapter needs to reach one remote
// system for one call. Credentials are resolved from the secret store just
// before the call and must never be persisted or logged.
type ConnectionInfo struct {
	ConnectionID uuid.UUID
	TenantID     uuid.UUID
	BaseURL      string
	APIVersion   string
	AuthType     AuthType
	Credentials  map[string]string
}

// ProbeResult is the outcome of a connectivity/health check
type ProbeResult struct {
	Success   bool   `json:"success"`
	Version   string `json:"version"`
	Message   string `json:"message"`
	LatencyMs int64  `json:"latency_ms"`
}

// Record is one raw record fetched from a remote system
type Record struct {
	// ExternalID is the remote system's identifier for the record
	ExternalID string
	// ModifiedAt is the remote modification timestamp, used for delta
	// bounds and conflict detection
	ModifiedAt time.Time
	Data       map[string]any
}

// FetchRequest describes one page of a read from a remote system
type FetchRequest struct {
	Entity EntityType
	// Filter is a connector-specific search filter (field -> value)
	Filter map[string]any
	// DeltaSince bounds the fetch to records modified after this instant.
	// Nil means full fetch.
	DeltaSince *time.Time
	Page       int
	PageSize   int
}

// FetchPage is one page of fetched records
type FetchPage struct {
	Records []Record
	// Total is the total number of matching records when the remote
	// system reports it, otherwise 0
	Total   int
	HasMore bool
}

// WriteRequest describes one record write to a remote system.
// An empty ExternalID requests a create; otherwise an update.
type WriteRequest struct {
	Entity     EntityType
	ExternalID string
	Data       map[string]any
}

// WriteResult is the outcome of one record write
type WriteResult struct {
	ExternalID string
	Created    bool
}

// Connector is the capability set every concrete adapter implements.
// One implementation exists per connector type; the registry selects it by
// the connection's connector_type at runtime.
type Connector interface {
	// Type returns the connector type this adapter serves
	Type() Type

	// Probe performs a connectivity and authentication check
	Probe(ctx context.Context, conn ConnectionInfo) (*ProbeResult, error)

	// Fetch reads one page of records
	Fetch(ctx context.Context, conn ConnectionInfo, req FetchRequest) (*FetchPage, error)

	// Write creates or updates one record
	Write(ctx context.Context, conn ConnectionInfo, req WriteRequest) (*WriteResult, error)
}
