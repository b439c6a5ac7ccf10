// Package connection provides the application services for managing
// credentialed connections to external systems.
package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/synchub/backend/internal/domain/connection"
	"github.com/synchub/backend/internal/domain/connector"
	"github.com/synchub/backend/internal/domain/shared"
)

// ConnectionService handles connection lifecycle operations
type ConnectionService struct {
	connections    connection.Repository
	secrets        connection.SecretStore
	registry       *connector.Registry
	eventPublisher shared.EventPublisher
}

// NewConnectionService creates a new ConnectionService
func NewConnectionService(
	connections connection.Repository,
	secrets connection.SecretStore,
	registry *connector.Registry,
	eventPublisher shared.EventPublisher,
) *ConnectionService {
	return &ConnectionService{
		connections:    connections,
		secrets:        secrets,
		registry:       registry,
		eventPublisher: eventPublisher,
	}
}

// Connectors returns the connector catalog
func (s *ConnectionService) Connectors() []connector.Definition {
	return s.registry.Definitions()
}

// Create validates the credentials against the connector definition, stores
// them in the secret store and creates the connection in the pending state.
func (s *ConnectionService) Create(ctx context.Context, tenantID uuid.UUID, req CreateConnectionRequest) (*ConnectionResponse, error) {
	def, err := s.registry.Definition(connector.Type(req.ConnectorType))
	if err != nil {
		return nil, err
	}

	authType := def.AuthType
	if req.AuthType != "" {
		authType = connector.AuthType(req.AuthType)
		if authType != def.AuthType {
			return nil, fmt.Errorf("%w: %s expects %s", connection.ErrInvalidAuthType, def.Type, def.AuthType)
		}
	}

	for _, field := range def.RequiredCredentialFields {
		if req.Credentials[field] == "" {
			return nil, fmt.Errorf("%w: %s", connection.ErrMissingCredentialField, field)
		}
	}

	if _, err := s.connections.FindByCode(ctx, tenantID, req.Code); err == nil {
		return nil, connection.ErrConnectionExists
	} else if !errors.Is(err, connection.ErrConnectionNotFound) {
		return nil, err
	}

	ref, err := s.secrets.Put(ctx, tenantID, req.Credentials)
	if err != nil {
		return nil, err
	}

	conn, err := connection.NewConnection(tenantID, req.Code, req.Name, def.Type, authType, req.BaseURL, req.APIVersion, ref)
	if err != nil {
		return nil, err
	}
	if err := s.connections.Save(ctx, conn); err != nil {
		return nil, err
	}

	s.publishDomainEvents(ctx, conn)
	response := ToConnectionResponse(conn)
	return &response, nil
}

// GetByID retrieves a connection by ID
func (s *ConnectionService) GetByID(ctx context.Context, tenantID, connectionID uuid.UUID) (*ConnectionResponse, error) {
	conn, err := s.connections.FindByID(ctx, tenantID, connectionID)
	if err != nil {
		return nil, err
	}
	response := ToConnectionResponse(conn)
	return &response, nil
}

// GetByCode retrieves a connection by code
func (s *ConnectionService) GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*ConnectionResponse, error) {
	conn, err := s.connections.FindByCode(ctx, tenantID, code)
	if err != nil {
		return nil, err
	}
	response := ToConnectionResponse(conn)
	return &response, nil
}

// List retrieves connections with filtering and pagination
func (s *ConnectionService) List(ctx context.Context, tenantID uuid.UUID, filter ConnectionListFilter) ([]ConnectionResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	domainFilter := connection.Filter{
		IsActive: filter.IsActive,
		Search:   filter.Search,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}
	if filter.ConnectorType != "" {
		t := connector.Type(filter.ConnectorType)
		domainFilter.ConnectorType = &t
	}
	if filter.Status != "" {
		st := connection.Status(filter.Status)
		domainFilter.Status = &st
	}
	if filter.HealthStatus != "" {
		h := connection.HealthStatus(filter.HealthStatus)
		domainFilter.HealthStatus = &h
	}

	conns, err := s.connections.FindAll(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.connections.Count(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToConnectionResponses(conns), total, nil
}

// Update changes the connection's mutable settings
func (s *ConnectionService) Update(ctx context.Context, tenantID, connectionID uuid.UUID, req UpdateConnectionRequest) (*ConnectionResponse, error) {
	conn, err := s.connections.FindByID(ctx, tenantID, connectionID)
	if err != nil {
		return nil, err
	}
	if !conn.IsActive {
		return nil, connection.ErrConnectionInactive
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, connection.ErrNameRequired
		}
		conn.Name = *req.Name
	}
	if req.BaseURL != nil {
		if *req.BaseURL == "" {
			return nil, connection.ErrBaseURLRequired
		}
		conn.BaseURL = *req.BaseURL
	}
	if req.APIVersion != nil {
		conn.APIVersion = *req.APIVersion
	}
	conn.Touch()

	if err := s.connections.Save(ctx, conn); err != nil {
		return nil, err
	}
	response := ToConnectionResponse(conn)
	return &response, nil
}

// Test probes the remote system and folds the outcome into the connection's
// lifecycle and health state. Credentials are resolved just-in-time and
// never leave this call.
func (s *ConnectionService) Test(ctx context.Context, tenantID, connectionID uuid.UUID) (*TestConnectionResponse, error) {
	conn, err := s.connections.FindByID(ctx, tenantID, connectionID)
	if err != nil {
		return nil, err
	}
	if !conn.IsActive {
		return nil, connection.ErrConnectionInactive
	}

	adapter, err := s.registry.Connector(conn.ConnectorType)
	if err != nil {
		return nil, err
	}
	creds, err := s.secrets.Get(ctx, tenantID, conn.CredentialRef)
	if err != nil {
		return nil, fmt.Errorf("resolve credentials: %w", err)
	}

	info := connector.ConnectionInfo{
		ConnectionID: conn.ID,
		TenantID:     conn.TenantID,
		BaseURL:      conn.BaseURL,
		APIVersion:   conn.APIVersion,
		AuthType:     conn.AuthType,
		Credentials:  creds,
	}

	start := time.Now()
	result, probeErr := adapter.Probe(ctx, info)
	if result == nil {
		result = &connector.ProbeResult{LatencyMs: time.Since(start).Milliseconds()}
		if probeErr != nil {
			result.Message = probeErr.Error()
		}
	}

	conn.StampConnectionTest()
	if probeErr == nil && result.Success {
		conn.RecordSuccess(result.LatencyMs)
		if err := conn.MarkConnected(); err != nil {
			return nil, err
		}
	} else {
		msg := result.Message
		if probeErr != nil {
			msg = probeErr.Error()
		}
		switch {
		case errors.Is(probeErr, connector.ErrAuthExpired):
			_ = conn.MarkExpired()
			conn.RecordFailure(result.LatencyMs)
			conn.LastError = msg
		default:
			_ = conn.MarkProbeFailed(msg)
		}
	}

	if err := s.connections.Save(ctx, conn); err != nil {
		return nil, err
	}
	s.publishDomainEvents(ctx, conn)

	return &TestConnectionResponse{
		Success:   probeErr == nil && result.Success,
		Version:   result.Version,
		Message:   result.Message,
		LatencyMs: result.LatencyMs,
		Status:    string(conn.Status),
	}, nil
}

// Reauthorize replaces the stored credential and returns the connection to
// pending for a fresh probe
func (s *ConnectionService) Reauthorize(ctx context.Context, tenantID, connectionID uuid.UUID, req ReauthorizeRequest) (*ConnectionResponse, error) {
	conn, err := s.connections.FindByID(ctx, tenantID, connectionID)
	if err != nil {
		return nil, err
	}

	def, err := s.registry.Definition(conn.ConnectorType)
	if err != nil {
		return nil, err
	}
	for _, field := range def.RequiredCredentialFields {
		if req.Credentials[field] == "" {
			return nil, fmt.Errorf("%w: %s", connection.ErrMissingCredentialField, field)
		}
	}

	oldRef := conn.CredentialRef
	newRef, err := s.secrets.Put(ctx, tenantID, req.Credentials)
	if err != nil {
		return nil, err
	}
	if err := conn.Reauthorize(newRef); err != nil {
		// roll back the orphaned secret
		_ = s.secrets.Delete(ctx, tenantID, newRef)
		return nil, err
	}
	if err := s.connections.Save(ctx, conn); err != nil {
		return nil, err
	}
	if oldRef != uuid.Nil {
		if err := s.secrets.Delete(ctx, tenantID, oldRef); err != nil {
			// the replaced credential is unreachable; cleanup is best-effort
			_ = err
		}
	}

	s.publishDomainEvents(ctx, conn)
	response := ToConnectionResponse(conn)
	return &response, nil
}

// EnterMaintenance sets the operator override blocking all triggers
func (s *ConnectionService) EnterMaintenance(ctx context.Context, tenantID, connectionID uuid.UUID) (*ConnectionResponse, error) {
	return s.transition(ctx, tenantID, connectionID, (*connection.Connection).EnterMaintenance)
}

// EndMaintenance lifts the operator override
func (s *ConnectionService) EndMaintenance(ctx context.Context, tenantID, connectionID uuid.UUID) (*ConnectionResponse, error) {
	return s.transition(ctx, tenantID, connectionID, (*connection.Connection).EndMaintenance)
}

// Deactivate soft-deletes the connection and removes its stored credential
func (s *ConnectionService) Deactivate(ctx context.Context, tenantID, connectionID uuid.UUID) (*ConnectionResponse, error) {
	conn, err := s.connections.FindByID(ctx, tenantID, connectionID)
	if err != nil {
		return nil, err
	}
	if err := conn.Deactivate(); err != nil {
		return nil, err
	}
	if err := s.connections.Save(ctx, conn); err != nil {
		return nil, err
	}
	if conn.CredentialRef != uuid.Nil {
		_ = s.secrets.Delete(ctx, tenantID, conn.CredentialRef)
	}

	s.publishDomainEvents(ctx, conn)
	response := ToConnectionResponse(conn)
	return &response, nil
}

func (s *ConnectionService) transition(ctx context.Context, tenantID, connectionID uuid.UUID, fn func(*connection.Connection) error) (*ConnectionResponse, error) {
	conn, err := s.connections.FindByID(ctx, tenantID, connectionID)
	if err != nil {
		return nil, err
	}
	if err := fn(conn); err != nil {
		return nil, err
	}
	if err := s.connections.Save(ctx, conn); err != nil {
		return nil, err
	}
	s.publishDomainEvents(ctx, conn)
	response := ToConnectionResponse(conn)
	return &response, nil
}

// publishDomainEvents publishes queued aggregate events; bus errors are
// logged by the bus, not propagated
func (s *ConnectionService) publishDomainEvents(ctx context.Context, conn *connection.Connection) {
	if s.eventPublisher == nil {
		return
	}
	events := conn.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
	conn.ClearDomainEvents()
}
