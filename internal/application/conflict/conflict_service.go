// Package conflict provides the application service for conflict triage:
// listing detected divergences and settling them, including the deferred
// write the resolution calls for.
package conflict

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/synchub/backend/internal/domain/conflict"
	"github.com/synchub/backend/internal/domain/connection"
	"github.com/synchub/backend/internal/domain/connector"
	"github.com/synchub/backend/internal/domain/shared"
	syncdomain "github.com/synchub/backend/internal/domain/sync"
	"github.com/synchub/backend/internal/infrastructure/telemetry"
)

// ConflictService handles conflict triage and resolution
type ConflictService struct {
	conflicts   conflict.Repository
	executions  syncdomain.ExecutionRepository
	connections connection.Reader
	secrets     connection.SecretStore
	registry    *connector.Registry
	// hub is the internal side of the deferred write; inbound conflicts
	// write here, outbound ones write to the remote system
	hub            connector.Connector
	eventPublisher shared.EventPublisher
	now            func() time.Time
}

// NewConflictService creates a new conflict service
func NewConflictService(
	conflicts conflict.Repository,
	executions syncdomain.ExecutionRepository,
	connections connection.Reader,
	secrets connection.SecretStore,
	registry *connector.Registry,
	hub connector.Connector,
	eventPublisher shared.EventPublisher,
) *ConflictService {
	return &ConflictService{
		conflicts:      conflicts,
		executions:     executions,
		connections:    connections,
		secrets:        secrets,
		registry:       registry,
		hub:            hub,
		eventPublisher: eventPublisher,
		now:            time.Now,
	}
}

// GetByID retrieves a conflict by ID
func (s *ConflictService) GetByID(ctx context.Context, tenantID, conflictID uuid.UUID) (*ConflictResponse, error) {
	c, err := s.conflicts.FindByID(ctx, tenantID, conflictID)
	if err != nil {
		return nil, err
	}
	return ToConflictResponse(c), nil
}

// List retrieves conflicts matching the filter, newest first
func (s *ConflictService) List(ctx context.Context, tenantID uuid.UUID, filter ConflictListFilter) ([]ConflictResponse, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}

	domainFilter := conflict.Filter{
		ExecutionID:  filter.ExecutionID,
		MappingID:    filter.MappingID,
		ConnectionID: filter.ConnectionID,
		IsResolved:   filter.IsResolved,
		IsIgnored:    filter.IsIgnored,
		Page:         filter.Page,
		PageSize:     filter.PageSize,
	}
	if filter.Entity != "" {
		entity := connector.EntityType(filter.Entity)
		domainFilter.Entity = &entity
	}

	conflicts, err := s.conflicts.FindAll(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.conflicts.Count(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToConflictResponses(conflicts), total, nil
}

// Summary returns the open conflict count per mapping for triage views
func (s *ConflictService) Summary(ctx context.Context, tenantID uuid.UUID) ([]MappingConflictCount, error) {
	counts, err := s.conflicts.CountUnresolvedByMapping(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	summary := make([]MappingConflictCount, 0, len(counts))
	for mappingID, unresolved := range counts {
		summary = append(summary, MappingConflictCount{MappingID: mappingID, Unresolved: unresolved})
	}
	return summary, nil
}

// Resolve settles a conflict with the requested strategy and performs the
// deferred write the resolution calls for. The write targets the same side
// the detecting execution wrote to; a failed write leaves the conflict
// unresolved.
func (s *ConflictService) Resolve(ctx context.Context, tenantID, conflictID uuid.UUID, actor string, req ResolveConflictRequest) (*ConflictResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "conflict", "resolve")
	defer span.End()

	c, err := s.conflicts.FindByID(ctx, tenantID, conflictID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if actor == "" {
		actor = conflict.SystemActor
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrEntityType, string(c.Entity),
		"strategy", req.Strategy,
	)

	resolution, err := c.Resolve(conflict.ResolutionStrategy(req.Strategy), req.ResolvedData, req.Notes, actor, s.now())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if resolution.Write {
		if err := s.performWrite(ctx, c, resolution.Payload); err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("resolution write: %w", err)
		}
	}

	if err := s.conflicts.Save(ctx, c); err != nil {
		return nil, err
	}
	s.publishDomainEvents(ctx, c)
	telemetry.SetOK(span)
	return ToConflictResponse(c), nil
}

// Ignore marks a conflict ignored; neither side is written
func (s *ConflictService) Ignore(ctx context.Context, tenantID, conflictID uuid.UUID, actor string, req IgnoreConflictRequest) (*ConflictResponse, error) {
	c, err := s.conflicts.FindByID(ctx, tenantID, conflictID)
	if err != nil {
		return nil, err
	}
	if actor == "" {
		actor = conflict.SystemActor
	}

	if err := c.Ignore(actor, req.Notes, s.now()); err != nil {
		return nil, err
	}
	if err := s.conflicts.Save(ctx, c); err != nil {
		return nil, err
	}
	s.publishDomainEvents(ctx, c)
	return ToConflictResponse(c), nil
}

// performWrite applies the winning payload to the target side of the
// detecting execution: the hub for inbound syncs, the remote system for
// outbound ones. Credentials are resolved just-in-time and never stored.
func (s *ConflictService) performWrite(ctx context.Context, c *conflict.Conflict, payload map[string]any) error {
	exec, err := s.executions.FindByID(ctx, c.TenantID, c.ExecutionID)
	if err != nil {
		return err
	}
	conn, err := s.connections.FindByID(ctx, c.TenantID, c.ConnectionID)
	if err != nil {
		return err
	}

	tgt := s.hub
	info := connector.ConnectionInfo{
		ConnectionID: conn.ID,
		TenantID:     conn.TenantID,
	}
	if exec.Direction == connector.DirectionOutbound {
		remote, err := s.registry.Connector(conn.ConnectorType)
		if err != nil {
			return err
		}
		creds, err := s.secrets.Get(ctx, conn.TenantID, conn.CredentialRef)
		if err != nil {
			return fmt.Errorf("resolve credentials: %w", err)
		}
		tgt = remote
		info = connector.ConnectionInfo{
			ConnectionID: conn.ID,
			TenantID:     conn.TenantID,
			BaseURL:      conn.BaseURL,
			APIVersion:   conn.APIVersion,
			AuthType:     conn.AuthType,
			Credentials:  creds,
		}
	}

	_, err = tgt.Write(ctx, info, connector.WriteRequest{
		Entity:     c.Entity,
		ExternalID: c.TargetRecordID,
		Data:       payload,
	})
	return err
}

func (s *ConflictService) publishDomainEvents(ctx context.Context, c *conflict.Conflict) {
	if s.eventPublisher == nil {
		return
	}
	events := c.GetDomainEvents()
	if len(events) > 0 {
		_ = s.eventPublisher.Publish(ctx, events...)
	}
	c.ClearDomainEvents()
}
