// Package mapping provides the application services for managing field-level
// data mappings between external entities and hub entities.
package mapping

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/synchub/backend/internal/domain/connection"
	"github.com/synchub/backend/internal/domain/connector"
	"github.com/synchub/backend/internal/domain/mapping"
	syncdomain "github.com/synchub/backend/internal/domain/sync"
	"github.com/synchub/backend/internal/domain/shared"
)

// MappingService handles data mapping operations
type MappingService struct {
	mappings    mapping.Repository
	connections connection.Reader
	configs     syncdomain.ConfigRepository
	registry    *connector.Registry
}

// NewMappingService creates a new MappingService
func NewMappingService(
	mappings mapping.Repository,
	connections connection.Reader,
	configs syncdomain.ConfigRepository,
	registry *connector.Registry,
) *MappingService {
	return &MappingService{
		mappings:    mappings,
		connections: connections,
		configs:     configs,
		registry:    registry,
	}
}

// Transforms returns the names of the registered field transforms
func (s *MappingService) Transforms() []string {
	return mapping.TransformNames()
}

// Create validates the mapping against the connection's connector
// capabilities and persists it
func (s *MappingService) Create(ctx context.Context, tenantID uuid.UUID, req CreateMappingRequest) (*MappingResponse, error) {
	conn, err := s.connections.FindByID(ctx, tenantID, req.ConnectionID)
	if err != nil {
		return nil, err
	}
	def, err := s.registry.Definition(conn.ConnectorType)
	if err != nil {
		return nil, err
	}

	sourceEntity := connector.EntityType(req.SourceEntity)
	targetEntity := connector.EntityType(req.TargetEntity)
	direction := connector.Direction(req.Direction)

	// The remote side of the mapping is always SourceEntity for inbound and
	// TargetEntity for outbound; check both against the connector since a
	// bidirectional mapping uses each in turn.
	for _, entity := range []connector.EntityType{sourceEntity, targetEntity} {
		if !def.SupportsEntity(entity) {
			return nil, fmt.Errorf("%w: %s does not sync %s", connector.ErrEntityNotSupported, def.Type, entity)
		}
	}
	if !def.SupportsDirection(direction) {
		return nil, fmt.Errorf("%w: %s does not sync %s", connector.ErrDirectionNotSupported, def.Type, direction)
	}

	m, err := mapping.NewDataMapping(tenantID, conn.ID, req.Name, sourceEntity, targetEntity, direction, toDomainFields(req.Fields), req.KeyFields)
	if err != nil {
		return nil, err
	}
	if req.SourceFilter != nil || req.TargetFilter != nil {
		m.SetFilters(req.SourceFilter, req.TargetFilter)
	}
	if req.ConflictPolicy != "" {
		if err := m.SetConflictPolicy(mapping.ConflictPolicy(req.ConflictPolicy)); err != nil {
			return nil, err
		}
	}
	if req.BatchSize != nil {
		if err := m.SetBatchSize(*req.BatchSize); err != nil {
			return nil, err
		}
	}

	if err := s.mappings.Save(ctx, m); err != nil {
		return nil, err
	}
	response := ToMappingResponse(m)
	return &response, nil
}

// GetByID retrieves a mapping by ID
func (s *MappingService) GetByID(ctx context.Context, tenantID, mappingID uuid.UUID) (*MappingResponse, error) {
	m, err := s.mappings.FindByID(ctx, tenantID, mappingID)
	if err != nil {
		return nil, err
	}
	response := ToMappingResponse(m)
	return &response, nil
}

// List retrieves mappings with filtering and pagination
func (s *MappingService) List(ctx context.Context, tenantID uuid.UUID, filter MappingListFilter) ([]MappingResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	domainFilter := mapping.Filter{
		ConnectionID: filter.ConnectionID,
		IsActive:     filter.IsActive,
		Page:         filter.Page,
		PageSize:     filter.PageSize,
	}
	if filter.Direction != "" {
		d := connector.Direction(filter.Direction)
		domainFilter.Direction = &d
	}
	if filter.SourceEntity != "" {
		e := connector.EntityType(filter.SourceEntity)
		domainFilter.SourceEntity = &e
	}

	mappings, err := s.mappings.FindAll(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.mappings.Count(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToMappingResponses(mappings), total, nil
}

// Update changes the mapping's mutable settings
func (s *MappingService) Update(ctx context.Context, tenantID, mappingID uuid.UUID, req UpdateMappingRequest) (*MappingResponse, error) {
	m, err := s.mappings.FindByID(ctx, tenantID, mappingID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, mapping.ErrNameRequired
		}
		m.Name = *req.Name
		m.Touch()
	}
	if req.Fields != nil {
		if err := m.UpdateFields(toDomainFields(req.Fields)); err != nil {
			return nil, err
		}
	}
	if req.KeyFields != nil {
		if err := m.SetKeyFields(req.KeyFields); err != nil {
			return nil, err
		}
	}
	if req.SourceFilter != nil || req.TargetFilter != nil {
		source := m.SourceFilter
		target := m.TargetFilter
		if req.SourceFilter != nil {
			source = req.SourceFilter
		}
		if req.TargetFilter != nil {
			target = req.TargetFilter
		}
		m.SetFilters(source, target)
	}
	if req.ConflictPolicy != nil {
		if err := m.SetConflictPolicy(mapping.ConflictPolicy(*req.ConflictPolicy)); err != nil {
			return nil, err
		}
	}
	if req.BatchSize != nil {
		if err := m.SetBatchSize(*req.BatchSize); err != nil {
			return nil, err
		}
	}
	if req.IsActive != nil {
		if *req.IsActive {
			m.Activate()
		} else {
			m.Deactivate()
		}
	}

	if err := s.mappings.Save(ctx, m); err != nil {
		return nil, err
	}
	response := ToMappingResponse(m)
	return &response, nil
}

// Delete removes a mapping. Mappings referenced by a sync configuration
// cannot be deleted; deactivate the configuration first.
func (s *MappingService) Delete(ctx context.Context, tenantID, mappingID uuid.UUID) error {
	if _, err := s.mappings.FindByID(ctx, tenantID, mappingID); err != nil {
		return err
	}

	id := mappingID
	count, err := s.configs.Count(ctx, tenantID, syncdomain.ConfigFilter{MappingID: &id})
	if err != nil {
		return err
	}
	if count > 0 {
		return shared.NewDomainError("MAPPING_IN_USE", "Mapping is referenced by sync configurations")
	}

	return s.mappings.Delete(ctx, tenantID, mappingID)
}

// Preview applies the mapping to a sample source record without touching
// either system
func (s *MappingService) Preview(ctx context.Context, tenantID, mappingID uuid.UUID, req PreviewMappingRequest) (*PreviewMappingResponse, error) {
	m, err := s.mappings.FindByID(ctx, tenantID, mappingID)
	if err != nil {
		return nil, err
	}

	applied, err := m.ApplyToRecord(req.Record)
	if err != nil {
		return nil, err
	}

	resp := &PreviewMappingResponse{
		Record:          applied.Record,
		MissingRequired: applied.MissingRequired,
	}
	if !applied.Failed() {
		keys, ok := m.KeyValues(applied.Record)
		resp.KeyValues = keys
		resp.Matchable = ok
	}
	return resp, nil
}
