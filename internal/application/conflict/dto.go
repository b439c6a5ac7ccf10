package conflict

import (
	"time"

	"github.com/google/uuid"

	"github.com/synchub/backend/internal/domain/conflict"
)

// ResolveConflictRequest is the request to settle a conflict
type ResolveConflictRequest struct {
	Strategy     string         `json:"strategy" binding:"required,oneof=source_wins target_wins newest_wins oldest_wins merge skip"`
	ResolvedData map[string]any `json:"resolved_data"`
	Notes        string         `json:"notes" binding:"omitempty,max=1000"`
}

// IgnoreConflictRequest is the request to ignore a conflict
type IgnoreConflictRequest struct {
	Notes string `json:"notes" binding:"omitempty,max=1000"`
}

// ConflictResponse is the conflict representation with both snapshots
type ConflictResponse struct {
	ID                 uuid.UUID      `json:"id"`
	TenantID           uuid.UUID      `json:"tenant_id"`
	ExecutionID        uuid.UUID      `json:"execution_id"`
	MappingID          uuid.UUID      `json:"mapping_id"`
	ConnectionID       uuid.UUID      `json:"connection_id"`
	Entity             string         `json:"entity"`
	SourceRecordID     string         `json:"source_record_id"`
	TargetRecordID     string         `json:"target_record_id"`
	SourceSnapshot     map[string]any `json:"source_snapshot"`
	TargetSnapshot     map[string]any `json:"target_snapshot"`
	SourceModifiedAt   time.Time      `json:"source_modified_at"`
	TargetModifiedAt   time.Time      `json:"target_modified_at"`
	ConflictingFields  []string       `json:"conflicting_fields"`
	IsResolved         bool           `json:"is_resolved"`
	IsIgnored          bool           `json:"is_ignored"`
	ResolvedData       map[string]any `json:"resolved_data,omitempty"`
	ResolutionStrategy string         `json:"resolution_strategy,omitempty"`
	ResolutionNotes    string         `json:"resolution_notes,omitempty"`
	ResolvedBy         string         `json:"resolved_by,omitempty"`
	ResolvedAt         *time.Time     `json:"resolved_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}

// ConflictListFilter carries the query parameters for conflict listing
type ConflictListFilter struct {
	ExecutionID  *uuid.UUID `form:"execution_id"`
	MappingID    *uuid.UUID `form:"mapping_id"`
	ConnectionID *uuid.UUID `form:"connection_id"`
	Entity       string     `form:"entity" binding:"omitempty"`
	IsResolved   *bool      `form:"is_resolved"`
	IsIgnored    *bool      `form:"is_ignored"`
	Page         int        `form:"page" binding:"omitempty,min=1"`
	PageSize     int        `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// MappingConflictCount is one row of the open-conflict triage summary
type MappingConflictCount struct {
	MappingID  uuid.UUID `json:"mapping_id"`
	Unresolved int64     `json:"unresolved"`
}

// ToConflictResponse converts a conflict to its response representation
func ToConflictResponse(c *conflict.Conflict) *ConflictResponse {
	return &ConflictResponse{
		ID:                 c.ID,
		TenantID:           c.TenantID,
		ExecutionID:        c.ExecutionID,
		MappingID:          c.MappingID,
		ConnectionID:       c.ConnectionID,
		Entity:             string(c.Entity),
		SourceRecordID:     c.SourceRecordID,
		TargetRecordID:     c.TargetRecordID,
		SourceSnapshot:     c.SourceSnapshot,
		TargetSnapshot:     c.TargetSnapshot,
		SourceModifiedAt:   c.SourceModifiedAt,
		TargetModifiedAt:   c.TargetModifiedAt,
		ConflictingFields:  c.ConflictingFields,
		IsResolved:         c.IsResolved,
		IsIgnored:          c.IsIgnored,
		ResolvedData:       c.ResolvedData,
		ResolutionStrategy: string(c.ResolutionStrategy),
		ResolutionNotes:    c.ResolutionNotes,
		ResolvedBy:         c.ResolvedBy,
		ResolvedAt:         c.ResolvedAt,
		CreatedAt:          c.CreatedAt,
	}
}

// ToConflictResponses converts a list of conflicts
func ToConflictResponses(conflicts []*conflict.Conflict) []ConflictResponse {
	responses := make([]ConflictResponse, len(conflicts))
	for i, c := range conflicts {
		responses[i] = *ToConflictResponse(c)
	}
	return responses
}
