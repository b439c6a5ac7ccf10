package conflict

import (
	"github.com/synchub/backend/internal/domain/shared"
)

// Event types emitted by the conflict manager
const (
	EventRaised   = "conflict.raised"
	EventResolved = "conflict.resolved"
)

// RaisedEvent is emitted when the execution engine detects a new conflict
type RaisedEvent struct {
	shared.BaseDomainEvent
	ExecutionID       string   `json:"execution_id"`
	MappingID         string   `json:"mapping_id"`
	ConnectionID      string   `json:"connection_id"`
	Entity            string   `json:"entity"`
	SourceRecordID    string   `json:"source_record_id"`
	TargetRecordID    string   `json:"target_record_id"`
	ConflictingFields []string `json:"conflicting_fields"`
}

// NewRaisedEvent creates the detection event for a conflict
func NewRaisedEvent(c *Conflict) *RaisedEvent {
	return &RaisedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventRaised, "SyncConflict", c.ID, c.TenantID),
		ExecutionID:       c.ExecutionID.String(),
		MappingID:         c.MappingID.String(),
		ConnectionID:      c.ConnectionID.String(),
		Entity:            c.Entity.String(),
		SourceRecordID:    c.SourceRecordID,
		TargetRecordID:    c.TargetRecordID,
		ConflictingFields: c.ConflictingFields,
	}
}

// ResolvedEvent is emitted when a conflict is settled, automatically or by
// an operator
type ResolvedEvent struct {
	shared.BaseDomainEvent
	MappingID  string             `json:"mapping_id"`
	Entity     string             `json:"entity"`
	Strategy   ResolutionStrategy `json:"strategy"`
	ResolvedBy string             `json:"resolved_by"`
	Ignored    bool               `json:"ignored"`
}

// NewResolvedEvent creates the resolution event for a conflict
func NewResolvedEvent(c *Conflict) *ResolvedEvent {
	return &ResolvedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventResolved, "SyncConflict", c.ID, c.TenantID),
		MappingID:       c.MappingID.String(),
		Entity:          c.Entity.String(),
		Strategy:        c.ResolutionStrategy,
		ResolvedBy:      c.ResolvedBy,
		Ignored:         c.IsIgnored,
	}
}
