// Package conflict owns divergent-edit records: both sides of an integration
// changed the same record since the last successful sync, and something (a
// policy or a human) has to decide which version survives.
package conflict

import (
	"time"

	"github.com/google/uuid"

	"github.com/synchub/backend/internal/domain/connector"
	"github.com/synchub/backend/internal/domain/mapping"
	"github.com/synchub/backend/internal/domain/shared"
)

// ResolutionStrategy decides how a conflict is settled
type ResolutionStrategy string

// Resolution strategies
const (
	// StrategySourceWins applies the source snapshot wholesale
	StrategySourceWins ResolutionStrategy = "source_wins"
	// StrategyTargetWins keeps the target snapshot wholesale
	StrategyTargetWins ResolutionStrategy = "target_wins"
	// StrategyNewestWins applies whichever snapshot was modified last
	StrategyNewestWins ResolutionStrategy = "newest_wins"
	// StrategyOldestWins applies whichever snapshot was modified first
	StrategyOldestWins ResolutionStrategy = "oldest_wins"
	// StrategyMerge applies an operator-provided field-by-field merge
	StrategyMerge ResolutionStrategy = "merge"
	// StrategySkip ignores the conflict without writing either side
	StrategySkip ResolutionStrategy = "skip"
)

// IsValid checks if the strategy is valid
func (s ResolutionStrategy) IsValid() bool {
	switch s {
	case StrategySourceWins, StrategyTargetWins, StrategyNewestWins,
		StrategyOldestWins, StrategyMerge, StrategySkip:
		return true
	}
	return false
}

// String returns the string representation
func (s ResolutionStrategy) String() string {
	return string(s)
}

// StrategyForPolicy maps a mapping's automatic conflict policy to the
// resolution strategy applied at detection time. Manual policies have no
// automatic strategy (ok=false); the conflict waits for an operator.
func StrategyForPolicy(p mapping.ConflictPolicy) (ResolutionStrategy, bool) {
	switch p {
	case mapping.PolicySourceWins:
		return StrategySourceWins, true
	case mapping.PolicyTargetWins:
		return StrategyTargetWins, true
	case mapping.PolicyNewestWins:
		return StrategyNewestWins, true
	case mapping.PolicyOldestWins:
		return StrategyOldestWins, true
	}
	return "", false
}

// SystemActor marks resolutions applied automatically by the engine
const SystemActor = "system"

// Conflict holds both record snapshots and the diverging field names so a
// human can decide without re-fetching either side.
type Conflict struct {
	shared.TenantAggregateRoot
	ExecutionID  uuid.UUID
	MappingID    uuid.UUID
	ConnectionID uuid.UUID
	Entity       connector.EntityType
	// SourceRecordID and TargetRecordID are the identifiers on each side
	SourceRecordID string
	TargetRecordID string
	SourceSnapshot map[string]any
	TargetSnapshot map[string]any
	// SourceModifiedAt and TargetModifiedAt are the modification instants
	// that both postdate the sync watermark
	SourceModifiedAt  time.Time
	TargetModifiedAt  time.Time
	ConflictingFields []string
	IsResolved        bool
	IsIgnored         bool
	// ResolvedData is the payload the deferred write used (nil for skip)
	ResolvedData       map[string]any
	ResolutionStrategy ResolutionStrategy
	ResolutionNotes    string
	ResolvedBy         string
	ResolvedAt         *time.Time
}

// NewConflict records a detected divergence from one execution
func NewConflict(e executionRef, sourceRecordID, targetRecordID string, sourceSnapshot, targetSnapshot map[string]any, sourceModifiedAt, targetModifiedAt time.Time, fields []string) (*Conflict, error) {
	if len(fields) == 0 {
		return nil, ErrNoConflictingFields
	}
	return &Conflict{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(e.TenantID()),
		ExecutionID:         e.ExecutionID(),
		MappingID:           e.MappingID(),
		ConnectionID:        e.ConnectionID(),
		Entity:              e.Entity(),
		SourceRecordID:      sourceRecordID,
		TargetRecordID:      targetRecordID,
		SourceSnapshot:      sourceSnapshot,
		TargetSnapshot:      targetSnapshot,
		SourceModifiedAt:    sourceModifiedAt,
		TargetModifiedAt:    targetModifiedAt,
		ConflictingFields:   fields,
	}, nil
}

// executionRef decouples conflict creation from the sync package to avoid an
// import cycle; the engine passes an adapter over its execution.
type executionRef interface {
	TenantID() uuid.UUID
	ExecutionID() uuid.UUID
	MappingID() uuid.UUID
	ConnectionID() uuid.UUID
	Entity() connector.EntityType
}

// ExecutionRef is the plain-struct adapter implementing executionRef
type ExecutionRef struct {
	Tenant     uuid.UUID
	Execution  uuid.UUID
	Mapping    uuid.UUID
	Connection uuid.UUID
	EntityType connector.EntityType
}

// TenantID returns the tenant owning the execution
func (r ExecutionRef) TenantID() uuid.UUID { return r.Tenant }

// ExecutionID returns the execution that detected the conflict
func (r ExecutionRef) ExecutionID() uuid.UUID { return r.Execution }

// MappingID returns the mapping the record belongs to
func (r ExecutionRef) MappingID() uuid.UUID { return r.Mapping }

// ConnectionID returns the connection the record syncs through
func (r ExecutionRef) ConnectionID() uuid.UUID { return r.Connection }

// Entity returns the entity type of the conflicting record
func (r ExecutionRef) Entity() connector.EntityType { return r.EntityType }

// Resolution is the outcome of resolving a conflict: the payload for the
// deferred write, or none for skip
type Resolution struct {
	// Payload is the record to write; nil when nothing should be written
	Payload map[string]any
	// Write reports whether the engine must perform the deferred write
	Write bool
}

// Resolve settles the conflict with the given strategy. For merge,
// resolvedData is the operator's field-by-field result and is required.
// The caller performs the deferred write from the returned resolution and
// has already validated the strategy name.
func (c *Conflict) Resolve(strategy ResolutionStrategy, resolvedData map[string]any, notes, actor string, now time.Time) (*Resolution, error) {
	if c.IsResolved || c.IsIgnored {
		return nil, ErrConflictAlreadyResolved
	}
	if !strategy.IsValid() {
		return nil, ErrUnknownStrategy
	}

	var res Resolution
	switch strategy {
	case StrategySourceWins:
		res = Resolution{Payload: c.SourceSnapshot, Write: true}
	case StrategyTargetWins:
		res = Resolution{Payload: c.TargetSnapshot, Write: true}
	case StrategyNewestWins:
		if c.SourceModifiedAt.After(c.TargetModifiedAt) {
			res = Resolution{Payload: c.SourceSnapshot, Write: true}
		} else {
			res = Resolution{Payload: c.TargetSnapshot, Write: true}
		}
	case StrategyOldestWins:
		if c.SourceModifiedAt.Before(c.TargetModifiedAt) {
			res = Resolution{Payload: c.SourceSnapshot, Write: true}
		} else {
			res = Resolution{Payload: c.TargetSnapshot, Write: true}
		}
	case StrategyMerge:
		if len(resolvedData) == 0 {
			return nil, ErrMergeDataRequired
		}
		res = Resolution{Payload: resolvedData, Write: true}
	case StrategySkip:
		c.IsIgnored = true
		res = Resolution{}
	}

	c.IsResolved = true
	c.ResolvedData = res.Payload
	c.ResolutionStrategy = strategy
	c.ResolutionNotes = notes
	c.ResolvedBy = actor
	c.ResolvedAt = &now
	c.Touch()
	c.AddDomainEvent(NewResolvedEvent(c))
	return &res, nil
}

// Ignore marks the conflict ignored without writing either side.
// Shorthand for resolving with the skip strategy.
func (c *Conflict) Ignore(actor, notes string, now time.Time) error {
	_, err := c.Resolve(StrategySkip, nil, notes, actor, now)
	return err
}
