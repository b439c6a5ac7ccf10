// Package testutil provides in-memory repositories, fake connectors, and
// event capture helpers shared by unit tests across packages.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synchub/backend/internal/domain/conflict"
	"github.com/synchub/backend/internal/domain/connection"
	"github.com/synchub/backend/internal/domain/connector"
	"github.com/synchub/backend/internal/domain/mapping"
	"github.com/synchub/backend/internal/domain/shared"
	syncdomain "github.com/synchub/backend/internal/domain/sync"
	"github.com/synchub/backend/internal/infrastructure/secrets"
)

// ---------------------------------------------------------------------------
// FakeConnector
// ---------------------------------------------------------------------------

// FakeConnector is an in-memory implementation of the connector port.
// It backs both sides of engine tests: seed records per entity, script
// errors, and inspect the writes it received.
type FakeConnector struct {
	mu      sync.Mutex
	typ     connector.Type
	records map[connector.EntityType][]connector.Record

	ProbeErr error
	FetchErr error
	WriteErr error
	// WriteErrFor fails writes for specific external IDs only
	WriteErrFor map[string]error

	writes []connector.WriteRequest
	Now    func() time.Time
}

// NewFakeConnector creates an empty fake for the given connector type
func NewFakeConnector(typ connector.Type) *FakeConnector {
	return &FakeConnector{
		typ:     typ,
		records: make(map[connector.EntityType][]connector.Record),
		Now:     time.Now,
	}
}

// Seed replaces the stored records for an entity
func (f *FakeConnector) Seed(entity connector.EntityType, records ...connector.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[entity] = append([]connector.Record(nil), records...)
}

// Records returns the stored records for an entity
func (f *FakeConnector) Records(entity connector.EntityType) []connector.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]connector.Record(nil), f.records[entity]...)
}

// Writes returns every write request received, in order
func (f *FakeConnector) Writes() []connector.WriteRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]connector.WriteRequest(nil), f.writes...)
}

// Type returns the connector type
func (f *FakeConnector) Type() connector.Type { return f.typ }

// Probe reports success unless ProbeErr is scripted
func (f *FakeConnector) Probe(_ context.Context, _ connector.ConnectionInfo) (*connector.ProbeResult, error) {
	if f.ProbeErr != nil {
		return &connector.ProbeResult{Success: false, Message: f.ProbeErr.Error()}, f.ProbeErr
	}
	return &connector.ProbeResult{Success: true, Version: "fake", Message: "ok", LatencyMs: 1}, nil
}

// Fetch pages through the seeded records, honoring delta bound and filter
func (f *FakeConnector) Fetch(_ context.Context, _ connector.ConnectionInfo, req connector.FetchRequest) (*connector.FetchPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FetchErr != nil {
		return nil, f.FetchErr
	}

	var matched []connector.Record
	for _, rec := range f.records[req.Entity] {
		if req.DeltaSince != nil && !rec.ModifiedAt.After(*req.DeltaSince) {
			continue
		}
		if !matchesFilter(rec.Data, req.Filter) {
			continue
		}
		matched = append(matched, rec)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].ModifiedAt.Before(matched[j].ModifiedAt)
	})

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}

	return &connector.FetchPage{
		Records: append([]connector.Record(nil), matched[start:end]...),
		Total:   len(matched),
		HasMore: end < len(matched),
	}, nil
}

// Write upserts into the seeded records and remembers the request
func (f *FakeConnector) Write(_ context.Context, _ connector.ConnectionInfo, req connector.WriteRequest) (*connector.WriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.WriteErr != nil {
		return nil, f.WriteErr
	}
	if err, bad := f.WriteErrFor[req.ExternalID]; bad {
		return nil, err
	}

	f.writes = append(f.writes, req)

	if req.ExternalID == "" {
		rec := connector.Record{
			ExternalID: uuid.NewString(),
			ModifiedAt: f.Now(),
			Data:       req.Data,
		}
		f.records[req.Entity] = append(f.records[req.Entity], rec)
		return &connector.WriteResult{ExternalID: rec.ExternalID, Created: true}, nil
	}

	for i := range f.records[req.Entity] {
		if f.records[req.Entity][i].ExternalID == req.ExternalID {
			f.records[req.Entity][i].Data = req.Data
			f.records[req.Entity][i].ModifiedAt = f.Now()
			return &connector.WriteResult{ExternalID: req.ExternalID, Created: false}, nil
		}
	}
	rec := connector.Record{ExternalID: req.ExternalID, ModifiedAt: f.Now(), Data: req.Data}
	f.records[req.Entity] = append(f.records[req.Entity], rec)
	return &connector.WriteResult{ExternalID: req.ExternalID, Created: true}, nil
}

func matchesFilter(data, filter map[string]any) bool {
	for k, v := range filter {
		dv, ok := data[k]
		if !ok || fmt.Sprint(dv) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}

var _ connector.Connector = (*FakeConnector)(nil)

// ---------------------------------------------------------------------------
// MemoryConfigRepo
// ---------------------------------------------------------------------------

// MemoryConfigRepo is an in-memory sync.ConfigRepository
type MemoryConfigRepo struct {
	mu      sync.Mutex
	configs map[uuid.UUID]*syncdomain.SyncConfiguration
}

// NewMemoryConfigRepo creates an empty config repository
func NewMemoryConfigRepo() *MemoryConfigRepo {
	return &MemoryConfigRepo{configs: make(map[uuid.UUID]*syncdomain.SyncConfiguration)}
}

func (r *MemoryConfigRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*syncdomain.SyncConfiguration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[id]
	if !ok || cfg.TenantID != tenantID {
		return nil, syncdomain.ErrConfigNotFound
	}
	return cfg, nil
}

func (r *MemoryConfigRepo) FindAll(_ context.Context, tenantID uuid.UUID, filter syncdomain.ConfigFilter) ([]*syncdomain.SyncConfiguration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*syncdomain.SyncConfiguration
	for _, cfg := range r.configs {
		if cfg.TenantID != tenantID {
			continue
		}
		if filter.MappingID != nil && cfg.MappingID != *filter.MappingID {
			continue
		}
		if filter.ConnectionID != nil && cfg.ConnectionID != *filter.ConnectionID {
			continue
		}
		out = append(out, cfg)
	}
	return out, nil
}

func (r *MemoryConfigRepo) Count(ctx context.Context, tenantID uuid.UUID, filter syncdomain.ConfigFilter) (int64, error) {
	all, _ := r.FindAll(ctx, tenantID, filter)
	return int64(len(all)), nil
}

func (r *MemoryConfigRepo) FindDue(_ context.Context, now time.Time, limit int) ([]*syncdomain.SyncConfiguration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*syncdomain.SyncConfiguration
	for _, cfg := range r.configs {
		if cfg.IsDue(now) {
			due = append(due, cfg)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextRunAt.Before(*due[j].NextRunAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *MemoryConfigRepo) Save(_ context.Context, cfg *syncdomain.SyncConfiguration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.ID] = cfg
	return nil
}

func (r *MemoryConfigRepo) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[id]
	if !ok || cfg.TenantID != tenantID {
		return syncdomain.ErrConfigNotFound
	}
	delete(r.configs, id)
	return nil
}

var _ syncdomain.ConfigRepository = (*MemoryConfigRepo)(nil)

// ---------------------------------------------------------------------------
// MemoryExecutionRepo
// ---------------------------------------------------------------------------

type executionLock struct {
	executionID uuid.UUID
	expiresAt   time.Time
}

// MemoryExecutionRepo is an in-memory sync.ExecutionRepository with real
// lock semantics, so concurrency tests exercise the overlap invariant.
type MemoryExecutionRepo struct {
	mu         sync.Mutex
	executions map[uuid.UUID]*syncdomain.SyncExecution
	locks      map[uuid.UUID]executionLock
	sequences  map[uuid.UUID]int64
	progress   map[uuid.UUID][]int
	Now        func() time.Time
}

// NewMemoryExecutionRepo creates an empty execution repository
func NewMemoryExecutionRepo() *MemoryExecutionRepo {
	return &MemoryExecutionRepo{
		executions: make(map[uuid.UUID]*syncdomain.SyncExecution),
		locks:      make(map[uuid.UUID]executionLock),
		sequences:  make(map[uuid.UUID]int64),
		progress:   make(map[uuid.UUID][]int),
		Now:        time.Now,
	}
}

// ProgressHistory returns every progress_percent value persisted for one
// execution, in write order
func (r *MemoryExecutionRepo) ProgressHistory(id uuid.UUID) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.progress[id]...)
}

func (r *MemoryExecutionRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*syncdomain.SyncExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.executions[id]
	if !ok || e.TenantID != tenantID {
		return nil, syncdomain.ErrExecutionNotFound
	}
	return e, nil
}

func (r *MemoryExecutionRepo) FindAll(_ context.Context, tenantID uuid.UUID, filter syncdomain.ExecutionFilter) ([]*syncdomain.SyncExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*syncdomain.SyncExecution
	for _, e := range r.executions {
		if e.TenantID != tenantID {
			continue
		}
		if filter.ConfigID != nil && (e.ConfigID == nil || *e.ConfigID != *filter.ConfigID) {
			continue
		}
		if filter.MappingID != nil && e.MappingID != *filter.MappingID {
			continue
		}
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryExecutionRepo) Count(ctx context.Context, tenantID uuid.UUID, filter syncdomain.ExecutionFilter) (int64, error) {
	all, _ := r.FindAll(ctx, tenantID, filter)
	return int64(len(all)), nil
}

func (r *MemoryExecutionRepo) Create(_ context.Context, e *syncdomain.SyncExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ConfigID != nil {
		r.sequences[*e.ConfigID]++
		e.ExecutionNumber = r.sequences[*e.ConfigID]
	}
	r.executions[e.ID] = e
	return nil
}

func (r *MemoryExecutionRepo) Update(_ context.Context, e *syncdomain.SyncExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executions[e.ID] = e
	return nil
}

func (r *MemoryExecutionRepo) UpdateProgress(_ context.Context, e *syncdomain.SyncExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executions[e.ID] = e
	r.progress[e.ID] = append(r.progress[e.ID], e.ProgressPercent)
	return nil
}

func (r *MemoryExecutionRepo) RequestCancel(_ context.Context, tenantID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.executions[id]
	if !ok || e.TenantID != tenantID {
		return syncdomain.ErrExecutionNotFound
	}
	return e.RequestCancel()
}

func (r *MemoryExecutionRepo) IsCancelRequested(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.executions[id]
	if !ok {
		return false, syncdomain.ErrExecutionNotFound
	}
	return e.CancelRequested, nil
}

func (r *MemoryExecutionRepo) AcquireLock(_ context.Context, lockKey, executionID uuid.UUID, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.Now()
	if held, ok := r.locks[lockKey]; ok && held.expiresAt.After(now) && held.executionID != executionID {
		return syncdomain.ErrExecutionOverlap
	}
	r.locks[lockKey] = executionLock{executionID: executionID, expiresAt: now.Add(ttl)}
	return nil
}

func (r *MemoryExecutionRepo) ReleaseLock(_ context.Context, lockKey, executionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if held, ok := r.locks[lockKey]; ok && held.executionID == executionID {
		delete(r.locks, lockKey)
	}
	return nil
}

func (r *MemoryExecutionRepo) FindTerminalBefore(_ context.Context, cutoff time.Time, limit int) ([]*syncdomain.SyncExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*syncdomain.SyncExecution
	for _, e := range r.executions {
		if !e.Status.IsTerminal() || e.FinishedAt == nil || !e.FinishedAt.Before(cutoff) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FinishedAt.Before(*out[j].FinishedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryExecutionRepo) DeleteTerminalBefore(_ context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for id, e := range r.executions {
		if !e.Status.IsTerminal() || e.FinishedAt == nil || !e.FinishedAt.Before(cutoff) {
			continue
		}
		ids = append(ids, id)
		if limit > 0 && len(ids) >= limit {
			break
		}
	}
	for _, id := range ids {
		delete(r.executions, id)
	}
	return ids, nil
}

var _ syncdomain.ExecutionRepository = (*MemoryExecutionRepo)(nil)

// ---------------------------------------------------------------------------
// MemoryLogRepo
// ---------------------------------------------------------------------------

// MemoryLogRepo is an in-memory sync.LogRepository
type MemoryLogRepo struct {
	mu   sync.Mutex
	logs []*syncdomain.ExecutionLog
}

// NewMemoryLogRepo creates an empty log repository
func NewMemoryLogRepo() *MemoryLogRepo {
	return &MemoryLogRepo{}
}

func (r *MemoryLogRepo) Append(_ context.Context, logs []*syncdomain.ExecutionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, logs...)
	return nil
}

func (r *MemoryLogRepo) FindByExecution(_ context.Context, tenantID, executionID uuid.UUID, level *syncdomain.LogLevel, page, pageSize int) ([]*syncdomain.ExecutionLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*syncdomain.ExecutionLog
	for _, l := range r.logs {
		if l.TenantID != tenantID || l.ExecutionID != executionID {
			continue
		}
		if level != nil && l.Level != *level {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *MemoryLogRepo) DeleteByExecutions(_ context.Context, executionIDs []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	drop := make(map[uuid.UUID]bool, len(executionIDs))
	for _, id := range executionIDs {
		drop[id] = true
	}
	kept := r.logs[:0]
	for _, l := range r.logs {
		if !drop[l.ExecutionID] {
			kept = append(kept, l)
		}
	}
	r.logs = kept
	return nil
}

var _ syncdomain.LogRepository = (*MemoryLogRepo)(nil)

// ---------------------------------------------------------------------------
// MemoryConnectionRepo
// ---------------------------------------------------------------------------

// MemoryConnectionRepo is an in-memory connection.Repository
type MemoryConnectionRepo struct {
	mu          sync.Mutex
	connections map[uuid.UUID]*connection.Connection
}

// NewMemoryConnectionRepo creates an empty connection repository
func NewMemoryConnectionRepo() *MemoryConnectionRepo {
	return &MemoryConnectionRepo{connections: make(map[uuid.UUID]*connection.Connection)}
}

func (r *MemoryConnectionRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*connection.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.connections[id]
	if !ok || c.TenantID != tenantID {
		return nil, connection.ErrConnectionNotFound
	}
	return c, nil
}

func (r *MemoryConnectionRepo) FindByCode(_ context.Context, tenantID uuid.UUID, code string) (*connection.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.connections {
		if c.TenantID == tenantID && c.Code == code {
			return c, nil
		}
	}
	return nil, connection.ErrConnectionNotFound
}

func (r *MemoryConnectionRepo) FindAll(_ context.Context, tenantID uuid.UUID, filter connection.Filter) ([]*connection.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*connection.Connection
	for _, c := range r.connections {
		if c.TenantID != tenantID {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		if filter.ConnectorType != nil && c.ConnectorType != *filter.ConnectorType {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *MemoryConnectionRepo) Count(ctx context.Context, tenantID uuid.UUID, filter connection.Filter) (int64, error) {
	all, _ := r.FindAll(ctx, tenantID, filter)
	return int64(len(all)), nil
}

func (r *MemoryConnectionRepo) FindRateLimitedBefore(_ context.Context, now time.Time) ([]*connection.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*connection.Connection
	for _, c := range r.connections {
		if c.Status == connection.StatusRateLimited && c.RateLimitedUntil != nil && !c.RateLimitedUntil.After(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *MemoryConnectionRepo) Save(_ context.Context, c *connection.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[c.ID] = c
	return nil
}

func (r *MemoryConnectionRepo) RecordOutcome(_ context.Context, id uuid.UUID, success bool, latencyMs int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.connections[id]
	if !ok {
		return connection.ErrConnectionNotFound
	}
	if success {
		c.RecordSuccess(latencyMs)
	} else {
		c.RecordFailure(latencyMs)
	}
	return nil
}

var _ connection.Repository = (*MemoryConnectionRepo)(nil)

// ---------------------------------------------------------------------------
// MemoryConflictRepo
// ---------------------------------------------------------------------------

// MemoryConflictRepo is an in-memory conflict.Repository
type MemoryConflictRepo struct {
	mu        sync.Mutex
	conflicts map[uuid.UUID]*conflict.Conflict
}

// NewMemoryConflictRepo creates an empty conflict repository
func NewMemoryConflictRepo() *MemoryConflictRepo {
	return &MemoryConflictRepo{conflicts: make(map[uuid.UUID]*conflict.Conflict)}
}

func (r *MemoryConflictRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*conflict.Conflict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conflicts[id]
	if !ok || c.TenantID != tenantID {
		return nil, conflict.ErrConflictNotFound
	}
	return c, nil
}

func (r *MemoryConflictRepo) FindAll(_ context.Context, tenantID uuid.UUID, filter conflict.Filter) ([]*conflict.Conflict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*conflict.Conflict
	for _, c := range r.conflicts {
		if c.TenantID != tenantID {
			continue
		}
		if filter.ExecutionID != nil && c.ExecutionID != *filter.ExecutionID {
			continue
		}
		if filter.MappingID != nil && c.MappingID != *filter.MappingID {
			continue
		}
		if filter.IsResolved != nil && c.IsResolved != *filter.IsResolved {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *MemoryConflictRepo) Count(ctx context.Context, tenantID uuid.UUID, filter conflict.Filter) (int64, error) {
	all, _ := r.FindAll(ctx, tenantID, filter)
	return int64(len(all)), nil
}

func (r *MemoryConflictRepo) CountUnresolvedByMapping(_ context.Context, tenantID uuid.UUID) (map[uuid.UUID]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID]int64)
	for _, c := range r.conflicts {
		if c.TenantID == tenantID && !c.IsResolved {
			out[c.MappingID]++
		}
	}
	return out, nil
}

func (r *MemoryConflictRepo) Save(_ context.Context, c *conflict.Conflict) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts[c.ID] = c
	return nil
}

var _ conflict.Repository = (*MemoryConflictRepo)(nil)

// ---------------------------------------------------------------------------
// MemoryMappingRepo
// ---------------------------------------------------------------------------

// MemoryMappingRepo is an in-memory mapping.Repository
type MemoryMappingRepo struct {
	mu       sync.Mutex
	mappings map[uuid.UUID]*mapping.DataMapping
}

// NewMemoryMappingRepo creates an empty mapping repository
func NewMemoryMappingRepo() *MemoryMappingRepo {
	return &MemoryMappingRepo{mappings: make(map[uuid.UUID]*mapping.DataMapping)}
}

func (r *MemoryMappingRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*mapping.DataMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mappings[id]
	if !ok || m.TenantID != tenantID {
		return nil, mapping.ErrMappingNotFound
	}
	return m, nil
}

func (r *MemoryMappingRepo) FindAll(_ context.Context, tenantID uuid.UUID, filter mapping.Filter) ([]*mapping.DataMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*mapping.DataMapping
	for _, m := range r.mappings {
		if m.TenantID != tenantID {
			continue
		}
		if filter.ConnectionID != nil && m.ConnectionID != *filter.ConnectionID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *MemoryMappingRepo) Count(ctx context.Context, tenantID uuid.UUID, filter mapping.Filter) (int64, error) {
	all, _ := r.FindAll(ctx, tenantID, filter)
	return int64(len(all)), nil
}

func (r *MemoryMappingRepo) FindByConnectionEntity(_ context.Context, tenantID, connectionID uuid.UUID, entity connector.EntityType) ([]*mapping.DataMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*mapping.DataMapping
	for _, m := range r.mappings {
		if m.TenantID == tenantID && m.ConnectionID == connectionID && m.SourceEntity == entity && m.IsActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *MemoryMappingRepo) Save(_ context.Context, m *mapping.DataMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mappings[m.ID] = m
	return nil
}

func (r *MemoryMappingRepo) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mappings[id]
	if !ok || m.TenantID != tenantID {
		return mapping.ErrMappingNotFound
	}
	delete(r.mappings, id)
	return nil
}

var _ mapping.Repository = (*MemoryMappingRepo)(nil)

// ---------------------------------------------------------------------------
// MemorySecretStore
// ---------------------------------------------------------------------------

// MemorySecretStore is an in-memory connection.SecretStore
type MemorySecretStore struct {
	mu      sync.Mutex
	secrets map[uuid.UUID]map[string]string
	tenants map[uuid.UUID]uuid.UUID
}

// NewMemorySecretStore creates an empty secret store
func NewMemorySecretStore() *MemorySecretStore {
	return &MemorySecretStore{
		secrets: make(map[uuid.UUID]map[string]string),
		tenants: make(map[uuid.UUID]uuid.UUID),
	}
}

func (s *MemorySecretStore) Put(_ context.Context, tenantID uuid.UUID, secret map[string]string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := uuid.New()
	copied := make(map[string]string, len(secret))
	for k, v := range secret {
		copied[k] = v
	}
	s.secrets[ref] = copied
	s.tenants[ref] = tenantID
	return ref, nil
}

func (s *MemorySecretStore) Get(_ context.Context, tenantID, ref uuid.UUID) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	secret, ok := s.secrets[ref]
	if !ok || s.tenants[ref] != tenantID {
		return nil, secrets.ErrSecretNotFound
	}
	return secret, nil
}

func (s *MemorySecretStore) Delete(_ context.Context, tenantID, ref uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.secrets[ref]; !ok || s.tenants[ref] != tenantID {
		return secrets.ErrSecretNotFound
	}
	delete(s.secrets, ref)
	delete(s.tenants, ref)
	return nil
}

var _ connection.SecretStore = (*MemorySecretStore)(nil)

// ---------------------------------------------------------------------------
// CapturePublisher
// ---------------------------------------------------------------------------

// CapturePublisher records published events for assertions
type CapturePublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

// NewCapturePublisher creates an empty capture publisher
func NewCapturePublisher() *CapturePublisher {
	return &CapturePublisher{}
}

func (p *CapturePublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

// Events returns every published event, in order
func (p *CapturePublisher) Events() []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]shared.DomainEvent(nil), p.events...)
}

var _ shared.EventPublisher = (*CapturePublisher)(nil)
