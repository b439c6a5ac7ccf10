package conflict

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	conflictdomain "github.com/synchub/backend/internal/domain/conflict"
	"github.com/synchub/backend/internal/domain/connection"
	"github.com/synchub/backend/internal/domain/connector"
	syncdomain "github.com/synchub/backend/internal/domain/sync"
	"github.com/synchub/backend/tests/testutil"
)

type serviceFixture struct {
	tenant uuid.UUID

	conflicts  *testutil.MemoryConflictRepo
	executions *testutil.MemoryExecutionRepo
	events     *testutil.CapturePublisher

	remote *testutil.FakeConnector
	hub    *testutil.FakeConnector

	conn    *connection.Connection
	service *ConflictService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	ctx := context.Background()
	tenant := uuid.New()

	registry, err := connector.NewRegistryWithBuiltins()
	require.NoError(t, err)
	remote := testutil.NewFakeConnector(connector.TypeOdoo)
	require.NoError(t, registry.RegisterAdapter(remote))
	hub := testutil.NewFakeConnector(connector.TypeCustom)

	secrets := testutil.NewMemorySecretStore()
	ref, err := secrets.Put(ctx, tenant, map[string]string{
		"database": "prod", "username": "sync", "api_key": "k",
	})
	require.NoError(t, err)

	conn, err := connection.NewConnection(tenant, "odoo-main", "Main Odoo",
		connector.TypeOdoo, connector.AuthAPIKey, "https://odoo.example.com", "17.0", ref)
	require.NoError(t, err)
	require.NoError(t, conn.MarkConnected())

	connections := testutil.NewMemoryConnectionRepo()
	require.NoError(t, connections.Save(ctx, conn))

	f := &serviceFixture{
		tenant:     tenant,
		conflicts:  testutil.NewMemoryConflictRepo(),
		executions: testutil.NewMemoryExecutionRepo(),
		events:     testutil.NewCapturePublisher(),
		remote:     remote,
		hub:        hub,
		conn:       conn,
	}
	f.service = NewConflictService(f.conflicts, f.executions, connections,
		secrets, registry, hub, f.events)
	return f
}

// seedConflict stores an unresolved conflict detected by an execution of
// the given direction
func (f *serviceFixture) seedConflict(t *testing.T, direction connector.Direction) *conflictdomain.Conflict {
	t.Helper()
	ctx := context.Background()

	exec := syncdomain.NewSyncExecution(f.tenant, nil, uuid.New(), f.conn.ID,
		direction, connector.EntityContact, syncdomain.TriggerScheduled)
	require.NoError(t, f.executions.Create(ctx, exec))

	now := time.Now()
	c, err := conflictdomain.NewConflict(
		conflictdomain.ExecutionRef{
			Tenant:     f.tenant,
			Execution:  exec.ID,
			Mapping:    exec.MappingID,
			Connection: f.conn.ID,
			EntityType: connector.EntityContact,
		},
		"src-1", "tgt-1",
		map[string]any{"name": "Ada King", "email": "ada@example.com"},
		map[string]any{"name": "Ada Lovelace", "email": "ada@example.com"},
		now.Add(-time.Minute), now.Add(-2*time.Minute),
		[]string{"name"},
	)
	require.NoError(t, err)
	require.NoError(t, f.conflicts.Save(ctx, c))
	return c
}

func TestConflictServiceResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("source wins writes the source snapshot to the hub", func(t *testing.T) {
		f := newServiceFixture(t)
		c := f.seedConflict(t, connector.DirectionInbound)

		resp, err := f.service.Resolve(ctx, f.tenant, c.ID, "ops@example.com", ResolveConflictRequest{
			Strategy: "source_wins",
			Notes:    "remote edit confirmed by support",
		})
		require.NoError(t, err)

		assert.True(t, resp.IsResolved)
		assert.False(t, resp.IsIgnored)
		assert.Equal(t, "source_wins", resp.ResolutionStrategy)
		assert.Equal(t, "ops@example.com", resp.ResolvedBy)
		require.NotNil(t, resp.ResolvedAt)
		assert.Equal(t, "Ada King", resp.ResolvedData["name"])

		writes := f.hub.Writes()
		require.Len(t, writes, 1)
		assert.Equal(t, "tgt-1", writes[0].ExternalID)
		assert.Equal(t, "Ada King", writes[0].Data["name"])
		assert.Empty(t, f.remote.Writes())
		assert.NotEmpty(t, f.events.Events())
	})

	t.Run("newest wins picks the later snapshot", func(t *testing.T) {
		f := newServiceFixture(t)
		c := f.seedConflict(t, connector.DirectionInbound)

		resp, err := f.service.Resolve(ctx, f.tenant, c.ID, "ops", ResolveConflictRequest{Strategy: "newest_wins"})
		require.NoError(t, err)

		// the source side was modified last in the seeded conflict
		assert.Equal(t, "Ada King", resp.ResolvedData["name"])
	})

	t.Run("outbound conflicts write to the remote system", func(t *testing.T) {
		f := newServiceFixture(t)
		c := f.seedConflict(t, connector.DirectionOutbound)

		_, err := f.service.Resolve(ctx, f.tenant, c.ID, "ops", ResolveConflictRequest{Strategy: "target_wins"})
		require.NoError(t, err)

		writes := f.remote.Writes()
		require.Len(t, writes, 1)
		assert.Equal(t, "Ada Lovelace", writes[0].Data["name"])
		assert.Empty(t, f.hub.Writes())
	})

	t.Run("merge requires the merged payload", func(t *testing.T) {
		f := newServiceFixture(t)
		c := f.seedConflict(t, connector.DirectionInbound)

		_, err := f.service.Resolve(ctx, f.tenant, c.ID, "ops", ResolveConflictRequest{Strategy: "merge"})
		assert.ErrorIs(t, err, conflictdomain.ErrMergeDataRequired)

		resp, err := f.service.Resolve(ctx, f.tenant, c.ID, "ops", ResolveConflictRequest{
			Strategy:     "merge",
			ResolvedData: map[string]any{"name": "Ada Lovelace King", "email": "ada@example.com"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Ada Lovelace King", resp.ResolvedData["name"])

		writes := f.hub.Writes()
		require.Len(t, writes, 1)
		assert.Equal(t, "Ada Lovelace King", writes[0].Data["name"])
	})

	t.Run("skip resolves without writing either side", func(t *testing.T) {
		f := newServiceFixture(t)
		c := f.seedConflict(t, connector.DirectionInbound)

		resp, err := f.service.Resolve(ctx, f.tenant, c.ID, "ops", ResolveConflictRequest{Strategy: "skip"})
		require.NoError(t, err)

		assert.True(t, resp.IsResolved)
		assert.True(t, resp.IsIgnored)
		assert.Empty(t, f.hub.Writes())
		assert.Empty(t, f.remote.Writes())
	})

	t.Run("refuses an already settled conflict", func(t *testing.T) {
		f := newServiceFixture(t)
		c := f.seedConflict(t, connector.DirectionInbound)

		_, err := f.service.Resolve(ctx, f.tenant, c.ID, "ops", ResolveConflictRequest{Strategy: "skip"})
		require.NoError(t, err)

		_, err = f.service.Resolve(ctx, f.tenant, c.ID, "ops", ResolveConflictRequest{Strategy: "source_wins"})
		assert.ErrorIs(t, err, conflictdomain.ErrConflictAlreadyResolved)
	})
}

func TestConflictServiceIgnore(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	c := f.seedConflict(t, connector.DirectionInbound)

	resp, err := f.service.Ignore(ctx, f.tenant, c.ID, "ops", IgnoreConflictRequest{Notes: "stale record"})
	require.NoError(t, err)

	assert.True(t, resp.IsIgnored)
	assert.Equal(t, string(conflictdomain.StrategySkip), resp.ResolutionStrategy)
	assert.Equal(t, "stale record", resp.ResolutionNotes)
	assert.Empty(t, f.hub.Writes())
}

func TestConflictServiceListAndSummary(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	first := f.seedConflict(t, connector.DirectionInbound)
	second := f.seedConflict(t, connector.DirectionInbound)

	_, err := f.service.Resolve(ctx, f.tenant, first.ID, "ops", ResolveConflictRequest{Strategy: "skip"})
	require.NoError(t, err)

	unresolved := false
	list, total, err := f.service.List(ctx, f.tenant, ConflictListFilter{IsResolved: &unresolved})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)

	summary, err := f.service.Summary(ctx, f.tenant)
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, second.MappingID, summary[0].MappingID)
	assert.Equal(t, int64(1), summary[0].Unresolved)
}
