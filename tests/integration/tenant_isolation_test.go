package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synchub/backend/internal/domain/conflict"
	"github.com/synchub/backend/internal/domain/connection"
	"github.com/synchub/backend/internal/domain/connector"
	"github.com/synchub/backend/internal/domain/mapping"
	"github.com/synchub/backend/internal/domain/sync"
	"github.com/synchub/backend/internal/domain/webhook"
	"github.com/synchub/backend/internal/infrastructure/connectors/local"
	"github.com/synchub/backend/internal/infrastructure/persistence"
)

// TestTenantIsolation_Integration verifies that every repository scopes reads
// to the requesting tenant: one tenant's aggregates are invisible to another,
// surfacing as domain not-found errors rather than empty results with data.
func TestTenantIsolation_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	ctx := context.Background()
	ownerTenant := uuid.New()
	otherTenant := uuid.New()

	connRepo := persistence.NewGormConnectionRepository(testDB.DB)
	mappingRepo := persistence.NewGormDataMappingRepository(testDB.DB)
	configRepo := persistence.NewGormSyncConfigRepository(testDB.DB)
	executionRepo := persistence.NewGormSyncExecutionRepository(testDB.DB)
	conflictRepo := persistence.NewGormConflictRepository(testDB.DB)
	webhookRepo := persistence.NewGormWebhookRepository(testDB.DB)

	conn, err := connection.NewConnection(ownerTenant, "isolated", "Isolated Connection",
		connector.TypeOdoo, connector.AuthAPIKey, "https://odoo.example.com", "17.0", uuid.New())
	require.NoError(t, err)
	require.NoError(t, connRepo.Save(ctx, conn))

	fields := []mapping.FieldMapping{
		{SourceField: "name", TargetField: "name", Required: true},
		{SourceField: "id", TargetField: "external_id"},
	}
	m, err := mapping.NewDataMapping(ownerTenant, conn.ID, "contacts",
		connector.EntityContact, connector.EntityContact, connector.DirectionInbound,
		fields, []string{"external_id"})
	require.NoError(t, err)
	require.NoError(t, mappingRepo.Save(ctx, m))

	cfg, err := sync.NewSyncConfiguration(ownerTenant, m.ID, conn.ID, "hourly contacts",
		sync.ModeScheduled, sync.IntervalSchedule(60))
	require.NoError(t, err)
	require.NoError(t, configRepo.Save(ctx, cfg))

	execution := sync.NewSyncExecution(ownerTenant, nil, m.ID, conn.ID,
		connector.DirectionInbound, connector.EntityContact, sync.TriggerManual)
	require.NoError(t, executionRepo.Create(ctx, execution))

	now := time.Now()
	c, err := conflict.NewConflict(conflict.ExecutionRef{
		Tenant:     ownerTenant,
		Execution:  execution.ID,
		Mapping:    m.ID,
		Connection: conn.ID,
		EntityType: connector.EntityContact,
	}, "src-1", "tgt-1",
		map[string]any{"name": "Alice"}, map[string]any{"name": "Alicia"},
		now.Add(-time.Minute), now.Add(-time.Second), []string{"name"})
	require.NoError(t, err)
	require.NoError(t, conflictRepo.Save(ctx, c))

	wh, err := webhook.NewOutboundWebhook(ownerTenant, conn.ID, "notify",
		"https://hooks.example.com/synchub", []string{"sync.completed"}, webhook.AuthNone, uuid.Nil)
	require.NoError(t, err)
	require.NoError(t, webhookRepo.Save(ctx, wh))

	t.Run("owner tenant sees its aggregates", func(t *testing.T) {
		_, err := connRepo.FindByID(ctx, ownerTenant, conn.ID)
		assert.NoError(t, err)
		_, err = mappingRepo.FindByID(ctx, ownerTenant, m.ID)
		assert.NoError(t, err)
		_, err = configRepo.FindByID(ctx, ownerTenant, cfg.ID)
		assert.NoError(t, err)
		_, err = executionRepo.FindByID(ctx, ownerTenant, execution.ID)
		assert.NoError(t, err)
		_, err = conflictRepo.FindByID(ctx, ownerTenant, c.ID)
		assert.NoError(t, err)
		_, err = webhookRepo.FindByID(ctx, ownerTenant, wh.ID)
		assert.NoError(t, err)
	})

	t.Run("other tenant gets not-found by ID", func(t *testing.T) {
		_, err := connRepo.FindByID(ctx, otherTenant, conn.ID)
		assert.ErrorIs(t, err, connection.ErrConnectionNotFound)
		_, err = mappingRepo.FindByID(ctx, otherTenant, m.ID)
		assert.ErrorIs(t, err, mapping.ErrMappingNotFound)
		_, err = configRepo.FindByID(ctx, otherTenant, cfg.ID)
		assert.ErrorIs(t, err, sync.ErrConfigNotFound)
		_, err = executionRepo.FindByID(ctx, otherTenant, execution.ID)
		assert.ErrorIs(t, err, sync.ErrExecutionNotFound)
		_, err = conflictRepo.FindByID(ctx, otherTenant, c.ID)
		assert.ErrorIs(t, err, conflict.ErrConflictNotFound)
		_, err = webhookRepo.FindByID(ctx, otherTenant, wh.ID)
		assert.ErrorIs(t, err, webhook.ErrWebhookNotFound)
	})

	t.Run("list queries exclude foreign tenants", func(t *testing.T) {
		conns, err := connRepo.FindAll(ctx, otherTenant, connection.Filter{})
		require.NoError(t, err)
		assert.Empty(t, conns)

		mappings, err := mappingRepo.FindAll(ctx, otherTenant, mapping.Filter{})
		require.NoError(t, err)
		assert.Empty(t, mappings)

		webhooks, err := webhookRepo.FindAll(ctx, otherTenant, webhook.Filter{})
		require.NoError(t, err)
		assert.Empty(t, webhooks)
	})

	t.Run("event fanout is tenant scoped", func(t *testing.T) {
		subscribed, err := webhookRepo.FindSubscribed(ctx, ownerTenant, "sync.completed")
		require.NoError(t, err)
		require.Len(t, subscribed, 1)
		assert.Equal(t, wh.ID, subscribed[0].ID)

		subscribed, err = webhookRepo.FindSubscribed(ctx, otherTenant, "sync.completed")
		require.NoError(t, err)
		assert.Empty(t, subscribed)
	})

	t.Run("mutations cannot cross tenants", func(t *testing.T) {
		err := mappingRepo.Delete(ctx, otherTenant, m.ID)
		assert.ErrorIs(t, err, mapping.ErrMappingNotFound)

		err = configRepo.Delete(ctx, otherTenant, cfg.ID)
		assert.ErrorIs(t, err, sync.ErrConfigNotFound)

		err = executionRepo.RequestCancel(ctx, otherTenant, execution.ID)
		assert.ErrorIs(t, err, sync.ErrExecutionNotFound)

		// The owner's rows survive the foreign delete attempts
		_, err = mappingRepo.FindByID(ctx, ownerTenant, m.ID)
		assert.NoError(t, err)
		_, err = configRepo.FindByID(ctx, ownerTenant, cfg.ID)
		assert.NoError(t, err)
	})
}

// TestHubStore_Integration exercises the hub-side record store end to end:
// writes, upserts, paged fetches and the delta bound, all tenant scoped
func TestHubStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	ctx := context.Background()
	tenantID := uuid.New()
	store := local.NewStore(testDB.DB)

	info := connector.ConnectionInfo{TenantID: tenantID}

	t.Run("Write creates then updates", func(t *testing.T) {
		created, err := store.Write(ctx, info, connector.WriteRequest{
			Entity:     connector.EntityProduct,
			ExternalID: "sku-100",
			Data:       map[string]any{"name": "Widget", "price": "9.90"},
		})
		require.NoError(t, err)
		assert.True(t, created.Created)
		assert.Equal(t, "sku-100", created.ExternalID)

		updated, err := store.Write(ctx, info, connector.WriteRequest{
			Entity:     connector.EntityProduct,
			ExternalID: "sku-100",
			Data:       map[string]any{"name": "Widget v2", "price": "11.50"},
		})
		require.NoError(t, err)
		assert.False(t, updated.Created)

		page, err := store.Fetch(ctx, info, connector.FetchRequest{Entity: connector.EntityProduct})
		require.NoError(t, err)
		require.Len(t, page.Records, 1)
		assert.Equal(t, "Widget v2", page.Records[0].Data["name"])
	})

	t.Run("Write without an external ID generates one", func(t *testing.T) {
		res, err := store.Write(ctx, info, connector.WriteRequest{
			Entity: connector.EntityOrder,
			Data:   map[string]any{"total": "42.00"},
		})
		require.NoError(t, err)
		assert.True(t, res.Created)
		assert.NotEmpty(t, res.ExternalID)
	})

	t.Run("Fetch pages in modification order", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			_, err := store.Write(ctx, info, connector.WriteRequest{
				Entity:     connector.EntityContact,
				ExternalID: "contact-" + string(rune('a'+i)),
				Data:       map[string]any{"seq": i},
			})
			require.NoError(t, err)
		}

		first, err := store.Fetch(ctx, info, connector.FetchRequest{
			Entity: connector.EntityContact, Page: 1, PageSize: 2,
		})
		require.NoError(t, err)
		assert.Equal(t, 5, first.Total)
		assert.Len(t, first.Records, 2)
		assert.True(t, first.HasMore)

		last, err := store.Fetch(ctx, info, connector.FetchRequest{
			Entity: connector.EntityContact, Page: 3, PageSize: 2,
		})
		require.NoError(t, err)
		assert.Len(t, last.Records, 1)
		assert.False(t, last.HasMore)
	})

	t.Run("delta bound excludes unmodified records", func(t *testing.T) {
		_, err := store.Write(ctx, info, connector.WriteRequest{
			Entity:     connector.EntityInvoice,
			ExternalID: "inv-1",
			Data:       map[string]any{"status": "draft"},
		})
		require.NoError(t, err)

		cutoff := time.Now()
		time.Sleep(10 * time.Millisecond)

		_, err = store.Write(ctx, info, connector.WriteRequest{
			Entity:     connector.EntityInvoice,
			ExternalID: "inv-2",
			Data:       map[string]any{"status": "posted"},
		})
		require.NoError(t, err)

		page, err := store.Fetch(ctx, info, connector.FetchRequest{
			Entity:     connector.EntityInvoice,
			DeltaSince: &cutoff,
		})
		require.NoError(t, err)
		require.Len(t, page.Records, 1)
		assert.Equal(t, "inv-2", page.Records[0].ExternalID)
	})

	t.Run("records are invisible to other tenants", func(t *testing.T) {
		foreign := connector.ConnectionInfo{TenantID: uuid.New()}
		page, err := store.Fetch(ctx, foreign, connector.FetchRequest{Entity: connector.EntityProduct})
		require.NoError(t, err)
		assert.Empty(t, page.Records)
		assert.Zero(t, page.Total)
	})
}
