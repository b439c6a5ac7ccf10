package webhook

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/synchub/backend/internal/domain/connection"
	"github.com/synchub/backend/internal/domain/connector"
	"github.com/synchub/backend/internal/domain/mapping"
	"github.com/synchub/backend/internal/domain/shared"
	syncdomain "github.com/synchub/backend/internal/domain/sync"
	"github.com/synchub/backend/internal/domain/webhook"
	"github.com/synchub/backend/internal/infrastructure/cache"
	"github.com/synchub/backend/internal/infrastructure/delivery"
	"github.com/synchub/backend/internal/infrastructure/ratelimit"
	"github.com/synchub/backend/internal/infrastructure/scheduler"
	"github.com/synchub/backend/tests/testutil"
)

// stubQueue records submitted jobs without running them
type stubQueue struct {
	jobs      []*scheduler.Job
	rejectErr error
}

func (q *stubQueue) Submit(job *scheduler.Job) error {
	if q.rejectErr != nil {
		return q.rejectErr
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type serviceFixture struct {
	tenant uuid.UUID

	webhooks *testutil.MemoryWebhookRepo
	logs     *testutil.MemoryDeliveryLogRepo
	secrets  *testutil.MemorySecretStore
	mappings *testutil.MemoryMappingRepo
	queue    *stubQueue
	events   *testutil.CapturePublisher

	conn    *connection.Connection
	mapping *mapping.DataMapping
	service *WebhookService
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

	m, err := mapping.NewDataMapping(tenant, conn.ID, "contacts",
		connector.EntityContact, connector.EntityContact, connector.DirectionBidirectional,
		[]mapping.FieldMapping{
			{SourceField: "name", TargetField: "name", Required: true},
			{SourceField: "email", TargetField: "email", Required: true},
		},
		[]string{"email"})
	require.NoError(t, err)

	connections := testutil.NewMemoryConnectionRepo()
	require.NoError(t, connections.Save(ctx, conn))
	mappings := testutil.NewMemoryMappingRepo()
	require.NoError(t, mappings.Save(ctx, m))

	executor := scheduler.NewExecutor(scheduler.DefaultExecutorConfig(),
		testutil.NewMemoryConfigRepo(), testutil.NewMemoryExecutionRepo(),
		testutil.NewMemoryLogRepo(), connections, testutil.NewMemoryConflictRepo(),
		secrets, registry, hub, ratelimit.NewMemoryLimiter(),
		testutil.NewCapturePublisher(), zap.NewNop())

	f := &serviceFixture{
		tenant:   tenant,
		webhooks: testutil.NewMemoryWebhookRepo(),
		logs:     testutil.NewMemoryDeliveryLogRepo(),
		secrets:  secrets,
		mappings: mappings,
		queue:    &stubQueue{},
		events:   testutil.NewCapturePublisher(),
		conn:     conn,
		mapping:  m,
	}
	f.service = NewWebhookService(f.webhooks, f.logs, secrets, connections, mappings,
		executor, f.queue, cache.NewInMemoryIdempotencyStore(), 24*time.Hour,
		f.events, zap.NewNop())
	return f
}

// inboundChannel creates an inbound webhook subscribed to record.updated
func (f *serviceFixture) inboundChannel(t *testing.T, secret string) *WebhookResponse {
	t.Helper()
	resp, err := f.service.CreateInbound(context.Background(), f.tenant, CreateInboundWebhookRequest{
		ConnectionID: f.conn.ID,
		Name:         "odoo inbound",
		Events:       []string{"record.updated"},
		Secret:       secret,
	})
	require.NoError(t, err)
	return resp
}

// signedBody marshals the event and computes its HMAC signature
func signedBody(t *testing.T, secret string, event map[string]any) ([]byte, string) {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return body, delivery.Sign(webhook.SignatureHMACSHA256, secret, body)
}

func TestWebhookServiceCreateOutbound(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an active channel with stored secret material", func(t *testing.T) {
		f := newServiceFixture(t)

		resp, err := f.service.CreateOutbound(ctx, f.tenant, CreateOutboundWebhookRequest{
			ConnectionID: f.conn.ID,
			Name:         "erp notifications",
			TargetURL:    "https://hooks.example.com/erp",
			Events:       []string{"sync.execution_completed"},
			AuthType:     "hmac_sha256",
			Secret:       "wh-secret",
		})
		require.NoError(t, err)

		assert.Equal(t, string(webhook.DirectionOutbound), resp.Direction)
		assert.Equal(t, string(webhook.StatusActive), resp.Status)
		assert.Equal(t, webhook.DefaultSignatureHeader, resp.SignatureHeader)
		assert.Equal(t, webhook.DefaultMaxRetries, resp.MaxRetries)

		stored, err := f.webhooks.FindByID(ctx, f.tenant, resp.ID)
		require.NoError(t, err)
		material, err := f.secrets.Get(ctx, f.tenant, stored.SecretRef)
		require.NoError(t, err)
		assert.Equal(t, "wh-secret", material[webhook.SecretKeySigning])
	})

	t.Run("requires a signing secret for hmac auth", func(t *testing.T) {
		f := newServiceFixture(t)

		_, err := f.service.CreateOutbound(ctx, f.tenant, CreateOutboundWebhookRequest{
			ConnectionID: f.conn.ID,
			Name:         "erp notifications",
			TargetURL:    "https://hooks.example.com/erp",
			Events:       []string{"sync.execution_completed"},
			AuthType:     "hmac_sha256",
		})
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "WEBHOOK_SECRET_REQUIRED", domainErr.Code)
	})

	t.Run("requires a token for bearer auth", func(t *testing.T) {
		f := newServiceFixture(t)

		_, err := f.service.CreateOutbound(ctx, f.tenant, CreateOutboundWebhookRequest{
			ConnectionID: f.conn.ID,
			Name:         "erp notifications",
			TargetURL:    "https://hooks.example.com/erp",
			Events:       []string{"sync.execution_completed"},
			AuthType:     "bearer",
		})
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "WEBHOOK_TOKEN_REQUIRED", domainErr.Code)
	})

	t.Run("rejects an unknown connection", func(t *testing.T) {
		f := newServiceFixture(t)

		_, err := f.service.CreateOutbound(ctx, f.tenant, CreateOutboundWebhookRequest{
			ConnectionID: uuid.New(),
			Name:         "erp notifications",
			TargetURL:    "https://hooks.example.com/erp",
			Events:       []string{"sync.execution_completed"},
		})
		assert.ErrorIs(t, err, connection.ErrConnectionNotFound)
	})
}

func TestWebhookServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	created := f.inboundChannel(t, "inbound-secret")

	paused, err := f.service.Pause(ctx, f.tenant, created.ID)
	require.NoError(t, err)
	assert.Equal(t, string(webhook.StatusPaused), paused.Status)

	resumed, err := f.service.Resume(ctx, f.tenant, created.ID)
	require.NoError(t, err)
	assert.Equal(t, string(webhook.StatusActive), resumed.Status)

	require.NoError(t, f.service.Deactivate(ctx, f.tenant, created.ID))
	stored, err := f.webhooks.FindByID(ctx, f.tenant, created.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	_, err = f.secrets.Get(ctx, f.tenant, stored.SecretRef)
	assert.Error(t, err)

	_, err = f.service.Pause(ctx, f.tenant, created.ID)
	assert.ErrorIs(t, err, webhook.ErrWebhookInactive)
}

func TestWebhookServiceIngest(t *testing.T) {
	ctx := context.Background()

	t.Run("triggers an inbound sync for the event entity", func(t *testing.T) {
		f := newServiceFixture(t)
		created := f.inboundChannel(t, "inbound-secret")

		body, sig := signedBody(t, "inbound-secret", map[string]any{
			"event": "record.updated", "entity": "contact",
			"external_id": "101", "event_id": "evt-1",
		})
		result, err := f.service.Ingest(ctx, created.ID, sig, body)
		require.NoError(t, err)

		assert.True(t, result.Triggered)
		require.Len(t, result.ExecutionIDs, 1)
		require.Len(t, f.queue.jobs, 1)
		job := f.queue.jobs[0]
		assert.Equal(t, connector.DirectionInbound, job.Execution.Direction)
		assert.Equal(t, syncdomain.TriggerWebhook, job.Execution.TriggerSource)
		assert.Nil(t, job.Config)
		assert.NotEmpty(t, f.events.Events())
	})

	t.Run("rejects a bad signature", func(t *testing.T) {
		f := newServiceFixture(t)
		created := f.inboundChannel(t, "inbound-secret")

		body, _ := signedBody(t, "inbound-secret", map[string]any{"event": "record.updated"})
		_, err := f.service.Ingest(ctx, created.ID, "deadbeef", body)
		assert.ErrorIs(t, err, webhook.ErrSignatureMismatch)
		assert.Empty(t, f.queue.jobs)
	})

	t.Run("deduplicates by event id", func(t *testing.T) {
		f := newServiceFixture(t)
		created := f.inboundChannel(t, "inbound-secret")

		body, sig := signedBody(t, "inbound-secret", map[string]any{
			"event": "record.updated", "entity": "contact", "event_id": "evt-7",
		})
		_, err := f.service.Ingest(ctx, created.ID, sig, body)
		require.NoError(t, err)

		_, err = f.service.Ingest(ctx, created.ID, sig, body)
		assert.ErrorIs(t, err, webhook.ErrDuplicateEvent)
	})

	t.Run("accepts but does not trigger an unsubscribed event", func(t *testing.T) {
		f := newServiceFixture(t)
		created := f.inboundChannel(t, "inbound-secret")

		body, sig := signedBody(t, "inbound-secret", map[string]any{
			"event": "record.deleted", "entity": "contact", "event_id": "evt-2",
		})
		result, err := f.service.Ingest(ctx, created.ID, sig, body)
		require.NoError(t, err)
		assert.False(t, result.Triggered)
		assert.Empty(t, f.queue.jobs)
	})

	t.Run("skips the trigger while a run already holds the mapping lock", func(t *testing.T) {
		f := newServiceFixture(t)
		created := f.inboundChannel(t, "inbound-secret")

		body, sig := signedBody(t, "inbound-secret", map[string]any{
			"event": "record.updated", "entity": "contact", "event_id": "evt-3",
		})
		result, err := f.service.Ingest(ctx, created.ID, sig, body)
		require.NoError(t, err)
		require.True(t, result.Triggered)

		body, sig = signedBody(t, "inbound-secret", map[string]any{
			"event": "record.updated", "entity": "contact", "event_id": "evt-4",
		})
		result, err = f.service.Ingest(ctx, created.ID, sig, body)
		require.NoError(t, err)
		assert.False(t, result.Triggered)
		assert.Len(t, f.queue.jobs, 1)
	})

	t.Run("rejects an outbound channel", func(t *testing.T) {
		f := newServiceFixture(t)
		out, err := f.service.CreateOutbound(ctx, f.tenant, CreateOutboundWebhookRequest{
			ConnectionID: f.conn.ID,
			Name:         "erp notifications",
			TargetURL:    "https://hooks.example.com/erp",
			Events:       []string{"sync.execution_completed"},
		})
		require.NoError(t, err)

		_, err = f.service.Ingest(ctx, out.ID, "", []byte(`{"event":"x"}`))
		assert.ErrorIs(t, err, webhook.ErrNotInbound)
	})

	t.Run("rejects a malformed payload", func(t *testing.T) {
		f := newServiceFixture(t)
		created := f.inboundChannel(t, "inbound-secret")

		body := []byte("not json")
		sig := delivery.Sign(webhook.SignatureHMACSHA256, "inbound-secret", body)
		_, err := f.service.Ingest(ctx, created.ID, sig, body)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("rejects an unknown webhook", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.service.Ingest(ctx, uuid.New(), "", []byte(`{}`))
		assert.ErrorIs(t, err, webhook.ErrWebhookNotFound)
	})
}
