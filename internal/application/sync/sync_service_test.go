package sync

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/synchub/backend/internal/domain/connection"
	"github.com/synchub/backend/internal/domain/connector"
	"github.com/synchub/backend/internal/domain/mapping"
	syncdomain "github.com/synchub/backend/internal/domain/sync"
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

func (q *stubQueue) Status() scheduler.Status {
	return scheduler.Status{Running: true, Workers: 2, QueueDepth: len(q.jobs)}
}

func (q *stubQueue) History(int) []scheduler.JobRecord { return nil }

type serviceFixture struct {
	tenant uuid.UUID

	configs     *testutil.MemoryConfigRepo
	executions  *testutil.MemoryExecutionRepo
	mappings    *testutil.MemoryMappingRepo
	connections *testutil.MemoryConnectionRepo
	remote      *testutil.FakeConnector
	queue       *stubQueue
	executor    *scheduler.Executor
	service     *SyncService

	conn    *connection.Connection
	mapping *mapping.DataMapping
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

	f := &serviceFixture{
		tenant:      tenant,
		configs:     testutil.NewMemoryConfigRepo(),
		executions:  testutil.NewMemoryExecutionRepo(),
		mappings:    testutil.NewMemoryMappingRepo(),
		connections: testutil.NewMemoryConnectionRepo(),
		remote:      remote,
		queue:       &stubQueue{},
		conn:        conn,
		mapping:     m,
	}
	require.NoError(t, f.connections.Save(ctx, conn))
	require.NoError(t, f.mappings.Save(ctx, m))

	logs := testutil.NewMemoryLogRepo()
	f.executor = scheduler.NewExecutor(scheduler.DefaultExecutorConfig(),
		f.configs, f.executions, logs, f.connections, testutil.NewMemoryConflictRepo(),
		secrets, registry, hub, ratelimit.NewMemoryLimiter(),
		testutil.NewCapturePublisher(), zap.NewNop())
	f.service = NewSyncService(f.configs, f.executions, logs, f.mappings, f.connections,
		f.executor, f.queue)
	return f
}

func intervalConfigRequest(mappingID uuid.UUID) CreateConfigRequest {
	return CreateConfigRequest{
		MappingID: mappingID,
		Name:      "contacts hourly",
		SyncMode:  "scheduled",
		Schedule:  ScheduleDTO{Kind: "interval", IntervalMinutes: 60},
	}
}

func TestSyncServiceCreateConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a scheduled configuration with a computed next run", func(t *testing.T) {
		f := newServiceFixture(t)

		resp, err := f.service.CreateConfig(ctx, f.tenant, intervalConfigRequest(f.mapping.ID))
		require.NoError(t, err)

		assert.Equal(t, f.conn.ID, resp.ConnectionID)
		assert.Equal(t, syncdomain.DefaultMaxRetries, resp.MaxRetries)
		assert.False(t, resp.IsPaused)
		require.NotNil(t, resp.NextRunAt)
		assert.WithinDuration(t, time.Now().Add(time.Hour), *resp.NextRunAt, 5*time.Second)
	})

	t.Run("applies delta sync and retry overrides", func(t *testing.T) {
		f := newServiceFixture(t)
		req := intervalConfigRequest(f.mapping.ID)
		req.UseDeltaSync = true
		req.DeltaField = "write_date"
		retries := 5
		req.MaxRetries = &retries

		resp, err := f.service.CreateConfig(ctx, f.tenant, req)
		require.NoError(t, err)
		assert.True(t, resp.UseDeltaSync)
		assert.Equal(t, "write_date", resp.DeltaField)
		assert.Equal(t, 5, resp.MaxRetries)
	})

	t.Run("rejects delta sync without a delta field", func(t *testing.T) {
		f := newServiceFixture(t)
		req := intervalConfigRequest(f.mapping.ID)
		req.UseDeltaSync = true

		_, err := f.service.CreateConfig(ctx, f.tenant, req)
		assert.ErrorIs(t, err, syncdomain.ErrDeltaFieldRequired)
	})

	t.Run("rejects scheduled mode without an enabled schedule", func(t *testing.T) {
		f := newServiceFixture(t)
		req := intervalConfigRequest(f.mapping.ID)
		req.Schedule = ScheduleDTO{Kind: "disabled"}

		_, err := f.service.CreateConfig(ctx, f.tenant, req)
		assert.ErrorIs(t, err, syncdomain.ErrScheduleRequired)
	})

	t.Run("rejects a cron expression that does not parse", func(t *testing.T) {
		f := newServiceFixture(t)
		req := intervalConfigRequest(f.mapping.ID)
		req.Schedule = ScheduleDTO{Kind: "cron", CronExpr: "not a cron"}

		_, err := f.service.CreateConfig(ctx, f.tenant, req)
		assert.ErrorIs(t, err, syncdomain.ErrInvalidCronExpression)
	})

	t.Run("rejects a deactivated mapping", func(t *testing.T) {
		f := newServiceFixture(t)
		f.mapping.Deactivate()
		require.NoError(t, f.mappings.Save(ctx, f.mapping))

		_, err := f.service.CreateConfig(ctx, f.tenant, intervalConfigRequest(f.mapping.ID))
		assert.ErrorIs(t, err, mapping.ErrMappingInactive)
	})
}

func TestSyncServicePauseResume(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	created, err := f.service.CreateConfig(ctx, f.tenant, intervalConfigRequest(f.mapping.ID))
	require.NoError(t, err)

	paused, err := f.service.PauseConfig(ctx, f.tenant, created.ID)
	require.NoError(t, err)
	assert.True(t, paused.IsPaused)
	assert.Nil(t, paused.NextRunAt)

	resumed, err := f.service.ResumeConfig(ctx, f.tenant, created.ID)
	require.NoError(t, err)
	assert.False(t, resumed.IsPaused)
	require.NotNil(t, resumed.NextRunAt)
}

func TestSyncServiceNextRuns(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	created, err := f.service.CreateConfig(ctx, f.tenant, intervalConfigRequest(f.mapping.ID))
	require.NoError(t, err)

	resp, err := f.service.NextRuns(ctx, f.tenant, created.ID, 3)
	require.NoError(t, err)
	require.Len(t, resp.NextRuns, 3)
	assert.WithinDuration(t, resp.NextRuns[0].Add(time.Hour), resp.NextRuns[1], time.Second)
	assert.WithinDuration(t, resp.NextRuns[1].Add(time.Hour), resp.NextRuns[2], time.Second)
}

func TestSyncServiceTriggerConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("queues a manual execution", func(t *testing.T) {
		f := newServiceFixture(t)
		created, err := f.service.CreateConfig(ctx, f.tenant, intervalConfigRequest(f.mapping.ID))
		require.NoError(t, err)

		resp, err := f.service.TriggerConfig(ctx, f.tenant, created.ID)
		require.NoError(t, err)

		assert.Equal(t, string(syncdomain.StatusQueued), resp.Status)
		assert.Equal(t, string(syncdomain.TriggerManual), resp.TriggerSource)
		require.NotNil(t, resp.ConfigID)
		assert.Equal(t, created.ID, *resp.ConfigID)
		require.Len(t, f.queue.jobs, 1)
	})

	t.Run("refuses while another execution holds the lock", func(t *testing.T) {
		f := newServiceFixture(t)
		created, err := f.service.CreateConfig(ctx, f.tenant, intervalConfigRequest(f.mapping.ID))
		require.NoError(t, err)

		_, err = f.service.TriggerConfig(ctx, f.tenant, created.ID)
		require.NoError(t, err)

		_, err = f.service.TriggerConfig(ctx, f.tenant, created.ID)
		assert.ErrorIs(t, err, syncdomain.ErrExecutionOverlap)
	})

	t.Run("refuses a paused configuration", func(t *testing.T) {
		f := newServiceFixture(t)
		created, err := f.service.CreateConfig(ctx, f.tenant, intervalConfigRequest(f.mapping.ID))
		require.NoError(t, err)
		_, err = f.service.PauseConfig(ctx, f.tenant, created.ID)
		require.NoError(t, err)

		_, err = f.service.TriggerConfig(ctx, f.tenant, created.ID)
		assert.ErrorIs(t, err, syncdomain.ErrConfigPaused)
	})

	t.Run("fails the execution when the queue refuses the job", func(t *testing.T) {
		f := newServiceFixture(t)
		created, err := f.service.CreateConfig(ctx, f.tenant, intervalConfigRequest(f.mapping.ID))
		require.NoError(t, err)
		f.queue.rejectErr = scheduler.ErrJobQueueFull

		_, err = f.service.TriggerConfig(ctx, f.tenant, created.ID)
		assert.ErrorIs(t, err, scheduler.ErrJobQueueFull)

		// the aborted execution is terminal and the lock is free again
		f.queue.rejectErr = nil
		_, err = f.service.TriggerConfig(ctx, f.tenant, created.ID)
		require.NoError(t, err)
	})
}

func TestSyncServiceTriggerMapping(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	resp, err := f.service.TriggerMapping(ctx, f.tenant, f.mapping.ID, TriggerMappingRequest{Direction: "outbound"})
	require.NoError(t, err)

	assert.Nil(t, resp.ConfigID)
	assert.Equal(t, string(connector.DirectionOutbound), resp.Direction)
	assert.Equal(t, string(syncdomain.TriggerAPI), resp.TriggerSource)

	_, err = f.service.TriggerMapping(ctx, f.tenant, f.mapping.ID, TriggerMappingRequest{})
	assert.ErrorIs(t, err, syncdomain.ErrExecutionOverlap)
}

func TestSyncServiceCancelExecution(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	queued, err := f.service.TriggerMapping(ctx, f.tenant, f.mapping.ID, TriggerMappingRequest{})
	require.NoError(t, err)

	resp, err := f.service.CancelExecution(ctx, f.tenant, queued.ID)
	require.NoError(t, err)
	assert.True(t, resp.CancelRequested)

	t.Run("refuses a terminal execution", func(t *testing.T) {
		require.Len(t, f.queue.jobs, 1)
		f.executor.Abort(ctx, f.queue.jobs[0], "test abort")

		_, err := f.service.CancelExecution(ctx, f.tenant, queued.ID)
		assert.ErrorIs(t, err, syncdomain.ErrExecutionNotCancellable)
	})
}

func TestSyncServiceRetryExecution(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	created, err := f.service.CreateConfig(ctx, f.tenant, intervalConfigRequest(f.mapping.ID))
	require.NoError(t, err)
	triggered, err := f.service.TriggerConfig(ctx, f.tenant, created.ID)
	require.NoError(t, err)
	require.Len(t, f.queue.jobs, 1)

	// run the queued job to a terminal failure
	f.remote.FetchErr = connector.ErrFetchFailed
	require.NoError(t, f.executor.Execute(ctx, f.queue.jobs[0]))
	failed, err := f.service.GetExecution(ctx, f.tenant, triggered.ID)
	require.NoError(t, err)
	// the automatic retry budget chains through the submitter, which is not
	// wired here, so the run ends failed
	require.Equal(t, string(syncdomain.StatusFailed), failed.Status)

	retry, err := f.service.RetryExecution(ctx, f.tenant, triggered.ID)
	require.NoError(t, err)
	assert.True(t, retry.IsRetry)
	require.NotNil(t, retry.RetryOfID)
	assert.Equal(t, triggered.ID, *retry.RetryOfID)
	assert.Equal(t, 1, retry.RetryCount)
	assert.Equal(t, string(syncdomain.StatusQueued), retry.Status)

	t.Run("refuses an execution that is not terminal failed", func(t *testing.T) {
		_, err := f.service.RetryExecution(ctx, f.tenant, retry.ID)
		assert.ErrorIs(t, err, syncdomain.ErrExecutionNotRetryable)
	})
}

func TestSyncServiceListExecutions(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	queued, err := f.service.TriggerMapping(ctx, f.tenant, f.mapping.ID, TriggerMappingRequest{})
	require.NoError(t, err)

	status := string(syncdomain.StatusQueued)
	list, total, err := f.service.ListExecutions(ctx, f.tenant, ExecutionListFilter{Status: status})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, queued.ID, list[0].ID)

	completed := string(syncdomain.StatusCompleted)
	_, total, err = f.service.ListExecutions(ctx, f.tenant, ExecutionListFilter{Status: completed})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestSyncServiceSchedulerStatus(t *testing.T) {
	f := newServiceFixture(t)

	status := f.service.SchedulerStatus(10)
	assert.True(t, status.Running)
	assert.Equal(t, 2, status.Workers)
}
