package scheduler

import (
	"context"
	"fmt"
	stdsync "sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	conflictdomain "github.com/synchub/backend/internal/domain/conflict"
	"github.com/synchub/backend/internal/domain/connection"
	"github.com/synchub/backend/internal/domain/connector"
	"github.com/synchub/backend/internal/domain/mapping"
	syncdomain "github.com/synchub/backend/internal/domain/sync"
	"github.com/synchub/backend/internal/infrastructure/ratelimit"
	"github.com/synchub/backend/tests/testutil"
)

type engineFixture struct {
	tenant uuid.UUID

	configs     *testutil.MemoryConfigRepo
	executions  *testutil.MemoryExecutionRepo
	logs        *testutil.MemoryLogRepo
	connections *testutil.MemoryConnectionRepo
	conflicts   *testutil.MemoryConflictRepo
	events      *testutil.CapturePublisher

	remote *testutil.FakeConnector
	hub    *testutil.FakeConnector

	conn    *connection.Connection
	mapping *mapping.DataMapping

	executor *Executor
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	return newEngineFixtureWithConfig(t, DefaultExecutorConfig())
}

func newEngineFixtureWithConfig(t *testing.T, execCfg ExecutorConfig) *engineFixture {
	t.Helper()
	ctx := context.Background()
	tenant := uuid.New()

	registry, err := connector.NewRegistryWithBuiltins()
	require.NoError(t, err)
	remote := testutil.NewFakeConnector(connector.TypeOdoo)
	require.NoError(t, registry.RegisterAdapter(remote))
	hub := testutil.NewFakeConnector(connector.TypeCustom)

	secretStore := testutil.NewMemorySecretStore()
	ref, err := secretStore.Put(ctx, tenant, map[string]string{
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

	f := &engineFixture{
		tenant:      tenant,
		configs:     testutil.NewMemoryConfigRepo(),
		executions:  testutil.NewMemoryExecutionRepo(),
		logs:        testutil.NewMemoryLogRepo(),
		connections: testutil.NewMemoryConnectionRepo(),
		conflicts:   testutil.NewMemoryConflictRepo(),
		events:      testutil.NewCapturePublisher(),
		remote:      remote,
		hub:         hub,
		conn:        conn,
		mapping:     m,
	}
	require.NoError(t, f.connections.Save(ctx, conn))

	f.executor = NewExecutor(execCfg, f.configs, f.executions, f.logs,
		f.connections, f.conflicts, secretStore, registry, hub,
		ratelimit.NewMemoryLimiter(), f.events, zap.NewNop())
	return f
}

func (f *engineFixture) manualConfig(t *testing.T) *syncdomain.SyncConfiguration {
	t.Helper()
	cfg, err := syncdomain.NewSyncConfiguration(f.tenant, f.mapping.ID, f.conn.ID,
		"contacts manual", syncdomain.ModeManual, syncdomain.DisabledSchedule())
	require.NoError(t, err)
	require.NoError(t, f.configs.Save(context.Background(), cfg))
	return cfg
}

func contactRecord(id, name, email string, modified time.Time) connector.Record {
	return connector.Record{
		ExternalID: id,
		ModifiedAt: modified,
		Data:       map[string]any{"name": name, "email": email},
	}
}

func TestExecutorInboundRun(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("creates missing and updates divergent records", func(t *testing.T) {
		f := newEngineFixture(t)
		cfg := f.manualConfig(t)

		f.remote.Seed(connector.EntityContact,
			contactRecord("101", "Ada Lovelace", "ada@example.com", now),
			contactRecord("102", "Alan Turing", "alan@example.com", now),
		)
		// alan exists on the hub with a stale name; ada is new
		f.hub.Seed(connector.EntityContact,
			contactRecord("h-1", "A. Turing", "alan@example.com", now.Add(-time.Hour)),
		)

		job, err := f.executor.Launch(ctx, cfg, f.mapping, connector.DirectionInbound, syncdomain.TriggerManual)
		require.NoError(t, err)
		require.NoError(t, f.executor.Execute(ctx, job))

		exec := job.Execution
		assert.Equal(t, syncdomain.StatusCompleted, exec.Status)
		assert.Equal(t, 2, exec.TotalRecords)
		assert.Equal(t, 2, exec.ProcessedRecords)
		assert.Equal(t, 1, exec.CreatedRecords)
		assert.Equal(t, 1, exec.UpdatedRecords)
		assert.Equal(t, 0, exec.FailedRecords)
		assert.Equal(t, 100, exec.ProgressPercent)
		assert.NotNil(t, exec.FinishedAt)

		writes := f.hub.Writes()
		require.Len(t, writes, 2)
		assert.Empty(t, f.remote.Writes())

		// run start became the configuration watermark
		require.NotNil(t, cfg.Watermark)
		assert.Equal(t, *exec.StartedAt, *cfg.Watermark)
		assert.Equal(t, syncdomain.StatusCompleted, cfg.LastRunStatus)

		assert.Len(t, f.events.Events(), 1)
		assert.Equal(t, 0, f.conn.ConsecutiveErrors)
	})

	t.Run("second run over unchanged data writes nothing", func(t *testing.T) {
		f := newEngineFixture(t)
		cfg := f.manualConfig(t)
		f.remote.Seed(connector.EntityContact,
			contactRecord("101", "Ada Lovelace", "ada@example.com", now),
		)

		job, err := f.executor.Launch(ctx, cfg, f.mapping, connector.DirectionInbound, syncdomain.TriggerManual)
		require.NoError(t, err)
		require.NoError(t, f.executor.Execute(ctx, job))
		require.Len(t, f.hub.Writes(), 1)

		again, err := f.executor.Launch(ctx, cfg, f.mapping, connector.DirectionInbound, syncdomain.TriggerManual)
		require.NoError(t, err)
		require.NoError(t, f.executor.Execute(ctx, again))

		assert.Equal(t, syncdomain.StatusCompleted, again.Execution.Status)
		assert.Equal(t, 1, again.Execution.SkippedRecords)
		assert.Equal(t, 0, again.Execution.CreatedRecords)
		assert.Equal(t, 0, again.Execution.UpdatedRecords)
		assert.Len(t, f.hub.Writes(), 1, "no writes on an idempotent re-run")
	})

	t.Run("progress only moves forward across batches", func(t *testing.T) {
		f := newEngineFixture(t)
		f.mapping.BatchSize = 2
		var recs []connector.Record
		for i := 0; i < 5; i++ {
			recs = append(recs, contactRecord(
				fmt.Sprintf("%d", 200+i),
				fmt.Sprintf("Contact %d", i),
				fmt.Sprintf("c%d@example.com", i),
				now.Add(time.Duration(i)*time.Minute)))
		}
		f.remote.Seed(connector.EntityContact, recs...)

		job, err := f.executor.Launch(ctx, nil, f.mapping, connector.DirectionInbound, syncdomain.TriggerAPI)
		require.NoError(t, err)
		require.NoError(t, f.executor.Execute(ctx, job))

		history := f.executions.ProgressHistory(job.Execution.ID)
		require.NotEmpty(t, history)
		for i := 1; i < len(history); i++ {
			assert.GreaterOrEqual(t, history[i], history[i-1])
		}
		assert.Equal(t, 100, history[len(history)-1])
		assert.Equal(t, 5, job.Execution.ProcessedRecords)
	})

	t.Run("record missing a required field fails alone", func(t *testing.T) {
		f := newEngineFixture(t)
		f.remote.Seed(connector.EntityContact,
			contactRecord("101", "Ada Lovelace", "ada@example.com", now),
			connector.Record{ExternalID: "102", ModifiedAt: now, Data: map[string]any{"email": "anon@example.com"}},
		)

		job, err := f.executor.Launch(ctx, nil, f.mapping, connector.DirectionInbound, syncdomain.TriggerAPI)
		require.NoError(t, err)
		require.NoError(t, f.executor.Execute(ctx, job))

		exec := job.Execution
		assert.Equal(t, syncdomain.StatusPartial, exec.Status)
		assert.Equal(t, 1, exec.CreatedRecords)
		assert.Equal(t, 1, exec.FailedRecords)

		logs, err := f.logs.FindByExecution(ctx, f.tenant, exec.ID, nil, 1, 100)
		require.NoError(t, err)
		require.NotEmpty(t, logs)
	})
}

func TestExecutorOutboundRun(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	f := newEngineFixture(t)
	f.hub.Seed(connector.EntityContact,
		contactRecord("h-1", "Grace Hopper", "grace@example.com", now),
	)

	job, err := f.executor.Launch(ctx, nil, f.mapping, connector.DirectionOutbound, syncdomain.TriggerManual)
	require.NoError(t, err)
	require.NoError(t, f.executor.Execute(ctx, job))

	assert.Equal(t, syncdomain.StatusCompleted, job.Execution.Status)
	assert.Equal(t, connector.DirectionOutbound, job.Execution.Direction)
	require.Len(t, f.remote.Writes(), 1)
	assert.Empty(t, f.hub.Writes())
	assert.Equal(t, "grace@example.com", f.remote.Writes()[0].Data["email"])
}

func TestExecutorDirectionResolution(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	t.Run("one-way mapping rejects the opposite direction", func(t *testing.T) {
		inboundOnly, err := mapping.NewDataMapping(f.tenant, f.conn.ID, "inbound contacts",
			connector.EntityContact, connector.EntityContact, connector.DirectionInbound,
			[]mapping.FieldMapping{{SourceField: "email", TargetField: "email", Required: true}},
			[]string{"email"})
		require.NoError(t, err)

		_, err = f.executor.Launch(ctx, nil, inboundOnly, connector.DirectionOutbound, syncdomain.TriggerManual)
		assert.ErrorIs(t, err, connector.ErrDirectionNotSupported)
	})

	t.Run("bidirectional mapping defaults to inbound", func(t *testing.T) {
		job, err := f.executor.Launch(ctx, nil, f.mapping, "", syncdomain.TriggerManual)
		require.NoError(t, err)
		defer f.executor.Abort(ctx, job, "test cleanup")
		assert.Equal(t, connector.DirectionInbound, job.Execution.Direction)
	})
}

func TestExecutorOverlapLock(t *testing.T) {
	ctx := context.Background()

	t.Run("second launch for the same configuration is rejected", func(t *testing.T) {
		f := newEngineFixture(t)
		cfg := f.manualConfig(t)

		job, err := f.executor.Launch(ctx, cfg, f.mapping, connector.DirectionInbound, syncdomain.TriggerManual)
		require.NoError(t, err)

		_, err = f.executor.Launch(ctx, cfg, f.mapping, connector.DirectionInbound, syncdomain.TriggerManual)
		assert.ErrorIs(t, err, syncdomain.ErrExecutionOverlap)

		// finishing the run frees the lock
		require.NoError(t, f.executor.Execute(ctx, job))
		next, err := f.executor.Launch(ctx, cfg, f.mapping, connector.DirectionInbound, syncdomain.TriggerManual)
		require.NoError(t, err)
		f.executor.Abort(ctx, next, "test cleanup")
	})

	t.Run("concurrent launches admit exactly one", func(t *testing.T) {
		f := newEngineFixture(t)
		cfg := f.manualConfig(t)

		const attempts = 8
		var wg stdsync.WaitGroup
		results := make(chan error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.executor.Launch(ctx, cfg, f.mapping, connector.DirectionInbound, syncdomain.TriggerManual)
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		var admitted, rejected int
		for err := range results {
			if err == nil {
				admitted++
			} else {
				require.ErrorIs(t, err, syncdomain.ErrExecutionOverlap)
				rejected++
			}
		}
		assert.Equal(t, 1, admitted)
		assert.Equal(t, attempts-1, rejected)
	})
}

func TestExecutorDeltaAndConflicts(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	watermark := now.Add(-time.Hour)

	deltaConfig := func(t *testing.T, f *engineFixture) *syncdomain.SyncConfiguration {
		cfg := f.manualConfig(t)
		require.NoError(t, cfg.EnableDeltaSync("write_date"))
		cfg.Watermark = &watermark
		require.NoError(t, f.configs.Save(ctx, cfg))
		return cfg
	}

	t.Run("records older than the watermark are not fetched", func(t *testing.T) {
		f := newEngineFixture(t)
		cfg := deltaConfig(t, f)
		f.remote.Seed(connector.EntityContact,
			contactRecord("101", "Old", "old@example.com", watermark.Add(-time.Minute)),
			contactRecord("102", "Fresh", "fresh@example.com", now),
		)

		job, err := f.executor.Launch(ctx, cfg, f.mapping, connector.DirectionInbound, syncdomain.TriggerManual)
		require.NoError(t, err)
		require.NoError(t, f.executor.Execute(ctx, job))

		assert.Equal(t, 1, job.Execution.ProcessedRecords)
		require.NotNil(t, job.Execution.Watermark)
		assert.Equal(t, watermark, *job.Execution.Watermark)
	})

	t.Run("manual policy records the conflict and skips the write", func(t *testing.T) {
		f := newEngineFixture(t)
		cfg := deltaConfig(t, f)
		// both sides touched the same contact after the watermark
		f.remote.Seed(connector.EntityContact,
			contactRecord("101", "Ada Lovelace", "ada@example.com", now),
		)
		f.hub.Seed(connector.EntityContact,
			contactRecord("h-1", "Ada King", "ada@example.com", now.Add(-time.Minute)),
		)

		job, err := f.executor.Launch(ctx, cfg, f.mapping, connector.DirectionInbound, syncdomain.TriggerManual)
		require.NoError(t, err)
		require.NoError(t, f.executor.Execute(ctx, job))

		exec := job.Execution
		assert.Equal(t, syncdomain.StatusCompleted, exec.Status)
		assert.Equal(t, 1, exec.SkippedRecords)
		assert.Empty(t, f.hub.Writes())

		conflicts, err := f.conflicts.FindAll(ctx, f.tenant, conflictdomain.Filter{})
		require.NoError(t, err)
		require.Len(t, conflicts, 1)
		c := conflicts[0]
		assert.False(t, c.IsResolved)
		assert.Equal(t, exec.ID, c.ExecutionID)
		assert.Equal(t, []string{"name"}, c.ConflictingFields)
	})

	t.Run("one-sided change after the watermark writes normally", func(t *testing.T) {
		f := newEngineFixture(t)
		cfg := deltaConfig(t, f)
		f.remote.Seed(connector.EntityContact,
			contactRecord("101", "Ada Lovelace", "ada@example.com", now),
		)
		// hub copy untouched since before the watermark
		f.hub.Seed(connector.EntityContact,
			contactRecord("h-1", "Ada King", "ada@example.com", watermark.Add(-time.Minute)),
		)

		job, err := f.executor.Launch(ctx, cfg, f.mapping, connector.DirectionInbound, syncdomain.TriggerManual)
		require.NoError(t, err)
		require.NoError(t, f.executor.Execute(ctx, job))

		assert.Equal(t, 1, job.Execution.UpdatedRecords)
		require.Len(t, f.hub.Writes(), 1)
		count, err := f.conflicts.Count(ctx, f.tenant, conflictdomain.Filter{})
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("full sync still detects conflicts from the watermark", func(t *testing.T) {
		f := newEngineFixture(t)
		cfg := f.manualConfig(t)
		cfg.Watermark = &watermark
		require.NoError(t, f.configs.Save(ctx, cfg))

		// delta sync is off, so the fetch is unbounded
		f.remote.Seed(connector.EntityContact,
			contactRecord("101", "Old", "old@example.com", watermark.Add(-time.Minute)),
			contactRecord("102", "Ada Lovelace", "ada@example.com", now),
		)
		f.hub.Seed(connector.EntityContact,
			contactRecord("h-1", "Ada King", "ada@example.com", now.Add(-time.Minute)),
		)

		job, err := f.executor.Launch(ctx, cfg, f.mapping, connector.DirectionInbound, syncdomain.TriggerManual)
		require.NoError(t, err)
		require.NoError(t, f.executor.Execute(ctx, job))

		exec := job.Execution
		// both records fetched, but the diverging one is held back
		assert.Equal(t, 2, exec.ProcessedRecords)
		assert.Equal(t, 1, exec.SkippedRecords)
		require.Len(t, f.hub.Writes(), 1)
		assert.Equal(t, "Old", f.hub.Writes()[0].Data["name"])

		conflicts, err := f.conflicts.FindAll(ctx, f.tenant, conflictdomain.Filter{})
		require.NoError(t, err)
		require.Len(t, conflicts, 1)
		assert.Equal(t, []string{"name"}, conflicts[0].ConflictingFields)
		assert.False(t, conflicts[0].IsResolved)
	})

	t.Run("source-wins policy resolves automatically and writes the source", func(t *testing.T) {
		f := newEngineFixture(t)
		f.mapping.ConflictPolicy = mapping.PolicySourceWins
		cfg := deltaConfig(t, f)
		f.remote.Seed(connector.EntityContact,
			contactRecord("101", "Ada Lovelace", "ada@example.com", now),
		)
		f.hub.Seed(connector.EntityContact,
			contactRecord("h-1", "Ada King", "ada@example.com", now.Add(-time.Minute)),
		)

		job, err := f.executor.Launch(ctx, cfg, f.mapping, connector.DirectionInbound, syncdomain.TriggerManual)
		require.NoError(t, err)
		require.NoError(t, f.executor.Execute(ctx, job))

		assert.Equal(t, 1, job.Execution.UpdatedRecords)
		require.Len(t, f.hub.Writes(), 1)
		assert.Equal(t, "Ada Lovelace", f.hub.Writes()[0].Data["name"])

		conflicts, err := f.conflicts.FindAll(ctx, f.tenant, conflictdomain.Filter{})
		require.NoError(t, err)
		require.Len(t, conflicts, 1)
		assert.True(t, conflicts[0].IsResolved)
		assert.Equal(t, "system", conflicts[0].ResolvedBy)
	})
}

func TestExecutorFailureClassification(t *testing.T) {
	ctx := context.Background()

	t.Run("rate limited remote backs the connection off", func(t *testing.T) {
		f := newEngineFixture(t)
		f.remote.FetchErr = fmt.Errorf("%w: too many requests", connector.ErrRateLimited)

		job, err := f.executor.Launch(ctx, nil, f.mapping, connector.DirectionInbound, syncdomain.TriggerManual)
		require.NoError(t, err)
		require.NoError(t, f.executor.Execute(ctx, job))

		assert.Equal(t, syncdomain.StatusFailed, job.Execution.Status)
		assert.Equal(t, connection.StatusRateLimited, f.conn.Status)
		require.NotNil(t, f.conn.RateLimitedUntil)
		assert.True(t, f.conn.RateLimitedUntil.After(time.Now()))
	})

	t.Run("expired credential parks the connection for re-auth", func(t *testing.T) {
		f := newEngineFixture(t)
		f.remote.FetchErr = fmt.Errorf("%w: session invalid", connector.ErrAuthExpired)

		job, err := f.executor.Launch(ctx, nil, f.mapping, connector.DirectionInbound, syncdomain.TriggerManual)
		require.NoError(t, err)
		require.NoError(t, f.executor.Execute(ctx, job))

		assert.Equal(t, syncdomain.StatusFailed, job.Execution.Status)
		assert.Equal(t, connection.StatusExpired, f.conn.Status)
		assert.Equal(t, 1, f.conn.ConsecutiveErrors)
	})

	t.Run("unavailable connection fails the run before fetching", func(t *testing.T) {
		f := newEngineFixture(t)
		require.NoError(t, f.conn.EnterMaintenance())
		require.NoError(t, f.connections.Save(ctx, f.conn))

		job, err := f.executor.Launch(ctx, nil, f.mapping, connector.DirectionInbound, syncdomain.TriggerManual)
		require.NoError(t, err)
		require.NoError(t, f.executor.Execute(ctx, job))

		assert.Equal(t, syncdomain.StatusFailed, job.Execution.Status)
		assert.Contains(t, job.Execution.LastError, "not available")
		assert.Empty(t, f.hub.Writes())
	})

	t.Run("excessive failure ratio aborts the run", func(t *testing.T) {
		cfg := DefaultExecutorConfig()
		cfg.FailureAbortRatio = 0.5
		cfg.FailureAbortMinimum = 2
		f := newEngineFixtureWithConfig(t, cfg)

		now := time.Now()
		f.remote.Seed(connector.EntityContact,
			// every record is missing the required name field
			connector.Record{ExternalID: "1", ModifiedAt: now, Data: map[string]any{"email": "a@example.com"}},
			connector.Record{ExternalID: "2", ModifiedAt: now, Data: map[string]any{"email": "b@example.com"}},
			connector.Record{ExternalID: "3", ModifiedAt: now, Data: map[string]any{"email": "c@example.com"}},
		)

		job, err := f.executor.Launch(ctx, nil, f.mapping, connector.DirectionInbound, syncdomain.TriggerManual)
		require.NoError(t, err)
		require.NoError(t, f.executor.Execute(ctx, job))

		assert.Equal(t, syncdomain.StatusFailed, job.Execution.Status)
		assert.Contains(t, job.Execution.LastError, "records failed")
	})
}

func TestExecutorRecordsLatencyOnConnection(t *testing.T) {
	ctx := context.Background()

	f := newEngineFixture(t)
	// deterministic clock: every observation advances 50ms, so the run
	// has a non-zero measured duration
	base := time.Now()
	var ticks int64
	f.executor.now = func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * 50 * time.Millisecond)
	}

	f.remote.Seed(connector.EntityContact,
		contactRecord("101", "Ada Lovelace", "ada@example.com", base),
	)

	job, err := f.executor.Launch(ctx, nil, f.mapping, connector.DirectionInbound, syncdomain.TriggerManual)
	require.NoError(t, err)
	require.NoError(t, f.executor.Execute(ctx, job))

	exec := job.Execution
	require.Equal(t, syncdomain.StatusCompleted, exec.Status)
	require.Positive(t, exec.DurationMs)

	// the first recorded success seeds the connection's rolling average
	assert.Equal(t, exec.DurationMs, f.conn.AvgResponseTimeMs)
	assert.Zero(t, f.conn.ConsecutiveErrors)
}

func TestExecutorCancellation(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	f := newEngineFixture(t)
	f.mapping.BatchSize = 1
	f.remote.Seed(connector.EntityContact,
		contactRecord("1", "One", "one@example.com", now),
		contactRecord("2", "Two", "two@example.com", now.Add(time.Minute)),
		contactRecord("3", "Three", "three@example.com", now.Add(2*time.Minute)),
	)

	job, err := f.executor.Launch(ctx, nil, f.mapping, connector.DirectionInbound, syncdomain.TriggerManual)
	require.NoError(t, err)
	require.NoError(t, f.executions.RequestCancel(ctx, f.tenant, job.Execution.ID))
	require.NoError(t, f.executor.Execute(ctx, job))

	exec := job.Execution
	assert.Equal(t, syncdomain.StatusCancelled, exec.Status)
	// the batch in flight completes; later batches never start
	assert.Equal(t, 1, exec.ProcessedRecords)
	assert.Len(t, f.hub.Writes(), 1)
	assert.NotNil(t, exec.FinishedAt)

	// the lock is free again after a cancelled run
	next, err := f.executor.Launch(ctx, nil, f.mapping, connector.DirectionInbound, syncdomain.TriggerManual)
	require.NoError(t, err)
	f.executor.Abort(ctx, next, "test cleanup")
}

type captureSubmitter struct {
	mu   stdsync.Mutex
	jobs []*Job
	dly  []time.Duration
}

func (s *captureSubmitter) SubmitAfter(job *Job, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	s.dly = append(s.dly, delay)
	return nil
}

func (s *captureSubmitter) take(t *testing.T, want int) []*Job {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.jobs, want)
	return append([]*Job(nil), s.jobs...)
}

func TestExecutorRetryChain(t *testing.T) {
	ctx := context.Background()

	f := newEngineFixture(t)
	submitter := &captureSubmitter{}
	f.executor.SetSubmitter(submitter)

	cfg := f.manualConfig(t)
	cfg.MaxRetries = 2
	require.NoError(t, f.configs.Save(ctx, cfg))

	f.remote.FetchErr = fmt.Errorf("%w: upstream 500", connector.ErrFetchFailed)

	job, err := f.executor.Launch(ctx, cfg, f.mapping, connector.DirectionInbound, syncdomain.TriggerScheduled)
	require.NoError(t, err)
	require.NoError(t, f.executor.Execute(ctx, job))

	// the failed run hands its lock to a chained retry
	assert.Equal(t, syncdomain.StatusRetrying, job.Execution.Status)
	first := submitter.take(t, 1)[0]
	assert.Equal(t, 1, first.Execution.RetryCount)
	require.NotNil(t, first.Execution.RetryOfID)
	assert.Equal(t, job.Execution.ID, *first.Execution.RetryOfID)
	assert.Equal(t, cfg.RetryDelay(1), submitter.dly[0])

	// a fresh trigger cannot sneak in while the retry holds the lock
	_, err = f.executor.Launch(ctx, cfg, f.mapping, connector.DirectionInbound, syncdomain.TriggerManual)
	assert.ErrorIs(t, err, syncdomain.ErrExecutionOverlap)

	require.NoError(t, f.executor.Execute(ctx, first))
	assert.Equal(t, syncdomain.StatusRetrying, first.Execution.Status)
	second := submitter.take(t, 2)[1]
	assert.Equal(t, 2, second.Execution.RetryCount)

	// the retry budget is spent after max_retries attempts
	require.NoError(t, f.executor.Execute(ctx, second))
	assert.Equal(t, syncdomain.StatusFailed, second.Execution.Status)
	submitter.take(t, 2)

	// recovery: the remote comes back and the next manual run succeeds
	f.remote.FetchErr = nil
	recovered, err := f.executor.Launch(ctx, cfg, f.mapping, connector.DirectionInbound, syncdomain.TriggerManual)
	require.NoError(t, err)
	require.NoError(t, f.executor.Execute(ctx, recovered))
	assert.Equal(t, syncdomain.StatusCompleted, recovered.Execution.Status)
}

func TestExecutorTimeoutRetryChainEndsFailed(t *testing.T) {
	ctx := context.Background()

	f := newEngineFixture(t)
	submitter := &captureSubmitter{}
	f.executor.SetSubmitter(submitter)

	cfg := f.manualConfig(t)
	cfg.MaxRetries = 2
	require.NoError(t, f.configs.Save(ctx, cfg))

	// every attempt blows its wall-clock budget
	f.remote.FetchErr = context.DeadlineExceeded

	job, err := f.executor.Launch(ctx, cfg, f.mapping, connector.DirectionInbound, syncdomain.TriggerScheduled)
	require.NoError(t, err)
	require.NoError(t, f.executor.Execute(ctx, job))

	// a timed-out run with budget left chains a retry
	assert.Equal(t, syncdomain.StatusRetrying, job.Execution.Status)
	first := submitter.take(t, 1)[0]
	assert.Equal(t, 1, first.Execution.RetryCount)

	require.NoError(t, f.executor.Execute(ctx, first))
	assert.Equal(t, syncdomain.StatusRetrying, first.Execution.Status)
	second := submitter.take(t, 2)[1]
	assert.Equal(t, 2, second.Execution.RetryCount)

	// the last link of the chain times out with the budget spent, so it
	// ends failed rather than timeout and chains nothing further
	require.NoError(t, f.executor.Execute(ctx, second))
	assert.Equal(t, syncdomain.StatusFailed, second.Execution.Status)
	assert.Equal(t, 2, second.Execution.RetryCount)
	assert.NotNil(t, second.Execution.FinishedAt)
	submitter.take(t, 2)
}
