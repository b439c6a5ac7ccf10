package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synchub/backend/internal/domain/connection"
	"github.com/synchub/backend/internal/domain/connector"
	"github.com/synchub/backend/internal/domain/sync"
	"github.com/synchub/backend/internal/infrastructure/persistence"
)

// TestSyncExecutionRepository_Integration exercises execution numbering,
// locking and cancellation against a real PostgreSQL database
func TestSyncExecutionRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	repo := persistence.NewGormSyncExecutionRepository(testDB.DB)
	ctx := context.Background()
	tenantID := uuid.New()
	mappingID := uuid.New()
	connectionID := uuid.New()

	newExecution := func(configID *uuid.UUID) *sync.SyncExecution {
		return sync.NewSyncExecution(tenantID, configID, mappingID, connectionID,
			connector.DirectionInbound, connector.EntityContact, sync.TriggerScheduled)
	}

	t.Run("Create assigns monotonic execution numbers per configuration", func(t *testing.T) {
		configID := uuid.New()

		first := newExecution(&configID)
		require.NoError(t, repo.Create(ctx, first))
		assert.Equal(t, int64(1), first.ExecutionNumber)

		second := newExecution(&configID)
		require.NoError(t, repo.Create(ctx, second))
		assert.Equal(t, int64(2), second.ExecutionNumber)

		// A different configuration starts its own sequence
		otherConfig := uuid.New()
		third := newExecution(&otherConfig)
		require.NoError(t, repo.Create(ctx, third))
		assert.Equal(t, int64(1), third.ExecutionNumber)

		// Ad-hoc runs have no configuration and no sequence
		adhoc := newExecution(nil)
		require.NoError(t, repo.Create(ctx, adhoc))
		assert.Equal(t, int64(0), adhoc.ExecutionNumber)
	})

	t.Run("Update and FindByID round-trip progress", func(t *testing.T) {
		e := newExecution(nil)
		require.NoError(t, repo.Create(ctx, e))

		require.NoError(t, e.Enqueue())
		require.NoError(t, e.Begin(time.Now()))
		e.SetTotal(200)
		e.ApplyBatch(sync.BatchResult{Processed: 100, Created: 60, Updated: 30, Skipped: 8, Failed: 2})
		e.RecordError("rec-17", "email", "invalid address", time.Now())
		require.NoError(t, repo.Update(ctx, e))

		found, err := repo.FindByID(ctx, tenantID, e.ID)
		require.NoError(t, err)
		assert.Equal(t, sync.StatusRunning, found.Status)
		assert.Equal(t, 100, found.ProcessedRecords)
		assert.Equal(t, 50, found.ProgressPercent)
		assert.Equal(t, "invalid address", found.LastError)
		require.Len(t, found.Errors, 1)
		assert.Equal(t, "rec-17", found.Errors[0].RecordID)

		_, err = repo.FindByID(ctx, tenantID, uuid.New())
		assert.ErrorIs(t, err, sync.ErrExecutionNotFound)
	})

	t.Run("AcquireLock rejects a concurrent holder and steals an expired one", func(t *testing.T) {
		lockKey := uuid.New()
		holder := uuid.New()
		rival := uuid.New()

		require.NoError(t, repo.AcquireLock(ctx, lockKey, holder, time.Minute))

		err := repo.AcquireLock(ctx, lockKey, rival, time.Minute)
		assert.ErrorIs(t, err, sync.ErrExecutionOverlap)

		// Re-acquire by the same holder extends the lease only after expiry,
		// so it is rejected too while the lease is live
		err = repo.AcquireLock(ctx, lockKey, holder, time.Minute)
		assert.ErrorIs(t, err, sync.ErrExecutionOverlap)

		require.NoError(t, repo.ReleaseLock(ctx, lockKey, holder))
		assert.NoError(t, repo.AcquireLock(ctx, lockKey, rival, time.Minute))
		require.NoError(t, repo.ReleaseLock(ctx, lockKey, rival))

		// An expired lease left by a crashed process is stolen in place
		require.NoError(t, repo.AcquireLock(ctx, lockKey, holder, -time.Second))
		assert.NoError(t, repo.AcquireLock(ctx, lockKey, rival, time.Minute))

		// Releasing with the stale owner is a no-op; the lock stays with the thief
		require.NoError(t, repo.ReleaseLock(ctx, lockKey, holder))
		err = repo.AcquireLock(ctx, lockKey, holder, time.Minute)
		assert.ErrorIs(t, err, sync.ErrExecutionOverlap)
	})

	t.Run("RequestCancel flags a running execution", func(t *testing.T) {
		e := newExecution(nil)
		require.NoError(t, repo.Create(ctx, e))
		require.NoError(t, e.Enqueue())
		require.NoError(t, e.Begin(time.Now()))
		require.NoError(t, repo.Update(ctx, e))

		flagged, err := repo.IsCancelRequested(ctx, e.ID)
		require.NoError(t, err)
		assert.False(t, flagged)

		require.NoError(t, repo.RequestCancel(ctx, tenantID, e.ID))

		flagged, err = repo.IsCancelRequested(ctx, e.ID)
		require.NoError(t, err)
		assert.True(t, flagged)
	})

	t.Run("RequestCancel rejects terminal and unknown executions", func(t *testing.T) {
		e := newExecution(nil)
		require.NoError(t, repo.Create(ctx, e))
		require.NoError(t, e.Enqueue())
		require.NoError(t, e.Begin(time.Now()))
		require.NoError(t, e.Finish(time.Now()))
		require.NoError(t, repo.Update(ctx, e))

		err := repo.RequestCancel(ctx, tenantID, e.ID)
		assert.ErrorIs(t, err, sync.ErrExecutionNotCancellable)

		err = repo.RequestCancel(ctx, tenantID, uuid.New())
		assert.ErrorIs(t, err, sync.ErrExecutionNotFound)
	})

	t.Run("retry chains as a new execution in the same sequence", func(t *testing.T) {
		configID := uuid.New()

		failed := newExecution(&configID)
		require.NoError(t, repo.Create(ctx, failed))
		require.NoError(t, failed.Enqueue())
		require.NoError(t, failed.Begin(time.Now()))
		require.NoError(t, failed.Fail(time.Now(), "remote unavailable"))
		require.NoError(t, repo.Update(ctx, failed))

		retry, err := sync.NewRetryExecution(failed)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, retry))

		assert.Equal(t, int64(2), retry.ExecutionNumber)
		assert.True(t, retry.IsRetry)
		require.NotNil(t, retry.RetryOfID)
		assert.Equal(t, failed.ID, *retry.RetryOfID)

		// The failed run keeps its own record untouched
		prev, err := repo.FindByID(ctx, tenantID, failed.ID)
		require.NoError(t, err)
		assert.Equal(t, sync.StatusFailed, prev.Status)
	})
}

// TestSyncConfigRepository_Integration covers the scheduler's due query and
// the delta watermark round-trip
func TestSyncConfigRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	configRepo := persistence.NewGormSyncConfigRepository(testDB.DB)
	connRepo := persistence.NewGormConnectionRepository(testDB.DB)
	ctx := context.Background()
	tenantID := uuid.New()

	// FindDue joins connections to gate triggers on connection state, so a
	// real connected connection backs each configuration
	newConnection := func(code string) *connection.Connection {
		conn, err := connection.NewConnection(tenantID, code, code,
			connector.TypeOdoo, connector.AuthAPIKey, "https://odoo.example.com", "17.0", uuid.New())
		require.NoError(t, err)
		require.NoError(t, conn.BeginConfiguring())
		require.NoError(t, conn.MarkConnected())
		require.NoError(t, connRepo.Save(ctx, conn))
		return conn
	}

	newConfig := func(name string, conn *connection.Connection) *sync.SyncConfiguration {
		cfg, err := sync.NewSyncConfiguration(tenantID, uuid.New(), conn.ID, name,
			sync.ModeScheduled, sync.IntervalSchedule(15))
		require.NoError(t, err)
		return cfg
	}

	t.Run("FindDue returns only unpaused active configurations past next_run_at", func(t *testing.T) {
		conn := newConnection("due-conn")
		now := time.Now()
		past := now.Add(-time.Minute)
		future := now.Add(time.Hour)

		due := newConfig("due", conn)
		due.NextRunAt = &past
		require.NoError(t, configRepo.Save(ctx, due))

		notYet := newConfig("not yet", conn)
		notYet.NextRunAt = &future
		require.NoError(t, configRepo.Save(ctx, notYet))

		paused := newConfig("paused", conn)
		paused.NextRunAt = &past
		paused.Pause()
		require.NoError(t, configRepo.Save(ctx, paused))

		never := newConfig("never scheduled", conn)
		require.NoError(t, configRepo.Save(ctx, never))

		found, err := configRepo.FindDue(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, due.ID, found[0].ID)

		// Clean up so later subtests see a fresh due set
		require.NoError(t, configRepo.Delete(ctx, tenantID, due.ID))
	})

	t.Run("FindDue skips connections in maintenance", func(t *testing.T) {
		conn := newConnection("maint-conn")
		now := time.Now()
		past := now.Add(-time.Minute)

		cfg := newConfig("maintenance gated", conn)
		cfg.NextRunAt = &past
		require.NoError(t, configRepo.Save(ctx, cfg))

		found, err := configRepo.FindDue(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, found, 1)

		require.NoError(t, conn.EnterMaintenance())
		require.NoError(t, connRepo.Save(ctx, conn))

		found, err = configRepo.FindDue(ctx, now, 10)
		require.NoError(t, err)
		assert.Empty(t, found)

		// Clean up so later subtests see a fresh due set
		require.NoError(t, configRepo.Delete(ctx, tenantID, cfg.ID))
	})

	t.Run("watermark round-trips", func(t *testing.T) {
		conn := newConnection("delta-conn")
		cfg := newConfig("delta", conn)
		require.NoError(t, cfg.EnableDeltaSync("write_date"))

		watermark := time.Now().Add(-2 * time.Hour).UTC().Truncate(time.Millisecond)
		cfg.Watermark = &watermark
		require.NoError(t, configRepo.Save(ctx, cfg))

		found, err := configRepo.FindByID(ctx, tenantID, cfg.ID)
		require.NoError(t, err)
		assert.True(t, found.UseDeltaSync)
		assert.Equal(t, "write_date", found.DeltaField)
		require.NotNil(t, found.Watermark)
		assert.WithinDuration(t, watermark, *found.Watermark, time.Millisecond)
	})

	t.Run("pause and resume round-trip the due state", func(t *testing.T) {
		conn := newConnection("pause-conn")
		cfg := newConfig("pausable", conn)
		now := time.Now()
		past := now.Add(-time.Minute)
		cfg.NextRunAt = &past
		require.NoError(t, configRepo.Save(ctx, cfg))

		cfg.Pause()
		require.NoError(t, configRepo.Save(ctx, cfg))
		found, err := configRepo.FindByID(ctx, tenantID, cfg.ID)
		require.NoError(t, err)
		assert.True(t, found.IsPaused)
		assert.Nil(t, found.NextRunAt)

		found.Resume(now)
		require.NoError(t, configRepo.Save(ctx, found))
		found, err = configRepo.FindByID(ctx, tenantID, cfg.ID)
		require.NoError(t, err)
		assert.False(t, found.IsPaused)
		require.NotNil(t, found.NextRunAt)
		assert.True(t, found.NextRunAt.After(now))
	})
}
