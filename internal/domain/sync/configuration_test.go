package sync

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig(t *testing.T, schedule Schedule) *SyncConfiguration {
	t.Helper()
	cfg, err := NewSyncConfiguration(uuid.New(), uuid.New(), uuid.New(), "hourly contacts", ModeScheduled, schedule)
	require.NoError(t, err)
	return cfg
}

func TestNewSyncConfiguration(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := createTestConfig(t, IntervalSchedule(60))

		assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
		assert.Equal(t, DefaultRetryDelaySeconds, cfg.RetryDelaySeconds)
		assert.True(t, cfg.IsActive)
		assert.False(t, cfg.IsPaused)
		assert.Nil(t, cfg.Watermark)
	})

	t.Run("rejects invalid schedule at save time", func(t *testing.T) {
		_, err := NewSyncConfiguration(uuid.New(), uuid.New(), uuid.New(), "bad", ModeScheduled, CronSchedule("bogus", "UTC"))
		assert.ErrorIs(t, err, ErrInvalidCronExpression)
	})

	t.Run("scheduled mode requires an enabled schedule", func(t *testing.T) {
		_, err := NewSyncConfiguration(uuid.New(), uuid.New(), uuid.New(), "bad", ModeScheduled, DisabledSchedule())
		assert.ErrorIs(t, err, ErrScheduleRequired)
	})

	t.Run("manual mode allows disabled schedule", func(t *testing.T) {
		cfg, err := NewSyncConfiguration(uuid.New(), uuid.New(), uuid.New(), "manual", ModeManual, DisabledSchedule())
		require.NoError(t, err)
		assert.Nil(t, cfg.NextRunAt)
	})

	t.Run("delta sync requires a delta field", func(t *testing.T) {
		cfg := createTestConfig(t, IntervalSchedule(60))
		assert.ErrorIs(t, cfg.EnableDeltaSync(""), ErrDeltaFieldRequired)

		require.NoError(t, cfg.EnableDeltaSync("write_date"))
		assert.True(t, cfg.UseDeltaSync)
	})
}

func TestConfigurationPauseResume(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("pause clears next run, keeps the schedule", func(t *testing.T) {
		cfg := createTestConfig(t, IntervalSchedule(30))
		cfg.AdvanceNextRun(now)
		require.NotNil(t, cfg.NextRunAt)

		cfg.Pause()
		assert.True(t, cfg.IsPaused)
		assert.Nil(t, cfg.NextRunAt)
		assert.Equal(t, KindInterval, cfg.Schedule.Kind)
	})

	t.Run("resume recomputes from now, not from missed ticks", func(t *testing.T) {
		cfg := createTestConfig(t, IntervalSchedule(30))
		cfg.AdvanceNextRun(now)
		cfg.Pause()

		later := now.Add(6 * time.Hour)
		cfg.Resume(later)
		assert.False(t, cfg.IsPaused)
		require.NotNil(t, cfg.NextRunAt)
		// interval schedules continue from the last run; the resulting
		// instant must not be in the backlog of the pause window
		assert.True(t, cfg.NextRunAt.After(now))
	})

	t.Run("paused configurations are never due", func(t *testing.T) {
		cfg := createTestConfig(t, IntervalSchedule(30))
		cfg.AdvanceNextRun(now)
		cfg.Pause()
		assert.False(t, cfg.IsDue(now.Add(24*time.Hour)))
	})
}

func TestConfigurationDue(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("due once next run passes", func(t *testing.T) {
		cfg := createTestConfig(t, IntervalSchedule(30))
		cfg.AdvanceNextRun(now)

		assert.False(t, cfg.IsDue(now.Add(29*time.Minute)))
		assert.True(t, cfg.IsDue(now.Add(30*time.Minute)))
		assert.True(t, cfg.IsDue(now.Add(45*time.Minute)))
	})

	t.Run("advance moves past now regardless of start outcome", func(t *testing.T) {
		cfg := createTestConfig(t, IntervalSchedule(30))
		cfg.AdvanceNextRun(now)
		due := *cfg.NextRunAt

		// tick at due time: advance happens whether or not the execution
		// could start; missed ticks are not backfilled
		cfg.AdvanceNextRun(due)
		assert.True(t, cfg.NextRunAt.After(due))
	})
}

func TestConfigurationRunAccounting(t *testing.T) {
	started := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("completed run advances watermark to run start", func(t *testing.T) {
		cfg := createTestConfig(t, IntervalSchedule(30))
		cfg.RecordRunFinished(StatusCompleted, started, 120)

		require.NotNil(t, cfg.Watermark)
		assert.Equal(t, started, *cfg.Watermark)
		assert.Equal(t, int64(120), cfg.TotalRecordsSynced)
		assert.Equal(t, StatusCompleted, cfg.LastRunStatus)
	})

	t.Run("partial run advances watermark", func(t *testing.T) {
		cfg := createTestConfig(t, IntervalSchedule(30))
		cfg.RecordRunFinished(StatusPartial, started, 80)
		require.NotNil(t, cfg.Watermark)
		assert.Equal(t, started, *cfg.Watermark)
	})

	t.Run("failed run keeps the old watermark", func(t *testing.T) {
		cfg := createTestConfig(t, IntervalSchedule(30))
		old := started.Add(-24 * time.Hour)
		cfg.Watermark = &old

		cfg.RecordRunFinished(StatusFailed, started, 0)
		assert.Equal(t, old, *cfg.Watermark)
		assert.Equal(t, StatusFailed, cfg.LastRunStatus)
	})
}

func TestConfigurationRetryPolicy(t *testing.T) {
	t.Run("exponential backoff with cap", func(t *testing.T) {
		cfg := createTestConfig(t, IntervalSchedule(30))
		cfg.RetryDelaySeconds = 60
		cfg.RetryBackoffFactor = 2.0

		assert.Equal(t, 1*time.Minute, cfg.RetryDelay(1))
		assert.Equal(t, 2*time.Minute, cfg.RetryDelay(2))
		assert.Equal(t, 4*time.Minute, cfg.RetryDelay(3))
		assert.Equal(t, 30*time.Minute, cfg.RetryDelay(12))
	})

	t.Run("timeout resolution order", func(t *testing.T) {
		cfg := createTestConfig(t, IntervalSchedule(30))

		// engine default when nothing is set
		assert.Equal(t, DefaultTimeoutSeconds*time.Second, cfg.ExecutionTimeout(0))
		// connector definition next
		assert.Equal(t, 120*time.Second, cfg.ExecutionTimeout(120))
		// configuration override wins
		cfg.TimeoutSeconds = 900
		assert.Equal(t, 900*time.Second, cfg.ExecutionTimeout(120))
	})
}
