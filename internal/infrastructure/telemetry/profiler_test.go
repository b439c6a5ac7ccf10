package telemetry_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synchub/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap/zaptest"
)

func TestNewProfiler_Disabled(t *testing.T) {
	cfg := telemetry.ProfilerConfig{
		Enabled:         false,
		ServerAddress:   "http://localhost:4040",
		ApplicationName: "sync-engine",
	}

	p, err := telemetry.NewProfiler(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.False(t, p.IsEnabled())
	assert.Equal(t, "sync-engine", p.GetConfig().ApplicationName)
	assert.NoError(t, p.Stop())
}

func TestNewProfiler_ValidatesConfig(t *testing.T) {
	t.Run("missing server address", func(t *testing.T) {
		_, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
			Enabled:         true,
			ApplicationName: "sync-engine",
		}, zaptest.NewLogger(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server address is required")
	})

	t.Run("missing application name", func(t *testing.T) {
		_, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
			Enabled:       true,
			ServerAddress: "http://localhost:4040",
		}, zaptest.NewLogger(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "application name is required")
	})
}

func TestProfiler_StopIsIdempotent(t *testing.T) {
	p, err := telemetry.NewProfiler(telemetry.ProfilerConfig{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
}

func TestProfiler_ConcurrentStop(t *testing.T) {
	p, err := telemetry.NewProfiler(telemetry.ProfilerConfig{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Stop())
		}()
	}
	wg.Wait()
}

func TestProfilerConfig_Copy(t *testing.T) {
	cfg := telemetry.ProfilerConfig{
		Enabled:         false,
		ApplicationName: "sync-engine",
		ProfileCPU:      true,
	}
	p, err := telemetry.NewProfiler(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	got := p.GetConfig()
	got.ApplicationName = "mutated"
	assert.Equal(t, "sync-engine", p.GetConfig().ApplicationName)
}
