package telemetry_test

import (
	"context"
	"runtime/pprof"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synchub/backend/internal/infrastructure/telemetry"
)

// labelFromFn captures the pprof label visible inside the wrapped function.
func labelFromFn(t *testing.T, labels map[string]string, key string) (string, bool) {
	t.Helper()

	var (
		value string
		ok    bool
	)
	ran := false
	telemetry.WithProfilingLabels(context.Background(), labels, func(ctx context.Context) {
		ran = true
		value, ok = pprof.Label(ctx, key)
	})
	require.True(t, ran, "wrapped function must run")
	return value, ok
}

func TestWithProfilingLabels(t *testing.T) {
	t.Run("nil and empty maps still run the function", func(t *testing.T) {
		for _, labels := range []map[string]string{nil, {}} {
			ran := false
			telemetry.WithProfilingLabels(context.Background(), labels, func(context.Context) {
				ran = true
			})
			assert.True(t, ran)
		}
	})

	t.Run("labels are visible inside the function", func(t *testing.T) {
		got, ok := labelFromFn(t, map[string]string{
			telemetry.ProfilingLabelOperation: "sync_execution",
		}, telemetry.ProfilingLabelOperation)
		require.True(t, ok)
		assert.Equal(t, "sync_execution", got)
	})

	t.Run("high cardinality keys are dropped", func(t *testing.T) {
		labels := map[string]string{
			telemetry.ProfilingLabelOperation: "sync_execution",
			"execution_id":                    "exec-456",
			"request_id":                      "req-abc",
		}
		_, ok := labelFromFn(t, labels, "execution_id")
		assert.False(t, ok)
		_, ok = labelFromFn(t, labels, "request_id")
		assert.False(t, ok)

		got, ok := labelFromFn(t, labels, telemetry.ProfilingLabelOperation)
		require.True(t, ok)
		assert.Equal(t, "sync_execution", got)
	})

	t.Run("tenant id is allowed", func(t *testing.T) {
		got, ok := labelFromFn(t, map[string]string{
			telemetry.ProfilingLabelTenantID: "tenant-123",
		}, telemetry.ProfilingLabelTenantID)
		require.True(t, ok)
		assert.Equal(t, "tenant-123", got)
	})

	t.Run("long values are truncated", func(t *testing.T) {
		got, ok := labelFromFn(t, map[string]string{
			"region": strings.Repeat("x", 300),
		}, "region")
		require.True(t, ok)
		assert.Len(t, got, telemetry.MaxLabelValueLength)
	})

	t.Run("keys are normalized to snake case", func(t *testing.T) {
		got, ok := labelFromFn(t, map[string]string{
			"Entity-Type": "contact",
		}, "entity_type")
		require.True(t, ok)
		assert.Equal(t, "contact", got)
	})

	t.Run("empty values are dropped", func(t *testing.T) {
		labels := map[string]string{
			"": "no key",
			telemetry.ProfilingLabelRegion: "",
		}
		ran := false
		telemetry.WithProfilingLabels(context.Background(), labels, func(ctx context.Context) {
			ran = true
			_, ok := pprof.Label(ctx, telemetry.ProfilingLabelRegion)
			assert.False(t, ok)
		})
		assert.True(t, ran)
	})

	t.Run("caller map can be mutated afterwards", func(t *testing.T) {
		labels := map[string]string{telemetry.ProfilingLabelOperation: "sync_execution"}
		telemetry.WithProfilingLabels(context.Background(), labels, func(ctx context.Context) {
			labels[telemetry.ProfilingLabelOperation] = "mutated"
			got, _ := pprof.Label(ctx, telemetry.ProfilingLabelOperation)
			assert.Equal(t, "sync_execution", got)
		})
	})
}

func TestOperationLabels(t *testing.T) {
	labels := telemetry.OperationLabels("sync_execution", map[string]string{
		"entity_type": "contact",
		"direction":   "pull",
	})

	assert.Equal(t, map[string]string{
		telemetry.ProfilingLabelOperation: "sync_execution",
		"entity_type":                     "contact",
		"direction":                       "pull",
	}, labels)

	t.Run("nil extras", func(t *testing.T) {
		labels := telemetry.OperationLabels("watermark_advance", nil)
		assert.Equal(t, map[string]string{
			telemetry.ProfilingLabelOperation: "watermark_advance",
		}, labels)
	})
}
