package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/synchub/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func disabledMeterProvider(t *testing.T) *telemetry.MeterProvider {
	t.Helper()

	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:     false,
		ServiceName: "synchub-test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return mp
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	mp := disabledMeterProvider(t)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("synchub/engine"), "disabled provider still hands out meters")
	assert.NoError(t, mp.ForceFlush(context.Background()))
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestMeterProvider_GetConfig(t *testing.T) {
	cfg := telemetry.MetricsConfig{
		Enabled:           false,
		CollectorEndpoint: "collector:4317",
		ExportInterval:    time.Minute,
		ServiceName:       "synchub-backend",
		Insecure:          true,
	}

	mp, err := telemetry.NewMeterProvider(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, cfg, mp.GetConfig())
}

func sdkMeterFixture(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestCounter(t *testing.T) {
	reader, provider := sdkMeterFixture(t)
	meter := provider.Meter("test")

	counter, err := telemetry.NewCounter(meter, "sync_executions_total", "Completed executions", "{execution}")
	require.NoError(t, err)

	ctx := context.Background()
	counter.Inc(ctx, telemetry.AttrExecutionStatus.String("success"))
	counter.Add(ctx, 4, telemetry.AttrExecutionStatus.String("failed"))

	metrics := collect(t, reader)
	m, ok := metrics["sync_executions_total"]
	require.True(t, ok)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(5), total)
	assert.Len(t, sum.DataPoints, 2, "one series per execution status")
}

func TestHistogram(t *testing.T) {
	reader, provider := sdkMeterFixture(t)
	meter := provider.Meter("test")

	hist, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "sync_execution_duration_seconds",
		Description: "Execution wall-clock time",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	})
	require.NoError(t, err)

	ctx := context.Background()
	hist.Record(ctx, 0.75)
	hist.RecordDuration(ctx, 250*time.Millisecond)

	metrics := collect(t, reader)
	m, ok := metrics["sync_execution_duration_seconds"]
	require.True(t, ok)

	data, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, uint64(2), data.DataPoints[0].Count)
	assert.InDelta(t, 1.0, data.DataPoints[0].Sum, 1e-9)
}

func TestGauge(t *testing.T) {
	reader, provider := sdkMeterFixture(t)
	meter := provider.Meter("test")

	gauge, err := telemetry.NewGauge(meter, "sync_pending_executions", "Queued executions", "{execution}")
	require.NoError(t, err)

	ctx := context.Background()
	gauge.Record(ctx, 12)
	gauge.Record(ctx, 7) // last write wins

	metrics := collect(t, reader)
	m, ok := metrics["sync_pending_executions"]
	require.True(t, ok)

	data, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, int64(7), data.DataPoints[0].Value)
}

func TestAttributeKeys(t *testing.T) {
	assert.Equal(t, "tenant_id", string(telemetry.AttrTenantID))
	assert.Equal(t, "connector_type", string(telemetry.AttrConnectorType))
	assert.Equal(t, "sync_direction", string(telemetry.AttrSyncDirection))
	assert.Equal(t, "execution_status", string(telemetry.AttrExecutionStatus))
	assert.Equal(t, "trigger_source", string(telemetry.AttrTriggerSource))
	assert.Equal(t, "db.pool.state", string(telemetry.AttrDBState))
}

func TestDurationBuckets(t *testing.T) {
	assert.NotEmpty(t, telemetry.HTTPDurationBuckets)
	assert.NotEmpty(t, telemetry.DBDurationBuckets)
	assert.IsIncreasing(t, telemetry.HTTPDurationBuckets)
	assert.IsIncreasing(t, telemetry.DBDurationBuckets)
}
