// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// EngineMetrics provides sync engine metrics.
// It tracks execution outcomes, record throughput, conflict backlog and
// webhook delivery activity.
type EngineMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	executionTotal       *Counter
	recordsProcessed     *Counter
	conflictDetected     *Counter
	webhookDeliveryTotal *Counter

	// Gauge metrics (point-in-time values)
	unresolvedConflicts *Gauge
	runningExecutions   *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Data provider for periodic collection
	engineProvider EngineMetricsProvider
}

// EngineMetricsProvider provides engine state for periodic metrics collection.
// This interface allows the telemetry layer to query sync state without
// depending on the sync domain directly.
type EngineMetricsProvider interface {
	// GetUnresolvedConflictCount returns the open conflict backlog for a tenant
	GetUnresolvedConflictCount(ctx context.Context, tenantID uuid.UUID) (int64, error)

	// GetRunningExecutionCount returns the number of queued or running executions for a tenant
	GetRunningExecutionCount(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// EngineMetricsConfig holds configuration for engine metrics.
type EngineMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 1 minute
	EngineProvider  EngineMetricsProvider
}

// NewEngineMetrics creates a new EngineMetrics instance.
func NewEngineMetrics(cfg EngineMetricsConfig) (*EngineMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	em := &EngineMetrics{
		meter:          cfg.Meter,
		logger:         logger,
		stopChan:       make(chan struct{}),
		engineProvider: cfg.EngineProvider,
	}

	var err error

	em.executionTotal, err = NewCounter(
		cfg.Meter,
		"synchub_execution_total",
		"Total number of finished sync executions",
		"{executions}",
	)
	if err != nil {
		return nil, err
	}

	em.recordsProcessed, err = NewCounter(
		cfg.Meter,
		"synchub_records_processed_total",
		"Total number of records processed by sync executions",
		"{records}",
	)
	if err != nil {
		return nil, err
	}

	em.conflictDetected, err = NewCounter(
		cfg.Meter,
		"synchub_conflict_detected_total",
		"Total number of sync conflicts detected",
		"{conflicts}",
	)
	if err != nil {
		return nil, err
	}

	em.webhookDeliveryTotal, err = NewCounter(
		cfg.Meter,
		"synchub_webhook_delivery_total",
		"Total number of webhook delivery attempts",
		"{deliveries}",
	)
	if err != nil {
		return nil, err
	}

	em.unresolvedConflicts, err = NewGauge(
		cfg.Meter,
		"synchub_unresolved_conflicts",
		"Current open conflict backlog",
		"{conflicts}",
	)
	if err != nil {
		return nil, err
	}

	em.runningExecutions, err = NewGauge(
		cfg.Meter,
		"synchub_running_executions",
		"Number of executions currently queued or running",
		"{executions}",
	)
	if err != nil {
		return nil, err
	}

	return em, nil
}

// =============================================================================
// Execution Metrics
// =============================================================================

// RecordExecutionFinished records a terminal sync execution.
// This should be called from the engine when an execution reaches a terminal status.
func (em *EngineMetrics) RecordExecutionFinished(ctx context.Context, tenantID uuid.UUID, status, triggerSource string) {
	em.executionTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrExecutionStatus.String(status),
		AttrTriggerSource.String(triggerSource),
	)
}

// RecordRecordsProcessed records the record throughput of one execution.
func (em *EngineMetrics) RecordRecordsProcessed(ctx context.Context, tenantID uuid.UUID, direction, entity string, count int64) {
	if count <= 0 {
		return
	}
	em.recordsProcessed.Add(ctx, count,
		AttrTenantID.String(tenantID.String()),
		AttrSyncDirection.String(direction),
		AttrEntityType.String(entity),
	)
}

// RecordConflictDetected records a detected sync conflict.
func (em *EngineMetrics) RecordConflictDetected(ctx context.Context, tenantID uuid.UUID, entity string) {
	em.conflictDetected.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrEntityType.String(entity),
	)
}

// =============================================================================
// Webhook Metrics
// =============================================================================

// DeliveryOutcome represents the outcome of a webhook delivery attempt for metrics labeling.
type DeliveryOutcome string

const (
	DeliverySuccess DeliveryOutcome = "success"
	DeliveryFailed  DeliveryOutcome = "failed"
)

// RecordWebhookDelivery records a webhook delivery attempt.
func (em *EngineMetrics) RecordWebhookDelivery(ctx context.Context, tenantID uuid.UUID, eventType string, outcome DeliveryOutcome) {
	em.webhookDeliveryTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrEventType.String(eventType),
		AttrExecutionStatus.String(string(outcome)),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// TenantProvider provides tenant IDs for periodic metrics collection.
type TenantProvider interface {
	GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// StartPeriodicCollection starts periodic collection of gauge metrics.
// This is non-blocking - use Stop() to stop collection.
func (em *EngineMetrics) StartPeriodicCollection(ctx context.Context, tenantProvider TenantProvider, interval time.Duration) {
	em.collectOnce.Do(func() {
		if interval <= 0 {
			interval = time.Minute
		}

		go em.runPeriodicCollection(ctx, tenantProvider, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (em *EngineMetrics) runPeriodicCollection(ctx context.Context, tenantProvider TenantProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	em.collectEngineMetrics(ctx, tenantProvider)

	for {
		select {
		case <-em.stopChan:
			em.logger.Info("Stopping periodic engine metrics collection")
			return
		case <-ctx.Done():
			em.logger.Info("Context cancelled, stopping periodic engine metrics collection")
			return
		case <-ticker.C:
			em.collectEngineMetrics(ctx, tenantProvider)
		}
	}
}

// collectEngineMetrics collects gauge metrics for all tenants.
func (em *EngineMetrics) collectEngineMetrics(ctx context.Context, tenantProvider TenantProvider) {
	if em.engineProvider == nil {
		em.logger.Debug("No engine provider configured, skipping engine metrics collection")
		return
	}

	tenantIDs, err := tenantProvider.GetActiveTenantIDs(ctx)
	if err != nil {
		em.logger.Error("Failed to get tenant IDs for metrics collection", zap.Error(err))
		return
	}

	for _, tenantID := range tenantIDs {
		em.collectTenantEngineMetrics(ctx, tenantID)
	}
}

// collectTenantEngineMetrics collects gauge metrics for a single tenant.
func (em *EngineMetrics) collectTenantEngineMetrics(ctx context.Context, tenantID uuid.UUID) {
	backlog, err := em.engineProvider.GetUnresolvedConflictCount(ctx, tenantID)
	if err != nil {
		em.logger.Warn("Failed to get conflict backlog for tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	} else {
		em.unresolvedConflicts.Record(ctx, backlog,
			AttrTenantID.String(tenantID.String()),
		)
	}

	running, err := em.engineProvider.GetRunningExecutionCount(ctx, tenantID)
	if err != nil {
		em.logger.Warn("Failed to get running execution count for tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	} else {
		em.runningExecutions.Record(ctx, running,
			AttrTenantID.String(tenantID.String()),
		)
	}
}

// Stop stops the periodic collection.
func (em *EngineMetrics) Stop() {
	em.stopOnce.Do(func() {
		close(em.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewEngineMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
