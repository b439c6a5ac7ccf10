package telemetry

import (
	"context"

	"go.uber.org/zap"

	"github.com/synchub/backend/internal/domain/conflict"
	"github.com/synchub/backend/internal/domain/shared"
	syncdomain "github.com/synchub/backend/internal/domain/sync"
)

// EventMetricsRecorder feeds engine counters from domain events. It
// subscribes to the event bus next to the webhook dispatcher, so execution
// and conflict counters track the same terminal events tenants see.
type EventMetricsRecorder struct {
	metrics *EngineMetrics
	logger  *zap.Logger
}

// NewEventMetricsRecorder creates a recorder bound to the given metrics
func NewEventMetricsRecorder(metrics *EngineMetrics, logger *zap.Logger) *EventMetricsRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventMetricsRecorder{metrics: metrics, logger: logger}
}

// EventTypes returns the event types the recorder subscribes to
func (r *EventMetricsRecorder) EventTypes() []string {
	return []string{
		syncdomain.EventExecutionCompleted,
		syncdomain.EventExecutionFailed,
		conflict.EventRaised,
	}
}

// Handle translates a domain event into counter increments. Unknown event
// shapes are skipped with a debug log rather than failing the bus.
func (r *EventMetricsRecorder) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *syncdomain.ExecutionFinishedEvent:
		r.metrics.RecordExecutionFinished(ctx, e.TenantID(), string(e.Status), e.TriggerSource)
		if processed := int64(e.CreatedRecords + e.UpdatedRecords + e.SkippedRecords + e.FailedRecords); processed > 0 {
			r.metrics.RecordRecordsProcessed(ctx, e.TenantID(), e.Direction, e.Entity, processed)
		}
	case *conflict.RaisedEvent:
		r.metrics.RecordConflictDetected(ctx, e.TenantID(), e.Entity)
	default:
		r.logger.Debug("Skipping event with no counter mapping",
			zap.String("event_type", event.EventType()))
	}
	return nil
}
