// Package retention archives aged execution history and webhook delivery
// logs to the object store, then deletes the rows from the database.
package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appsync "github.com/synchub/backend/internal/application/sync"
	syncdomain "github.com/synchub/backend/internal/domain/sync"
	"github.com/synchub/backend/internal/domain/webhook"
	"github.com/synchub/backend/internal/infrastructure/archive"
)

// Config tunes one retention sweep.
type Config struct {
	// RetentionDays is the age past which terminal executions and delivery
	// logs are archived and removed.
	RetentionDays int
	// BatchSize bounds each select-archive-delete round trip.
	BatchSize int
	// LogPageSize bounds one page of execution log reads during archival.
	LogPageSize int
}

// DefaultConfig returns production retention settings.
func DefaultConfig() Config {
	return Config{
		RetentionDays: 90,
		BatchSize:     500,
		LogPageSize:   500,
	}
}

// Report summarizes one retention sweep.
type Report struct {
	Cutoff             time.Time `json:"cutoff"`
	ExecutionsArchived int       `json:"executions_archived"`
	DeliveriesArchived int       `json:"deliveries_archived"`
}

// executionArchive is the JSON object written per archived execution.
type executionArchive struct {
	ArchivedAt time.Time                      `json:"archived_at"`
	Execution  *appsync.ExecutionResponse     `json:"execution"`
	Logs       []appsync.ExecutionLogResponse `json:"logs,omitempty"`
}

// deliveryRecord carries the full delivery log row, request body included;
// the archive is the last copy before the row is deleted.
type deliveryRecord struct {
	ID             uuid.UUID `json:"id"`
	WebhookID      uuid.UUID `json:"webhook_id"`
	EventType      string    `json:"event_type"`
	EventID        string    `json:"event_id,omitempty"`
	Attempt        int       `json:"attempt"`
	RequestBody    string    `json:"request_body,omitempty"`
	ResponseStatus int       `json:"response_status,omitempty"`
	ResponseBody   string    `json:"response_body,omitempty"`
	LatencyMs      int64     `json:"latency_ms"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type deliveryArchive struct {
	TenantID   uuid.UUID        `json:"tenant_id"`
	ArchivedAt time.Time        `json:"archived_at"`
	Deliveries []deliveryRecord `json:"deliveries"`
}

// RetentionService moves aged rows out of the hot store. Executions are
// archived one object per execution together with their logs; delivery logs
// are archived in per-tenant batches. Rows are deleted only after the
// archive write succeeds, so a failed sweep leaves everything in place for
// the next run.
type RetentionService struct {
	config     Config
	executions syncdomain.ExecutionRepository
	execLogs   syncdomain.LogRepository
	deliveries webhook.DeliveryLogRepository
	store      archive.ObjectStore
	logger     *zap.Logger

	now func() time.Time
}

// NewRetentionService creates a retention service.
func NewRetentionService(
	cfg Config,
	executions syncdomain.ExecutionRepository,
	execLogs syncdomain.LogRepository,
	deliveries webhook.DeliveryLogRepository,
	store archive.ObjectStore,
	logger *zap.Logger,
) *RetentionService {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = DefaultConfig().RetentionDays
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.LogPageSize <= 0 {
		cfg.LogPageSize = DefaultConfig().LogPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionService{
		config:     cfg,
		executions: executions,
		execLogs:   execLogs,
		deliveries: deliveries,
		store:      store,
		logger:     logger,
		now:        time.Now,
	}
}

// Run performs one sweep and reports what was archived.
func (s *RetentionService) Run(ctx context.Context) (*Report, error) {
	started := s.now().UTC()
	cutoff := started.AddDate(0, 0, -s.config.RetentionDays)
	report := &Report{Cutoff: cutoff}

	archived, err := s.sweepExecutions(ctx, cutoff)
	report.ExecutionsArchived = archived
	if err != nil {
		return report, err
	}

	archived, err = s.sweepDeliveries(ctx, cutoff, started)
	report.DeliveriesArchived = archived
	if err != nil {
		return report, err
	}

	s.logger.Info("Retention sweep finished",
		zap.Time("cutoff", cutoff),
		zap.Int("executions_archived", report.ExecutionsArchived),
		zap.Int("deliveries_archived", report.DeliveriesArchived))
	return report, nil
}

func (s *RetentionService) sweepExecutions(ctx context.Context, cutoff time.Time) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		batch, err := s.executions.FindTerminalBefore(ctx, cutoff, s.config.BatchSize)
		if err != nil {
			return total, fmt.Errorf("select expired executions: %w", err)
		}
		if len(batch) == 0 {
			return total, nil
		}

		for _, e := range batch {
			if err := s.archiveExecution(ctx, e); err != nil {
				return total, err
			}
		}

		ids, err := s.executions.DeleteTerminalBefore(ctx, cutoff, len(batch))
		if err != nil {
			return total, fmt.Errorf("delete archived executions: %w", err)
		}
		if len(ids) > 0 {
			if err := s.execLogs.DeleteByExecutions(ctx, ids); err != nil {
				return total, fmt.Errorf("delete archived execution logs: %w", err)
			}
		}
		total += len(ids)

		if len(batch) < s.config.BatchSize {
			return total, nil
		}
	}
}

func (s *RetentionService) archiveExecution(ctx context.Context, e *syncdomain.SyncExecution) error {
	logs, err := s.collectExecutionLogs(ctx, e)
	if err != nil {
		return fmt.Errorf("read logs for execution %s: %w", e.ID, err)
	}

	doc := executionArchive{
		ArchivedAt: s.now().UTC(),
		Execution:  appsync.ToExecutionResponse(e),
		Logs:       appsync.ToExecutionLogResponses(logs),
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal execution %s: %w", e.ID, err)
	}

	day := e.CreatedAt.UTC()
	if e.FinishedAt != nil {
		day = e.FinishedAt.UTC()
	}
	key := fmt.Sprintf("executions/%s/%s/%s.json", e.TenantID, day.Format("2006-01-02"), e.ID)
	if err := s.store.Put(ctx, key, data, "application/json"); err != nil {
		return fmt.Errorf("archive execution %s: %w", e.ID, err)
	}
	return nil
}

func (s *RetentionService) collectExecutionLogs(ctx context.Context, e *syncdomain.SyncExecution) ([]*syncdomain.ExecutionLog, error) {
	var all []*syncdomain.ExecutionLog
	for page := 1; ; page++ {
		logs, err := s.execLogs.FindByExecution(ctx, e.TenantID, e.ID, nil, page, s.config.LogPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, logs...)
		if len(logs) < s.config.LogPageSize {
			return all, nil
		}
	}
}

func (s *RetentionService) sweepDeliveries(ctx context.Context, cutoff, started time.Time) (int, error) {
	stamp := started.Format("20060102T150405Z")
	total := 0
	for seq := 1; ; seq++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		batch, err := s.deliveries.FindBefore(ctx, cutoff, s.config.BatchSize)
		if err != nil {
			return total, fmt.Errorf("select expired delivery logs: %w", err)
		}
		if len(batch) == 0 {
			return total, nil
		}

		byTenant := make(map[uuid.UUID][]deliveryRecord)
		for _, l := range batch {
			byTenant[l.TenantID] = append(byTenant[l.TenantID], deliveryRecord{
				ID:             l.ID,
				WebhookID:      l.WebhookID,
				EventType:      l.EventType,
				EventID:        l.EventID,
				Attempt:        l.Attempt,
				RequestBody:    l.RequestBody,
				ResponseStatus: l.ResponseStatus,
				ResponseBody:   l.ResponseBody,
				LatencyMs:      l.LatencyMs,
				Success:        l.Success,
				Error:          l.Error,
				CreatedAt:      l.CreatedAt,
			})
		}
		for tenantID, records := range byTenant {
			doc := deliveryArchive{
				TenantID:   tenantID,
				ArchivedAt: s.now().UTC(),
				Deliveries: records,
			}
			data, err := json.Marshal(doc)
			if err != nil {
				return total, fmt.Errorf("marshal delivery logs for tenant %s: %w", tenantID, err)
			}
			key := fmt.Sprintf("deliveries/%s/%s-%04d.json", tenantID, stamp, seq)
			if err := s.store.Put(ctx, key, data, "application/json"); err != nil {
				return total, fmt.Errorf("archive delivery logs for tenant %s: %w", tenantID, err)
			}
		}

		deleted, err := s.deliveries.DeleteBefore(ctx, cutoff, len(batch))
		if err != nil {
			return total, fmt.Errorf("delete archived delivery logs: %w", err)
		}
		total += int(deleted)

		if len(batch) < s.config.BatchSize {
			return total, nil
		}
	}
}
