// Package sync provides the application service driving sync configurations
// and their executions: scheduling, manual triggers, cancellation, retries
// and execution history.
package sync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/synchub/backend/internal/domain/connection"
	"github.com/synchub/backend/internal/domain/connector"
	"github.com/synchub/backend/internal/domain/mapping"
	"github.com/synchub/backend/internal/domain/shared"
	syncdomain "github.com/synchub/backend/internal/domain/sync"
	"github.com/synchub/backend/internal/infrastructure/scheduler"
	"github.com/synchub/backend/internal/infrastructure/telemetry"
)

// RunLauncher creates queued executions with their locks held; the run
// executor implements it
type RunLauncher interface {
	Launch(ctx context.Context, cfg *syncdomain.SyncConfiguration, m *mapping.DataMapping, direction connector.Direction, source syncdomain.TriggerSource) (*scheduler.Job, error)
	Relaunch(ctx context.Context, cfg *syncdomain.SyncConfiguration, m *mapping.DataMapping, prev *syncdomain.SyncExecution) (*scheduler.Job, error)
	Abort(ctx context.Context, job *scheduler.Job, reason string)
}

// RunQueue hands launched jobs to the worker pool and exposes its
// operational state
type RunQueue interface {
	Submit(job *scheduler.Job) error
	Status() scheduler.Status
	History(limit int) []scheduler.JobRecord
}

// SyncService orchestrates sync configurations and executions
type SyncService struct {
	configs     syncdomain.ConfigRepository
	executions  syncdomain.ExecutionRepository
	execLogs    syncdomain.LogRepository
	mappings    mapping.Repository
	connections connection.Reader
	launcher    RunLauncher
	queue       RunQueue
	now         func() time.Time
}

// NewSyncService creates a new sync service
func NewSyncService(
	configs syncdomain.ConfigRepository,
	executions syncdomain.ExecutionRepository,
	execLogs syncdomain.LogRepository,
	mappings mapping.Repository,
	connections connection.Reader,
	launcher RunLauncher,
	queue RunQueue,
) *SyncService {
	return &SyncService{
		configs:     configs,
		executions:  executions,
		execLogs:    execLogs,
		mappings:    mappings,
		connections: connections,
		launcher:    launcher,
		queue:       queue,
		now:         time.Now,
	}
}

// CreateConfig creates a sync configuration for an active mapping. The
// connection is denormalized from the mapping so the scheduler can gate
// triggers without a join.
func (s *SyncService) CreateConfig(ctx context.Context, tenantID uuid.UUID, req CreateConfigRequest) (*ConfigResponse, error) {
	m, err := s.mappings.FindByID(ctx, tenantID, req.MappingID)
	if err != nil {
		return nil, err
	}
	if !m.IsActive {
		return nil, mapping.ErrMappingInactive
	}
	if _, err := s.connections.FindByID(ctx, tenantID, m.ConnectionID); err != nil {
		return nil, err
	}

	cfg, err := syncdomain.NewSyncConfiguration(tenantID, m.ID, m.ConnectionID, req.Name,
		syncdomain.SyncMode(req.SyncMode), req.Schedule.toDomain())
	if err != nil {
		return nil, err
	}

	if req.UseDeltaSync {
		if err := cfg.EnableDeltaSync(req.DeltaField); err != nil {
			return nil, err
		}
	}
	if req.MaxRetries != nil {
		cfg.MaxRetries = *req.MaxRetries
	}
	if req.RetryDelaySeconds != nil {
		cfg.RetryDelaySeconds = *req.RetryDelaySeconds
	}
	if req.RetryBackoffFactor != nil {
		cfg.RetryBackoffFactor = *req.RetryBackoffFactor
	}
	if req.TimeoutSeconds != nil {
		cfg.TimeoutSeconds = *req.TimeoutSeconds
	}
	cfg.NotifyOnSuccess = req.NotifyOnSuccess
	cfg.NotifyOnError = req.NotifyOnError
	cfg.NotificationTargets = req.NotificationTargets
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Computes the first next_run_at from now
	if err := cfg.UpdateSchedule(cfg.Schedule, s.now()); err != nil {
		return nil, err
	}

	if err := s.configs.Save(ctx, cfg); err != nil {
		return nil, err
	}
	return ToConfigResponse(cfg), nil
}

// GetConfig retrieves a configuration by ID
func (s *SyncService) GetConfig(ctx context.Context, tenantID, configID uuid.UUID) (*ConfigResponse, error) {
	cfg, err := s.configs.FindByID(ctx, tenantID, configID)
	if err != nil {
		return nil, err
	}
	return ToConfigResponse(cfg), nil
}

// ListConfigs retrieves configurations matching the filter
func (s *SyncService) ListConfigs(ctx context.Context, tenantID uuid.UUID, filter ConfigListFilter) ([]ConfigResponse, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}

	domainFilter := syncdomain.ConfigFilter{
		MappingID:    filter.MappingID,
		ConnectionID: filter.ConnectionID,
		IsPaused:     filter.IsPaused,
		IsActive:     filter.IsActive,
		Page:         filter.Page,
		PageSize:     filter.PageSize,
	}
	if filter.SyncMode != "" {
		mode := syncdomain.SyncMode(filter.SyncMode)
		domainFilter.SyncMode = &mode
	}

	configs, err := s.configs.FindAll(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.configs.Count(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToConfigResponses(configs), total, nil
}

// UpdateConfig updates a configuration. A schedule change recomputes the
// next run from now.
func (s *SyncService) UpdateConfig(ctx context.Context, tenantID, configID uuid.UUID, req UpdateConfigRequest) (*ConfigResponse, error) {
	cfg, err := s.configs.FindByID(ctx, tenantID, configID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, syncdomain.ErrConfigNameRequired
		}
		cfg.Name = *req.Name
	}
	if req.UseDeltaSync != nil {
		if *req.UseDeltaSync {
			field := cfg.DeltaField
			if req.DeltaField != nil {
				field = *req.DeltaField
			}
			if err := cfg.EnableDeltaSync(field); err != nil {
				return nil, err
			}
		} else {
			cfg.DisableDeltaSync()
		}
	} else if req.DeltaField != nil {
		cfg.DeltaField = *req.DeltaField
	}
	if req.MaxRetries != nil {
		cfg.MaxRetries = *req.MaxRetries
	}
	if req.RetryDelaySeconds != nil {
		cfg.RetryDelaySeconds = *req.RetryDelaySeconds
	}
	if req.RetryBackoffFactor != nil {
		cfg.RetryBackoffFactor = *req.RetryBackoffFactor
	}
	if req.TimeoutSeconds != nil {
		cfg.TimeoutSeconds = *req.TimeoutSeconds
	}
	if req.NotifyOnSuccess != nil {
		cfg.NotifyOnSuccess = *req.NotifyOnSuccess
	}
	if req.NotifyOnError != nil {
		cfg.NotifyOnError = *req.NotifyOnError
	}
	if req.NotificationTargets != nil {
		cfg.NotificationTargets = req.NotificationTargets
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if req.Schedule != nil {
		if err := cfg.UpdateSchedule(req.Schedule.toDomain(), s.now()); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	} else {
		cfg.Touch()
	}

	if err := s.configs.Save(ctx, cfg); err != nil {
		return nil, err
	}
	return ToConfigResponse(cfg), nil
}

// PauseConfig stops future triggers without discarding the schedule
func (s *SyncService) PauseConfig(ctx context.Context, tenantID, configID uuid.UUID) (*ConfigResponse, error) {
	cfg, err := s.configs.FindByID(ctx, tenantID, configID)
	if err != nil {
		return nil, err
	}
	cfg.Pause()
	if err := s.configs.Save(ctx, cfg); err != nil {
		return nil, err
	}
	return ToConfigResponse(cfg), nil
}

// ResumeConfig re-enables triggers; ticks missed while paused are not
// backfilled
func (s *SyncService) ResumeConfig(ctx context.Context, tenantID, configID uuid.UUID) (*ConfigResponse, error) {
	cfg, err := s.configs.FindByID(ctx, tenantID, configID)
	if err != nil {
		return nil, err
	}
	cfg.Resume(s.now())
	if err := s.configs.Save(ctx, cfg); err != nil {
		return nil, err
	}
	return ToConfigResponse(cfg), nil
}

// DeleteConfig removes a configuration. Past executions keep their rows;
// only the schedule goes away.
func (s *SyncService) DeleteConfig(ctx context.Context, tenantID, configID uuid.UUID) error {
	if _, err := s.configs.FindByID(ctx, tenantID, configID); err != nil {
		return err
	}
	return s.configs.Delete(ctx, tenantID, configID)
}

// NextRuns projects the upcoming trigger instants of a configuration
func (s *SyncService) NextRuns(ctx context.Context, tenantID, configID uuid.UUID, count int) (*NextRunsResponse, error) {
	cfg, err := s.configs.FindByID(ctx, tenantID, configID)
	if err != nil {
		return nil, err
	}
	if count < 1 {
		count = 5
	}
	return &NextRunsResponse{ConfigID: cfg.ID, NextRuns: cfg.NextRuns(s.now(), count)}, nil
}

// TriggerConfig starts a manual run of a configuration. It fails
// synchronously with ErrExecutionOverlap while another run of the same
// configuration is active.
func (s *SyncService) TriggerConfig(ctx context.Context, tenantID, configID uuid.UUID) (*ExecutionResponse, error) {
	cfg, err := s.configs.FindByID(ctx, tenantID, configID)
	if err != nil {
		return nil, err
	}
	if !cfg.IsActive {
		return nil, shared.NewDomainError("SYNC_CONFIG_INACTIVE", "Sync configuration is deactivated")
	}
	if cfg.IsPaused {
		return nil, syncdomain.ErrConfigPaused
	}
	m, err := s.mappings.FindByID(ctx, tenantID, cfg.MappingID)
	if err != nil {
		return nil, err
	}
	if !m.IsActive {
		return nil, mapping.ErrMappingInactive
	}

	return s.submit(ctx, cfg, m, "", syncdomain.TriggerManual)
}

// TriggerMapping starts an ad-hoc run of a mapping without a configuration.
// The mapping ID serves as the lock key, so ad-hoc runs of the same mapping
// never overlap.
func (s *SyncService) TriggerMapping(ctx context.Context, tenantID, mappingID uuid.UUID, req TriggerMappingRequest) (*ExecutionResponse, error) {
	m, err := s.mappings.FindByID(ctx, tenantID, mappingID)
	if err != nil {
		return nil, err
	}
	if !m.IsActive {
		return nil, mapping.ErrMappingInactive
	}

	return s.submit(ctx, nil, m, connector.Direction(req.Direction), syncdomain.TriggerAPI)
}

// submit launches an execution and hands it to the worker pool; a queue
// refusal fails the execution and releases its lock
func (s *SyncService) submit(ctx context.Context, cfg *syncdomain.SyncConfiguration, m *mapping.DataMapping, direction connector.Direction, source syncdomain.TriggerSource) (*ExecutionResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sync", "submit_execution")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrMappingID, m.ID.String(),
		telemetry.SpanAttrTriggerSource, string(source),
	)

	job, err := s.launcher.Launch(ctx, cfg, m, direction, source)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.queue.Submit(job); err != nil {
		s.launcher.Abort(ctx, job, "scheduler rejected the job: "+err.Error())
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrExecutionID, job.Execution.ID.String())
	telemetry.SetOK(span)
	return ToExecutionResponse(job.Execution), nil
}

// CancelExecution requests cooperative cancellation of a queued or running
// execution; the worker honors it at the next batch boundary
func (s *SyncService) CancelExecution(ctx context.Context, tenantID, executionID uuid.UUID) (*ExecutionResponse, error) {
	if err := s.executions.RequestCancel(ctx, tenantID, executionID); err != nil {
		return nil, err
	}
	exec, err := s.executions.FindByID(ctx, tenantID, executionID)
	if err != nil {
		return nil, err
	}
	return ToExecutionResponse(exec), nil
}

// RetryExecution manually queues a retry of a terminal failed or timed-out
// execution, regardless of the automatic retry budget
func (s *SyncService) RetryExecution(ctx context.Context, tenantID, executionID uuid.UUID) (*ExecutionResponse, error) {
	prev, err := s.executions.FindByID(ctx, tenantID, executionID)
	if err != nil {
		return nil, err
	}

	var cfg *syncdomain.SyncConfiguration
	if prev.ConfigID != nil {
		cfg, err = s.configs.FindByID(ctx, tenantID, *prev.ConfigID)
		if err != nil {
			return nil, err
		}
	}
	m, err := s.mappings.FindByID(ctx, tenantID, prev.MappingID)
	if err != nil {
		return nil, err
	}

	job, err := s.launcher.Relaunch(ctx, cfg, m, prev)
	if err != nil {
		return nil, err
	}
	if err := s.queue.Submit(job); err != nil {
		s.launcher.Abort(ctx, job, "scheduler rejected the job: "+err.Error())
		return nil, err
	}
	return ToExecutionResponse(job.Execution), nil
}

// GetExecution retrieves an execution by ID
func (s *SyncService) GetExecution(ctx context.Context, tenantID, executionID uuid.UUID) (*ExecutionResponse, error) {
	exec, err := s.executions.FindByID(ctx, tenantID, executionID)
	if err != nil {
		return nil, err
	}
	return ToExecutionResponse(exec), nil
}

// ListExecutions retrieves executions matching the filter, newest first
func (s *SyncService) ListExecutions(ctx context.Context, tenantID uuid.UUID, filter ExecutionListFilter) ([]ExecutionResponse, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}

	domainFilter := syncdomain.ExecutionFilter{
		ConfigID:     filter.ConfigID,
		MappingID:    filter.MappingID,
		ConnectionID: filter.ConnectionID,
		IsRetry:      filter.IsRetry,
		Since:        filter.Since,
		Page:         filter.Page,
		PageSize:     filter.PageSize,
	}
	if filter.Status != "" {
		status := syncdomain.ExecutionStatus(filter.Status)
		domainFilter.Status = &status
	}
	if filter.EntityType != "" {
		entity := connector.EntityType(filter.EntityType)
		domainFilter.EntityType = &entity
	}

	executions, err := s.executions.FindAll(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.executions.Count(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToExecutionResponses(executions), total, nil
}

// GetProgress retrieves the live progress snapshot of one execution
func (s *SyncService) GetProgress(ctx context.Context, tenantID, executionID uuid.UUID) (*ExecutionProgressResponse, error) {
	exec, err := s.executions.FindByID(ctx, tenantID, executionID)
	if err != nil {
		return nil, err
	}
	return &ExecutionProgressResponse{
		ID:               exec.ID,
		Status:           string(exec.Status),
		TotalRecords:     exec.TotalRecords,
		ProcessedRecords: exec.ProcessedRecords,
		CreatedRecords:   exec.CreatedRecords,
		UpdatedRecords:   exec.UpdatedRecords,
		SkippedRecords:   exec.SkippedRecords,
		FailedRecords:    exec.FailedRecords,
		ProgressPercent:  exec.ProgressPercent,
		CancelRequested:  exec.CancelRequested,
		StartedAt:        exec.StartedAt,
		DurationMs:       exec.DurationMs,
	}, nil
}

// GetExecutionLogs retrieves the trace entries of one execution in
// insertion order
func (s *SyncService) GetExecutionLogs(ctx context.Context, tenantID, executionID uuid.UUID, level string, page, pageSize int) ([]ExecutionLogResponse, error) {
	if _, err := s.executions.FindByID(ctx, tenantID, executionID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	var levelFilter *syncdomain.LogLevel
	if level != "" {
		l := syncdomain.LogLevel(level)
		levelFilter = &l
	}

	logs, err := s.execLogs.FindByExecution(ctx, tenantID, executionID, levelFilter, page, pageSize)
	if err != nil {
		return nil, err
	}
	return ToExecutionLogResponses(logs), nil
}

// SchedulerStatus returns the worker pool's operational snapshot with its
// recent run history
func (s *SyncService) SchedulerStatus(historyLimit int) scheduler.Status {
	status := s.queue.Status()
	status.History = s.queue.History(historyLimit)
	return status
}
