package sync

import (
	"time"

	"github.com/google/uuid"

	syncdomain "github.com/synchub/backend/internal/domain/sync"
)

// ScheduleDTO is the wire shape of a configuration schedule
type ScheduleDTO struct {
	Kind            string `json:"kind" binding:"required,oneof=disabled cron interval"`
	CronExpr        string `json:"cron_expr" binding:"omitempty"`
	Timezone        string `json:"timezone" binding:"omitempty"`
	IntervalMinutes int    `json:"interval_minutes" binding:"omitempty,min=1"`
}

// toDomain converts the DTO into the schedule variant it names
func (d ScheduleDTO) toDomain() syncdomain.Schedule {
	switch syncdomain.ScheduleKind(d.Kind) {
	case syncdomain.KindCron:
		return syncdomain.CronSchedule(d.CronExpr, d.Timezone)
	case syncdomain.KindInterval:
		return syncdomain.IntervalSchedule(d.IntervalMinutes)
	}
	return syncdomain.DisabledSchedule()
}

func toScheduleDTO(s syncdomain.Schedule) ScheduleDTO {
	return ScheduleDTO{
		Kind:            string(s.Kind),
		CronExpr:        s.CronExpr,
		Timezone:        s.Timezone,
		IntervalMinutes: s.IntervalMinutes,
	}
}

// CreateConfigRequest is the request to create a sync configuration.
// The connection is derived from the mapping, not supplied by the caller.
type CreateConfigRequest struct {
	MappingID           uuid.UUID   `json:"mapping_id" binding:"required"`
	Name                string      `json:"name" binding:"required,max=200"`
	SyncMode            string      `json:"sync_mode" binding:"required,oneof=realtime scheduled manual on_demand"`
	Schedule            ScheduleDTO `json:"schedule" binding:"required"`
	UseDeltaSync        bool        `json:"use_delta_sync"`
	DeltaField          string      `json:"delta_field" binding:"omitempty,max=100"`
	MaxRetries          *int        `json:"max_retries" binding:"omitempty,min=0,max=10"`
	RetryDelaySeconds   *int        `json:"retry_delay_seconds" binding:"omitempty,min=0"`
	RetryBackoffFactor  *float64    `json:"retry_backoff_factor" binding:"omitempty,min=1"`
	TimeoutSeconds      *int        `json:"timeout_seconds" binding:"omitempty,min=0"`
	NotifyOnSuccess     bool        `json:"notify_on_success"`
	NotifyOnError       bool        `json:"notify_on_error"`
	NotificationTargets []string    `json:"notification_targets" binding:"omitempty,dive,email"`
}

// UpdateConfigRequest is the request to update a sync configuration
type UpdateConfigRequest struct {
	Name                *string      `json:"name" binding:"omitempty,max=200"`
	Schedule            *ScheduleDTO `json:"schedule"`
	UseDeltaSync        *bool        `json:"use_delta_sync"`
	DeltaField          *string      `json:"delta_field" binding:"omitempty,max=100"`
	MaxRetries          *int         `json:"max_retries" binding:"omitempty,min=0,max=10"`
	RetryDelaySeconds   *int         `json:"retry_delay_seconds" binding:"omitempty,min=0"`
	RetryBackoffFactor  *float64     `json:"retry_backoff_factor" binding:"omitempty,min=1"`
	TimeoutSeconds      *int         `json:"timeout_seconds" binding:"omitempty,min=0"`
	NotifyOnSuccess     *bool        `json:"notify_on_success"`
	NotifyOnError       *bool        `json:"notify_on_error"`
	NotificationTargets []string     `json:"notification_targets" binding:"omitempty,dive,email"`
}

// ConfigResponse is the sync configuration representation
type ConfigResponse struct {
	ID                  uuid.UUID   `json:"id"`
	TenantID            uuid.UUID   `json:"tenant_id"`
	MappingID           uuid.UUID   `json:"mapping_id"`
	ConnectionID        uuid.UUID   `json:"connection_id"`
	Name                string      `json:"name"`
	SyncMode            string      `json:"sync_mode"`
	Schedule            ScheduleDTO `json:"schedule"`
	UseDeltaSync        bool        `json:"use_delta_sync"`
	DeltaField          string      `json:"delta_field,omitempty"`
	Watermark           *time.Time  `json:"watermark,omitempty"`
	MaxRetries          int         `json:"max_retries"`
	RetryDelaySeconds   int         `json:"retry_delay_seconds"`
	RetryBackoffFactor  float64     `json:"retry_backoff_factor"`
	TimeoutSeconds      int         `json:"timeout_seconds,omitempty"`
	NotifyOnSuccess     bool        `json:"notify_on_success"`
	NotifyOnError       bool        `json:"notify_on_error"`
	NotificationTargets []string    `json:"notification_targets,omitempty"`
	NextRunAt           *time.Time  `json:"next_run_at,omitempty"`
	LastRunAt           *time.Time  `json:"last_run_at,omitempty"`
	LastRunStatus       string      `json:"last_run_status,omitempty"`
	TotalRecordsSynced  int64       `json:"total_records_synced"`
	IsPaused            bool        `json:"is_paused"`
	IsActive            bool        `json:"is_active"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// ConfigListFilter carries the query parameters for configuration listing
type ConfigListFilter struct {
	MappingID    *uuid.UUID `form:"mapping_id"`
	ConnectionID *uuid.UUID `form:"connection_id"`
	SyncMode     string     `form:"sync_mode" binding:"omitempty,oneof=realtime scheduled manual on_demand"`
	IsPaused     *bool      `form:"is_paused"`
	IsActive     *bool      `form:"is_active"`
	Page         int        `form:"page" binding:"omitempty,min=1"`
	PageSize     int        `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// TriggerMappingRequest is the request body of an ad-hoc mapping trigger
type TriggerMappingRequest struct {
	Direction string `json:"direction" binding:"omitempty,oneof=inbound outbound bidirectional"`
}

// ExecutionResponse is the sync execution representation
type ExecutionResponse struct {
	ID               uuid.UUID                   `json:"id"`
	TenantID         uuid.UUID                   `json:"tenant_id"`
	ConfigID         *uuid.UUID                  `json:"config_id,omitempty"`
	MappingID        uuid.UUID                   `json:"mapping_id"`
	ConnectionID     uuid.UUID                   `json:"connection_id"`
	ExecutionNumber  int64                       `json:"execution_number"`
	Direction        string                      `json:"direction"`
	EntityType       string                      `json:"entity_type"`
	Status           string                      `json:"status"`
	TotalRecords     int                         `json:"total_records"`
	ProcessedRecords int                         `json:"processed_records"`
	CreatedRecords   int                         `json:"created_records"`
	UpdatedRecords   int                         `json:"updated_records"`
	DeletedRecords   int                         `json:"deleted_records"`
	SkippedRecords   int                         `json:"skipped_records"`
	FailedRecords    int                         `json:"failed_records"`
	ProgressPercent  int                         `json:"progress_percent"`
	Errors           []syncdomain.ExecutionError `json:"errors,omitempty"`
	LastError        string                      `json:"last_error,omitempty"`
	RetryCount       int                         `json:"retry_count"`
	IsRetry          bool                        `json:"is_retry"`
	RetryOfID        *uuid.UUID                  `json:"retry_of_id,omitempty"`
	TriggerSource    string                      `json:"trigger_source"`
	CancelRequested  bool                        `json:"cancel_requested"`
	StartedAt        *time.Time                  `json:"started_at,omitempty"`
	FinishedAt       *time.Time                  `json:"finished_at,omitempty"`
	DurationMs       int64                       `json:"duration_ms"`
	Watermark        *time.Time                  `json:"watermark,omitempty"`
	CreatedAt        time.Time                   `json:"created_at"`
}

// ExecutionListFilter carries the query parameters for execution listing
type ExecutionListFilter struct {
	ConfigID     *uuid.UUID `form:"config_id"`
	MappingID    *uuid.UUID `form:"mapping_id"`
	ConnectionID *uuid.UUID `form:"connection_id"`
	Status       string     `form:"status" binding:"omitempty"`
	EntityType   string     `form:"entity_type" binding:"omitempty"`
	IsRetry      *bool      `form:"is_retry"`
	Since        *time.Time `form:"since" time_format:"2006-01-02T15:04:05Z07:00"`
	Page         int        `form:"page" binding:"omitempty,min=1"`
	PageSize     int        `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ExecutionProgressResponse is the live progress snapshot of one execution
type ExecutionProgressResponse struct {
	ID               uuid.UUID  `json:"id"`
	Status           string     `json:"status"`
	TotalRecords     int        `json:"total_records"`
	ProcessedRecords int        `json:"processed_records"`
	CreatedRecords   int        `json:"created_records"`
	UpdatedRecords   int        `json:"updated_records"`
	SkippedRecords   int        `json:"skipped_records"`
	FailedRecords    int        `json:"failed_records"`
	ProgressPercent  int        `json:"progress_percent"`
	CancelRequested  bool       `json:"cancel_requested"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	DurationMs       int64      `json:"duration_ms"`
}

// ExecutionLogResponse is one execution trace entry
type ExecutionLogResponse struct {
	ID         uuid.UUID `json:"id"`
	Level      string    `json:"level"`
	Message    string    `json:"message"`
	SourceID   string    `json:"source_id,omitempty"`
	TargetID   string    `json:"target_id,omitempty"`
	Entity     string    `json:"entity"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// NextRunsResponse projects the upcoming trigger instants of a configuration
type NextRunsResponse struct {
	ConfigID uuid.UUID   `json:"config_id"`
	NextRuns []time.Time `json:"next_runs"`
}

// ToConfigResponse converts a configuration to its response representation
func ToConfigResponse(c *syncdomain.SyncConfiguration) *ConfigResponse {
	return &ConfigResponse{
		ID:                  c.ID,
		TenantID:            c.TenantID,
		MappingID:           c.MappingID,
		ConnectionID:        c.ConnectionID,
		Name:                c.Name,
		SyncMode:            string(c.SyncMode),
		Schedule:            toScheduleDTO(c.Schedule),
		UseDeltaSync:        c.UseDeltaSync,
		DeltaField:          c.DeltaField,
		Watermark:           c.Watermark,
		MaxRetries:          c.MaxRetries,
		RetryDelaySeconds:   c.RetryDelaySeconds,
		RetryBackoffFactor:  c.RetryBackoffFactor,
		TimeoutSeconds:      c.TimeoutSeconds,
		NotifyOnSuccess:     c.NotifyOnSuccess,
		NotifyOnError:       c.NotifyOnError,
		NotificationTargets: c.NotificationTargets,
		NextRunAt:           c.NextRunAt,
		LastRunAt:           c.LastRunAt,
		LastRunStatus:       string(c.LastRunStatus),
		TotalRecordsSynced:  c.TotalRecordsSynced,
		IsPaused:            c.IsPaused,
		IsActive:            c.IsActive,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

// ToConfigResponses converts a list of configurations
func ToConfigResponses(configs []*syncdomain.SyncConfiguration) []ConfigResponse {
	responses := make([]ConfigResponse, len(configs))
	for i, c := range configs {
		responses[i] = *ToConfigResponse(c)
	}
	return responses
}

// ToExecutionResponse converts an execution to its response representation
func ToExecutionResponse(e *syncdomain.SyncExecution) *ExecutionResponse {
	return &ExecutionResponse{
		ID:               e.ID,
		TenantID:         e.TenantID,
		ConfigID:         e.ConfigID,
		MappingID:        e.MappingID,
		ConnectionID:     e.ConnectionID,
		ExecutionNumber:  e.ExecutionNumber,
		Direction:        string(e.Direction),
		EntityType:       string(e.EntityType),
		Status:           string(e.Status),
		TotalRecords:     e.TotalRecords,
		ProcessedRecords: e.ProcessedRecords,
		CreatedRecords:   e.CreatedRecords,
		UpdatedRecords:   e.UpdatedRecords,
		DeletedRecords:   e.DeletedRecords,
		SkippedRecords:   e.SkippedRecords,
		FailedRecords:    e.FailedRecords,
		ProgressPercent:  e.ProgressPercent,
		Errors:           e.Errors,
		LastError:        e.LastError,
		RetryCount:       e.RetryCount,
		IsRetry:          e.IsRetry,
		RetryOfID:        e.RetryOfID,
		TriggerSource:    string(e.TriggerSource),
		CancelRequested:  e.CancelRequested,
		StartedAt:        e.StartedAt,
		FinishedAt:       e.FinishedAt,
		DurationMs:       e.DurationMs,
		Watermark:        e.Watermark,
		CreatedAt:        e.CreatedAt,
	}
}

// ToExecutionResponses converts a list of executions
func ToExecutionResponses(executions []*syncdomain.SyncExecution) []ExecutionResponse {
	responses := make([]ExecutionResponse, len(executions))
	for i, e := range executions {
		responses[i] = *ToExecutionResponse(e)
	}
	return responses
}

// ToExecutionLogResponses converts execution trace entries
func ToExecutionLogResponses(logs []*syncdomain.ExecutionLog) []ExecutionLogResponse {
	responses := make([]ExecutionLogResponse, len(logs))
	for i, l := range logs {
		responses[i] = ExecutionLogResponse{
			ID:         l.ID,
			Level:      string(l.Level),
			Message:    l.Message,
			SourceID:   l.SourceID,
			TargetID:   l.TargetID,
			Entity:     string(l.Entity),
			DurationMs: l.DurationMs,
			CreatedAt:  l.CreatedAt,
		}
	}
	return responses
}
