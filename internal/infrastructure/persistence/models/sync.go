package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/synchub/backend/internal/domain/connector"
	"github.com/synchub/backend/internal/domain/sync"
)

// SyncConfigurationModel is the persistence model for the SyncConfiguration aggregate.
type SyncConfigurationModel struct {
	TenantAggregateModel
	MappingID           uuid.UUID      `gorm:"type:uuid;not null;index:idx_sync_config_mapping,priority:1"`
	ConnectionID        uuid.UUID      `gorm:"type:uuid;not null;index:idx_sync_config_connection,priority:1"`
	Name                string         `gorm:"type:varchar(255);not null"`
	SyncMode            sync.SyncMode  `gorm:"type:varchar(20);not null"`
	ScheduleJSON        string         `gorm:"type:jsonb;column:schedule"`
	UseDeltaSync        bool           `gorm:"not null;default:false"`
	DeltaField          string         `gorm:"type:varchar(100)"`
	Watermark           *time.Time
	MaxRetries          int            `gorm:"not null;default:3"`
	RetryDelaySeconds   int            `gorm:"not null;default:60"`
	RetryBackoffFactor  float64        `gorm:"not null;default:2.0"`
	TimeoutSeconds      int            `gorm:"not null;default:0"`
	NotifyOnSuccess     bool           `gorm:"not null;default:false"`
	NotifyOnError       bool           `gorm:"not null;default:false"`
	NotificationTargets pq.StringArray `gorm:"type:text[]"`
	// NextRunAt drives the scheduler's due query; the composite index keeps
	// the cross-tenant poll cheap.
	NextRunAt          *time.Time           `gorm:"index:idx_sync_config_due,priority:1"`
	LastRunAt          *time.Time
	LastRunStatus      sync.ExecutionStatus `gorm:"type:varchar(20)"`
	TotalRecordsSynced int64                `gorm:"not null;default:0"`
	IsPaused           bool                 `gorm:"not null;default:false;index:idx_sync_config_due,priority:2"`
	IsActive           bool                 `gorm:"not null;default:true;index:idx_sync_config_due,priority:3"`
}

// TableName returns the table name for GORM
func (SyncConfigurationModel) TableName() string {
	return "sync_configurations"
}

// ToDomain converts the persistence model to a domain SyncConfiguration aggregate.
func (m *SyncConfigurationModel) ToDomain() *sync.SyncConfiguration {
	cfg := &sync.SyncConfiguration{
		MappingID:           m.MappingID,
		ConnectionID:        m.ConnectionID,
		Name:                m.Name,
		SyncMode:            m.SyncMode,
		UseDeltaSync:        m.UseDeltaSync,
		DeltaField:          m.DeltaField,
		Watermark:           m.Watermark,
		MaxRetries:          m.MaxRetries,
		RetryDelaySeconds:   m.RetryDelaySeconds,
		RetryBackoffFactor:  m.RetryBackoffFactor,
		TimeoutSeconds:      m.TimeoutSeconds,
		NotifyOnSuccess:     m.NotifyOnSuccess,
		NotifyOnError:       m.NotifyOnError,
		NotificationTargets: []string(m.NotificationTargets),
		NextRunAt:           m.NextRunAt,
		LastRunAt:           m.LastRunAt,
		LastRunStatus:       m.LastRunStatus,
		TotalRecordsSynced:  m.TotalRecordsSynced,
		IsPaused:            m.IsPaused,
		IsActive:            m.IsActive,
	}
	m.PopulateTenantAggregateRoot(&cfg.TenantAggregateRoot)

	if m.ScheduleJSON != "" {
		var s sync.Schedule
		if err := json.Unmarshal([]byte(m.ScheduleJSON), &s); err == nil {
			cfg.Schedule = s
		}
	}
	if cfg.Schedule.Kind == "" {
		cfg.Schedule = sync.DisabledSchedule()
	}

	return cfg
}

// FromDomain populates the persistence model from a domain SyncConfiguration aggregate.
func (m *SyncConfigurationModel) FromDomain(cfg *sync.SyncConfiguration) {
	m.FromDomainTenantAggregateRoot(cfg.TenantAggregateRoot)
	m.MappingID = cfg.MappingID
	m.ConnectionID = cfg.ConnectionID
	m.Name = cfg.Name
	m.SyncMode = cfg.SyncMode
	m.UseDeltaSync = cfg.UseDeltaSync
	m.DeltaField = cfg.DeltaField
	m.Watermark = cfg.Watermark
	m.MaxRetries = cfg.MaxRetries
	m.RetryDelaySeconds = cfg.RetryDelaySeconds
	m.RetryBackoffFactor = cfg.RetryBackoffFactor
	m.TimeoutSeconds = cfg.TimeoutSeconds
	m.NotifyOnSuccess = cfg.NotifyOnSuccess
	m.NotifyOnError = cfg.NotifyOnError
	m.NotificationTargets = pq.StringArray(cfg.NotificationTargets)
	m.NextRunAt = cfg.NextRunAt
	m.LastRunAt = cfg.LastRunAt
	m.LastRunStatus = cfg.LastRunStatus
	m.TotalRecordsSynced = cfg.TotalRecordsSynced
	m.IsPaused = cfg.IsPaused
	m.IsActive = cfg.IsActive

	if jsonBytes, err := json.Marshal(cfg.Schedule); err == nil {
		m.ScheduleJSON = string(jsonBytes)
	}
}

// SyncConfigurationModelFromDomain creates a new persistence model from a domain SyncConfiguration.
func SyncConfigurationModelFromDomain(cfg *sync.SyncConfiguration) *SyncConfigurationModel {
	m := &SyncConfigurationModel{}
	m.FromDomain(cfg)
	return m
}

// SyncExecutionModel is the persistence model for the SyncExecution aggregate.
type SyncExecutionModel struct {
	TenantAggregateModel
	ConfigID         *uuid.UUID           `gorm:"type:uuid;index:idx_sync_execution_config,priority:1"`
	MappingID        uuid.UUID            `gorm:"type:uuid;not null;index:idx_sync_execution_mapping,priority:1"`
	ConnectionID     uuid.UUID            `gorm:"type:uuid;not null;index:idx_sync_execution_connection,priority:1"`
	ExecutionNumber  int64                `gorm:"not null;default:0"`
	Direction        connector.Direction  `gorm:"type:varchar(20);not null"`
	EntityType       connector.EntityType `gorm:"type:varchar(30);not null"`
	Status           sync.ExecutionStatus `gorm:"type:varchar(20);not null;index:idx_sync_execution_status,priority:1"`
	TotalRecords     int                  `gorm:"not null;default:0"`
	ProcessedRecords int                  `gorm:"not null;default:0"`
	CreatedRecords   int                  `gorm:"not null;default:0"`
	UpdatedRecords   int                  `gorm:"not null;default:0"`
	DeletedRecords   int                  `gorm:"not null;default:0"`
	SkippedRecords   int                  `gorm:"not null;default:0"`
	FailedRecords    int                  `gorm:"not null;default:0"`
	ProgressPercent  int                  `gorm:"not null;default:0"`
	ErrorsJSON       string               `gorm:"type:jsonb;column:errors"`
	LastError        string               `gorm:"type:text"`
	RetryCount       int                  `gorm:"not null;default:0"`
	IsRetry          bool                 `gorm:"not null;default:false"`
	RetryOfID        *uuid.UUID           `gorm:"type:uuid"`
	TriggerSource    sync.TriggerSource   `gorm:"type:varchar(20);not null"`
	CancelRequested  bool                 `gorm:"not null;default:false"`
	StartedAt        *time.Time
	FinishedAt       *time.Time `gorm:"index"`
	DurationMs       int64      `gorm:"not null;default:0"`
	Watermark        *time.Time
}

// TableName returns the table name for GORM
func (SyncExecutionModel) TableName() string {
	return "sync_executions"
}

// ToDomain converts the persistence model to a domain SyncExecution aggregate.
func (m *SyncExecutionModel) ToDomain() *sync.SyncExecution {
	e := &sync.SyncExecution{
		ConfigID:         m.ConfigID,
		MappingID:        m.MappingID,
		ConnectionID:     m.ConnectionID,
		ExecutionNumber:  m.ExecutionNumber,
		Direction:        m.Direction,
		EntityType:       m.EntityType,
		Status:           m.Status,
		TotalRecords:     m.TotalRecords,
		ProcessedRecords: m.ProcessedRecords,
		CreatedRecords:   m.CreatedRecords,
		UpdatedRecords:   m.UpdatedRecords,
		DeletedRecords:   m.DeletedRecords,
		SkippedRecords:   m.SkippedRecords,
		FailedRecords:    m.FailedRecords,
		ProgressPercent:  m.ProgressPercent,
		LastError:        m.LastError,
		RetryCount:       m.RetryCount,
		IsRetry:          m.IsRetry,
		RetryOfID:        m.RetryOfID,
		TriggerSource:    m.TriggerSource,
		CancelRequested:  m.CancelRequested,
		StartedAt:        m.StartedAt,
		FinishedAt:       m.FinishedAt,
		DurationMs:       m.DurationMs,
		Watermark:        m.Watermark,
	}
	m.PopulateTenantAggregateRoot(&e.TenantAggregateRoot)

	if m.ErrorsJSON != "" {
		var errs []sync.ExecutionError
		if err := json.Unmarshal([]byte(m.ErrorsJSON), &errs); err == nil {
			e.Errors = errs
		}
	}

	return e
}

// FromDomain populates the persistence model from a domain SyncExecution aggregate.
func (m *SyncExecutionModel) FromDomain(e *sync.SyncExecution) {
	m.FromDomainTenantAggregateRoot(e.TenantAggregateRoot)
	m.ConfigID = e.ConfigID
	m.MappingID = e.MappingID
	m.ConnectionID = e.ConnectionID
	m.ExecutionNumber = e.ExecutionNumber
	m.Direction = e.Direction
	m.EntityType = e.EntityType
	m.Status = e.Status
	m.TotalRecords = e.TotalRecords
	m.ProcessedRecords = e.ProcessedRecords
	m.CreatedRecords = e.CreatedRecords
	m.UpdatedRecords = e.UpdatedRecords
	m.DeletedRecords = e.DeletedRecords
	m.SkippedRecords = e.SkippedRecords
	m.FailedRecords = e.FailedRecords
	m.ProgressPercent = e.ProgressPercent
	m.LastError = e.LastError
	m.RetryCount = e.RetryCount
	m.IsRetry = e.IsRetry
	m.RetryOfID = e.RetryOfID
	m.TriggerSource = e.TriggerSource
	m.CancelRequested = e.CancelRequested
	m.StartedAt = e.StartedAt
	m.FinishedAt = e.FinishedAt
	m.DurationMs = e.DurationMs
	m.Watermark = e.Watermark

	if len(e.Errors) > 0 {
		if jsonBytes, err := json.Marshal(e.Errors); err == nil {
			m.ErrorsJSON = string(jsonBytes)
		}
	} else {
		m.ErrorsJSON = "[]"
	}
}

// SyncExecutionModelFromDomain creates a new persistence model from a domain SyncExecution.
func SyncExecutionModelFromDomain(e *sync.SyncExecution) *SyncExecutionModel {
	m := &SyncExecutionModel{}
	m.FromDomain(e)
	return m
}

// SyncExecutionLockModel enforces at most one live execution per lock key
// (configuration ID, or mapping ID for ad-hoc runs). One row per key; taking
// the lock is an insert, overlap surfaces as a unique violation.
type SyncExecutionLockModel struct {
	LockKey     uuid.UUID `gorm:"type:uuid;primary_key"`
	ExecutionID uuid.UUID `gorm:"type:uuid;not null"`
	ExpiresAt   time.Time `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncExecutionLockModel) TableName() string {
	return "sync_execution_locks"
}

// SyncExecutionSequenceModel tracks the next execution number per
// configuration. Incremented with the row locked so numbers never collide.
type SyncExecutionSequenceModel struct {
	ConfigID   uuid.UUID `gorm:"type:uuid;primary_key"`
	NextNumber int64     `gorm:"not null;default:1"`
}

// TableName returns the table name for GORM
func (SyncExecutionSequenceModel) TableName() string {
	return "sync_execution_sequences"
}

// SyncExecutionLogModel is the persistence model for append-only execution
// trace entries.
type SyncExecutionLogModel struct {
	ID          uuid.UUID            `gorm:"type:uuid;primary_key"`
	TenantID    uuid.UUID            `gorm:"type:uuid;not null;index:idx_sync_execution_log_tenant,priority:1"`
	ExecutionID uuid.UUID            `gorm:"type:uuid;not null;index:idx_sync_execution_log_execution,priority:1"`
	Level       sync.LogLevel        `gorm:"type:varchar(10);not null"`
	Message     string               `gorm:"type:text;not null"`
	SourceID    string               `gorm:"type:varchar(100)"`
	TargetID    string               `gorm:"type:varchar(100)"`
	Entity      connector.EntityType `gorm:"type:varchar(30)"`
	DurationMs  int64                `gorm:"not null;default:0"`
	CreatedAt   time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncExecutionLogModel) TableName() string {
	return "sync_execution_logs"
}

// ToDomain converts the persistence model to a domain ExecutionLog entry.
func (m *SyncExecutionLogModel) ToDomain() *sync.ExecutionLog {
	return &sync.ExecutionLog{
		ID:          m.ID,
		TenantID:    m.TenantID,
		ExecutionID: m.ExecutionID,
		Level:       m.Level,
		Message:     m.Message,
		SourceID:    m.SourceID,
		TargetID:    m.TargetID,
		Entity:      m.Entity,
		DurationMs:  m.DurationMs,
		CreatedAt:   m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain ExecutionLog entry.
func (m *SyncExecutionLogModel) FromDomain(l *sync.ExecutionLog) {
	m.ID = l.ID
	m.TenantID = l.TenantID
	m.ExecutionID = l.ExecutionID
	m.Level = l.Level
	m.Message = l.Message
	m.SourceID = l.SourceID
	m.TargetID = l.TargetID
	m.Entity = l.Entity
	m.DurationMs = l.DurationMs
	m.CreatedAt = l.CreatedAt
}
