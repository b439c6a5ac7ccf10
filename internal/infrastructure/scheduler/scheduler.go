// Package scheduler owns the trigger loop and the worker pool of the sync
// engine: it polls for due configurations, recovers rate-limited
// connections, and drives queued executions through the executor.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/synchub/backend/internal/domain/connection"
	"github.com/synchub/backend/internal/domain/mapping"
	syncdomain "github.com/synchub/backend/internal/domain/sync"
)

// Config holds the scheduler configuration
type Config struct {
	Enabled bool
	// PollInterval is the tick period of the due-configuration poll
	PollInterval time.Duration
	// Workers is the size of the execution worker pool
	Workers int
	// QueueSize bounds the pending job queue
	QueueSize int
	// HistorySize bounds the in-memory run history ring
	HistorySize int
	// DueBatchLimit caps how many due configurations one tick picks up
	DueBatchLimit int
}

// DefaultConfig returns the default scheduler configuration
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		PollInterval:  15 * time.Second,
		Workers:       5,
		QueueSize:     100,
		HistorySize:   100,
		DueBatchLimit: 50,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return ErrInvalidConfig
	}
	if c.Workers <= 0 {
		return ErrInvalidConfig
	}
	if c.QueueSize <= 0 {
		return ErrInvalidConfig
	}
	if c.DueBatchLimit <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// JobRecord is one entry of the in-memory run history, kept for the
// scheduler status endpoint
type JobRecord struct {
	ExecutionID     uuid.UUID                  `json:"execution_id"`
	ConfigID        *uuid.UUID                 `json:"config_id,omitempty"`
	MappingID       uuid.UUID                  `json:"mapping_id"`
	TenantID        uuid.UUID                  `json:"tenant_id"`
	ExecutionNumber int64                      `json:"execution_number"`
	Status          syncdomain.ExecutionStatus `json:"status"`
	TriggerSource   syncdomain.TriggerSource   `json:"trigger_source"`
	Processed       int                        `json:"processed"`
	Failed          int                        `json:"failed"`
	DurationMs      int64                      `json:"duration_ms"`
	FinishedAt      time.Time                  `json:"finished_at"`
	LastError       string                     `json:"last_error,omitempty"`
}

// Status is the operational snapshot exposed by the status endpoint
type Status struct {
	Running      bool        `json:"running"`
	Workers      int         `json:"workers"`
	QueueDepth   int         `json:"queue_depth"`
	QueueSize    int         `json:"queue_size"`
	PollInterval string      `json:"poll_interval"`
	History      []JobRecord `json:"history"`
}

// Scheduler polls due configurations and fans executions out to a bounded
// worker pool
type Scheduler struct {
	config      Config
	configs     syncdomain.ConfigRepository
	mappings    mapping.Repository
	connections connection.Repository
	executor    *Executor
	logger      *zap.Logger

	jobs      chan *Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	historyMu sync.RWMutex
	history   []JobRecord

	now func() time.Time
}

// NewScheduler creates the scheduler and wires itself into the executor as
// the retry submitter
func NewScheduler(
	config Config,
	configs syncdomain.ConfigRepository,
	mappings mapping.Repository,
	connections connection.Repository,
	executor *Executor,
	logger *zap.Logger,
) (*Scheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Scheduler{
		config:      config,
		configs:     configs,
		mappings:    mappings,
		connections: connections,
		executor:    executor,
		logger:      logger,
		jobs:        make(chan *Job, config.QueueSize),
		history:     make([]JobRecord, 0, config.HistorySize),
		now:         time.Now,
	}
	executor.SetSubmitter(s)
	return s, nil
}

// Start launches the worker pool and the poll loop
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.wg.Add(1)
	go s.pollLoop(ctx)

	s.logger.Info("Sync scheduler started",
		zap.Int("workers", s.config.Workers),
		zap.Duration("poll_interval", s.config.PollInterval),
	)
	return nil
}

// Stop gracefully stops the scheduler, waiting for in-flight runs
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	if s.cancel != nil {
		s.cancel()
	}
	// Closing under the lock serializes with Submit, which holds it across
	// the send; without that a racing Submit panics on the closed channel.
	close(s.jobs)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// Submit queues a job for execution. The lock is held across the
// non-blocking send so Stop cannot close the queue mid-submit.
func (s *Scheduler) Submit(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case s.jobs <- job:
		return nil
	default:
		return ErrJobQueueFull
	}
}

// SubmitAfter queues a job after a delay; retry chains use it
func (s *Scheduler) SubmitAfter(job *Job, delay time.Duration) error {
	if delay <= 0 {
		return s.Submit(job)
	}
	time.AfterFunc(delay, func() {
		if err := s.Submit(job); err != nil {
			s.logger.Warn("Delayed job could not be queued",
				zap.String("execution_id", job.Execution.ID.String()),
				zap.Error(err),
			)
			s.executor.Abort(context.Background(), job, err.Error())
		}
	})
	return nil
}

// Status returns the operational snapshot
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	running := s.isRunning
	s.mu.Unlock()

	return Status{
		Running:      running,
		Workers:      s.config.Workers,
		QueueDepth:   len(s.jobs),
		QueueSize:    s.config.QueueSize,
		PollInterval: s.config.PollInterval.String(),
		History:      s.History(0),
	}
}

// History returns recent run records, newest first
func (s *Scheduler) History(limit int) []JobRecord {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]JobRecord, limit)
	copy(out, s.history[:limit])
	return out
}

// pollLoop ticks every PollInterval: sweep rate-limited connections, then
// trigger due configurations
func (s *Scheduler) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepRateLimited(ctx)
			s.triggerDue(ctx)
		}
	}
}

// sweepRateLimited recovers connections whose throttle backoff expired
func (s *Scheduler) sweepRateLimited(ctx context.Context) {
	now := s.now()
	conns, err := s.connections.FindRateLimitedBefore(ctx, now)
	if err != nil {
		s.logger.Warn("Rate-limit sweep failed", zap.Error(err))
		return
	}
	for _, conn := range conns {
		if err := conn.RecoverFromRateLimit(now); err != nil {
			continue
		}
		if err := s.connections.Save(ctx, conn); err != nil {
			s.logger.Warn("Failed to recover rate-limited connection",
				zap.String("connection_id", conn.ID.String()), zap.Error(err))
			continue
		}
		s.logger.Info("Connection recovered from rate limit",
			zap.String("connection_id", conn.ID.String()),
			zap.String("code", conn.Code),
		)
	}
}

// triggerDue starts executions for due configurations. next_run_at advances
// whether or not the run could start: missed ticks are skipped, not queued.
func (s *Scheduler) triggerDue(ctx context.Context) {
	now := s.now()
	due, err := s.configs.FindDue(ctx, now, s.config.DueBatchLimit)
	if err != nil {
		s.logger.Warn("Due-configuration poll failed", zap.Error(err))
		return
	}

	for _, cfg := range due {
		cfg.AdvanceNextRun(now)
		if err := s.configs.Save(ctx, cfg); err != nil {
			s.logger.Warn("Failed to advance next run",
				zap.String("config_id", cfg.ID.String()), zap.Error(err))
			continue
		}

		m, err := s.mappings.FindByID(ctx, cfg.TenantID, cfg.MappingID)
		if err != nil {
			s.logger.Warn("Due configuration references missing mapping",
				zap.String("config_id", cfg.ID.String()),
				zap.String("mapping_id", cfg.MappingID.String()),
				zap.Error(err),
			)
			continue
		}
		if !m.IsActive {
			continue
		}

		job, err := s.executor.Launch(ctx, cfg, m, "", syncdomain.TriggerScheduled)
		if err != nil {
			if errors.Is(err, syncdomain.ErrExecutionOverlap) {
				s.logger.Debug("Skipping due configuration: previous run still active",
					zap.String("config_id", cfg.ID.String()))
				continue
			}
			s.logger.Warn("Failed to launch scheduled execution",
				zap.String("config_id", cfg.ID.String()), zap.Error(err))
			continue
		}

		if err := s.Submit(job); err != nil {
			s.executor.Abort(ctx, job, err.Error())
			s.logger.Warn("Scheduled execution dropped",
				zap.String("config_id", cfg.ID.String()), zap.Error(err))
		}
	}
}

// worker drains the job queue
func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-s.jobs:
			if !ok {
				return
			}
			if err := s.executor.Execute(ctx, job); err != nil {
				s.logger.Error("Execution state could not be recorded",
					zap.Int("worker_id", workerID),
					zap.String("execution_id", job.Execution.ID.String()),
					zap.Error(err),
				)
			}
			s.addHistory(job)
		}
	}
}

// addHistory records a finished run in the bounded history ring
func (s *Scheduler) addHistory(job *Job) {
	exec := job.Execution
	rec := JobRecord{
		ExecutionID:     exec.ID,
		ConfigID:        exec.ConfigID,
		MappingID:       exec.MappingID,
		TenantID:        exec.TenantID,
		ExecutionNumber: exec.ExecutionNumber,
		Status:          exec.Status,
		TriggerSource:   exec.TriggerSource,
		Processed:       exec.ProcessedRecords,
		Failed:          exec.FailedRecords,
		DurationMs:      exec.DurationMs,
		FinishedAt:      s.now(),
		LastError:       exec.LastError,
	}

	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append([]JobRecord{rec}, s.history...)
	if len(s.history) > s.config.HistorySize {
		s.history = s.history[:s.config.HistorySize]
	}
}
