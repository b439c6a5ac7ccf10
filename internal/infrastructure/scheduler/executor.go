package scheduler

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/synchub/backend/internal/domain/conflict"
	"github.com/synchub/backend/internal/domain/connection"
	"github.com/synchub/backend/internal/domain/connector"
	"github.com/synchub/backend/internal/domain/mapping"
	"github.com/synchub/backend/internal/domain/shared"
	syncdomain "github.com/synchub/backend/internal/domain/sync"
	"github.com/synchub/backend/internal/infrastructure/logger"
	"github.com/synchub/backend/internal/infrastructure/ratelimit"
	"github.com/synchub/backend/internal/infrastructure/telemetry"
)

// ExecutorConfig holds the engine-level knobs of one sync run
type ExecutorConfig struct {
	// DefaultTimeout is the wall-clock budget when neither the
	// configuration nor the connector definition sets one
	DefaultTimeout time.Duration
	// LockTTL bounds how long a crashed run can hold the execution lock
	LockTTL time.Duration
	// FailureAbortRatio aborts the run when the failure ratio exceeds it
	// after FailureAbortMinimum processed records; zero disables the check
	FailureAbortRatio   float64
	FailureAbortMinimum int
	// RateLimitBackoff is the connection backoff when the remote system
	// throttles and reports no deadline of its own
	RateLimitBackoff time.Duration
}

// DefaultExecutorConfig returns the engine defaults
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		DefaultTimeout:      time.Hour,
		LockTTL:             2 * time.Hour,
		FailureAbortRatio:   0.9,
		FailureAbortMinimum: 100,
		RateLimitBackoff:    5 * time.Minute,
	}
}

// JobSubmitter schedules jobs for asynchronous execution; the scheduler's
// worker pool implements it. The executor uses it to chain retry runs.
type JobSubmitter interface {
	SubmitAfter(job *Job, delay time.Duration) error
}

// errRunCancelled aborts the batch loop after a cooperative cancellation
// checkpoint; the execution is already terminal when it surfaces.
var errRunCancelled = errors.New("run cancelled")

// Executor drives one sync run end to end: lock, fetch/map/match/write
// batches, conflict handling, terminal accounting and retry chaining.
type Executor struct {
	cfg         ExecutorConfig
	configs     syncdomain.ConfigRepository
	executions  syncdomain.ExecutionRepository
	execLogs    syncdomain.LogRepository
	connections connection.Repository
	conflicts   conflict.Repository
	secrets     connection.SecretStore
	registry    *connector.Registry
	// hub is the internal side of every run; external systems resolve
	// through the registry per connection
	hub     connector.Connector
	limiter ratelimit.Limiter
	events  shared.EventPublisher
	logger  *zap.Logger

	// submitter re-queues chained retry executions; set by the scheduler
	submitter JobSubmitter

	now func() time.Time
}

// NewExecutor creates the run executor
func NewExecutor(
	cfg ExecutorConfig,
	configs syncdomain.ConfigRepository,
	executions syncdomain.ExecutionRepository,
	execLogs syncdomain.LogRepository,
	connections connection.Repository,
	conflicts conflict.Repository,
	secrets connection.SecretStore,
	registry *connector.Registry,
	hub connector.Connector,
	limiter ratelimit.Limiter,
	events shared.EventPublisher,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		cfg:         cfg,
		configs:     configs,
		executions:  executions,
		execLogs:    execLogs,
		connections: connections,
		conflicts:   conflicts,
		secrets:     secrets,
		registry:    registry,
		hub:         hub,
		limiter:     limiter,
		events:      events,
		logger:      logger,
		now:         time.Now,
	}
}

// SetSubmitter wires the worker pool used for retry chaining
func (e *Executor) SetSubmitter(s JobSubmitter) {
	e.submitter = s
}

// Job is one queued sync run with its resolved aggregates
type Job struct {
	Execution *syncdomain.SyncExecution
	Config    *syncdomain.SyncConfiguration
	Mapping   *mapping.DataMapping
	// LockKey is the configuration ID, or the mapping ID for ad-hoc runs
	LockKey uuid.UUID
}

// Launch acquires the execution lock and persists a queued execution.
// ErrExecutionOverlap is returned synchronously while another run of the
// same configuration (or mapping, for ad-hoc runs) is active.
func (e *Executor) Launch(ctx context.Context, cfg *syncdomain.SyncConfiguration, m *mapping.DataMapping, direction connector.Direction, source syncdomain.TriggerSource) (*Job, error) {
	resolved, err := resolveDirection(m, direction)
	if err != nil {
		return nil, err
	}

	var configID *uuid.UUID
	lockKey := m.ID
	if cfg != nil {
		id := cfg.ID
		configID = &id
		lockKey = cfg.ID
	}

	exec := syncdomain.NewSyncExecution(m.TenantID, configID, m.ID, m.ConnectionID, resolved, m.SourceEntity, source)

	if err := e.executions.AcquireLock(ctx, lockKey, exec.ID, e.cfg.LockTTL); err != nil {
		return nil, err
	}
	if err := exec.Enqueue(); err != nil {
		return nil, err
	}
	if err := e.executions.Create(ctx, exec); err != nil {
		if relErr := e.executions.ReleaseLock(ctx, lockKey, exec.ID); relErr != nil {
			e.logger.Warn("Failed to release execution lock after create failure",
				zap.String("lock_key", lockKey.String()), zap.Error(relErr))
		}
		return nil, err
	}

	return &Job{Execution: exec, Config: cfg, Mapping: m, LockKey: lockKey}, nil
}

// Relaunch queues a manual retry of a terminal failed or timed-out
// execution. The retry is linked to the previous run and takes the same
// lock key, so it overlaps with nothing else on the configuration.
func (e *Executor) Relaunch(ctx context.Context, cfg *syncdomain.SyncConfiguration, m *mapping.DataMapping, prev *syncdomain.SyncExecution) (*Job, error) {
	retry, err := syncdomain.NewRetryExecution(prev)
	if err != nil {
		return nil, err
	}

	lockKey := prev.MappingID
	if prev.ConfigID != nil {
		lockKey = *prev.ConfigID
	}

	if err := e.executions.AcquireLock(ctx, lockKey, retry.ID, e.cfg.LockTTL); err != nil {
		return nil, err
	}
	if err := retry.Enqueue(); err != nil {
		return nil, err
	}
	if err := e.executions.Create(ctx, retry); err != nil {
		if relErr := e.executions.ReleaseLock(ctx, lockKey, retry.ID); relErr != nil {
			e.logger.Warn("Failed to release execution lock after create failure",
				zap.String("lock_key", lockKey.String()), zap.Error(relErr))
		}
		return nil, err
	}

	return &Job{Execution: retry, Config: cfg, Mapping: m, LockKey: lockKey}, nil
}

// Abort fails a queued execution that never reached a worker and releases
// its lock
func (e *Executor) Abort(ctx context.Context, job *Job, reason string) {
	exec := job.Execution
	if err := exec.Fail(e.now(), reason); err == nil {
		if err := e.executions.Update(ctx, exec); err != nil {
			e.logger.Warn("Failed to persist aborted execution",
				zap.String("execution_id", exec.ID.String()), zap.Error(err))
		}
	}
	if err := e.executions.ReleaseLock(ctx, job.LockKey, exec.ID); err != nil {
		e.logger.Warn("Failed to release lock of aborted execution",
			zap.String("execution_id", exec.ID.String()), zap.Error(err))
	}
}

// resolveDirection picks the concrete direction of one run. A bidirectional
// mapping needs the caller to choose; unset defaults to inbound.
func resolveDirection(m *mapping.DataMapping, requested connector.Direction) (connector.Direction, error) {
	if requested == "" || requested == connector.DirectionBidirectional {
		if m.Direction == connector.DirectionBidirectional {
			return connector.DirectionInbound, nil
		}
		return m.Direction, nil
	}
	if m.Direction != connector.DirectionBidirectional && m.Direction != requested {
		return "", fmt.Errorf("%w: mapping syncs %s, requested %s", connector.ErrDirectionNotSupported, m.Direction, requested)
	}
	return requested, nil
}

// Execute drives a queued job to a terminal status. All error paths land in
// a terminal execution; the returned error only reports infrastructure
// failures that prevented state from being recorded.
func (e *Executor) Execute(ctx context.Context, job *Job) error {
	exec := job.Execution

	defer func() {
		if err := e.executions.ReleaseLock(context.WithoutCancel(ctx), job.LockKey, exec.ID); err != nil {
			e.logger.Warn("Failed to release execution lock",
				zap.String("execution_id", exec.ID.String()),
				zap.String("lock_key", job.LockKey.String()),
				zap.Error(err),
			)
		}
	}()

	now := e.now()
	if err := exec.Begin(now); err != nil {
		return err
	}
	if err := e.executions.Update(ctx, exec); err != nil {
		return err
	}

	e.logger.Info("Sync execution started",
		zap.String("execution_id", exec.ID.String()),
		zap.String("tenant_id", exec.TenantID.String()),
		zap.String("mapping_id", exec.MappingID.String()),
		zap.Int64("execution_number", exec.ExecutionNumber),
		zap.String("direction", string(exec.Direction)),
		zap.String("trigger", string(exec.TriggerSource)),
	)

	// Correlate connector and SQL entries emitted during the run with
	// this execution.
	ctx, _ = logger.WithExecutionID(ctx, e.logger, exec.ID.String())

	var (
		conn   *connection.Connection
		runErr error
	)
	// Tag the run's goroutine so CPU profiles can be sliced per entity type
	// and direction.
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels("sync_execution", map[string]string{
		"entity_type": string(job.Mapping.SourceEntity),
		"direction":   string(exec.Direction),
	}), func(ctx context.Context) {
		conn, runErr = e.runPipeline(ctx, job)
	})

	switch {
	case runErr == nil:
		if err := exec.Finish(e.now()); err != nil {
			return err
		}
	case errors.Is(runErr, errRunCancelled):
		// already terminal cancelled
	default:
		e.classifyFailure(ctx, job, conn, runErr)
	}

	if err := e.executions.Update(context.WithoutCancel(ctx), exec); err != nil {
		return err
	}
	e.finalize(context.WithoutCancel(ctx), job, conn)
	return nil
}

// runPipeline performs the batch loop. It returns the loaded connection for
// terminal accounting and a nil error only when every batch was processed
// (individual record failures included).
func (e *Executor) runPipeline(ctx context.Context, job *Job) (*connection.Connection, error) {
	exec := job.Execution
	m := job.Mapping

	conn, err := e.connections.FindByID(ctx, exec.TenantID, exec.ConnectionID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	if conn.Status == connection.StatusRateLimited && conn.CanTrigger(now) {
		if err := conn.RecoverFromRateLimit(now); err == nil {
			if err := e.connections.Save(ctx, conn); err != nil {
				return conn, err
			}
		}
	}
	if !conn.CanTrigger(now) {
		return conn, fmt.Errorf("connection %s is not available for sync (status %s)", conn.Code, conn.Status)
	}

	def, err := e.registry.Definition(conn.ConnectorType)
	if err != nil {
		return conn, err
	}
	remote, err := e.registry.Connector(conn.ConnectorType)
	if err != nil {
		return conn, err
	}
	creds, err := e.secrets.Get(ctx, conn.TenantID, conn.CredentialRef)
	if err != nil {
		return conn, fmt.Errorf("resolve credentials: %w", err)
	}

	remoteInfo := connector.ConnectionInfo{
		ConnectionID: conn.ID,
		TenantID:     conn.TenantID,
		BaseURL:      conn.BaseURL,
		APIVersion:   conn.APIVersion,
		AuthType:     conn.AuthType,
		Credentials:  creds,
	}
	hubInfo := connector.ConnectionInfo{
		ConnectionID: conn.ID,
		TenantID:     conn.TenantID,
	}

	// The mapping's fields always read SourceEntity and write TargetEntity;
	// the direction decides which physical system each side is.
	src, srcInfo, srcRemote := e.hub, hubInfo, false
	tgt, tgtInfo, tgtRemote := remote, remoteInfo, true
	if exec.Direction == connector.DirectionInbound {
		src, srcInfo, srcRemote = remote, remoteInfo, true
		tgt, tgtInfo, tgtRemote = e.hub, hubInfo, false
	}

	// The watermark gates conflict detection on every run; it bounds the
	// fetch only when the configuration opted into delta sync.
	var delta, watermark *time.Time
	if job.Config != nil {
		watermark = job.Config.Watermark
		if job.Config.UseDeltaSync {
			delta = watermark
		}
	}
	exec.Watermark = delta

	timeout := e.cfg.DefaultTimeout
	if job.Config != nil {
		timeout = job.Config.ExecutionTimeout(def.TimeoutSeconds)
	} else if def.TimeoutSeconds > 0 {
		timeout = time.Duration(def.TimeoutSeconds) * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	limit := def.RateLimit
	for page := 1; ; page++ {
		if srcRemote {
			if err := e.limiter.Allow(runCtx, conn.ID, limit); err != nil {
				return conn, err
			}
		}
		fetched, err := src.Fetch(runCtx, srcInfo, connector.FetchRequest{
			Entity:     m.SourceEntity,
			Filter:     m.SourceFilter,
			DeltaSince: delta,
			Page:       page,
			PageSize:   m.BatchSize,
		})
		if err != nil {
			return conn, err
		}
		if page == 1 {
			exec.SetTotal(fetched.Total)
		}

		batch, logs, err := e.processBatch(runCtx, job, conn, fetched.Records, tgt, tgtInfo, tgtRemote, limit, watermark)
		if err != nil {
			return conn, err
		}

		exec.ApplyBatch(batch)
		if err := e.executions.UpdateProgress(runCtx, exec); err != nil {
			return conn, err
		}
		if len(logs) > 0 {
			if err := e.execLogs.Append(runCtx, logs); err != nil {
				e.logger.Warn("Failed to append execution logs",
					zap.String("execution_id", exec.ID.String()), zap.Error(err))
			}
		}

		cancelled, err := e.executions.IsCancelRequested(runCtx, exec.ID)
		if err == nil && cancelled {
			if err := exec.Cancel(e.now()); err != nil {
				return conn, err
			}
			return conn, errRunCancelled
		}
		if err := runCtx.Err(); err != nil {
			return conn, err
		}
		if e.cfg.FailureAbortRatio > 0 && e.cfg.FailureAbortMinimum > 0 &&
			exec.ProcessedRecords >= e.cfg.FailureAbortMinimum &&
			float64(exec.FailedRecords)/float64(exec.ProcessedRecords) > e.cfg.FailureAbortRatio {
			return conn, fmt.Errorf("aborted: %d of %d records failed", exec.FailedRecords, exec.ProcessedRecords)
		}

		if !fetched.HasMore || len(fetched.Records) == 0 {
			return conn, nil
		}
	}
}

// processBatch maps, matches and writes one fetched page. Record-level
// problems are folded into the batch counters; only fatal errors return.
func (e *Executor) processBatch(
	ctx context.Context,
	job *Job,
	conn *connection.Connection,
	records []connector.Record,
	tgt connector.Connector,
	tgtInfo connector.ConnectionInfo,
	tgtRemote bool,
	limit connector.RateLimit,
	watermark *time.Time,
) (syncdomain.BatchResult, []*syncdomain.ExecutionLog, error) {
	exec := job.Execution
	m := job.Mapping

	var batch syncdomain.BatchResult
	var logs []*syncdomain.ExecutionLog

	for i := range records {
		rec := &records[i]
		batch.Processed++
		start := e.now()

		applied, err := m.ApplyToRecord(rec.Data)
		if err != nil {
			return batch, logs, err
		}
		if applied.Failed() {
			batch.Failed++
			msg := fmt.Sprintf("missing required fields: %v", applied.MissingRequired)
			exec.RecordError(rec.ExternalID, applied.MissingRequired[0], msg, start)
			logs = append(logs, syncdomain.NewExecutionLog(exec, syncdomain.LogError, msg, rec.ExternalID, "", 0))
			continue
		}

		keys, ok := m.KeyValues(applied.Record)
		if !ok {
			batch.Failed++
			msg := "record has no values for the configured key fields"
			exec.RecordError(rec.ExternalID, "", msg, start)
			logs = append(logs, syncdomain.NewExecutionLog(exec, syncdomain.LogError, msg, rec.ExternalID, "", 0))
			continue
		}

		if tgtRemote {
			if err := e.limiter.Allow(ctx, conn.ID, limit); err != nil {
				return batch, logs, err
			}
		}
		candidates, err := tgt.Fetch(ctx, tgtInfo, connector.FetchRequest{
			Entity:   m.TargetEntity,
			Filter:   mergeFilters(m.TargetFilter, keys),
			Page:     1,
			PageSize: 1,
		})
		if err != nil {
			if isFatalConnectorError(err) {
				return batch, logs, err
			}
			batch.Failed++
			exec.RecordError(rec.ExternalID, "", err.Error(), start)
			logs = append(logs, syncdomain.NewExecutionLog(exec, syncdomain.LogError, err.Error(), rec.ExternalID, "", elapsedMs(start, e.now())))
			continue
		}

		if len(candidates.Records) == 0 {
			if err := e.writeRecord(ctx, &batch, &logs, job, conn, tgt, tgtInfo, tgtRemote, limit, rec.ExternalID, "", applied.Record, start); err != nil {
				return batch, logs, err
			}
			continue
		}

		match := candidates.Records[0]
		diff := changedFields(applied.Record, match.Data)
		if len(diff) == 0 {
			batch.Skipped++
			logs = append(logs, syncdomain.NewExecutionLog(exec, syncdomain.LogDebug, "record unchanged", rec.ExternalID, match.ExternalID, elapsedMs(start, e.now())))
			continue
		}

		// Conflict: both sides modified since the watermark and at least
		// one mapped field diverged. A single-side change writes normally.
		if watermark != nil && rec.ModifiedAt.After(*watermark) && match.ModifiedAt.After(*watermark) {
			proceed, payload, err := e.handleConflict(ctx, job, rec, &match, diff)
			if err != nil {
				return batch, logs, err
			}
			if !proceed {
				batch.Skipped++
				logs = append(logs, syncdomain.NewExecutionLog(exec, syncdomain.LogWarn,
					fmt.Sprintf("conflict on fields %v recorded for manual resolution", diff),
					rec.ExternalID, match.ExternalID, elapsedMs(start, e.now())))
				continue
			}
			if err := e.writeRecord(ctx, &batch, &logs, job, conn, tgt, tgtInfo, tgtRemote, limit, rec.ExternalID, match.ExternalID, payload, start); err != nil {
				return batch, logs, err
			}
			continue
		}

		if err := e.writeRecord(ctx, &batch, &logs, job, conn, tgt, tgtInfo, tgtRemote, limit, rec.ExternalID, match.ExternalID, applied.Record, start); err != nil {
			return batch, logs, err
		}
	}

	return batch, logs, nil
}

// writeRecord performs one create or update on the target side and folds
// the outcome into the batch. Fatal connector errors propagate; anything
// else fails only the record.
func (e *Executor) writeRecord(
	ctx context.Context,
	batch *syncdomain.BatchResult,
	logs *[]*syncdomain.ExecutionLog,
	job *Job,
	conn *connection.Connection,
	tgt connector.Connector,
	tgtInfo connector.ConnectionInfo,
	tgtRemote bool,
	limit connector.RateLimit,
	sourceID, targetID string,
	payload map[string]any,
	start time.Time,
) error {
	exec := job.Execution

	if tgtRemote {
		if err := e.limiter.Allow(ctx, conn.ID, limit); err != nil {
			return err
		}
	}
	result, err := tgt.Write(ctx, tgtInfo, connector.WriteRequest{
		Entity:     job.Mapping.TargetEntity,
		ExternalID: targetID,
		Data:       payload,
	})
	if err != nil {
		if isFatalConnectorError(err) {
			return err
		}
		batch.Failed++
		exec.RecordError(sourceID, "", err.Error(), start)
		*logs = append(*logs, syncdomain.NewExecutionLog(exec, syncdomain.LogError, err.Error(), sourceID, targetID, elapsedMs(start, e.now())))
		return nil
	}

	if result.Created {
		batch.Created++
		*logs = append(*logs, syncdomain.NewExecutionLog(exec, syncdomain.LogInfo, "record created", sourceID, result.ExternalID, elapsedMs(start, e.now())))
	} else {
		batch.Updated++
		*logs = append(*logs, syncdomain.NewExecutionLog(exec, syncdomain.LogInfo, "record updated", sourceID, result.ExternalID, elapsedMs(start, e.now())))
	}
	return nil
}

// handleConflict records the divergence and applies the mapping's conflict
// policy. proceed reports whether a write should happen, with the winning
// payload; a manual policy records the conflict and skips the record.
func (e *Executor) handleConflict(ctx context.Context, job *Job, src *connector.Record, tgtRec *connector.Record, fields []string) (proceed bool, payload map[string]any, err error) {
	exec := job.Execution
	m := job.Mapping

	ref := conflict.ExecutionRef{
		Tenant:     exec.TenantID,
		Execution:  exec.ID,
		Mapping:    m.ID,
		Connection: exec.ConnectionID,
		EntityType: m.TargetEntity,
	}
	// Snapshots are target-shaped on both sides so a human (or a strategy)
	// compares like with like.
	applied, applyErr := m.ApplyToRecord(src.Data)
	if applyErr != nil {
		return false, nil, applyErr
	}
	c, err := conflict.NewConflict(ref, src.ExternalID, tgtRec.ExternalID, applied.Record, tgtRec.Data, src.ModifiedAt, tgtRec.ModifiedAt, fields)
	if err != nil {
		return false, nil, err
	}

	strategy, auto := conflict.StrategyForPolicy(m.ConflictPolicy)
	if !auto {
		if err := e.conflicts.Save(ctx, c); err != nil {
			return false, nil, err
		}
		return false, nil, nil
	}

	resolution, err := c.Resolve(strategy, nil, "auto-resolved by mapping conflict policy", conflict.SystemActor, e.now())
	if err != nil {
		return false, nil, err
	}
	if err := e.conflicts.Save(ctx, c); err != nil {
		return false, nil, err
	}
	return resolution.Write, resolution.Payload, nil
}

// classifyFailure maps a fatal pipeline error onto the execution's terminal
// status and the connection's state machine.
func (e *Executor) classifyFailure(ctx context.Context, job *Job, conn *connection.Connection, runErr error) {
	exec := job.Execution
	now := e.now()

	switch {
	case errors.Is(runErr, connector.ErrRateLimited) || errors.Is(runErr, shared.ErrRateLimitExceeded):
		if conn != nil {
			if err := conn.MarkRateLimited(now.Add(e.cfg.RateLimitBackoff)); err == nil {
				if err := e.connections.Save(ctx, conn); err != nil {
					e.logger.Warn("Failed to persist rate-limited connection",
						zap.String("connection_id", conn.ID.String()), zap.Error(err))
				}
			}
		}
		e.terminate(exec, func() error { return exec.Fail(now, runErr.Error()) })

	case errors.Is(runErr, connector.ErrAuthExpired):
		if conn != nil {
			if err := conn.MarkExpired(); err == nil {
				if err := e.connections.Save(ctx, conn); err != nil {
					e.logger.Warn("Failed to persist expired connection",
						zap.String("connection_id", conn.ID.String()), zap.Error(err))
				}
			}
		}
		e.terminate(exec, func() error { return exec.Fail(now, runErr.Error()) })

	case errors.Is(runErr, context.DeadlineExceeded):
		// A timeout is only a retryable state while the retry budget
		// lasts; the last link of a timed-out chain ends failed.
		if job.Config != nil && exec.RetryCount >= job.Config.MaxRetries {
			e.terminate(exec, func() error { return exec.Fail(now, "execution exceeded its wall-clock budget") })
			return
		}
		e.terminate(exec, func() error { return exec.MarkTimeout(now, "execution exceeded its wall-clock budget") })

	default:
		e.terminate(exec, func() error { return exec.Fail(now, runErr.Error()) })
	}
}

// terminate applies a terminal transition, falling back to Fail when the
// preferred transition is not valid from the current status
func (e *Executor) terminate(exec *syncdomain.SyncExecution, transition func() error) {
	if err := transition(); err != nil {
		if exec.Status.IsTerminal() {
			return
		}
		if failErr := exec.Fail(e.now(), exec.LastError); failErr != nil {
			e.logger.Error("Execution stuck in non-terminal state",
				zap.String("execution_id", exec.ID.String()),
				zap.String("status", string(exec.Status)),
			)
		}
	}
}

// finalize folds the terminal execution into its configuration and
// connection, emits the terminal event and chains a retry when allowed
func (e *Executor) finalize(ctx context.Context, job *Job, conn *connection.Connection) {
	exec := job.Execution

	if job.Config != nil && exec.StartedAt != nil {
		cfg := job.Config
		cfg.RecordRunFinished(exec.Status, *exec.StartedAt, exec.SucceededRecords())
		if err := e.configs.Save(ctx, cfg); err != nil {
			e.logger.Error("Failed to record run outcome on configuration",
				zap.String("config_id", cfg.ID.String()), zap.Error(err))
		}
	}

	if conn != nil {
		success := exec.Status == syncdomain.StatusCompleted || exec.Status == syncdomain.StatusPartial
		if err := e.connections.RecordOutcome(ctx, conn.ID, success, exec.DurationMs); err != nil {
			e.logger.Warn("Failed to record execution outcome on connection",
				zap.String("connection_id", conn.ID.String()), zap.Error(err))
		}
	}

	if e.events != nil {
		if err := e.events.Publish(ctx, syncdomain.NewExecutionFinishedEvent(exec)); err != nil {
			e.logger.Warn("Failed to publish execution finished event",
				zap.String("execution_id", exec.ID.String()), zap.Error(err))
		}
	}

	e.logger.Info("Sync execution finished",
		zap.String("execution_id", exec.ID.String()),
		zap.String("status", string(exec.Status)),
		zap.Int("total", exec.TotalRecords),
		zap.Int("processed", exec.ProcessedRecords),
		zap.Int("created", exec.CreatedRecords),
		zap.Int("updated", exec.UpdatedRecords),
		zap.Int("skipped", exec.SkippedRecords),
		zap.Int("failed", exec.FailedRecords),
		zap.Int64("duration_ms", exec.DurationMs),
	)

	e.maybeChainRetry(ctx, job)
}

// maybeChainRetry creates and schedules a linked retry execution after a
// terminal failed or timed-out run, while the retry budget lasts
func (e *Executor) maybeChainRetry(ctx context.Context, job *Job) {
	exec := job.Execution
	cfg := job.Config
	if cfg == nil || e.submitter == nil || !exec.CanRetry(cfg.MaxRetries) {
		return
	}

	retry, err := syncdomain.NewRetryExecution(exec)
	if err != nil {
		return
	}

	// The lock moves from the finished execution to the chained retry. The
	// handover is two statements; a trigger racing into the gap loses to
	// the retry's overlap error, not the other way round.
	if err := e.executions.ReleaseLock(ctx, job.LockKey, exec.ID); err != nil {
		e.logger.Warn("Failed to release lock for retry handover",
			zap.String("execution_id", exec.ID.String()), zap.Error(err))
	}
	if err := e.executions.AcquireLock(ctx, job.LockKey, retry.ID, e.cfg.LockTTL); err != nil {
		e.logger.Warn("Retry not chained: lock taken by another trigger",
			zap.String("execution_id", exec.ID.String()), zap.Error(err))
		return
	}

	if err := retry.Enqueue(); err != nil {
		return
	}
	if err := e.executions.Create(ctx, retry); err != nil {
		e.logger.Error("Failed to create retry execution",
			zap.String("execution_id", exec.ID.String()), zap.Error(err))
		if relErr := e.executions.ReleaseLock(ctx, job.LockKey, retry.ID); relErr != nil {
			e.logger.Warn("Failed to release retry lock", zap.Error(relErr))
		}
		return
	}
	if err := exec.MarkRetrying(); err == nil {
		if err := e.executions.Update(ctx, exec); err != nil {
			e.logger.Warn("Failed to mark execution retrying",
				zap.String("execution_id", exec.ID.String()), zap.Error(err))
		}
	}

	delay := cfg.RetryDelay(retry.RetryCount)
	retryJob := &Job{Execution: retry, Config: cfg, Mapping: job.Mapping, LockKey: job.LockKey}
	if err := e.submitter.SubmitAfter(retryJob, delay); err != nil {
		e.logger.Error("Failed to schedule retry execution",
			zap.String("execution_id", retry.ID.String()), zap.Error(err))
		return
	}

	e.logger.Info("Retry execution chained",
		zap.String("execution_id", exec.ID.String()),
		zap.String("retry_execution_id", retry.ID.String()),
		zap.Int("retry_count", retry.RetryCount),
		zap.Duration("delay", delay),
	)
}

// isFatalConnectorError reports whether an adapter error must abort the run
// instead of failing a single record
func isFatalConnectorError(err error) bool {
	return errors.Is(err, connector.ErrRateLimited) ||
		errors.Is(err, connector.ErrAuthExpired) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// mergeFilters combines the mapping's target filter with the key lookup;
// key values win on collision
func mergeFilters(base, keys map[string]any) map[string]any {
	if len(base) == 0 {
		return keys
	}
	out := make(map[string]any, len(base)+len(keys))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range keys {
		out[k] = v
	}
	return out
}

// changedFields returns the mapped fields whose values differ between the
// mapped source record and the target record
func changedFields(mapped, target map[string]any) []string {
	var diff []string
	for field, v := range mapped {
		tv, present := target[field]
		if !present || !valueEqual(v, tv) {
			diff = append(diff, field)
		}
	}
	return diff
}

// valueEqual compares two field values that may have crossed a JSON
// round-trip, so 1 and 1.0 and "1" from differing codecs still match
func valueEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func elapsedMs(start, end time.Time) int64 {
	return end.Sub(start).Milliseconds()
}
