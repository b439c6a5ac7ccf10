package sync

import "errors"

// Schedule validation errors, raised at configuration save time
var (
	// ErrInvalidCronExpression indicates a cron expression that does not parse
	ErrInvalidCronExpression = errors.New("sync: invalid cron expression")
	// ErrUnknownTimezone indicates a timezone name the runtime cannot load
	ErrUnknownTimezone = errors.New("sync: unknown timezone")
	// ErrInvalidInterval indicates an interval below one minute
	ErrInvalidInterval = errors.New("sync: interval must be at least one minute")
	// ErrScheduleRequired indicates scheduled mode without a cron or interval schedule
	ErrScheduleRequired = errors.New("sync: scheduled mode requires a cron or interval schedule")
)

// Configuration validation errors
var (
	// ErrConfigNameRequired indicates an empty configuration name
	ErrConfigNameRequired = errors.New("sync: configuration name is required")
	// ErrDeltaFieldRequired indicates delta sync enabled without a delta field
	ErrDeltaFieldRequired = errors.New("sync: delta sync requires a delta field")
	// ErrInvalidRetryPolicy indicates a negative retry count or delay
	ErrInvalidRetryPolicy = errors.New("sync: invalid retry policy")
	// ErrInvalidSyncMode indicates an unknown sync mode
	ErrInvalidSyncMode = errors.New("sync: invalid sync mode")
)

// State errors
var (
	// ErrConfigNotFound indicates the configuration does not exist
	ErrConfigNotFound = errors.New("sync: configuration not found")
	// ErrExecutionNotFound indicates the execution does not exist
	ErrExecutionNotFound = errors.New("sync: execution not found")
	// ErrExecutionOverlap indicates another execution holds the configuration lock
	ErrExecutionOverlap = errors.New("sync: another execution is already in progress")
	// ErrInvalidExecutionState indicates a transition not allowed from the current status
	ErrInvalidExecutionState = errors.New("sync: invalid execution state transition")
	// ErrExecutionNotCancellable indicates a cancel request against a non-running execution
	ErrExecutionNotCancellable = errors.New("sync: execution can only be cancelled while queued or running")
	// ErrExecutionNotRetryable indicates a retry request against an execution that is not terminal failed/timeout
	ErrExecutionNotRetryable = errors.New("sync: execution is not in a retryable state")
	// ErrRetriesExhausted indicates the retry chain reached max_retries
	ErrRetriesExhausted = errors.New("sync: maximum retries exhausted")
	// ErrConfigPaused indicates a scheduled trigger against a paused configuration
	ErrConfigPaused = errors.New("sync: configuration is paused")
)
