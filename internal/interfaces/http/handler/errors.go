package handler

import (
	"errors"
	"net/http"

	conflictdomain "github.com/synchub/backend/internal/domain/conflict"
	"github.com/synchub/backend/internal/domain/connection"
	"github.com/synchub/backend/internal/domain/connector"
	"github.com/synchub/backend/internal/domain/mapping"
	syncdomain "github.com/synchub/backend/internal/domain/sync"
	webhookdomain "github.com/synchub/backend/internal/domain/webhook"
	"github.com/synchub/backend/internal/infrastructure/scheduler"
	"github.com/synchub/backend/internal/infrastructure/secrets"
	"github.com/synchub/backend/internal/interfaces/http/dto"
)

// Domain sentinel errors grouped by the HTTP semantics they carry. Services
// return these directly; anything not listed falls back to DomainError
// handling and finally to a 500.
var (
	notFoundErrors = []error{
		connection.ErrConnectionNotFound,
		mapping.ErrMappingNotFound,
		syncdomain.ErrConfigNotFound,
		syncdomain.ErrExecutionNotFound,
		conflictdomain.ErrConflictNotFound,
		webhookdomain.ErrWebhookNotFound,
		secrets.ErrSecretNotFound,
	}

	conflictErrors = []error{
		connection.ErrConnectionExists,
		conflictdomain.ErrConflictAlreadyResolved,
	}

	invalidStateErrors = []error{
		connection.ErrInvalidStatusTransition,
		connection.ErrConnectionInactive,
		connection.ErrConnectionInMaintenance,
		connection.ErrReauthorizationRequired,
		mapping.ErrMappingInactive,
		syncdomain.ErrInvalidExecutionState,
		syncdomain.ErrExecutionNotCancellable,
		syncdomain.ErrExecutionNotRetryable,
		syncdomain.ErrRetriesExhausted,
		syncdomain.ErrConfigPaused,
		webhookdomain.ErrWebhookInactive,
		webhookdomain.ErrNotInbound,
		connector.ErrAuthExpired,
		connector.ErrDirectionNotSupported,
	}

	validationErrors = []error{
		connection.ErrCodeRequired,
		connection.ErrNameRequired,
		connection.ErrBaseURLRequired,
		connection.ErrMissingCredentialField,
		connection.ErrInvalidAuthType,
		mapping.ErrNameRequired,
		mapping.ErrNoFields,
		mapping.ErrFieldIncomplete,
		mapping.ErrDuplicateTargetField,
		mapping.ErrUnknownTransform,
		mapping.ErrNoKeyFields,
		mapping.ErrKeyFieldNotMapped,
		mapping.ErrInvalidBatchSize,
		mapping.ErrInvalidConflictPolicy,
		syncdomain.ErrInvalidCronExpression,
		syncdomain.ErrUnknownTimezone,
		syncdomain.ErrInvalidInterval,
		syncdomain.ErrScheduleRequired,
		syncdomain.ErrConfigNameRequired,
		syncdomain.ErrDeltaFieldRequired,
		syncdomain.ErrInvalidRetryPolicy,
		syncdomain.ErrInvalidSyncMode,
		conflictdomain.ErrMergeDataRequired,
		conflictdomain.ErrUnknownStrategy,
		webhookdomain.ErrNameRequired,
		webhookdomain.ErrInvalidDirection,
		webhookdomain.ErrNoEvents,
		webhookdomain.ErrTargetURLRequired,
		webhookdomain.ErrInvalidAuthType,
		webhookdomain.ErrInvalidSignatureAlgorithm,
		webhookdomain.ErrInvalidRetryPolicy,
		connector.ErrUnknownConnectorType,
		connector.ErrEntityNotSupported,
	}
)

// mapSentinelError resolves a domain sentinel to (HTTP status, wire code).
// Returns false when the error matches none of the known sentinels.
func mapSentinelError(err error) (int, string, bool) {
	switch {
	case matchesAny(err, notFoundErrors):
		return http.StatusNotFound, dto.ErrCodeNotFound, true
	case errors.Is(err, syncdomain.ErrExecutionOverlap):
		return http.StatusConflict, dto.ErrCodeExecutionOverlap, true
	case errors.Is(err, webhookdomain.ErrDuplicateEvent):
		return http.StatusConflict, dto.ErrCodeDuplicateEvent, true
	case matchesAny(err, conflictErrors):
		return http.StatusConflict, dto.ErrCodeConflict, true
	case errors.Is(err, webhookdomain.ErrSignatureMismatch):
		return http.StatusUnauthorized, dto.ErrCodeSignatureInvalid, true
	case errors.Is(err, scheduler.ErrJobQueueFull):
		return http.StatusServiceUnavailable, dto.ErrCodeQueueFull, true
	case errors.Is(err, connector.ErrRateLimited):
		return http.StatusTooManyRequests, dto.ErrCodeRateLimited, true
	case matchesAny(err, invalidStateErrors):
		return http.StatusUnprocessableEntity, dto.ErrCodeInvalidState, true
	case matchesAny(err, validationErrors):
		return http.StatusBadRequest, dto.ErrCodeInvalidInput, true
	}
	return 0, "", false
}

func matchesAny(err error, sentinels []error) bool {
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
