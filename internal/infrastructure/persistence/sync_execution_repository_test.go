package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/synchub/backend/internal/domain/sync"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockSyncExecutionRepository creates a GormSyncExecutionRepository with a mocked SQL connection
func newMockSyncExecutionRepository(t *testing.T) (*GormSyncExecutionRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormSyncExecutionRepository(gormDB), mock, mockDB
}

func TestGormSyncExecutionRepository_FindByID(t *testing.T) {
	t.Run("finds existing execution", func(t *testing.T) {
		repo, mock, mockDB := newMockSyncExecutionRepository(t)
		defer mockDB.Close()

		executionID := uuid.New()
		tenantID := uuid.New()

		rows := sqlmock.NewRows([]string{"id", "tenant_id", "mapping_id", "connection_id", "direction", "entity_type", "status", "trigger_source"}).
			AddRow(executionID, tenantID, uuid.New(), uuid.New(), "inbound", "contact", "running", "manual")

		mock.ExpectQuery(`SELECT \* FROM "sync_executions" WHERE tenant_id = \$1 AND id = \$2 ORDER BY .* LIMIT .*`).
			WithArgs(tenantID, executionID, 1).
			WillReturnRows(rows)

		execution, err := repo.FindByID(context.Background(), tenantID, executionID)

		assert.NoError(t, err)
		assert.NotNil(t, execution)
		assert.Equal(t, executionID, execution.ID)
		assert.Equal(t, sync.StatusRunning, execution.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns domain error for non-existent execution", func(t *testing.T) {
		repo, mock, mockDB := newMockSyncExecutionRepository(t)
		defer mockDB.Close()

		executionID := uuid.New()
		tenantID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "sync_executions" WHERE tenant_id = \$1 AND id = \$2 ORDER BY .* LIMIT .*`).
			WithArgs(tenantID, executionID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		execution, err := repo.FindByID(context.Background(), tenantID, executionID)

		assert.Error(t, err)
		assert.Nil(t, execution)
		assert.ErrorIs(t, err, sync.ErrExecutionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormSyncExecutionRepository_AcquireLock(t *testing.T) {
	t.Run("acquires free lock", func(t *testing.T) {
		repo, mock, mockDB := newMockSyncExecutionRepository(t)
		defer mockDB.Close()

		lockKey := uuid.New()
		executionID := uuid.New()

		mock.ExpectExec(`INSERT INTO sync_execution_locks`).
			WithArgs(lockKey, executionID, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.AcquireLock(context.Background(), lockKey, executionID, time.Hour)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports overlap when a live lock is held", func(t *testing.T) {
		repo, mock, mockDB := newMockSyncExecutionRepository(t)
		defer mockDB.Close()

		lockKey := uuid.New()
		executionID := uuid.New()

		mock.ExpectExec(`INSERT INTO sync_execution_locks`).
			WithArgs(lockKey, executionID, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.AcquireLock(context.Background(), lockKey, executionID, time.Hour)

		assert.ErrorIs(t, err, sync.ErrExecutionOverlap)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormSyncExecutionRepository_ReleaseLock(t *testing.T) {
	t.Run("releases only a lock still held by this execution", func(t *testing.T) {
		repo, mock, mockDB := newMockSyncExecutionRepository(t)
		defer mockDB.Close()

		lockKey := uuid.New()
		executionID := uuid.New()

		mock.ExpectExec(`DELETE FROM "sync_execution_locks" WHERE lock_key = \$1 AND execution_id = \$2`).
			WithArgs(lockKey, executionID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.ReleaseLock(context.Background(), lockKey, executionID)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormSyncExecutionRepository_RequestCancel(t *testing.T) {
	t.Run("flags a running execution", func(t *testing.T) {
		repo, mock, mockDB := newMockSyncExecutionRepository(t)
		defer mockDB.Close()

		executionID := uuid.New()
		tenantID := uuid.New()

		mock.ExpectExec(`UPDATE "sync_executions" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.RequestCancel(context.Background(), tenantID, executionID)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects cancelling a terminal execution", func(t *testing.T) {
		repo, mock, mockDB := newMockSyncExecutionRepository(t)
		defer mockDB.Close()

		executionID := uuid.New()
		tenantID := uuid.New()

		mock.ExpectExec(`UPDATE "sync_executions" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT count\(\*\) FROM "sync_executions" WHERE tenant_id = \$1 AND id = \$2`).
			WithArgs(tenantID, executionID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		err := repo.RequestCancel(context.Background(), tenantID, executionID)

		assert.ErrorIs(t, err, sync.ErrExecutionNotCancellable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for an unknown execution", func(t *testing.T) {
		repo, mock, mockDB := newMockSyncExecutionRepository(t)
		defer mockDB.Close()

		executionID := uuid.New()
		tenantID := uuid.New()

		mock.ExpectExec(`UPDATE "sync_executions" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT count\(\*\) FROM "sync_executions" WHERE tenant_id = \$1 AND id = \$2`).
			WithArgs(tenantID, executionID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		err := repo.RequestCancel(context.Background(), tenantID, executionID)

		assert.ErrorIs(t, err, sync.ErrExecutionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormSyncExecutionRepository_IsCancelRequested(t *testing.T) {
	t.Run("reads the cooperative cancellation flag", func(t *testing.T) {
		repo, mock, mockDB := newMockSyncExecutionRepository(t)
		defer mockDB.Close()

		executionID := uuid.New()

		mock.ExpectQuery(`SELECT "cancel_requested" FROM "sync_executions" WHERE id = \$1`).
			WithArgs(executionID).
			WillReturnRows(sqlmock.NewRows([]string{"cancel_requested"}).AddRow(true))

		requested, err := repo.IsCancelRequested(context.Background(), executionID)

		assert.NoError(t, err)
		assert.True(t, requested)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
