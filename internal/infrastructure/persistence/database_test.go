package persistence

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// openMockDatabase wires a Database over a sqlmock connection so pool and
// tenant-scoping behavior can be tested without Postgres.
func openMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return &Database{DB: gormDB}, mock, mockDB
}

type syncExecutionRow struct {
	ID       uint
	TenantID string
	Status   string
}

func TestDatabaseWithTenant(t *testing.T) {
	t.Run("scopes queries to the tenant", func(t *testing.T) {
		db, mock, mockDB := openMockDatabase(t)
		defer mockDB.Close()

		tenantID := "tenant-123"
		mock.ExpectQuery(`SELECT \* FROM "sync_execution_rows" WHERE tenant_id = \$1`).
			WithArgs(tenantID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "status"}).
				AddRow(1, tenantID, "completed"))

		var rows []syncExecutionRow
		require.NoError(t, db.WithTenant(tenantID).Find(&rows).Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("leaves the shared handle untouched", func(t *testing.T) {
		db, _, mockDB := openMockDatabase(t)
		defer mockDB.Close()

		original := db.DB
		scoped := db.WithTenant("tenant-456")

		assert.NotEqual(t, original, scoped)
		assert.Equal(t, original, db.DB)
	})

	t.Run("panics on empty tenant ID", func(t *testing.T) {
		db, _, mockDB := openMockDatabase(t)
		defer mockDB.Close()

		assert.Panics(t, func() { db.WithTenant("") })
	})

	t.Run("tenant ID is parameterized, not interpolated", func(t *testing.T) {
		db, mock, mockDB := openMockDatabase(t)
		defer mockDB.Close()

		tenantID := "tenant'; DROP TABLE sync_executions; --"
		mock.ExpectQuery(`SELECT \* FROM "sync_execution_rows" WHERE tenant_id = \$1`).
			WithArgs(tenantID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "status"}))

		var rows []syncExecutionRow
		require.NoError(t, db.WithTenant(tenantID).Find(&rows).Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("composes with further chained clauses", func(t *testing.T) {
		db, mock, mockDB := openMockDatabase(t)
		defer mockDB.Close()

		tenantID := "tenant-789"
		mock.ExpectQuery(`SELECT \* FROM "sync_execution_rows" WHERE tenant_id = \$1 AND status = \$2 ORDER BY id DESC LIMIT \$3 OFFSET \$4`).
			WithArgs(tenantID, "running", 10, 5).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "status"}).
				AddRow(6, tenantID, "running"))

		var rows []syncExecutionRow
		err := db.WithTenant(tenantID).
			Where("status = ?", "running").
			Order("id DESC").
			Limit(10).
			Offset(5).
			Find(&rows).Error
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("distinct tenants get distinct sessions", func(t *testing.T) {
		db, _, mockDB := openMockDatabase(t)
		defer mockDB.Close()

		assert.NotEqual(t, db.WithTenant("tenant-1"), db.WithTenant("tenant-2"))
	})
}

func TestDatabaseTransaction(t *testing.T) {
	t.Run("commits when fn succeeds", func(t *testing.T) {
		db, mock, mockDB := openMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectBegin()
		// Postgres GORM inserts via Query with a RETURNING clause.
		mock.ExpectQuery(`INSERT INTO "sync_execution_rows"`).
			WithArgs("tenant-1", "pending").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectCommit()

		err := db.Transaction(func(tx *gorm.DB) error {
			return tx.Create(&syncExecutionRow{TenantID: "tenant-1", Status: "pending"}).Error
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		db, mock, mockDB := openMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := db.Transaction(func(tx *gorm.DB) error {
			return assert.AnError
		})

		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDatabaseStats(t *testing.T) {
	db, _, mockDB := openMockDatabase(t)
	defer mockDB.Close()

	stats, err := db.Stats()
	require.NoError(t, err)

	// sqlmock reports a fresh pool; every counter should be non-negative.
	assert.GreaterOrEqual(t, stats.MaxOpenConnections, 0)
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
	assert.GreaterOrEqual(t, stats.InUse, 0)
	assert.GreaterOrEqual(t, stats.Idle, 0)
	assert.GreaterOrEqual(t, stats.WaitCount, int64(0))
	assert.GreaterOrEqual(t, stats.WaitDuration, time.Duration(0))
	assert.GreaterOrEqual(t, stats.MaxIdleClosed, int64(0))
	assert.GreaterOrEqual(t, stats.MaxIdleTimeClosed, int64(0))
	assert.GreaterOrEqual(t, stats.MaxLifetimeClosed, int64(0))
}

func TestDatabasePing(t *testing.T) {
	t.Run("delegates to the pool", func(t *testing.T) {
		db, mock, mockDB := openMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectPing()

		assert.NoError(t, db.Ping())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("with ping monitoring enabled", func(t *testing.T) {
		mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer mockDB.Close()

		// gorm.Open pings once itself.
		mock.ExpectPing()

		gormDB, err := gorm.Open(postgres.New(postgres.Config{
			Conn:       mockDB,
			DriverName: "postgres",
		}), &gorm.Config{SkipDefaultTransaction: true})
		require.NoError(t, err)

		db := &Database{DB: gormDB}

		mock.ExpectPing()
		assert.NoError(t, db.Ping())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDatabaseClose(t *testing.T) {
	db, mock, _ := openMockDatabase(t)

	mock.ExpectClose()

	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
