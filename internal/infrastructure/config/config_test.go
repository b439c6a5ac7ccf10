package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setProductionBase sets the minimum environment a production deployment
// must carry. Individual tests override or drop single values from it.
func setProductionBase(t *testing.T) {
	t.Helper()
	t.Setenv("SYNCHUB_APP_ENV", "production")
	t.Setenv("SYNCHUB_JWT_SECRET", "this-is-a-very-secure-jwt-secret-key-32chars")
	t.Setenv("SYNCHUB_DATABASE_PASSWORD", "secure-password")
	t.Setenv("SYNCHUB_DATABASE_SSLMODE", "require")
	t.Setenv("SYNCHUB_SECRETS_ENCRYPTION_KEY", "3e8de49701c3c68a10f143b1f0be0ff3f53a8e2b7c8d91a0b2c3d4e5f6a7b8c9")
	t.Setenv("SYNCHUB_SWAGGER_ENABLED", "false")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "synchub-backend", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Empty(t, cfg.Database.Password)
	assert.Equal(t, "synchub", cfg.Database.DBName)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5, cfg.Database.MaxIdleConns)

	assert.Equal(t, "15s", cfg.Scheduler.PollInterval.String())
	assert.Equal(t, 5, cfg.Scheduler.Workers)
	assert.Equal(t, 100, cfg.Scheduler.QueueSize)
	assert.Equal(t, 50, cfg.Scheduler.DueBatchLimit)

	assert.Equal(t, "1h0m0s", cfg.Engine.DefaultTimeout.String())
	assert.Equal(t, "2h0m0s", cfg.Engine.LockTTL.String())
	assert.InDelta(t, 0.9, cfg.Engine.FailureAbortRatio, 0.0001)
	assert.Equal(t, 100, cfg.Engine.FailureAbortMinimum)

	assert.Equal(t, "24h0m0s", cfg.Webhook.DedupTTL.String())
	assert.Equal(t, 90, cfg.Archive.RetentionDays)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SYNCHUB_APP_NAME", "test-app")
	t.Setenv("SYNCHUB_APP_ENV", "testing")
	t.Setenv("SYNCHUB_APP_PORT", "9000")
	t.Setenv("SYNCHUB_DATABASE_HOST", "testdb.local")
	t.Setenv("SYNCHUB_DATABASE_PORT", "5433")
	t.Setenv("SYNCHUB_DATABASE_USER", "testuser")
	t.Setenv("SYNCHUB_DATABASE_PASSWORD", "testpass")
	t.Setenv("SYNCHUB_DATABASE_DBNAME", "testdb")
	t.Setenv("SYNCHUB_DATABASE_SSLMODE", "require")
	t.Setenv("SYNCHUB_DATABASE_MAX_OPEN_CONNS", "50")
	t.Setenv("SYNCHUB_DATABASE_MAX_IDLE_CONNS", "10")
	t.Setenv("SYNCHUB_SCHEDULER_POLL_INTERVAL", "30s")
	t.Setenv("SYNCHUB_ENGINE_DEFAULT_TIMEOUT", "45m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-app", cfg.App.Name)
	assert.Equal(t, "testing", cfg.App.Env)
	assert.Equal(t, "9000", cfg.App.Port)
	assert.Equal(t, "testdb.local", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "testuser", cfg.Database.User)
	assert.Equal(t, "testpass", cfg.Database.Password)
	assert.Equal(t, "testdb", cfg.Database.DBName)
	assert.Equal(t, "require", cfg.Database.SSLMode)
	assert.Equal(t, 50, cfg.Database.MaxOpenConns)
	assert.Equal(t, 10, cfg.Database.MaxIdleConns)
	assert.Equal(t, "30s", cfg.Scheduler.PollInterval.String())
	assert.Equal(t, "45m0s", cfg.Engine.DefaultTimeout.String())
}

func TestLoadPoolValidation(t *testing.T) {
	t.Run("idle conns may not exceed open conns", func(t *testing.T) {
		t.Setenv("SYNCHUB_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("SYNCHUB_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns")
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("zero open conns falls back to the default", func(t *testing.T) {
		t.Setenv("SYNCHUB_DATABASE_MAX_OPEN_CONNS", "0")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	})

	t.Run("negative idle conns are rejected", func(t *testing.T) {
		t.Setenv("SYNCHUB_DATABASE_MAX_IDLE_CONNS", "-1")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns cannot be negative")
	})
}

func TestLoadProductionValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(t *testing.T)
		wantErr string
	}{
		{
			name:    "missing jwt secret",
			mutate:  func(t *testing.T) { t.Setenv("SYNCHUB_JWT_SECRET", "") },
			wantErr: "jwt.secret is required in production",
		},
		{
			name:    "short jwt secret",
			mutate:  func(t *testing.T) { t.Setenv("SYNCHUB_JWT_SECRET", "short-secret") },
			wantErr: "jwt.secret must be at least 32 characters",
		},
		{
			name:    "missing database password",
			mutate:  func(t *testing.T) { t.Setenv("SYNCHUB_DATABASE_PASSWORD", "") },
			wantErr: "database.password is required in production",
		},
		{
			name:    "ssl disabled",
			mutate:  func(t *testing.T) { t.Setenv("SYNCHUB_DATABASE_SSLMODE", "disable") },
			wantErr: "database.sslmode cannot be 'disable' in production",
		},
		{
			name:    "missing credential encryption key",
			mutate:  func(t *testing.T) { t.Setenv("SYNCHUB_SECRETS_ENCRYPTION_KEY", "") },
			wantErr: "secrets.encryption_key is required in production",
		},
		{
			name: "unprotected swagger",
			mutate: func(t *testing.T) {
				t.Setenv("SYNCHUB_SWAGGER_ENABLED", "true")
				t.Setenv("SYNCHUB_SWAGGER_REQUIRE_AUTH", "false")
			},
			wantErr: "swagger endpoint must be disabled, require authentication, or have IP restriction",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setProductionBase(t)
			tt.mutate(t)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("complete production config passes", func(t *testing.T) {
		setProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
		assert.False(t, cfg.Swagger.Enabled)
	})

	t.Run("swagger behind auth is allowed", func(t *testing.T) {
		setProductionBase(t)
		t.Setenv("SYNCHUB_SWAGGER_ENABLED", "true")
		t.Setenv("SYNCHUB_SWAGGER_REQUIRE_AUTH", "true")

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.Swagger.Enabled)
		assert.True(t, cfg.Swagger.RequireAuth)
	})
}

func TestDatabaseConfigDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
		SSLMode:  "disable",
	}

	t.Run("carries every component", func(t *testing.T) {
		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost")
		assert.Contains(t, dsn, "5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("URL-escapes the password", func(t *testing.T) {
		c := cfg
		c.Password = "pass@word#123"
		assert.Contains(t, c.DSN(), "pass%40word%23123")
	})

	t.Run("tolerates an empty password", func(t *testing.T) {
		c := cfg
		c.Password = ""
		assert.NotEmpty(t, c.DSN())
	})
}

func TestRedisConfigAddr(t *testing.T) {
	cfg := RedisConfig{Host: "cache.local", Port: 6380}
	assert.Equal(t, "cache.local:6380", cfg.Addr())
}
