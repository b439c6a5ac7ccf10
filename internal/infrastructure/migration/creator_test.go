package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add sync mappings table", "add_sync_mappings_table"},
		{"Add-Sync-Mappings", "add_sync_mappings"},
		{"ADD_SYNC_MAPPINGS", "add_sync_mappings"},
		{"add__sync__mappings", "add_sync_mappings"},
		{"Add Mappings 123", "add_mappings_123"},
		{"create-webhook-events", "create_webhook_events"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	tmpDir := t.TempDir()

	mf, err := CreateMigration(tmpDir, "add sync mappings", "Create sync mapping tables")
	require.NoError(t, err)
	require.NotNil(t, mf)

	t.Run("version is a sortable timestamp", func(t *testing.T) {
		assert.Len(t, mf.Version, 14)
	})

	t.Run("pair shares a base name", func(t *testing.T) {
		assert.True(t, strings.HasSuffix(mf.UpPath, ".up.sql"))
		assert.True(t, strings.HasSuffix(mf.DownPath, ".down.sql"))

		upBase := strings.TrimSuffix(filepath.Base(mf.UpPath), ".up.sql")
		downBase := strings.TrimSuffix(filepath.Base(mf.DownPath), ".down.sql")
		assert.Equal(t, upBase, downBase)
	})

	t.Run("up file carries header and placeholder", func(t *testing.T) {
		content, err := os.ReadFile(mf.UpPath)
		require.NoError(t, err)
		assert.Contains(t, string(content), "add sync mappings")
		assert.Contains(t, string(content), "Create sync mapping tables")
		assert.Contains(t, string(content), "Write your UP migration SQL here")
	})

	t.Run("down file is marked as the rollback", func(t *testing.T) {
		content, err := os.ReadFile(mf.DownPath)
		require.NoError(t, err)
		assert.Contains(t, string(content), "Rollback")
		assert.Contains(t, string(content), "Write your DOWN migration SQL here")
	})
}

func TestCreateMigrationCreatesDirectory(t *testing.T) {
	nestedPath := filepath.Join(t.TempDir(), "nested", "migrations")

	mf, err := CreateMigration(nestedPath, "initial schema", "base tables")
	require.NoError(t, err)
	require.NotNil(t, mf)

	info, err := os.Stat(nestedPath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestListMigrations(t *testing.T) {
	writeFiles := func(t *testing.T, dir string, names ...string) {
		t.Helper()
		for _, name := range names {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("-- test"), 0644))
		}
	}

	t.Run("returns one entry per pair", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir,
			"000001_init_schema.up.sql",
			"000001_init_schema.down.sql",
			"000002_add_connections.up.sql",
			"000002_add_connections.down.sql",
			"000003_add_sync_executions.up.sql",
			"000003_add_sync_executions.down.sql",
		)

		migrations, err := ListMigrations(dir)
		require.NoError(t, err)
		assert.Len(t, migrations, 3)
		assert.Contains(t, migrations, "000001_init_schema")
		assert.Contains(t, migrations, "000002_add_connections")
		assert.Contains(t, migrations, "000003_add_sync_executions")
	})

	t.Run("empty directory", func(t *testing.T) {
		migrations, err := ListMigrations(t.TempDir())
		require.NoError(t, err)
		assert.Empty(t, migrations)
	})

	t.Run("missing directory", func(t *testing.T) {
		migrations, err := ListMigrations("/nonexistent/path/to/migrations")
		require.NoError(t, err)
		assert.Empty(t, migrations)
	})

	t.Run("skips files that are not migrations", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir,
			"000001_init.up.sql",
			"000001_init.down.sql",
			"README.md",
			"config.yaml",
			".gitkeep",
		)

		migrations, err := ListMigrations(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"000001_init"}, migrations)
	})

	t.Run("skips directories", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, "000001_init.up.sql", "000001_init.down.sql")
		require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir.up.sql"), 0755))

		migrations, err := ListMigrations(dir)
		require.NoError(t, err)
		assert.Len(t, migrations, 1)
	})
}
