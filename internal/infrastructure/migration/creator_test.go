package migration

import (
	"fmt"
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
		{"add device table", "add_device_table"},
		{"Add-Device-Table", "add_device_table"},
		{"ADD_DEVICE_TABLE", "add_device_table"},
		{"add__device__table", "add_device_table"},
		{"Shift Roster 2", "shift_roster_2"},
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

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("-- test"), 0o644))
	}
}

func TestCreateMigration(t *testing.T) {
	tmpDir := t.TempDir()

	mf, err := CreateMigration(tmpDir, "add device table")
	require.NoError(t, err)

	assert.EqualValues(t, 1, mf.Version)
	assert.Equal(t, filepath.Join(tmpDir, "000001_add_device_table.up.sql"), mf.UpPath)
	assert.Equal(t, filepath.Join(tmpDir, "000001_add_device_table.down.sql"), mf.DownPath)

	upContent, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(upContent), "-- Migration: add device table")

	downContent, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(downContent), "(rollback)")
}

func TestCreateMigration_NumbersAfterExisting(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir,
		"000001_init.up.sql", "000001_init.down.sql",
		"000007_roster.up.sql", "000007_roster.down.sql",
	)

	mf, err := CreateMigration(tmpDir, "results index")
	require.NoError(t, err)

	assert.EqualValues(t, 8, mf.Version)
	assert.True(t, strings.HasSuffix(mf.UpPath, "000008_results_index.up.sql"))
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	nestedPath := filepath.Join(t.TempDir(), "nested", "migrations")

	_, err := CreateMigration(nestedPath, "init")
	require.NoError(t, err)

	info, err := os.Stat(nestedPath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!")
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir,
		"000010_add_results.up.sql", "000010_add_results.down.sql",
		"000002_add_shifts.up.sql", "000002_add_shifts.down.sql",
		"000001_init_schema.up.sql", "000001_init_schema.down.sql",
		"README.md", "config.yaml", ".gitkeep", "notes.up.sql",
	)
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "000003_dir.up.sql"), 0o755))

	migrations, err := ListMigrations(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, []Migration{
		{Version: 1, Name: "init_schema"},
		{Version: 2, Name: "add_shifts"},
		{Version: 10, Name: "add_results"},
	}, migrations)
}

func TestListMigrations_NonexistentDirectory(t *testing.T) {
	migrations, err := ListMigrations("/nonexistent/path/to/migrations")
	require.NoError(t, err)
	assert.Empty(t, migrations)
}

func TestShippedMigrationsArePaired(t *testing.T) {
	dir := filepath.Join("..", "..", "..", DefaultPath)
	migrations, err := ListMigrations(dir)
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	for i, m := range migrations {
		assert.EqualValues(t, i+1, m.Version, "versions must be contiguous")
		down := filepath.Join(dir, fmt.Sprintf("%0*d_%s.down.sql", versionWidth, m.Version, m.Name))
		_, err := os.Stat(down)
		assert.NoError(t, err, "missing rollback for %s", m.Name)
	}
}
