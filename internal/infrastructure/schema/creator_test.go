package schema

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/migrator/internal/domain/migration"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add entity index", "add_entity_index"},
		{"Add-Entity-Index", "add_entity_index"},
		{"add__entity__index", "add_entity_index"},
		{"Index 123", "index_123"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
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
	dir := t.TempDir()

	first, err := CreateMigration(dir, "add tags index", "Index order tags")
	require.NoError(t, err)
	assert.Equal(t, "000001", first.Version)
	assert.Equal(t, filepath.Join(dir, "000001_add_tags_index.up.sql"), first.UpPath)

	up, err := os.ReadFile(first.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "add tags index")
	assert.Contains(t, string(up), "Index order tags")

	down, err := os.ReadFile(first.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "Rollback")

	second, err := CreateMigration(dir, "drop tags index", "")
	require.NoError(t, err)
	assert.Equal(t, "000002", second.Version)
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "migrations")

	_, err := CreateMigration(dir, "init", "")
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.ErrorIs(t, err, migration.ErrInvalidMigrationFile)
}

func TestListMigrations(t *testing.T) {
	t.Run("pairs up and down files", func(t *testing.T) {
		fsys := fstest.MapFS{
			"000001_a.up.sql":   {},
			"000001_a.down.sql": {},
			"000002_b.up.sql":   {},
			"000002_b.down.sql": {},
			"README.md":         {},
			"nested/x.up.sql":   {},
		}
		names, err := ListMigrations(fsys)
		require.NoError(t, err)
		assert.Equal(t, []string{"000001_a", "000002_b"}, names)
	})

	t.Run("missing down file", func(t *testing.T) {
		fsys := fstest.MapFS{"000001_a.up.sql": {}}
		_, err := ListMigrations(fsys)
		assert.ErrorIs(t, err, migration.ErrInvalidMigrationFile)
	})

	t.Run("nonexistent directory", func(t *testing.T) {
		names, err := ListMigrations(os.DirFS(filepath.Join(t.TempDir(), "absent")))
		require.NoError(t, err)
		assert.Empty(t, names)
	})
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := EmbeddedMigrations()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"000001_create_entities",
		"000002_index_identity_attributes",
		"000003_widen_attribute_name",
	}, names)

	src, err := iofs.New(embedded, "migrations")
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	next, err := src.Next(first)
	require.NoError(t, err)
	assert.Equal(t, uint(2), next)

	last, err := src.Next(next)
	require.NoError(t, err)
	assert.Equal(t, uint(3), last)
}
