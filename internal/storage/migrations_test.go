package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := openDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&n)
	require.NoError(t, err)
	return n == 1
}

func TestApplyMigrations(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, ApplyMigrations(ctx, db))
	assert.True(t, tableExists(t, db, "schema_version"))
	assert.True(t, tableExists(t, db, "manifest"))
	assert.True(t, tableExists(t, db, "vectors"))

	v, err := schemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())

	// Idempotent.
	require.NoError(t, ApplyMigrations(ctx, db))
	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count))
	assert.Equal(t, len(AllMigrations), count)
}

func TestRollbackMigration(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, ApplyMigrations(ctx, db))

	require.NoError(t, RollbackMigration(ctx, db))
	v, err := schemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.String())

	require.NoError(t, RollbackMigration(ctx, db))
	assert.False(t, tableExists(t, db, "vectors"))
	assert.False(t, tableExists(t, db, "schema_version"))

	assert.Error(t, RollbackMigration(ctx, db))
}

func TestCheckCompatible(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, ApplyMigrations(ctx, db))

	v, err := CheckCompatible(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())

	_, err = db.Exec("INSERT INTO schema_version (version) VALUES ('2.0.0')")
	require.NoError(t, err)
	_, err = CheckCompatible(ctx, db)
	assert.ErrorIs(t, err, ErrCorruptIndex)
}

func TestCheckCompatible_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	_, err := CheckCompatible(context.Background(), db)
	assert.ErrorIs(t, err, ErrCorruptIndex)
}
