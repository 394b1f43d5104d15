package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestInitDatabase_CreatesSchema(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "imagesync.db")

	db, err := InitDatabase(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.PingContext(ctx))
	for _, table := range []string{"goose_db_version", "metadata", "image_assets"} {
		require.True(t, tableExists(t, db, table), "table %s must exist", table)
	}
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "imagesync.db")

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RunMigrations(ctx, db))
	require.NoError(t, RunMigrations(ctx, db), "second run must be a no-op")
	require.True(t, tableExists(t, db, "image_assets"))
}

func TestInitDatabase_RemoteIDIsUnique(t *testing.T) {
	ctx := context.Background()
	db, err := InitDatabase(ctx, filepath.Join(t.TempDir(), "imagesync.db"))
	require.NoError(t, err)
	defer db.Close()

	insert := `INSERT INTO image_assets (id, file_path, remote_image_id, created_at) VALUES (?, ?, ?, 0)`
	_, err = db.ExecContext(ctx, insert, "a1", "a1.jpg", "r1")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, insert, "a2", "a2.jpg", nil)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, insert, "a3", "a3.jpg", nil)
	require.NoError(t, err, "several assets may lack a remote id")
	_, err = db.ExecContext(ctx, insert, "a4", "a4.jpg", "r1")
	require.Error(t, err)
}
