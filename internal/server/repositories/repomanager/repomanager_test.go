package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/imagesync/internal/server/repositories/devices"
	"github.com/dmitrijs2005/imagesync/internal/server/repositories/images"
	"github.com/dmitrijs2005/imagesync/internal/server/repositories/nonces"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestManagers_ImplementInterface(t *testing.T) {
	var _ RepositoryManager = NewPostgresRepositoryManager()
	var _ RepositoryManager = NewMemoryRepositoryManager()
}

func TestPostgresFactories_ReturnConcreteRepos(t *testing.T) {
	db := newDB(t)
	m := NewPostgresRepositoryManager()

	assert.IsType(t, &devices.PostgresRepository{}, m.Devices(db))
	assert.IsType(t, &images.PostgresRepository{}, m.Images(db))
	assert.IsType(t, &nonces.PostgresRepository{}, m.Nonces(db))
}

func TestMemoryFactories_ShareState(t *testing.T) {
	m := NewMemoryRepositoryManager()
	ctx := context.Background()

	require.NoError(t, m.Nonces(nil).Add(ctx, "d", "n"))
	require.Error(t, m.Nonces(newDB(t)).Add(ctx, "d", "n"))
	assert.Same(t, m.Devices(nil), m.Devices(nil))
	assert.NoError(t, m.RunMigrations(ctx, nil))
}

func TestRunMigrations(t *testing.T) {
	db := newDB(t)
	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}
	m := NewPostgresRepositoryManager()
	require.NoError(t, m.RunMigrations(context.Background(), db))
	assert.Equal(t, ".", gotDir)

	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	assert.EqualError(t, m.RunMigrations(context.Background(), db), "boom")
}
