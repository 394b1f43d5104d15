// Package repomanager vends gateway repositories bound to a database handle,
// plus the schema migration hook. The Postgres manager is used in production;
// the memory manager backs tests and DSN-less development runs.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/imagesync/internal/dbx"
	"github.com/dmitrijs2005/imagesync/internal/server/repositories/devices"
	"github.com/dmitrijs2005/imagesync/internal/server/repositories/images"
	"github.com/dmitrijs2005/imagesync/internal/server/repositories/nonces"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Devices(db dbx.DBTX) devices.Repository
	Images(db dbx.DBTX) images.Repository
	Nonces(db dbx.DBTX) nonces.Repository
}
