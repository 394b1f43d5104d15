package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/imagesync/internal/dbx"
	"github.com/dmitrijs2005/imagesync/internal/server/repositories/devices"
	"github.com/dmitrijs2005/imagesync/internal/server/repositories/images"
	"github.com/dmitrijs2005/imagesync/internal/server/repositories/nonces"
)

// MemoryRepositoryManager hands out the same in-memory repositories whatever
// handle it is given, so callers can pass a nil DBTX.
type MemoryRepositoryManager struct {
	devices *devices.MemoryRepository
	images  *images.MemoryRepository
	nonces  *nonces.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		devices: devices.NewMemoryRepository(),
		images:  images.NewMemoryRepository(),
		nonces:  nonces.NewMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *MemoryRepositoryManager) Devices(dbx.DBTX) devices.Repository { return m.devices }

func (m *MemoryRepositoryManager) Images(dbx.DBTX) images.Repository { return m.images }

func (m *MemoryRepositoryManager) Nonces(dbx.DBTX) nonces.Repository { return m.nonces }
