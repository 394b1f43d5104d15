package devices

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/common"
	"github.com/dmitrijs2005/imagesync/internal/server/models"
)

type MemoryRepository struct {
	mu    sync.Mutex
	items map[string]models.Device
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]models.Device), now: time.Now}
}

func (r *MemoryRepository) Create(_ context.Context, d *models.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[d.ID]; ok {
		return common.ErrConflict
	}
	d.CreatedAt = r.now()
	r.items[d.ID] = *d
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.items[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &d, nil
}

func (r *MemoryRepository) RotateSecret(_ context.Context, id string, salt, hash []byte, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.items[id]
	if !ok {
		return common.ErrNotFound
	}
	d.SecretSalt, d.SecretHash, d.ExpiresAt = salt, hash, expiresAt
	r.items[id] = d
	return nil
}
