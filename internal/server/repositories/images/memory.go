package images

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/common"
	"github.com/dmitrijs2005/imagesync/internal/server/models"
)

type MemoryRepository struct {
	mu    sync.Mutex
	items map[string]models.Image
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]models.Image), now: time.Now}
}

func (r *MemoryRepository) Create(_ context.Context, img *models.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[img.ID]; ok {
		return common.ErrConflict
	}
	img.CreatedAt = r.now()
	r.items[img.ID] = *img
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*models.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	img, ok := r.items[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &img, nil
}

func (r *MemoryRepository) UpdateUpload(_ context.Context, id, contentType string, sizeBytes *int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	img, ok := r.items[id]
	if !ok {
		return common.ErrNotFound
	}
	img.ContentType, img.SizeBytes = contentType, sizeBytes
	r.items[id] = img
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, id)
	return nil
}
