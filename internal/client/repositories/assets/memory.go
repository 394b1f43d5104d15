package assets

import (
	"context"
	"sort"
	"sync"

	"github.com/dmitrijs2005/imagesync/internal/client/models"
	"github.com/dmitrijs2005/imagesync/internal/common"
)

// MemoryRepository keeps assets in a map. Records are cloned on the way in
// and out so callers never share state with the store.
type MemoryRepository struct {
	mu    sync.Mutex
	items map[string]*models.ImageAsset
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]*models.ImageAsset)}
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*models.ImageAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.items[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return a.Clone(), nil
}

func (r *MemoryRepository) FindAll(_ context.Context, pred Predicate) ([]*models.ImageAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.ImageAsset
	for _, a := range r.items {
		if pred == nil || pred(a) {
			result = append(result, a.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *MemoryRepository) Save(_ context.Context, a *models.ImageAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[a.ID] = a.Clone()
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, id string, fn Mutator) (*models.ImageAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.items[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	a := cur.Clone()
	if err := fn(a); err != nil {
		return nil, err
	}
	a.ID = id
	r.items[id] = a.Clone()
	return a, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, id)
	return nil
}
