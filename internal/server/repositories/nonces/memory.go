package nonces

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/imagesync/internal/common"
)

type key struct{ device, nonce string }

type MemoryRepository struct {
	mu   sync.Mutex
	seen map[key]struct{}
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{seen: make(map[key]struct{})}
}

func (r *MemoryRepository) Add(_ context.Context, deviceID, nonce string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{deviceID, nonce}
	if _, ok := r.seen[k]; ok {
		return common.ErrNonceReused
	}
	r.seen[k] = struct{}{}
	return nil
}
