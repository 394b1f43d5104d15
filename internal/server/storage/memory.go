package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/common"
)

// ObjectsPrefix is the route under which the gateway accepts uploads for a
// MemoryStore.
const ObjectsPrefix = "/objects/"

// MemoryStore keeps objects in a map. Its upload URLs point back at the
// gateway itself.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	baseURL string
	now     func() time.Time
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

func (s *MemoryStore) PresignPut(_ context.Context, key, _ string, expiry time.Duration) (string, error) {
	q := url.Values{"expires": {fmt.Sprint(s.now().Add(expiry).Unix())}}
	return s.baseURL + ObjectsPrefix + key + "?" + q.Encode(), nil
}

// Expired reports whether an upload URL carrying the given expires value
// may no longer be used.
func (s *MemoryStore) Expired(expires string) bool {
	var unix int64
	if _, err := fmt.Sscan(expires, &unix); err != nil {
		return true
	}
	return s.now().Unix() > unix
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, key)
	return nil
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
