// Package cache stores derivative bytes in two tiers: a bounded in-memory
// LRU in front of the filesystem. Thumbnails are written to a durable
// directory; medium and large go to a purgeable cache directory.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/imagesync/internal/client/metrics"
	"github.com/dmitrijs2005/imagesync/internal/client/models"
	"github.com/dmitrijs2005/imagesync/internal/filex"
	lru "github.com/hashicorp/golang-lru/v2"
)

var ErrInvalidID = errors.New("invalid cache identifier")

type TieredCache struct {
	mem      *lru.Cache[string, []byte]
	thumbDir string
	cacheDir string
	metrics  *metrics.Metrics
}

// New creates both directories if needed. entries bounds the memory tier.
func New(thumbDir, cacheDir string, entries int, m *metrics.Metrics) (*TieredCache, error) {
	if entries <= 0 {
		entries = 128
	}
	mem, err := lru.New[string, []byte](entries)
	if err != nil {
		return nil, err
	}

	thumbDir, err = filex.EnsureDir(thumbDir)
	if err != nil {
		return nil, err
	}
	cacheDir, err = filex.EnsureDir(cacheDir)
	if err != nil {
		return nil, err
	}

	return &TieredCache{mem: mem, thumbDir: thumbDir, cacheDir: cacheDir, metrics: m}, nil
}

func key(id string, size models.Size) string {
	return id + "_" + string(size)
}

func validID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// path maps an entry to its file; thumbnails live in the durable directory.
func (c *TieredCache) path(id string, size models.Size) string {
	if size == models.SizeThumbnail {
		return filepath.Join(c.thumbDir, key(id, size))
	}
	return filepath.Join(c.cacheDir, key(id, size))
}

func (c *TieredCache) SaveThumbnail(id string, data []byte) error {
	return c.SaveImage(id, models.SizeThumbnail, data)
}

func (c *TieredCache) LoadThumbnail(id string) ([]byte, bool) {
	return c.LoadImage(id, models.SizeThumbnail)
}

// SaveImage writes through both tiers.
func (c *TieredCache) SaveImage(id string, size models.Size, data []byte) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(c.path(id, size), data); err != nil {
		return fmt.Errorf("cache %s: %w", key(id, size), err)
	}
	c.mem.Add(key(id, size), data)
	return nil
}

// LoadImage checks memory, then disk; a disk hit is promoted into memory.
// The returned slice must not be modified.
func (c *TieredCache) LoadImage(id string, size models.Size) ([]byte, bool) {
	if validID(id) != nil {
		return nil, false
	}
	k := key(id, size)

	if data, ok := c.mem.Get(k); ok {
		c.metrics.RecordCacheLookup("memory")
		return data, true
	}

	data, err := os.ReadFile(c.path(id, size))
	if err != nil {
		c.metrics.RecordCacheLookup("miss")
		return nil, false
	}
	c.mem.Add(k, data)
	c.metrics.RecordCacheLookup("disk")
	return data, true
}

// InvalidateCache drops the thumbnail and every size of id from both tiers.
func (c *TieredCache) InvalidateCache(id string) error {
	var errs []error
	for _, size := range models.AllSizes {
		errs = append(errs, c.InvalidateSize(id, size))
	}
	return errors.Join(errs...)
}

// InvalidateSize drops one entry from both tiers.
func (c *TieredCache) InvalidateSize(id string, size models.Size) error {
	if err := validID(id); err != nil {
		return err
	}
	c.mem.Remove(key(id, size))
	if err := filex.RemoveIfExists(c.path(id, size)); err != nil {
		return fmt.Errorf("invalidate %s: %w", key(id, size), err)
	}
	return nil
}

// ClearCache empties memory and the purgeable directory. Thumbnails on disk
// are kept.
func (c *TieredCache) ClearCache() error {
	c.mem.Purge()
	if err := filex.ClearDir(c.cacheDir); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Len is the number of entries in the memory tier.
func (c *TieredCache) Len() int {
	return c.mem.Len()
}
