package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/imagesync/internal/client/models"
	"github.com/dmitrijs2005/imagesync/internal/common"
)

// RetrievalService resolves the bytes of an asset at a given size.
type RetrievalService struct {
	d Deps
}

func NewRetrievalService(d Deps) *RetrievalService {
	d = d.withDefaults()
	d.Log = d.Log.With("component", "retrieval")
	return &RetrievalService{d: d}
}

// GetImage returns size of asset. Thumbnail and medium only live locally;
// an asset that was never uploaded falls back to its original file; large
// is served from the cache or downloaded and cached under the remote id.
// common.ErrNotFound means the size is not available.
func (s *RetrievalService) GetImage(ctx context.Context, asset *models.ImageAsset, size models.Size) ([]byte, error) {
	switch size {
	case models.SizeThumbnail:
		if data, ok := s.d.Cache.LoadThumbnail(asset.ID); ok {
			return data, nil
		}
	case models.SizeMedium:
		if data, ok := s.d.Cache.LoadImage(asset.ID, models.SizeMedium); ok {
			return data, nil
		}
	}

	if asset.RemoteImageID == nil {
		return s.original(asset)
	}

	if size != models.SizeLarge {
		return nil, fmt.Errorf("%s of asset[%s]: %w", size, asset.ID, common.ErrNotFound)
	}

	remoteID := *asset.RemoteImageID
	if data, ok := s.d.Cache.LoadImage(remoteID, size); ok {
		return data, nil
	}

	token, err := s.d.Auth.EnsureAuthenticated(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	data, err := s.d.Gateway.DownloadImage(ctx, token, remoteID, size.MaxDimension())
	if err != nil {
		return nil, fmt.Errorf("failed to download image[%s]: %w", remoteID, err)
	}

	if err := s.d.Cache.SaveImage(remoteID, size, data); err != nil {
		s.d.Log.Warn(ctx, "downloaded image not cached", "remote_id", remoteID, "error", err)
	}
	return data, nil
}

func (s *RetrievalService) original(asset *models.ImageAsset) ([]byte, error) {
	if asset.FilePath == "" {
		return nil, fmt.Errorf("original of asset[%s]: %w", asset.ID, common.ErrNotFound)
	}
	data, err := os.ReadFile(filepath.Join(s.d.OriginalsDir, asset.FilePath))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("original of asset[%s]: %w", asset.ID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read original[%s]: %w", asset.ID, err)
	}
	return data, nil
}
