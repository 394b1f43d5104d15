package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/client/derivatives"
	"github.com/dmitrijs2005/imagesync/internal/client/gateway"
	"github.com/dmitrijs2005/imagesync/internal/client/models"
	"github.com/dmitrijs2005/imagesync/internal/client/repositories/assets"
	"github.com/dmitrijs2005/imagesync/internal/common"
	"github.com/google/uuid"
)

// UploadService stores the local derivatives of an asset and pushes the
// large size to object storage.
type UploadService struct {
	d Deps
}

func NewUploadService(d Deps) *UploadService {
	d = d.withDefaults()
	d.Log = d.Log.With("component", "upload")
	return &UploadService{d: d}
}

// UploadImage runs one upload attempt for asset. original holds the bytes
// of the imported file; it is sent unchanged as the large size. On return
// asset reflects the stored record.
func (s *UploadService) UploadImage(ctx context.Context, asset *models.ImageAsset, src derivatives.Source, original []byte) error {
	unlock := s.d.Locks.Lock(asset.ID)
	defer unlock()

	return s.finish(ctx, asset, s.upload(ctx, asset.ID, src, original))
}

// finish records the outcome of an attempt. The caller holds the asset lock.
func (s *UploadService) finish(ctx context.Context, asset *models.ImageAsset, err error) error {
	s.d.Metrics.RecordUpload(err)
	if err == nil {
		return s.refresh(ctx, asset)
	}

	now := s.d.Now().UTC()
	updated, uerr := s.d.Assets.Update(ctx, asset.ID, func(a *models.ImageAsset) error {
		a.UploadStatus = models.UploadFailed
		if a.UploadRetryCount < models.MaxRetries {
			a.UploadRetryCount++
		}
		a.LastUploadAttempt = &now
		return nil
	})
	if uerr != nil {
		return errors.Join(err, fmt.Errorf("failed to record upload failure[%s]: %w", asset.ID, uerr))
	}
	*asset = *updated

	s.d.Log.Warn(ctx, "upload failed", "asset_id", asset.ID, "retry_count", updated.UploadRetryCount, "error", err)
	return err
}

func (s *UploadService) refresh(ctx context.Context, asset *models.ImageAsset) error {
	stored, err := s.d.Assets.FindByID(ctx, asset.ID)
	if err != nil {
		return fmt.Errorf("failed to reload asset[%s]: %w", asset.ID, err)
	}
	*asset = *stored
	return nil
}

func (s *UploadService) setSize(ctx context.Context, id string, size models.Size) error {
	_, err := s.d.Assets.Update(ctx, id, func(a *models.ImageAsset) error {
		a.AddSize(size)
		return nil
	})
	return err
}

func (s *UploadService) upload(ctx context.Context, id string, src derivatives.Source, original []byte) error {
	current, err := s.d.Assets.Update(ctx, id, func(a *models.ImageAsset) error {
		a.UploadStatus = models.UploadUploading
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to mark asset uploading[%s]: %w", id, err)
	}
	s.d.Log.Info(ctx, "upload started", "asset_id", id, "attempt", current.UploadRetryCount+1)

	sizes := s.d.Generator.GenerateSizes(ctx, src, true, original)

	if data, ok := sizes[models.SizeThumbnail]; ok {
		if err := s.d.Cache.SaveThumbnail(id, data); err != nil {
			s.d.Log.Warn(ctx, "thumbnail not saved", "asset_id", id, "error", err)
		} else if err := s.setSize(ctx, id, models.SizeThumbnail); err != nil {
			return fmt.Errorf("failed to record thumbnail[%s]: %w", id, err)
		}
	}

	if data, ok := sizes[models.SizeMedium]; ok {
		if err := s.d.Cache.SaveImage(id, models.SizeMedium, data); err != nil {
			s.d.Log.Warn(ctx, "medium size not saved", "asset_id", id, "error", err)
		} else if err := s.setSize(ctx, id, models.SizeMedium); err != nil {
			return fmt.Errorf("failed to record medium size[%s]: %w", id, err)
		}
	}

	if data, ok := sizes[models.SizeLarge]; ok {
		if err := s.uploadLarge(ctx, current, data); err != nil {
			return err
		}
		if err := s.setSize(ctx, id, models.SizeLarge); err != nil {
			return fmt.Errorf("failed to record large size[%s]: %w", id, err)
		}
	}

	now := s.d.Now().UTC()
	done, err := s.d.Assets.Update(ctx, id, func(a *models.ImageAsset) error {
		a.UploadStatus = models.UploadCompleted
		a.UploadedAt = &now
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to mark asset completed[%s]: %w", id, err)
	}
	s.d.Log.Info(ctx, "upload completed", "asset_id", id, "remote_id", deref(done.RemoteImageID), "sizes", models.JoinSizes(done.StoredSizes))
	return nil
}

func (s *UploadService) uploadLarge(ctx context.Context, a *models.ImageAsset, data []byte) error {
	token, err := s.d.Auth.EnsureAuthenticated(ctx)
	if err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}

	contentType := derivatives.DetectFormat(data).MimeType()
	size := int64(len(data))
	req := gateway.UploadURLRequest{
		ContentType: contentType,
		SizeBytes:   &size,
		Nonce:       uuid.NewString(),
	}
	if a.RemoteImageID != nil {
		req.ImageID = *a.RemoteImageID
	}

	resp, err := s.d.Gateway.RequestUploadURL(ctx, token, req)
	if err != nil {
		return fmt.Errorf("failed to request upload url[%s]: %w", a.ID, err)
	}

	if a.RemoteImageID == nil {
		// The id is persisted before the PUT so a retry reuses the same object.
		if _, err := s.d.Assets.Update(ctx, a.ID, func(rec *models.ImageAsset) error {
			if rec.RemoteImageID == nil {
				rec.RemoteImageID = &resp.ImageID
			}
			return nil
		}); err != nil {
			return fmt.Errorf("failed to record remote id[%s]: %w", a.ID, err)
		}
	} else if *a.RemoteImageID != resp.ImageID {
		s.d.Log.Warn(ctx, "backend issued a different image id", "asset_id", a.ID,
			"remote_id", *a.RemoteImageID, "issued_id", resp.ImageID)
	}

	if err := s.d.Gateway.UploadBinary(ctx, resp.UploadURL, data, contentType, resp.RequiredHeaders); err != nil {
		return fmt.Errorf("failed to upload large size[%s]: %w", a.ID, err)
	}
	return nil
}

// RetryFailedUploads retries failed uploads whose backoff has elapsed, one
// at a time. Per-asset failures are logged and do not stop the scan.
func (s *UploadService) RetryFailedUploads(ctx context.Context) error {
	now := s.d.Now()
	list, err := s.d.Assets.FindAll(ctx, func(a *models.ImageAsset) bool {
		return uploadDue(now, a)
	})
	if err != nil {
		return fmt.Errorf("failed to list failed uploads: %w", err)
	}

	for _, a := range list {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.retry(ctx, a.ID); err != nil {
			s.d.Log.Warn(ctx, "upload retry failed", "asset_id", a.ID, "error", err)
		}
	}
	return nil
}

func uploadDue(now time.Time, a *models.ImageAsset) bool {
	return a.UploadRetryable() && assets.Visible(a) &&
		dueForRetry(now, a.LastUploadAttempt, a.UploadRetryCount)
}

// retry reloads the asset under its lock; a scan running alongside may
// already have attempted it or the asset may have been queued for deletion.
func (s *UploadService) retry(ctx context.Context, id string) error {
	if s.d.Loader == nil {
		return errors.New("no source loader configured")
	}
	unlock := s.d.Locks.Lock(id)
	defer unlock()

	a, err := s.d.Assets.FindByID(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to reload asset[%s]: %w", id, err)
	}
	if !uploadDue(s.d.Now(), a) {
		return nil
	}

	src, original, err := s.d.Loader.Load(ctx, a)
	if err != nil {
		// An unreadable original still counts as an attempt.
		return s.finish(ctx, a, fmt.Errorf("failed to load original[%s]: %w", id, err))
	}
	return s.finish(ctx, a, s.upload(ctx, id, src, original))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
