package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/client/gateway"
	"github.com/dmitrijs2005/imagesync/internal/client/metrics"
	"github.com/dmitrijs2005/imagesync/internal/client/models"
	"github.com/dmitrijs2005/imagesync/internal/common"
	"github.com/dmitrijs2005/imagesync/internal/filex"
)

// DeletionService removes assets locally and remotely, queueing remote
// deletes while offline.
type DeletionService struct {
	d Deps
}

func NewDeletionService(d Deps) *DeletionService {
	d = d.withDefaults()
	d.Log = d.Log.With("component", "deletion")
	return &DeletionService{d: d}
}

// DeleteImage deletes asset. Assets that were never uploaded are removed
// without touching the network. While offline the asset is queued as
// pending_deletion and ErrOffline is returned.
func (s *DeletionService) DeleteImage(ctx context.Context, asset *models.ImageAsset) error {
	unlock := s.d.Locks.Lock(asset.ID)
	defer unlock()

	current, err := s.d.Assets.FindByID(ctx, asset.ID)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load asset[%s]: %w", asset.ID, err)
	}
	return s.delete(ctx, current)
}

// delete runs one deletion attempt. The caller holds the asset lock.
func (s *DeletionService) delete(ctx context.Context, current *models.ImageAsset) error {
	if current.RemoteImageID == nil {
		if err := s.removeLocal(ctx, current); err != nil {
			return err
		}
		s.d.Metrics.RecordDeletion(metrics.OutcomeLocal)
		s.d.Log.Info(ctx, "local asset deleted", "asset_id", current.ID)
		return nil
	}

	if s.d.Network == nil || !s.d.Network.IsConnected() {
		if current.DeletionStatus == models.DeletionFailed {
			// Terminal; only an explicit delete while online retries it.
			s.d.Log.Info(ctx, "failed deletion left for manual retry", "asset_id", current.ID)
			return ErrOffline
		}
		if _, err := s.d.Assets.Update(ctx, current.ID, func(a *models.ImageAsset) error {
			a.DeletionStatus = models.DeletionPendingDeletion
			return nil
		}); err != nil {
			return fmt.Errorf("failed to queue deletion[%s]: %w", current.ID, err)
		}
		s.d.Metrics.RecordDeletion(metrics.OutcomeOffline)
		s.d.Log.Info(ctx, "deletion queued while offline", "asset_id", current.ID)
		return ErrOffline
	}

	if _, err := s.d.Assets.Update(ctx, current.ID, func(a *models.ImageAsset) error {
		a.DeletionStatus = models.DeletionDeletingRemote
		return nil
	}); err != nil {
		return fmt.Errorf("failed to mark asset deleting[%s]: %w", current.ID, err)
	}

	if err := s.deleteRemote(ctx, *current.RemoteImageID); err != nil {
		return s.fail(ctx, current.ID, err)
	}

	if err := s.removeLocal(ctx, current); err != nil {
		return err
	}
	s.d.Metrics.RecordDeletion(metrics.OutcomeSuccess)
	s.d.Log.Info(ctx, "asset deleted", "asset_id", current.ID, "remote_id", *current.RemoteImageID)
	return nil
}

func (s *DeletionService) deleteRemote(ctx context.Context, remoteID string) error {
	token, err := s.d.Auth.EnsureAuthenticated(ctx)
	if err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}
	err = s.d.Gateway.DeleteImage(ctx, token, remoteID)
	if errors.Is(err, gateway.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete remote image[%s]: %w", remoteID, err)
	}
	return nil
}

func (s *DeletionService) fail(ctx context.Context, id string, cause error) error {
	now := s.d.Now().UTC()
	updated, err := s.d.Assets.Update(ctx, id, func(a *models.ImageAsset) error {
		if a.DeletionRetryCount < models.MaxRetries {
			a.DeletionRetryCount++
		}
		a.DeletionStatus = models.DeletionRemoteFailed
		if a.DeletionRetryCount >= models.MaxRetries {
			a.DeletionStatus = models.DeletionFailed
		}
		a.LastDeletionAttempt = &now
		return nil
	})
	if err != nil {
		return errors.Join(cause, fmt.Errorf("failed to record deletion failure[%s]: %w", id, err))
	}
	s.d.Metrics.RecordDeletion(metrics.OutcomeFailure)
	s.d.Log.Warn(ctx, "remote deletion failed", "asset_id", id,
		"status", updated.DeletionStatus, "retry_count", updated.DeletionRetryCount, "error", cause)
	return cause
}

// removeLocal drops the original, every cached derivative and the record.
// File cleanup is best effort; only the record removal can fail the call.
func (s *DeletionService) removeLocal(ctx context.Context, a *models.ImageAsset) error {
	if a.FilePath != "" && s.d.OriginalsDir != "" {
		if err := filex.RemoveIfExists(filepath.Join(s.d.OriginalsDir, a.FilePath)); err != nil {
			s.d.Log.Warn(ctx, "original not removed", "asset_id", a.ID, "error", err)
		}
	}
	if err := s.d.Cache.InvalidateCache(a.ID); err != nil {
		s.d.Log.Warn(ctx, "cache not invalidated", "asset_id", a.ID, "error", err)
	}
	if a.RemoteImageID != nil {
		if err := s.d.Cache.InvalidateCache(*a.RemoteImageID); err != nil {
			s.d.Log.Warn(ctx, "cache not invalidated", "remote_id", *a.RemoteImageID, "error", err)
		}
	}
	if err := s.d.Assets.Delete(ctx, a.ID); err != nil {
		return fmt.Errorf("failed to delete asset record[%s]: %w", a.ID, err)
	}
	return nil
}

// ProcessQueuedDeletions retries queued deletions whose backoff has
// elapsed. It does nothing while offline.
func (s *DeletionService) ProcessQueuedDeletions(ctx context.Context) error {
	if s.d.Network == nil || !s.d.Network.IsConnected() {
		return nil
	}

	now := s.d.Now()
	list, err := s.d.Assets.FindAll(ctx, func(a *models.ImageAsset) bool { return deletionDue(now, a) })
	if err != nil {
		return fmt.Errorf("failed to list queued deletions: %w", err)
	}

	for _, a := range list {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.retry(ctx, a.ID); err != nil {
			s.d.Log.Warn(ctx, "queued deletion failed", "asset_id", a.ID, "error", err)
		}
	}
	return nil
}

// retry reloads the asset under its lock so two scans never attempt it
// back to back.
func (s *DeletionService) retry(ctx context.Context, id string) error {
	unlock := s.d.Locks.Lock(id)
	defer unlock()

	current, err := s.d.Assets.FindByID(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load asset[%s]: %w", id, err)
	}
	if !deletionDue(s.d.Now(), current) {
		return nil
	}
	return s.delete(ctx, current)
}

func deletionDue(now time.Time, a *models.ImageAsset) bool {
	return a.DeletionQueued() && dueForRetry(now, a.LastDeletionAttempt, a.DeletionRetryCount)
}
