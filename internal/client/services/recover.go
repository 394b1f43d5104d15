package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/imagesync/internal/client/models"
	"github.com/dmitrijs2005/imagesync/internal/client/repositories/assets"
	"github.com/dmitrijs2005/imagesync/internal/logging"
)

// Recover resets assets left mid-flight by a previous run: uploading
// becomes failed and deleting_remote becomes pending_deletion. Retry
// counters are left alone. It returns the number of records changed.
func Recover(ctx context.Context, repo assets.Repository, log logging.Logger) (int, error) {
	stuck, err := repo.FindAll(ctx, func(a *models.ImageAsset) bool {
		return a.UploadStatus == models.UploadUploading || a.DeletionStatus == models.DeletionDeletingRemote
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list interrupted assets: %w", err)
	}

	for _, a := range stuck {
		if _, err := repo.Update(ctx, a.ID, func(rec *models.ImageAsset) error {
			if rec.UploadStatus == models.UploadUploading {
				rec.UploadStatus = models.UploadFailed
			}
			if rec.DeletionStatus == models.DeletionDeletingRemote {
				rec.DeletionStatus = models.DeletionPendingDeletion
			}
			return nil
		}); err != nil {
			return 0, fmt.Errorf("failed to recover asset[%s]: %w", a.ID, err)
		}
		log.Info(ctx, "recovered interrupted asset", "asset_id", a.ID)
	}
	return len(stuck), nil
}
