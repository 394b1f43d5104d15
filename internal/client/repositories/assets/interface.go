// Package assets persists ImageAsset records.
package assets

import (
	"context"

	"github.com/dmitrijs2005/imagesync/internal/client/models"
)

// Predicate selects assets in FindAll. A nil predicate matches everything.
type Predicate func(a *models.ImageAsset) bool

// Mutator changes an asset in place inside Update.
type Mutator func(a *models.ImageAsset) error

// Repository is the record store of image assets.
type Repository interface {
	// FindByID returns common.ErrNotFound when no record exists.
	FindByID(ctx context.Context, id string) (*models.ImageAsset, error)

	// FindAll returns records matching pred, oldest first.
	FindAll(ctx context.Context, pred Predicate) ([]*models.ImageAsset, error)

	// Save inserts or fully replaces the record.
	Save(ctx context.Context, a *models.ImageAsset) error

	// Update loads the record, applies fn and writes it back atomically.
	// If fn returns an error nothing is written. Returns the stored result.
	Update(ctx context.Context, id string, fn Mutator) (*models.ImageAsset, error)

	// Delete removes the record; deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error
}

// WithUploadStatus matches assets in any of the given upload states.
func WithUploadStatus(statuses ...models.UploadStatus) Predicate {
	return func(a *models.ImageAsset) bool {
		for _, s := range statuses {
			if a.UploadStatus == s {
				return true
			}
		}
		return false
	}
}

// WithDeletionStatus matches assets in any of the given deletion states.
func WithDeletionStatus(statuses ...models.DeletionStatus) Predicate {
	return func(a *models.ImageAsset) bool {
		for _, s := range statuses {
			if a.DeletionStatus == s {
				return true
			}
		}
		return false
	}
}

// Visible matches assets that are not on their way out.
func Visible(a *models.ImageAsset) bool {
	return a.DeletionStatus == models.DeletionNone
}
