// Package images declares the gateway repository contract for image records
// and its Postgres and in-memory implementations.
package images

import (
	"context"

	"github.com/dmitrijs2005/imagesync/internal/server/models"
)

type Repository interface {
	// Create stores a new image record. CreatedAt is filled in by the store.
	Create(ctx context.Context, img *models.Image) error

	// Get returns common.ErrNotFound when the image is unknown.
	Get(ctx context.Context, id string) (*models.Image, error)

	// UpdateUpload records the content type and size of a repeated upload.
	UpdateUpload(ctx context.Context, id, contentType string, sizeBytes *int64) error

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error
}
