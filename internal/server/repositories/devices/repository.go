// Package devices declares the gateway repository contract for registered
// devices and its Postgres and in-memory implementations.
package devices

import (
	"context"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/server/models"
)

type Repository interface {
	// Create stores a new device. CreatedAt is filled in by the store.
	Create(ctx context.Context, d *models.Device) error

	// Get returns common.ErrNotFound when the device is unknown.
	Get(ctx context.Context, id string) (*models.Device, error)

	// RotateSecret replaces the secret hash and expiry of an existing device.
	RotateSecret(ctx context.Context, id string, salt, hash []byte, expiresAt time.Time) error
}
