// Package services drives image assets through their upload and deletion
// state machines. Every mutation of an asset record goes through
// assets.Repository.Update while the per-asset lock is held.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/client/derivatives"
	"github.com/dmitrijs2005/imagesync/internal/client/gateway"
	"github.com/dmitrijs2005/imagesync/internal/client/metrics"
	"github.com/dmitrijs2005/imagesync/internal/client/models"
	"github.com/dmitrijs2005/imagesync/internal/client/repositories/assets"
	"github.com/dmitrijs2005/imagesync/internal/lockx"
	"github.com/dmitrijs2005/imagesync/internal/logging"
)

// ErrOffline is returned when a remote operation is deferred for lack of
// connectivity.
var ErrOffline = errors.New("offline: operation queued")

// Authenticator yields a valid bearer token.
type Authenticator interface {
	EnsureAuthenticated(ctx context.Context) (string, error)
}

// Gateway is the subset of gateway.Client the coordinators use.
type Gateway interface {
	RequestUploadURL(ctx context.Context, bearer string, req gateway.UploadURLRequest) (gateway.UploadURLResponse, error)
	UploadBinary(ctx context.Context, rawURL string, data []byte, contentType string, requiredHeaders map[string]string) error
	DeleteImage(ctx context.Context, bearer, imageID string) error
	DownloadImage(ctx context.Context, bearer, imageID string, width int) ([]byte, error)
}

// Generator renders derivative sizes.
type Generator interface {
	GenerateSizes(ctx context.Context, src derivatives.Source, preserveFormat bool, original []byte) map[models.Size][]byte
}

// Cache stores derivative bytes.
type Cache interface {
	SaveThumbnail(id string, data []byte) error
	LoadThumbnail(id string) ([]byte, bool)
	SaveImage(id string, size models.Size, data []byte) error
	LoadImage(id string, size models.Size) ([]byte, bool)
	InvalidateCache(id string) error
}

// Connectivity reports whether the backend is reachable.
type Connectivity interface {
	IsConnected() bool
}

// SourceLoader reloads the original of an asset for a retried upload.
type SourceLoader interface {
	Load(ctx context.Context, a *models.ImageAsset) (derivatives.Source, []byte, error)
}

// Deps bundles the collaborators shared by the coordinators.
type Deps struct {
	Assets    assets.Repository
	Auth      Authenticator
	Gateway   Gateway
	Generator Generator
	Cache     Cache
	Network   Connectivity
	Loader    SourceLoader
	Locks     *lockx.KeyedMutex
	// OriginalsDir holds the imported original files named by FilePath.
	OriginalsDir string
	Metrics      *metrics.Metrics
	Log          logging.Logger
	Now          func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Locks == nil {
		d.Locks = lockx.NewKeyedMutex()
	}
	if d.Log == nil {
		d.Log = logging.Discard()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}
