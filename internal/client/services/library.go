package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/imagesync/internal/client/derivatives"
	"github.com/dmitrijs2005/imagesync/internal/client/models"
	"github.com/dmitrijs2005/imagesync/internal/client/repositories/assets"
	"github.com/dmitrijs2005/imagesync/internal/filex"
	"github.com/dmitrijs2005/imagesync/internal/logging"
	"github.com/google/uuid"
)

// Library imports image files and lists the stored assets.
type Library struct {
	d        Deps
	codec    derivatives.Codec
	uploader *UploadService
}

func NewLibrary(d Deps, codec derivatives.Codec, uploader *UploadService) *Library {
	d = d.withDefaults()
	d.Log = d.Log.With("component", "library")
	return &Library{d: d, codec: codec, uploader: uploader}
}

// Import copies the file at path into the originals directory, records a
// local_only asset and runs the first upload attempt. When the upload fails
// the asset is returned together with the error; it stays in failed for the
// retry scan.
func (l *Library) Import(ctx context.Context, path string) (*models.ImageAsset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	format := derivatives.DetectFormat(data)
	if format == derivatives.FormatUnknown {
		return nil, fmt.Errorf("%s: %w", path, derivatives.ErrUnsupportedFormat)
	}

	id := uuid.NewString()
	name := id + "." + format.Extension()
	if err := filex.WriteFileAtomic(filepath.Join(l.d.OriginalsDir, name), data); err != nil {
		return nil, fmt.Errorf("failed to store original[%s]: %w", id, err)
	}

	asset := models.NewImageAsset(id, name, l.d.Now())
	f := string(format)
	asset.OriginalFormat = &f
	if err := l.d.Assets.Save(ctx, asset); err != nil {
		_ = filex.RemoveIfExists(filepath.Join(l.d.OriginalsDir, name))
		return nil, fmt.Errorf("failed to save asset[%s]: %w", id, err)
	}
	l.d.Log.Info(ctx, "image imported", "asset_id", id, "format", format, "bytes", len(data))

	src := decodeSource(ctx, l.d.Log, l.codec, id, data)
	if err := l.uploader.UploadImage(ctx, asset, src, data); err != nil {
		return asset, err
	}
	return asset, nil
}

// List returns the assets that are not being deleted, oldest first.
func (l *Library) List(ctx context.Context) ([]*models.ImageAsset, error) {
	list, err := l.d.Assets.FindAll(ctx, assets.Visible)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return list, nil
}

// All returns every asset including queued and failed deletions.
func (l *Library) All(ctx context.Context) ([]*models.ImageAsset, error) {
	list, err := l.d.Assets.FindAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return list, nil
}

func (l *Library) Get(ctx context.Context, id string) (*models.ImageAsset, error) {
	a, err := l.d.Assets.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load asset[%s]: %w", id, err)
	}
	return a, nil
}

// decodeSource falls back to a pixel-less source when the codec cannot read
// the format; the generator then only passes the original through as large.
func decodeSource(ctx context.Context, log logging.Logger, codec derivatives.Codec, id string, data []byte) derivatives.Source {
	src, err := derivatives.Decode(codec, data)
	if err != nil {
		log.Warn(ctx, "original not decodable, only the large size will be stored", "asset_id", id, "error", err)
		return derivatives.Source{Format: derivatives.DetectFormat(data), Scale: 1}
	}
	return src
}

// FileSourceLoader reads originals back from the originals directory.
type FileSourceLoader struct {
	Dir   string
	Codec derivatives.Codec
	Log   logging.Logger
}

func (f FileSourceLoader) Load(ctx context.Context, a *models.ImageAsset) (derivatives.Source, []byte, error) {
	data, err := os.ReadFile(filepath.Join(f.Dir, a.FilePath))
	if err != nil {
		return derivatives.Source{}, nil, err
	}
	log := f.Log
	if log == nil {
		log = logging.Discard()
	}
	return decodeSource(ctx, log, f.Codec, a.ID, data), data, nil
}
