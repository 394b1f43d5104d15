package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/dmitrijs2005/imagesync/internal/common"
	"github.com/dmitrijs2005/imagesync/internal/dbx"
	"github.com/dmitrijs2005/imagesync/internal/logging"
	"github.com/dmitrijs2005/imagesync/internal/server/models"
	"github.com/dmitrijs2005/imagesync/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

// UploadRequest is a device's request for an upload URL. ImageID, when set,
// names an image the device already owns and wants to upload again.
type UploadRequest struct {
	ContentType string
	SizeBytes   *int64
	Nonce       string
	ImageID     string
}

// UploadTicket tells the device where and how to PUT the bytes.
type UploadTicket struct {
	ImageID         string
	UploadURL       string
	ExpiresAt       time.Time
	RequiredHeaders map[string]string
}

// Download is an image body ready to be served.
type Download struct {
	Data        []byte
	ContentType string
}

type ImageService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	store         ObjectStore
	presignExpiry time.Duration
	log           logging.Logger
	now           func() time.Time
}

func NewImageService(db *sql.DB, m repomanager.RepositoryManager, store ObjectStore, presignExpiry time.Duration, log logging.Logger) *ImageService {
	return &ImageService{db: db, repomanager: m, store: store, presignExpiry: presignExpiry, log: log, now: time.Now}
}

// StorageKey is the object key of an image.
func StorageKey(deviceID, imageID string) string {
	return "devices/" + deviceID + "/" + imageID
}

// RequestUpload consumes the request nonce, creates or reuses the image
// record and presigns a PUT for it. A nonce the device already used yields
// common.ErrNonceReused; an ImageID owned by another device yields
// common.ErrNotFound.
func (s *ImageService) RequestUpload(ctx context.Context, deviceID string, req UploadRequest) (*UploadTicket, error) {
	if strings.TrimSpace(req.ContentType) == "" || strings.TrimSpace(req.Nonce) == "" {
		return nil, fmt.Errorf("contentType and nonce are required: %w", common.ErrInvalidArgument)
	}
	if req.SizeBytes != nil && *req.SizeBytes < 0 {
		return nil, fmt.Errorf("negative sizeBytes: %w", common.ErrInvalidArgument)
	}
	imageID := req.ImageID
	if imageID == "" {
		imageID = uuid.NewString()
	} else if _, err := uuid.Parse(imageID); err != nil {
		return nil, fmt.Errorf("malformed imageId: %w", common.ErrInvalidArgument)
	}

	var img *models.Image
	err := withTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Nonces(tx).Add(ctx, deviceID, req.Nonce); err != nil {
			return err
		}

		repo := s.repomanager.Images(tx)
		existing, err := repo.Get(ctx, imageID)
		switch {
		case errors.Is(err, common.ErrNotFound):
			img = &models.Image{
				ID:          imageID,
				DeviceID:    deviceID,
				StorageKey:  StorageKey(deviceID, imageID),
				ContentType: req.ContentType,
				SizeBytes:   req.SizeBytes,
			}
			return repo.Create(ctx, img)
		case err != nil:
			return err
		case existing.DeviceID != deviceID:
			return common.ErrNotFound
		default:
			existing.ContentType, existing.SizeBytes = req.ContentType, req.SizeBytes
			img = existing
			return repo.UpdateUpload(ctx, imageID, req.ContentType, req.SizeBytes)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare upload: %w", err)
	}

	expiresAt := s.now().Add(s.presignExpiry)
	url, err := s.store.PresignPut(ctx, img.StorageKey, img.ContentType, s.presignExpiry)
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "upload url issued", "device_id", deviceID, "image_id", img.ID)
	return &UploadTicket{
		ImageID:         img.ID,
		UploadURL:       url,
		ExpiresAt:       expiresAt,
		RequiredHeaders: map[string]string{"Content-Type": img.ContentType},
	}, nil
}

// Open returns the bytes of an image the device owns. A positive width
// smaller than the stored image's width downscales it, keeping the aspect
// ratio.
func (s *ImageService) Open(ctx context.Context, deviceID, imageID string, width int) (*Download, error) {
	img, err := s.owned(ctx, deviceID, imageID)
	if err != nil {
		return nil, err
	}

	data, err := s.store.Get(ctx, img.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read image[%s]: %w", imageID, err)
	}

	dl := &Download{Data: data, ContentType: img.ContentType}
	if width <= 0 {
		return dl, nil
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		s.log.Debug(ctx, "serving undecodable image unscaled", "image_id", imageID, "error", err)
		return dl, nil
	}
	if src.Bounds().Dx() <= width {
		return dl, nil
	}

	format, contentType := encodeFormat(img.ContentType)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resize(src, width), format, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("failed to encode image[%s]: %w", imageID, err)
	}
	return &Download{Data: buf.Bytes(), ContentType: contentType}, nil
}

// Delete removes the stored object and the record of an owned image.
func (s *ImageService) Delete(ctx context.Context, deviceID, imageID string) error {
	img, err := s.owned(ctx, deviceID, imageID)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, img.StorageKey); err != nil && !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("failed to delete object[%s]: %w", imageID, err)
	}
	if err := s.repomanager.Images(handle(s.db)).Delete(ctx, imageID); err != nil {
		return fmt.Errorf("failed to delete image[%s]: %w", imageID, err)
	}

	s.log.Info(ctx, "image deleted", "device_id", deviceID, "image_id", imageID)
	return nil
}

// owned loads an image record, hiding records of other devices behind
// common.ErrNotFound.
func (s *ImageService) owned(ctx context.Context, deviceID, imageID string) (*models.Image, error) {
	img, err := s.repomanager.Images(handle(s.db)).Get(ctx, imageID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load image[%s]: %w", imageID, err)
	}
	if img.DeviceID != deviceID {
		return nil, common.ErrNotFound
	}
	return img, nil
}

func resize(src image.Image, width int) image.Image {
	return imaging.Resize(src, width, 0, imaging.Lanczos)
}

// encodeFormat picks the output encoding for a downscaled image. Formats
// imaging cannot write fall back to JPEG.
func encodeFormat(contentType string) (imaging.Format, string) {
	switch strings.ToLower(contentType) {
	case "image/png":
		return imaging.PNG, "image/png"
	case "image/gif":
		return imaging.GIF, "image/gif"
	case "image/tiff":
		return imaging.TIFF, "image/tiff"
	case "image/bmp":
		return imaging.BMP, "image/bmp"
	default:
		return imaging.JPEG, "image/jpeg"
	}
}
