// Package models defines the client-side records: image assets, their
// derivative sizes, and the device credential.
package models

import "time"

// UploadStatus tracks an asset through the upload state machine.
type UploadStatus string

const (
	UploadLocalOnly      UploadStatus = "local_only"
	UploadUploading      UploadStatus = "uploading"
	UploadCompleted      UploadStatus = "completed"
	UploadFailed         UploadStatus = "failed"
	UploadRetryScheduled UploadStatus = "retry_scheduled"
)

// DeletionStatus tracks an asset through the deletion state machine.
type DeletionStatus string

const (
	DeletionNone            DeletionStatus = "none"
	DeletionPendingDeletion DeletionStatus = "pending_deletion"
	DeletionDeletingRemote  DeletionStatus = "deleting_remote"
	DeletionRemoteFailed    DeletionStatus = "remote_failed"
	DeletionFailed          DeletionStatus = "failed"
)

// MaxRetries is the attempt count at which an upload or deletion becomes terminal.
const MaxRetries = 3

// ImageAsset is the persisted record of one captured image.
type ImageAsset struct {
	// ID is the local identifier; derivative cache keys use it.
	ID string
	// FilePath is the original file name inside the originals directory.
	FilePath string

	// RemoteImageID is assigned by the backend and never changes once set.
	RemoteImageID *string

	UploadStatus      UploadStatus
	UploadRetryCount  int
	LastUploadAttempt *time.Time
	UploadedAt        *time.Time

	// StoredSizes lists the derivatives persisted so far, local or remote.
	StoredSizes []Size

	DeletionStatus      DeletionStatus
	DeletionRetryCount  int
	LastDeletionAttempt *time.Time

	// OriginalFormat is the detected container format, e.g. "jpeg" or "heic".
	OriginalFormat *string

	CreatedAt time.Time
}

// NewImageAsset returns a fresh local-only record.
func NewImageAsset(id, filePath string, now time.Time) *ImageAsset {
	return &ImageAsset{
		ID:             id,
		FilePath:       filePath,
		UploadStatus:   UploadLocalOnly,
		DeletionStatus: DeletionNone,
		CreatedAt:      now.UTC(),
	}
}

// HasSize reports whether s is already in StoredSizes.
func (a *ImageAsset) HasSize(s Size) bool {
	for _, v := range a.StoredSizes {
		if v == s {
			return true
		}
	}
	return false
}

// AddSize appends s to StoredSizes unless it is already present.
func (a *ImageAsset) AddSize(s Size) {
	if !a.HasSize(s) {
		a.StoredSizes = append(a.StoredSizes, s)
	}
}

// UploadRetryable reports whether a failed upload may still be retried.
func (a *ImageAsset) UploadRetryable() bool {
	return a.UploadStatus == UploadFailed && a.UploadRetryCount < MaxRetries
}

// DeletionQueued reports whether the asset waits in the deletion queue.
func (a *ImageAsset) DeletionQueued() bool {
	return (a.DeletionStatus == DeletionPendingDeletion || a.DeletionStatus == DeletionRemoteFailed) &&
		a.DeletionRetryCount < MaxRetries
}

// Clone returns a deep copy so callers can mutate it without aliasing.
func (a *ImageAsset) Clone() *ImageAsset {
	c := *a
	c.RemoteImageID = clonePtr(a.RemoteImageID)
	c.LastUploadAttempt = clonePtr(a.LastUploadAttempt)
	c.UploadedAt = clonePtr(a.UploadedAt)
	c.LastDeletionAttempt = clonePtr(a.LastDeletionAttempt)
	c.OriginalFormat = clonePtr(a.OriginalFormat)
	if a.StoredSizes != nil {
		c.StoredSizes = append([]Size(nil), a.StoredSizes...)
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
