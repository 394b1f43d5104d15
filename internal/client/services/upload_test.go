package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/client/derivatives"
	"github.com/dmitrijs2005/imagesync/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		count int
		want  time.Duration
	}{
		{-1, 60 * time.Second},
		{0, 60 * time.Second},
		{1, 300 * time.Second},
		{2, 900 * time.Second},
		{3, 900 * time.Second},
		{10, 900 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(tt.count), "count %d", tt.count)
	}
}

func TestDueForRetry(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, dueForRetry(now, nil, 2))
	assert.False(t, dueForRetry(now, ptr(now.Add(-59*time.Second)), 0))
	assert.True(t, dueForRetry(now, ptr(now.Add(-60*time.Second)), 0))
	assert.False(t, dueForRetry(now, ptr(now.Add(-100*time.Second)), 1))
	assert.True(t, dueForRetry(now, ptr(now.Add(-901*time.Second)), 2))
}

func TestUploadImage_Success(t *testing.T) {
	f := newFixture(t)
	asset := f.addAsset(t, nil)
	svc := NewUploadService(f.deps)

	err := svc.UploadImage(context.Background(), asset, derivatives.Source{Format: derivatives.FormatJPEG}, jpegLarge)
	require.NoError(t, err)

	stored := f.load(t, "a1")
	assert.Equal(t, models.UploadCompleted, stored.UploadStatus)
	require.NotNil(t, stored.RemoteImageID)
	assert.Equal(t, "r1", *stored.RemoteImageID)
	require.NotNil(t, stored.UploadedAt)
	assert.True(t, stored.UploadedAt.Equal(f.now))
	assert.ElementsMatch(t, models.AllSizes, stored.StoredSizes)
	assert.Equal(t, 0, stored.UploadRetryCount)
	assert.Equal(t, stored, asset, "caller's copy reflects the stored record")

	thumb, ok := f.cache.LoadThumbnail("a1")
	require.True(t, ok)
	assert.Equal(t, []byte("thumb"), thumb)
	medium, ok := f.cache.LoadImage("a1", models.SizeMedium)
	require.True(t, ok)
	assert.Equal(t, []byte("medium"), medium)
	_, ok = f.cache.LoadImage("a1", models.SizeLarge)
	assert.False(t, ok, "large is only stored remotely")

	require.Len(t, f.gw.uploadReqs, 1)
	req := f.gw.uploadReqs[0]
	assert.Equal(t, "image/jpeg", req.ContentType)
	require.NotNil(t, req.SizeBytes)
	assert.Equal(t, int64(len(jpegLarge)), *req.SizeBytes)
	assert.NotEmpty(t, req.Nonce)
	assert.Empty(t, req.ImageID)
	require.Len(t, f.gw.puts, 1)
	assert.Equal(t, jpegLarge, f.gw.puts[0])
}

func TestUploadImage_WithoutLargeCompletesLocally(t *testing.T) {
	f := newFixture(t)
	delete(f.gen.sizes, models.SizeLarge)
	asset := f.addAsset(t, nil)

	require.NoError(t, NewUploadService(f.deps).UploadImage(context.Background(), asset, derivatives.Source{}, nil))

	stored := f.load(t, "a1")
	assert.Equal(t, models.UploadCompleted, stored.UploadStatus)
	assert.Nil(t, stored.RemoteImageID)
	assert.ElementsMatch(t, []models.Size{models.SizeThumbnail, models.SizeMedium}, stored.StoredSizes)
	uploads, _, _, _ := f.gw.calls()
	assert.Zero(t, uploads)
}

func TestUploadImage_FailureCountsAreCapped(t *testing.T) {
	f := newFixture(t)
	f.gw.uploadURLErr = errBoom
	asset := f.addAsset(t, nil)
	svc := NewUploadService(f.deps)

	for i, want := range []int{1, 2, 3, 3} {
		f.now = f.now.Add(time.Minute)
		err := svc.UploadImage(context.Background(), asset, derivatives.Source{}, jpegLarge)
		require.ErrorIs(t, err, errBoom, "attempt %d", i+1)

		stored := f.load(t, "a1")
		assert.Equal(t, models.UploadFailed, stored.UploadStatus)
		assert.Equal(t, want, stored.UploadRetryCount)
		require.NotNil(t, stored.LastUploadAttempt)
		assert.True(t, stored.LastUploadAttempt.Equal(f.now))
	}
	assert.False(t, asset.UploadRetryable())
}

func TestUploadImage_RemoteIDSurvivesFailedPut(t *testing.T) {
	f := newFixture(t)
	f.gw.putErr = errBoom
	asset := f.addAsset(t, nil)
	svc := NewUploadService(f.deps)
	ctx := context.Background()

	require.ErrorIs(t, svc.UploadImage(ctx, asset, derivatives.Source{}, jpegLarge), errBoom)
	stored := f.load(t, "a1")
	require.NotNil(t, stored.RemoteImageID)
	assert.Equal(t, "r1", *stored.RemoteImageID)
	assert.False(t, stored.HasSize(models.SizeLarge))

	f.gw.putErr = nil
	f.gw.nextID = "r2"
	require.NoError(t, svc.UploadImage(ctx, asset, derivatives.Source{}, jpegLarge))

	require.Len(t, f.gw.uploadReqs, 2)
	assert.Equal(t, "r1", f.gw.uploadReqs[1].ImageID, "retry reuses the assigned id")
	assert.NotEqual(t, f.gw.uploadReqs[0].Nonce, f.gw.uploadReqs[1].Nonce)
	stored = f.load(t, "a1")
	assert.Equal(t, "r1", *stored.RemoteImageID)
	assert.Equal(t, models.UploadCompleted, stored.UploadStatus)
	assert.Equal(t, 1, stored.UploadRetryCount)
}

func TestUploadImage_AuthFailureMarksFailed(t *testing.T) {
	f := newFixture(t)
	f.auth.err = errBoom
	asset := f.addAsset(t, nil)

	err := NewUploadService(f.deps).UploadImage(context.Background(), asset, derivatives.Source{}, jpegLarge)
	require.ErrorIs(t, err, errBoom)

	stored := f.load(t, "a1")
	assert.Equal(t, models.UploadFailed, stored.UploadStatus)
	assert.Equal(t, 1, stored.UploadRetryCount)
	assert.True(t, stored.HasSize(models.SizeThumbnail), "local sizes are kept after a failed attempt")
}

func TestRetryFailedUploads_HonoursBackoff(t *testing.T) {
	f := newFixture(t)
	f.addAsset(t, func(a *models.ImageAsset) {
		a.UploadStatus = models.UploadFailed
		a.UploadRetryCount = 1
		a.LastUploadAttempt = ptr(f.now.Add(-100 * time.Second))
	})
	svc := NewUploadService(f.deps)
	ctx := context.Background()

	require.NoError(t, svc.RetryFailedUploads(ctx))
	assert.Zero(t, f.loader.calls.Load(), "backoff of 300s has not elapsed")

	f.now = f.now.Add(201 * time.Second)
	require.NoError(t, svc.RetryFailedUploads(ctx))
	assert.Equal(t, int32(1), f.loader.calls.Load())
	assert.Equal(t, models.UploadCompleted, f.load(t, "a1").UploadStatus)
}

func TestRetryFailedUploads_StopsAfterThreeFailures(t *testing.T) {
	f := newFixture(t)
	f.gw.uploadURLErr = errBoom
	f.addAsset(t, func(a *models.ImageAsset) { a.UploadStatus = models.UploadFailed })
	svc := NewUploadService(f.deps)
	ctx := context.Background()

	for range 4 {
		require.NoError(t, svc.RetryFailedUploads(ctx))
		f.now = f.now.Add(time.Hour)
	}

	uploads, _, _, _ := f.gw.calls()
	assert.Equal(t, 3, uploads, "the fourth scan skips the asset")
	stored := f.load(t, "a1")
	assert.Equal(t, models.UploadFailed, stored.UploadStatus)
	assert.Equal(t, models.MaxRetries, stored.UploadRetryCount)
}

func TestRetryFailedUploads_SkipsAssetsBeingDeleted(t *testing.T) {
	f := newFixture(t)
	f.addAsset(t, func(a *models.ImageAsset) {
		a.UploadStatus = models.UploadFailed
		a.DeletionStatus = models.DeletionPendingDeletion
	})

	require.NoError(t, NewUploadService(f.deps).RetryFailedUploads(context.Background()))
	assert.Zero(t, f.loader.calls.Load())
}

func TestRetryFailedUploads_MissingOriginalCountsAsAttempt(t *testing.T) {
	f := newFixture(t)
	f.loader.err = errBoom
	f.addAsset(t, func(a *models.ImageAsset) { a.UploadStatus = models.UploadFailed })

	require.NoError(t, NewUploadService(f.deps).RetryFailedUploads(context.Background()))

	stored := f.load(t, "a1")
	assert.Equal(t, 1, stored.UploadRetryCount)
	require.NotNil(t, stored.LastUploadAttempt)
	uploads, _, _, _ := f.gw.calls()
	assert.Zero(t, uploads)
}

func TestRetryFailedUploads_OverlappingScansAttemptOnce(t *testing.T) {
	f := newFixture(t)
	f.gw.putErr = errBoom
	f.loader.delay = 100 * time.Millisecond
	f.addAsset(t, func(a *models.ImageAsset) { a.UploadStatus = models.UploadFailed })
	svc := NewUploadService(f.deps)

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.RetryFailedUploads(context.Background()))
		}()
	}
	wg.Wait()

	stored := f.load(t, "a1")
	assert.Equal(t, 1, stored.UploadRetryCount, "the second scan waits out the backoff")
	assert.Equal(t, int32(1), f.loader.calls.Load())
	_, puts, _, _ := f.gw.calls()
	assert.Equal(t, 1, puts)
}

func TestRetry_SkipsAssetQueuedForDeletionAfterListing(t *testing.T) {
	f := newFixture(t)
	f.addAsset(t, func(a *models.ImageAsset) { a.UploadStatus = models.UploadFailed })
	ctx := context.Background()
	_, err := f.repo.Update(ctx, "a1", func(a *models.ImageAsset) error {
		a.DeletionStatus = models.DeletionPendingDeletion
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, NewUploadService(f.deps).retry(ctx, "a1"))

	assert.Zero(t, f.loader.calls.Load())
	stored := f.load(t, "a1")
	assert.Equal(t, models.UploadFailed, stored.UploadStatus)
	assert.Equal(t, 0, stored.UploadRetryCount)
}
