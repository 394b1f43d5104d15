// Package derivatives renders the thumbnail, medium and large variants of an
// image. Sizes are generated concurrently; the CPU-heavy resize and encode
// steps share a bounded worker pool.
package derivatives

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/dmitrijs2005/imagesync/internal/client/metrics"
	"github.com/dmitrijs2005/imagesync/internal/client/models"
	"github.com/dmitrijs2005/imagesync/internal/logging"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// LargeHighCompressionQuality is used for large derivatives written as HEIC
// or WebP. ImagingCodec writes neither, so with it those sources become JPEG
// at the default large quality.
const LargeHighCompressionQuality = 0.6

var errNoImage = errors.New("source has no decoded image")

type Generator struct {
	codec   Codec
	workers *semaphore.Weighted
	metrics *metrics.Metrics
	log     logging.Logger
}

// NewGenerator returns a generator whose CPU work is limited to workers
// concurrent renders; workers <= 0 means GOMAXPROCS.
func NewGenerator(codec Codec, workers int, m *metrics.Metrics, log logging.Logger) *Generator {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Generator{
		codec:   codec,
		workers: semaphore.NewWeighted(int64(workers)),
		metrics: m,
		log:     log.With("component", "derivatives"),
	}
}

// GenerateSizes renders every size of src. When original is non-empty it is
// returned verbatim as the large size. Sizes that fail to render are left out
// of the result, so callers must not assume all keys are present.
func (g *Generator) GenerateSizes(ctx context.Context, src Source, preserveFormat bool, original []byte) map[models.Size][]byte {
	var (
		mu     sync.Mutex
		result = make(map[models.Size][]byte, len(models.AllSizes))
		eg     errgroup.Group
	)

	for _, size := range models.AllSizes {
		eg.Go(func() error {
			data, err := g.render(ctx, src, size, preserveFormat, original)
			if err != nil {
				g.log.Warn(ctx, "derivative skipped", "size", size, "error", err)
				return nil
			}
			mu.Lock()
			result[size] = data
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	return result
}

func (g *Generator) render(ctx context.Context, src Source, size models.Size, preserveFormat bool, original []byte) ([]byte, error) {
	if size == models.SizeLarge && len(original) > 0 {
		return original, nil
	}
	if src.Image == nil {
		return nil, errNoImage
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := g.workers.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer g.workers.Release(1)

	start := time.Now()
	data, err := g.encode(src, size, preserveFormat)
	g.metrics.ObserveDerivative(string(size), time.Since(start), err)
	return data, err
}

func (g *Generator) encode(src Source, size models.Size, preserveFormat bool) ([]byte, error) {
	img := ResizeToFit(src.Image, size.MaxDimension())
	format, quality := g.EncodingFor(size, src.Format, preserveFormat)

	data, err := g.codec.Encode(img, format, quality)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", size, err)
	}
	return data, nil
}

// EncodingFor picks the output format and quality of a size. Thumbnail and
// medium are always JPEG. Large keeps the source format when asked and the
// codec can write it.
func (g *Generator) EncodingFor(size models.Size, source Format, preserveFormat bool) (Format, float64) {
	if size != models.SizeLarge {
		return FormatJPEG, size.DefaultQuality()
	}

	format := FormatJPEG
	if preserveFormat && g.codec.CanEncode(source) {
		format = source
	}
	if format.HighCompression() {
		return format, LargeHighCompressionQuality
	}
	return format, size.DefaultQuality()
}

// ResizeToFit scales img so its longer edge is at most maxDim pixels,
// keeping the aspect ratio. Images that already fit are returned unchanged.
func ResizeToFit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}
	if w >= h {
		return imaging.Resize(img, maxDim, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, maxDim, imaging.Lanczos)
}
