package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/client/cache"
	"github.com/dmitrijs2005/imagesync/internal/client/derivatives"
	"github.com/dmitrijs2005/imagesync/internal/client/gateway"
	"github.com/dmitrijs2005/imagesync/internal/client/models"
	"github.com/dmitrijs2005/imagesync/internal/client/repositories/assets"
	"github.com/dmitrijs2005/imagesync/internal/logging"
	"github.com/stretchr/testify/require"
)

var jpegLarge = []byte{0xFF, 0xD8, 0xFF, 0xE0, 'l', 'a', 'r', 'g', 'e'}

type fakeAuth struct {
	err   error
	calls atomic.Int32
}

func (f *fakeAuth) EnsureAuthenticated(context.Context) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return "d1.s1", nil
}

type fakeGateway struct {
	mu sync.Mutex

	nextID       string
	uploadURLErr error
	putErr       error
	deleteErr    error
	downloadErr  error
	downloadData []byte
	deleteDelay  time.Duration

	uploadReqs []gateway.UploadURLRequest
	puts       [][]byte
	putTypes   []string
	deletes    []string
	downloads  []string
}

func (f *fakeGateway) RequestUploadURL(_ context.Context, bearer string, req gateway.UploadURLRequest) (gateway.UploadURLResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadReqs = append(f.uploadReqs, req)
	if f.uploadURLErr != nil {
		return gateway.UploadURLResponse{}, f.uploadURLErr
	}
	id := f.nextID
	if req.ImageID != "" {
		id = req.ImageID
	}
	return gateway.UploadURLResponse{
		ImageID:         id,
		UploadURL:       "https://bucket.example/" + id,
		RequiredHeaders: map[string]string{"Content-Type": req.ContentType},
	}, nil
}

func (f *fakeGateway) UploadBinary(_ context.Context, _ string, data []byte, contentType string, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, data)
	f.putTypes = append(f.putTypes, contentType)
	return f.putErr
}

func (f *fakeGateway) DeleteImage(_ context.Context, _ string, imageID string) error {
	time.Sleep(f.deleteDelay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, imageID)
	return f.deleteErr
}

func (f *fakeGateway) DownloadImage(_ context.Context, _ string, imageID string, _ int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads = append(f.downloads, imageID)
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return f.downloadData, nil
}

func (f *fakeGateway) calls() (uploads, puts, deletes, downloads int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploadReqs), len(f.puts), len(f.deletes), len(f.downloads)
}

type fakeGenerator struct {
	sizes map[models.Size][]byte
}

func (f *fakeGenerator) GenerateSizes(context.Context, derivatives.Source, bool, []byte) map[models.Size][]byte {
	out := make(map[models.Size][]byte, len(f.sizes))
	for k, v := range f.sizes {
		out[k] = v
	}
	return out
}

type fakeNetwork struct{ online atomic.Bool }

func (f *fakeNetwork) IsConnected() bool { return f.online.Load() }

type fakeLoader struct {
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeLoader) Load(context.Context, *models.ImageAsset) (derivatives.Source, []byte, error) {
	f.calls.Add(1)
	time.Sleep(f.delay)
	if f.err != nil {
		return derivatives.Source{}, nil, f.err
	}
	return derivatives.Source{Format: derivatives.FormatJPEG, Scale: 1}, jpegLarge, nil
}

type fixture struct {
	repo    *assets.MemoryRepository
	auth    *fakeAuth
	gw      *fakeGateway
	gen     *fakeGenerator
	cache   *cache.TieredCache
	network *fakeNetwork
	loader  *fakeLoader
	now     time.Time
	deps    Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c, err := cache.New(t.TempDir(), t.TempDir(), 16, nil)
	require.NoError(t, err)

	f := &fixture{
		repo:    assets.NewMemoryRepository(),
		auth:    &fakeAuth{},
		gw:      &fakeGateway{nextID: "r1"},
		gen:     &fakeGenerator{sizes: map[models.Size][]byte{models.SizeThumbnail: []byte("thumb"), models.SizeMedium: []byte("medium"), models.SizeLarge: jpegLarge}},
		cache:   c,
		network: &fakeNetwork{},
		loader:  &fakeLoader{},
		now:     time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	f.deps = Deps{
		Assets:       f.repo,
		Auth:         f.auth,
		Gateway:      f.gw,
		Generator:    f.gen,
		Cache:        f.cache,
		Network:      f.network,
		Loader:       f.loader,
		OriginalsDir: t.TempDir(),
		Log:          logging.Discard(),
		Now:          func() time.Time { return f.now },
	}
	return f
}

func (f *fixture) addAsset(t *testing.T, mutate func(a *models.ImageAsset)) *models.ImageAsset {
	t.Helper()
	a := models.NewImageAsset("a1", "a1.jpg", f.now.Add(-time.Hour))
	if mutate != nil {
		mutate(a)
	}
	require.NoError(t, f.repo.Save(context.Background(), a))
	return a
}

func (f *fixture) load(t *testing.T, id string) *models.ImageAsset {
	t.Helper()
	a, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return a
}

func ptr[T any](v T) *T { return &v }

var errBoom = errors.New("boom")
