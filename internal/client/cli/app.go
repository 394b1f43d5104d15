package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/client/app"
	"github.com/dmitrijs2005/imagesync/internal/client/derivatives"
	"github.com/dmitrijs2005/imagesync/internal/client/models"
	"github.com/dmitrijs2005/imagesync/internal/client/services"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type library interface {
	Import(ctx context.Context, path string) (*models.ImageAsset, error)
	List(ctx context.Context) ([]*models.ImageAsset, error)
	All(ctx context.Context) ([]*models.ImageAsset, error)
	Get(ctx context.Context, id string) (*models.ImageAsset, error)
}

type deleter interface {
	DeleteImage(ctx context.Context, asset *models.ImageAsset) error
}

type retriever interface {
	GetImage(ctx context.Context, asset *models.ImageAsset, size models.Size) ([]byte, error)
}

type uploader interface {
	UploadImage(ctx context.Context, asset *models.ImageAsset, src derivatives.Source, original []byte) error
}

type identity interface {
	Credential(ctx context.Context) (models.DeviceCredential, error)
	Reset(ctx context.Context) error
}

type network interface {
	IsConnected() bool
}

type cacheClearer interface {
	ClearCache() error
}

// App is the interactive client. Its collaborators come from app.Container;
// tests substitute fakes.
type App struct {
	library  library
	deleter  deleter
	images   retriever
	uploader uploader
	loader   services.SourceLoader
	identity identity
	network  network
	cache    cacheClearer

	runScans func(ctx context.Context)
	lastScan func(ctx context.Context) (time.Time, error)

	out    io.Writer
	reader *bufio.Reader
}

func NewApp(c *app.Container) *App {
	return &App{
		library:  c.Library,
		deleter:  c.Deletions,
		images:   c.Retrieval,
		uploader: c.Uploads,
		loader:   c.Loader,
		identity: c.Auth,
		network:  c.Monitor,
		cache:    c.Cache,
		runScans: c.RunScans,
		lastScan: c.LastRetryScan,
		out:      os.Stdout,
		reader:   bufio.NewReader(os.Stdin),
	}
}

func (a *App) mode() Mode {
	if a.network != nil && a.network.IsConnected() {
		return ModeOnline
	}
	return ModeOffline
}

func (a *App) getStatus() string {
	return "(" + string(a.mode()) + ")"
}

// Run starts the REPL on stdin and blocks until the user exits.
func (a *App) Run(ctx context.Context) {
	printlnFn("Welcome to imagesync (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}
