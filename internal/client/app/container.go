// Package app wires the client components together and runs the background
// loops that drive queued deletions and failed uploads.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/client/auth"
	"github.com/dmitrijs2005/imagesync/internal/client/cache"
	"github.com/dmitrijs2005/imagesync/internal/client/config"
	"github.com/dmitrijs2005/imagesync/internal/client/connectivity"
	"github.com/dmitrijs2005/imagesync/internal/client/credentials"
	"github.com/dmitrijs2005/imagesync/internal/client/derivatives"
	"github.com/dmitrijs2005/imagesync/internal/client/gateway"
	"github.com/dmitrijs2005/imagesync/internal/client/metrics"
	"github.com/dmitrijs2005/imagesync/internal/client/repositories/assets"
	"github.com/dmitrijs2005/imagesync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/imagesync/internal/client/services"
	"github.com/dmitrijs2005/imagesync/internal/client/storage"
	"github.com/dmitrijs2005/imagesync/internal/filex"
	"github.com/dmitrijs2005/imagesync/internal/lockx"
	"github.com/dmitrijs2005/imagesync/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
)

// KeyLastRetryScan is the metadata key holding the time of the last scan.
const KeyLastRetryScan = "last_retry_scan"

const fallbackInterval = time.Minute

// Container owns every client component. It is built once at startup and
// passed explicitly to the CLI.
type Container struct {
	Config   *config.Config
	Log      logging.Logger
	DB       *sql.DB
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Gateway     *gateway.Client
	Credentials credentials.Store
	Auth        *auth.Manager
	Metadata    metadata.Repository
	Assets      assets.Repository
	Cache       *cache.TieredCache
	Generator   *derivatives.Generator
	Monitor     *connectivity.Monitor
	Loader      services.SourceLoader

	Uploads   *services.UploadService
	Deletions *services.DeletionService
	Retrieval *services.RetrievalService
	Library   *services.Library

	kick   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewContainer creates the directories, opens and migrates the database and
// builds every component from cfg.
func NewContainer(ctx context.Context, cfg *config.Config, log logging.Logger) (*Container, error) {
	if _, err := filex.EnsureDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	originals, err := filex.EnsureDir(cfg.OriginalsDir())
	if err != nil {
		return nil, fmt.Errorf("failed to create originals dir: %w", err)
	}
	dbPath := cfg.DatabasePath()
	if _, err := filex.EnsureDir(filepath.Dir(dbPath)); err != nil {
		return nil, fmt.Errorf("failed to create database dir: %w", err)
	}

	db, err := storage.InitDatabase(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise database: %w", err)
	}

	c, err := build(cfg, log, db, originals)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func build(cfg *config.Config, log logging.Logger, db *sql.DB, originals string) (*Container, error) {
	reg := prometheus.NewRegistry()
	m := metrics.MustNew(reg)

	gw, err := gateway.New(cfg.GatewayURL, cfg.RequestTimeout, cfg.UploadTimeout, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway client: %w", err)
	}

	tc, err := cache.New(cfg.ThumbnailsDir(), cfg.CacheDir, cfg.MemoryCacheEntries, m)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	interval := cfg.OnlineCheckInterval
	if interval <= 0 {
		interval = fallbackInterval
	}

	codec := derivatives.ImagingCodec{}
	c := &Container{
		Config:      cfg,
		Log:         log,
		DB:          db,
		Registry:    reg,
		Metrics:     m,
		Gateway:     gw,
		Credentials: credentials.NewSQLiteStore(db),
		Metadata:    metadata.NewSQLiteRepository(db),
		Assets:      assets.NewSQLiteRepository(db),
		Cache:       tc,
		Generator:   derivatives.NewGenerator(codec, cfg.DerivativeWorkers, m, log),
		Monitor:     connectivity.NewMonitor(gw, interval, log),
		Loader:      services.FileSourceLoader{Dir: originals, Codec: codec, Log: log},
		kick:        make(chan struct{}, 1),
	}
	c.Auth = auth.NewManager(gw, c.Credentials, log)

	deps := services.Deps{
		Assets:       c.Assets,
		Auth:         c.Auth,
		Gateway:      gw,
		Generator:    c.Generator,
		Cache:        tc,
		Network:      c.Monitor,
		Loader:       c.Loader,
		Locks:        lockx.NewKeyedMutex(),
		OriginalsDir: originals,
		Metrics:      m,
		Log:          log,
	}
	c.Uploads = services.NewUploadService(deps)
	c.Deletions = services.NewDeletionService(deps)
	c.Retrieval = services.NewRetrievalService(deps)
	c.Library = services.NewLibrary(deps, codec, c.Uploads)

	return c, nil
}

// Start recovers interrupted work and launches the connectivity monitor, the
// retry loop and, when configured, the metrics listener.
func (c *Container) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	if n, err := services.Recover(ctx, c.Assets, c.Log); err != nil {
		c.Log.Error(ctx, "recovery failed", "error", err)
	} else if n > 0 {
		c.Log.Info(ctx, "recovered interrupted assets", "count", n)
	}

	c.Monitor.StartMonitoring(func(online bool) {
		if online {
			c.Kick()
		}
	})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.retryLoop(ctx)
	}()

	if addr := c.Config.MetricsAddr; addr != "" {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := metrics.Serve(ctx, addr, c.Registry); err != nil {
				c.Log.Error(ctx, "metrics listener stopped", "addr", addr, "error", err)
			}
		}()
	}
}

// Kick schedules an immediate retry scan without blocking.
func (c *Container) Kick() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

func (c *Container) retryLoop(ctx context.Context) {
	interval := c.Config.RetryInterval
	if interval <= 0 {
		interval = fallbackInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-c.kick:
		case <-ctx.Done():
			return
		}
		c.RunScans(ctx)
	}
}

// RunScans processes queued deletions and, while online, retries failed
// uploads. Offline upload attempts are skipped so they do not consume the
// retry budget.
func (c *Container) RunScans(ctx context.Context) {
	if err := c.Deletions.ProcessQueuedDeletions(ctx); err != nil {
		c.Log.Warn(ctx, "deletion scan failed", "error", err)
	}
	if c.Monitor.IsConnected() {
		if err := c.Uploads.RetryFailedUploads(ctx); err != nil {
			c.Log.Warn(ctx, "upload scan failed", "error", err)
		}
	}
	stamp := time.Now().UTC().Format(time.RFC3339)
	if err := c.Metadata.Set(ctx, KeyLastRetryScan, []byte(stamp)); err != nil {
		c.Log.Warn(ctx, "scan time not recorded", "error", err)
	}
}

// LastRetryScan returns the time of the last completed scan, zero if none.
func (c *Container) LastRetryScan(ctx context.Context) (time.Time, error) {
	v, err := c.Metadata.Get(ctx, KeyLastRetryScan)
	if err != nil || v == nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, string(v))
}

// Close stops the background loops and closes the database.
func (c *Container) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.Monitor.StopMonitoring()
	c.wg.Wait()

	var errs []error
	if c.DB != nil {
		errs = append(errs, c.DB.Close())
	}
	return errors.Join(errs...)
}
