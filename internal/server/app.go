// Package server wires the development gateway: configuration, persistence,
// object storage, services and the REST router, and runs the HTTP server
// until its context is cancelled.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/logging"
	"github.com/dmitrijs2005/imagesync/internal/server/config"
	"github.com/dmitrijs2005/imagesync/internal/server/handlers"
	"github.com/dmitrijs2005/imagesync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/imagesync/internal/server/services"
	"github.com/dmitrijs2005/imagesync/internal/server/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *http.Server
}

// NewApp builds the gateway. An empty DSN keeps devices and images in
// memory; an empty S3 endpoint keeps objects in memory and serves their
// uploads itself.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	var (
		db    *sql.DB
		repos repomanager.RepositoryManager
	)
	if cfg.DatabaseDSN != "" {
		var err error
		db, err = repomanager.OpenPostgres(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		repos = repomanager.NewPostgresRepositoryManager()
		if err := repos.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db migration error: %w", err)
		}
	} else {
		logger.Warn(ctx, "no database configured, state is kept in memory")
		repos = repomanager.NewMemoryRepositoryManager()
	}

	var (
		store   services.ObjectStore
		objects *storage.MemoryStore
	)
	if cfg.S3BaseEndpoint != "" {
		s3, err := storage.NewS3Store(ctx, storage.S3Config{
			User:         cfg.S3User,
			Password:     cfg.S3Password,
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
		if err != nil {
			closeDB(db)
			return nil, fmt.Errorf("object storage init error: %w", err)
		}
		store = s3
	} else {
		logger.Warn(ctx, "no object storage configured, objects are kept in memory", "public_url", cfg.PublicURL)
		objects = storage.NewMemoryStore(cfg.PublicURL)
		store = objects
	}

	var registry *prometheus.Registry
	if cfg.Metrics {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	router := handlers.NewRouter(handlers.Options{
		Devices:  services.NewDeviceService(db, repos, cfg.TokenValidity, logger),
		Images:   services.NewImageService(db, repos, store, cfg.PresignExpiry, logger),
		Objects:  objects,
		Registry: registry,
		Log:      logger,
	})

	return &App{
		config: cfg,
		logger: logger,
		db:     db,
		server: &http.Server{Addr: cfg.ListenAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second},
	}, nil
}

// Handler exposes the router, mainly for tests.
func (app *App) Handler() http.Handler { return app.server.Handler }

// Run serves until ctx is cancelled, then shuts the server down gracefully
// and closes the database.
func (app *App) Run(ctx context.Context) error {
	defer closeDB(app.db)

	app.logger.Info(ctx, "Starting gateway...", "addr", app.config.ListenAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	app.logger.Info(ctx, "gateway stopped")
	return err
}

func closeDB(db *sql.DB) {
	if db != nil {
		_ = db.Close()
	}
}
