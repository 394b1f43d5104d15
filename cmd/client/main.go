package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/imagesync/internal/client/app"
	"github.com/dmitrijs2005/imagesync/internal/client/cli"
	"github.com/dmitrijs2005/imagesync/internal/client/config"
	"github.com/dmitrijs2005/imagesync/internal/logging"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	logger := logging.NewTextLogger(cfg.LogLevel)

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}
	defer func() {
		if err := container.Close(); err != nil {
			logger.Error(ctx, "shutdown", "error", err)
		}
	}()

	container.Start(ctx)
	cli.NewApp(container).Run(ctx)

}
