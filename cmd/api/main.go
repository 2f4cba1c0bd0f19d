package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/markdave123-py/leaselens/internal/app"
	"github.com/markdave123-py/leaselens/internal/config"
	"github.com/markdave123-py/leaselens/internal/logging"
)

func main() {
	// Handle SIGINT/SIGTERM for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	application, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		log.Fatalw("startup failed", "error", err)
	}
	defer application.Close(context.Background())

	log.Infow("LeaseLens is running; DB connected and bootstrapped.", "version", app.Version, "vector_backend", cfg.VectorBackend)
	if err := application.Server.Run(ctx, 30*time.Second); err != nil {
		log.Errorw("server error", "error", err)
		return
	}
	log.Infow("shutting down...")
}
