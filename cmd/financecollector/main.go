package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"FinanceCollector/internal/app"
	"FinanceCollector/internal/config"
	"FinanceCollector/internal/logging"
)

func main() {
	bootLogger := logging.New("info")
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		bootLogger.Warn("cannot read .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger, closer := logging.FromConfig(cfg.Logging)
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application setup failed", "error", err)
		closer.Close()
		os.Exit(1)
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("application stopped", "error", err)
		application.Close()
		closer.Close()
		os.Exit(1)
	}
}
