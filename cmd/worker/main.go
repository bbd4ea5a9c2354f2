// Package main runs the profile deletion worker.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/user-admin-service/internal/bootstrap"
	"github.com/spec-kit/user-admin-service/internal/config"
	"github.com/spec-kit/user-admin-service/internal/dedupe"
	"github.com/spec-kit/user-admin-service/internal/observability"
	"github.com/spec-kit/user-admin-service/internal/profile"
	"github.com/spec-kit/user-admin-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck
	logger = logger.Named("worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	core, err := bootstrap.NewCore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		core.Close(closeCtx)
	}()

	w := worker.NewProfileDeletionWorker(
		profile.NewWatcher(core.Mongo.Profiles(), logger).
			WithResumeStore(dedupe.NewCheckpoint(core.Redis.Client, "")),
		dedupe.New(core.Redis.Client, "", cfg.Worker.DedupeTTL()),
		core.Commands,
		core.Dispatcher,
		logger,
		core.Metrics,
		worker.Config{},
	)

	logger.Info("profile deletion worker started")
	if err := w.Run(ctx); err != nil {
		logger.Error("worker stopped with error", zap.Error(err))
	}
}
