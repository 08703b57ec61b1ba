package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/park285/cheese-board/internal/boardbuilder"
	appcfg "github.com/park285/cheese-board/internal/config"
	"github.com/park285/cheese-board/internal/obslog"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := obslog.InitFromEnv()
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	deps, err := boardbuilder.New(cfg, logger)
	if err != nil {
		logger.Fatal("init_failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// pieces load in the background; the page shows a loading screen until then
	deps.Start(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- deps.Server.Listen(cfg.HTTPAddr) }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown_requested")
	case err := <-errCh:
		if err != nil {
			logger.Error("http_server_failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := deps.Close(shutdownCtx); err != nil {
		logger.Warn("shutdown_incomplete", zap.Error(err))
	}
	logger.Info("shutdown_complete")
}
