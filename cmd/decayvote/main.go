package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	apperrors "github.com/notur-urus/consensus-repo/internal/errors"
	"github.com/notur-urus/consensus-repo/internal/platform/config"
	"github.com/notur-urus/consensus-repo/internal/platform/logging"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func main() {
	cfg := setupConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(cfg, os.Stdout)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if logging.Logger == nil {
			logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
		}
		structured := apperrors.AsStructuredError(err)
		slog.Error("Run failed", structured.LogAttrs()...)
		stop()
		os.Exit(structured.ExitCode())
	}
}
