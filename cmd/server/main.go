// Package main runs the recallcode API server. It loads configuration, sets
// up logging, opens the configured store, optionally runs migrations and
// serves HTTP until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/phrazzld/recallcode-api/internal/config"
	"github.com/phrazzld/recallcode-api/internal/platform/logger"
	"github.com/phrazzld/recallcode-api/internal/redact"
)

func main() {
	migrateCmd := flag.String("migrate", "", "run a migration command (up, down, status, version) and exit")
	flag.Parse()

	if err := run(context.Background(), *migrateCmd); err != nil {
		slog.Error("server exited with error", redact.Attr(err))
		os.Exit(1)
	}
}

// run is main without the exit code.
func run(ctx context.Context, migrateCmd string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("backend", cfg.Database.Backend),
		slog.String("catalog_cache", cfg.Catalog.CacheMode),
		slog.Bool("tasks_enabled", cfg.Tasks.Enabled))

	if migrateCmd != "" {
		return handleMigrations(ctx, cfg, migrateCmd, log)
	}

	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	return app.Run(ctx)
}
