package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/recallcode-api/internal/config"
	"github.com/phrazzld/recallcode-api/internal/platform/postgres"
)

var errMigrateMemoryBackend = errors.New("migrations require the postgres backend")

// handleMigrations runs one goose command against the configured database
// and closes the connection afterwards.
func handleMigrations(ctx context.Context, cfg *config.Config, command string, log *slog.Logger) error {
	switch command {
	case postgres.MigrateUp, postgres.MigrateDown, postgres.MigrateStatus, postgres.MigrateVersion:
	default:
		return fmt.Errorf("unknown migration command %q", command)
	}
	if cfg.Database.Backend != backendPostgres {
		return errMigrateMemoryBackend
	}

	db, err := openDatabase(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Error("failed to close database", slog.String("error", cerr.Error()))
		}
	}()

	log.Info("executing migrations", slog.String("command", command))
	if err := postgres.Migrate(ctx, db, command, log); err != nil {
		return fmt.Errorf("migration %s failed: %w", command, err)
	}
	return nil
}
