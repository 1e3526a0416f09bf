package main

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/phrazzld/recallcode-api/internal/config"
	"github.com/phrazzld/recallcode-api/internal/platform/memory"
	"github.com/phrazzld/recallcode-api/internal/platform/postgres"
	"github.com/phrazzld/recallcode-api/internal/store"
)

const (
	backendPostgres = "postgres"
	backendMemory   = "memory"
)

// stores is the persistence a backend provides. The catalog is also the
// weak-pattern signal on both backends.
type stores struct {
	cards   store.CardStore
	plans   store.PlanStore
	streaks store.StreakStore
	catalog interface {
		store.ProblemCatalog
		store.PatternSignal
	}
	close func() error
}

// openDatabase opens a pooled Postgres connection. The ping shares the
// query timeout.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*sql.DB, error) {
	db, err := postgres.Open(ctx, cfg.URL, postgres.PoolConfig{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, cfg.QueryTimeout)
	if err != nil {
		return nil, err
	}
	log.Info("database connection established")
	return db, nil
}

// setupStores builds the stores for the configured backend.
func setupStores(ctx context.Context, cfg *config.Config, app *application) (*stores, error) {
	if cfg.Database.Backend == backendMemory {
		db := memory.NewDB(memory.SeedProblems(app.clock.Now()), app.logger)
		app.logger.Warn("using in-memory backend, state is lost on restart")
		return &stores{
			cards:   db.CardStore(),
			plans:   db.PlanStore(),
			streaks: db.StreakStore(),
			catalog: db.Catalog(),
			close:   func() error { return nil },
		}, nil
	}

	db, err := openDatabase(ctx, cfg.Database, app.logger)
	if err != nil {
		return nil, err
	}
	timeout := postgres.WithQueryTimeout(cfg.Database.QueryTimeout)
	return &stores{
		cards:   postgres.NewPostgresCardStore(db, app.logger, timeout),
		plans:   postgres.NewPostgresPlanStore(db, app.logger, timeout),
		streaks: postgres.NewPostgresStreakStore(db, app.logger, timeout),
		catalog: postgres.NewPostgresCatalogStore(db, app.logger, timeout),
		close:   db.Close,
	}, nil
}
