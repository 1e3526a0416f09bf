package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/recallcode-api/internal/api"
	"github.com/phrazzld/recallcode-api/internal/api/middleware"
	"github.com/phrazzld/recallcode-api/internal/config"
	"github.com/phrazzld/recallcode-api/internal/domain/srs"
	"github.com/phrazzld/recallcode-api/internal/events"
	"github.com/phrazzld/recallcode-api/internal/platform/catalogcache"
	"github.com/phrazzld/recallcode-api/internal/platform/clock"
	"github.com/phrazzld/recallcode-api/internal/service/auth"
	"github.com/phrazzld/recallcode-api/internal/service/plan"
	"github.com/phrazzld/recallcode-api/internal/service/retry"
	"github.com/phrazzld/recallcode-api/internal/service/scheduler"
	"github.com/phrazzld/recallcode-api/internal/service/streak"
	"github.com/phrazzld/recallcode-api/internal/store"
	"github.com/phrazzld/recallcode-api/internal/task"
)

// application holds the wired dependencies of one server process.
type application struct {
	config  *config.Config
	logger  *slog.Logger
	clock   clock.Clock
	handler http.Handler
	plans   *plan.Composer
	tasks   *task.TaskRunner
	closers []func() error
}

// newApplication wires stores, services and the router. On error every
// resource opened so far is released.
func newApplication(ctx context.Context, cfg *config.Config, log *slog.Logger) (*application, error) {
	return newApplicationWithClock(ctx, cfg, log, clock.System())
}

func newApplicationWithClock(
	ctx context.Context,
	cfg *config.Config,
	log *slog.Logger,
	clk clock.Clock,
) (_ *application, err error) {
	app := &application{config: cfg, logger: log, clock: clk}
	defer func() {
		if err != nil {
			app.cleanup()
		}
	}()

	st, err := setupStores(ctx, cfg, app)
	if err != nil {
		return nil, fmt.Errorf("failed to set up stores: %w", err)
	}
	app.closers = append(app.closers, st.close)

	catalog, err := app.setupCatalog(ctx, st.catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to set up catalog cache: %w", err)
	}

	srsService, err := srs.NewServiceWithParams(srs.NewParams(srs.ParamsConfig{
		InitialEaseFactor:   cfg.SRS.InitialEaseFactor,
		MinEaseFactor:       cfg.SRS.MinEaseFactor,
		MaxEaseFactor:       cfg.SRS.MaxEaseFactor,
		RelapseEasePenalty:  cfg.SRS.RelapseEasePenalty,
		RelapseIntervalDays: cfg.SRS.RelapseIntervalDays,
		FirstIntervalDays:   cfg.SRS.FirstIntervalDays,
		SecondIntervalDays:  cfg.SRS.SecondIntervalDays,
		MaxIntervalDays:     cfg.SRS.MaxIntervalDays,
		EaseBase:            cfg.SRS.EaseBase,
		EaseLinear:          cfg.SRS.EaseLinear,
		EaseQuadratic:       cfg.SRS.EaseQuadratic,
	}))
	if err != nil {
		return nil, fmt.Errorf("invalid srs parameters: %w", err)
	}

	emitter := events.NewInMemoryEventEmitter(log)
	sched := scheduler.NewService(st.cards, catalog, srsService, emitter, clk,
		scheduler.Config{MaxDueLimit: cfg.Scheduler.MaxDueLimit}, log)
	app.plans = plan.NewService(st.plans, sched, catalog, st.catalog, clk, plan.Config{
		MaxReviewsPerDay: cfg.Plan.MaxReviewsPerDay,
		MaxNewPerDay:     cfg.Plan.MaxNewPerDay,
		WeakPatterns:     cfg.Plan.WeakPatterns,
		Location:         cfg.Plan.Location(),
	}, log)
	emitter.RegisterHandler(app.plans)

	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
	}
	streaks := streak.NewService(st.streaks, clk, streak.Config{
		Location: cfg.Plan.Location(),
		Retry:    policy,
	}, log)
	emitter.RegisterHandler(streaks)

	validator, err := auth.NewJWTValidator(cfg.Auth, clk)
	if err != nil {
		return nil, fmt.Errorf("failed to set up token validation: %w", err)
	}

	app.handler = api.NewRouter(api.RouterConfig{
		Plans:          api.NewPlanHandler(app.plans, policy, log),
		Reviews:        api.NewReviewHandler(sched, policy, cfg.Scheduler.DefaultDueLimit, log),
		Streaks:        api.NewStreakHandler(streaks, policy, log),
		Auth:           middleware.NewAuthMiddleware(validator),
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         log,
	})

	if cfg.Tasks.Enabled {
		app.tasks = task.NewTaskRunner(st.plans, app.plans, clk,
			task.TaskRunnerConfigFrom(cfg.Tasks, cfg.Retry), log)
	}

	return app, nil
}

// setupCatalog wraps the catalog with the configured existence cache.
func (app *application) setupCatalog(ctx context.Context, base store.ProblemCatalog) (store.ProblemCatalog, error) {
	cfg := app.config
	switch cfg.Catalog.CacheMode {
	case "memory":
		memCache := catalogcache.NewMemoryCache(cfg.Catalog.CacheTTL, cfg.Catalog.CacheSize, app.clock)
		return catalogcache.New(base, memCache, app.logger), nil
	case "redis":
		rdb, err := catalogcache.NewRedisClient(ctx, catalogcache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, rdb.Close)
		return catalogcache.New(base, catalogcache.NewRedisCache(rdb, cfg.Catalog.CacheTTL), app.logger), nil
	default:
		return base, nil
	}
}

// Run starts the plan warm-up tasks and serves HTTP until ctx is canceled
// or the process receives SIGINT or SIGTERM.
func (app *application) Run(ctx context.Context) error {
	if app.tasks != nil {
		app.tasks.Start(ctx)
	}
	return app.startHTTPServer(ctx, app.handler)
}

// cleanup stops background work and releases resources in reverse order
// of acquisition.
func (app *application) cleanup() {
	if app.tasks != nil {
		if err := app.tasks.Stop(); err != nil {
			app.logger.Error("failed to stop task runner", slog.String("error", err.Error()))
		}
		app.tasks = nil
	}
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Error("failed to release resource", slog.String("error", err.Error()))
		}
	}
	app.closers = nil
}
