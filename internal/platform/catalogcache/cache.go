// Package catalogcache caches problem existence lookups in front of a
// store.ProblemCatalog. The catalog is read-only at runtime, so a cached
// answer only goes stale when the catalog is reseeded.
package catalogcache

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/phrazzld/recallcode-api/internal/domain"
	"github.com/phrazzld/recallcode-api/internal/platform/logger"
	"github.com/phrazzld/recallcode-api/internal/store"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is used when a cache is built with a non-positive TTL.
const DefaultTTL = 10 * time.Minute

// Cache stores existence answers by problem ID.
type Cache interface {
	// Get returns the cached answer and whether one was present.
	Get(ctx context.Context, problemID int64) (exists bool, found bool, err error)

	// Set records the answer for problemID.
	Set(ctx context.Context, problemID int64, exists bool) error
}

// CachedCatalog is a store.ProblemCatalog whose Exists answers are cached.
// Concurrent misses for the same problem share one catalog lookup.
// ListCandidates always reads through.
type CachedCatalog struct {
	next   store.ProblemCatalog
	cache  Cache
	group  singleflight.Group
	logger *slog.Logger
}

var _ store.ProblemCatalog = (*CachedCatalog)(nil)

// New wraps next with cache.
func New(next store.ProblemCatalog, cache Cache, logger *slog.Logger) *CachedCatalog {
	if next == nil {
		panic("catalog cannot be nil")
	}
	if cache == nil {
		panic("cache cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedCatalog{
		next:   next,
		cache:  cache,
		logger: logger.With(slog.String("component", "catalog_cache")),
	}
}

// Exists implements store.ProblemCatalog.Exists. A failing cache is logged
// and bypassed; only catalog failures reach the caller.
func (c *CachedCatalog) Exists(ctx context.Context, problemID int64) (bool, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)

	exists, found, err := c.cache.Get(ctx, problemID)
	if err != nil {
		log.Warn("catalog cache read failed",
			slog.String("error", err.Error()),
			slog.Int64("problem_id", problemID))
	} else if found {
		return exists, nil
	}

	v, err, _ := c.group.Do(strconv.FormatInt(problemID, 10), func() (any, error) {
		exists, err := c.next.Exists(ctx, problemID)
		if err != nil {
			return false, err
		}
		if err := c.cache.Set(ctx, problemID, exists); err != nil {
			log.Warn("catalog cache write failed",
				slog.String("error", err.Error()),
				slog.Int64("problem_id", problemID))
		}
		return exists, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// ListCandidates implements store.ProblemCatalog.ListCandidates
func (c *CachedCatalog) ListCandidates(ctx context.Context, q store.CandidateQuery) ([]domain.Problem, error) {
	return c.next.ListCandidates(ctx, q)
}
