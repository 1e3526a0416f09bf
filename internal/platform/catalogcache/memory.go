package catalogcache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/phrazzld/recallcode-api/internal/platform/clock"
)

// DefaultMaxEntries bounds a MemoryCache built with a non-positive size.
const DefaultMaxEntries = 10000

type entry struct {
	exists    bool
	expiresAt time.Time
}

// MemoryCache is a process-local Cache with per-entry expiry. It holds at
// most maxEntries answers and evicts the least recently used one when full,
// so lookups of arbitrary unknown ids cannot grow it without bound.
// Expired entries are dropped when read.
type MemoryCache struct {
	entries *lru.Cache[int64, entry]
	ttl     time.Duration
	clock   clock.Clock
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache returns a MemoryCache whose entries live for ttl.
func NewMemoryCache(ttl time.Duration, maxEntries int, clk clock.Clock) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if clk == nil {
		clk = clock.System()
	}
	entries, err := lru.New[int64, entry](maxEntries)
	if err != nil {
		// lru.New only fails for a non-positive size.
		panic(err)
	}
	return &MemoryCache{
		entries: entries,
		ttl:     ttl,
		clock:   clk,
	}
}

// Get implements Cache.
func (m *MemoryCache) Get(_ context.Context, problemID int64) (bool, bool, error) {
	e, ok := m.entries.Get(problemID)
	if !ok {
		return false, false, nil
	}
	if !m.clock.Now().Before(e.expiresAt) {
		m.entries.Remove(problemID)
		return false, false, nil
	}
	return e.exists, true, nil
}

// Set implements Cache.
func (m *MemoryCache) Set(_ context.Context, problemID int64, exists bool) error {
	m.entries.Add(problemID, entry{exists: exists, expiresAt: m.clock.Now().Add(m.ttl)})
	return nil
}

// Len reports the number of entries held, including expired ones not yet read.
func (m *MemoryCache) Len() int {
	return m.entries.Len()
}
