package catalogcache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "catalog:exists:"

// RedisOptions locates the Redis server.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects to Redis and verifies the connection with a ping.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*goredis.Client, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// RedisCache is a Cache shared between server instances.
type RedisCache struct {
	rdb goredis.Cmdable
	ttl time.Duration
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache stores entries in rdb for ttl.
func NewRedisCache(rdb goredis.Cmdable, ttl time.Duration) *RedisCache {
	if rdb == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func redisKey(problemID int64) string {
	return keyPrefix + strconv.FormatInt(problemID, 10)
}

// Get implements Cache.
func (r *RedisCache) Get(ctx context.Context, problemID int64) (bool, bool, error) {
	v, err := r.rdb.Get(ctx, redisKey(problemID)).Result()
	if errors.Is(err, goredis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("redis get: %w", err)
	}
	return v == "1", true, nil
}

// Set implements Cache.
func (r *RedisCache) Set(ctx context.Context, problemID int64, exists bool) error {
	v := "0"
	if exists {
		v = "1"
	}
	if err := r.rdb.Set(ctx, redisKey(problemID), v, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
