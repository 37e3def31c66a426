// Package cache provides the keyed caches used for derived registry snapshots
//
// Two backends share one contract: an in-process expirable LRU and Redis.
// Redis lets several server processes share one snapshot and observe each
// other's invalidations.
package cache

import (
	"context"
	"time"

	"oaiserver/internal/platform/config"
)

// Cache stores values of T by key
// a miss is (zero, false, nil); errors mean the backend itself failed
type Cache[T any] interface {
	Get(ctx context.Context, key string) (T, bool, error)
	Set(ctx context.Context, key string, v T) error
	Invalidate(ctx context.Context, key string) error
}

// Config selects and tunes a cache backend
type Config struct {
	// Backend is memory or redis
	Backend   string
	RedisURL  string
	TTL       time.Duration
	Size      int
	Namespace string
}

// ConfigFrom reads CACHE_BACKEND, CACHE_REDIS_URL, CACHE_TTL and CACHE_SIZE under cfg's prefix
func ConfigFrom(cfg config.Conf, namespace string) Config {
	return Config{
		Backend:   cfg.MayEnum("CACHE_BACKEND", "memory", "memory", "redis"),
		RedisURL:  cfg.MayString("CACHE_REDIS_URL", ""),
		TTL:       cfg.MayDuration("CACHE_TTL", 5*time.Minute),
		Size:      cfg.MayInt("CACHE_SIZE", 64),
		Namespace: namespace,
	}
}

// Open builds the configured backend
func Open[T any](ctx context.Context, c Config) (Cache[T], error) {
	if c.Backend == "redis" {
		client, err := NewRedisClient(ctx, c.RedisURL)
		if err != nil {
			return nil, err
		}
		return NewRedis[T](client, c.Namespace, c.TTL), nil
	}
	return NewMemory[T](c.Size, c.TTL), nil
}
