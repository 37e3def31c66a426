package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	perr "oaiserver/internal/platform/errors"

	"github.com/redis/go-redis/v9"
)

// Redis stores JSON encoded values under namespace+key with a TTL
type Redis[T any] struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
}

var _ Cache[int] = (*Redis[int])(nil)

// NewRedisClient parses url, dials and pings redis
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "redis ping failed")
	}
	return client, nil
}

// NewRedis wraps client; ttl 0 keeps entries until invalidated
func NewRedis[T any](client redis.UniversalClient, namespace string, ttl time.Duration) *Redis[T] {
	return &Redis[T]{client: client, namespace: namespace, ttl: ttl}
}

// Key returns the redis key used for key
func (r *Redis[T]) Key(key string) string { return r.namespace + key }

// Get loads and decodes key; a redis miss is not an error
func (r *Redis[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	data, err := r.client.Get(ctx, r.Key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, false, nil
		}
		return zero, false, perr.Wrap(err, perr.ErrorCodeUnavailable, "cache get")
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		// a stale encoding is treated as a miss so the caller rebuilds it
		return zero, false, nil
	}
	return v, true, nil
}

// Set encodes and stores v
func (r *Redis[T]) Set(ctx context.Context, key string, v T) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "cache encode")
	}
	if err := r.client.Set(ctx, r.Key(key), payload, r.ttl).Err(); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "cache set")
	}
	return nil
}

// Invalidate deletes key
func (r *Redis[T]) Invalidate(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.Key(key)).Err(); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "cache invalidate")
	}
	return nil
}
