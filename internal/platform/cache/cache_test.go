package cache_test

import (
	"context"
	"testing"
	"time"

	"oaiserver/internal/platform/cache"
	perr "oaiserver/internal/platform/errors"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Specs []string `json:"specs"`
}

func TestMemoryGetSetInvalidate(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemory[snapshot](8, time.Minute)

	_, ok, err := c.Get(ctx, "sets")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "sets", snapshot{Specs: []string{"a"}}))
	got, ok, err := c.Get(ctx, "sets")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, got.Specs)

	require.NoError(t, c.Invalidate(ctx, "sets"))
	_, ok, _ = c.Get(ctx, "sets")
	assert.False(t, ok)
}

func TestMemoryExpires(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemory[int](0, 20*time.Millisecond)
	require.NoError(t, c.Set(ctx, "k", 1))
	assert.Eventually(t, func() bool {
		_, ok, _ := c.Get(ctx, "k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestOpenDefaultsToMemory(t *testing.T) {
	c, err := cache.Open[int](context.Background(), cache.Config{Backend: "memory", Size: 1})
	require.NoError(t, err)
	_, isMem := c.(*cache.Memory[int])
	assert.True(t, isMem)
}

func TestRedisBackendFailureIsUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	c := cache.NewRedis[snapshot](client, "DynamicOAISets::", time.Minute)
	assert.Equal(t, "DynamicOAISets::sets", c.Key("sets"))

	_, ok, err := c.Get(context.Background(), "sets")
	assert.False(t, ok)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeUnavailable), "got %v", err)
	assert.True(t, perr.Retryable(err))
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := cache.NewRedisClient(context.Background(), "not-a-url")
	assert.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument), "got %v", err)
}
