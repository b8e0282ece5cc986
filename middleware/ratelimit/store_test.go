package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.January, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }

	count, reset, err := store.Peek(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.True(t, reset.IsZero())

	count, reset, err = store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, now.Add(time.Minute), reset)

	now = now.Add(30 * time.Second)
	count, reset, err = store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, now.Add(30*time.Second), reset, "window does not slide")

	count, _, err = store.Peek(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	now = now.Add(31 * time.Second)
	count, _, err = store.Peek(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, count)

	count, _, err = store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.January, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }

	_, _, _ = store.Increment(ctx, "short", time.Second)
	_, _, _ = store.Increment(ctx, "long", time.Hour)

	now = now.Add(time.Minute)
	removed, err := store.Sweep(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Len(t, store.data, 1)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client, "login:ratelimit:")

	count, _, err := store.Peek(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, count)

	for i := 1; i <= 3; i++ {
		count, reset, err := store.Increment(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, count)
		assert.WithinDuration(t, time.Now().Add(time.Minute), reset, 5*time.Second)
	}

	assert.True(t, mr.Exists("login:ratelimit:k"))
	assert.Equal(t, time.Minute, mr.TTL("login:ratelimit:k"))

	count, _, err = store.Peek(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	mr.FastForward(time.Minute + time.Second)

	count, _, err = store.Peek(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, count)

	count, _, err = store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRedisStore_OpensWindowWithExpiry(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client, "")

	count, reset, err := store.Increment(ctx, "fresh", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 30*time.Second, mr.TTL("fresh"))
	assert.WithinDuration(t, time.Now().Add(30*time.Second), reset, 5*time.Second)

	require.NoError(t, mr.Set("running", "2"))
	mr.SetTTL("running", 10*time.Second)

	count, reset, err = store.Increment(ctx, "running", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 10*time.Second, mr.TTL("running"))
	assert.WithinDuration(t, time.Now().Add(10*time.Second), reset, 5*time.Second)
}

func TestRedisStore_RepairsMissingExpiry(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client, "")

	require.NoError(t, mr.Set("k", "4"))

	count, _, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	assert.Equal(t, time.Minute, mr.TTL("k"))
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client, "")
	mr.Close()

	_, _, err := store.Increment(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}
