package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()
	now := time.Unix(1000, 0)
	l.clock = func() time.Time { return now }

	ok, err := l.Acquire(ctx, "ingest:c", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = l.Acquire(ctx, "ingest:c", time.Minute)
	assert.False(t, ok, "held lock must not be reacquired")

	ok, _ = l.Acquire(ctx, "ingest:other", time.Minute)
	assert.True(t, ok, "locks are per name")

	now = now.Add(2 * time.Minute)
	ok, _ = l.Acquire(ctx, "ingest:c", time.Minute)
	assert.True(t, ok, "expired lock is free")

	require.NoError(t, l.Release(ctx, "ingest:c"))
	ok, _ = l.Acquire(ctx, "ingest:c", 0)
	assert.True(t, ok)
	now = now.Add(24 * time.Hour)
	ok, _ = l.Acquire(ctx, "ingest:c", 0)
	assert.False(t, ok, "ttl 0 never expires")
}

func TestLocal_Extend(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()
	now := time.Unix(1000, 0)
	l.clock = func() time.Time { return now }

	assert.ErrorIs(t, l.Extend(ctx, "k", time.Minute), ErrNotHeld)

	ok, _ := l.Acquire(ctx, "k", time.Minute)
	require.True(t, ok)
	now = now.Add(50 * time.Second)
	require.NoError(t, l.Extend(ctx, "k", time.Minute))

	now = now.Add(50 * time.Second)
	ok, _ = l.Acquire(ctx, "k", time.Minute)
	assert.False(t, ok, "extended lock still held")

	now = now.Add(time.Minute)
	assert.ErrorIs(t, l.Extend(ctx, "k", time.Minute), ErrNotHeld, "expired lock cannot be extended")
}

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestRedis_AcquireRelease(t *testing.T) {
	client, mr := setupRedis(t)
	ctx := context.Background()
	a, b := NewRedis(client), NewRedis(client)
	assert.NotEqual(t, a.OwnerID(), b.OwnerID())

	ok, err := a.Acquire(ctx, "ingest:c", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx, "ingest:c", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// b does not own the lock, so its release leaves it in place.
	require.NoError(t, b.Release(ctx, "ingest:c"))
	assert.True(t, mr.Exists(keyPrefix+"ingest:c"))

	require.NoError(t, a.Release(ctx, "ingest:c"))
	assert.False(t, mr.Exists(keyPrefix+"ingest:c"))

	ok, _ = b.Acquire(ctx, "ingest:c", time.Minute)
	assert.True(t, ok)
}

func TestRedis_TTLAndExtend(t *testing.T) {
	client, mr := setupRedis(t)
	ctx := context.Background()
	a, b := NewRedis(client), NewRedis(client)

	ok, _ := a.Acquire(ctx, "k", time.Minute)
	require.True(t, ok)
	require.NoError(t, a.Extend(ctx, "k", time.Hour))
	assert.True(t, errors.Is(b.Extend(ctx, "k", time.Hour), ErrNotHeld))

	mr.FastForward(30 * time.Minute)
	ok, _ = b.Acquire(ctx, "k", time.Minute)
	assert.False(t, ok, "extended lock still held")

	mr.FastForward(time.Hour)
	ok, _ = b.Acquire(ctx, "k", time.Minute)
	assert.True(t, ok)
}

func TestRedis_unavailable(t *testing.T) {
	client, mr := setupRedis(t)
	mr.Close()
	_, err := NewRedis(client).Acquire(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}
