package embedding

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestCachedEmbedder_memory(t *testing.T) {
	inner := NewMockEmbedder(8)
	e := NewCachedEmbedder(inner, NewEmbeddingCache(10))

	ctx := context.Background()
	first, err := e.Embed(ctx, "text")
	if err != nil {
		t.Fatal(err)
	}
	second, _ := e.Embed(ctx, "text")
	if inner.Calls() != 1 {
		t.Errorf("inner calls = %d, want 1", inner.Calls())
	}
	if first[0] != second[0] {
		t.Error("cached vector differs")
	}
	if e.Dimensions() != 8 {
		t.Errorf("Dimensions = %d", e.Dimensions())
	}
}

func TestCachedEmbedder_ignoresWrongLengthEntries(t *testing.T) {
	inner := NewMockEmbedder(8)
	cache := NewEmbeddingCache(10)
	cache.Set(context.Background(), "text", []float32{1, 2})
	e := NewCachedEmbedder(inner, cache)

	vec, err := e.Embed(context.Background(), "text")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 8 || inner.Calls() != 1 {
		t.Errorf("len %d calls %d", len(vec), inner.Calls())
	}
}

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestRedisCache_sharedBetweenEmbedders(t *testing.T) {
	client, mr := setupRedis(t)
	ctx := context.Background()

	first := NewMockEmbedder(4)
	a := NewCachedEmbedder(first, NewRedisCache(client, "m", time.Hour, nil))
	want, err := a.Embed(ctx, "hello")
	if err != nil {
		t.Fatal(err)
	}

	second := NewMockEmbedder(4)
	b := NewCachedEmbedder(second, NewRedisCache(client, "m", time.Hour, nil))
	got, err := b.Embed(ctx, "hello")
	if err != nil {
		t.Fatal(err)
	}
	if second.Calls() != 0 {
		t.Errorf("expected redis hit, inner called %d times", second.Calls())
	}
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("vector mismatch at %d", i)
		}
	}
	if len(mr.Keys()) != 1 {
		t.Errorf("keys = %v", mr.Keys())
	}

	mr.FastForward(2 * time.Hour)
	if _, ok := NewRedisCache(client, "m", time.Hour, nil).Get(ctx, "hello"); ok {
		t.Error("expected entry to expire")
	}
}

func TestRedisCache_modelNamespaces(t *testing.T) {
	client, _ := setupRedis(t)
	ctx := context.Background()
	NewRedisCache(client, "m1", 0, nil).Set(ctx, "x", []float32{1})
	if _, ok := NewRedisCache(client, "m2", 0, nil).Get(ctx, "x"); ok {
		t.Error("expected miss for other model")
	}
}

func TestRedisCache_backendDownIsMiss(t *testing.T) {
	client, mr := setupRedis(t)
	mr.Close()
	c := NewRedisCache(client, "m", 0, nil)
	c.Set(context.Background(), "x", []float32{1})
	if _, ok := c.Get(context.Background(), "x"); ok {
		t.Error("expected miss")
	}
}
