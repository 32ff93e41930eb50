package core

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*CatalogCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCatalogCache(client, time.Minute), mr
}

func TestCatalogCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	if _, ok := cache.Get(ctx); ok {
		t.Fatalf("expected a miss on empty cache")
	}

	courses := []Course{{ID: "c-1", Title: "Go", Price: 10, AdminID: "a-1"}}
	cache.Set(ctx, courses)

	got, ok := cache.Get(ctx)
	if !ok || len(got) != 1 || got[0].ID != "c-1" || got[0].Title != "Go" {
		t.Fatalf("cache round trip failed: ok=%v got=%v", ok, got)
	}

	cache.Invalidate(ctx)
	if _, ok := cache.Get(ctx); ok {
		t.Fatalf("expected a miss after invalidation")
	}
}

func TestCatalogCacheExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, []Course{{ID: "c-1"}})
	mr.FastForward(2 * time.Minute)

	if _, ok := cache.Get(ctx); ok {
		t.Fatalf("expected a miss after ttl elapsed")
	}
}

func TestCatalogCacheDisabled(t *testing.T) {
	// A nil cache is valid: every operation is a no-op miss.
	var cache *CatalogCache
	ctx := context.Background()
	if _, ok := cache.Get(ctx); ok {
		t.Fatalf("nil cache returned a hit")
	}
	cache.Set(ctx, []Course{{ID: "c-1"}})
	cache.Invalidate(ctx)

	cache = NewCatalogCache(nil, time.Minute)
	if _, ok := cache.Get(ctx); ok {
		t.Fatalf("client-less cache returned a hit")
	}
}
