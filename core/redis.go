package core

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const catalogCacheKey = "course_catalog"

// NewRedisClient returns a configured go-redis client from URL (e.g.,
// redis://localhost:6379/0).
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("empty redis url")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}

// CatalogCache keeps the public course list in Redis for a short TTL so
// the landing page does not hit postgres on every load. A nil receiver or
// nil client is a no-op, so the API runs fine without Redis.
type CatalogCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCatalogCache(client *redis.Client, ttl time.Duration) *CatalogCache {
	return &CatalogCache{client: client, ttl: ttl}
}

// Get returns the cached catalog and whether it was present. Cache errors
// are logged and treated as misses.
func (c *CatalogCache) Get(ctx context.Context) ([]Course, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, catalogCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("catalog cache get: %v", err)
		}
		return nil, false
	}
	var courses []Course
	if err := json.Unmarshal(raw, &courses); err != nil {
		log.Printf("catalog cache decode: %v", err)
		return nil, false
	}
	return courses, true
}

func (c *CatalogCache) Set(ctx context.Context, courses []Course) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(courses)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, catalogCacheKey, raw, c.ttl).Err(); err != nil {
		log.Printf("catalog cache set: %v", err)
	}
}

// Invalidate drops the cached catalog after any course write.
func (c *CatalogCache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, catalogCacheKey).Err(); err != nil {
		log.Printf("catalog cache invalidate: %v", err)
	}
}
