package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "resources:cache:version"

// Cache is a versioned read-through cache for the catalog. Mutations bump the
// version counter instead of deleting keys, so stale entries simply age out.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a catalog cache. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// FetchJSON serves key from the cache or falls back to loader and stores the
// result. Redis outages degrade to direct loads, never to request failures.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if c == nil || c.client == nil {
		return loadInto(ctx, dest, loader)
	}

	vkey, err := c.versionedKey(ctx, key)
	if err != nil {
		return loadInto(ctx, dest, loader)
	}

	raw, err := c.client.Get(ctx, vkey).Bytes()
	if err == nil {
		return json.Unmarshal(raw, dest)
	}

	value, err := loader(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.client.Set(ctx, vkey, payload, c.ttl)
	return json.Unmarshal(payload, dest)
}

// Bump invalidates every cached catalog view.
func (c *Cache) Bump(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Incr(ctx, cacheVersionKey)
}

func (c *Cache) versionedKey(ctx context.Context, key string) (string, error) {
	version, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", key, version), nil
}

func loadInto(ctx context.Context, dest any, loader func(context.Context) (any, error)) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, dest)
}
