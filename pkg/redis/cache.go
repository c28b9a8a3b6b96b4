package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when a key is not present in the cache
var ErrCacheMiss = errors.New("cache miss")

// Cache is a short-lived JSON cache on top of the shared client. Bid
// statistics are served from it between writes to keep hot asks cheap.
type Cache struct {
	client    *Client
	keyPrefix string
	ttl       time.Duration
}

// NewCache creates a new Cache
func NewCache(client *Client, keyPrefix string, ttl time.Duration) *Cache {
	return &Cache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// Get unmarshals the cached value for key into dest
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	raw, err := c.client.Get(ctx, c.keyPrefix+key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal([]byte(raw), dest)
}

// Set marshals value as JSON and stores it under key with the cache TTL
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.keyPrefix+key, raw, c.ttl)
}

// Invalidate drops the cached value for key
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.keyPrefix+key)
}
