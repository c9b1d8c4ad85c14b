package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is the JSON cache used by the gateway and the warmer. RedisCache
// shares entries across processes; MemoryCache keeps them in-process.
type Cache interface {
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSONCompressed(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetJSONCompressed(ctx context.Context, key string, dest interface{}) (bool, error)
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) error
}

type MemoryCache struct {
	items  *gocache.Cache
	logger *slog.Logger
}

func NewMemoryCache(defaultTTL time.Duration, logger *slog.Logger) *MemoryCache {
	return &MemoryCache{
		items:  gocache.New(defaultTTL, 2*defaultTTL),
		logger: logger.With("component", "memory_cache"),
	}
}

func (c *MemoryCache) SetJSON(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	c.items.Set(key, data, ttl)
	c.logger.Debug("cache set", "key", key, "size_bytes", len(data), "ttl", ttl)
	return nil
}

func (c *MemoryCache) GetJSON(_ context.Context, key string, dest interface{}) (bool, error) {
	v, ok := c.items.Get(key)
	if !ok {
		c.logger.Debug("cache miss", "key", key)
		return false, nil
	}
	if err := json.Unmarshal(v.([]byte), dest); err != nil {
		return false, fmt.Errorf("json unmarshal: %w", err)
	}
	return true, nil
}

// In-process entries are not compressed.
func (c *MemoryCache) SetJSONCompressed(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.SetJSON(ctx, key, value, ttl)
}

func (c *MemoryCache) GetJSONCompressed(ctx context.Context, key string, dest interface{}) (bool, error) {
	return c.GetJSON(ctx, key, dest)
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.items.Delete(key)
	return nil
}

// DeletePattern removes keys matching a glob pattern, like Redis SCAN MATCH.
func (c *MemoryCache) DeletePattern(_ context.Context, pattern string) error {
	for key := range c.items.Items() {
		if ok, _ := path.Match(pattern, key); ok {
			c.items.Delete(key)
		}
	}
	return nil
}

func (c *MemoryCache) ItemCount() int {
	return c.items.ItemCount()
}
