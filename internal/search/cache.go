package search

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/TobiSchelling/newsjacker/internal/logging"
)

// Cache stores serialized provider responses.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedProvider serves repeated queries from a Cache. Cache failures are
// logged and fall through to the wrapped provider.
type CachedProvider struct {
	next  Provider
	cache Cache
	ttl   time.Duration
}

// NewCachedProvider wraps next with cache.
func NewCachedProvider(next Provider, cache Cache, ttl time.Duration) *CachedProvider {
	return &CachedProvider{next: next, cache: cache, ttl: ttl}
}

func (c *CachedProvider) Name() string { return c.next.Name() }

func (c *CachedProvider) Search(ctx context.Context, query string, maxResults int, window time.Duration) ([]RawResult, error) {
	key := cacheKey(c.next.Name(), query, maxResults, window)

	data, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		logging.Warn("search cache read failed", "key", key, "error", err)
	}
	if ok {
		var results []RawResult
		if err := json.Unmarshal(data, &results); err == nil {
			logging.Debug("search cache hit", "provider", c.next.Name(), "query", query)
			return results, nil
		}
	}

	results, err := c.next.Search(ctx, query, maxResults, window)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(results); err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			logging.Warn("search cache write failed", "key", key, "error", err)
		}
	}
	return results, nil
}

func cacheKey(provider, query string, maxResults int, window time.Duration) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(query))))
	return fmt.Sprintf("newsjacker:search:%s:%d:%s:%s", provider, maxResults, window, hex.EncodeToString(sum[:]))
}

// RedisCache is a Cache backed by Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache parses redisURL and verifies connectivity.
func NewRedisCache(ctx context.Context, redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Close closes the Redis connection.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
