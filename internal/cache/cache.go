// Package cache provides a TTL cache for generated results.
// Supports both local (in-memory) and Redis backends for multi-instance deployments.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ascendfit/config"
)

// Clock returns the current time. Tests inject a fake one.
type Clock func() time.Time

// Entry is a cached value with the time it was stored
type Entry struct {
	Value      json.RawMessage `json:"value"`
	InsertedAt time.Time       `json:"inserted_at"`
}

// expired reports whether e is older than ttl at now. A zero ttl never expires.
func (e Entry) expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(e.InsertedAt) >= ttl
}

// Cache defines the interface for result cache storage.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the value stored under key.
	// Returns nil, false, nil when the key is absent or expired.
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)

	// Set stores value under key, stamped with the current clock time.
	Set(ctx context.Context, key string, value json.RawMessage) error

	// Close releases any resources held by the cache.
	Close() error
}

// New builds the cache selected by cfg. Type "none" returns a nil Cache.
func New(cfg config.CacheConfig) (Cache, error) {
	switch cfg.Type {
	case "none":
		return nil, nil
	case "", "local":
		return NewLocalCache(cfg.TTL, nil), nil
	case "redis":
		return NewRedisCache(RedisConfig{URL: cfg.Redis.URL, Prefix: cfg.Redis.Prefix, TTL: cfg.TTL})
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}
