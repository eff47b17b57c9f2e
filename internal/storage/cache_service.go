package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CacheService provides high-level caching for computed analysis results
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewCacheService creates a new cache service
func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		redis: redis,
		ttl:   ttl,
	}
}

// CacheKeyType represents different types of cache keys
type CacheKeyType string

const (
	// CacheKeyAnalysis is for current financial snapshots
	CacheKeyAnalysis CacheKeyType = "analysis"
	// CacheKeyTrajectory is for trajectory series
	CacheKeyTrajectory CacheKeyType = "trajectory"
)

// GenerateCacheKey generates a cache key for a given type and parameters.
// Format: <type>:<param1>:<param2>:...
// Parameters are joined verbatim: user ids are case-sensitive, so folding
// them would alias distinct users onto one key.
func (c *CacheService) GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	parts := append([]string{string(keyType)}, params...)
	return strings.Join(parts, ":")
}

// GenerateAnalysisKey generates a cache key for a user's current snapshot
// Format: analysis:<user-id>
func (c *CacheService) GenerateAnalysisKey(userID string) string {
	return c.GenerateCacheKey(CacheKeyAnalysis, userID)
}

// GenerateTrajectoryKey generates a cache key for a trajectory request
// Format: trajectory:<user-id>:<interval>:<start>:<end>
func (c *CacheService) GenerateTrajectoryKey(userID, interval string, start, end time.Time) string {
	return c.GenerateCacheKey(CacheKeyTrajectory, userID, strings.ToLower(interval),
		start.UTC().Format("2006-01-02"), end.UTC().Format("2006-01-02"))
}

// Set stores a value in cache with the configured TTL
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	return c.SetWithTTL(ctx, key, value, c.ttl)
}

// SetWithTTL stores a value in cache with a custom TTL
func (c *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return c.redis.Set(ctx, key, data, ttl)
}

// Get retrieves a value from cache and deserializes it
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		// Key not found is not an error, just a cache miss
		if err.Error() == "redis: nil" {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return true, nil
}

// Invalidate removes one or more keys from cache
func (c *CacheService) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...)
}

// InvalidatePattern removes all keys matching a pattern
// Pattern examples: "analysis:u1", "trajectory:u1:*"
func (c *CacheService) InvalidatePattern(ctx context.Context, pattern string) error {
	keys, err := c.redis.Keys(ctx, pattern)
	if err != nil {
		return fmt.Errorf("failed to find keys matching pattern: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	return c.redis.Del(ctx, keys...)
}

// InvalidateUser invalidates all cached analysis for a user. Called after
// every committed write so cached results never outlive the log they were
// computed from.
func (c *CacheService) InvalidateUser(ctx context.Context, userID string) error {
	if err := c.Invalidate(ctx, c.GenerateAnalysisKey(userID)); err != nil {
		return fmt.Errorf("failed to invalidate analysis cache: %w", err)
	}

	pattern := fmt.Sprintf("trajectory:%s:*", userID)
	if err := c.InvalidatePattern(ctx, pattern); err != nil {
		return fmt.Errorf("failed to invalidate trajectory cache: %w", err)
	}

	return nil
}

// Exists checks if a key exists in cache
func (c *CacheService) Exists(ctx context.Context, key string) (bool, error) {
	return c.redis.Exists(ctx, key)
}

// Refresh updates the TTL on an existing key
func (c *CacheService) Refresh(ctx context.Context, key string) error {
	return c.redis.Expire(ctx, key, c.ttl)
}

// GetTTL returns the configured TTL for this cache service
func (c *CacheService) GetTTL() time.Duration {
	return c.ttl
}
