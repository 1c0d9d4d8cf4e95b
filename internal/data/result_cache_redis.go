package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/target/jobrelay/internal/core"
	"github.com/target/jobrelay/internal/domain/model"
)

// RedisResultCache stores callback results as JSON values through a CacheRepository.
// Results survive restarts and are shared by every replica.
type RedisResultCache struct {
	cache core.CacheRepository
	ttl   time.Duration
}

var _ core.ResultCache = (*RedisResultCache)(nil)

// NewRedisResultCache creates a RedisResultCache. A zero ttl keeps entries until deleted.
func NewRedisResultCache(cache core.CacheRepository, ttl time.Duration) *RedisResultCache {
	return &RedisResultCache{cache: cache, ttl: ttl}
}

// Get returns the cached result for jobID, or nil when none is stored.
func (c *RedisResultCache) Get(ctx context.Context, jobID string) (*model.JobResult, error) {
	if jobID == "" {
		return nil, errEmptyJobID
	}
	raw, err := c.cache.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job result: %w", err)
	}
	if raw == nil {
		return nil, nil
	}

	var r model.JobResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode job result %s: %w", jobID, err)
	}
	return &r, nil
}

// Set writes result for jobID with a single SET, replacing any earlier entry.
func (c *RedisResultCache) Set(ctx context.Context, jobID string, result *model.JobResult) error {
	if jobID == "" {
		return errEmptyJobID
	}
	if result == nil {
		return errors.New("result cannot be nil")
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode job result: %w", err)
	}
	if err := c.cache.Set(ctx, jobID, raw, c.ttl); err != nil {
		return fmt.Errorf("set job result: %w", err)
	}
	return nil
}
