package data

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/target/jobrelay/internal/core"
	"github.com/target/jobrelay/internal/domain/model"
)

var errEmptyJobID = errors.New("job id cannot be empty")

// MemoryResultCacheOptions configures a MemoryResultCache.
type MemoryResultCacheOptions struct {
	// Capacity bounds the number of entries; the least recently used entry is evicted first.
	Capacity int
	// TTL bounds how long an entry is served. Zero disables expiry.
	TTL time.Duration
}

// MemoryResultCache keeps callback results in a bounded, expiring in-process LRU.
// Results live only as long as the process.
type MemoryResultCache struct {
	lru *expirable.LRU[string, *model.JobResult]
}

var _ core.ResultCache = (*MemoryResultCache)(nil)

// NewMemoryResultCache creates a MemoryResultCache.
func NewMemoryResultCache(opts MemoryResultCacheOptions) *MemoryResultCache {
	capacity := opts.Capacity
	if capacity < 1 {
		capacity = 1
	}
	return &MemoryResultCache{
		lru: expirable.NewLRU[string, *model.JobResult](capacity, nil, opts.TTL),
	}
}

// Get returns a copy of the cached result, or nil when absent or expired.
func (c *MemoryResultCache) Get(_ context.Context, jobID string) (*model.JobResult, error) {
	if jobID == "" {
		return nil, errEmptyJobID
	}
	r, ok := c.lru.Get(jobID)
	if !ok {
		return nil, nil
	}
	return r.Clone(), nil
}

// Set stores a copy of result, replacing any earlier entry for jobID.
func (c *MemoryResultCache) Set(_ context.Context, jobID string, result *model.JobResult) error {
	if jobID == "" {
		return errEmptyJobID
	}
	if result == nil {
		return errors.New("result cannot be nil")
	}
	c.lru.Add(jobID, result.Clone())
	return nil
}

// Len reports the number of entries currently held.
func (c *MemoryResultCache) Len() int {
	return c.lru.Len()
}
