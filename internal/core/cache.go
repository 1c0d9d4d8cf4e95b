// Package core defines the ports between the job relay services and their backends.
package core

import (
	"context"
	"time"

	"github.com/target/jobrelay/internal/domain/model"
)

// CacheRepository defines the interface for raw key/value caching operations.
// This follows the hexagonal architecture pattern where the core defines interfaces
// and the data layer provides implementations.
type CacheRepository interface {
	// Set stores a value in the cache with the given key and TTL.
	// If TTL is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value from the cache by key.
	// Returns nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key from the cache.
	// Returns true if the key was deleted, false if it didn't exist.
	Delete(ctx context.Context, key string) (bool, error)

	// SetIfNotExists atomically sets a key only if it doesn't already exist.
	// Returns true if the key was set, false if it already existed.
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}

// ResultCache stores terminal job outcomes keyed by queue job id.
//
// Writes are last-write-wins: a Set for a key that already holds a result
// replaces it, with no ordering check against the earlier write. Each Get
// and Set is atomic for its key, so a reader sees either the old or the new
// entry, never a mix.
type ResultCache interface {
	// Get returns nil, nil when no result is cached for jobID.
	Get(ctx context.Context, jobID string) (*model.JobResult, error)
	Set(ctx context.Context, jobID string, result *model.JobResult) error
}
