package data

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/jobrelay/internal/testutil"
)

const testCachePrefix = "jobrelay:test:"

// setupTestRedis creates a Redis client for testing.
// Tests will be skipped if Redis is not available.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	client := testutil.SetupTestRedis(t)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisCacheRepo_Set_Get_Delete(t *testing.T) {
	client := setupTestRedis(t)
	repo := NewRedisCacheRepo(client, testCachePrefix)
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		key := "key:1"
		value := []byte("test value")
		ttl := 5 * time.Minute

		require.NoError(t, repo.Set(ctx, key, value, ttl))

		result, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, value, result)

		actualTTL := client.TTL(ctx, testCachePrefix+key).Val()
		assert.True(t, actualTTL > 0 && actualTTL <= ttl)
	})

	t.Run("keys are stored under the prefix", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "key:prefixed", []byte("v"), time.Minute))

		assert.Equal(t, int64(1), client.Exists(ctx, testCachePrefix+"key:prefixed").Val())
		assert.Equal(t, int64(0), client.Exists(ctx, "key:prefixed").Val())
	})

	t.Run("get non-existent key", func(t *testing.T) {
		result, err := repo.Get(ctx, "non:existent:key")
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("delete existing key", func(t *testing.T) {
		key := "key:2"
		require.NoError(t, repo.Set(ctx, key, []byte("to be deleted"), time.Minute))

		deleted, err := repo.Delete(ctx, key)
		require.NoError(t, err)
		assert.True(t, deleted)

		result, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("delete non-existent key", func(t *testing.T) {
		deleted, err := repo.Delete(ctx, "non:existent:key")
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("set if not exists - new key", func(t *testing.T) {
		key := "key:5"
		value := []byte("setnx test")
		ttl := time.Minute

		wasSet, err := repo.SetIfNotExists(ctx, key, value, ttl)
		require.NoError(t, err)
		assert.True(t, wasSet)

		result, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, value, result)

		actualTTL := client.TTL(ctx, testCachePrefix+key).Val()
		assert.True(t, actualTTL > 0 && actualTTL <= ttl)
	})

	t.Run("set if not exists - existing key", func(t *testing.T) {
		key := "key:6"
		originalValue := []byte("original value")

		require.NoError(t, repo.Set(ctx, key, originalValue, time.Minute))

		wasSet, err := repo.SetIfNotExists(ctx, key, []byte("new value"), time.Minute)
		require.NoError(t, err)
		assert.False(t, wasSet)

		result, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, originalValue, result)
	})

	t.Run("health check", func(t *testing.T) {
		assert.NoError(t, repo.Health(ctx))
	})
}

func TestRedisCacheRepo_EmptyKey(t *testing.T) {
	// Validation happens before any Redis round trip, so an unreachable client is enough.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })

	repo := NewRedisCacheRepo(client, testCachePrefix)
	ctx := context.Background()

	err := repo.Set(ctx, "", []byte("value"), time.Minute)
	require.ErrorIs(t, err, errEmptyKey)

	_, err = repo.Get(ctx, "")
	require.ErrorIs(t, err, errEmptyKey)

	_, err = repo.Delete(ctx, "")
	require.ErrorIs(t, err, errEmptyKey)

	_, err = repo.SetIfNotExists(ctx, "", []byte("value"), time.Minute)
	require.ErrorIs(t, err, errEmptyKey)
}
