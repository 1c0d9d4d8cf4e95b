package data

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/jobrelay/internal/domain/model"
	"github.com/target/jobrelay/internal/mocks"
	"go.uber.org/mock/gomock"
)

func TestRedisResultCache_SetEncodesWithTTL(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockCacheRepository(ctrl)
	cache := NewRedisResultCache(repo, time.Hour)

	completedAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.EXPECT().
		Set(gomock.Any(), "42", gomock.Any(), time.Hour).
		DoAndReturn(func(_ context.Context, _ string, value []byte, _ time.Duration) error {
			assert.JSONEq(t,
				`{"status":"completed","result":{"ok":true},"completedAt":"2024-01-01T12:00:00Z"}`,
				string(value))
			return nil
		})

	err := cache.Set(context.Background(), "42", &model.JobResult{
		Status:      model.JobResultCompleted,
		Result:      []byte(`{"ok":true}`),
		CompletedAt: completedAt,
	})
	require.NoError(t, err)
}

func TestRedisResultCache_GetDecodes(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockCacheRepository(ctrl)
	cache := NewRedisResultCache(repo, time.Hour)

	repo.EXPECT().Get(gomock.Any(), "42").
		Return([]byte(`{"status":"failed","result":null,"completedAt":"2024-01-01T12:00:00Z"}`), nil)

	got, err := cache.Get(context.Background(), "42")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.JobResultFailed, got.Status)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), got.CompletedAt.UTC())
}

func TestRedisResultCache_GetMiss(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockCacheRepository(ctrl)
	cache := NewRedisResultCache(repo, time.Hour)

	repo.EXPECT().Get(gomock.Any(), "missing").Return(nil, nil)

	got, err := cache.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisResultCache_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockCacheRepository(ctrl)
	cache := NewRedisResultCache(repo, time.Hour)
	ctx := context.Background()

	backendErr := errors.New("connection refused")
	repo.EXPECT().Get(gomock.Any(), "1").Return(nil, backendErr)
	_, err := cache.Get(ctx, "1")
	require.ErrorIs(t, err, backendErr)

	repo.EXPECT().Get(gomock.Any(), "2").Return([]byte(`not json`), nil)
	_, err = cache.Get(ctx, "2")
	require.Error(t, err)

	repo.EXPECT().Set(gomock.Any(), "3", gomock.Any(), time.Hour).Return(backendErr)
	err = cache.Set(ctx, "3", &model.JobResult{Status: model.JobResultCompleted})
	require.ErrorIs(t, err, backendErr)
}

func TestRedisResultCache_Integration_LastWriteWins(t *testing.T) {
	client := setupTestRedis(t)
	cache := NewRedisResultCache(NewRedisCacheRepo(client, testCachePrefix), time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "7", &model.JobResult{
		Status: model.JobResultCompleted, Result: []byte(`{"a":1}`), CompletedAt: time.Now().UTC(),
	}))
	require.NoError(t, cache.Set(ctx, "7", &model.JobResult{
		Status: model.JobResultFailed, CompletedAt: time.Now().UTC(),
	}))

	got, err := cache.Get(ctx, "7")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.JobResultFailed, got.Status)

	ttl := client.TTL(ctx, testCachePrefix+"7").Val()
	assert.True(t, ttl > 0 && ttl <= time.Minute)
}
