package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/jobrelay/internal/domain/model"
	apperrors "github.com/target/jobrelay/internal/errors"
	"github.com/target/jobrelay/internal/mocks"
	"go.uber.org/mock/gomock"
)

func newTestResolver(t *testing.T) (*ResolverService, *mocks.MockResultCache, *mocks.MockQueueClient) {
	t.Helper()
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockResultCache(ctrl)
	queue := mocks.NewMockQueueClient(ctrl)
	return MustNewResolverService(ResolverServiceOptions{Cache: cache, Queue: queue}), cache, queue
}

func TestNewResolverService(t *testing.T) {
	ctrl := gomock.NewController(t)

	_, err := NewResolverService(ResolverServiceOptions{Queue: mocks.NewMockQueueClient(ctrl)})
	assert.EqualError(t, err, "ResultCache is required")

	_, err = NewResolverService(ResolverServiceOptions{Cache: mocks.NewMockResultCache(ctrl)})
	assert.EqualError(t, err, "QueueClient is required")
}

func TestResolverService_CacheWinsOverActiveQueueJob(t *testing.T) {
	svc, cache, _ := newTestResolver(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// The queue still reports the job active, but it must not be consulted.
	cache.EXPECT().Get(gomock.Any(), "J1").Return(&model.JobResult{
		Status:      model.JobResultCompleted,
		Result:      json.RawMessage(`{"sent":true}`),
		CompletedAt: at,
	}, nil)

	view, err := svc.Resolve(context.Background(), "emails", "J1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSourceCache, view.Source)
	assert.Equal(t, "completed", view.Status)
	assert.JSONEq(t, `{"sent":true}`, string(view.Result))
	require.NotNil(t, view.CompletedAt)
	assert.Equal(t, at, *view.CompletedAt)
}

func TestResolverService_FallsBackToQueue(t *testing.T) {
	svc, cache, queue := newTestResolver(t)

	cache.EXPECT().Get(gomock.Any(), "J2").Return(nil, nil)
	queue.EXPECT().GetJob(gomock.Any(), "emails", "J2").Return(&model.QueuedJob{
		ID:           "J2",
		Name:         "send-welcome",
		Data:         json.RawMessage(`{"to":"a@example.com"}`),
		Progress:     json.RawMessage(`50`),
		AttemptsMade: 1,
	}, nil)
	queue.EXPECT().GetState(gomock.Any(), "emails", "J2").Return(model.QueueStateActive, nil)

	view, err := svc.Resolve(context.Background(), "emails", "J2")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSourceQueue, view.Source)
	assert.Equal(t, "active", view.Status)
	assert.Equal(t, "send-welcome", view.Name)
	assert.JSONEq(t, `50`, string(view.Progress))
	assert.Equal(t, 1, view.AttemptsMade)
	assert.Nil(t, view.CompletedAt)
}

func TestResolverService_NotFoundInEitherSource(t *testing.T) {
	svc, cache, queue := newTestResolver(t)

	cache.EXPECT().Get(gomock.Any(), "ghost").Return(nil, nil)
	queue.EXPECT().GetJob(gomock.Any(), "emails", "ghost").Return(nil, nil)

	_, err := svc.Resolve(context.Background(), "emails", "ghost")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, "Job not found", apperrors.PublicMessage(err))
}

func TestResolverService_BackendErrors(t *testing.T) {
	t.Run("cache failure is not a miss", func(t *testing.T) {
		svc, cache, _ := newTestResolver(t)
		cache.EXPECT().Get(gomock.Any(), "J1").Return(nil, errors.New("dial tcp: refused"))

		_, err := svc.Resolve(context.Background(), "emails", "J1")
		require.Error(t, err)
		assert.False(t, apperrors.IsNotFound(err))
		assert.Equal(t, "internal server error", apperrors.PublicMessage(err))
	})

	t.Run("queue failure", func(t *testing.T) {
		svc, cache, queue := newTestResolver(t)
		cache.EXPECT().Get(gomock.Any(), "J1").Return(nil, nil)
		queue.EXPECT().GetJob(gomock.Any(), "emails", "J1").Return(nil, errors.New("timeout"))

		_, err := svc.Resolve(context.Background(), "emails", "J1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "get job J1 from emails")
	})
}

func TestResolverService_BlankJobID(t *testing.T) {
	svc, _, _ := newTestResolver(t)

	_, err := svc.Resolve(context.Background(), "emails", "  ")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "jobId", apperrors.GetField(err))
}

func TestResolverService_ResolveQueueJob(t *testing.T) {
	svc, _, queue := newTestResolver(t)

	queue.EXPECT().GetJob(gomock.Any(), "completion", "5").Return(&model.QueuedJob{
		ID:           "5",
		Name:         "process",
		FailedReason: "rate limited",
		AttemptsMade: 3,
	}, nil)
	queue.EXPECT().GetState(gomock.Any(), "completion", "5").Return(model.QueueStateFailed, nil)

	view, err := svc.ResolveQueueJob(context.Background(), "completion", "5")
	require.NoError(t, err)
	assert.Equal(t, model.QueueStateFailed, view.State)
	require.NotNil(t, view.FailedReason)
	assert.Equal(t, "rate limited", *view.FailedReason)
	assert.Equal(t, []string{}, view.Stacktrace)
}

func TestProject(t *testing.T) {
	cacheView := &model.JobStatusView{
		JobID:  "J1",
		Status: "completed",
		Result: json.RawMessage(`{"user":{"email":"a@example.com"},"ids":[1,2,3]}`),
		Source: model.StatusSourceCache,
	}
	queueView := &model.JobStatusView{
		JobID:  "J2",
		Status: "waiting",
		Data:   json.RawMessage(`{"to":"b@example.com"}`),
		Source: model.StatusSourceQueue,
	}

	tests := []struct {
		name       string
		view       *model.JobStatusView
		expr       string
		wantResult string
		wantData   string
	}{
		{name: "cache result field", view: cacheView, expr: "user.email", wantResult: `"a@example.com"`},
		{name: "cache result slice", view: cacheView, expr: "ids[-1]", wantResult: `3`},
		{name: "missing path yields null", view: cacheView, expr: "nope", wantResult: `null`},
		{name: "queue data field", view: queueView, expr: "to", wantData: `"b@example.com"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Project(tt.view, tt.expr)
			require.NoError(t, err)
			if tt.wantResult != "" {
				assert.JSONEq(t, tt.wantResult, string(got.Result))
			}
			if tt.wantData != "" {
				assert.JSONEq(t, tt.wantData, string(got.Data))
			}
		})
	}

	t.Run("original view untouched", func(t *testing.T) {
		_, err := Project(cacheView, "user")
		require.NoError(t, err)
		assert.JSONEq(t, `{"user":{"email":"a@example.com"},"ids":[1,2,3]}`, string(cacheView.Result))
	})

	t.Run("empty expression", func(t *testing.T) {
		got, err := Project(cacheView, " ")
		require.NoError(t, err)
		assert.Same(t, cacheView, got)
	})

	t.Run("invalid expression", func(t *testing.T) {
		_, err := Project(cacheView, "user.[")
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
		assert.Equal(t, "query", apperrors.GetField(err))
	})
}
