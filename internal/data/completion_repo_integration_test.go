package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/jobrelay/internal/core"
	"github.com/target/jobrelay/internal/domain/model"
	"github.com/target/jobrelay/internal/testutil"
)

func enqueueAs(jobID string) core.EnqueueFunc {
	return func(_ context.Context, _ *model.Completion) (string, error) {
		return jobID, nil
	}
}

// seedCompletions creates five records one minute apart: the 1st, 3rd and 5th completed,
// the 2nd and 4th left pending.
func seedCompletions(t *testing.T, repo *CompletionRepo, clock *ManualClock) []*model.Completion {
	t.Helper()
	ctx := context.Background()

	out := make([]*model.Completion, 0, 5)
	for i := range 5 {
		c, err := repo.CreatePending(ctx, core.CreatePendingParams{
			Completion: testutil.NewCompletionParams().Build(),
			Enqueue:    enqueueAs(fmt.Sprintf("%d", i+1)),
		})
		require.NoError(t, err)
		if i%2 == 0 {
			c, err = repo.MarkCompleted(ctx, c.CompletionID, testutil.NewCompletionOutput().Build())
			require.NoError(t, err)
		}
		out = append(out, c)
		clock.Advance(time.Minute)
	}
	return out
}

func TestCompletionRepo_Integration_CreatePending(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewCompletionRepo(db, RepoConfig{})
		ctx := context.Background()

		params := testutil.NewCompletionParams().WithSystemMessage("be brief").Build()
		var seen *model.Completion
		c, err := repo.CreatePending(ctx, core.CreatePendingParams{
			Completion: params,
			Enqueue: func(_ context.Context, pending *model.Completion) (string, error) {
				seen = pending
				return "42", nil
			},
		})
		require.NoError(t, err)

		require.NotNil(t, seen)
		assert.Equal(t, model.CompletionStatusPending, seen.Status)
		assert.Nil(t, seen.JobID)

		assert.NotEmpty(t, c.ID)
		assert.Equal(t, params.CompletionID, c.CompletionID)
		require.NotNil(t, c.JobID)
		assert.Equal(t, "42", *c.JobID)
		require.NotNil(t, c.SystemMessage)
		assert.Equal(t, "be brief", *c.SystemMessage)
		assert.Equal(t, model.CompletionStatusPending, c.Status)
		assert.Nil(t, c.ResponseContent)

		byID, err := repo.GetByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, c.CompletionID, byID.CompletionID)

		byCompletionID, err := repo.GetByCompletionID(ctx, c.CompletionID)
		require.NoError(t, err)
		assert.Equal(t, c.ID, byCompletionID.ID)
	})
}

func TestCompletionRepo_Integration_CreatePendingVisibleToWorkerBeforeEnqueueReturns(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewCompletionRepo(db, RepoConfig{})
		ctx := context.Background()

		params := testutil.NewCompletionParams().Build()
		c, err := repo.CreatePending(ctx, core.CreatePendingParams{
			Completion: params,
			Enqueue: func(ctx context.Context, pending *model.Completion) (string, error) {
				// A worker reserving the job right away must be able to claim the record.
				processing, markErr := repo.MarkProcessing(ctx, pending.CompletionID)
				require.NoError(t, markErr)
				assert.Equal(t, model.CompletionStatusProcessing, processing.Status)
				return "7", nil
			},
		})
		require.NoError(t, err)
		require.NotNil(t, c.JobID)
		assert.Equal(t, "7", *c.JobID)
		assert.Equal(t, model.CompletionStatusProcessing, c.Status)
	})
}

func TestCompletionRepo_Integration_CreatePendingDiscardsRecordOnEnqueueError(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewCompletionRepo(db, RepoConfig{})
		ctx := context.Background()

		params := testutil.NewCompletionParams().Build()
		enqueueErr := errors.New("redis down")
		_, err := repo.CreatePending(ctx, core.CreatePendingParams{
			Completion: params,
			Enqueue: func(context.Context, *model.Completion) (string, error) {
				return "", enqueueErr
			},
		})
		require.ErrorIs(t, err, enqueueErr)

		_, err = repo.GetByCompletionID(ctx, params.CompletionID)
		require.ErrorIs(t, err, ErrCompletionNotFound)

		total, err := repo.Count(ctx, model.CompletionListOptions{})
		require.NoError(t, err)
		assert.Zero(t, total)
	})
}

func TestCompletionRepo_Integration_GetNotFound(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewCompletionRepo(db, RepoConfig{})
		ctx := context.Background()

		_, err := repo.GetByID(ctx, "7b0f3c59-2a1f-4b53-9f3e-0d0e1b0c5a11")
		require.ErrorIs(t, err, ErrCompletionNotFound)

		_, err = repo.GetByCompletionID(ctx, "completion_missing")
		require.ErrorIs(t, err, ErrCompletionNotFound)
	})
}

func TestCompletionRepo_Integration_ListCompletedNewestFirst(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		clock := NewManualClock(testutil.TestTime())
		repo := NewCompletionRepo(db, RepoConfig{Clock: clock})
		ctx := context.Background()
		seeded := seedCompletions(t, repo, clock)

		status := model.CompletionStatusCompleted
		page, err := repo.List(ctx, model.CompletionListOptions{Status: &status, Limit: 2, Offset: 0})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, seeded[4].CompletionID, page[0].CompletionID)
		assert.Equal(t, seeded[2].CompletionID, page[1].CompletionID)
		for _, c := range page {
			assert.Equal(t, model.CompletionStatusCompleted, c.Status)
		}
		assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

		total, err := repo.Count(ctx, model.CompletionListOptions{Status: &status})
		require.NoError(t, err)
		assert.Equal(t, 3, total)

		all, err := repo.List(ctx, model.CompletionListOptions{})
		require.NoError(t, err)
		assert.Len(t, all, 5)
		assert.Equal(t, seeded[4].CompletionID, all[0].CompletionID)

		tail, err := repo.List(ctx, model.CompletionListOptions{Limit: 2, Offset: 4})
		require.NoError(t, err)
		require.Len(t, tail, 1)
		assert.Equal(t, seeded[0].CompletionID, tail[0].CompletionID)
	})
}

func TestCompletionRepo_Integration_ListClampsLimit(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		clock := NewManualClock(testutil.TestTime())
		repo := NewCompletionRepo(db, RepoConfig{Clock: clock, MaxLimit: 3})
		seedCompletions(t, repo, clock)

		page, err := repo.List(context.Background(), model.CompletionListOptions{Limit: 1000})
		require.NoError(t, err)
		assert.Len(t, page, 3)
	})
}

func TestCompletionRepo_Integration_Transitions(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		clock := NewManualClock(testutil.TestTime())
		repo := NewCompletionRepo(db, RepoConfig{Clock: clock})
		ctx := context.Background()

		c, err := repo.CreatePending(ctx, core.CreatePendingParams{
			Completion: testutil.NewCompletionParams().Build(),
			Enqueue:    enqueueAs("7"),
		})
		require.NoError(t, err)

		clock.Advance(time.Second)
		processing, err := repo.MarkProcessing(ctx, c.CompletionID)
		require.NoError(t, err)
		assert.Equal(t, model.CompletionStatusProcessing, processing.Status)
		require.NotNil(t, processing.AttemptedAt)

		again, err := repo.MarkProcessing(ctx, c.CompletionID)
		require.NoError(t, err)
		assert.Equal(t, processing.UpdatedAt, again.UpdatedAt)

		clock.Advance(time.Second)
		out := testutil.NewCompletionOutput().WithContent("Hi there").WithTokens(3, 4).Build()
		done, err := repo.MarkCompleted(ctx, c.CompletionID, out)
		require.NoError(t, err)
		assert.Equal(t, model.CompletionStatusCompleted, done.Status)
		require.NotNil(t, done.ResponseContent)
		assert.Equal(t, "Hi there", *done.ResponseContent)
		require.NotNil(t, done.TotalTokens)
		assert.Equal(t, 7, *done.TotalTokens)
		require.NotNil(t, done.FinishReason)
		assert.Equal(t, "stop", *done.FinishReason)
		assert.JSONEq(t, `{"id":"resp_1"}`, string(done.RawResponse))
		require.NotNil(t, done.CompletedAt)

		clock.Advance(time.Second)
		redelivered, err := repo.MarkCompleted(ctx, c.CompletionID, testutil.NewCompletionOutput().WithContent("other").Build())
		require.NoError(t, err)
		assert.Equal(t, "Hi there", *redelivered.ResponseContent)
		assert.Equal(t, done.UpdatedAt, redelivered.UpdatedAt)

		_, err = repo.MarkFailed(ctx, c.CompletionID, "late failure")
		require.ErrorIs(t, err, ErrInvalidTransition)

		_, err = repo.MarkProcessing(ctx, c.CompletionID)
		require.ErrorIs(t, err, ErrInvalidTransition)

		_, err = repo.MarkProcessing(ctx, "completion_missing")
		require.ErrorIs(t, err, ErrCompletionNotFound)
	})
}

func TestCompletionRepo_Integration_MarkFailedFromPending(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewCompletionRepo(db, RepoConfig{})
		ctx := context.Background()

		c, err := repo.CreatePending(ctx, core.CreatePendingParams{
			Completion: testutil.NewCompletionParams().Build(),
			Enqueue:    enqueueAs("8"),
		})
		require.NoError(t, err)

		failed, err := repo.MarkFailed(ctx, c.CompletionID, "provider rejected request")
		require.NoError(t, err)
		assert.Equal(t, model.CompletionStatusFailed, failed.Status)
		require.NotNil(t, failed.ErrorMessage)
		assert.Equal(t, "provider rejected request", *failed.ErrorMessage)
		assert.Nil(t, failed.ResponseContent)

		_, err = repo.MarkCompleted(ctx, c.CompletionID, testutil.NewCompletionOutput().Build())
		require.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestCompletionRepo_Integration_FailStalePending(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		clock := NewManualClock(testutil.TestTime())
		repo := NewCompletionRepo(db, RepoConfig{Clock: clock})
		ctx := context.Background()

		old, err := repo.CreatePending(ctx, core.CreatePendingParams{
			Completion: testutil.NewCompletionParams().Build(),
			Enqueue:    enqueueAs("1"),
		})
		require.NoError(t, err)

		clock.Advance(2 * time.Hour)
		recent, err := repo.CreatePending(ctx, core.CreatePendingParams{
			Completion: testutil.NewCompletionParams().Build(),
			Enqueue:    enqueueAs("2"),
		})
		require.NoError(t, err)

		count, err := repo.FailStalePending(ctx, time.Hour, 1000)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		oldAfter, err := repo.GetByID(ctx, old.ID)
		require.NoError(t, err)
		assert.Equal(t, model.CompletionStatusFailed, oldAfter.Status)
		require.NotNil(t, oldAfter.ErrorMessage)
		assert.Contains(t, *oldAfter.ErrorMessage, "timed out in pending status")

		recentAfter, err := repo.GetByID(ctx, recent.ID)
		require.NoError(t, err)
		assert.Equal(t, model.CompletionStatusPending, recentAfter.Status)

		count, err = repo.FailStalePending(ctx, time.Hour, 1000)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}
