package queue

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/jobrelay/internal/domain/model"
	"github.com/target/jobrelay/internal/testutil"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupRegistry(t *testing.T) (*Registry, *testClock) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	client := testutil.SetupTestRedis(t)
	t.Cleanup(func() { _ = client.Close() })

	clock := &testClock{now: testutil.TestTime()}
	r := NewRegistry(client, Options{Prefix: "bull", Now: clock.Now})
	t.Cleanup(func() { _ = r.Close() })
	return r, clock
}

func enqueue(t *testing.T, r *Registry, queue string, opts model.JobOptions) string {
	t.Helper()
	id, err := r.Enqueue(context.Background(), model.EnqueueRequest{
		Queue: queue,
		Name:  "process",
		Data:  json.RawMessage(`{"completionId":"completion_1"}`),
		Opts:  opts,
	})
	require.NoError(t, err)
	return id
}

func TestQueue_EnqueueAndGet(t *testing.T) {
	r, clock := setupRegistry(t)
	ctx := context.Background()

	first := enqueue(t, r, "completion", model.DefaultJobOptions())
	second := enqueue(t, r, "completion", model.DefaultJobOptions())
	assert.Equal(t, "1", first)
	assert.Equal(t, "2", second)

	job, err := r.GetJob(ctx, "completion", first)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "process", job.Name)
	assert.JSONEq(t, `{"completionId":"completion_1"}`, string(job.Data))
	assert.Equal(t, clock.Now().UnixMilli(), job.Timestamp)
	assert.Equal(t, model.DefaultJobOptions(), job.Opts)

	state, err := r.GetState(ctx, "completion", first)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStateWaiting, state)
}

func TestQueue_MissingJob(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()

	job, err := r.GetJob(ctx, "emails", "404")
	require.NoError(t, err)
	assert.Nil(t, job)

	state, err := r.GetState(ctx, "emails", "404")
	require.NoError(t, err)
	assert.Equal(t, model.QueueStateUnknown, state)
}

func TestQueue_StateKeyIDsAreNotJobs(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()

	id := enqueue(t, r, "emails", model.DefaultJobOptions())

	for _, name := range []string{"id", "wait", "active", "delayed", "completed", "failed"} {
		job, err := r.GetJob(ctx, "emails", name)
		require.NoError(t, err, name)
		assert.Nil(t, job, name)
		require.NoError(t, r.Remove(ctx, "emails", name))
	}

	state, err := r.GetState(ctx, "emails", id)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStateWaiting, state)
}

func TestQueue_NonHashKeyIsNotAJob(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.client.Set(ctx, "bull:emails:stray", "x", time.Minute).Err())
	t.Cleanup(func() { r.client.Del(context.Background(), "bull:emails:stray") })

	job, err := r.GetJob(ctx, "emails", "stray")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestQueue_QueuesAreIsolated(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()

	id := enqueue(t, r, "emails", model.DefaultJobOptions())

	job, err := r.GetJob(ctx, "completion", id)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestQueue_ReserveAndComplete(t *testing.T) {
	r, clock := setupRegistry(t)
	ctx := context.Background()

	id := enqueue(t, r, "completion", model.DefaultJobOptions())

	job, err := r.Reserve(ctx, "completion")
	require.NoError(t, err)
	assert.Equal(t, id, job.ID)
	require.NotNil(t, job.ProcessedOn)

	state, err := r.GetState(ctx, "completion", id)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStateActive, state)

	require.NoError(t, r.UpdateProgress(ctx, "completion", id, json.RawMessage(`50`)))

	_, err = r.Reserve(ctx, "completion")
	require.ErrorIs(t, err, model.ErrNoJobsAvailable)

	clock.Advance(time.Second)
	require.NoError(t, r.Complete(ctx, "completion", id, json.RawMessage(`{"content":"hi"}`)))

	state, err = r.GetState(ctx, "completion", id)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStateCompleted, state)

	done, err := r.GetJob(ctx, "completion", id)
	require.NoError(t, err)
	require.NotNil(t, done.FinishedOn)
	assert.Equal(t, clock.Now().UnixMilli(), *done.FinishedOn)
	assert.JSONEq(t, `{"content":"hi"}`, string(done.ReturnValue))
	assert.JSONEq(t, `50`, string(done.Progress))

	err = r.Complete(ctx, "completion", id, nil)
	require.ErrorIs(t, err, ErrJobNotActive)
}

func TestQueue_FailRetriesWithExponentialBackoff(t *testing.T) {
	r, clock := setupRegistry(t)
	ctx := context.Background()

	id := enqueue(t, r, "completion", model.DefaultJobOptions())

	_, err := r.Reserve(ctx, "completion")
	require.NoError(t, err)
	state, err := r.Fail(ctx, "completion", id, "provider timeout")
	require.NoError(t, err)
	assert.Equal(t, model.QueueStateDelayed, state)

	// First retry waits 2s.
	clock.Advance(1999 * time.Millisecond)
	_, err = r.Reserve(ctx, "completion")
	require.ErrorIs(t, err, model.ErrNoJobsAvailable)
	clock.Advance(time.Millisecond)
	job, err := r.Reserve(ctx, "completion")
	require.NoError(t, err)
	assert.Equal(t, 1, job.AttemptsMade)

	state, err = r.Fail(ctx, "completion", id, "provider timeout")
	require.NoError(t, err)
	assert.Equal(t, model.QueueStateDelayed, state)

	// Second retry waits 4s.
	clock.Advance(3 * time.Second)
	_, err = r.Reserve(ctx, "completion")
	require.ErrorIs(t, err, model.ErrNoJobsAvailable)
	clock.Advance(time.Second)
	_, err = r.Reserve(ctx, "completion")
	require.NoError(t, err)

	state, err = r.Fail(ctx, "completion", id, "provider rejected request")
	require.NoError(t, err)
	assert.Equal(t, model.QueueStateFailed, state)

	failed, err := r.GetJob(ctx, "completion", id)
	require.NoError(t, err)
	assert.Equal(t, 3, failed.AttemptsMade)
	assert.Equal(t, "provider rejected request", failed.FailedReason)
	assert.Equal(t, []string{"provider timeout", "provider timeout", "provider rejected request"}, failed.Stacktrace)
	require.NotNil(t, failed.FinishedOn)

	current, err := r.GetState(ctx, "completion", id)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStateFailed, current)
}

func TestQueue_RemoveOnComplete(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()

	opts := model.DefaultJobOptions()
	opts.RemoveOnComplete = true
	id := enqueue(t, r, "emails", opts)

	_, err := r.Reserve(ctx, "emails")
	require.NoError(t, err)
	require.NoError(t, r.Complete(ctx, "emails", id, nil))

	job, err := r.GetJob(ctx, "emails", id)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestQueue_RemoveAndCounts(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()

	a := enqueue(t, r, "emails", model.DefaultJobOptions())
	enqueue(t, r, "emails", model.DefaultJobOptions())
	enqueue(t, r, "emails", model.DefaultJobOptions())

	_, err := r.Reserve(ctx, "emails")
	require.NoError(t, err)

	counts, err := r.Counts(ctx, "emails")
	require.NoError(t, err)
	assert.Equal(t, model.QueueCounts{Waiting: 2, Active: 1}, counts)

	require.NoError(t, r.Remove(ctx, "emails", a))
	counts, err = r.Counts(ctx, "emails")
	require.NoError(t, err)
	assert.Equal(t, model.QueueCounts{Waiting: 2}, counts)

	job, err := r.GetJob(ctx, "emails", a)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestQueue_Clean(t *testing.T) {
	r, clock := setupRegistry(t)
	ctx := context.Background()

	old := enqueue(t, r, "emails", model.DefaultJobOptions())
	_, err := r.Reserve(ctx, "emails")
	require.NoError(t, err)
	require.NoError(t, r.Complete(ctx, "emails", old, nil))

	clock.Advance(48 * time.Hour)
	recent := enqueue(t, r, "emails", model.DefaultJobOptions())
	_, err = r.Reserve(ctx, "emails")
	require.NoError(t, err)
	require.NoError(t, r.Complete(ctx, "emails", recent, nil))

	n, err := r.Clean(ctx, "emails", model.QueueStateCompleted, 24*time.Hour, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	gone, err := r.GetJob(ctx, "emails", old)
	require.NoError(t, err)
	assert.Nil(t, gone)
	kept, err := r.GetJob(ctx, "emails", recent)
	require.NoError(t, err)
	assert.NotNil(t, kept)

	_, err = r.Clean(ctx, "emails", model.QueueStateActive, time.Hour, 100)
	require.Error(t, err)
}
