package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/jobrelay/internal/domain/model"
)

// ErrJobNotActive is returned when a worker completes or fails a job it does not hold.
var ErrJobNotActive = errors.New("job is not active")

// ErrJobNotFound is returned by worker-side calls for a job id the queue does not hold.
var ErrJobNotFound = errors.New("job not found")

// Queue is one named queue stored in Redis.
type Queue struct {
	name   string
	client redis.UniversalClient
	keys   keys
	now    func() time.Time
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

func (q *Queue) nowMillis() int64 { return q.now().UnixMilli() }

// Add enqueues a job and returns its id. The id counter, the job hash and the
// wait list entry are written in one MULTI/EXEC.
func (q *Queue) Add(ctx context.Context, name string, data json.RawMessage, opts model.JobOptions) (string, error) {
	id, err := q.client.Incr(ctx, q.keys.id()).Result()
	if err != nil {
		return "", fmt.Errorf("allocate job id: %w", err)
	}
	jobID := strconv.FormatInt(id, 10)

	fields, err := encodeJob(name, data, opts, q.nowMillis())
	if err != nil {
		return "", err
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.keys.job(jobID), fields)
		pipe.RPush(ctx, q.keys.wait(), jobID)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("add job to %s: %w", q.name, err)
	}
	return jobID, nil
}

// Job returns the job with the given id, or nil when the queue does not hold it.
// Ids that address a non-hash key, such as the queue's own lists, are not jobs.
func (q *Queue) Job(ctx context.Context, jobID string) (*model.QueuedJob, error) {
	if isStateKeyID(jobID) {
		return nil, nil
	}
	h, err := q.client.HGetAll(ctx, q.keys.job(jobID)).Result()
	if isWrongType(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	if len(h) == 0 {
		return nil, nil
	}
	return decodeJob(q.name, jobID, h)
}

// State reports which state set holds the job. Sets are checked in the order
// completed, failed, delayed, active, waiting; a job in none of them is unknown.
func (q *Queue) State(ctx context.Context, jobID string) (model.QueueState, error) {
	var (
		completed, failed, delayed *redis.FloatCmd
		active, waiting            *redis.IntCmd
	)
	_, err := q.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		completed = pipe.ZScore(ctx, q.keys.completed(), jobID)
		failed = pipe.ZScore(ctx, q.keys.failed(), jobID)
		delayed = pipe.ZScore(ctx, q.keys.delayed(), jobID)
		active = pipe.LPos(ctx, q.keys.active(), jobID, redis.LPosArgs{})
		waiting = pipe.LPos(ctx, q.keys.wait(), jobID, redis.LPosArgs{})
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return model.QueueStateUnknown, fmt.Errorf("get state of job %s: %w", jobID, err)
	}

	checks := []struct {
		state model.QueueState
		err   error
	}{
		{model.QueueStateCompleted, completed.Err()},
		{model.QueueStateFailed, failed.Err()},
		{model.QueueStateDelayed, delayed.Err()},
		{model.QueueStateActive, active.Err()},
		{model.QueueStateWaiting, waiting.Err()},
	}
	for _, c := range checks {
		if c.err == nil {
			return c.state, nil
		}
		if !errors.Is(c.err, redis.Nil) {
			return model.QueueStateUnknown, fmt.Errorf("get state of job %s: %w", jobID, c.err)
		}
	}
	return model.QueueStateUnknown, nil
}

// Remove deletes the job and drops it from every state set.
func (q *Queue) Remove(ctx context.Context, jobID string) error {
	if isStateKeyID(jobID) {
		return nil
	}
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.keys.wait(), 0, jobID)
		pipe.LRem(ctx, q.keys.active(), 0, jobID)
		pipe.ZRem(ctx, q.keys.delayed(), jobID)
		pipe.ZRem(ctx, q.keys.completed(), jobID)
		pipe.ZRem(ctx, q.keys.failed(), jobID)
		pipe.Del(ctx, q.keys.job(jobID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove job %s: %w", jobID, err)
	}
	return nil
}

// Reserve moves the next ready job to active. Delayed jobs whose backoff has
// elapsed are promoted first. Returns model.ErrNoJobsAvailable when idle.
func (q *Queue) Reserve(ctx context.Context) (*model.QueuedJob, error) {
	res, err := reserveScript.Run(ctx, q.client,
		[]string{q.keys.wait(), q.keys.active(), q.keys.delayed()},
		q.nowMillis(), q.keys.base,
	).Text()
	if errors.Is(err, redis.Nil) {
		return nil, model.ErrNoJobsAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("reserve from %s: %w", q.name, err)
	}

	job, err := q.Job(ctx, res)
	if err != nil {
		return nil, err
	}
	if job == nil {
		// The hash was removed between the move and the read; drop the dangling id.
		q.client.LRem(ctx, q.keys.active(), 0, res)
		return nil, model.ErrNoJobsAvailable
	}
	return job, nil
}

// Complete moves an active job to completed and stores its return value.
func (q *Queue) Complete(ctx context.Context, jobID string, returnValue json.RawMessage) error {
	job, err := q.activeJob(ctx, jobID)
	if err != nil {
		return err
	}
	if len(returnValue) == 0 {
		returnValue = json.RawMessage("null")
	}

	n, err := completeScript.Run(ctx, q.client,
		[]string{q.keys.active(), q.keys.completed(), q.keys.job(jobID)},
		jobID, q.nowMillis(), string(returnValue), boolArg(job.Opts.RemoveOnComplete),
	).Int()
	if err != nil {
		return fmt.Errorf("complete job %s: %w", jobID, err)
	}
	if n == 0 {
		return fmt.Errorf("complete job %s: %w", jobID, ErrJobNotActive)
	}
	return nil
}

// Fail records a failed attempt. While attempts remain the job is parked in
// delayed for its backoff and QueueStateDelayed is returned; otherwise it ends
// in failed.
func (q *Queue) Fail(ctx context.Context, jobID, reason string) (model.QueueState, error) {
	job, err := q.activeJob(ctx, jobID)
	if err != nil {
		return model.QueueStateUnknown, err
	}

	attempts := job.AttemptsMade + 1
	now := q.now()
	state := model.QueueStateFailed
	retryAt := ""
	if attempts < job.Opts.Attempts {
		state = model.QueueStateDelayed
		retryAt = strconv.FormatInt(now.Add(job.Opts.RetryDelay(attempts)).UnixMilli(), 10)
	}

	trace, err := appendStacktrace(job.Stacktrace, reason)
	if err != nil {
		return model.QueueStateUnknown, err
	}

	n, err := failScript.Run(ctx, q.client,
		[]string{q.keys.active(), q.keys.delayed(), q.keys.failed(), q.keys.job(jobID)},
		jobID, now.UnixMilli(), attempts, reason, retryAt, trace, boolArg(job.Opts.RemoveOnFail),
	).Int()
	if err != nil {
		return model.QueueStateUnknown, fmt.Errorf("fail job %s: %w", jobID, err)
	}
	if n == 0 {
		return model.QueueStateUnknown, fmt.Errorf("fail job %s: %w", jobID, ErrJobNotActive)
	}
	return state, nil
}

// UpdateProgress replaces the progress value of a job.
func (q *Queue) UpdateProgress(ctx context.Context, jobID string, progress json.RawMessage) error {
	if !json.Valid(progress) {
		return ErrInvalidData
	}
	n, err := progressScript.Run(ctx, q.client, []string{q.keys.job(jobID)}, string(progress)).Int()
	if err != nil {
		return fmt.Errorf("update progress of job %s: %w", jobID, err)
	}
	if n == 0 {
		return fmt.Errorf("update progress of job %s: %w", jobID, ErrJobNotFound)
	}
	return nil
}

// Counts reports the number of jobs in each state set.
func (q *Queue) Counts(ctx context.Context) (model.QueueCounts, error) {
	var waiting, active, delayed, completed, failed *redis.IntCmd
	_, err := q.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		waiting = pipe.LLen(ctx, q.keys.wait())
		active = pipe.LLen(ctx, q.keys.active())
		delayed = pipe.ZCard(ctx, q.keys.delayed())
		completed = pipe.ZCard(ctx, q.keys.completed())
		failed = pipe.ZCard(ctx, q.keys.failed())
		return nil
	})
	if err != nil {
		return model.QueueCounts{}, fmt.Errorf("count jobs in %s: %w", q.name, err)
	}
	return model.QueueCounts{
		Waiting:   waiting.Val(),
		Active:    active.Val(),
		Delayed:   delayed.Val(),
		Completed: completed.Val(),
		Failed:    failed.Val(),
	}, nil
}

// Clean deletes up to limit completed or failed jobs that finished more than olderThan ago.
func (q *Queue) Clean(ctx context.Context, state model.QueueState, olderThan time.Duration, limit int) (int64, error) {
	var set string
	switch state {
	case model.QueueStateCompleted:
		set = q.keys.completed()
	case model.QueueStateFailed:
		set = q.keys.failed()
	default:
		return 0, fmt.Errorf("clean %s: only completed and failed jobs can be cleaned", state)
	}
	if limit <= 0 {
		return 0, nil
	}

	cutoff := q.now().Add(-olderThan).UnixMilli()
	n, err := cleanScript.Run(ctx, q.client, []string{set}, cutoff, limit, q.keys.base).Int64()
	if err != nil {
		return 0, fmt.Errorf("clean %s jobs in %s: %w", state, q.name, err)
	}
	return n, nil
}

func (q *Queue) activeJob(ctx context.Context, jobID string) (*model.QueuedJob, error) {
	job, err := q.Job(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrJobNotFound)
	}
	return job, nil
}

func isWrongType(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "WRONGTYPE")
}

func boolArg(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
