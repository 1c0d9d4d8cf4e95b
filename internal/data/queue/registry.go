// Package queue implements the durable named job queues on Redis.
//
// Each job is a hash, and each state is one list or sorted set, with Bull-style
// key names and job hash fields. It is not wire-compatible with Bull workers.
// The package covers what the relay needs (enqueue, lookup, state, reserve,
// complete, fail, clean) and nothing more.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/jobrelay/internal/core"
	"github.com/target/jobrelay/internal/domain/model"
)

// DefaultPrefix is the key prefix used when Options.Prefix is empty.
const DefaultPrefix = "bull"

// ErrRegistryClosed is returned by every call made after Close.
var ErrRegistryClosed = errors.New("queue registry is closed")

// ErrQueueNameRequired is returned when a call does not name a queue.
var ErrQueueNameRequired = errors.New("queue name is required")

// Options configures a Registry.
type Options struct {
	Prefix string
	Logger *slog.Logger
	// Now overrides the clock used for timestamps and backoff. Defaults to time.Now.
	Now func() time.Time
}

// Registry hands out named queues that share one Redis client.
// It is built once at startup and closed on shutdown.
type Registry struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	queues map[string]*Queue
	closed bool
}

var (
	_ core.QueueClient    = (*Registry)(nil)
	_ core.QueueWorker    = (*Registry)(nil)
	_ core.QueueInspector = (*Registry)(nil)
	_ core.QueueJanitor   = (*Registry)(nil)
)

// NewRegistry creates a Registry over client.
func NewRegistry(client redis.UniversalClient, opts Options) *Registry {
	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		client: client,
		prefix: prefix,
		logger: logger.With("component", "queue"),
		now:    now,
		queues: make(map[string]*Queue),
	}
}

// Queue returns the queue with the given name, creating the handle on first use.
func (r *Registry) Queue(name string) (*Queue, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrQueueNameRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	if q, ok := r.queues[name]; ok {
		return q, nil
	}
	q := &Queue{
		name:   name,
		client: r.client,
		keys:   newKeys(r.prefix, name),
		now:    r.now,
	}
	r.queues[name] = q
	r.logger.Debug("queue opened", "queue", name)
	return q, nil
}

// Names lists the queues opened so far.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.queues))
	for name := range r.queues {
		out = append(out, name)
	}
	return out
}

// Close releases the queue handles. The Redis client is owned by the caller.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	clear(r.queues)
	return nil
}

// Enqueue adds a job to req.Queue.
func (r *Registry) Enqueue(ctx context.Context, req model.EnqueueRequest) (string, error) {
	q, err := r.Queue(req.Queue)
	if err != nil {
		return "", err
	}
	return q.Add(ctx, req.Name, req.Data, req.Opts)
}

// GetJob returns nil, nil when the queue holds no job with that id.
func (r *Registry) GetJob(ctx context.Context, queue, jobID string) (*model.QueuedJob, error) {
	q, err := r.Queue(queue)
	if err != nil {
		return nil, err
	}
	return q.Job(ctx, jobID)
}

// GetState reports the queue-native state of a job.
func (r *Registry) GetState(ctx context.Context, queue, jobID string) (model.QueueState, error) {
	q, err := r.Queue(queue)
	if err != nil {
		return model.QueueStateUnknown, err
	}
	return q.State(ctx, jobID)
}

// Remove deletes a job from a queue.
func (r *Registry) Remove(ctx context.Context, queue, jobID string) error {
	q, err := r.Queue(queue)
	if err != nil {
		return err
	}
	return q.Remove(ctx, jobID)
}

// Reserve moves the next ready job of queue to active.
func (r *Registry) Reserve(ctx context.Context, queue string) (*model.QueuedJob, error) {
	q, err := r.Queue(queue)
	if err != nil {
		return nil, err
	}
	return q.Reserve(ctx)
}

// Complete finishes an active job.
func (r *Registry) Complete(ctx context.Context, queue, jobID string, returnValue json.RawMessage) error {
	q, err := r.Queue(queue)
	if err != nil {
		return err
	}
	return q.Complete(ctx, jobID, returnValue)
}

// Fail records a failed attempt of an active job.
func (r *Registry) Fail(ctx context.Context, queue, jobID, reason string) (model.QueueState, error) {
	q, err := r.Queue(queue)
	if err != nil {
		return model.QueueStateUnknown, err
	}
	return q.Fail(ctx, jobID, reason)
}

// UpdateProgress replaces the progress value of a job.
func (r *Registry) UpdateProgress(ctx context.Context, queue, jobID string, progress json.RawMessage) error {
	q, err := r.Queue(queue)
	if err != nil {
		return err
	}
	return q.UpdateProgress(ctx, jobID, progress)
}

// Counts reports per-state job counts of queue.
func (r *Registry) Counts(ctx context.Context, queue string) (model.QueueCounts, error) {
	q, err := r.Queue(queue)
	if err != nil {
		return model.QueueCounts{}, err
	}
	return q.Counts(ctx)
}

// Clean deletes finished jobs older than olderThan from queue.
func (r *Registry) Clean(
	ctx context.Context,
	queue string,
	state model.QueueState,
	olderThan time.Duration,
	limit int,
) (int64, error) {
	q, err := r.Queue(queue)
	if err != nil {
		return 0, err
	}
	return q.Clean(ctx, state, olderThan, limit)
}
