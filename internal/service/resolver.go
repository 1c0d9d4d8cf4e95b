package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/target/jobrelay/internal/core"
	"github.com/target/jobrelay/internal/domain/model"
	apperrors "github.com/target/jobrelay/internal/errors"
	"github.com/target/jobrelay/internal/observability/metrics"
)

// ResolverServiceOptions groups dependencies for ResolverService.
type ResolverServiceOptions struct {
	Cache   core.ResultCache  // Required: callback result cache
	Queue   core.QueueClient  // Required: queue reader
	Logger  *slog.Logger      // Optional: structured logger
	Metrics *metrics.Recorder // Optional: Prometheus recorder
}

// ResolverService reconciles the status of a job from the result cache and the queue.
//
// The cache is authoritative when it holds an entry: a callback result wins
// over whatever the queue reports, even a non-terminal state. Each lookup
// makes at most one call per backend and never retries.
type ResolverService struct {
	cache   core.ResultCache
	queue   core.QueueClient
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// NewResolverService constructs a new ResolverService.
func NewResolverService(opts ResolverServiceOptions) (*ResolverService, error) {
	if opts.Cache == nil {
		return nil, errors.New("ResultCache is required")
	}
	if opts.Queue == nil {
		return nil, errors.New("QueueClient is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "resolver_service")
	}

	return &ResolverService{
		cache:   opts.Cache,
		queue:   opts.Queue,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// MustNewResolverService constructs a new ResolverService and panics on error.
func MustNewResolverService(opts ResolverServiceOptions) *ResolverService {
	svc, err := NewResolverService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create ResolverService: %v", err))
	}
	return svc
}

// Resolve returns the status of jobID, reading the cache first and the queue second.
// It returns a NotFound AppError when neither source knows the job.
func (s *ResolverService) Resolve(ctx context.Context, queue, jobID string) (*model.JobStatusView, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, apperrors.ValidationField("jobId", "Missing required field: jobId")
	}

	cached, err := s.cache.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("read result cache for job %s: %w", jobID, err)
	}
	if cached != nil {
		s.metrics.Lookup(string(model.StatusSourceCache))
		return model.NewCacheStatusView(jobID, cached), nil
	}

	job, state, err := s.lookupQueue(ctx, queue, jobID)
	if err != nil {
		return nil, err
	}
	s.metrics.Lookup(string(model.StatusSourceQueue))
	return model.NewQueueStatusView(job, state), nil
}

// ResolveFromQueue returns the status of jobID as the queue reports it, skipping
// the callback cache. Callbacks carry only a job id, so a cached entry cannot be
// attributed to one queue; lookups scoped to the completion queue use this.
func (s *ResolverService) ResolveFromQueue(ctx context.Context, queue, jobID string) (*model.JobStatusView, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, apperrors.ValidationField("jobId", "Missing required field: jobId")
	}
	job, state, err := s.lookupQueue(ctx, queue, jobID)
	if err != nil {
		return nil, err
	}
	s.metrics.Lookup(string(model.StatusSourceQueue))
	return model.NewQueueStatusView(job, state), nil
}

// ResolveQueueJob returns the queue-only view of jobID, including attempt history.
func (s *ResolverService) ResolveQueueJob(ctx context.Context, queue, jobID string) (*model.QueueJobView, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, apperrors.ValidationField("jobId", "Missing required field: jobId")
	}
	job, state, err := s.lookupQueue(ctx, queue, jobID)
	if err != nil {
		return nil, err
	}
	return model.NewQueueJobView(job, state), nil
}

func (s *ResolverService) lookupQueue(
	ctx context.Context,
	queue, jobID string,
) (*model.QueuedJob, model.QueueState, error) {
	job, err := s.queue.GetJob(ctx, queue, jobID)
	if err != nil {
		return nil, model.QueueStateUnknown, fmt.Errorf("get job %s from %s: %w", jobID, queue, err)
	}
	if job == nil {
		s.metrics.Lookup("miss")
		if s.logger != nil {
			s.logger.DebugContext(ctx, "job not found", "queue", queue, "job_id", jobID)
		}
		return nil, model.QueueStateUnknown, apperrors.NotFound("Job not found")
	}

	state, err := s.queue.GetState(ctx, queue, jobID)
	if err != nil {
		return nil, model.QueueStateUnknown, fmt.Errorf("get state of job %s in %s: %w", jobID, queue, err)
	}
	return job, state, nil
}

// Project applies a JMESPath expression to the payload of view: the callback
// result for cache views and the job data for queue views. The returned view
// is a copy; view itself is not modified. An empty expression returns view unchanged.
func Project(view *model.JobStatusView, expr string) (*model.JobStatusView, error) {
	expr = strings.TrimSpace(expr)
	if view == nil || expr == "" {
		return view, nil
	}
	if _, err := jmespath.Compile(expr); err != nil {
		return nil, apperrors.ValidationField("query", fmt.Sprintf("Invalid query expression: %v", err))
	}

	out := *view
	target := &out.Data
	if view.Source == model.StatusSourceCache {
		target = &out.Result
	}

	projected, err := projectRaw(expr, *target)
	if err != nil {
		return nil, apperrors.ValidationField("query", fmt.Sprintf("Query could not be applied: %v", err))
	}
	*target = projected
	return &out, nil
}

func projectRaw(expr string, raw json.RawMessage) (json.RawMessage, error) {
	var doc any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
	}
	res, err := jmespath.Search(expr, doc)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	return b, nil
}
