package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/target/jobrelay/config"
	"github.com/target/jobrelay/internal/core"
	"github.com/target/jobrelay/internal/domain/model"
	apperrors "github.com/target/jobrelay/internal/errors"
	"github.com/target/jobrelay/internal/observability/metrics"
)

// CompletionIDPrefix starts every caller-facing completion id.
const CompletionIDPrefix = "completion_"

// NewCompletionID returns completion_<ULID>. ULIDs sort by creation time and are
// monotonic within the process.
func NewCompletionID() string {
	return CompletionIDPrefix + ulid.Make().String()
}

// SubmissionServiceOptions groups dependencies for SubmissionService.
type SubmissionServiceOptions struct {
	Repo    core.CompletionRepository // Required: completion record store
	Queue   core.QueueClient          // Required: queue producer
	Config  config.QueueConfig        // Required: queue names and job defaults
	Logger  *slog.Logger              // Optional: structured logger
	Metrics *metrics.Recorder         // Optional: Prometheus recorder
	// NewID overrides completion id generation. Defaults to NewCompletionID.
	NewID func() string
}

// SubmissionService accepts completions and tasks and places them on the queue.
//
// A completion's pending record is committed before its job is queued, so the
// worker never reserves a job whose record it cannot see. A failed enqueue
// deletes the record again.
type SubmissionService struct {
	repo    core.CompletionRepository
	queue   core.QueueClient
	cfg     config.QueueConfig
	opts    model.JobOptions
	newID   func() string
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// NewSubmissionService constructs a new SubmissionService.
func NewSubmissionService(opts SubmissionServiceOptions) (*SubmissionService, error) {
	if opts.Repo == nil {
		return nil, errors.New("CompletionRepository is required")
	}
	if opts.Queue == nil {
		return nil, errors.New("QueueClient is required")
	}
	cfg := opts.Config
	cfg.Sanitize()

	newID := opts.NewID
	if newID == nil {
		newID = NewCompletionID
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "submission_service")
		logger.Debug("SubmissionService initialized",
			"completion_queue", cfg.CompletionQueue,
			"task_queue", cfg.TaskQueue,
			"attempts", cfg.DefaultAttempts,
		)
	}

	return &SubmissionService{
		repo:    opts.Repo,
		queue:   opts.Queue,
		cfg:     cfg,
		opts:    JobOptionsFromConfig(cfg),
		newID:   newID,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// MustNewSubmissionService constructs a new SubmissionService and panics on error.
func MustNewSubmissionService(opts SubmissionServiceOptions) *SubmissionService {
	svc, err := NewSubmissionService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create SubmissionService: %v", err))
	}
	return svc
}

// JobOptionsFromConfig builds the retry and retention options applied to every job.
func JobOptionsFromConfig(cfg config.QueueConfig) model.JobOptions {
	return model.JobOptions{
		Attempts: cfg.DefaultAttempts,
		Backoff: model.Backoff{
			Type:  model.BackoffExponential,
			Delay: cfg.BackoffDelay.Milliseconds(),
		},
		RemoveOnComplete: cfg.RemoveOnComplete,
		RemoveOnFail:     cfg.RemoveOnFail,
	}
}

// SubmitCompletion validates req, records a pending completion and queues its job.
func (s *SubmissionService) SubmitCompletion(
	ctx context.Context,
	req *model.CreateCompletionRequest,
) (*model.SubmitCompletionResponse, error) {
	if req == nil {
		return nil, apperrors.Validation("request body is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	params := model.CreateCompletionParams{
		CompletionID:  s.newID(),
		Model:         strings.TrimSpace(req.Model),
		UserMessage:   req.Content,
		SystemMessage: req.SystemMessage,
	}

	var queuedJobID string
	enqueue := func(ctx context.Context, c *model.Completion) (string, error) {
		data, err := json.Marshal(model.CompletionJobData{
			CompletionID:  c.CompletionID,
			Model:         c.Model,
			Content:       c.UserMessage,
			SystemMessage: c.SystemMessage,
		})
		if err != nil {
			return "", fmt.Errorf("encode completion job: %w", err)
		}
		id, err := s.queue.Enqueue(ctx, model.EnqueueRequest{
			Queue: s.cfg.CompletionQueue,
			Name:  s.cfg.CompletionJobName,
			Data:  data,
			Opts:  s.opts,
		})
		if err != nil {
			return "", err
		}
		queuedJobID = id
		return id, nil
	}

	rec, err := s.repo.CreatePending(ctx, core.CreatePendingParams{Completion: params, Enqueue: enqueue})
	s.metrics.Submitted(s.cfg.CompletionQueue, "completion", err)
	if err != nil {
		return nil, fmt.Errorf("submit completion: %w", err)
	}

	jobID := queuedJobID
	if rec.JobID != nil {
		jobID = *rec.JobID
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "completion queued",
			"completion_id", rec.CompletionID,
			"job_id", jobID,
			"model", rec.Model,
		)
	}

	return &model.SubmitCompletionResponse{
		JobID:        jobID,
		Status:       model.SubmissionStatusQueued,
		CompletionID: rec.CompletionID,
	}, nil
}

// SubmitTask validates req and queues a generic named task.
func (s *SubmissionService) SubmitTask(
	ctx context.Context,
	req *model.CreateTaskRequest,
) (*model.SubmitTaskResponse, error) {
	if req == nil {
		return nil, apperrors.Validation("request body is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	data := req.Data
	if len(data) == 0 || string(data) == "null" {
		data = json.RawMessage(`{}`)
	}

	jobID, err := s.queue.Enqueue(ctx, model.EnqueueRequest{
		Queue: s.cfg.TaskQueue,
		Name:  req.Name,
		Data:  data,
		Opts:  s.opts,
	})
	s.metrics.Submitted(s.cfg.TaskQueue, "task", err)
	if err != nil {
		return nil, fmt.Errorf("submit task %s: %w", req.Name, err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "task queued", "job_id", jobID, "name", req.Name)
	}

	return &model.SubmitTaskResponse{
		JobID:  jobID,
		Name:   req.Name,
		Status: model.SubmissionStatusQueued,
	}, nil
}
