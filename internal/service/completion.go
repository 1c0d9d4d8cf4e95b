package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/target/jobrelay/config"
	"github.com/target/jobrelay/internal/core"
	"github.com/target/jobrelay/internal/data"
	"github.com/target/jobrelay/internal/domain/model"
	apperrors "github.com/target/jobrelay/internal/errors"
)

// CompletionServiceOptions groups dependencies for CompletionService.
type CompletionServiceOptions struct {
	Repo     core.CompletionRepository // Required: completion record store
	Resolver *ResolverService          // Required: queue lookups for a record's job
	Config   CompletionQueryConfig     // Required: queue name and paging bounds
	Logger   *slog.Logger              // Optional: structured logger
}

// CompletionQueryConfig configures CompletionService.
type CompletionQueryConfig struct {
	Queue  string
	Paging config.CompletionsConfig
}

// CompletionService answers queries about completion records and their queue jobs.
type CompletionService struct {
	repo     core.CompletionRepository
	resolver *ResolverService
	queue    string
	paging   config.CompletionsConfig
	logger   *slog.Logger
}

// NewCompletionService constructs a new CompletionService.
func NewCompletionService(opts CompletionServiceOptions) (*CompletionService, error) {
	if opts.Repo == nil {
		return nil, errors.New("CompletionRepository is required")
	}
	if opts.Resolver == nil {
		return nil, errors.New("ResolverService is required")
	}
	queue := strings.TrimSpace(opts.Config.Queue)
	if queue == "" {
		return nil, errors.New("completion queue name is required")
	}
	paging := opts.Config.Paging
	paging.Sanitize()

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "completion_service")
	}

	return &CompletionService{
		repo:     opts.Repo,
		resolver: opts.Resolver,
		queue:    queue,
		paging:   paging,
		logger:   logger,
	}, nil
}

// MustNewCompletionService constructs a new CompletionService and panics on error.
func MustNewCompletionService(opts CompletionServiceOptions) *CompletionService {
	svc, err := NewCompletionService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create CompletionService: %v", err))
	}
	return svc
}

// Get looks a record up by id, which may be the record UUID or its completionId.
// A UUID is tried as a primary key first and then as a completionId.
func (s *CompletionService) Get(ctx context.Context, id string) (*model.Completion, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.ValidationField("id", "Missing required field: id")
	}

	if _, err := uuid.Parse(id); err == nil {
		c, getErr := s.repo.GetByID(ctx, id)
		if getErr == nil {
			return c, nil
		}
		if !errors.Is(getErr, data.ErrCompletionNotFound) {
			return nil, fmt.Errorf("get completion %s: %w", id, getErr)
		}
	}

	c, err := s.repo.GetByCompletionID(ctx, id)
	if errors.Is(err, data.ErrCompletionNotFound) {
		return nil, apperrors.NotFound("Completion not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get completion %s: %w", id, err)
	}
	return c, nil
}

// List returns one page of records, newest first. Limit defaults to the
// configured page size and is clamped to the maximum; a negative offset is 0.
func (s *CompletionService) List(
	ctx context.Context,
	opts model.CompletionListOptions,
) (*model.CompletionListResponse, error) {
	if opts.Status != nil && !opts.Status.Valid() {
		return nil, apperrors.ValidationField("status", fmt.Sprintf("Invalid status: %s", *opts.Status))
	}
	opts = s.normalize(opts)

	rows, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	total, err := s.repo.Count(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("count completions: %w", err)
	}
	if rows == nil {
		rows = []*model.Completion{}
	}

	return &model.CompletionListResponse{
		Completions: rows,
		Count:       len(rows),
		Total:       total,
		Limit:       opts.Limit,
		Offset:      opts.Offset,
	}, nil
}

func (s *CompletionService) normalize(opts model.CompletionListOptions) model.CompletionListOptions {
	if opts.Limit <= 0 {
		opts.Limit = s.paging.DefaultPageSize
	}
	if opts.Limit > s.paging.MaxPageSize {
		opts.Limit = s.paging.MaxPageSize
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return opts
}

// QueueJob returns the queue view of a job on the completion queue.
func (s *CompletionService) QueueJob(ctx context.Context, jobID string) (*model.QueueJobView, error) {
	return s.resolver.ResolveQueueJob(ctx, s.queue, jobID)
}

// QueueJobByCompletionID returns the queue view of the job behind completionID.
// It is Unsupported when the record exists but has no job id recorded.
func (s *CompletionService) QueueJobByCompletionID(
	ctx context.Context,
	completionID string,
) (*model.QueueJobView, error) {
	jobID, err := s.jobIDFor(ctx, completionID, s.repo.GetByCompletionID)
	if err != nil {
		return nil, err
	}
	return s.resolver.ResolveQueueJob(ctx, s.queue, jobID)
}

// Status reports the queue status of the job behind the record identified by id
// (UUID or completionId). The callback cache is not consulted: its entries are
// keyed by job id alone and may belong to a task on another queue.
func (s *CompletionService) Status(ctx context.Context, id string) (*model.JobStatusView, error) {
	jobID, err := s.jobIDFor(ctx, id, func(ctx context.Context, id string) (*model.Completion, error) {
		c, getErr := s.Get(ctx, id)
		if apperrors.IsNotFound(getErr) {
			return nil, data.ErrCompletionNotFound
		}
		return c, getErr
	})
	if err != nil {
		return nil, err
	}
	return s.resolver.ResolveFromQueue(ctx, s.queue, jobID)
}

func (s *CompletionService) jobIDFor(
	ctx context.Context,
	id string,
	lookup func(context.Context, string) (*model.Completion, error),
) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", apperrors.ValidationField("completionId", "Missing required field: completionId")
	}
	c, err := lookup(ctx, id)
	if errors.Is(err, data.ErrCompletionNotFound) {
		return "", apperrors.NotFound("Completion not found")
	}
	if err != nil {
		return "", fmt.Errorf("get completion %s: %w", id, err)
	}
	if c.JobID == nil || *c.JobID == "" {
		if s.logger != nil {
			s.logger.DebugContext(ctx, "completion has no queue job", "completion_id", c.CompletionID)
		}
		return "", apperrors.Unsupported("Completion has no queue job recorded")
	}
	return *c.JobID, nil
}
