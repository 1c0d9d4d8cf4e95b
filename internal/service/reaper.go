package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/target/jobrelay/config"
	"github.com/target/jobrelay/internal/core"
	"github.com/target/jobrelay/internal/domain/model"
	"github.com/target/jobrelay/internal/observability/metrics"
)

// Reaper step names used in logs and metrics.
const (
	stepFailPending    = "fail_pending"
	stepCleanCompleted = "clean_completed_jobs"
	stepCleanFailed    = "clean_failed_jobs"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo    core.ReaperRepository // Required: completion record cleanup
	Janitor core.QueueJanitor     // Optional: finished job cleanup in the queues
	Config  config.ReaperConfig   // Required: reaper configuration
	Queues  []string              // Queues cleaned by Janitor
	Logger  *slog.Logger          // Optional: structured logger
	Metrics *metrics.Recorder     // Optional: Prometheus recorder
}

// ReaperService provides periodic cleanup.
//
// This service manages:
// - Failing completion records stuck in pending past the configured age.
// - Removing completed queue jobs older than the retention window.
// - Removing failed queue jobs older than the retention window.
type ReaperService struct {
	repo    core.ReaperRepository
	janitor core.QueueJanitor
	queues  []string
	config  config.ReaperConfig
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ReaperRepository is required")
	}
	if opts.Config.Interval <= 0 {
		return nil, errors.New("reaper interval must be positive")
	}

	queues := make([]string, 0, len(opts.Queues))
	seen := make(map[string]bool, len(opts.Queues))
	for _, q := range opts.Queues {
		q = strings.TrimSpace(q)
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		queues = append(queues, q)
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", opts.Config.Interval,
			"pending_max_age", opts.Config.PendingMaxAge,
			"queue_retention", opts.Config.QueueRetention,
			"queues", queues,
		)
	}

	return &ReaperService{
		repo:    opts.Repo,
		janitor: opts.Janitor,
		queues:  queues,
		config:  opts.Config,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// MustNewReaperService constructs a new ReaperService and panics on error.
func MustNewReaperService(opts ReaperServiceOptions) *ReaperService {
	svc, err := NewReaperService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create ReaperService: %v", err))
	}
	return svc
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	// Jitter keeps replicas that start together from cleaning in lockstep.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.RunOnce(ctx); err != nil {
		s.logCleanupError(err, "initial cleanup")
	}

	return s.runLoop(ctx, ticker)
}

// waitWithJitter sleeps a random delay of up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

func (s *ReaperService) runLoop(ctx context.Context, ticker *time.Ticker) error {
	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logCleanupError(err, "cleanup")
			}
		}
	}
}

// RunOnce performs every cleanup step once. A failing step does not stop the others.
func (s *ReaperService) RunOnce(ctx context.Context) error {
	start := time.Now()
	var (
		errs               []error
		allContextCanceled = true
		total              int64
	)

	for _, step := range s.steps() {
		count, err := step.fn(ctx)
		total += count
		s.metrics.Reaped(step.label, count)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.label, err))
			allContextCanceled = allContextCanceled && isContextCancellation(err)
		}
	}

	joined := errors.Join(errs...)
	s.metrics.ReaperRun(suppressContextCancellation(joined))
	if s.logger != nil && total > 0 {
		s.logger.DebugContext(ctx, "cleanup pass finished", "count", total, "elapsed", time.Since(start))
	}

	if joined != nil {
		if allContextCanceled {
			return context.Canceled
		}
		return fmt.Errorf("cleanup failed: %w", joined)
	}
	return nil
}

type cleanupStep struct {
	label string
	fn    func(context.Context) (int64, error)
}

func (s *ReaperService) steps() []cleanupStep {
	steps := []cleanupStep{{label: stepFailPending, fn: s.failStalePending}}
	if s.janitor == nil || s.config.QueueRetention <= 0 || len(s.queues) == 0 {
		return steps
	}
	return append(steps,
		cleanupStep{label: stepCleanCompleted, fn: func(ctx context.Context) (int64, error) {
			return s.cleanQueues(ctx, model.QueueStateCompleted)
		}},
		cleanupStep{label: stepCleanFailed, fn: func(ctx context.Context) (int64, error) {
			return s.cleanQueues(ctx, model.QueueStateFailed)
		}},
	)
}

// failStalePending fails pending records older than the configured max age,
// batch by batch until a batch comes back empty.
func (s *ReaperService) failStalePending(ctx context.Context) (int64, error) {
	total, err := drainBatches(ctx, func(ctx context.Context) (int64, error) {
		return s.repo.FailStalePending(ctx, s.config.PendingMaxAge, s.config.BatchSize)
	})
	if total > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "failed stale pending completions",
			"count", total,
			"max_age", s.config.PendingMaxAge,
		)
	}
	return total, err
}

// cleanQueues removes finished jobs in state older than the retention window from every queue.
func (s *ReaperService) cleanQueues(ctx context.Context, state model.QueueState) (int64, error) {
	var total int64
	for _, q := range s.queues {
		n, err := drainBatches(ctx, func(ctx context.Context) (int64, error) {
			return s.janitor.Clean(ctx, q, state, s.config.QueueRetention, s.config.BatchSize)
		})
		total += n
		if n > 0 && s.logger != nil {
			s.logger.InfoContext(ctx, "cleaned finished queue jobs",
				"queue", q,
				"state", state,
				"count", n,
				"retention", s.config.QueueRetention,
			)
		}
		if err != nil {
			return total, fmt.Errorf("queue %s: %w", q, err)
		}
	}
	return total, nil
}

// drainBatches calls fn until it reports zero affected items.
func drainBatches(ctx context.Context, fn func(context.Context) (int64, error)) (int64, error) {
	var total int64
	for {
		count, err := fn(ctx)
		if err != nil {
			return total, err
		}
		total += count
		if count == 0 {
			return total, nil
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
}

func (s *ReaperService) logCleanupError(err error, label string) {
	if err == nil || s.logger == nil {
		return
	}

	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}

	s.logger.Error(label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
