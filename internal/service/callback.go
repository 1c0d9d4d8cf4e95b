package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/target/jobrelay/internal/core"
	"github.com/target/jobrelay/internal/domain/model"
	apperrors "github.com/target/jobrelay/internal/errors"
	"github.com/target/jobrelay/internal/observability/metrics"
)

// CallbackServiceOptions groups dependencies for CallbackService.
type CallbackServiceOptions struct {
	Cache   core.ResultCache  // Required: callback result cache
	Logger  *slog.Logger      // Optional: structured logger
	Metrics *metrics.Recorder // Optional: Prometheus recorder
	// Now overrides the ingestion clock. Defaults to time.Now.
	Now func() time.Time
}

// CallbackService records terminal job outcomes pushed by workers.
//
// Ingestion is last-write-wins: a second callback for the same job replaces
// the first, whatever its status, and the job is not checked against the
// queue. Callers that need stronger guarantees must dedupe upstream.
type CallbackService struct {
	cache   core.ResultCache
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// NewCallbackService constructs a new CallbackService.
func NewCallbackService(opts CallbackServiceOptions) (*CallbackService, error) {
	if opts.Cache == nil {
		return nil, errors.New("ResultCache is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "callback_service")
	}

	return &CallbackService{
		cache:   opts.Cache,
		now:     now,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// MustNewCallbackService constructs a new CallbackService and panics on error.
func MustNewCallbackService(opts CallbackServiceOptions) *CallbackService {
	svc, err := NewCallbackService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create CallbackService: %v", err))
	}
	return svc
}

// Ingest validates req and stores its outcome under the trimmed req.JobID, the
// same key status lookups read. Invalid requests leave the cache untouched.
func (s *CallbackService) Ingest(ctx context.Context, req *model.CallbackRequest) error {
	if req == nil {
		return apperrors.Validation("request body is required")
	}
	if err := req.Validate(); err != nil {
		s.metrics.Callback("invalid", err)
		return err
	}

	jobID := strings.TrimSpace(req.JobID)
	result := req.Result
	if len(result) == 0 {
		result = json.RawMessage("null")
	}

	err := s.cache.Set(ctx, jobID, &model.JobResult{
		Status:      req.Status,
		Result:      result,
		CompletedAt: s.now().UTC(),
	})
	s.metrics.Callback(string(req.Status), err)
	if err != nil {
		return fmt.Errorf("store callback result for job %s: %w", jobID, err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "callback received",
			"job_id", jobID,
			"status", req.Status,
			"result_bytes", len(req.Result),
		)
	}
	return nil
}
