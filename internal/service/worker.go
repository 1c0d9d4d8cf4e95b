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
	"github.com/target/jobrelay/internal/data"
	"github.com/target/jobrelay/internal/domain/model"
	"github.com/target/jobrelay/internal/observability/metrics"
	"golang.org/x/sync/errgroup"
)

// Queue failure reasons recorded by the worker.
const (
	reasonRecordNotFound = "completion record not found"
	reasonInvalidData    = "invalid completion job data"
	reasonLocked         = "completion is being processed by another worker"
)

// settleTimeout bounds the queue and record updates made after the job context ends.
const settleTimeout = 10 * time.Second

// CompletionWorkerConfig tunes the completion worker.
type CompletionWorkerConfig struct {
	Queue          string
	Concurrency    int
	PollInterval   time.Duration
	RequestTimeout time.Duration
	// LockTTL bounds the per-completion lease. Defaults to twice RequestTimeout.
	LockTTL time.Duration
}

// CompletionWorkerOptions groups dependencies for CompletionWorker.
type CompletionWorkerOptions struct {
	Queue    core.QueueWorker            // Required: queue consumer
	Records  core.CompletionTransitioner // Required: record lifecycle
	Provider core.CompletionProvider     // Required: AI provider
	Locks    core.CacheRepository        // Optional: per-completion lease across replicas
	Config   CompletionWorkerConfig
	Logger   *slog.Logger      // Optional: structured logger
	Metrics  *metrics.Recorder // Optional: Prometheus recorder
	Now      func() time.Time  // Optional: defaults to time.Now
}

// CompletionWorker consumes the completion queue in process. For each job it
// moves the record pending → processing, calls the provider, then records the
// outcome on the record and as the queue job's return value. It never writes
// the callback result cache: job ids are only unique within one queue.
//
// A failed attempt that the queue will retry leaves the record in processing;
// the record is failed only once the queue gives up on the job.
type CompletionWorker struct {
	queue    core.QueueWorker
	records  core.CompletionTransitioner
	provider core.CompletionProvider
	locks    core.CacheRepository
	cfg      CompletionWorkerConfig
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Recorder
}

// NewCompletionWorker constructs a new CompletionWorker.
func NewCompletionWorker(opts CompletionWorkerOptions) (*CompletionWorker, error) {
	if opts.Queue == nil {
		return nil, errors.New("QueueWorker is required")
	}
	if opts.Records == nil {
		return nil, errors.New("CompletionTransitioner is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("CompletionProvider is required")
	}
	cfg := opts.Config
	if strings.TrimSpace(cfg.Queue) == "" {
		return nil, errors.New("completion queue name is required")
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * cfg.RequestTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "completion_worker", "provider", opts.Provider.Name())
		logger.Debug("CompletionWorker initialized",
			"queue", cfg.Queue,
			"concurrency", cfg.Concurrency,
			"poll_interval", cfg.PollInterval,
		)
	}

	return &CompletionWorker{
		queue:    opts.Queue,
		records:  opts.Records,
		provider: opts.Provider,
		locks:    opts.Locks,
		cfg:      cfg,
		now:      now,
		logger:   logger,
		metrics:  opts.Metrics,
	}, nil
}

// Run processes jobs on Concurrency goroutines until ctx is cancelled.
// Returns nil on graceful shutdown.
func (w *CompletionWorker) Run(ctx context.Context) error {
	if w.logger != nil {
		w.logger.InfoContext(ctx, "starting completion worker", "concurrency", w.cfg.Concurrency)
	}

	g, gctx := errgroup.WithContext(ctx)
	for range w.cfg.Concurrency {
		g.Go(func() error { return w.loop(gctx) })
	}
	err := g.Wait()

	if w.logger != nil {
		w.logger.InfoContext(ctx, "completion worker stopped", "reason", ctx.Err())
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *CompletionWorker) loop(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		processed, err := w.ProcessNext(ctx)
		if err != nil && w.logger != nil && !isContextCancellation(err) {
			w.logger.ErrorContext(ctx, "completion job failed", "error", err)
		}
		if processed {
			timer.Reset(0)
			continue
		}
		timer.Reset(w.cfg.PollInterval)
	}
}

// ProcessNext reserves and processes one job. It reports false when the queue was idle.
func (w *CompletionWorker) ProcessNext(ctx context.Context) (bool, error) {
	job, err := w.queue.Reserve(ctx, w.cfg.Queue)
	if errors.Is(err, model.ErrNoJobsAvailable) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reserve completion job: %w", err)
	}
	return true, w.process(ctx, job)
}

// completionResult is the payload stored as the queue return value.
type completionResult struct {
	CompletionID   string `json:"completionId"`
	Status         string `json:"status"`
	Content        string `json:"content,omitempty"`
	FinishReason   string `json:"finishReason,omitempty"`
	PromptTokens   int    `json:"promptTokens,omitempty"`
	ResponseTokens int    `json:"responseTokens,omitempty"`
	TotalTokens    int    `json:"totalTokens,omitempty"`
}

func (w *CompletionWorker) process(ctx context.Context, job *model.QueuedJob) error {
	start := w.now()

	var payload model.CompletionJobData
	if err := json.Unmarshal(job.Data, &payload); err != nil || strings.TrimSpace(payload.CompletionID) == "" {
		_, failErr := w.failJob(ctx, job.ID, reasonInvalidData)
		return errors.Join(fmt.Errorf("job %s: %s", job.ID, reasonInvalidData), failErr)
	}
	cid := payload.CompletionID
	log := w.jobLogger(job.ID, cid)

	release, ok, err := w.acquire(ctx, cid, job.ID)
	if err != nil {
		_, failErr := w.failJob(ctx, job.ID, err.Error())
		return errors.Join(err, failErr)
	}
	if !ok {
		_, failErr := w.failJob(ctx, job.ID, reasonLocked)
		return failErr
	}
	defer release()

	if _, err = w.records.MarkProcessing(ctx, cid); err != nil {
		return w.handleMarkProcessingError(ctx, job, cid, err)
	}
	w.metrics.JobLifecycle(metrics.JobMetric{Transition: "processing", Result: metrics.ResultSuccess})

	out, callErr := w.callProvider(ctx, payload)
	if callErr != nil {
		if log != nil {
			log.WarnContext(ctx, "provider call failed", "attempt", job.AttemptsMade+1, "error", callErr)
		}
		return w.recordFailure(ctx, job, cid, callErr, start)
	}
	return w.recordSuccess(ctx, job, cid, out, start)
}

func (w *CompletionWorker) handleMarkProcessingError(
	ctx context.Context,
	job *model.QueuedJob,
	cid string,
	err error,
) error {
	switch {
	case errors.Is(err, data.ErrCompletionNotFound):
		_, failErr := w.failJob(ctx, job.ID, reasonRecordNotFound)
		w.metrics.JobLifecycle(metrics.JobMetric{Transition: "processing", Result: metrics.ResultError, Err: err})
		return errors.Join(fmt.Errorf("completion %s: %w", cid, err), failErr)
	case errors.Is(err, data.ErrInvalidTransition):
		// Already terminal: a redelivered job or a record failed by the reaper.
		w.metrics.JobLifecycle(metrics.JobMetric{Transition: "processing", Result: metrics.ResultNoop})
		if l := w.jobLogger(job.ID, cid); l != nil {
			l.InfoContext(ctx, "completion already finished, skipping job")
		}
		return w.completeJob(ctx, job.ID, completionResult{CompletionID: cid, Status: "skipped"})
	default:
		_, failErr := w.failJob(ctx, job.ID, err.Error())
		return errors.Join(fmt.Errorf("mark completion %s processing: %w", cid, err), failErr)
	}
}

func (w *CompletionWorker) callProvider(ctx context.Context, payload model.CompletionJobData) (*model.CompletionOutput, error) {
	cctx, cancel := context.WithTimeout(ctx, w.cfg.RequestTimeout)
	defer cancel()

	started := time.Now()
	out, err := w.provider.Complete(cctx, payload.Prompt())
	if err == nil && out == nil {
		err = errors.New("provider returned no output")
	}
	var prompt, response int
	if out != nil {
		prompt, response = out.PromptTokens, out.ResponseTokens
	}
	w.metrics.ProviderCall(w.provider.Name(), payload.Model, prompt, response, time.Since(started), err == nil)
	return out, err
}

func (w *CompletionWorker) recordSuccess(
	ctx context.Context,
	job *model.QueuedJob,
	cid string,
	out *model.CompletionOutput,
	start time.Time,
) error {
	sctx, cancel := settleContext(ctx)
	defer cancel()

	if _, err := w.records.MarkCompleted(sctx, cid, *out); err != nil {
		if !errors.Is(err, data.ErrInvalidTransition) {
			w.metrics.JobLifecycle(metrics.JobMetric{Transition: "completed", Result: metrics.ResultError, Err: err})
			_, failErr := w.failJob(sctx, job.ID, err.Error())
			return errors.Join(fmt.Errorf("mark completion %s completed: %w", cid, err), failErr)
		}
		if l := w.jobLogger(job.ID, cid); l != nil {
			l.WarnContext(ctx, "completion finished elsewhere before provider response was stored")
		}
	}

	res := completionResult{
		CompletionID:   cid,
		Status:         string(model.CompletionStatusCompleted),
		Content:        out.Content,
		FinishReason:   out.FinishReason,
		PromptTokens:   out.PromptTokens,
		ResponseTokens: out.ResponseTokens,
		TotalTokens:    out.TotalTokens,
	}
	err := w.completeJob(sctx, job.ID, res)
	w.metrics.JobLifecycle(metrics.JobMetric{
		Transition: "completed",
		Result:     resultLabel(err),
		Duration:   w.now().Sub(start),
		Err:        err,
	})
	if err == nil {
		if l := w.jobLogger(job.ID, cid); l != nil {
			l.InfoContext(ctx, "completion finished", "total_tokens", out.TotalTokens)
		}
	}
	return err
}

func (w *CompletionWorker) recordFailure(
	ctx context.Context,
	job *model.QueuedJob,
	cid string,
	callErr error,
	start time.Time,
) error {
	sctx, cancel := settleContext(ctx)
	defer cancel()

	reason := callErr.Error()
	state, err := w.failJob(sctx, job.ID, reason)
	if err != nil {
		return errors.Join(callErr, err)
	}
	if state != model.QueueStateFailed {
		w.metrics.JobLifecycle(metrics.JobMetric{Transition: "retry", Result: metrics.ResultError, Err: callErr})
		return fmt.Errorf("completion %s attempt failed: %w", cid, callErr)
	}

	if _, markErr := w.records.MarkFailed(sctx, cid, reason); markErr != nil && !errors.Is(markErr, data.ErrInvalidTransition) {
		err = fmt.Errorf("mark completion %s failed: %w", cid, markErr)
	}
	w.metrics.JobLifecycle(metrics.JobMetric{
		Transition: "failed",
		Result:     metrics.ResultError,
		Duration:   w.now().Sub(start),
		Err:        callErr,
	})
	return errors.Join(fmt.Errorf("completion %s failed: %w", cid, callErr), err)
}

func (w *CompletionWorker) acquire(ctx context.Context, cid, jobID string) (func(), bool, error) {
	if w.locks == nil {
		return func() {}, true, nil
	}
	key := "lock:completion:" + cid
	ok, err := w.locks.SetIfNotExists(ctx, key, []byte(jobID), w.cfg.LockTTL)
	if err != nil {
		return nil, false, fmt.Errorf("acquire completion lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		rctx, cancel := settleContext(ctx)
		defer cancel()
		if _, delErr := w.locks.Delete(rctx, key); delErr != nil && w.logger != nil {
			w.logger.WarnContext(ctx, "failed to release completion lock", "completion_id", cid, "error", delErr)
		}
	}, true, nil
}

func (w *CompletionWorker) failJob(ctx context.Context, jobID, reason string) (model.QueueState, error) {
	sctx, cancel := settleContext(ctx)
	defer cancel()
	state, err := w.queue.Fail(sctx, w.cfg.Queue, jobID, reason)
	if err != nil {
		return state, fmt.Errorf("fail job %s: %w", jobID, err)
	}
	return state, nil
}

func (w *CompletionWorker) completeJob(ctx context.Context, jobID string, res completionResult) error {
	body, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode job result: %w", err)
	}
	sctx, cancel := settleContext(ctx)
	defer cancel()
	if err := w.queue.Complete(sctx, w.cfg.Queue, jobID, body); err != nil {
		return fmt.Errorf("complete job %s: %w", jobID, err)
	}
	return nil
}

func (w *CompletionWorker) jobLogger(jobID, cid string) *slog.Logger {
	if w.logger == nil {
		return nil
	}
	return w.logger.With("job_id", jobID, "completion_id", cid)
}

// settleContext detaches from cancellation so a shutdown mid-job still records the outcome.
func settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
}

func resultLabel(err error) string {
	if err != nil {
		return metrics.ResultError
	}
	return metrics.ResultSuccess
}
