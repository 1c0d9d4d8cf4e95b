package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/target/jobrelay/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// EnqueueFunc enqueues the job for a freshly committed record and returns the queue job id.
type EnqueueFunc func(ctx context.Context, c *model.Completion) (string, error)

// CreatePendingParams groups parameters for CompletionRepository.CreatePending.
type CreatePendingParams struct {
	Completion model.CreateCompletionParams
	// Enqueue runs after the pending record is committed. An error deletes the record.
	Enqueue EnqueueFunc
}

// CompletionRepository defines the interface for completion record operations.
// Lookups return data.ErrCompletionNotFound when no record matches.
type CompletionRepository interface {
	// CreatePending commits a pending record, runs Enqueue and stores the
	// returned job id on the record.
	CreatePending(ctx context.Context, params CreatePendingParams) (*model.Completion, error)
	GetByID(ctx context.Context, id string) (*model.Completion, error)
	GetByCompletionID(ctx context.Context, completionID string) (*model.Completion, error)
	List(ctx context.Context, opts model.CompletionListOptions) ([]*model.Completion, error)
	Count(ctx context.Context, opts model.CompletionListOptions) (int, error)
}

// CompletionTransitioner advances completion records through their lifecycle.
// Transitions are monotonic; re-applying the current status returns the stored record unchanged.
type CompletionTransitioner interface {
	MarkProcessing(ctx context.Context, completionID string) (*model.Completion, error)
	MarkCompleted(ctx context.Context, completionID string, out model.CompletionOutput) (*model.Completion, error)
	MarkFailed(ctx context.Context, completionID, errMsg string) (*model.Completion, error)
}

// ReaperRepository defines the interface for stale record cleanup.
type ReaperRepository interface {
	FailStalePending(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
}

// QueueClient is the producer and reader side of the job queue.
type QueueClient interface {
	Enqueue(ctx context.Context, req model.EnqueueRequest) (string, error)
	// GetJob returns nil, nil when the queue holds no job with that id.
	GetJob(ctx context.Context, queue, jobID string) (*model.QueuedJob, error)
	GetState(ctx context.Context, queue, jobID string) (model.QueueState, error)
	Remove(ctx context.Context, queue, jobID string) error
}

// QueueWorker is the consumer side of the job queue.
type QueueWorker interface {
	// Reserve moves the next ready job to active. It returns model.ErrNoJobsAvailable when the queue is idle.
	Reserve(ctx context.Context, queue string) (*model.QueuedJob, error)
	Complete(ctx context.Context, queue, jobID string, returnValue json.RawMessage) error
	// Fail records a failed attempt and reports the resulting state:
	// delayed when a retry is scheduled, failed when attempts are exhausted.
	Fail(ctx context.Context, queue, jobID, reason string) (model.QueueState, error)
	UpdateProgress(ctx context.Context, queue, jobID string, progress json.RawMessage) error
}

// QueueInspector reports queue-level statistics.
type QueueInspector interface {
	Counts(ctx context.Context, queue string) (model.QueueCounts, error)
}

// QueueJanitor removes finished jobs from a queue.
type QueueJanitor interface {
	// Clean deletes up to limit jobs in state (completed or failed) that finished before olderThan ago.
	Clean(ctx context.Context, queue string, state model.QueueState, olderThan time.Duration, limit int) (int64, error)
}

// CompletionProvider produces a completion from an AI model.
type CompletionProvider interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	Complete(ctx context.Context, prompt model.CompletionPrompt) (*model.CompletionOutput, error)
}
