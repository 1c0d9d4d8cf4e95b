// Package model defines the core data types shared by the job relay: queue jobs,
// callback results, status views and completion records.
package model

import (
	"encoding/json"
	"errors"
	"time"
)

// QueueState is the queue-native state of a job.
type QueueState string

const (
	// QueueStateWaiting indicates the job is waiting to be reserved by a worker.
	QueueStateWaiting QueueState = "waiting"
	// QueueStateActive indicates a worker holds the job.
	QueueStateActive QueueState = "active"
	// QueueStateCompleted indicates a worker finished the job successfully.
	QueueStateCompleted QueueState = "completed"
	// QueueStateFailed indicates all attempts were used up.
	QueueStateFailed QueueState = "failed"
	// QueueStateDelayed indicates the job is waiting out a retry backoff.
	QueueStateDelayed QueueState = "delayed"
	// QueueStateUnknown indicates the job hash exists but is in no state set.
	QueueStateUnknown QueueState = "unknown"
)

// ErrNoJobsAvailable is returned when no jobs are available for reservation.
var ErrNoJobsAvailable = errors.New("no jobs available")

// BackoffExponential doubles the delay after each failed attempt.
const BackoffExponential = "exponential"

// Backoff describes the retry delay policy of a job.
type Backoff struct {
	Type  string `json:"type"`
	Delay int64  `json:"delay"` // milliseconds
}

// JobOptions holds per-job retry and retention settings.
type JobOptions struct {
	Attempts         int     `json:"attempts"`
	Backoff          Backoff `json:"backoff"`
	RemoveOnComplete bool    `json:"removeOnComplete"`
	RemoveOnFail     bool    `json:"removeOnFail"`
}

// DefaultJobOptions returns 3 attempts, exponential backoff from 2s, and full retention.
func DefaultJobOptions() JobOptions {
	return JobOptions{
		Attempts: 3,
		Backoff:  Backoff{Type: BackoffExponential, Delay: 2000},
	}
}

// RetryDelay returns the backoff to wait before the next attempt,
// given the number of attempts already made.
func (o JobOptions) RetryDelay(attemptsMade int) time.Duration {
	if attemptsMade < 1 || o.Backoff.Delay <= 0 {
		return 0
	}
	delay := time.Duration(o.Backoff.Delay) * time.Millisecond
	if o.Backoff.Type != BackoffExponential {
		return delay
	}
	// Cap the shift so large attempt counts cannot overflow.
	shift := attemptsMade - 1
	if shift > 20 {
		shift = 20
	}
	return delay << shift
}

// EnqueueRequest describes a job to add to a named queue.
type EnqueueRequest struct {
	Queue string
	Name  string
	Data  json.RawMessage
	Opts  JobOptions
}

// QueuedJob is a job as stored by the queue backend.
type QueuedJob struct {
	ID           string          `json:"id"`
	Queue        string          `json:"queue"`
	Name         string          `json:"name"`
	Data         json.RawMessage `json:"data"`
	Opts         JobOptions      `json:"opts"`
	Progress     json.RawMessage `json:"progress"`
	AttemptsMade int             `json:"attemptsMade"`
	Timestamp    int64           `json:"timestamp"`
	ProcessedOn  *int64          `json:"processedOn,omitempty"`
	FinishedOn   *int64          `json:"finishedOn,omitempty"`
	FailedReason string          `json:"failedReason,omitempty"`
	Stacktrace   []string        `json:"stacktrace,omitempty"`
	ReturnValue  json.RawMessage `json:"returnvalue,omitempty"`
}

// QueueJobView is the queue-only view of a job used by completion lookups.
type QueueJobView struct {
	JobID        string          `json:"jobId"`
	Name         string          `json:"name"`
	Data         json.RawMessage `json:"data"`
	State        QueueState      `json:"state"`
	Progress     json.RawMessage `json:"progress"`
	ProcessedOn  *int64          `json:"processedOn"`
	FinishedOn   *int64          `json:"finishedOn"`
	FailedReason *string         `json:"failedReason"`
	Stacktrace   []string        `json:"stacktrace"`
	AttemptsMade int             `json:"attemptsMade"`
}

// NewQueueJobView builds the queue view for a job in the given state.
func NewQueueJobView(job *QueuedJob, state QueueState) *QueueJobView {
	view := &QueueJobView{
		JobID:        job.ID,
		Name:         job.Name,
		Data:         job.Data,
		State:        state,
		Progress:     job.Progress,
		ProcessedOn:  job.ProcessedOn,
		FinishedOn:   job.FinishedOn,
		Stacktrace:   job.Stacktrace,
		AttemptsMade: job.AttemptsMade,
	}
	if job.FailedReason != "" {
		reason := job.FailedReason
		view.FailedReason = &reason
	}
	if view.Stacktrace == nil {
		view.Stacktrace = []string{}
	}
	return view
}

// QueueCounts reports how many jobs a queue holds per state.
type QueueCounts struct {
	Waiting   int64 `json:"waiting"   yaml:"waiting"`
	Active    int64 `json:"active"    yaml:"active"`
	Delayed   int64 `json:"delayed"   yaml:"delayed"`
	Completed int64 `json:"completed" yaml:"completed"`
	Failed    int64 `json:"failed"    yaml:"failed"`
}

// CreateTaskRequest is the body of a task submission.
type CreateTaskRequest struct {
	Name string          `json:"name"           validate:"required,notblank,max=200"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Validate validates the CreateTaskRequest fields.
func (r *CreateTaskRequest) Validate() error {
	return validateStruct(r)
}

// SubmitTaskResponse is returned after a task has been queued.
type SubmitTaskResponse struct {
	JobID  string `json:"jobId"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// SubmissionStatusQueued is the status reported for freshly submitted work.
const SubmissionStatusQueued = "queued"
