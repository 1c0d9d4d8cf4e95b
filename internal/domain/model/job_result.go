package model

import (
	"encoding/json"
	"time"
)

// JobResultStatus is the terminal status reported by a worker callback.
type JobResultStatus string

const (
	// JobResultCompleted reports a successful job.
	JobResultCompleted JobResultStatus = "completed"
	// JobResultFailed reports a failed job.
	JobResultFailed JobResultStatus = "failed"
)

// Valid returns true if the status is terminal.
func (s JobResultStatus) Valid() bool {
	return s == JobResultCompleted || s == JobResultFailed
}

// JobResult is a terminal outcome held by the result cache.
// CompletedAt is the ingestion time, not the worker's finish time.
type JobResult struct {
	Status      JobResultStatus `json:"status"`
	Result      json.RawMessage `json:"result"`
	CompletedAt time.Time       `json:"completedAt"`
}

// Clone returns a deep copy so callers never share the result buffer.
func (r *JobResult) Clone() *JobResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.Result != nil {
		out.Result = append(json.RawMessage(nil), r.Result...)
	}
	return &out
}

// CallbackRequest is the body a worker posts when a job reaches a terminal status.
type CallbackRequest struct {
	JobID  string          `json:"jobId"            validate:"required,notblank"`
	Status JobResultStatus `json:"status"           validate:"oneof=completed failed"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Validate validates the CallbackRequest fields.
func (r *CallbackRequest) Validate() error {
	return validateStruct(r)
}

// CallbackResponse acknowledges an accepted callback.
type CallbackResponse struct {
	Success bool `json:"success"`
}

// StatusSource names where a status view was read from.
type StatusSource string

const (
	// StatusSourceCache marks a view served from the result cache.
	StatusSourceCache StatusSource = "cache"
	// StatusSourceQueue marks a view served from the queue backend.
	StatusSourceQueue StatusSource = "queue"
)

// JobStatusView is the reconciled status of a job.
// Cache views carry Result and CompletedAt; queue views carry Name, Data and Progress.
type JobStatusView struct {
	JobID        string          `json:"jobId"`
	Name         string          `json:"name,omitempty"`
	Status       string          `json:"status"`
	Result       json.RawMessage `json:"result,omitempty"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	Progress     json.RawMessage `json:"progress,omitempty"`
	FailedReason string          `json:"failedReason,omitempty"`
	Stacktrace   []string        `json:"stacktrace,omitempty"`
	AttemptsMade int             `json:"attemptsMade,omitempty"`
	Source       StatusSource    `json:"-"`
}

// NewCacheStatusView builds a status view from a cached callback result.
func NewCacheStatusView(jobID string, r *JobResult) *JobStatusView {
	completedAt := r.CompletedAt
	result := r.Result
	if result == nil {
		result = json.RawMessage("null")
	}
	return &JobStatusView{
		JobID:       jobID,
		Status:      string(r.Status),
		Result:      result,
		CompletedAt: &completedAt,
		Source:      StatusSourceCache,
	}
}

// NewQueueStatusView builds a status view from the queue's record of a job.
func NewQueueStatusView(job *QueuedJob, state QueueState) *JobStatusView {
	return &JobStatusView{
		JobID:        job.ID,
		Name:         job.Name,
		Status:       string(state),
		Data:         job.Data,
		Progress:     job.Progress,
		FailedReason: job.FailedReason,
		Stacktrace:   job.Stacktrace,
		AttemptsMade: job.AttemptsMade,
		Source:       StatusSourceQueue,
	}
}
