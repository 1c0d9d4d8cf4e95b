package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CompletionStatus represents the lifecycle status of a completion record.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type CompletionStatus string

const (
	// CompletionStatusPending indicates the record was created and its job is queued.
	CompletionStatusPending CompletionStatus = "pending"
	// CompletionStatusProcessing indicates a worker has picked up the job.
	CompletionStatusProcessing CompletionStatus = "processing"
	// CompletionStatusCompleted indicates the provider returned a response.
	CompletionStatusCompleted CompletionStatus = "completed"
	// CompletionStatusFailed indicates the completion could not be produced.
	CompletionStatusFailed CompletionStatus = "failed"
)

// Valid returns true if the CompletionStatus is valid.
func (s CompletionStatus) Valid() bool {
	return s == CompletionStatusPending || s == CompletionStatusProcessing ||
		s == CompletionStatusCompleted || s == CompletionStatusFailed
}

// UnmarshalText implements encoding.TextUnmarshaler so statuses can be parsed from query strings.
func (s *CompletionStatus) UnmarshalText(text []byte) error {
	v := CompletionStatus(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid completion status: %q", string(text))
	}
	*s = v
	return nil
}

// Terminal reports whether no further transitions can occur.
func (s CompletionStatus) Terminal() bool {
	return s == CompletionStatusCompleted || s == CompletionStatusFailed
}

// Rank orders statuses along the lifecycle. Both terminal states share a rank.
func (s CompletionStatus) Rank() int {
	switch s {
	case CompletionStatusPending:
		return 0
	case CompletionStatusProcessing:
		return 1
	case CompletionStatusCompleted, CompletionStatusFailed:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Re-applying the current status is allowed so that redelivery is a no-op;
// moving backwards or between the two terminal states is not.
func (s CompletionStatus) CanTransitionTo(next CompletionStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	return next.Rank() > s.Rank()
}

// Predecessors returns the statuses from which s may be entered, including s itself.
func (s CompletionStatus) Predecessors() []CompletionStatus {
	all := []CompletionStatus{
		CompletionStatusPending,
		CompletionStatusProcessing,
		CompletionStatusCompleted,
		CompletionStatusFailed,
	}
	out := make([]CompletionStatus, 0, len(all))
	for _, from := range all {
		if from.CanTransitionTo(s) {
			out = append(out, from)
		}
	}
	return out
}

// Completion is one AI completion request/response cycle.
type Completion struct {
	ID              string           `json:"id"                        db:"id"`
	CompletionID    string           `json:"completionId"              db:"completion_id"`
	JobID           *string          `json:"jobId,omitempty"           db:"job_id"`
	Model           string           `json:"model"                     db:"model"`
	UserMessage     string           `json:"userMessage"               db:"user_message"`
	SystemMessage   *string          `json:"systemMessage"             db:"system_message"`
	Status          CompletionStatus `json:"status"                    db:"status"`
	ResponseContent *string          `json:"responseContent"           db:"response_content"`
	ResponseTokens  *int             `json:"responseTokens"            db:"response_tokens"`
	PromptTokens    *int             `json:"promptTokens"              db:"prompt_tokens"`
	TotalTokens     *int             `json:"totalTokens"               db:"total_tokens"`
	FinishReason    *string          `json:"finishReason"              db:"finish_reason"`
	RawResponse     json.RawMessage  `json:"rawResponse"               db:"raw_response"`
	ErrorMessage    *string          `json:"errorMessage"              db:"error_message"`
	AttemptedAt     *time.Time       `json:"attemptedAt"               db:"attempted_at"`
	CompletedAt     *time.Time       `json:"completedAt"               db:"completed_at"`
	CreatedAt       time.Time        `json:"createdAt"                 db:"created_at"`
	UpdatedAt       time.Time        `json:"updatedAt"                 db:"updated_at"`
}

// CreateCompletionRequest is the body of a completion submission.
type CreateCompletionRequest struct {
	Model         string  `json:"model"                   validate:"required,notblank,max=200"`
	Content       string  `json:"content"                 validate:"required,notblank"`
	SystemMessage *string `json:"systemMessage,omitempty"`
}

// Validate validates the CreateCompletionRequest fields.
func (r *CreateCompletionRequest) Validate() error {
	return validateStruct(r)
}

// CreateCompletionParams holds the values persisted for a new pending record.
type CreateCompletionParams struct {
	CompletionID  string
	Model         string
	UserMessage   string
	SystemMessage *string
}

// CompletionJobData is the queue payload for a completion job.
type CompletionJobData struct {
	CompletionID  string  `json:"completionId"`
	Model         string  `json:"model"`
	Content       string  `json:"content"`
	SystemMessage *string `json:"systemMessage,omitempty"`
}

// Prompt returns the provider input carried by the job.
func (d CompletionJobData) Prompt() CompletionPrompt {
	return CompletionPrompt{Model: d.Model, Content: d.Content, SystemMessage: d.SystemMessage}
}

// CompletionPrompt is the input sent to an AI provider.
type CompletionPrompt struct {
	Model         string
	Content       string
	SystemMessage *string
}

// SubmitCompletionResponse is returned after a completion has been queued.
type SubmitCompletionResponse struct {
	JobID        string `json:"jobId"`
	Status       string `json:"status"`
	CompletionID string `json:"completionId"`
}

// CompletionOutput carries a provider response into the completed state.
type CompletionOutput struct {
	Content        string
	PromptTokens   int
	ResponseTokens int
	TotalTokens    int
	FinishReason   string
	RawResponse    json.RawMessage
}

// CompletionListOptions filters and paginates completion listings.
type CompletionListOptions struct {
	Status *CompletionStatus
	Limit  int
	Offset int
}

// CompletionListResponse is the body of a completion listing.
type CompletionListResponse struct {
	Completions []*Completion `json:"completions"`
	Count       int           `json:"count"`
	Total       int           `json:"total"`
	Limit       int           `json:"limit"`
	Offset      int           `json:"offset"`
}
