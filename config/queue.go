package config

import (
	"strings"
	"time"
)

// QueueConfig contains queue naming and default job options.
type QueueConfig struct {
	// Prefix namespaces every queue key in Redis.
	Prefix string `env:"QUEUE_PREFIX" envDefault:"bull"`

	// CompletionQueue receives AI completion jobs.
	CompletionQueue string `env:"QUEUE_COMPLETION_NAME" envDefault:"completion"`

	// CompletionJobName is the job name used for completion jobs.
	CompletionJobName string `env:"QUEUE_COMPLETION_JOB_NAME" envDefault:"process"`

	// TaskQueue receives generic named tasks.
	TaskQueue string `env:"QUEUE_TASK_NAME" envDefault:"emails"`

	// DefaultAttempts is the number of times a job is tried before it is failed permanently.
	DefaultAttempts int `env:"QUEUE_DEFAULT_ATTEMPTS" envDefault:"3"`

	// BackoffDelay is the base delay for exponential retry backoff.
	BackoffDelay time.Duration `env:"QUEUE_BACKOFF_DELAY" envDefault:"2s"`

	// RemoveOnComplete and RemoveOnFail drop finished job records instead of retaining them.
	RemoveOnComplete bool `env:"QUEUE_REMOVE_ON_COMPLETE" envDefault:"false"`
	RemoveOnFail     bool `env:"QUEUE_REMOVE_ON_FAIL"     envDefault:"false"`
}

// Sanitize applies guardrails to queue configuration values.
func (q *QueueConfig) Sanitize() {
	q.Prefix = strings.TrimSpace(q.Prefix)
	if q.Prefix == "" {
		q.Prefix = "bull"
	}
	if strings.TrimSpace(q.CompletionQueue) == "" {
		q.CompletionQueue = "completion"
	}
	if strings.TrimSpace(q.CompletionJobName) == "" {
		q.CompletionJobName = "process"
	}
	if strings.TrimSpace(q.TaskQueue) == "" {
		q.TaskQueue = "emails"
	}
	if q.DefaultAttempts < 1 {
		q.DefaultAttempts = 1
	}
	if q.BackoffDelay < 0 {
		q.BackoffDelay = 0
	}
}

// CompletionsConfig controls completion record listing.
type CompletionsConfig struct {
	// DefaultPageSize is used when the caller supplies no limit.
	DefaultPageSize int `env:"COMPLETIONS_DEFAULT_PAGE_SIZE" envDefault:"50"`

	// MaxPageSize clamps caller supplied limits.
	MaxPageSize int `env:"COMPLETIONS_MAX_PAGE_SIZE" envDefault:"100"`
}

// Sanitize applies guardrails to listing configuration values.
func (c *CompletionsConfig) Sanitize() {
	if c.MaxPageSize < 1 {
		c.MaxPageSize = 100
	}
	if c.DefaultPageSize < 1 {
		c.DefaultPageSize = 50
	}
	if c.DefaultPageSize > c.MaxPageSize {
		c.DefaultPageSize = c.MaxPageSize
	}
}
