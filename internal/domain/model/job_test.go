//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/target/jobrelay/internal/errors"
)

func TestJobOptions_RetryDelay(t *testing.T) {
	opts := DefaultJobOptions()

	assert.Equal(t, 3, opts.Attempts)
	assert.False(t, opts.RemoveOnComplete)
	assert.False(t, opts.RemoveOnFail)

	assert.Equal(t, time.Duration(0), opts.RetryDelay(0))
	assert.Equal(t, 2*time.Second, opts.RetryDelay(1))
	assert.Equal(t, 4*time.Second, opts.RetryDelay(2))
	assert.Equal(t, 8*time.Second, opts.RetryDelay(3))

	fixed := JobOptions{Attempts: 5, Backoff: Backoff{Type: "fixed", Delay: 500}}
	assert.Equal(t, 500*time.Millisecond, fixed.RetryDelay(4))

	huge := opts.RetryDelay(500)
	assert.Positive(t, huge, "large attempt counts must not overflow")
}

func TestCreateTaskRequest_Validate(t *testing.T) {
	t.Run("valid with data", func(t *testing.T) {
		req := &CreateTaskRequest{Name: "send-welcome", Data: json.RawMessage(`{"to":"a@b.c"}`)}
		assert.NoError(t, req.Validate())
	})

	t.Run("valid without data", func(t *testing.T) {
		req := &CreateTaskRequest{Name: "nightly"}
		assert.NoError(t, req.Validate())
	})

	t.Run("blank name", func(t *testing.T) {
		req := &CreateTaskRequest{Name: "   "}
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
		assert.Equal(t, "name", apperrors.GetField(err))
		assert.Equal(t, "Missing required field: name", apperrors.PublicMessage(err))
	})
}

func TestNewQueueJobView(t *testing.T) {
	processed := int64(1700000000000)
	job := &QueuedJob{
		ID:           "7",
		Name:         "process",
		Data:         json.RawMessage(`{"completionId":"completion_x"}`),
		Progress:     json.RawMessage(`0`),
		AttemptsMade: 1,
		ProcessedOn:  &processed,
		FailedReason: "provider timeout",
	}

	view := NewQueueJobView(job, QueueStateDelayed)

	assert.Equal(t, "7", view.JobID)
	assert.Equal(t, QueueStateDelayed, view.State)
	require.NotNil(t, view.FailedReason)
	assert.Equal(t, "provider timeout", *view.FailedReason)
	assert.Equal(t, []string{}, view.Stacktrace)
	assert.Nil(t, view.FinishedOn)
}
