package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("redis: connection refused")
	err := Wrap(cause, ErrCodeInternal, "get job")

	assert.Equal(t, "get job: redis: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "noop"))
}

func TestIsHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"not found", NotFound("job"), IsNotFound},
		{"not foundf", NotFoundf("job %s", "42"), IsNotFound},
		{"conflict", Conflict("dup"), IsConflict},
		{"validation", Validation("bad"), IsValidation},
		{"validation field", ValidationField("model", "required"), IsValidation},
		{"unsupported", Unsupported("lookup"), IsUnsupported},
		{"unauthorized", Unauthorized("token"), IsUnauthorized},
		{"internal", Internal("boom"), IsInternal},
		{"wrapped", fmt.Errorf("outer: %w", NotFound("job")), IsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
		})
	}

	assert.False(t, IsNotFound(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), GetCode(errors.New("plain")))
	assert.Equal(t, "model", GetField(ValidationField("model", "required")))
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "Missing required field: jobId", PublicMessage(Validation("Missing required field: jobId")))
	assert.Equal(t, "internal server error", PublicMessage(Internal("pq: password authentication failed")))
	assert.Equal(t, "internal server error", PublicMessage(errors.New("dial tcp 10.0.0.1:6379")))
	assert.Equal(t, "job not found", PublicMessage(fmt.Errorf("resolve: %w", NotFound("job not found"))))
}
