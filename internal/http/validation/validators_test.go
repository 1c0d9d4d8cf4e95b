package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/target/jobrelay/internal/errors"
)

func TestIntRange(t *testing.T) {
	v := IntRange("limit", 1, 100)

	tests := []struct {
		value string
		want  string
	}{
		{"", ""},
		{"1", ""},
		{" 100 ", ""},
		{"0", "limit must be between 1 and 100."},
		{"101", "limit must be between 1 and 100."},
		{"ten", "limit must be a number."},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, v(tt.value))
		})
	}
}

func TestNonNegativeInt(t *testing.T) {
	v := NonNegativeInt("offset")

	assert.Empty(t, v(""))
	assert.Empty(t, v("0"))
	assert.Empty(t, v("25"))
	assert.Equal(t, "offset must be non-negative.", v("-1"))
	assert.Equal(t, "offset must be a number.", v("1.5"))
}

func TestOneOf(t *testing.T) {
	v := OneOf("status", []string{"pending", "completed"})

	assert.Empty(t, v(""))
	assert.Empty(t, v("pending"))
	assert.Empty(t, v("COMPLETED"))
	assert.Equal(t, "status must be one of: pending, completed", v("in_progress"))
}

func TestMaxLen(t *testing.T) {
	v := MaxLen("jobId", 5)

	assert.Empty(t, v("12345"))
	assert.Empty(t, v("héllo"))
	assert.Equal(t, "jobId cannot exceed 5 characters.", v("123456"))
}

func TestFieldValidator(t *testing.T) {
	t.Run("no errors", func(t *testing.T) {
		fv := New().
			Validate("limit", "10", IntRange("limit", 1, 100)).
			Validate("offset", "0", NonNegativeInt("offset"))

		assert.Empty(t, fv.Errors())
		assert.NoError(t, fv.Err())
	})

	t.Run("first failing field wins", func(t *testing.T) {
		fv := New().
			Validate("status", "bogus", OneOf("status", []string{"pending"})).
			Validate("limit", "abc", IntRange("limit", 1, 100))

		assert.Len(t, fv.Errors(), 2)
		err := fv.Err()
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
		assert.Equal(t, "status", apperrors.GetField(err))
		assert.Equal(t, "status must be one of: pending", apperrors.PublicMessage(err))
	})

	t.Run("stops at first validator per field", func(t *testing.T) {
		fv := New().Validate("limit", "abc", IntRange("limit", 1, 100), MaxLen("limit", 1))
		assert.Equal(t, "limit must be a number.", fv.Errors()["limit"])
	})
}
