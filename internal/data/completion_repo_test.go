package data

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/jobrelay/internal/core"
	"github.com/target/jobrelay/internal/domain/model"
)

func TestNewCompletionRepo_Defaults(t *testing.T) {
	repo := NewCompletionRepo(nil, RepoConfig{})

	assert.Equal(t, DefaultListLimit, repo.defaultLimit)
	assert.Equal(t, DefaultMaxListLimit, repo.maxLimit)
	assert.IsType(t, SystemClock{}, repo.clock)
}

func TestNewCompletionRepo_DefaultLimitClampedToMax(t *testing.T) {
	repo := NewCompletionRepo(nil, RepoConfig{DefaultLimit: 80, MaxLimit: 20})

	assert.Equal(t, 20, repo.defaultLimit)
	assert.Equal(t, 20, repo.maxLimit)
}

func TestCompletionRepo_NormalizeListOptions(t *testing.T) {
	repo := NewCompletionRepo(nil, RepoConfig{MaxLimit: 100})

	tests := []struct {
		name       string
		in         model.CompletionListOptions
		wantLimit  int
		wantOffset int
	}{
		{name: "zero limit uses default", in: model.CompletionListOptions{}, wantLimit: 50, wantOffset: 0},
		{name: "negative limit uses default", in: model.CompletionListOptions{Limit: -3}, wantLimit: 50},
		{name: "limit within bounds kept", in: model.CompletionListOptions{Limit: 2, Offset: 4}, wantLimit: 2, wantOffset: 4},
		{name: "limit at max kept", in: model.CompletionListOptions{Limit: 100}, wantLimit: 100},
		{name: "limit above max clamped", in: model.CompletionListOptions{Limit: 5000}, wantLimit: 100},
		{name: "negative offset floored", in: model.CompletionListOptions{Limit: 10, Offset: -7}, wantLimit: 10, wantOffset: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := repo.NormalizeListOptions(tt.in)
			assert.Equal(t, tt.wantLimit, got.Limit)
			assert.Equal(t, tt.wantOffset, got.Offset)
		})
	}
}

func TestCompletionRepo_CreatePending_RequiresEnqueue(t *testing.T) {
	repo := NewCompletionRepo(nil, RepoConfig{})

	c, err := repo.CreatePending(context.Background(), core.CreatePendingParams{
		Completion: model.CreateCompletionParams{CompletionID: "completion_x", Model: "m", UserMessage: "hi"},
	})

	require.ErrorIs(t, err, ErrEnqueueRequired)
	assert.Nil(t, c)
}

func TestListConditions(t *testing.T) {
	assert.Empty(t, listConditions(model.CompletionListOptions{}))

	status := model.CompletionStatusCompleted
	conds := listConditions(model.CompletionListOptions{Status: &status})
	require.Len(t, conds, 1)
	assert.Equal(t, "status", conds[0].Field)
	assert.Equal(t, "completed", conds[0].Value)
}
