package testutil

import (
	"fmt"
	"sync/atomic"

	"github.com/target/jobrelay/internal/domain/model"
)

var completionSeq atomic.Int64

// CompletionParamsBuilder provides a fluent interface for building CreateCompletionParams objects for testing.
type CompletionParamsBuilder struct {
	params model.CreateCompletionParams
}

// NewCompletionParams creates a builder with a unique completion id and sensible defaults.
func NewCompletionParams() *CompletionParamsBuilder {
	n := completionSeq.Add(1)
	return &CompletionParamsBuilder{
		params: model.CreateCompletionParams{
			CompletionID: fmt.Sprintf("completion_TEST%022d", n),
			Model:        "gpt-4o-mini",
			UserMessage:  "Say hello",
		},
	}
}

// WithCompletionID sets the public completion id.
func (b *CompletionParamsBuilder) WithCompletionID(id string) *CompletionParamsBuilder {
	b.params.CompletionID = id
	return b
}

// WithModel sets the model name.
func (b *CompletionParamsBuilder) WithModel(m string) *CompletionParamsBuilder {
	b.params.Model = m
	return b
}

// WithUserMessage sets the prompt content.
func (b *CompletionParamsBuilder) WithUserMessage(content string) *CompletionParamsBuilder {
	b.params.UserMessage = content
	return b
}

// WithSystemMessage sets the optional system prompt.
func (b *CompletionParamsBuilder) WithSystemMessage(sys string) *CompletionParamsBuilder {
	b.params.SystemMessage = &sys
	return b
}

// Build returns the constructed CreateCompletionParams.
func (b *CompletionParamsBuilder) Build() model.CreateCompletionParams {
	return b.params
}

// CompletionOutputBuilder builds provider outputs used to move records to completed.
type CompletionOutputBuilder struct {
	out model.CompletionOutput
}

// NewCompletionOutput creates a builder with a small successful response.
func NewCompletionOutput() *CompletionOutputBuilder {
	return &CompletionOutputBuilder{
		out: model.CompletionOutput{
			Content:        "Hello!",
			PromptTokens:   5,
			ResponseTokens: 2,
			TotalTokens:    7,
			FinishReason:   "stop",
			RawResponse:    []byte(`{"id":"resp_1"}`),
		},
	}
}

// WithContent sets the response content.
func (b *CompletionOutputBuilder) WithContent(content string) *CompletionOutputBuilder {
	b.out.Content = content
	return b
}

// WithTokens sets prompt, response and total token counts.
func (b *CompletionOutputBuilder) WithTokens(prompt, response int) *CompletionOutputBuilder {
	b.out.PromptTokens = prompt
	b.out.ResponseTokens = response
	b.out.TotalTokens = prompt + response
	return b
}

// Build returns the constructed CompletionOutput.
func (b *CompletionOutputBuilder) Build() model.CompletionOutput {
	return b.out
}
