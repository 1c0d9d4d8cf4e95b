package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/target/jobrelay/internal/core"
	"github.com/target/jobrelay/internal/domain/model"
)

// OpenAIOptions configures the OpenAI provider.
type OpenAIOptions struct {
	APIKey string
	// BaseURL points at an OpenAI-compatible endpoint. Empty uses api.openai.com.
	BaseURL string
	// MaxRetries bounds SDK-level retries. Failed jobs are already retried by the queue.
	MaxRetries int
}

// OpenAI calls the chat completions API.
type OpenAI struct {
	client openai.Client
}

var _ core.CompletionProvider = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI provider.
func NewOpenAI(opts OpenAIOptions) *OpenAI {
	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	reqOpts = append(reqOpts, option.WithMaxRetries(max(opts.MaxRetries, 0)))
	return &OpenAI{client: openai.NewClient(reqOpts...)}
}

// Name implements core.CompletionProvider.
func (*OpenAI) Name() string { return "openai" }

// Complete sends the optional system message and the user content as one chat turn.
func (o *OpenAI) Complete(ctx context.Context, prompt model.CompletionPrompt) (*model.CompletionOutput, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if prompt.SystemMessage != nil && strings.TrimSpace(*prompt.SystemMessage) != "" {
		messages = append(messages, openai.SystemMessage(*prompt.SystemMessage))
	}
	messages = append(messages, openai.UserMessage(prompt.Content))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(prompt.Model),
		Messages: messages,
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := resp.Choices[0]
	out := &model.CompletionOutput{
		Content:        choice.Message.Content,
		FinishReason:   string(choice.FinishReason),
		PromptTokens:   int(resp.Usage.PromptTokens),
		ResponseTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:    int(resp.Usage.TotalTokens),
	}
	if raw := resp.RawJSON(); raw != "" && json.Valid([]byte(raw)) {
		out.RawResponse = json.RawMessage(raw)
	}
	return out, nil
}
