package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/target/jobrelay/internal/core"
	"github.com/target/jobrelay/internal/domain/model"
	"google.golang.org/genai"
)

// GeminiOptions configures the Gemini provider.
type GeminiOptions struct {
	APIKey  string
	BaseURL string
}

// Gemini calls the Gemini API's generateContent method.
type Gemini struct {
	client *genai.Client
}

var _ core.CompletionProvider = (*Gemini)(nil)

// NewGemini creates a Gemini provider.
func NewGemini(ctx context.Context, opts GeminiOptions) (*Gemini, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("gemini: %w", ErrAPIKeyRequired)
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: strings.TrimSpace(opts.BaseURL),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Gemini{client: c}, nil
}

// Name implements core.CompletionProvider.
func (*Gemini) Name() string { return "gemini" }

// Complete sends the user content with the system message as the system instruction.
func (g *Gemini) Complete(ctx context.Context, prompt model.CompletionPrompt) (*model.CompletionOutput, error) {
	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: prompt.Content}},
	}}
	var cfg *genai.GenerateContentConfig
	if prompt.SystemMessage != nil && strings.TrimSpace(*prompt.SystemMessage) != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: *prompt.SystemMessage}}},
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, prompt.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrEmptyResponse
	}

	cand := resp.Candidates[0]
	var text strings.Builder
	for _, p := range cand.Content.Parts {
		if p != nil {
			text.WriteString(p.Text)
		}
	}

	out := &model.CompletionOutput{
		Content:      text.String(),
		FinishReason: strings.ToLower(string(cand.FinishReason)),
	}
	if u := resp.UsageMetadata; u != nil {
		out.PromptTokens = int(u.PromptTokenCount)
		out.ResponseTokens = int(u.CandidatesTokenCount)
		out.TotalTokens = int(u.TotalTokenCount)
	}
	if raw, mErr := json.Marshal(resp); mErr == nil {
		out.RawResponse = raw
	}
	return out, nil
}
