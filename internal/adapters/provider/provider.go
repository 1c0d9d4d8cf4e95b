// Package provider implements core.CompletionProvider on top of the OpenAI and Gemini SDKs.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/target/jobrelay/config"
	"github.com/target/jobrelay/internal/core"
)

// ErrAPIKeyRequired is returned when the selected provider has no API key configured.
var ErrAPIKeyRequired = errors.New("provider api key is required")

// ErrEmptyResponse is returned when a provider answers without any candidate text.
var ErrEmptyResponse = errors.New("provider returned no choices")

// New builds the provider selected by cfg.Name.
func New(ctx context.Context, cfg config.ProviderConfig) (core.CompletionProvider, error) {
	if strings.TrimSpace(cfg.APIKey()) == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Name, ErrAPIKeyRequired)
	}
	switch cfg.Name {
	case config.ProviderGemini:
		return NewGemini(ctx, GeminiOptions{APIKey: cfg.GeminiAPIKey, BaseURL: cfg.GeminiBaseURL})
	case config.ProviderOpenAI:
		return NewOpenAI(OpenAIOptions{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}
