package config

import (
	"strings"
	"time"
)

// ProviderName identifies an AI completion provider.
type ProviderName string

const (
	// ProviderOpenAI uses the OpenAI chat completions API.
	ProviderOpenAI ProviderName = "openai"
	// ProviderGemini uses the Google Gemini API.
	ProviderGemini ProviderName = "gemini"
)

// ProviderConfig configures the provider used by the completion worker.
type ProviderConfig struct {
	Name ProviderName `env:"AI_PROVIDER" envDefault:"openai"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`

	GeminiAPIKey  string `env:"GEMINI_API_KEY"`
	GeminiBaseURL string `env:"GEMINI_BASE_URL"`

	// RequestTimeout bounds a single provider call.
	RequestTimeout time.Duration `env:"AI_REQUEST_TIMEOUT" envDefault:"60s"`
}

// Sanitize applies guardrails to provider configuration values.
func (p *ProviderConfig) Sanitize() {
	p.Name = ProviderName(strings.ToLower(strings.TrimSpace(string(p.Name))))
	if p.Name != ProviderGemini {
		p.Name = ProviderOpenAI
	}
	if p.RequestTimeout <= 0 {
		p.RequestTimeout = 60 * time.Second
	}
}

// APIKey returns the key for the selected provider.
func (p ProviderConfig) APIKey() string {
	if p.Name == ProviderGemini {
		return p.GeminiAPIKey
	}
	return p.OpenAIAPIKey
}
