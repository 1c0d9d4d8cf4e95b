package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/jobrelay/config"
	"github.com/target/jobrelay/internal/domain/model"
)

func strPtr(s string) *string { return &s }

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), config.ProviderConfig{Name: config.ProviderOpenAI})
	require.ErrorIs(t, err, ErrAPIKeyRequired)

	_, err = New(context.Background(), config.ProviderConfig{Name: config.ProviderGemini, OpenAIAPIKey: "sk"})
	require.ErrorIs(t, err, ErrAPIKeyRequired)
}

func TestNew_SelectsProvider(t *testing.T) {
	p, err := New(context.Background(), config.ProviderConfig{Name: config.ProviderOpenAI, OpenAIAPIKey: "sk"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	p, err = New(context.Background(), config.ProviderConfig{Name: config.ProviderGemini, GeminiAPIKey: "g"})
	require.NoError(t, err)
	assert.Equal(t, "gemini", p.Name())
}

func TestOpenAI_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "Hello there"},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 9, "completion_tokens": 3, "total_tokens": 12}
		}`)
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL})
	out, err := p.Complete(context.Background(), model.CompletionPrompt{
		Model:         "gpt-4o-mini",
		Content:       "Say hello",
		SystemMessage: strPtr("Be brief"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello there", out.Content)
	assert.Equal(t, "stop", out.FinishReason)
	assert.Equal(t, 9, out.PromptTokens)
	assert.Equal(t, 3, out.ResponseTokens)
	assert.Equal(t, 12, out.TotalTokens)
	assert.Contains(t, string(out.RawResponse), "chatcmpl-1")

	assert.Equal(t, "gpt-4o-mini", got["model"])
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
}

func TestOpenAI_CompleteErrors(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"message":"unknown model","type":"invalid_request_error"}}`)
		}))
		defer srv.Close()

		p := NewOpenAI(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL})
		_, err := p.Complete(context.Background(), model.CompletionPrompt{Model: "nope", Content: "hi"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "openai chat completion")
	})

	t.Run("no choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`)
		}))
		defer srv.Close()

		p := NewOpenAI(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL})
		_, err := p.Complete(context.Background(), model.CompletionPrompt{Model: "m", Content: "hi"})
		require.ErrorIs(t, err, ErrEmptyResponse)
	})
}

func TestGemini_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-2.0-flash:generateContent")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": "Hi "}, {"text": "there"}]},
				"finishReason": "STOP"
			}],
			"usageMetadata": {"promptTokenCount": 4, "candidatesTokenCount": 2, "totalTokenCount": 6}
		}`)
	}))
	defer srv.Close()

	p, err := NewGemini(context.Background(), GeminiOptions{APIKey: "g-test", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	out, err := p.Complete(context.Background(), model.CompletionPrompt{
		Model:         "gemini-2.0-flash",
		Content:       "Say hello",
		SystemMessage: strPtr("Be brief"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Hi there", out.Content)
	assert.Equal(t, "stop", out.FinishReason)
	assert.Equal(t, 4, out.PromptTokens)
	assert.Equal(t, 2, out.ResponseTokens)
	assert.Equal(t, 6, out.TotalTokens)
	assert.NotEmpty(t, out.RawResponse)
	assert.Contains(t, got, "systemInstruction")
}

func TestGemini_EmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates": []}`)
	}))
	defer srv.Close()

	p, err := NewGemini(context.Background(), GeminiOptions{APIKey: "g-test", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), model.CompletionPrompt{Model: "gemini-2.0-flash", Content: "hi"})
	require.ErrorIs(t, err, ErrEmptyResponse)
}
