package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rememberme/rememberme/internal/apperr"
	"github.com/rememberme/rememberme/internal/config"
)

func TestNewClientOpenAI(t *testing.T) {
	client, err := NewClient(config.LLMConfig{Provider: "openai", OpenAIKey: "sk-test"})
	require.NoError(t, err)
	o, ok := client.(*OpenAI)
	require.True(t, ok, "expected *OpenAI, got %T", client)
	assert.Equal(t, "gpt-4o-mini", o.model)
}

func TestNewClientOpenAIMissingKey(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Provider: "openai"})
	assert.Error(t, err)
}

func TestNewClientAnthropic(t *testing.T) {
	client, err := NewClient(config.LLMConfig{Provider: "anthropic", AnthropicKey: "test-key"})
	require.NoError(t, err)
	assert.IsType(t, &Anthropic{}, client)

	_, err = NewClient(config.LLMConfig{Provider: "anthropic"})
	assert.Error(t, err, "missing key")
}

func TestNewClientOllama(t *testing.T) {
	client, err := NewClient(config.LLMConfig{Provider: "ollama", OllamaModel: "llama3.2"})
	require.NoError(t, err)
	o, ok := client.(*Ollama)
	require.True(t, ok, "expected *Ollama, got %T", client)
	assert.Equal(t, "llama3.2", o.model)
	assert.Equal(t, "http://localhost:11434", o.url)

	client, err = NewClient(config.LLMConfig{Provider: "ollama", Model: "mistral", OllamaModel: "llama3.2"})
	require.NoError(t, err)
	assert.Equal(t, "mistral", client.(*Ollama).model, "model applies to every provider")
}

func TestNewClientFromLoadedConfigPicksProviderModel(t *testing.T) {
	tests := []struct {
		provider string
		env      map[string]string
		want     string
	}{
		{"openai", map[string]string{"OPENAI_API_KEY": "sk-test"}, "gpt-4o-mini"},
		{"anthropic", map[string]string{"ANTHROPIC_API_KEY": "test-key"}, "claude-haiku-4-5-20251001"},
		{"ollama", nil, "llama3.2"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			t.Setenv("REMEMBER_LLM_PROVIDER", tt.provider)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := config.Load("")
			require.NoError(t, err)

			client, err := NewClient(cfg.LLM)
			require.NoError(t, err)
			var model string
			switch c := client.(type) {
			case *OpenAI:
				model = c.model
			case *Anthropic:
				model = c.model
			case *Ollama:
				model = c.model
			}
			assert.Equal(t, tt.want, model)
		})
	}
}

func TestNewClientUnknown(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Provider: "gpt"})
	assert.Error(t, err)
}

func TestOpenAIComplete(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Hello Ada"}}],
			"usage": {"prompt_tokens": 7, "completion_tokens": 3, "total_tokens": 10}
		}`))
	}))
	defer srv.Close()

	client := NewOpenAI("sk-test", srv.URL+"/", "gpt-4o-mini")
	resp, err := client.Complete(context.Background(), "say hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada", resp.Content)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, 10, resp.TokensUsed)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "say hi", got.Messages[1].Content)
}

func TestOpenAIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI("sk-bad", srv.URL+"/", "gpt-4o-mini").Complete(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInternal), "bad key is our problem: %v", err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Equal(t, "openai", se.Provider)
}

func TestProviderErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   apperr.Kind
	}{
		{"throttled", http.StatusTooManyRequests, apperr.KindUnavailable},
		{"overloaded", http.StatusServiceUnavailable, apperr.KindUnavailable},
		{"bad key", http.StatusUnauthorized, apperr.KindInternal},
		{"forbidden", http.StatusForbidden, apperr.KindInternal},
		{"bad request", http.StatusBadRequest, apperr.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error": "nope"}`))
			}))
			defer srv.Close()

			a := NewAnthropic("test-key", "claude")
			a.endpoint = srv.URL
			_, err := a.Complete(context.Background(), "hello")
			assert.Equal(t, tt.want, apperr.KindOf(err), "anthropic: %v", err)

			_, err = NewOllama(srv.URL, "llama3.2").Complete(context.Background(), "hello")
			assert.Equal(t, tt.want, apperr.KindOf(err), "ollama: %v", err)

			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.Code)
			assert.Equal(t, "ollama", se.Provider)
		})
	}
}

func TestProviderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewOllama(url, "llama3.2").Complete(context.Background(), "hello")
	assert.True(t, apperr.Is(err, apperr.KindUnavailable), "%v", err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewOllama(url, "llama3.2").Complete(ctx, "hello")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnthropicComplete(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"content": [{"type": "text", "text": "Hi "}, {"type": "tool_use"}, {"type": "text", "text": "there"}], "usage": {"input_tokens": 4, "output_tokens": 2}}`))
	}))
	defer srv.Close()

	a := NewAnthropic("test-key", "claude")
	a.endpoint = srv.URL
	resp, err := a.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi there", resp.Content)
	assert.Equal(t, 6, resp.TokensUsed)

	assert.Equal(t, "claude", got.Model)
	assert.Equal(t, systemPrompt, got.System)
	assert.Equal(t, maxTokens, got.MaxTokens)
	assert.Equal(t, userTurn("hello"), got.Messages)
}

func TestOllamaComplete(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"message": {"role": "assistant", "content": "yo"}, "prompt_eval_count": 5, "eval_count": 1}`))
	}))
	defer srv.Close()

	resp, err := NewOllama(srv.URL+"/", "llama3.2").Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "yo", resp.Content)
	assert.Equal(t, 6, resp.TokensUsed)

	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, chatMessage{Role: "system", Content: systemPrompt}, got.Messages[0])
	assert.Equal(t, "hello", got.Messages[1].Content)
	assert.Equal(t, maxTokens, got.Options.NumPredict)
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	mock := &MockClient{Err: errors.New("boom")}
	b := NewBreaker(mock, BreakerSettings{
		MinRequests:      3,
		FailureThreshold: 0.5,
		Interval:         time.Minute,
		Timeout:          time.Minute,
	}, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := b.Complete(context.Background(), "p")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}

	_, err := b.Complete(context.Background(), "p")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, mock.CallCount(), "open breaker does not reach the provider")
	assert.Equal(t, "open", b.State())
}

func TestBreakerPassesThrough(t *testing.T) {
	mock := &MockClient{Response: &Response{Content: "ok"}}
	b := NewBreaker(mock, DefaultBreakerSettings(), zap.NewNop())

	resp, err := b.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, "closed", b.State())
}

func TestPromptsCarryInputs(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   []string
	}{
		{"SummaryPrompt", SummaryPrompt("Ada", "met at PyCon"), []string{"Ada", "met at PyCon"}},
		{"BriefingPrompt", BriefingPrompt("Coffee at 10", "likes chess"), []string{"Coffee at 10", "likes chess"}},
		{"ExtractionPrompt", ExtractionPrompt("Ada", "she just got a puppy"), []string{"Ada", "puppy", `"interests"`}},
		{"RescuePrompt", RescuePrompt("Ada", 60, "likes chess"), []string{"60 days", "Ada", NoUpdate}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, w := range tt.want {
				assert.True(t, strings.Contains(tt.prompt, w), "%s missing %q", tt.name, w)
			}
		})
	}
}

func TestMockClient(t *testing.T) {
	mock := &MockClient{
		Response: &Response{Content: "test response", Provider: "mock"},
	}

	resp, err := mock.Complete(context.Background(), "test prompt")
	require.NoError(t, err)
	assert.Equal(t, "test response", resp.Content)
	require.Len(t, mock.Calls, 1)
	assert.Equal(t, "test prompt", mock.Calls[0])
}
