package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"riskscore/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cohereServer(t *testing.T, handler func(w http.ResponseWriter, body map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/generate", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		handler(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, provider, url string, retries int) ports.TextGenerator {
	t.Helper()
	gen, err := NewClient(Config{
		Provider:   provider,
		Model:      "command-r-plus",
		APIKey:     "test-key",
		BaseURL:    url,
		Timeout:    2 * time.Second,
		MaxRetries: retries,
	})
	require.NoError(t, err)
	gen.(*ResilientGenerator).WithInitialInterval(time.Millisecond)
	return gen
}

func TestCohereGenerate(t *testing.T) {
	srv := cohereServer(t, func(w http.ResponseWriter, body map[string]any) {
		assert.Equal(t, "command-r-plus", body["model"])
		assert.Equal(t, "hello", body["prompt"])
		assert.Equal(t, float64(120), body["max_tokens"])
		assert.Equal(t, 0.2, body["temperature"])
		w.Write([]byte(`{"id":"x","generations":[{"text":"  1) PROFIL stable  "}],"meta":{"billed_units":{"input_tokens":12,"output_tokens":30}}}`))
	})
	gen := newTestClient(t, ProviderCohere, srv.URL, 0)

	resp, err := gen.Generate(context.Background(), ports.GenerationRequest{Prompt: "hello", MaxTokens: 120, Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "1) PROFIL stable", resp.Content)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 12, resp.Usage.PromptTokens)
	assert.Equal(t, 30, resp.Usage.CompletionTokens)
	assert.Equal(t, ProviderCohere, gen.Provider())
}

func TestCohereErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"invalid api token"}`, KindAuth},
		{"forbidden", http.StatusForbidden, `{}`, KindAuth},
		{"quota", http.StatusTooManyRequests, `{"message":"trial key limit"}`, KindRateLimit},
		{"bad request", http.StatusBadRequest, `{"message":"bad"}`, KindUpstream},
		{"not json", http.StatusOK, `<html>`, KindMalformed},
		{"no generations", http.StatusOK, `{"generations":[]}`, KindMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := cohereServer(t, func(w http.ResponseWriter, _ map[string]any) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			gen := newTestClient(t, ProviderCohere, srv.URL, 0)

			_, err := gen.Generate(context.Background(), ports.GenerationRequest{Prompt: "p"})
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestNetworkErrorIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	gen := newTestClient(t, ProviderCohere, url, 0)
	_, err := gen.Generate(context.Background(), ports.GenerationRequest{Prompt: "p"})
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestRetriesRateLimitThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := cohereServer(t, func(w http.ResponseWriter, _ map[string]any) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"generations":[{"text":"ok"}]}`))
	})
	gen := newTestClient(t, ProviderCohere, srv.URL, 2)

	resp, err := gen.Generate(context.Background(), ports.GenerationRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAuthErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := cohereServer(t, func(w http.ResponseWriter, _ map[string]any) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	gen := newTestClient(t, ProviderCohere, srv.URL, 3)

	_, err := gen.Generate(context.Background(), ports.GenerationRequest{Prompt: "p"})
	require.Error(t, err)
	assert.Equal(t, KindAuth, KindOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetriesAreBounded(t *testing.T) {
	var calls atomic.Int32
	srv := cohereServer(t, func(w http.ResponseWriter, _ map[string]any) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	gen := newTestClient(t, ProviderCohere, srv.URL, 2)

	_, err := gen.Generate(context.Background(), ports.GenerationRequest{Prompt: "p"})
	require.Error(t, err)
	assert.Equal(t, KindUpstream, KindOf(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			MaxTokens int `json:"max_tokens"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "prompt text", body.Messages[1].Content)
		assert.Equal(t, 80, body.MaxTokens)
		w.Write([]byte(`{"model":"gpt-4o-mini","choices":[{"message":{"content":"answer"}}],"usage":{"prompt_tokens":5,"completion_tokens":7}}`))
	}))
	defer srv.Close()

	gen := newTestClient(t, ProviderOpenAI, srv.URL, 0)
	resp, err := gen.Generate(context.Background(), ports.GenerationRequest{Prompt: "prompt text", MaxTokens: 80})
	require.NoError(t, err)
	assert.Equal(t, "answer", resp.Content)
	assert.Equal(t, "gpt-4o-mini", resp.Usage.Model)
	assert.Equal(t, ProviderOpenAI, gen.Provider())
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Config{Provider: ProviderCohere})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewClient(Config{Provider: "unknown", APIKey: "k"})
	assert.Error(t, err)
}

func TestContextTimeoutStopsCall(t *testing.T) {
	srv := cohereServer(t, func(w http.ResponseWriter, _ map[string]any) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"generations":[{"text":"late"}]}`))
	})
	gen := newTestClient(t, ProviderCohere, srv.URL, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := gen.Generate(ctx, ports.GenerationRequest{Prompt: "p"})
	require.Error(t, err)
}

func TestResilientGeneratorRateLimiterHonoursContext(t *testing.T) {
	mock := &MockLLMClient{Response: "ok"}
	gen := NewResilientGenerator(mock, 0, 1)

	_, err := gen.Generate(context.Background(), ports.GenerationRequest{})
	require.NoError(t, err)

	// the single token is spent; the next call would wait a minute
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = gen.Generate(ctx, ports.GenerationRequest{})
	require.Error(t, err)
	assert.Equal(t, KindRateLimit, KindOf(err))
	assert.Equal(t, 1, mock.Calls)
}

func TestMockLLMClient(t *testing.T) {
	boom := errors.New("boom")
	m := &MockLLMClient{Error: boom}
	_, err := m.Generate(context.Background(), ports.GenerationRequest{Prompt: "x"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "x", m.Last.Prompt)

	m = &MockLLMClient{}
	resp, err := m.Generate(context.Background(), ports.GenerationRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Content)
}
