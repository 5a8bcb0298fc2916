package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"riskscore/ports"
)

// Provider names
const (
	ProviderCohere = "cohere"
	ProviderOpenAI = "openai"
)

// Config describes one hosted model endpoint
type Config struct {
	Provider      string
	Model         string        // e.g., "command-r-plus"
	APIKey        string        // provider API key
	BaseURL       string        // Optional override of the provider default
	Temperature   float64       // 0.0-1.0, lower = more deterministic
	MaxTokens     int           // Max tokens in response
	Timeout       time.Duration // Per-attempt request timeout
	MaxRetries    int           // Extra attempts for network and rate-limit failures
	RatePerMinute int           // Client-side request budget, 0 disables the limiter
}

// ErrMissingAPIKey is returned when no credential is configured
var ErrMissingAPIKey = fmt.Errorf("missing language model API key")

// NewClient creates the provider client for config, wrapped with rate
// limiting and retries.
func NewClient(config Config) (ports.TextGenerator, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	httpClient := &http.Client{Timeout: config.Timeout}
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")

	var gen ports.TextGenerator
	switch config.Provider {
	case ProviderCohere, "":
		if baseURL == "" {
			baseURL = "https://api.cohere.ai"
		}
		gen = &CohereClient{APIKey: config.APIKey, BaseURL: baseURL, Model: config.Model, HTTP: httpClient}
	case ProviderOpenAI:
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		gen = &OpenAIClient{APIKey: config.APIKey, BaseURL: baseURL, Model: config.Model, HTTP: httpClient}
	default:
		return nil, fmt.Errorf("unknown language model provider %q", config.Provider)
	}

	return NewResilientGenerator(gen, config.MaxRetries, config.RatePerMinute), nil
}

// MockLLMClient is a mock generator for testing
type MockLLMClient struct {
	Response string // Set this for testing
	Error    error  // Set this to simulate errors
	Calls    int
	Last     ports.GenerationRequest
}

func (m *MockLLMClient) Generate(ctx context.Context, req ports.GenerationRequest) (*ports.LLMResponse, error) {
	m.Calls++
	m.Last = req
	if m.Error != nil {
		return nil, m.Error
	}
	if err := ctx.Err(); err != nil {
		return nil, &GenerationError{Provider: m.Provider(), Kind: KindNetwork, Cause: err}
	}
	if m.Response != "" {
		return &ports.LLMResponse{Content: m.Response}, nil
	}
	// Default mock response
	return &ports.LLMResponse{Content: "1) PROFIL: Client stable.\n2) RISQUES: Endettement modéré.\n3) DÉCISION: Approuver, revenus justifiés."}, nil
}

func (m *MockLLMClient) Provider() string {
	return "mock"
}

// OpenAIClient implements ports.TextGenerator over the chat completions API
type OpenAIClient struct {
	APIKey  string
	BaseURL string
	Model   string
	HTTP    *http.Client
}

func (c *OpenAIClient) Provider() string {
	return ProviderOpenAI
}

func (c *OpenAIClient) Generate(ctx context.Context, req ports.GenerationRequest) (*ports.LLMResponse, error) {
	if strings.TrimSpace(c.Model) == "" {
		return nil, &GenerationError{Provider: ProviderOpenAI, Kind: KindMalformed, Cause: fmt.Errorf("missing model")}
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	// Chat Completions API (kept minimal: one system + one user message)
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	type reqBody struct {
		Model       string  `json:"model"`
		Messages    []msg   `json:"messages"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens,omitempty"`
	}
	body := reqBody{
		Model: c.Model,
		Messages: []msg{
			{Role: "system", Content: "You are a senior credit analyst. Answer concisely in the language of the request."},
			{Role: "user", Content: req.Prompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
	}

	type choice struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	type respBody struct {
		Model   string   `json:"model"`
		Choices []choice `json:"choices"`
		Usage   struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	var decoded respBody
	headers := map[string]string{"Authorization": "Bearer " + c.APIKey}
	if err := postJSON(ctx, c.HTTP, ProviderOpenAI, c.BaseURL+"/chat/completions", headers, body, &decoded); err != nil {
		return nil, err
	}
	if len(decoded.Choices) == 0 {
		return nil, &GenerationError{Provider: ProviderOpenAI, Kind: KindMalformed, Cause: fmt.Errorf("response missing choices")}
	}

	return &ports.LLMResponse{
		Content: strings.TrimSpace(decoded.Choices[0].Message.Content),
		Usage: &ports.UsageData{
			PromptTokens:     decoded.Usage.PromptTokens,
			CompletionTokens: decoded.Usage.CompletionTokens,
			Model:            decoded.Model,
			Provider:         ProviderOpenAI,
		},
	}, nil
}
