package ports

import "context"

// GenerationRequest is one completion call
type GenerationRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// UsageData represents raw usage data from LLM provider APIs
type UsageData struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	Model            string `json:"model"`
	Provider         string `json:"provider"`
}

// LLMResponse is generated text plus whatever usage the provider reported
type LLMResponse struct {
	Content string
	Usage   *UsageData
}

// TextGenerator is a hosted language model
type TextGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (*LLMResponse, error)
	Provider() string
}
