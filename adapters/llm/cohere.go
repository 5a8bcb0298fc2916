package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"riskscore/ports"
)

// CohereClient implements ports.TextGenerator over the generate endpoint
type CohereClient struct {
	APIKey  string
	BaseURL string
	Model   string
	HTTP    *http.Client
}

func (c *CohereClient) Provider() string {
	return ProviderCohere
}

func (c *CohereClient) Generate(ctx context.Context, req ports.GenerationRequest) (*ports.LLMResponse, error) {
	type reqBody struct {
		Model       string  `json:"model,omitempty"`
		Prompt      string  `json:"prompt"`
		MaxTokens   int     `json:"max_tokens,omitempty"`
		Temperature float64 `json:"temperature"`
	}
	type generation struct {
		Text string `json:"text"`
	}
	type respBody struct {
		ID          string       `json:"id"`
		Generations []generation `json:"generations"`
		Meta        struct {
			BilledUnits struct {
				InputTokens  int `json:"input_tokens"`
				OutputTokens int `json:"output_tokens"`
			} `json:"billed_units"`
		} `json:"meta"`
	}

	body := reqBody{
		Model:       c.Model,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	headers := map[string]string{"Authorization": "Bearer " + c.APIKey}

	var decoded respBody
	if err := postJSON(ctx, c.HTTP, ProviderCohere, c.BaseURL+"/v1/generate", headers, body, &decoded); err != nil {
		return nil, err
	}
	if len(decoded.Generations) == 0 {
		return nil, &GenerationError{Provider: ProviderCohere, Kind: KindMalformed, Cause: fmt.Errorf("response missing generations")}
	}

	return &ports.LLMResponse{
		Content: strings.TrimSpace(decoded.Generations[0].Text),
		Usage: &ports.UsageData{
			PromptTokens:     decoded.Meta.BilledUnits.InputTokens,
			CompletionTokens: decoded.Meta.BilledUnits.OutputTokens,
			Model:            c.Model,
			Provider:         ProviderCohere,
		},
	}, nil
}
