package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// postJSON sends one JSON request and decodes a 2xx JSON answer into out
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return &GenerationError{Provider: provider, Kind: KindMalformed, Cause: fmt.Errorf("marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return &GenerationError{Provider: provider, Kind: KindNetwork, Cause: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return &GenerationError{Provider: provider, Kind: KindNetwork, Cause: err}
	}
	defer resp.Body.Close()

	respRaw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &GenerationError{Provider: provider, Kind: KindNetwork, Cause: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpError(provider, resp.StatusCode, respRaw)
	}
	if err := json.Unmarshal(respRaw, out); err != nil {
		return &GenerationError{Provider: provider, Kind: KindMalformed, Status: resp.StatusCode, Cause: fmt.Errorf("unmarshal response: %w", err)}
	}
	return nil
}
