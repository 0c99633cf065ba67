package llmdriver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// AnthropicHTTP calls Anthropic's Messages API directly over HTTP. It
// has no streaming transport of its own, so StreamComplete emits the
// complete response as a single delta — a degraded-mode fallback
// behind BedrockProvider, not a second primary path.
type AnthropicHTTP struct {
	apiKey string
	url    string
	model  string
}

// NewAnthropicHTTP builds a non-streaming Anthropic fallback provider.
func NewAnthropicHTTP(apiKey, model string) *AnthropicHTTP {
	if model == "" {
		model = "claude-3-5-sonnet-20240620"
	}
	return &AnthropicHTTP{apiKey: apiKey, url: "https://api.anthropic.com/v1/messages", model: model}
}

func (a *AnthropicHTTP) Name() string { return "anthropic-http" }

func (a *AnthropicHTTP) StreamComplete(ctx context.Context, messages []Message, params Params, onDelta func(string) error) (string, error) {
	var system string
	var anthropicMessages []map[string]string
	for _, m := range messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		anthropicMessages = append(anthropicMessages, map[string]string{"role": m.Role, "content": m.Content})
	}

	payload := map[string]interface{}{
		"model":       a.model,
		"messages":    anthropicMessages,
		"max_tokens":  params.MaxTokens,
		"temperature": params.Temperature,
		"top_p":       params.TopP,
	}
	if system != "" {
		payload["system"] = system
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llmdriver: anthropic payload marshal failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llmdriver: anthropic request build failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llmdriver: anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("llmdriver: anthropic error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("llmdriver: anthropic decode failed: %w", err)
	}
	if len(result.Content) == 0 {
		return "", ErrEmptyResponse
	}

	text := result.Content[0].Text
	if err := onDelta(text); err != nil {
		return "", err
	}
	return text, nil
}
