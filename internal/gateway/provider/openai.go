package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"daybot/internal/logger"
)

// OpenAIProvider talks to any OpenAI-compatible /chat/completions endpoint.
type OpenAIProvider struct {
	id      string
	enabled bool
	baseURL string
	model   string
	http    *httpClient
}

func NewOpenAIProvider(id, baseURL, apiKey, model string, timeout time.Duration) *OpenAIProvider {
	headers := map[string]string{}
	if apiKey != "" {
		headers["Authorization"] = "Bearer " + apiKey
	}
	return &OpenAIProvider{
		id:      id,
		enabled: true,
		baseURL: trimBase(baseURL, "/chat/completions"),
		model:   model,
		http:    newHTTPClient(timeout, headers),
	}
}

func (p *OpenAIProvider) ID() string    { return p.id }
func (p *OpenAIProvider) Enabled() bool { return p.enabled }

func (p *OpenAIProvider) Call(ctx context.Context, payload ChatPayload) (string, error) {
	messages := make([]map[string]string, 0, 2)
	if payload.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": payload.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": payload.User})
	body := map[string]any{
		"model":       p.model,
		"messages":    messages,
		"temperature": payload.Temperature,
	}
	if payload.MaxTokens > 0 {
		body["max_tokens"] = payload.MaxTokens
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	logger.LogLLMRequest(p.id, payload.Symbol, payload.System, payload.User, string(b))
	raw, err := p.http.postJSON(ctx, p.baseURL+"/chat/completions", b)
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.id, err)
	}
	return finish(p.id, payload.Symbol, raw, "choices.0.message.content")
}

func (p *OpenAIProvider) Health(ctx context.Context) error {
	if _, err := p.http.get(ctx, p.baseURL+"/models"); err != nil {
		return fmt.Errorf("%s health: %w", p.id, err)
	}
	return nil
}
