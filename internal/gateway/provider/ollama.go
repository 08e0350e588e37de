package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"daybot/internal/logger"
)

// OllamaProvider calls a local Ollama server through /api/generate.
type OllamaProvider struct {
	id      string
	baseURL string
	model   string
	http    *httpClient
}

func NewOllamaProvider(id, baseURL, model string, timeout time.Duration) *OllamaProvider {
	return &OllamaProvider{
		id:      id,
		baseURL: trimBase(baseURL, "/api/generate"),
		model:   model,
		http:    newHTTPClient(timeout, nil),
	}
}

func (p *OllamaProvider) ID() string    { return p.id }
func (p *OllamaProvider) Enabled() bool { return true }

func (p *OllamaProvider) Call(ctx context.Context, payload ChatPayload) (string, error) {
	options := map[string]any{"temperature": payload.Temperature}
	if payload.MaxTokens > 0 {
		options["num_predict"] = payload.MaxTokens
	}
	body := map[string]any{
		"model":   p.model,
		"prompt":  payload.User,
		"stream":  false,
		"options": options,
	}
	if payload.System != "" {
		body["system"] = payload.System
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	logger.LogLLMRequest(p.id, payload.Symbol, payload.System, payload.User, string(b))
	raw, err := p.http.postJSON(ctx, p.baseURL+"/api/generate", b)
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.id, err)
	}
	return finish(p.id, payload.Symbol, raw, "response")
}

// Health requires the configured model to be pulled on the server.
func (p *OllamaProvider) Health(ctx context.Context) error {
	raw, err := p.http.get(ctx, p.baseURL+"/api/tags")
	if err != nil {
		return fmt.Errorf("%s health: %w", p.id, err)
	}
	for _, name := range gjson.GetBytes(raw, "models.#.name").Array() {
		if name.String() == p.model {
			return nil
		}
	}
	return fmt.Errorf("%s health: model %q not available", p.id, p.model)
}
