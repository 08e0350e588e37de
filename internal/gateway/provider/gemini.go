package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"daybot/internal/logger"
)

// GeminiProvider uses the Generative Language generateContent endpoint. The
// system prompt is prepended to the user turn.
type GeminiProvider struct {
	id      string
	baseURL string
	model   string
	apiKey  string
	http    *httpClient
}

func NewGeminiProvider(id, baseURL, apiKey, model string, timeout time.Duration) *GeminiProvider {
	return &GeminiProvider{
		id:      id,
		baseURL: trimBase(baseURL, ""),
		model:   model,
		apiKey:  apiKey,
		http:    newHTTPClient(timeout, nil),
	}
}

func (p *GeminiProvider) ID() string    { return p.id }
func (p *GeminiProvider) Enabled() bool { return p.apiKey != "" }

func (p *GeminiProvider) Call(ctx context.Context, payload ChatPayload) (string, error) {
	if p.apiKey == "" {
		return "", errors.New("gemini not configured (missing api key)")
	}
	prompt := payload.User
	if payload.System != "" {
		prompt = fmt.Sprintf("System: %s\n\nUser: %s", payload.System, payload.User)
	}
	genCfg := map[string]any{"temperature": payload.Temperature}
	if payload.MaxTokens > 0 {
		genCfg["maxOutputTokens"] = payload.MaxTokens
	}
	body := map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": genCfg,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	logger.LogLLMRequest(p.id, payload.Symbol, payload.System, payload.User, string(b))
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, p.model, url.QueryEscape(p.apiKey))
	raw, err := p.http.postJSON(ctx, endpoint, b)
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.id, err)
	}
	return finish(p.id, payload.Symbol, raw, "candidates.0.content.parts.0.text")
}

func (p *GeminiProvider) Health(ctx context.Context) error {
	if p.apiKey == "" {
		return errors.New("gemini health: missing api key")
	}
	endpoint := fmt.Sprintf("%s/models/%s?key=%s", p.baseURL, p.model, url.QueryEscape(p.apiKey))
	if _, err := p.http.get(ctx, endpoint); err != nil {
		return fmt.Errorf("%s health: %w", p.id, err)
	}
	return nil
}
