package provider

import (
	"fmt"
	"strings"

	"daybot/internal/config"
	"daybot/internal/logger"
)

// FromConfig builds the rationale provider. It returns nil when rationale
// generation is disabled so callers fall back to rule text.
func FromConfig(cfg config.LLMConfig) ModelProvider {
	if !cfg.Enabled {
		return nil
	}
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	id := fmt.Sprintf("%s:%s", name, cfg.Model)
	switch name {
	case "gemini":
		return NewGeminiProvider(id, cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout())
	case "openai":
		return NewOpenAIProvider(id, cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout())
	case "ollama", "":
		return NewOllamaProvider(id, cfg.BaseURL, cfg.Model, cfg.Timeout())
	default:
		logger.Warnf("unknown llm provider %q, rationale disabled", cfg.Provider)
		return nil
	}
}
