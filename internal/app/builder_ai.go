package app

import (
	"context"
	"time"

	"daybot/internal/config"
	"daybot/internal/gateway/provider"
	"daybot/internal/logger"
	"daybot/internal/strategy"
)

const providerHealthTimeout = 5 * time.Second

// buildRationale returns nil when rationale generation is off, in which case
// proposals carry the rule-based text only.
func buildRationale(ctx context.Context, cfg config.LLMConfig) strategy.Rationale {
	p := provider.FromConfig(cfg)
	if p == nil {
		logger.Infof("llm rationale disabled")
		return nil
	}
	if !p.Enabled() {
		logger.Warnf("llm provider %s has no credentials, rationale disabled", p.ID())
		return nil
	}
	if hc, ok := p.(provider.HealthChecker); ok {
		hctx, cancel := context.WithTimeout(ctx, providerHealthTimeout)
		err := hc.Health(hctx)
		cancel()
		if err != nil {
			logger.Warnf("llm provider %s health check failed, rationale falls back to rule text on error: %v", p.ID(), err)
		} else {
			logger.Infof("llm provider %s healthy", p.ID())
		}
	}
	return &strategy.LLMRationale{
		Provider:    p,
		Timeout:     cfg.Timeout(),
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}
}
