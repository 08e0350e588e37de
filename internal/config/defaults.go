package config

import "strings"

const (
	defaultAppEnv         = "dev"
	defaultAppLogLevel    = "info"
	defaultAppHTTPAddr    = ":9991"
	defaultAppLogPath     = "data/logs/daybot.log"
	defaultAppLLMLogPath  = "data/logs/daybot-llm.log"
	defaultDailyCapital   = 2000
	defaultMaxDailyLoss   = 300
	defaultMaxTrades      = 5
	defaultPerTradePct    = 50
	defaultPerTradeAbs    = 100
	defaultHITLFirstN     = 2
	defaultHITLConfidence = 0.7
	defaultSwitchCooldown = 20
	defaultSwitchImprove  = 0.15
	defaultSlippagePct    = 0.05
	defaultFeePerOrder    = 20
	defaultDedupWindow    = 300
	defaultDedupRetention = 600
	defaultDedupBackend   = "memory"
	defaultTimezone       = "Asia/Kolkata"
	defaultSessionStart   = "09:15"
	defaultSessionEnd     = "15:15"
	defaultExitOnlyFrom   = "15:00"
	defaultEngineMode     = EngineModeLayered
	defaultLoopInterval   = "1m"
	defaultMinConfidence  = 0.6
	defaultSnapshotTO     = 10
	defaultMinConfluence  = 3
	defaultMarketSource   = MarketSourceSynthetic
	defaultCandleDBDir    = "data/candles"
	defaultMarketInterval = "5m"
	defaultLookback       = 250
	defaultRatePerSecond  = 5
	defaultBurst          = 5
	defaultBreakerThresh  = 5
	defaultBreakerTimeout = 60
	defaultLLMProvider    = "ollama"
	defaultOllamaURL      = "http://localhost:11434"
	defaultOllamaModel    = "qwen2.5:7b"
	defaultGeminiURL      = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel    = "gemini-1.5-pro"
	defaultOpenAIURL      = "https://api.openai.com/v1"
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultLLMTimeout     = 10
	defaultLLMMaxTokens   = 200
	defaultLLMTemperature = 0.7
	defaultStorePath      = "data/daybot.db"
	defaultUniversePath   = "configs/universe.yaml"
)

var defaultSymbols = []string{"HINDCOPPER", "MCX", "LAURUSLABS", "NAVINFLUOR", "RADICO"}

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Paper.applyDefaults(keys)
	c.Session.applyDefaults(keys)
	c.Engine.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.LLM.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Universe.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.llm_log_path", &a.LLMLog, defaultAppLLMLogPath),
	)
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("risk.daily_capital", &r.DailyCapital, defaultDailyCapital),
		floatFieldDefault("risk.max_daily_loss", &r.MaxDailyLoss, defaultMaxDailyLoss),
		intFieldDefault("risk.max_trades_per_day", &r.MaxTradesPerDay, defaultMaxTrades),
		floatFieldDefault("risk.per_trade_max_loss_pct", &r.PerTradeMaxLossPct, defaultPerTradePct),
		floatFieldDefault("risk.per_trade_max_loss_abs", &r.PerTradeMaxLossAbs, defaultPerTradeAbs),
		floatFieldDefault("risk.hitl_confidence_threshold", &r.HITLConfidenceThreshold, defaultHITLConfidence),
		floatFieldDefault("risk.strategy_switch_min_improvement", &r.StrategySwitchImprovement, defaultSwitchImprove),
		// Zero is a legitimate setting for these two, so only fill them when absent.
		fieldDefault{
			key:   "risk.hitl_first_n_trades",
			apply: func() { r.HITLFirstNTrades = defaultHITLFirstN },
		},
		fieldDefault{
			key:   "risk.strategy_switch_cooldown_minutes",
			apply: func() { r.StrategySwitchCooldown = defaultSwitchCooldown },
		},
	)
}

func (p *PaperConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "paper.slippage_pct",
			apply: func() { p.SlippagePct = defaultSlippagePct },
		},
		fieldDefault{
			key:   "paper.fee_per_order",
			apply: func() { p.FeePerOrder = defaultFeePerOrder },
		},
		intFieldDefault("paper.dedup_window_seconds", &p.DedupWindowSeconds, defaultDedupWindow),
		intFieldDefault("paper.dedup_retention_seconds", &p.DedupRetentionSeconds, defaultDedupRetention),
		stringFieldDefault("paper.dedup_backend", &p.DedupBackend, defaultDedupBackend),
	)
	p.DedupBackend = strings.ToLower(strings.TrimSpace(p.DedupBackend))
}

func (s *SessionConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("session.timezone", &s.Timezone, defaultTimezone),
		stringFieldDefault("session.start", &s.Start, defaultSessionStart),
		stringFieldDefault("session.end", &s.End, defaultSessionEnd),
		stringFieldDefault("session.exit_only_from", &s.ExitOnlyFrom, defaultExitOnlyFrom),
	)
}

func (e *EngineConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("engine.mode", &e.Mode, defaultEngineMode),
		stringFieldDefault("engine.loop_interval", &e.LoopInterval, defaultLoopInterval),
		floatFieldDefault("engine.min_confidence", &e.MinConfidence, defaultMinConfidence),
		intFieldDefault("engine.snapshot_timeout_seconds", &e.SnapshotTimeoutSeconds, defaultSnapshotTO),
		intFieldDefault("engine.gate.min_confluence", &e.Gate.MinConfluence, defaultMinConfluence),
		boolFieldDefault("engine.gate.require_bias_alignment", &e.Gate.RequireBiasAlignment, true),
		boolFieldDefault("engine.gate.require_trend_alignment", &e.Gate.RequireTrendAlignment, true),
	)
	e.Mode = strings.ToLower(strings.TrimSpace(e.Mode))
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("market.source", &m.Source, defaultMarketSource),
		stringFieldDefault("market.candle_db_dir", &m.CandleDBDir, defaultCandleDBDir),
		stringFieldDefault("market.interval", &m.Interval, defaultMarketInterval),
		intFieldDefault("market.lookback", &m.Lookback, defaultLookback),
		floatFieldDefault("market.rate_per_second", &m.RatePerSecond, defaultRatePerSecond),
		intFieldDefault("market.burst", &m.Burst, defaultBurst),
		intFieldDefault("market.breaker_threshold", &m.BreakerThreshold, defaultBreakerThresh),
		intFieldDefault("market.breaker_timeout_seconds", &m.BreakerTimeoutSeconds, defaultBreakerTimeout),
	)
	m.Source = strings.ToLower(strings.TrimSpace(m.Source))
}

func (l *LLMConfig) applyDefaults(keys keySet) {
	if l == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("llm.provider", &l.Provider, defaultLLMProvider),
		intFieldDefault("llm.timeout_seconds", &l.TimeoutSeconds, defaultLLMTimeout),
		intFieldDefault("llm.max_tokens", &l.MaxTokens, defaultLLMMaxTokens),
		floatFieldDefault("llm.temperature", &l.Temperature, defaultLLMTemperature),
	)
	l.Provider = strings.ToLower(strings.TrimSpace(l.Provider))
	url, model := providerPreset(l.Provider)
	applyFieldDefaults(keys,
		stringFieldDefault("llm.base_url", &l.BaseURL, url),
		stringFieldDefault("llm.model", &l.Model, model),
	)
}

func providerPreset(provider string) (string, string) {
	switch provider {
	case "gemini":
		return defaultGeminiURL, defaultGeminiModel
	case "openai":
		return defaultOpenAIURL, defaultOpenAIModel
	default:
		return defaultOllamaURL, defaultOllamaModel
	}
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys, stringFieldDefault("store.path", &s.Path, defaultStorePath))
}

func (u *UniverseConfig) applyDefaults(keys keySet) {
	if u == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("universe.path", &u.Path, defaultUniversePath),
		fieldDefault{
			key:   "universe.symbols",
			need:  func() bool { return len(u.Symbols) == 0 },
			apply: func() { u.Symbols = append([]string(nil), defaultSymbols...) },
		},
	)
	u.Symbols = normalizeSymbols(u.Symbols)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return target != nil && *target <= 0 },
		apply: func() { *target = def },
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return target != nil && *target <= 0 },
		apply: func() { *target = def },
	}
}

func normalizeSymbols(symbols []string) []string {
	if len(symbols) == 0 {
		return nil
	}
	out := make([]string, 0, len(symbols))
	seen := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}
