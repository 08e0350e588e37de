package config

import (
	"fmt"
	"strings"
	"time"
)

func validate(c *Config) error {
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Paper.validate(); err != nil {
		return err
	}
	if err := c.Session.validate(); err != nil {
		return err
	}
	if err := c.Engine.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.LLM.validate(); err != nil {
		return err
	}
	if len(c.Universe.Symbols) == 0 && strings.TrimSpace(c.Universe.Path) == "" {
		return fmt.Errorf("universe requires symbols or a registry path")
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.MaxDailyLoss <= 0 {
		return fmt.Errorf("risk.max_daily_loss must be > 0")
	}
	if r.DailyCapital > 0 && r.MaxDailyLoss > r.DailyCapital {
		return fmt.Errorf("risk.max_daily_loss (%.2f) cannot exceed risk.daily_capital (%.2f)", r.MaxDailyLoss, r.DailyCapital)
	}
	if r.MaxTradesPerDay <= 0 {
		return fmt.Errorf("risk.max_trades_per_day must be > 0")
	}
	if r.PerTradeMaxLossPct <= 0 || r.PerTradeMaxLossPct > 100 {
		return fmt.Errorf("risk.per_trade_max_loss_pct must be in (0, 100]")
	}
	if r.HITLFirstNTrades < 0 {
		return fmt.Errorf("risk.hitl_first_n_trades must be >= 0")
	}
	if r.HITLConfidenceThreshold < 0 || r.HITLConfidenceThreshold > 1 {
		return fmt.Errorf("risk.hitl_confidence_threshold must be in [0, 1]")
	}
	if r.StrategySwitchCooldown < 0 {
		return fmt.Errorf("risk.strategy_switch_cooldown_minutes must be >= 0")
	}
	return nil
}

func (p *PaperConfig) validate() error {
	if p.SlippagePct < 0 || p.SlippagePct >= 100 {
		return fmt.Errorf("paper.slippage_pct must be in [0, 100)")
	}
	if p.FeePerOrder < 0 {
		return fmt.Errorf("paper.fee_per_order must be >= 0")
	}
	if p.DedupRetentionSeconds < p.DedupWindowSeconds {
		return fmt.Errorf("paper.dedup_retention_seconds must be >= paper.dedup_window_seconds")
	}
	switch p.DedupBackend {
	case "memory":
	case "redis":
		if strings.TrimSpace(p.RedisAddr) == "" {
			return fmt.Errorf("paper.redis_addr is required when dedup_backend=redis")
		}
	default:
		return fmt.Errorf("paper.dedup_backend must be memory or redis, got %s", p.DedupBackend)
	}
	return nil
}

func (s *SessionConfig) validate() error {
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("session.timezone %q: %w", s.Timezone, err)
	}
	start, err := ParseClock(s.Start)
	if err != nil {
		return fmt.Errorf("session.start: %w", err)
	}
	end, err := ParseClock(s.End)
	if err != nil {
		return fmt.Errorf("session.end: %w", err)
	}
	exitOnly, err := ParseClock(s.ExitOnlyFrom)
	if err != nil {
		return fmt.Errorf("session.exit_only_from: %w", err)
	}
	if end <= start {
		return fmt.Errorf("session.end must be after session.start")
	}
	if exitOnly < start || exitOnly > end {
		return fmt.Errorf("session.exit_only_from must fall inside the session")
	}
	return nil
}

func (e *EngineConfig) validate() error {
	switch e.Mode {
	case EngineModeBestOfN, EngineModeConfluence, EngineModeLayered:
	default:
		return fmt.Errorf("engine.mode must be one of best_of_n, confluence, layered; got %s", e.Mode)
	}
	if d, err := time.ParseDuration(e.LoopInterval); err != nil || d <= 0 {
		return fmt.Errorf("engine.loop_interval %q is not a positive duration", e.LoopInterval)
	}
	if e.MinConfidence <= 0 || e.MinConfidence > 1 {
		return fmt.Errorf("engine.min_confidence must be in (0, 1]")
	}
	if e.Gate.MinConfluence <= 0 {
		return fmt.Errorf("engine.gate.min_confluence must be > 0")
	}
	return nil
}

func (m *MarketConfig) validate() error {
	switch m.Source {
	case MarketSourceCandles, MarketSourceSynthetic:
	default:
		return fmt.Errorf("market.source must be candles or synthetic, got %s", m.Source)
	}
	if !IsValidInterval(m.Interval) {
		return fmt.Errorf("market.interval %q is invalid", m.Interval)
	}
	if m.Lookback < 50 {
		return fmt.Errorf("market.lookback must be >= 50")
	}
	return nil
}

func (l *LLMConfig) validate() error {
	if !l.Enabled {
		return nil
	}
	switch l.Provider {
	case "ollama":
	case "gemini", "openai":
		if strings.TrimSpace(l.APIKey) == "" {
			return fmt.Errorf("llm.api_key is required for provider %s", l.Provider)
		}
	default:
		return fmt.Errorf("llm.provider must be ollama, gemini or openai, got %s", l.Provider)
	}
	if strings.TrimSpace(l.Model) == "" {
		return fmt.Errorf("llm.model cannot be empty")
	}
	return nil
}

// ParseClock parses an HH:MM wall clock into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q, want HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// IsValidInterval does a light check: digits followed by m/h/d/w.
func IsValidInterval(s string) bool {
	if len(s) < 2 {
		return false
	}
	suf := s[len(s)-1]
	if suf != 'm' && suf != 'h' && suf != 'd' && suf != 'w' {
		return false
	}
	for i := 0; i < len(s)-1; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
