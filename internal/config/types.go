package config

import (
	"strings"
	"time"
)

// Config is the root configuration for daybot.
type Config struct {
	App      AppConfig      `toml:"app"`
	Risk     RiskConfig     `toml:"risk"`
	Paper    PaperConfig    `toml:"paper"`
	Session  SessionConfig  `toml:"session"`
	Engine   EngineConfig   `toml:"engine"`
	Market   MarketConfig   `toml:"market"`
	LLM      LLMConfig      `toml:"llm"`
	Store    StoreConfig    `toml:"store"`
	Universe UniverseConfig `toml:"universe"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
	LLMLog   string `toml:"llm_log_path"`
	LLMDump  bool   `toml:"llm_dump_payload"`
}

// RiskConfig holds the capital preservation policy.
type RiskConfig struct {
	DailyCapital              float64 `toml:"daily_capital"`
	MaxDailyLoss              float64 `toml:"max_daily_loss"`
	MaxTradesPerDay           int     `toml:"max_trades_per_day"`
	PerTradeMaxLossPct        float64 `toml:"per_trade_max_loss_pct"`
	PerTradeMaxLossAbs        float64 `toml:"per_trade_max_loss_abs"`
	HITLFirstNTrades          int     `toml:"hitl_first_n_trades"`
	HITLConfidenceThreshold   float64 `toml:"hitl_confidence_threshold"`
	StrategySwitchCooldown    int     `toml:"strategy_switch_cooldown_minutes"`
	StrategySwitchImprovement float64 `toml:"strategy_switch_min_improvement"`
}

// SwitchCooldown returns the strategy switch cooldown as a duration.
func (r RiskConfig) SwitchCooldown() time.Duration {
	return time.Duration(r.StrategySwitchCooldown) * time.Minute
}

type PaperConfig struct {
	SlippagePct           float64 `toml:"slippage_pct"`
	FeePerOrder           float64 `toml:"fee_per_order"`
	DedupWindowSeconds    int     `toml:"dedup_window_seconds"`
	DedupRetentionSeconds int     `toml:"dedup_retention_seconds"`
	DedupBackend          string  `toml:"dedup_backend"`
	RedisAddr             string  `toml:"redis_addr"`
	ExecuteOnHITLApprove  bool    `toml:"execute_on_approve"`
}

func (p PaperConfig) DedupWindow() time.Duration {
	return time.Duration(p.DedupWindowSeconds) * time.Second
}

func (p PaperConfig) DedupRetention() time.Duration {
	return time.Duration(p.DedupRetentionSeconds) * time.Second
}

// SessionConfig describes the trading day in local exchange time. Times are HH:MM.
type SessionConfig struct {
	Timezone     string `toml:"timezone"`
	Start        string `toml:"start"`
	End          string `toml:"end"`
	ExitOnlyFrom string `toml:"exit_only_from"`
}

type EngineConfig struct {
	Mode                   string     `toml:"mode"`
	LoopInterval           string     `toml:"loop_interval"`
	MinConfidence          float64    `toml:"min_confidence"`
	SnapshotTimeoutSeconds int        `toml:"snapshot_timeout_seconds"`
	Gate                   GateConfig `toml:"gate"`
}

const (
	EngineModeBestOfN    = "best_of_n"
	EngineModeConfluence = "confluence"
	EngineModeLayered    = "layered"
)

func (e EngineConfig) SnapshotTimeout() time.Duration {
	return time.Duration(e.SnapshotTimeoutSeconds) * time.Second
}

type GateConfig struct {
	MinConfluence         int  `toml:"min_confluence"`
	RequireBiasAlignment  bool `toml:"require_bias_alignment"`
	RequireTrendAlignment bool `toml:"require_trend_alignment"`
}

type MarketConfig struct {
	Source                string  `toml:"source"`
	CandleDBDir           string  `toml:"candle_db_dir"`
	Interval              string  `toml:"interval"`
	Lookback              int     `toml:"lookback"`
	RatePerSecond         float64 `toml:"rate_per_second"`
	Burst                 int     `toml:"burst"`
	BreakerThreshold      int     `toml:"breaker_threshold"`
	BreakerTimeoutSeconds int     `toml:"breaker_timeout_seconds"`
	Seed                  int64   `toml:"seed"`
}

const (
	MarketSourceCandles   = "candles"
	MarketSourceSynthetic = "synthetic"
)

func (m MarketConfig) BreakerTimeout() time.Duration {
	return time.Duration(m.BreakerTimeoutSeconds) * time.Second
}

// LLMConfig configures the optional rationale provider.
type LLMConfig struct {
	Enabled        bool    `toml:"enabled"`
	Provider       string  `toml:"provider"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	APIKey         string  `toml:"api_key"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxTokens      int     `toml:"max_tokens"`
	Temperature    float64 `toml:"temperature"`
}

func (l LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

type StoreConfig struct {
	Path string `toml:"path"`
}

// UniverseConfig points at the instrument allow-list. Symbols is used when no
// registry file exists.
type UniverseConfig struct {
	Path    string   `toml:"path"`
	Symbols []string `toml:"symbols"`
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
