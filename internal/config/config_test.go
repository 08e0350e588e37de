package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "app:\n  env: test\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.App.Env)
	assert.Equal(t, 300.0, cfg.Risk.MaxDailyLoss)
	assert.Equal(t, 5, cfg.Risk.MaxTradesPerDay)
	assert.Equal(t, 50.0, cfg.Risk.PerTradeMaxLossPct)
	assert.Equal(t, 100.0, cfg.Risk.PerTradeMaxLossAbs)
	assert.Equal(t, 2, cfg.Risk.HITLFirstNTrades)
	assert.Equal(t, 20, cfg.Risk.StrategySwitchCooldown)
	assert.Equal(t, 0.05, cfg.Paper.SlippagePct)
	assert.Equal(t, 20.0, cfg.Paper.FeePerOrder)
	assert.Equal(t, "memory", cfg.Paper.DedupBackend)
	assert.Equal(t, "Asia/Kolkata", cfg.Session.Timezone)
	assert.Equal(t, EngineModeLayered, cfg.Engine.Mode)
	assert.True(t, cfg.Engine.Gate.RequireBiasAlignment)
	assert.Equal(t, 3, cfg.Engine.Gate.MinConfluence)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)
	assert.Equal(t, "qwen2.5:7b", cfg.LLM.Model)
	assert.Equal(t, []string{"HINDCOPPER", "MCX", "LAURUSLABS", "NAVINFLUOR", "RADICO"}, cfg.Universe.Symbols)
}

func TestLoad_ExplicitZeroKept(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
risk:
  hitl_first_n_trades: 0
  strategy_switch_cooldown_minutes: 0
paper:
  slippage_pct: 0
  fee_per_order: 0
engine:
  gate:
    require_bias_alignment: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Risk.HITLFirstNTrades)
	assert.Equal(t, 0, cfg.Risk.StrategySwitchCooldown)
	assert.Equal(t, 0.0, cfg.Paper.SlippagePct)
	assert.Equal(t, 0.0, cfg.Paper.FeePerOrder)
	assert.False(t, cfg.Engine.Gate.RequireBiasAlignment)
	assert.True(t, cfg.Engine.Gate.RequireTrendAlignment)
}

func TestLoad_Includes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "risk.yaml", "risk:\n  max_daily_loss: 150\n  max_trades_per_day: 3\n")
	path := writeFile(t, dir, "config.yaml", "include:\n  - risk.yaml\nrisk:\n  max_trades_per_day: 4\nuniverse:\n  symbols: [mcx, radico, mcx]\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 150.0, cfg.Risk.MaxDailyLoss)
	assert.Equal(t, 4, cfg.Risk.MaxTradesPerDay)
	assert.Equal(t, []string{"MCX", "RADICO"}, cfg.Universe.Symbols)
}

func TestLoad_IncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "include:\n  - b.yaml\n")
	writeFile(t, dir, "b.yaml", "include:\n  - a.yaml\n")

	_, err := Load(filepath.Join(dir, "a.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"loss above capital", "risk:\n  daily_capital: 100\n  max_daily_loss: 200\n", "cannot exceed"},
		{"bad mode", "engine:\n  mode: yolo\n", "engine.mode"},
		{"bad timezone", "session:\n  timezone: Mars/Olympus\n", "session.timezone"},
		{"exit window outside session", "session:\n  exit_only_from: \"16:00\"\n", "exit_only_from"},
		{"redis without addr", "paper:\n  dedup_backend: redis\n", "redis_addr"},
		{"gemini without key", "llm:\n  enabled: true\n  provider: gemini\n", "api_key"},
		{"bad interval", "market:\n  interval: 5s\n", "market.interval"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.yaml", tc.body)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("09:15")
	require.NoError(t, err)
	assert.Equal(t, 555, m)

	_, err = ParseClock("9am")
	assert.Error(t, err)
}
