package ensemble

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daybot/internal/types"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func at(h, m int) time.Time {
	return time.Date(2026, 1, 5, h, m, 0, 0, ist)
}

func trendingSnapshot() types.MarketSnapshot {
	return types.MarketSnapshot{
		Symbol:      "MCX",
		LastPrice:   101,
		VWAP:        100,
		DMA50:       95,
		DMA200:      90,
		VolumeRatio: 1.3,
		EMA9:        100.5,
		EMA21:       100,
	}
}

func strictConfig() Config {
	return Config{MinConfluence: 3, RequireBiasAlignment: true, RequireTrendAlignment: true}
}

func TestBiasAndTrend(t *testing.T) {
	cases := []struct {
		name  string
		snap  types.MarketSnapshot
		bias  Direction
		trend Direction
	}{
		{"bullish stack", types.MarketSnapshot{LastPrice: 101, VWAP: 100, DMA50: 95, DMA200: 90}, Bullish, Bullish},
		{"bearish stack", types.MarketSnapshot{LastPrice: 99, VWAP: 100, DMA50: 105, DMA200: 110}, Bearish, Bearish},
		{"inside dead band", types.MarketSnapshot{LastPrice: 100.1, VWAP: 100, DMA50: 101, DMA200: 90}, Sideways, Sideways},
		{"missing averages", types.MarketSnapshot{LastPrice: 100}, Sideways, Sideways},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.bias, Bias(tc.snap))
			assert.Equal(t, tc.trend, Trend(tc.snap))
		})
	}
}

func TestApplyRiskFilter(t *testing.T) {
	t.Run("wide stop blocked", func(t *testing.T) {
		sig := applyRiskFilter(buy("Breakout", 100, 83.3, 105, 75, "x"), 100)
		assert.Equal(t, ActionWait, sig.Action)
		assert.Equal(t, 0.0, sig.Confidence)
		assert.Equal(t, "RISK BLOCK: SL > 10% (16.7%)", sig.Reason)
	})
	t.Run("poor reward to risk blocked", func(t *testing.T) {
		sig := applyRiskFilter(buy("x", 100, 99, 100.5, 50, "x"), 100)
		assert.Equal(t, ActionWait, sig.Action)
		assert.Equal(t, 0.27, sig.RiskReward)
		assert.Contains(t, sig.Reason, "Poor R:R")
	})
	t.Run("passes with slippage", func(t *testing.T) {
		sig := applyRiskFilter(buy("Momentum", 100, 98, 104, 85, "x"), 100)
		assert.Equal(t, ActionBuy, sig.Action)
		assert.Equal(t, 1.81, sig.RiskReward)
		assert.Equal(t, 100.1, sig.AdjustedEntry)
		assert.Contains(t, sig.RiskNotes, "Stop Loss is Mandatory")
	})
	t.Run("wait untouched", func(t *testing.T) {
		sig := applyRiskFilter(wait("x", "nothing"), 100)
		assert.Equal(t, ActionWait, sig.Action)
		assert.Empty(t, sig.RiskNotes)
	})
}

func TestGate_ConfluenceBuy(t *testing.T) {
	g := NewGate(strictConfig(), ist)
	v := g.Evaluate(trendingSnapshot(), at(12, 0))

	assert.Equal(t, RegimeTrending, v.Regime)
	assert.Equal(t, Bullish, v.Bias)
	assert.Equal(t, ActionBuy, v.Action)
	assert.Equal(t, 7, v.Active)
	assert.Equal(t, 3, v.Agreeing)
	assert.InDelta(t, (85.0+90.0+88.0)/3, v.Confidence, 1e-9)
	assert.False(t, v.ForcedWait)

	best, ok := v.Strongest()
	require.True(t, ok)
	assert.Equal(t, "Scalping", best.Strategy)
	assert.Equal(t, 101.0, best.Entry)
}

func TestGate_MinConfluence(t *testing.T) {
	cfg := strictConfig()
	cfg.MinConfluence = 4
	v := NewGate(cfg, ist).Evaluate(trendingSnapshot(), at(12, 0))
	assert.Equal(t, 3, v.Agreeing)
	assert.Equal(t, ActionWait, v.Action)
}

func TestGate_BearishBiasForcesWait(t *testing.T) {
	snap := trendingSnapshot()
	snap.DMA50 = 105
	snap.DMA200 = 110

	v := NewGate(strictConfig(), ist).Evaluate(snap, at(12, 0))
	assert.Equal(t, Bearish, v.Bias)
	assert.True(t, v.ForcedWait)
	assert.Equal(t, ActionWait, v.Action)
	assert.Equal(t, 0, v.Agreeing)
	assert.Equal(t, 0.0, v.Confidence)
	for _, vote := range v.Breakdown {
		assert.Equal(t, ActionWait, vote.Action, vote.Strategy)
	}
	assert.Equal(t, "GATED: Bias conflict (BEARISH), forcing WAIT.", v.Breakdown[0].Reason)
	_, ok := v.Strongest()
	assert.False(t, ok)

	relaxed := strictConfig()
	relaxed.RequireBiasAlignment = false
	v = NewGate(relaxed, ist).Evaluate(snap, at(12, 0))
	assert.False(t, v.ForcedWait)
	assert.Equal(t, ActionBuy, v.Action)
}

func TestGate_SidewaysBiasUsesRangingVoters(t *testing.T) {
	snap := trendingSnapshot()
	snap.DMA50, snap.DMA200 = 0, 0
	snap.BBLower = 102
	snap.RSI14 = 30

	v := NewGate(strictConfig(), ist).Evaluate(snap, at(12, 0))
	assert.Equal(t, RegimeRanging, v.Regime)
	assert.Equal(t, 3, v.Active)
	assert.Equal(t, 3, v.Agreeing)
	assert.Equal(t, ActionBuy, v.Action)
	assert.Contains(t, v.Warnings[0], "SIDEWAYS")
	assert.False(t, v.InstitutionalBias)
}

func TestInstitutionalFlow_Windows(t *testing.T) {
	snap := trendingSnapshot()
	snap.VolumeRatio = 1.6
	s := institutionalFlow{}

	cases := []struct {
		at   time.Time
		want Action
	}{
		{at(10, 29), ActionWait},
		{at(10, 30), ActionBuy},
		{at(11, 30), ActionBuy},
		{at(11, 31), ActionWait},
		{at(13, 45), ActionBuy},
		{at(14, 31), ActionWait},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, s.Analyze(snap, tc.at).Action, tc.at.Format("15:04"))
	}
	sig := s.Analyze(snap, at(12, 0))
	assert.Contains(t, sig.Breakdown, "Outside institutional window")
}

func TestStopHuntProtection_TimeFilters(t *testing.T) {
	snap := trendingSnapshot()
	snap.OpeningRangeHigh = 100
	snap.VolumeRatio = 2.0
	s := stopHuntProtection{}

	assert.Equal(t, "Avoiding manipulation zone (9:15-9:30 AM)", s.Analyze(snap, at(9, 20)).Reason)
	assert.Equal(t, ActionBuy, s.Analyze(snap, at(9, 30)).Action)
	assert.Equal(t, ActionBuy, s.Analyze(snap, at(14, 29)).Action)
	assert.Equal(t, ActionWait, s.Analyze(snap, at(14, 30)).Action)
	assert.Equal(t, "Avoiding late-day trap (after 2:30 PM)", s.Analyze(snap, at(15, 10)).Reason)

	snap.VolumeRatio = 1.5
	sig := s.Analyze(snap, at(12, 0))
	assert.Equal(t, ActionWait, sig.Action)
	assert.Contains(t, sig.Breakdown, "Volume not sustained (1.5x < 1.8x)")
}

func TestGate_UsesSessionLocation(t *testing.T) {
	snap := trendingSnapshot()
	snap.VolumeRatio = 1.6
	g := NewGate(strictConfig(), ist, institutionalFlow{})

	// 05:15 UTC is 10:45 IST.
	v := g.Evaluate(snap, time.Date(2026, 1, 5, 5, 15, 0, 0, time.UTC))
	require.Len(t, v.Breakdown, 1)
	assert.Equal(t, ActionBuy, v.Breakdown[0].Action)
}
