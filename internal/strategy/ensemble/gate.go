package ensemble

import (
	"time"

	"daybot/internal/logger"
	"daybot/internal/types"
)

const DefaultMinConfluence = 3

type Config struct {
	MinConfluence         int
	RequireBiasAlignment  bool
	RequireTrendAlignment bool
}

// Vote is one eligible strategy's contribution after gating.
type Vote struct {
	Strategy   string  `json:"name"`
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	Signal     Signal  `json:"signal"`
}

// Verdict is the gate's consolidated call. Confidence is on a 0-100 scale.
type Verdict struct {
	Action            Action    `json:"final_verdict"`
	Confidence        float64   `json:"confidence_score"`
	Agreeing          int       `json:"agreeing_strategies"`
	Active            int       `json:"active_strategies_count"`
	Bias              Direction `json:"market_bias"`
	Trend             Direction `json:"trend"`
	Regime            Regime    `json:"market_regime"`
	ForcedWait        bool      `json:"forced_wait"`
	InstitutionalBias bool      `json:"institutional_bias"`
	Breakdown         []Vote    `json:"strategy_breakdown"`
	Warnings          []string  `json:"risk_warnings"`
	At                time.Time `json:"timestamp"`
}

// Strongest returns the highest-confidence BUY signal, first registered on ties.
func (v Verdict) Strongest() (Signal, bool) {
	var best Signal
	found := false
	for _, vote := range v.Breakdown {
		if vote.Action != ActionBuy {
			continue
		}
		if !found || vote.Confidence > best.Confidence {
			best = vote.Signal
			found = true
		}
	}
	return best, found
}

// Gate runs regime-eligible strategies and requires confluence before BUY.
type Gate struct {
	strategies []Strategy
	cfg        Config
	loc        *time.Location
}

func NewGate(cfg Config, loc *time.Location, strategies ...Strategy) *Gate {
	if cfg.MinConfluence <= 0 {
		cfg.MinConfluence = DefaultMinConfluence
	}
	if loc == nil {
		loc = time.Local
	}
	if len(strategies) == 0 {
		strategies = Default()
	}
	return &Gate{strategies: strategies, cfg: cfg, loc: loc}
}

// Bias reads the higher-timeframe direction from the daily moving averages.
func Bias(snap types.MarketSnapshot) Direction {
	ltp, d50, d200 := snap.LastPrice, snap.DMA50, snap.DMA200
	if d50 <= 0 || d200 <= 0 {
		return Sideways
	}
	switch {
	case ltp > d50 && d50 > d200:
		return Bullish
	case ltp < d50 && d50 < d200:
		return Bearish
	}
	return Sideways
}

// Trend compares price with VWAP using a 0.2% dead band.
func Trend(snap types.MarketSnapshot) Direction {
	if snap.VWAP <= 0 {
		return Sideways
	}
	switch {
	case snap.LastPrice > snap.VWAP*1.002:
		return Bullish
	case snap.LastPrice < snap.VWAP*0.998:
		return Bearish
	}
	return Sideways
}

func gateRegime(bias, trend Direction) Regime {
	if bias == Sideways || trend == Sideways {
		return RegimeRanging
	}
	return RegimeTrending
}

func eligible(s Strategy, r Regime) bool {
	for _, v := range s.Regimes() {
		if v == r {
			return true
		}
	}
	return false
}

func (g *Gate) Evaluate(snap types.MarketSnapshot, now time.Time) Verdict {
	at := now.In(g.loc)
	bias := Bias(snap)
	trend := Trend(snap)
	regime := gateRegime(bias, trend)

	v := Verdict{Bias: bias, Trend: trend, Regime: regime, At: now}
	if bias == Sideways {
		v.Warnings = append(v.Warnings, "Bias is SIDEWAYS. Prefer WAIT or pure mean reversion.")
	}
	if g.cfg.RequireBiasAlignment && bias == Bearish {
		v.ForcedWait = true
		v.Warnings = append(v.Warnings, "Bias conflict (BEARISH), forcing WAIT.")
	}
	if g.cfg.RequireTrendAlignment && trend == Bearish {
		v.ForcedWait = true
		v.Warnings = append(v.Warnings, "Trend conflict (BEARISH), forcing WAIT.")
	}

	var confSum float64
	for _, s := range g.strategies {
		if !eligible(s, regime) {
			continue
		}
		sig := s.Analyze(snap, at)
		if v.ForcedWait && sig.Action == ActionBuy {
			sig.Action = ActionWait
			sig.Reason = "GATED: " + v.Warnings[len(v.Warnings)-1]
			sig.Confidence = 0
		}
		v.Breakdown = append(v.Breakdown, Vote{
			Strategy:   s.Name(),
			Action:     sig.Action,
			Confidence: sig.Confidence,
			Reason:     sig.Reason,
			Signal:     sig,
		})
		if sig.Action == ActionBuy {
			confSum += sig.Confidence
			v.Agreeing++
		}
	}
	v.Active = len(v.Breakdown)
	if v.Agreeing > 0 {
		v.Confidence = confSum / float64(v.Agreeing)
	}
	v.Action = ActionWait
	if v.Agreeing >= g.cfg.MinConfluence && !v.ForcedWait {
		v.Action = ActionBuy
	}
	v.InstitutionalBias = bias == Bullish && v.Agreeing > 4

	logger.InfoEvent("ensemble_verdict", map[string]any{
		"symbol":     snap.Symbol,
		"verdict":    string(v.Action),
		"confidence": v.Confidence,
		"agreeing":   v.Agreeing,
		"active":     v.Active,
		"bias":       string(bias),
		"trend":      string(trend),
		"regime":     string(regime),
	})
	return v
}
