package engine

import (
	"fmt"
	"strings"

	"daybot/internal/strategy"
	"daybot/internal/strategy/ensemble"
	"daybot/internal/types"
)

// signalStrategy presents the strongest agreeing ensemble signal as a
// strategy so the evaluator can build the proposal the usual way.
type signalStrategy struct {
	signal  ensemble.Signal
	verdict ensemble.Verdict
}

func (s signalStrategy) ID() types.StrategyID {
	return types.StrategyID("confluence_" + strings.ToLower(s.signal.Strategy))
}

func (s signalStrategy) Score(types.MarketSnapshot) strategy.Score {
	return strategy.Score{
		Strategy:   s.ID(),
		Confidence: s.verdict.Confidence / 100,
		Rationale: fmt.Sprintf("Confluence BUY: %d/%d strategies agree (%s regime, bias %s, trend %s). Strongest: %s, %s",
			s.verdict.Agreeing, s.verdict.Active, s.verdict.Regime, s.verdict.Bias, s.verdict.Trend,
			s.signal.Strategy, s.signal.Reason),
		Metrics: map[string]any{
			"agreeing":       s.verdict.Agreeing,
			"active":         s.verdict.Active,
			"gate_conf":      s.verdict.Confidence,
			"signal_conf":    s.signal.Confidence,
			"risk_reward":    s.signal.RiskReward,
			"institutional":  s.verdict.InstitutionalBias,
			"adjusted_entry": s.signal.AdjustedEntry,
		},
	}
}

// Trade enters at market; the signal supplies the bracket.
func (s signalStrategy) Trade(snap types.MarketSnapshot) strategy.Trade {
	return strategy.Trade{
		Side:   types.SideBuy,
		Style:  types.OrderMarket,
		Entry:  snap.LastPrice,
		Stop:   s.signal.Stop,
		Target: s.signal.Target,
	}
}

func (s signalStrategy) Invalidations(types.MarketSnapshot) []string {
	out := []string{fmt.Sprintf("Price closes below stop %.2f", s.signal.Stop)}
	out = append(out, s.signal.RiskNotes...)
	return out
}
