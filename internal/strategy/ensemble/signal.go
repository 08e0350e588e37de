package ensemble

import (
	"fmt"
	"math"
)

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionWait Action = "WAIT"
)

// Regime is the coarse market state strategies declare eligibility for.
type Regime string

const (
	RegimeTrending Regime = "TRENDING"
	RegimeRanging  Regime = "RANGING"
	RegimeVolatile Regime = "VOLATILE"
)

var allRegimes = []Regime{RegimeTrending, RegimeRanging, RegimeVolatile}

type Direction string

const (
	Bullish  Direction = "BULLISH"
	Bearish  Direction = "BEARISH"
	Sideways Direction = "SIDEWAYS"
)

const (
	maxStopLossPct    = 0.10
	slippageBufferPct = 0.001
	minRiskReward     = 1.0
)

// Signal is one strategy's long-only opinion. Confidence is on a 0-100 scale.
type Signal struct {
	Strategy      string   `json:"strategy"`
	Action        Action   `json:"action"`
	Entry         float64  `json:"entry_price"`
	Stop          float64  `json:"stop_loss"`
	Target        float64  `json:"target"`
	Confidence    float64  `json:"confidence"`
	Reason        string   `json:"reason"`
	Breakdown     []string `json:"analysis_breakdown,omitempty"`
	RiskNotes     []string `json:"risk_notes,omitempty"`
	RiskReward    float64  `json:"risk_reward_ratio,omitempty"`
	AdjustedEntry float64  `json:"slippage_adjusted_entry,omitempty"`
}

func wait(name, reason string, breakdown ...string) Signal {
	return Signal{Strategy: name, Action: ActionWait, Reason: reason, Breakdown: breakdown}
}

func buy(name string, ltp, stop, target, confidence float64, reason string, breakdown ...string) Signal {
	return Signal{
		Strategy:   name,
		Action:     ActionBuy,
		Entry:      ltp,
		Stop:       stop,
		Target:     target,
		Confidence: confidence,
		Reason:     reason,
		Breakdown:  breakdown,
	}
}

// applyRiskFilter blocks BUY signals whose stop is wider than 10% or whose
// reward:risk falls under 1 after a 0.1% slippage buffer.
func applyRiskFilter(sig Signal, ltp float64) Signal {
	if sig.Action != ActionBuy {
		return sig
	}
	if sig.Entry <= 0 {
		sig.Action = ActionWait
		sig.Reason = "RISK BLOCK: no entry price"
		sig.Confidence = 0
		return sig
	}
	slDist := (sig.Entry - sig.Stop) / sig.Entry
	if slDist > maxStopLossPct {
		sig.Action = ActionWait
		sig.Reason = fmt.Sprintf("RISK BLOCK: SL > 10%% (%.1f%%)", slDist*100)
		sig.Confidence = 0
		return sig
	}

	slip := ltp * slippageBufferPct
	adjEntry := sig.Entry + slip
	adjTarget := sig.Target - slip
	profit := adjTarget - adjEntry
	loss := adjEntry - sig.Stop
	rr := 0.0
	if loss > 0 {
		rr = profit / loss
	}
	sig.RiskReward = round2(rr)
	sig.AdjustedEntry = round2(adjEntry)
	if rr < minRiskReward {
		sig.Action = ActionWait
		sig.Reason = fmt.Sprintf("RISK BLOCK: Poor R:R (%.2f after slippage)", sig.RiskReward)
		sig.Confidence = 0
	}
	sig.RiskNotes = append(sig.RiskNotes,
		"Stop Loss is Mandatory",
		fmt.Sprintf("Adj Entry: %.2f (Slippage incl.)", adjEntry),
		"No Guarantees",
	)
	return sig
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
