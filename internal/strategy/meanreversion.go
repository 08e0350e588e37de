package strategy

import (
	"fmt"
	"math"

	"daybot/internal/types"
)

// meanReversion fades stretched prices back to VWAP in ranging markets.
type meanReversion struct{}

func (meanReversion) ID() types.StrategyID { return MeanReversion }

func (meanReversion) Score(s types.MarketSnapshot) Score {
	sc := newScorer()
	ltp := s.LastPrice

	if dev := math.Abs(s.VWAPDeviationPct()); dev > 1.5 {
		sc.add(0.3, fmt.Sprintf("Price %.2f%% from VWAP (mean reversion opportunity)", dev))
		sc.metrics["vwap_deviation_pct"] = dev
	}

	if s.BBUpper != 0 && s.BBLower != 0 && ltp != 0 {
		upper := math.Abs(ltp-s.BBUpper) / ltp * 100
		lower := math.Abs(ltp-s.BBLower) / ltp * 100
		switch {
		case upper < 0.5:
			sc.add(0.3, fmt.Sprintf("Price near upper Bollinger Band (%.2f)", s.BBUpper))
			sc.metrics["bb_touch"] = "upper"
		case lower < 0.5:
			sc.add(0.3, fmt.Sprintf("Price near lower Bollinger Band (%.2f)", s.BBLower))
			sc.metrics["bb_touch"] = "lower"
		}
	}

	if s.Regime.Choppy() {
		sc.add(0.25, fmt.Sprintf("Ranging market (%s) favors mean reversion", s.Regime))
	} else {
		sc.add(-0.15, fmt.Sprintf("Trending market (%s) reduces mean reversion edge", s.Regime))
	}

	if s.VolatilityPercentile > 30 && s.VolatilityPercentile < 70 {
		sc.add(0.15, "Moderate volatility suitable for mean reversion")
	}
	return sc.finish(MeanReversion, "Mean Reversion", "No mean reversion setup")
}

// Trade rests a limit at the last price and targets VWAP.
func (meanReversion) Trade(s types.MarketSnapshot) Trade {
	ltp := s.LastPrice
	if ltp > s.VWAP {
		return Trade{Side: types.SideSell, Style: types.OrderLimit, Entry: ltp, Stop: ltp * 1.01, Target: s.VWAP}
	}
	return Trade{Side: types.SideBuy, Style: types.OrderLimit, Entry: ltp, Stop: ltp * 0.99, Target: s.VWAP}
}

func (meanReversion) Invalidations(types.MarketSnapshot) []string {
	return []string{
		"Price continues trending away from VWAP",
		"Regime changes to strong trending",
		"Volume surge indicates breakout, not reversion",
	}
}
