package strategy

import (
	"fmt"
	"math"

	"daybot/internal/types"
)

// momentumBreakout trades opening-range and VWAP breakouts confirmed by
// volume in trending regimes.
type momentumBreakout struct{}

func (momentumBreakout) ID() types.StrategyID { return MomentumBreakout }

func (momentumBreakout) Score(s types.MarketSnapshot) Score {
	sc := newScorer()
	ltp := s.LastPrice

	if s.OpeningRangeHigh != 0 && s.OpeningRangeLow != 0 {
		switch {
		case ltp > s.OpeningRangeHigh:
			sc.add(0.25, fmt.Sprintf("Price broke above opening range high (%.2f)", s.OpeningRangeHigh))
			sc.metrics["breakout_type"] = "or_high"
		case ltp < s.OpeningRangeLow:
			sc.add(0.25, fmt.Sprintf("Price broke below opening range low (%.2f)", s.OpeningRangeLow))
			sc.metrics["breakout_type"] = "or_low"
		}
	}

	if dev := s.VWAPDeviationPct(); math.Abs(dev) > 0.5 {
		sc.add(0.2, fmt.Sprintf("Price %+.2f%% from VWAP", dev))
		sc.metrics["vwap_deviation_pct"] = dev
	}

	if s.AvgVolume20 != 0 && s.Volume > s.AvgVolume20*1.2 {
		sc.add(0.2, "Above-average volume confirms breakout")
		sc.metrics["volume_ratio"] = s.Volume / s.AvgVolume20
	}

	if s.Regime.Trending() {
		sc.add(0.2, fmt.Sprintf("Trending regime (%s)", s.Regime))
	} else {
		sc.add(-0.1, fmt.Sprintf("Non-trending regime (%s) reduces confidence", s.Regime))
	}

	if s.LiquidityScore > 0.7 {
		sc.add(0.15, "High liquidity")
	}
	return sc.finish(MomentumBreakout, "Momentum Breakout", "No clear breakout setup")
}

// Trade follows the side of VWAP the price is on.
func (momentumBreakout) Trade(s types.MarketSnapshot) Trade {
	ltp := s.LastPrice
	if ltp > s.VWAP {
		return marketTrade(types.SideBuy, ltp, s.VWAP*0.995, ltp*1.015)
	}
	return marketTrade(types.SideSell, ltp, s.VWAP*1.005, ltp*0.985)
}

func (momentumBreakout) Invalidations(s types.MarketSnapshot) []string {
	return []string{
		fmt.Sprintf("Price falls back below VWAP (%.2f)", s.VWAP),
		"Volume drops significantly",
		"Regime changes to ranging/whipsaw",
	}
}
