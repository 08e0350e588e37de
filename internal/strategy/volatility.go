package strategy

import (
	"fmt"

	"daybot/internal/types"
)

// volatilityExpansion looks for band compression followed by a breakout.
type volatilityExpansion struct{}

func (volatilityExpansion) ID() types.StrategyID { return VolatilityExpansion }

func (volatilityExpansion) Score(s types.MarketSnapshot) Score {
	sc := newScorer()
	ltp := s.LastPrice

	if s.BBWidth != 0 && s.ATR != 0 && ltp != 0 {
		if width := s.BBWidth / ltp * 100; width < 2.0 {
			sc.add(0.3, fmt.Sprintf("Bollinger Bands compressed (%.2f%%)", width))
			sc.metrics["bb_width_pct"] = width
		}
	}

	switch {
	case s.VolatilityPercentile < 30:
		sc.add(0.25, fmt.Sprintf("Low volatility (%.0fth percentile) - expansion likely", s.VolatilityPercentile))
	case s.VolatilityPercentile > 70:
		sc.add(0.15, fmt.Sprintf("Volatility expanding (%.0fth percentile)", s.VolatilityPercentile))
	}

	if s.BBUpper != 0 && s.BBLower != 0 && (ltp > s.BBUpper || ltp < s.BBLower) {
		sc.add(0.25, "Price breaking out of Bollinger Bands")
		if ltp > s.BBUpper {
			sc.metrics["breakout_direction"] = "up"
		} else {
			sc.metrics["breakout_direction"] = "down"
		}
	}

	if s.AvgVolume20 != 0 && s.Volume > s.AvgVolume20*1.5 {
		sc.add(0.2, "Volume surge confirms expansion")
		sc.metrics["volume_ratio"] = s.Volume / s.AvgVolume20
	}
	return sc.finish(VolatilityExpansion, "Volatility Expansion", "No volatility expansion setup")
}

// Trade goes with the band break, defaulting to a long when price is inside.
func (volatilityExpansion) Trade(s types.MarketSnapshot) Trade {
	ltp := s.LastPrice
	switch {
	case s.BBUpper != 0 && ltp > s.BBUpper:
		stop := s.BBMiddle
		if stop == 0 {
			stop = ltp * 0.99
		}
		return marketTrade(types.SideBuy, ltp, stop, ltp*1.02)
	case s.BBLower != 0 && ltp < s.BBLower:
		stop := s.BBMiddle
		if stop == 0 {
			stop = ltp * 1.01
		}
		return marketTrade(types.SideSell, ltp, stop, ltp*0.98)
	default:
		return marketTrade(types.SideBuy, ltp, ltp*0.99, ltp*1.02)
	}
}

func (volatilityExpansion) Invalidations(types.MarketSnapshot) []string {
	return []string{
		"Volatility contracts again (false breakout)",
		"Price returns inside Bollinger Bands",
		"Volume dries up",
	}
}
