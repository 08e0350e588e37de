package strategy

import (
	"strings"

	"daybot/internal/types"
)

const (
	MomentumBreakout    types.StrategyID = "momentum_breakout"
	MeanReversion       types.StrategyID = "mean_reversion"
	VolatilityExpansion types.StrategyID = "volatility_expansion"
)

// Score is one strategy's read of a snapshot.
type Score struct {
	Strategy   types.StrategyID
	Confidence float64
	Rationale  string
	Metrics    map[string]any
}

// Trade is the order shape a strategy derives once it has been selected.
type Trade struct {
	Side   types.Side
	Style  types.OrderStyle
	Entry  float64
	Stop   float64
	Target float64
}

type Strategy interface {
	ID() types.StrategyID
	Score(s types.MarketSnapshot) Score
	Trade(s types.MarketSnapshot) Trade
	Invalidations(s types.MarketSnapshot) []string
}

// Default returns the built-in strategies in evaluation order. Earlier
// entries win exact ties.
func Default() []Strategy {
	return []Strategy{
		momentumBreakout{},
		meanReversion{},
		volatilityExpansion{},
	}
}

// scorer accumulates points and rationale fragments for one strategy.
type scorer struct {
	confidence float64
	points     []string
	metrics    map[string]any
}

func newScorer() *scorer {
	return &scorer{metrics: make(map[string]any)}
}

func (s *scorer) add(delta float64, point string) {
	s.confidence += delta
	s.points = append(s.points, point)
}

func (s *scorer) finish(id types.StrategyID, prefix, empty string) Score {
	conf := s.confidence
	if conf > 1 {
		conf = 1
	}
	if conf < 0 {
		conf = 0
	}
	rationale := empty
	if len(s.points) > 0 {
		rationale = prefix + ": " + strings.Join(s.points, "; ")
	}
	return Score{Strategy: id, Confidence: conf, Rationale: rationale, Metrics: s.metrics}
}

func marketTrade(side types.Side, ltp, stop, target float64) Trade {
	return Trade{Side: side, Style: types.OrderMarket, Entry: ltp, Stop: stop, Target: target}
}
