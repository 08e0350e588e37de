package strategy

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"daybot/internal/logger"
	"daybot/internal/types"
)

// DefaultMinConfidence is the score a winning strategy must reach to trade.
const DefaultMinConfidence = 0.6

// Evaluator scores every registered strategy against a snapshot and turns
// the best one into a proposal.
type Evaluator struct {
	strategies    []Strategy
	minConfidence float64
	rationale     Rationale
	now           func() time.Time
}

func NewEvaluator(strategies []Strategy, minConfidence float64, rationale Rationale) *Evaluator {
	if len(strategies) == 0 {
		strategies = Default()
	}
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	return &Evaluator{
		strategies:    strategies,
		minConfidence: minConfidence,
		rationale:     rationale,
		now:           time.Now,
	}
}

// Strategies returns the registry in evaluation order.
func (e *Evaluator) Strategies() []Strategy {
	return append([]Strategy(nil), e.strategies...)
}

// Scores runs every strategy in registration order.
func (e *Evaluator) Scores(snap types.MarketSnapshot) []Score {
	out := make([]Score, 0, len(e.strategies))
	for _, s := range e.strategies {
		score := s.Score(snap)
		logger.InfoEvent("strategy_evaluated", map[string]any{
			"strategy":   string(score.Strategy),
			"confidence": score.Confidence,
			"symbol":     snap.Symbol,
		})
		out = append(out, score)
	}
	return out
}

// Evaluate returns the winning proposal, or false for "no trade".
func (e *Evaluator) Evaluate(ctx context.Context, snap types.MarketSnapshot) (*types.Proposal, bool) {
	if snap.LastPrice <= 0 {
		logger.Warnf("skip evaluation for %s: no last price", snap.Symbol)
		return nil, false
	}
	scores := e.Scores(snap)
	best := -1
	for i, sc := range scores {
		if best < 0 || sc.Confidence > scores[best].Confidence {
			best = i
		}
	}
	if best < 0 {
		return nil, false
	}
	logger.Infof("strategy scores for %s: %s", snap.Symbol, formatScores(scores))

	win := scores[best]
	if win.Confidence < e.minConfidence {
		logger.InfoEvent("no_trade_recommendation", map[string]any{
			"reason":          "confidence_below_threshold",
			"best_confidence": win.Confidence,
			"threshold":       e.minConfidence,
			"symbol":          snap.Symbol,
		})
		return nil, false
	}

	p := e.Build(ctx, snap, e.strategies[best], win)
	logger.InfoEvent("trade_intent_generated", map[string]any{
		"strategy":      string(p.StrategyID),
		"symbol":        p.Symbol,
		"side":          string(p.Side),
		"confidence":    p.Confidence,
		"expected_risk": p.ExpectedRisk,
	})
	return p, true
}

// Build derives the proposal for a selected strategy, including rationale.
func (e *Evaluator) Build(ctx context.Context, snap types.MarketSnapshot, s Strategy, score Score) *types.Proposal {
	trade := s.Trade(snap)
	const qty = 1
	return &types.Proposal{
		TraceID:       uuid.NewString(),
		StrategyID:    s.ID(),
		Symbol:        snap.Symbol,
		Side:          trade.Side,
		Style:         trade.Style,
		EntryPrice:    trade.Entry,
		Quantity:      qty,
		StopLoss:      types.Price(trade.Stop),
		Target:        trade.Target,
		Confidence:    score.Confidence,
		Rationale:     e.explain(ctx, snap, score, trade),
		ExpectedRisk:  math.Abs(snap.LastPrice-trade.Stop) * qty,
		Invalidations: s.Invalidations(snap),
		SnapshotID:    snap.ID,
		Status:        types.ProposalPending,
		CreatedAt:     e.now(),
	}
}

func (e *Evaluator) explain(ctx context.Context, snap types.MarketSnapshot, score Score, trade Trade) string {
	if e.rationale == nil {
		return score.Rationale
	}
	text, err := e.rationale.Explain(ctx, snap, score, trade)
	if err != nil {
		logger.Warnf("rationale generation failed for %s: %v", snap.Symbol, err)
		return score.Rationale
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return score.Rationale
	}
	return score.Rationale + "\n\nAnalysis: " + text
}

func formatScores(scores []Score) string {
	parts := make([]string, 0, len(scores))
	for _, sc := range scores {
		parts = append(parts, fmt.Sprintf("%s=%.2f", sc.Strategy, sc.Confidence))
	}
	return strings.Join(parts, " ")
}
