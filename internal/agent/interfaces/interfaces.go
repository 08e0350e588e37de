package interfaces

import (
	"context"
	"time"

	"daybot/internal/executor/paper"
	"daybot/internal/strategy"
	"daybot/internal/strategy/ensemble"
	"daybot/internal/types"
)

// MarketService builds point-in-time snapshots for one instrument.
type MarketService interface {
	// Snapshot returns the latest indicator bundle for symbol.
	Snapshot(ctx context.Context, symbol string) (types.MarketSnapshot, error)
}

// Proposer scores strategies and turns a selection into a proposal.
type Proposer interface {
	// Evaluate returns the winning proposal, or false when nothing clears the bar.
	Evaluate(ctx context.Context, snap types.MarketSnapshot) (*types.Proposal, bool)

	// Build derives a proposal for an externally selected strategy.
	Build(ctx context.Context, snap types.MarketSnapshot, s strategy.Strategy, score strategy.Score) *types.Proposal
}

// Gate is the ensemble confluence check.
type Gate interface {
	Evaluate(snap types.MarketSnapshot, now time.Time) ensemble.Verdict
}

// Approver runs the guardrail battery over a proposal.
type Approver interface {
	Approve(ctx context.Context, p types.Proposal) (types.Decision, error)
}

// ExecutionService manages simulated orders and open positions.
type ExecutionService interface {
	// Execute places the order for an approved proposal. A nil order means nothing filled.
	Execute(ctx context.Context, p types.Proposal, d types.Decision) (*types.Order, error)

	// Monitor checks every open position against its stop and target.
	Monitor(ctx context.Context) ([]paper.Exit, error)

	// FlattenAll closes every open position at the latest price.
	FlattenAll(ctx context.Context, reason string) ([]paper.Exit, error)

	// Positions lists open positions.
	Positions(ctx context.Context) ([]types.Position, error)
}

// Universe lists the instruments evaluated each tick.
type Universe interface {
	Symbols() []string
}
