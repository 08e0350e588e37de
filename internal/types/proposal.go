package types

import (
	"fmt"
	"time"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the side that closes a position opened on s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type OrderStyle string

const (
	OrderMarket    OrderStyle = "MARKET"
	OrderLimit     OrderStyle = "LIMIT"
	OrderStop      OrderStyle = "STOP"
	OrderStopLimit OrderStyle = "STOP_LIMIT"
)

type StrategyID string

type ProposalStatus string

const (
	ProposalPending         ProposalStatus = "pending"
	ProposalGated           ProposalStatus = "gated"
	ProposalRejected        ProposalStatus = "rejected"
	ProposalPendingHITL     ProposalStatus = "pending_hitl"
	ProposalHITLApproved    ProposalStatus = "hitl_approved"
	ProposalHITLRejected    ProposalStatus = "hitl_rejected"
	ProposalExecuted        ProposalStatus = "executed"
	ProposalExecutionFailed ProposalStatus = "execution_failed"
)

// Proposal is a strategy's recommended trade awaiting risk review. Only the
// guardrail decision may shrink its quantity, and it does so on the decision,
// never on the proposal itself.
type Proposal struct {
	ID            int64          `json:"id,omitempty"`
	TraceID       string         `json:"trace_id"`
	StrategyID    StrategyID     `json:"strategy_id"`
	Symbol        string         `json:"symbol"`
	Side          Side           `json:"side"`
	Style         OrderStyle     `json:"entry_type"`
	EntryPrice    float64        `json:"entry_price"`
	Quantity      int            `json:"quantity"`
	StopLoss      *float64       `json:"stop_loss_price"`
	Target        float64        `json:"target_price,omitempty"`
	Confidence    float64        `json:"confidence_score"`
	Rationale     string         `json:"rationale"`
	ExpectedRisk  float64        `json:"expected_risk"`
	Invalidations []string       `json:"invalidation_conditions,omitempty"`
	SnapshotID    int64          `json:"market_snapshot_id,omitempty"`
	Status        ProposalStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Stop returns the stop-loss price and whether one is set.
func (p Proposal) Stop() (float64, bool) {
	if p.StopLoss == nil {
		return 0, false
	}
	return *p.StopLoss, true
}

// RiskPerUnit is |entry - stop|, or 0 when no stop is set.
func (p Proposal) RiskPerUnit() float64 {
	stop, ok := p.Stop()
	if !ok {
		return 0
	}
	d := p.EntryPrice - stop
	if d < 0 {
		d = -d
	}
	return d
}

// DedupKey identifies an order attempt for duplicate suppression.
func (p Proposal) DedupKey() string {
	return fmt.Sprintf("%s_%s_%s_%v", p.Symbol, p.Side, p.StrategyID, p.EntryPrice)
}

// Price returns a pointer to v, for optional price fields.
func Price(v float64) *float64 {
	return &v
}
