package types

import "time"

type HITLStatus string

const (
	HITLNone     HITLStatus = ""
	HITLPending  HITLStatus = "pending"
	HITLApproved HITLStatus = "approved"
	HITLRejected HITLStatus = "rejected"
)

// Guardrail flag names recorded on decisions.
const (
	FlagSafeMode                    = "safe_mode"
	FlagMissingStopLoss             = "missing_stop_loss"
	FlagInvalidStopLoss             = "invalid_stop_loss"
	FlagLossBudgetExhausted         = "loss_budget_exhausted"
	FlagRiskExceedsBudget           = "risk_exceeds_budget"
	FlagPerTradeRiskExceeded        = "per_trade_risk_exceeded"
	FlagMaxRiskPerTrade             = "max_risk_per_trade"
	FlagMaxTradesReached            = "max_trades_reached"
	FlagStrategySwitchCooldown      = "strategy_switch_cooldown"
	FlagStrategySwitchConfidenceLow = "strategy_switch_confidence_low"
	FlagStrategySwitch              = "strategy_switch"
	FlagInvalidSymbol               = "invalid_symbol"
	FlagHITLRequired                = "hitl_required"
	FlagQuantityAdjusted            = "quantity_adjusted"
)

// Decision is the guardrail verdict for one proposal. Once persisted only its
// HITL status changes.
type Decision struct {
	ID               int64          `json:"id,omitempty"`
	ProposalID       int64          `json:"intent_id,omitempty"`
	Approved         bool           `json:"approved"`
	AdjustedQuantity int            `json:"adjusted_quantity,omitempty"`
	RejectionReason  string         `json:"rejection_reason,omitempty"`
	Reasons          []string       `json:"reasons,omitempty"`
	Flags            map[string]any `json:"guardrail_flags"`
	HITLRequired     bool           `json:"hitl_required"`
	HITLReason       string         `json:"hitl_reason,omitempty"`
	HITLStatus       HITLStatus     `json:"hitl_status,omitempty"`
	SafeModeActive   bool           `json:"safe_mode_active"`
	RemainingBudget  float64        `json:"remaining_loss_budget"`
	TradesToday      int            `json:"trades_today"`
	ActiveStrategy   StrategyID     `json:"current_strategy,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Reject marks the decision rejected, overwriting the reason and recording the flag.
func (d *Decision) Reject(flag, reason string) {
	d.Approved = false
	d.RejectionReason = reason
	d.Reasons = append(d.Reasons, reason)
	d.SetFlag(flag, true)
}

func (d *Decision) SetFlag(name string, value any) {
	if d.Flags == nil {
		d.Flags = make(map[string]any)
	}
	d.Flags[name] = value
}

// HasFlag reports whether name was recorded.
func (d Decision) HasFlag(name string) bool {
	_, ok := d.Flags[name]
	return ok
}

// Quantity resolves the quantity to execute for p.
func (d Decision) Quantity(p Proposal) int {
	if d.AdjustedQuantity > 0 {
		return d.AdjustedQuantity
	}
	return p.Quantity
}
