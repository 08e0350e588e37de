package types

import "time"

// DateLayout is the key format for daily ledgers.
const DateLayout = "2006-01-02"

// Ledger is the per-day risk state. SafeMode is a one-way latch within a day.
type Ledger struct {
	Date               string     `json:"date"`
	RealizedPnL        float64    `json:"realized_pnl"`
	UnrealizedPnL      float64    `json:"unrealized_pnl"`
	RemainingBudget    float64    `json:"loss_budget_remaining"`
	MaxDailyLoss       float64    `json:"max_daily_loss"`
	MaxTrades          int        `json:"max_trades"`
	SafeMode           bool       `json:"safe_mode"`
	ActiveStrategy     StrategyID `json:"active_strategy,omitempty"`
	StrategySwitchedAt *time.Time `json:"strategy_switched_at,omitempty"`
	TradesCount        int        `json:"trades_count"`
	HITLPending        int        `json:"hitl_approvals_pending"`
	HITLApproved       int        `json:"hitl_approvals_given"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// NewLedger returns a fresh ledger with the full loss budget.
func NewLedger(date string, maxDailyLoss float64, maxTrades int) Ledger {
	return Ledger{
		Date:            date,
		RemainingBudget: maxDailyLoss,
		MaxDailyLoss:    maxDailyLoss,
		MaxTrades:       maxTrades,
	}
}

func (l Ledger) TotalPnL() float64 {
	return l.RealizedPnL + l.UnrealizedPnL
}

// ApplyRealized folds a realized PnL delta into the ledger. The remaining
// budget tracks realized losses only and never exceeds the daily ceiling.
// It returns true when this call latched safe mode.
func (l *Ledger) ApplyRealized(delta float64) bool {
	l.RealizedPnL += delta
	loss := l.RealizedPnL
	if loss > 0 {
		loss = 0
	}
	l.RemainingBudget = l.MaxDailyLoss + loss
	if l.RemainingBudget <= 0 && !l.SafeMode {
		l.SafeMode = true
		return true
	}
	return false
}

// RecordFill bumps the trade count and tracks strategy switches.
func (l *Ledger) RecordFill(strategy StrategyID, now time.Time) {
	l.TradesCount++
	if l.ActiveStrategy != "" && l.ActiveStrategy != strategy {
		ts := now
		l.StrategySwitchedAt = &ts
	}
	l.ActiveStrategy = strategy
}
