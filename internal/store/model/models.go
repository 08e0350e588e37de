package model

import (
	"encoding/json"
	"time"

	"daybot/internal/types"

	"gorm.io/datatypes"
)

type PositionModel struct {
	Symbol        string  `gorm:"column:symbol;primaryKey"`
	Quantity      int     `gorm:"column:quantity"`
	AvgPrice      float64 `gorm:"column:avg_price"`
	MarkPrice     float64 `gorm:"column:current_price"`
	UnrealizedPnL float64 `gorm:"column:unrealized_pnl"`
	EntryOrderID  string  `gorm:"column:entry_order_id"`
	StopLoss      float64 `gorm:"column:stop_loss_price"`
	Target        float64 `gorm:"column:target_price"`
	Strategy      string  `gorm:"column:strategy"`
	OpenedAtUnix  int64   `gorm:"column:opened_at"`
	UpdatedAtUnix int64   `gorm:"column:updated_at"`
}

func (PositionModel) TableName() string { return "positions" }

type LedgerModel struct {
	Date               string  `gorm:"column:date;primaryKey"`
	RealizedPnL        float64 `gorm:"column:realized_pnl"`
	UnrealizedPnL      float64 `gorm:"column:unrealized_pnl"`
	RemainingBudget    float64 `gorm:"column:loss_budget_remaining"`
	MaxDailyLoss       float64 `gorm:"column:max_daily_loss"`
	MaxTrades          int     `gorm:"column:max_trades"`
	SafeMode           bool    `gorm:"column:safe_mode"`
	ActiveStrategy     string  `gorm:"column:active_strategy"`
	StrategySwitchUnix *int64  `gorm:"column:strategy_switched_at"`
	TradesCount        int     `gorm:"column:trades_count"`
	HITLPending        int     `gorm:"column:hitl_approvals_pending"`
	HITLApproved       int     `gorm:"column:hitl_approvals_given"`
	UpdatedAtUnix      int64   `gorm:"column:updated_at"`
}

func (LedgerModel) TableName() string { return "daily_risk_state" }

type ProposalModel struct {
	ID            int64          `gorm:"column:id;primaryKey;autoIncrement"`
	TraceID       string         `gorm:"column:trace_id;uniqueIndex"`
	StrategyID    string         `gorm:"column:strategy_id"`
	Symbol        string         `gorm:"column:symbol;index"`
	Side          string         `gorm:"column:side"`
	Style         string         `gorm:"column:entry_type"`
	EntryPrice    float64        `gorm:"column:entry_price"`
	Quantity      int            `gorm:"column:quantity"`
	StopLoss      *float64       `gorm:"column:stop_loss_price"`
	Target        float64        `gorm:"column:target_price"`
	Confidence    float64        `gorm:"column:confidence_score"`
	Rationale     string         `gorm:"column:rationale"`
	ExpectedRisk  float64        `gorm:"column:expected_risk"`
	Invalidations datatypes.JSON `gorm:"column:invalidation_conditions;type:TEXT"`
	SnapshotID    int64          `gorm:"column:market_snapshot_id"`
	Status        string         `gorm:"column:status;index"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
}

func (ProposalModel) TableName() string { return "trade_intents" }

type DecisionModel struct {
	ID               int64          `gorm:"column:id;primaryKey;autoIncrement"`
	ProposalID       int64          `gorm:"column:intent_id;index"`
	Approved         bool           `gorm:"column:approved"`
	AdjustedQuantity int            `gorm:"column:adjusted_quantity"`
	RejectionReason  string         `gorm:"column:rejection_reason"`
	Reasons          datatypes.JSON `gorm:"column:reasons;type:TEXT"`
	Flags            datatypes.JSON `gorm:"column:guardrail_flags;type:TEXT"`
	HITLRequired     bool           `gorm:"column:hitl_required"`
	HITLReason       string         `gorm:"column:hitl_reason"`
	HITLStatus       string         `gorm:"column:hitl_status;index"`
	SafeModeActive   bool           `gorm:"column:safe_mode_active"`
	RemainingBudget  float64        `gorm:"column:remaining_loss_budget"`
	TradesToday      int            `gorm:"column:trades_today"`
	ActiveStrategy   string         `gorm:"column:current_strategy"`
	CreatedAtUnix    int64          `gorm:"column:created_at"`
}

func (DecisionModel) TableName() string { return "approval_decisions" }

type OrderModel struct {
	ID             string  `gorm:"column:order_id;primaryKey"`
	ProposalID     int64   `gorm:"column:intent_id;index"`
	Symbol         string  `gorm:"column:symbol;index"`
	Side           string  `gorm:"column:side"`
	Quantity       int     `gorm:"column:quantity"`
	Style          string  `gorm:"column:order_type"`
	LimitPrice     float64 `gorm:"column:limit_price"`
	Status         string  `gorm:"column:status"`
	FillPrice      float64 `gorm:"column:fill_price"`
	FilledAtUnix   *int64  `gorm:"column:fill_timestamp"`
	Slippage       float64 `gorm:"column:slippage"`
	Fee            float64 `gorm:"column:brokerage"`
	ReferencePrice float64 `gorm:"column:simulated_ltp"`
	Purpose        string  `gorm:"column:purpose"`
	CreatedAtUnix  int64   `gorm:"column:created_at"`
}

func (OrderModel) TableName() string { return "simulated_orders" }

// SnapshotModel keeps the full snapshot as JSON next to a few query columns.
type SnapshotModel struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement"`
	Symbol    string         `gorm:"column:symbol;index:idx_snapshot_symbol_ts,priority:1"`
	Timestamp int64          `gorm:"column:timestamp;index:idx_snapshot_symbol_ts,priority:2"`
	LastPrice float64        `gorm:"column:ltp"`
	Regime    string         `gorm:"column:regime"`
	Payload   datatypes.JSON `gorm:"column:payload;type:TEXT"`
}

func (SnapshotModel) TableName() string { return "market_snapshots" }

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func optUnixMilli(t *time.Time) *int64 {
	if t == nil || t.IsZero() {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func optFromUnixMilli(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms)
	return &t
}

func mustJSON(v any) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(raw)
}

func FromPosition(p types.Position) PositionModel {
	return PositionModel{
		Symbol:        p.Symbol,
		Quantity:      p.Quantity,
		AvgPrice:      p.AvgPrice,
		MarkPrice:     p.MarkPrice,
		UnrealizedPnL: p.UnrealizedPnL,
		EntryOrderID:  p.EntryOrderID,
		StopLoss:      p.StopLoss,
		Target:        p.Target,
		Strategy:      string(p.Strategy),
		OpenedAtUnix:  unixMilli(p.OpenedAt),
		UpdatedAtUnix: unixMilli(p.UpdatedAt),
	}
}

func (m PositionModel) Position() types.Position {
	return types.Position{
		Symbol:        m.Symbol,
		Quantity:      m.Quantity,
		AvgPrice:      m.AvgPrice,
		MarkPrice:     m.MarkPrice,
		UnrealizedPnL: m.UnrealizedPnL,
		EntryOrderID:  m.EntryOrderID,
		StopLoss:      m.StopLoss,
		Target:        m.Target,
		Strategy:      types.StrategyID(m.Strategy),
		OpenedAt:      fromUnixMilli(m.OpenedAtUnix),
		UpdatedAt:     fromUnixMilli(m.UpdatedAtUnix),
	}
}

func FromLedger(l types.Ledger) LedgerModel {
	return LedgerModel{
		Date:               l.Date,
		RealizedPnL:        l.RealizedPnL,
		UnrealizedPnL:      l.UnrealizedPnL,
		RemainingBudget:    l.RemainingBudget,
		MaxDailyLoss:       l.MaxDailyLoss,
		MaxTrades:          l.MaxTrades,
		SafeMode:           l.SafeMode,
		ActiveStrategy:     string(l.ActiveStrategy),
		StrategySwitchUnix: optUnixMilli(l.StrategySwitchedAt),
		TradesCount:        l.TradesCount,
		HITLPending:        l.HITLPending,
		HITLApproved:       l.HITLApproved,
		UpdatedAtUnix:      unixMilli(l.UpdatedAt),
	}
}

func (m LedgerModel) Ledger() types.Ledger {
	return types.Ledger{
		Date:               m.Date,
		RealizedPnL:        m.RealizedPnL,
		UnrealizedPnL:      m.UnrealizedPnL,
		RemainingBudget:    m.RemainingBudget,
		MaxDailyLoss:       m.MaxDailyLoss,
		MaxTrades:          m.MaxTrades,
		SafeMode:           m.SafeMode,
		ActiveStrategy:     types.StrategyID(m.ActiveStrategy),
		StrategySwitchedAt: optFromUnixMilli(m.StrategySwitchUnix),
		TradesCount:        m.TradesCount,
		HITLPending:        m.HITLPending,
		HITLApproved:       m.HITLApproved,
		UpdatedAt:          fromUnixMilli(m.UpdatedAtUnix),
	}
}

func FromProposal(p types.Proposal) ProposalModel {
	return ProposalModel{
		ID:            p.ID,
		TraceID:       p.TraceID,
		StrategyID:    string(p.StrategyID),
		Symbol:        p.Symbol,
		Side:          string(p.Side),
		Style:         string(p.Style),
		EntryPrice:    p.EntryPrice,
		Quantity:      p.Quantity,
		StopLoss:      p.StopLoss,
		Target:        p.Target,
		Confidence:    p.Confidence,
		Rationale:     p.Rationale,
		ExpectedRisk:  p.ExpectedRisk,
		Invalidations: mustJSON(p.Invalidations),
		SnapshotID:    p.SnapshotID,
		Status:        string(p.Status),
		CreatedAtUnix: unixMilli(p.CreatedAt),
	}
}

func (m ProposalModel) Proposal() types.Proposal {
	var inv []string
	_ = json.Unmarshal(m.Invalidations, &inv)
	return types.Proposal{
		ID:            m.ID,
		TraceID:       m.TraceID,
		StrategyID:    types.StrategyID(m.StrategyID),
		Symbol:        m.Symbol,
		Side:          types.Side(m.Side),
		Style:         types.OrderStyle(m.Style),
		EntryPrice:    m.EntryPrice,
		Quantity:      m.Quantity,
		StopLoss:      m.StopLoss,
		Target:        m.Target,
		Confidence:    m.Confidence,
		Rationale:     m.Rationale,
		ExpectedRisk:  m.ExpectedRisk,
		Invalidations: inv,
		SnapshotID:    m.SnapshotID,
		Status:        types.ProposalStatus(m.Status),
		CreatedAt:     fromUnixMilli(m.CreatedAtUnix),
	}
}

func FromDecision(d types.Decision) DecisionModel {
	return DecisionModel{
		ID:               d.ID,
		ProposalID:       d.ProposalID,
		Approved:         d.Approved,
		AdjustedQuantity: d.AdjustedQuantity,
		RejectionReason:  d.RejectionReason,
		Reasons:          mustJSON(d.Reasons),
		Flags:            mustJSON(d.Flags),
		HITLRequired:     d.HITLRequired,
		HITLReason:       d.HITLReason,
		HITLStatus:       string(d.HITLStatus),
		SafeModeActive:   d.SafeModeActive,
		RemainingBudget:  d.RemainingBudget,
		TradesToday:      d.TradesToday,
		ActiveStrategy:   string(d.ActiveStrategy),
		CreatedAtUnix:    unixMilli(d.CreatedAt),
	}
}

func (m DecisionModel) Decision() types.Decision {
	var reasons []string
	_ = json.Unmarshal(m.Reasons, &reasons)
	flags := make(map[string]any)
	_ = json.Unmarshal(m.Flags, &flags)
	return types.Decision{
		ID:               m.ID,
		ProposalID:       m.ProposalID,
		Approved:         m.Approved,
		AdjustedQuantity: m.AdjustedQuantity,
		RejectionReason:  m.RejectionReason,
		Reasons:          reasons,
		Flags:            flags,
		HITLRequired:     m.HITLRequired,
		HITLReason:       m.HITLReason,
		HITLStatus:       types.HITLStatus(m.HITLStatus),
		SafeModeActive:   m.SafeModeActive,
		RemainingBudget:  m.RemainingBudget,
		TradesToday:      m.TradesToday,
		ActiveStrategy:   types.StrategyID(m.ActiveStrategy),
		CreatedAt:        fromUnixMilli(m.CreatedAtUnix),
	}
}

func FromOrder(o types.Order) OrderModel {
	return OrderModel{
		ID:             o.ID,
		ProposalID:     o.ProposalID,
		Symbol:         o.Symbol,
		Side:           string(o.Side),
		Quantity:       o.Quantity,
		Style:          string(o.Style),
		LimitPrice:     o.LimitPrice,
		Status:         string(o.Status),
		FillPrice:      o.FillPrice,
		FilledAtUnix:   optUnixMilli(o.FilledAt),
		Slippage:       o.Slippage,
		Fee:            o.Fee,
		ReferencePrice: o.ReferencePrice,
		Purpose:        o.Purpose,
		CreatedAtUnix:  unixMilli(o.CreatedAt),
	}
}

func (m OrderModel) Order() types.Order {
	return types.Order{
		ID:             m.ID,
		ProposalID:     m.ProposalID,
		Symbol:         m.Symbol,
		Side:           types.Side(m.Side),
		Quantity:       m.Quantity,
		Style:          types.OrderStyle(m.Style),
		LimitPrice:     m.LimitPrice,
		Status:         types.OrderStatus(m.Status),
		FillPrice:      m.FillPrice,
		FilledAt:       optFromUnixMilli(m.FilledAtUnix),
		Slippage:       m.Slippage,
		Fee:            m.Fee,
		ReferencePrice: m.ReferencePrice,
		Purpose:        m.Purpose,
		CreatedAt:      fromUnixMilli(m.CreatedAtUnix),
	}
}

func FromSnapshot(s types.MarketSnapshot) SnapshotModel {
	return SnapshotModel{
		ID:        s.ID,
		Symbol:    s.Symbol,
		Timestamp: unixMilli(s.Timestamp),
		LastPrice: s.LastPrice,
		Regime:    string(s.Regime),
		Payload:   mustJSON(s),
	}
}

func (m SnapshotModel) Snapshot() types.MarketSnapshot {
	var s types.MarketSnapshot
	_ = json.Unmarshal(m.Payload, &s)
	s.ID = m.ID
	return s
}
