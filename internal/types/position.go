package types

import "time"

// Position is the open exposure in one instrument. Quantity is signed:
// positive is long, negative is short. A zero quantity is never stored.
type Position struct {
	Symbol        string     `json:"symbol"`
	Quantity      int        `json:"quantity"`
	AvgPrice      float64    `json:"avg_price"`
	MarkPrice     float64    `json:"current_price"`
	UnrealizedPnL float64    `json:"unrealized_pnl"`
	EntryOrderID  string     `json:"entry_order_id"`
	StopLoss      float64    `json:"stop_loss_price,omitempty"`
	Target        float64    `json:"target_price,omitempty"`
	Strategy      StrategyID `json:"strategy,omitempty"`
	OpenedAt      time.Time  `json:"opened_at"`
	UpdatedAt     time.Time  `json:"last_updated"`
}

func (p Position) Long() bool  { return p.Quantity > 0 }
func (p Position) Short() bool { return p.Quantity < 0 }

// Mark refreshes the mark price and unrealized PnL.
func (p *Position) Mark(price float64, now time.Time) {
	p.MarkPrice = price
	p.UnrealizedPnL = (price - p.AvgPrice) * float64(p.Quantity)
	p.UpdatedAt = now
}

// AbsQuantity is the unsigned size.
func (p Position) AbsQuantity() int {
	if p.Quantity < 0 {
		return -p.Quantity
	}
	return p.Quantity
}
