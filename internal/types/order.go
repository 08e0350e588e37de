package types

import "time"

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderFilled    OrderStatus = "FILLED"
	OrderRejected  OrderStatus = "REJECTED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Order is a simulated order. Filled orders are immutable.
type Order struct {
	ID             string      `json:"order_id"`
	ProposalID     int64       `json:"intent_id,omitempty"`
	Symbol         string      `json:"symbol"`
	Side           Side        `json:"side"`
	Quantity       int         `json:"quantity"`
	Style          OrderStyle  `json:"order_type"`
	LimitPrice     float64     `json:"limit_price,omitempty"`
	Status         OrderStatus `json:"status"`
	FillPrice      float64     `json:"fill_price,omitempty"`
	FilledAt       *time.Time  `json:"fill_timestamp,omitempty"`
	Slippage       float64     `json:"slippage"`
	Fee            float64     `json:"brokerage"`
	ReferencePrice float64     `json:"simulated_ltp"`
	Purpose        string      `json:"purpose,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

func (o Order) Filled() bool { return o.Status == OrderFilled }
