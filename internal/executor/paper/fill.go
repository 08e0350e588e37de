package paper

import (
	"github.com/shopspring/decimal"

	"daybot/internal/types"
)

var hundred = decimal.NewFromInt(100)

// slipped applies adverse slippage: buys fill higher, sells lower.
func slipped(side types.Side, price, slipPct float64) decimal.Decimal {
	px := decimal.NewFromFloat(price)
	factor := decimal.NewFromFloat(slipPct).Div(hundred)
	if side == types.SideBuy {
		return px.Mul(decimal.NewFromInt(1).Add(factor))
	}
	return px.Mul(decimal.NewFromInt(1).Sub(factor))
}

// fillResult is the outcome of simulating one order against a reference price.
type fillResult struct {
	filled   bool
	price    float64
	slippage float64
}

func simulateFill(style types.OrderStyle, side types.Side, limit, ltp, slipPct float64) fillResult {
	switch style {
	case types.OrderLimit:
		switch {
		case side == types.SideBuy && ltp <= limit:
			return fillResult{filled: true, price: min(ltp, limit)}
		case side == types.SideSell && ltp >= limit:
			return fillResult{filled: true, price: max(ltp, limit)}
		}
		return fillResult{}
	default:
		px := slipped(side, ltp, slipPct)
		return fillResult{
			filled:   true,
			price:    px.InexactFloat64(),
			slippage: px.Sub(decimal.NewFromFloat(ltp)).Abs().InexactFloat64(),
		}
	}
}

// applyFill folds a filled order into the book entry for its symbol. Same-side
// fills average the cost; opposite-side fills only change quantity.
func applyFill(pos types.Position, exists bool, o types.Order, p types.Proposal) types.Position {
	qty := o.Quantity
	if o.Side == types.SideSell {
		qty = -qty
	}
	if !exists {
		stop, _ := p.Stop()
		return types.Position{
			Symbol:       o.Symbol,
			Quantity:     qty,
			AvgPrice:     o.FillPrice,
			MarkPrice:    o.FillPrice,
			EntryOrderID: o.ID,
			StopLoss:     stop,
			Target:       p.Target,
			Strategy:     p.StrategyID,
		}
	}

	fill := decimal.NewFromFloat(o.FillPrice)
	oq := decimal.NewFromInt(int64(o.Quantity))
	avg := decimal.NewFromFloat(pos.AvgPrice)
	newQty := pos.Quantity + qty
	sameSide := (o.Side == types.SideBuy && pos.Quantity >= 0) || (o.Side == types.SideSell && pos.Quantity <= 0)
	if sameSide {
		if newQty == 0 {
			pos.AvgPrice = o.FillPrice
		} else {
			held := decimal.NewFromInt(int64(pos.AbsQuantity()))
			total := avg.Mul(held).Add(fill.Mul(oq))
			pos.AvgPrice = total.Div(decimal.NewFromInt(int64(abs(newQty)))).InexactFloat64()
		}
	}
	pos.Quantity = newQty
	return pos
}

// realizedPnL closes pos at fill, charging the fee on both legs.
func realizedPnL(pos types.Position, fill, fee float64) float64 {
	q := decimal.NewFromInt(int64(pos.AbsQuantity()))
	diff := decimal.NewFromFloat(fill).Sub(decimal.NewFromFloat(pos.AvgPrice))
	if pos.Short() {
		diff = diff.Neg()
	}
	fees := decimal.NewFromFloat(fee).Mul(decimal.NewFromInt(2))
	return diff.Mul(q).Sub(fees).InexactFloat64()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
