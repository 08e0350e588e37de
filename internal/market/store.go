package market

import (
	"context"
)

// CandleStore persists bars per symbol and interval. Put overwrites bars that
// share an open time.
type CandleStore interface {
	HistorySource
	Put(ctx context.Context, symbol, interval string, candles []Candle) (int, error)
	Latest(ctx context.Context, symbol, interval string) (Candle, bool, error)
}
