package market

import "context"

// HistorySource returns the most recent bars for a symbol, oldest first.
type HistorySource interface {
	FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}
