package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"daybot/internal/analysis/indicator"
	"daybot/internal/logger"
	"daybot/internal/market"
	"daybot/internal/types"
)

// ErrNoData is returned when a symbol has no bars to build from.
var ErrNoData = errors.New("no market data")

// Source is what the engine needs from market data.
type Source interface {
	LastPrices(ctx context.Context, symbols []string) (map[string]float64, error)
	Snapshot(ctx context.Context, symbol string) (types.MarketSnapshot, error)
}

// CandleSource builds snapshots from bar history.
type CandleSource struct {
	history  market.HistorySource
	interval string
	lookback int
	loc      *time.Location
}

func NewCandleSource(history market.HistorySource, interval string, lookback int, loc *time.Location) *CandleSource {
	if loc == nil {
		loc = time.UTC
	}
	return &CandleSource{history: history, interval: interval, lookback: lookback, loc: loc}
}

func (s *CandleSource) Snapshot(ctx context.Context, symbol string) (types.MarketSnapshot, error) {
	bars, err := s.history.FetchHistory(ctx, symbol, s.interval, s.lookback)
	if err != nil {
		return types.MarketSnapshot{}, fmt.Errorf("history %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return types.MarketSnapshot{}, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}
	snap, err := indicator.Build(symbol, bars, s.loc)
	if err != nil {
		return types.MarketSnapshot{}, err
	}
	logger.InfoEvent("market_snapshot_built", map[string]any{
		"symbol":                symbol,
		"ltp":                   snap.LastPrice,
		"regime":                string(snap.Regime),
		"trend":                 snap.TrendDirection,
		"volatility_percentile": snap.VolatilityPercentile,
	})
	return snap, nil
}

// LastPrices returns the latest close per symbol. Symbols without data are
// left out; the call fails only when no symbol could be priced.
func (s *CandleSource) LastPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	var firstErr error
	for _, sym := range symbols {
		bars, err := s.history.FetchHistory(ctx, sym, s.interval, 1)
		if err == nil && len(bars) == 0 {
			err = ErrNoData
		}
		if err != nil {
			logger.Warnf("market: last price %s: %v", sym, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("last price %s: %w", sym, err)
			}
			continue
		}
		out[sym] = bars[len(bars)-1].Close
	}
	if len(out) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}
