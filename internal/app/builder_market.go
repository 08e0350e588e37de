package app

import (
	"fmt"
	"path/filepath"
	"time"

	"daybot/internal/config"
	mktgw "daybot/internal/gateway/market"
	"daybot/internal/logger"
	"daybot/internal/market"
)

// MarketStack is the guarded snapshot and price source plus what backs it.
type MarketStack struct {
	Source  *mktgw.Guarded
	Candles *mktgw.CandleStore
	Summary string
}

func buildMarketStack(cfg config.MarketConfig, snapshotTimeout time.Duration, loc *time.Location) (*MarketStack, error) {
	candles, err := mktgw.NewCandleStore(cfg.CandleDBDir)
	if err != nil {
		return nil, fmt.Errorf("init candle store: %w", err)
	}
	var history market.HistorySource = candles
	if cfg.Source == config.MarketSourceSynthetic {
		history = mktgw.NewSyntheticFeed(candles, cfg.Seed, cfg.Lookback, time.Now)
	}
	src := mktgw.NewCandleSource(history, cfg.Interval, cfg.Lookback, loc)
	guarded := mktgw.NewGuarded(src, mktgw.GuardConfig{
		RatePerSecond:    cfg.RatePerSecond,
		Burst:            cfg.Burst,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerTimeout:   cfg.BreakerTimeout(),
		CallTimeout:      snapshotTimeout,
	})

	dir := cfg.CandleDBDir
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	summary := fmt.Sprintf("%s feed, %s bars, lookback %d, candles in %s", cfg.Source, cfg.Interval, cfg.Lookback, dir)
	logger.Infof("market stack ready: %s", summary)
	return &MarketStack{Source: guarded, Candles: candles, Summary: summary}, nil
}
