package types

import "time"

// Regime is the market condition a snapshot was classified into.
type Regime string

const (
	RegimeTrendingUp   Regime = "trending_up"
	RegimeTrendingDown Regime = "trending_down"
	RegimeRanging      Regime = "ranging"
	RegimeVolatile     Regime = "volatile"
	RegimeWhipsaw      Regime = "whipsaw"
)

// Trending reports whether the regime has a directional bias.
func (r Regime) Trending() bool {
	return r == RegimeTrendingUp || r == RegimeTrendingDown
}

// Choppy reports whether the regime favors reversion setups.
func (r Regime) Choppy() bool {
	return r == RegimeRanging || r == RegimeWhipsaw
}

// MarketSnapshot is a point-in-time bundle for one instrument. Zero values on
// optional indicators mean "not available".
type MarketSnapshot struct {
	ID        int64     `json:"id,omitempty"`
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`

	LastPrice   float64 `json:"ltp"`
	Open        float64 `json:"open,omitempty"`
	High        float64 `json:"high,omitempty"`
	Low         float64 `json:"low,omitempty"`
	Close       float64 `json:"close,omitempty"`
	Volume      float64 `json:"volume"`
	AvgVolume20 float64 `json:"avg_volume_20d,omitempty"`
	VWAP        float64 `json:"vwap"`

	BBUpper  float64 `json:"bb_upper,omitempty"`
	BBMiddle float64 `json:"bb_middle,omitempty"`
	BBLower  float64 `json:"bb_lower,omitempty"`
	BBWidth  float64 `json:"bb_width,omitempty"`
	ATR      float64 `json:"atr,omitempty"`

	Regime               Regime  `json:"regime"`
	TrendDirection       string  `json:"trend_direction,omitempty"`
	VolatilityPercentile float64 `json:"volatility_percentile"`
	LiquidityScore       float64 `json:"liquidity_score"`
	OpeningRangeHigh     float64 `json:"opening_range_high,omitempty"`
	OpeningRangeLow      float64 `json:"opening_range_low,omitempty"`

	// Fields consumed by the confluence gate.
	EMA9            float64 `json:"ema_9,omitempty"`
	EMA21           float64 `json:"ema_21,omitempty"`
	RSI14           float64 `json:"rsi,omitempty"`
	DMA50           float64 `json:"dma_50,omitempty"`
	DMA200          float64 `json:"dma_200,omitempty"`
	ResistanceLevel float64 `json:"resistance_level,omitempty"`
	VolumeRatio     float64 `json:"volume_ratio,omitempty"`
}

// VWAPDeviationPct is the signed distance of the last price from VWAP in percent.
func (s MarketSnapshot) VWAPDeviationPct() float64 {
	if s.VWAP == 0 {
		return 0
	}
	return (s.LastPrice - s.VWAP) / s.VWAP * 100
}
