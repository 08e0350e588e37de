package indicator

import (
	"fmt"
	"math"
	"time"

	"github.com/markcheno/go-talib"

	"daybot/internal/market"
	"daybot/internal/types"
)

const (
	bbPeriod        = 20
	bbDeviation     = 2.0
	atrPeriod       = 14
	rsiPeriod       = 14
	volumePeriod    = 20
	resistanceBars  = 20
	openingBars     = 3
	regimeMinBars   = 50
	volatileATRPct  = 2.0
	trendBand       = 0.01
	rangingVWAPBand = 0.005
)

// Trend directions reported on snapshots.
const (
	TrendUp      = "up"
	TrendDown    = "down"
	TrendNeutral = "neutral"
)

// Build turns a window of bars, oldest first, into a snapshot for the last
// bar. Indicators that need more history than the window holds are left at
// zero. The opening range uses the first bars of the last bar's trading day
// in loc.
func Build(symbol string, candles market.Candles, loc *time.Location) (types.MarketSnapshot, error) {
	last, ok := candles.Last()
	if !ok {
		return types.MarketSnapshot{}, fmt.Errorf("no candles for %s", symbol)
	}
	if last.Close <= 0 {
		return types.MarketSnapshot{}, fmt.Errorf("invalid last close %.4f for %s", last.Close, symbol)
	}
	if loc == nil {
		loc = time.UTC
	}
	_, highs, lows, closes, volumes := candles.Series()
	ltp := last.Close

	snap := types.MarketSnapshot{
		Symbol:    symbol,
		Timestamp: barTime(last).In(loc),
		LastPrice: ltp,
		Open:      last.Open,
		High:      last.High,
		Low:       last.Low,
		Close:     last.Close,
		Volume:    last.Volume,
		VWAP:      VWAP(candles),
	}

	if len(closes) >= bbPeriod {
		upper, middle, lower := talib.BBands(closes, bbPeriod, bbDeviation, bbDeviation, talib.SMA)
		snap.BBUpper = round4(lastValid(upper))
		snap.BBMiddle = round4(lastValid(middle))
		snap.BBLower = round4(lastValid(lower))
		snap.BBWidth = round4(snap.BBUpper - snap.BBLower)
	}
	if len(closes) > atrPeriod {
		snap.ATR = round4(lastValid(talib.Atr(highs, lows, closes, atrPeriod)))
	}
	snap.EMA9 = ema(closes, 9)
	snap.EMA21 = ema(closes, 21)
	if len(closes) > rsiPeriod {
		snap.RSI14 = round4(lastValid(talib.Rsi(closes, rsiPeriod)))
	}
	snap.DMA50 = sma(closes, 50)
	snap.DMA200 = sma(closes, 200)

	snap.Regime, snap.TrendDirection = classify(closes, ltp, snap.VWAP, snap.ATR)
	snap.VolatilityPercentile = volatilityPercentile(highs, lows, snap.ATR)

	if n := len(volumes); n > 0 {
		snap.AvgVolume20 = mean(volumes[max(0, n-volumePeriod):])
		if snap.AvgVolume20 > 0 {
			snap.VolumeRatio = round4(last.Volume / snap.AvgVolume20)
		}
	}
	snap.LiquidityScore = liquidity(volumes)
	snap.ResistanceLevel = resistance(highs)
	snap.OpeningRangeHigh, snap.OpeningRangeLow = openingRange(candles, loc)
	return snap, nil
}

// VWAP is the volume weighted typical price over the window.
func VWAP(candles market.Candles) float64 {
	var pv, vol float64
	for _, c := range candles {
		pv += c.TypicalPrice() * c.Volume
		vol += c.Volume
	}
	if vol == 0 {
		return 0
	}
	return round4(pv / vol)
}

func classify(closes []float64, ltp, vwap, atr float64) (types.Regime, string) {
	if len(closes) < regimeMinBars || vwap == 0 {
		return types.RegimeRanging, TrendNeutral
	}
	sma20 := sma(closes, 20)
	sma50 := sma(closes, 50)
	trend := TrendNeutral
	switch {
	case sma20 > sma50*(1+trendBand):
		trend = TrendUp
	case sma20 < sma50*(1-trendBand):
		trend = TrendDown
	}
	atrPct := atr / ltp * 100
	switch {
	case atrPct > volatileATRPct:
		return types.RegimeVolatile, trend
	case trend == TrendUp && ltp > vwap:
		return types.RegimeTrendingUp, trend
	case trend == TrendDown && ltp < vwap:
		return types.RegimeTrendingDown, trend
	case math.Abs(ltp-vwap)/vwap < rangingVWAPBand:
		return types.RegimeRanging, trend
	default:
		return types.RegimeWhipsaw, trend
	}
}

// volatilityPercentile is the share of bar ranges at or below the current ATR.
func volatilityPercentile(highs, lows []float64, atr float64) float64 {
	if len(highs) == 0 || atr <= 0 {
		return 0
	}
	count := 0
	for i := range highs {
		if highs[i]-lows[i] <= atr+1e-9 {
			count++
		}
	}
	return round4(float64(count) / float64(len(highs)) * 100)
}

// liquidity maps the current to average volume ratio onto [0,1]; twice the
// average or more scores 1.
func liquidity(volumes []float64) float64 {
	n := len(volumes)
	if n < volumePeriod {
		return 0.5
	}
	avg := mean(volumes[n-volumePeriod:])
	ratio := 1.0
	if avg > 0 {
		ratio = volumes[n-1] / avg
	}
	return round4(math.Min(ratio/2, 1))
}

// resistance is the highest high of the bars before the last one.
func resistance(highs []float64) float64 {
	n := len(highs)
	if n < 2 {
		return 0
	}
	window := highs[max(0, n-1-resistanceBars) : n-1]
	res := window[0]
	for _, h := range window[1:] {
		res = math.Max(res, h)
	}
	return res
}

func openingRange(candles market.Candles, loc *time.Location) (float64, float64) {
	last, _ := candles.Last()
	day := barTime(last).In(loc)
	y, m, d := day.Date()
	var today market.Candles
	for _, c := range candles {
		cy, cm, cd := c.OpenAt().In(loc).Date()
		if cy == y && cm == m && cd == d {
			today = append(today, c)
		}
	}
	if len(today) < openingBars {
		return 0, 0
	}
	high, low := today[0].High, today[0].Low
	for _, c := range today[1:openingBars] {
		high = math.Max(high, c.High)
		low = math.Min(low, c.Low)
	}
	return high, low
}

func barTime(c market.Candle) time.Time {
	if c.CloseTime > 0 {
		return time.UnixMilli(c.CloseTime)
	}
	return c.OpenAt()
}

func ema(closes []float64, period int) float64 {
	if len(closes) < period {
		return 0
	}
	return round4(lastValid(talib.Ema(closes, period)))
}

func sma(closes []float64, period int) float64 {
	if len(closes) < period {
		return 0
	}
	return round4(lastValid(talib.Sma(closes, period)))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && !math.IsInf(series[i], 0) {
			return series[i]
		}
	}
	return 0
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
