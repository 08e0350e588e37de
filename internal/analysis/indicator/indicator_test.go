package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daybot/internal/market"
	"daybot/internal/types"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func bars(start time.Time, n int, fn func(i int) market.Candle) market.Candles {
	out := make(market.Candles, n)
	for i := 0; i < n; i++ {
		c := fn(i)
		open := start.Add(time.Duration(i) * 5 * time.Minute)
		c.OpenTime = open.UnixMilli()
		c.CloseTime = open.Add(5 * time.Minute).UnixMilli()
		out[i] = c
	}
	return out
}

func sessionStart() time.Time {
	return time.Date(2026, 10, 14, 9, 15, 0, 0, ist)
}

func TestBuild_FlatMarketIsRanging(t *testing.T) {
	cs := bars(sessionStart(), 60, func(i int) market.Candle {
		vol := 1000.0
		if i == 59 {
			vol = 3000
		}
		return market.Candle{Open: 100, High: 101, Low: 99, Close: 100, Volume: vol}
	})

	snap, err := Build("MCX", cs, ist)
	require.NoError(t, err)

	assert.Equal(t, "MCX", snap.Symbol)
	assert.Equal(t, 100.0, snap.LastPrice)
	assert.InDelta(t, 100, snap.VWAP, 1e-9)
	assert.InDelta(t, 100, snap.BBUpper, 1e-6)
	assert.InDelta(t, 100, snap.BBMiddle, 1e-6)
	assert.InDelta(t, 100, snap.BBLower, 1e-6)
	assert.InDelta(t, 0, snap.BBWidth, 1e-6)
	assert.InDelta(t, 2, snap.ATR, 1e-6)
	assert.InDelta(t, 100, snap.EMA9, 1e-6)
	assert.InDelta(t, 100, snap.DMA50, 1e-6)
	assert.Zero(t, snap.DMA200, "not enough bars for a 200 average")
	assert.Equal(t, types.RegimeRanging, snap.Regime)
	assert.Equal(t, TrendNeutral, snap.TrendDirection)
	assert.InDelta(t, 100, snap.VolatilityPercentile, 1e-9)
	assert.InDelta(t, 1100, snap.AvgVolume20, 1e-9)
	assert.InDelta(t, 2.7273, snap.VolumeRatio, 1e-9)
	assert.Equal(t, 1.0, snap.LiquidityScore)
	assert.Equal(t, 101.0, snap.ResistanceLevel)
	assert.Equal(t, 101.0, snap.OpeningRangeHigh)
	assert.Equal(t, 99.0, snap.OpeningRangeLow)
	assert.True(t, snap.Timestamp.Equal(time.Date(2026, 10, 14, 14, 15, 0, 0, ist)))
}

func TestBuild_SteadyRiseIsTrendingUp(t *testing.T) {
	cs := bars(sessionStart(), 60, func(i int) market.Candle {
		c := 100 + 0.1*float64(i)
		return market.Candle{Open: c, High: c + 0.05, Low: c - 0.05, Close: c, Volume: 1000}
	})

	snap, err := Build("RADICO", cs, ist)
	require.NoError(t, err)

	assert.InDelta(t, 102.95, snap.VWAP, 1e-6)
	assert.InDelta(t, 103.45, snap.DMA50, 1e-6)
	assert.Equal(t, TrendUp, snap.TrendDirection)
	assert.Equal(t, types.RegimeTrendingUp, snap.Regime)
	assert.InDelta(t, 100, snap.RSI14, 1e-6)
	assert.Greater(t, snap.EMA9, snap.EMA21)
	assert.Equal(t, 0.5, snap.LiquidityScore)
	assert.InDelta(t, 1, snap.VolumeRatio, 1e-9)
	assert.InDelta(t, 100+0.1*58+0.05, snap.ResistanceLevel, 1e-9)
}

func TestBuild_WideBarsAreVolatile(t *testing.T) {
	cs := bars(sessionStart(), 60, func(int) market.Candle {
		return market.Candle{Open: 100, High: 103, Low: 97, Close: 100, Volume: 500}
	})

	snap, err := Build("MCX", cs, ist)
	require.NoError(t, err)
	assert.InDelta(t, 6, snap.ATR, 1e-6)
	assert.Equal(t, types.RegimeVolatile, snap.Regime)
}

func TestBuild_ShortWindow(t *testing.T) {
	cs := bars(sessionStart(), 10, func(int) market.Candle {
		return market.Candle{Open: 50, High: 51, Low: 49, Close: 50, Volume: 100}
	})

	snap, err := Build("MCX", cs, ist)
	require.NoError(t, err)
	assert.Equal(t, types.RegimeRanging, snap.Regime)
	assert.Equal(t, TrendNeutral, snap.TrendDirection)
	assert.Zero(t, snap.BBUpper)
	assert.Zero(t, snap.ATR)
	assert.Zero(t, snap.EMA21)
	assert.Zero(t, snap.DMA50)
	assert.Equal(t, 0.5, snap.LiquidityScore)
	assert.Equal(t, 51.0, snap.OpeningRangeHigh)
}

func TestBuild_OpeningRangeNeedsThreeBarsToday(t *testing.T) {
	start := time.Date(2026, 10, 13, 15, 0, 0, 0, ist)
	cs := bars(start, 3, func(int) market.Candle {
		return market.Candle{Open: 10, High: 11, Low: 9, Close: 10, Volume: 1}
	})
	cs = append(cs, bars(sessionStart(), 2, func(int) market.Candle {
		return market.Candle{Open: 10, High: 12, Low: 8, Close: 10, Volume: 1}
	})...)

	snap, err := Build("MCX", cs, ist)
	require.NoError(t, err)
	assert.Zero(t, snap.OpeningRangeHigh)
	assert.Zero(t, snap.OpeningRangeLow)
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build("MCX", nil, ist)
	assert.Error(t, err)

	_, err = Build("MCX", market.Candles{{Close: 0}}, ist)
	assert.Error(t, err)
}

func TestVWAP_ZeroVolume(t *testing.T) {
	assert.Zero(t, VWAP(market.Candles{{High: 1, Low: 1, Close: 1}}))
}
