package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"daybot/internal/market"
	"daybot/internal/pkg/circuit"
	"daybot/internal/types"
)

func newCandleStore(t *testing.T) *CandleStore {
	t.Helper()
	s, err := NewCandleStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCandleStore_PutAndFetch(t *testing.T) {
	ctx := context.Background()
	s := newCandleStore(t)

	_, found, err := s.Latest(ctx, "MCX", "5m")
	require.NoError(t, err)
	assert.False(t, found)

	bars := []market.Candle{
		{OpenTime: 1000, CloseTime: 2000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{OpenTime: 2000, CloseTime: 3000, Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 20},
		{OpenTime: 3000, CloseTime: 4000, Open: 2, High: 3, Low: 1.5, Close: 2.5, Volume: 30},
	}
	n, err := s.Put(ctx, "MCX", "5m", bars)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := s.FetchHistory(ctx, "MCX", "5m", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2000), got[0].OpenTime, "oldest first")
	assert.Equal(t, int64(3000), got[1].OpenTime)

	_, err = s.Put(ctx, "MCX", "5m", []market.Candle{{OpenTime: 3000, CloseTime: 4000, Open: 2, High: 3, Low: 1.5, Close: 2.8, Volume: 31}})
	require.NoError(t, err)
	last, found, err := s.Latest(ctx, "MCX", "5m")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2.8, last.Close)

	other, err := s.FetchHistory(ctx, "RADICO", "5m", 10)
	require.NoError(t, err)
	assert.Empty(t, other)

	_, err = s.FetchHistory(ctx, "", "5m", 10)
	assert.Error(t, err)
}

func TestSyntheticFeed_BackfillAndAppend(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 10, 2, 30, 0, time.UTC)
	clock := func() time.Time { return now }
	feed := NewSyntheticFeed(newCandleStore(t), 7, 60, clock)

	bars, err := feed.FetchHistory(ctx, "MCX", "5m", 500)
	require.NoError(t, err)
	require.Len(t, bars, 60)
	assert.Equal(t, now.Truncate(5*time.Minute).Add(-5*time.Minute).UnixMilli(), bars[59].OpenTime)
	for i, b := range bars {
		assert.GreaterOrEqual(t, b.High, b.Low, "bar %d", i)
		assert.GreaterOrEqual(t, b.High, b.Close, "bar %d", i)
		assert.LessOrEqual(t, b.Low, b.Close, "bar %d", i)
		assert.Positive(t, b.Volume)
		if i > 0 {
			assert.Equal(t, bars[i-1].Close, b.Open, "walk continues from the previous close")
		}
	}

	now = now.Add(12 * time.Minute)
	bars, err = feed.FetchHistory(ctx, "MCX", "5m", 500)
	require.NoError(t, err)
	assert.Len(t, bars, 62)

	_, err = feed.FetchHistory(ctx, "MCX", "5x", 10)
	assert.Error(t, err)
}

func TestSyntheticFeed_Deterministic(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	a, err := NewSyntheticFeed(newCandleStore(t), 42, 80, clock).FetchHistory(ctx, "RADICO", "5m", 80)
	require.NoError(t, err)
	b, err := NewSyntheticFeed(newCandleStore(t), 42, 80, clock).FetchHistory(ctx, "RADICO", "5m", 80)
	require.NoError(t, err)
	c, err := NewSyntheticFeed(newCandleStore(t), 43, 80, clock).FetchHistory(ctx, "RADICO", "5m", 80)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestCandleSource_Snapshot(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 6, 0, 0, 0, time.UTC)
	feed := NewSyntheticFeed(newCandleStore(t), 1, 250, func() time.Time { return now })
	src := NewCandleSource(feed, "5m", 250, time.FixedZone("IST", 5*3600+1800))

	snap, err := src.Snapshot(ctx, "MCX")
	require.NoError(t, err)
	assert.Equal(t, "MCX", snap.Symbol)
	assert.Positive(t, snap.LastPrice)
	assert.Positive(t, snap.VWAP)
	assert.Positive(t, snap.DMA200)
	assert.NotEmpty(t, snap.Regime)

	prices, err := src.LastPrices(ctx, []string{"MCX", "RADICO"})
	require.NoError(t, err)
	assert.Equal(t, snap.LastPrice, prices["MCX"])
	assert.Contains(t, prices, "RADICO")
}

type stubHistory struct {
	bars map[string][]market.Candle
	err  map[string]error
}

func (s stubHistory) FetchHistory(_ context.Context, symbol, _ string, limit int) ([]market.Candle, error) {
	if err := s.err[symbol]; err != nil {
		return nil, err
	}
	bars := s.bars[symbol]
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

func TestCandleSource_PartialPrices(t *testing.T) {
	ctx := context.Background()
	src := NewCandleSource(stubHistory{
		bars: map[string][]market.Candle{"MCX": {{OpenTime: 1, Close: 99}, {OpenTime: 2, Close: 101}}},
		err:  map[string]error{"RADICO": errors.New("feed down")},
	}, "5m", 10, nil)

	prices, err := src.LastPrices(ctx, []string{"MCX", "RADICO", "NAVINFLUOR"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"MCX": 101}, prices)

	_, err = src.LastPrices(ctx, []string{"RADICO"})
	assert.Error(t, err)

	_, err = src.Snapshot(ctx, "NAVINFLUOR")
	assert.ErrorIs(t, err, ErrNoData)
}

type MockSource struct {
	mock.Mock
}

func (m *MockSource) LastPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	args := m.Called(ctx, symbols)
	out, _ := args.Get(0).(map[string]float64)
	return out, args.Error(1)
}

func (m *MockSource) Snapshot(ctx context.Context, symbol string) (types.MarketSnapshot, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(types.MarketSnapshot), args.Error(1)
}

func TestGuarded_BreakerOpensAfterFailures(t *testing.T) {
	ctx := context.Background()
	inner := new(MockSource)
	inner.On("Snapshot", mock.Anything, "MCX").Return(types.MarketSnapshot{}, errors.New("boom")).Times(2)

	g := NewGuarded(inner, GuardConfig{BreakerThreshold: 2, BreakerTimeout: time.Minute})
	for i := 0; i < 2; i++ {
		_, err := g.Snapshot(ctx, "MCX")
		require.Error(t, err)
		assert.NotErrorIs(t, err, circuit.ErrOpen)
	}

	_, err := g.Snapshot(ctx, "MCX")
	assert.ErrorIs(t, err, circuit.ErrOpen)
	assert.Equal(t, circuit.StateOpen, g.Breaker().State())
	inner.AssertNumberOfCalls(t, "Snapshot", 2)
}

func TestGuarded_PassesThrough(t *testing.T) {
	ctx := context.Background()
	inner := new(MockSource)
	inner.On("LastPrices", mock.Anything, []string{"MCX"}).Return(map[string]float64{"MCX": 100}, nil)

	g := NewGuarded(inner, GuardConfig{RatePerSecond: 100, Burst: 2, BreakerThreshold: 2})
	prices, err := g.LastPrices(ctx, []string{"MCX"})
	require.NoError(t, err)
	assert.Equal(t, 100.0, prices["MCX"])
	inner.AssertExpectations(t)
}

type slowSource struct{}

func (slowSource) LastPrices(ctx context.Context, _ []string) (map[string]float64, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowSource) Snapshot(ctx context.Context, _ string) (types.MarketSnapshot, error) {
	<-ctx.Done()
	return types.MarketSnapshot{}, ctx.Err()
}

func TestGuarded_CallTimeout(t *testing.T) {
	g := NewGuarded(slowSource{}, GuardConfig{CallTimeout: 20 * time.Millisecond, BreakerThreshold: 5})
	_, err := g.Snapshot(context.Background(), "MCX")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
