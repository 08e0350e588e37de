package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"daybot/internal/gateway/provider"
	"daybot/internal/types"
)

type MockRationale struct {
	mock.Mock
}

func (m *MockRationale) Explain(ctx context.Context, snap types.MarketSnapshot, score Score, trade Trade) (string, error) {
	args := m.Called(ctx, snap, score, trade)
	return args.String(0), args.Error(1)
}

type fixedStrategy struct {
	id         types.StrategyID
	confidence float64
}

func (f fixedStrategy) ID() types.StrategyID { return f.id }
func (f fixedStrategy) Score(types.MarketSnapshot) Score {
	return Score{Strategy: f.id, Confidence: f.confidence, Rationale: string(f.id)}
}
func (f fixedStrategy) Trade(s types.MarketSnapshot) Trade {
	return marketTrade(types.SideBuy, s.LastPrice, s.LastPrice-2, s.LastPrice+4)
}
func (f fixedStrategy) Invalidations(types.MarketSnapshot) []string { return nil }

func TestEvaluator_PicksMomentum(t *testing.T) {
	ev := NewEvaluator(nil, 0, nil)
	p, ok := ev.Evaluate(context.Background(), breakoutSnapshot())
	require.True(t, ok)
	assert.Equal(t, MomentumBreakout, p.StrategyID)
	assert.Equal(t, types.SideBuy, p.Side)
	assert.Equal(t, types.OrderMarket, p.Style)
	assert.Equal(t, 102.0, p.EntryPrice)
	assert.Equal(t, 1, p.Quantity)
	stop, has := p.Stop()
	require.True(t, has)
	assert.InDelta(t, 99.5, stop, 1e-9)
	assert.InDelta(t, 2.5, p.ExpectedRisk, 1e-9)
	assert.Len(t, p.Invalidations, 3)
	assert.NotEmpty(t, p.TraceID)
	assert.Equal(t, types.ProposalPending, p.Status)
	assert.Equal(t, p.Rationale, momentumBreakout{}.Score(breakoutSnapshot()).Rationale)
}

func TestEvaluator_NoTradeBelowThreshold(t *testing.T) {
	ev := NewEvaluator(nil, 0.6, nil)
	snap := types.MarketSnapshot{Symbol: "RADICO", LastPrice: 100, VWAP: 100, Regime: types.RegimeRanging, VolatilityPercentile: 50}
	p, ok := ev.Evaluate(context.Background(), snap)
	assert.False(t, ok)
	assert.Nil(t, p)
}

func TestEvaluator_TieGoesToFirstRegistered(t *testing.T) {
	ev := NewEvaluator([]Strategy{
		fixedStrategy{id: "first", confidence: 0.7},
		fixedStrategy{id: "second", confidence: 0.7},
		fixedStrategy{id: "third", confidence: 0.65},
	}, 0.6, nil)
	p, ok := ev.Evaluate(context.Background(), types.MarketSnapshot{Symbol: "MCX", LastPrice: 50})
	require.True(t, ok)
	assert.Equal(t, types.StrategyID("first"), p.StrategyID)
}

func TestEvaluator_SkipsWithoutPrice(t *testing.T) {
	ev := NewEvaluator([]Strategy{fixedStrategy{id: "a", confidence: 1}}, 0.6, nil)
	_, ok := ev.Evaluate(context.Background(), types.MarketSnapshot{Symbol: "MCX"})
	assert.False(t, ok)
}

func TestEvaluator_RationaleAppended(t *testing.T) {
	r := new(MockRationale)
	r.On("Explain", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("  Clean breakout.  ", nil).Once()

	ev := NewEvaluator([]Strategy{fixedStrategy{id: "a", confidence: 0.9}}, 0.6, r)
	p, ok := ev.Evaluate(context.Background(), types.MarketSnapshot{Symbol: "MCX", LastPrice: 50})
	require.True(t, ok)
	assert.Equal(t, "a\n\nAnalysis: Clean breakout.", p.Rationale)
	r.AssertExpectations(t)
}

func TestEvaluator_RationaleFailureFallsBack(t *testing.T) {
	r := new(MockRationale)
	r.On("Explain", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("timeout")).Once()

	ev := NewEvaluator([]Strategy{fixedStrategy{id: "a", confidence: 0.9}}, 0.6, r)
	p, ok := ev.Evaluate(context.Background(), types.MarketSnapshot{Symbol: "MCX", LastPrice: 50})
	require.True(t, ok)
	assert.Equal(t, "a", p.Rationale)
	r.AssertExpectations(t)
}

type captureProvider struct {
	payload provider.ChatPayload
	reply   string
	err     error
	delay   time.Duration
}

func (c *captureProvider) ID() string    { return "capture" }
func (c *captureProvider) Enabled() bool { return true }
func (c *captureProvider) Call(ctx context.Context, p provider.ChatPayload) (string, error) {
	c.payload = p
	if c.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.delay):
		}
	}
	return c.reply, c.err
}

func TestLLMRationale_Prompt(t *testing.T) {
	cp := &captureProvider{reply: "ok"}
	r := &LLMRationale{Provider: cp, Timeout: time.Second, MaxTokens: 200, Temperature: 0.7}
	snap := types.MarketSnapshot{Symbol: "MCX", LastPrice: 102, VWAP: 100, Regime: types.RegimeTrendingUp, TrendDirection: "up"}
	score := Score{Strategy: MomentumBreakout, Confidence: 0.85, Rationale: "Momentum Breakout: x"}
	trade := marketTrade(types.SideBuy, 102, 99.5, 103.53)

	out, err := r.Explain(context.Background(), snap, score, trade)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 200, cp.payload.MaxTokens)
	assert.Equal(t, 0.7, cp.payload.Temperature)
	assert.Equal(t, "MCX", cp.payload.Symbol)
	assert.Contains(t, cp.payload.System, "professional day trader")
	assert.Contains(t, cp.payload.User, "Explain this momentum_breakout trade setup")
	assert.Contains(t, cp.payload.User, "Trade: BUY at market")
	assert.Contains(t, cp.payload.User, "Stop-Loss: ₹99.50")
	assert.Contains(t, cp.payload.User, "Confidence: 85%")
	assert.Contains(t, cp.payload.User, "Strategy Analysis: Momentum Breakout: x")
}

func TestLLMRationale_Timeout(t *testing.T) {
	cp := &captureProvider{reply: "late", delay: time.Second}
	r := &LLMRationale{Provider: cp, Timeout: 10 * time.Millisecond}
	_, err := r.Explain(context.Background(), types.MarketSnapshot{}, Score{}, Trade{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLLMRationale_NoProvider(t *testing.T) {
	var r *LLMRationale
	_, err := r.Explain(context.Background(), types.MarketSnapshot{}, Score{}, Trade{})
	assert.Error(t, err)
}
