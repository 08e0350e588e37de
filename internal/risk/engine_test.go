package risk

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"daybot/internal/ledger"
	"daybot/internal/store"
	"daybot/internal/store/sqlite"
	"daybot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type allowList map[string]bool

func (a allowList) Allowed(symbol string) bool { return a[symbol] }

type fixture struct {
	engine *Engine
	ledger *ledger.Service
	store  store.Store
	now    time.Time
}

func defaultPolicy() Policy {
	return Policy{
		PerTradeMaxLossPct:      50,
		PerTradeMaxLossAbs:      100,
		HITLFirstNTrades:        2,
		HITLConfidenceThreshold: 0.7,
		SwitchCooldown:          20 * time.Minute,
		SwitchMinImprovement:    0.15,
	}
}

func newFixture(t *testing.T, policy Policy) *fixture {
	t.Helper()
	st, err := sqlite.NewSqliteStore(filepath.Join(t.TempDir(), "risk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	now := time.Date(2026, 10, 15, 11, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	l := ledger.NewService(st, ledger.Policy{MaxDailyLoss: 300, MaxTrades: 5}, time.UTC, clock)
	eng := NewEngine(l, st, allowList{"MCX": true, "RADICO": true}, policy, clock)
	return &fixture{engine: eng, ledger: l, store: st, now: now}
}

func (f *fixture) setLedger(t *testing.T, fn func(*types.Ledger)) {
	t.Helper()
	_, err := f.ledger.Update(context.Background(), func(l *types.Ledger) error {
		fn(l)
		return nil
	})
	require.NoError(t, err)
}

func buyProposal() types.Proposal {
	return types.Proposal{
		StrategyID:   "momentum_breakout",
		Symbol:       "MCX",
		Side:         types.SideBuy,
		Style:        types.OrderMarket,
		EntryPrice:   100,
		Quantity:     10,
		StopLoss:     types.Price(97),
		Target:       105,
		Confidence:   0.8,
		ExpectedRisk: 30,
	}
}

func TestApprove_StopLossRules(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	f.setLedger(t, func(l *types.Ledger) { l.TradesCount = 3 })

	cases := []struct {
		name string
		edit func(*types.Proposal)
		flag string
	}{
		{"missing", func(p *types.Proposal) { p.StopLoss = nil }, types.FlagMissingStopLoss},
		{"buy stop above entry", func(p *types.Proposal) { p.StopLoss = types.Price(101) }, types.FlagInvalidStopLoss},
		{"buy stop equal entry", func(p *types.Proposal) { p.StopLoss = types.Price(100) }, types.FlagInvalidStopLoss},
		{"sell stop below entry", func(p *types.Proposal) { p.Side = types.SideSell; p.StopLoss = types.Price(99) }, types.FlagInvalidStopLoss},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := buyProposal()
			tc.edit(&p)
			d, err := f.engine.Approve(context.Background(), p)
			require.NoError(t, err)
			assert.False(t, d.Approved)
			assert.True(t, d.HasFlag(tc.flag))
			assert.Contains(t, strings.ToLower(d.RejectionReason), "stop-loss")
		})
	}
}

func TestApprove_ExhaustedBudgetLatchesSafeMode(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	f.setLedger(t, func(l *types.Ledger) { l.RemainingBudget = 0 })

	d, err := f.engine.Approve(context.Background(), buyProposal())
	require.NoError(t, err)
	assert.False(t, d.Approved)
	assert.Contains(t, strings.ToLower(d.RejectionReason), "budget")
	assert.True(t, d.HasFlag(types.FlagLossBudgetExhausted))
	assert.True(t, d.SafeModeActive)

	l, err := f.ledger.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, l.SafeMode)

	d, err = f.engine.Approve(context.Background(), buyProposal())
	require.NoError(t, err)
	assert.True(t, d.HasFlag(types.FlagSafeMode))
}

func TestApprove_SafeModeBlocks(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	f.setLedger(t, func(l *types.Ledger) { l.SafeMode = true; l.TradesCount = 3 })

	d, err := f.engine.Approve(context.Background(), buyProposal())
	require.NoError(t, err)
	assert.False(t, d.Approved)
	assert.True(t, d.SafeModeActive)
	assert.Contains(t, d.RejectionReason, "SAFE_MODE")
}

func TestApprove_RiskLimits(t *testing.T) {
	t.Run("risk above remaining budget", func(t *testing.T) {
		f := newFixture(t, defaultPolicy())
		f.setLedger(t, func(l *types.Ledger) { l.RemainingBudget = 20; l.TradesCount = 3 })
		d, err := f.engine.Approve(context.Background(), buyProposal())
		require.NoError(t, err)
		assert.False(t, d.Approved)
		assert.True(t, d.HasFlag(types.FlagRiskExceedsBudget))
		assert.True(t, d.HasFlag(types.FlagPerTradeRiskExceeded))
		assert.True(t, strings.HasPrefix(d.RejectionReason, "Per-trade risk"), "last reason wins: %s", d.RejectionReason)
		assert.Contains(t, d.RejectionReason, "of remaining budget (20.00)")
		assert.Len(t, d.Reasons, 2)
	})

	t.Run("per trade cap uses absolute ceiling", func(t *testing.T) {
		f := newFixture(t, defaultPolicy())
		f.setLedger(t, func(l *types.Ledger) { l.TradesCount = 3 })
		p := buyProposal()
		p.ExpectedRisk = 120
		d, err := f.engine.Approve(context.Background(), p)
		require.NoError(t, err)
		assert.False(t, d.Approved)
		assert.True(t, d.HasFlag(types.FlagPerTradeRiskExceeded))
	})

	t.Run("cap recorded on pass", func(t *testing.T) {
		f := newFixture(t, defaultPolicy())
		f.setLedger(t, func(l *types.Ledger) { l.TradesCount = 3 })
		d, err := f.engine.Approve(context.Background(), buyProposal())
		require.NoError(t, err)
		assert.True(t, d.Approved)
		assert.Equal(t, 100.0, d.Flags[types.FlagMaxRiskPerTrade])
	})
}

func TestApprove_MaxTrades(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	f.setLedger(t, func(l *types.Ledger) { l.TradesCount = 5 })

	d, err := f.engine.Approve(context.Background(), buyProposal())
	require.NoError(t, err)
	assert.False(t, d.Approved)
	assert.Contains(t, strings.ToLower(d.RejectionReason), "max trades")
}

func TestApprove_StrategySwitch(t *testing.T) {
	t.Run("cooldown", func(t *testing.T) {
		f := newFixture(t, defaultPolicy())
		f.setLedger(t, func(l *types.Ledger) {
			l.TradesCount = 3
			l.ActiveStrategy = "mean_reversion"
			switched := f.now.Add(-5 * time.Minute)
			l.StrategySwitchedAt = &switched
		})
		d, err := f.engine.Approve(context.Background(), buyProposal())
		require.NoError(t, err)
		assert.False(t, d.Approved)
		assert.True(t, d.HasFlag(types.FlagStrategySwitchCooldown))
		assert.Contains(t, d.RejectionReason, "15 min remaining")
	})

	t.Run("low confidence", func(t *testing.T) {
		f := newFixture(t, defaultPolicy())
		f.setLedger(t, func(l *types.Ledger) { l.TradesCount = 3; l.ActiveStrategy = "mean_reversion" })
		p := buyProposal()
		p.Confidence = 0.7
		d, err := f.engine.Approve(context.Background(), p)
		require.NoError(t, err)
		assert.False(t, d.Approved)
		assert.Equal(t, "Strategy switch requires confidence >= 0.75", d.RejectionReason)
	})

	t.Run("allowed with HITL", func(t *testing.T) {
		f := newFixture(t, defaultPolicy())
		f.setLedger(t, func(l *types.Ledger) { l.TradesCount = 3; l.ActiveStrategy = "mean_reversion" })
		d, err := f.engine.Approve(context.Background(), buyProposal())
		require.NoError(t, err)
		assert.True(t, d.Approved)
		assert.True(t, d.HITLRequired)
		assert.Equal(t, types.HITLPending, d.HITLStatus)
		assert.Equal(t, "Strategy switch: mean_reversion -> momentum_breakout", d.HITLReason)
		assert.True(t, d.HasFlag(types.FlagStrategySwitch))
	})
}

func TestApprove_InvalidSymbol(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	f.setLedger(t, func(l *types.Ledger) { l.TradesCount = 3 })
	p := buyProposal()
	p.Symbol = "RELIANCE"

	d, err := f.engine.Approve(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, d.Approved)
	assert.Equal(t, "Symbol RELIANCE not in allowed trading list", d.RejectionReason)
}

func TestApprove_HITLReasons(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	p := buyProposal()
	p.Confidence = 0.65

	d, err := f.engine.Approve(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, d.Approved)
	assert.True(t, d.HITLRequired)
	assert.Equal(t, "First 2 trades require approval (trade #1); Low confidence (0.65 < 0.70)", d.HITLReason)
	assert.Contains(t, strings.ToLower(d.HITLReason), "first")
	assert.True(t, d.HasFlag(types.FlagHITLRequired))
}

func TestApprove_QuantityOnlyShrinks(t *testing.T) {
	cases := []struct {
		name     string
		qty      int
		entry    float64
		stop     float64
		wantAdj  int
		adjusted bool
	}{
		{"fits under cap", 10, 100, 97, 0, false},
		{"shrinks to cap", 50, 100, 97, 33, true},
		{"floors at one", 5, 500, 300, 1, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, defaultPolicy())
			f.setLedger(t, func(l *types.Ledger) { l.TradesCount = 3 })
			p := buyProposal()
			p.Quantity = tc.qty
			p.EntryPrice = tc.entry
			p.StopLoss = types.Price(tc.stop)
			p.ExpectedRisk = 10
			d, err := f.engine.Approve(context.Background(), p)
			require.NoError(t, err)
			require.True(t, d.Approved)
			assert.Equal(t, tc.wantAdj, d.AdjustedQuantity)
			assert.Equal(t, tc.adjusted, d.HasFlag(types.FlagQuantityAdjusted))
			assert.LessOrEqual(t, d.Quantity(p), p.Quantity)
		})
	}
}

func TestApprove_RefreshesUnrealized(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	ctx := context.Background()
	require.NoError(t, store.Do(ctx, f.store, func(uow store.UnitOfWork) error {
		return uow.Positions().Upsert(ctx, types.Position{Symbol: "MCX", Quantity: 10, AvgPrice: 100, UnrealizedPnL: -42})
	}))

	_, err := f.engine.Approve(ctx, buyProposal())
	require.NoError(t, err)

	l, err := f.ledger.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, -42.0, l.UnrealizedPnL)
}
