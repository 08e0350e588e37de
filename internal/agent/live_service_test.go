package agent

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"daybot/internal/agent/engine"
	"daybot/internal/config"
	"daybot/internal/executor/paper"
	"daybot/internal/hitl"
	"daybot/internal/ledger"
	"daybot/internal/scheduler"
	"daybot/internal/store"
	"daybot/internal/store/sqlite"
	"daybot/internal/types"
)

type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Execute(ctx context.Context, p types.Proposal, d types.Decision) (*types.Order, error) {
	args := m.Called(ctx, p, d)
	o, _ := args.Get(0).(*types.Order)
	return o, args.Error(1)
}

func (m *MockExecutor) Monitor(ctx context.Context) ([]paper.Exit, error) {
	args := m.Called(ctx)
	exits, _ := args.Get(0).([]paper.Exit)
	return exits, args.Error(1)
}

func (m *MockExecutor) FlattenAll(ctx context.Context, reason string) ([]paper.Exit, error) {
	args := m.Called(ctx, reason)
	exits, _ := args.Get(0).([]paper.Exit)
	return exits, args.Error(1)
}

func (m *MockExecutor) Positions(ctx context.Context) ([]types.Position, error) {
	args := m.Called(ctx)
	pos, _ := args.Get(0).([]types.Position)
	return pos, args.Error(1)
}

type MockMarket struct {
	mock.Mock
}

func (m *MockMarket) Snapshot(ctx context.Context, symbol string) (types.MarketSnapshot, error) {
	args := m.Called(ctx, symbol)
	snap, _ := args.Get(0).(types.MarketSnapshot)
	return snap, args.Error(1)
}

type symbols []string

func (s symbols) Symbols() []string { return s }

type serviceFixture struct {
	svc    *LiveService
	store  store.Store
	ledger *ledger.Service
	exec   *MockExecutor
	market *MockMarket
	now    time.Time
}

func newServiceFixture(t *testing.T, now time.Time) *serviceFixture {
	t.Helper()
	st, err := sqlite.NewSqliteStore(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	session, err := scheduler.NewSession(config.SessionConfig{
		Timezone:     "UTC",
		Start:        "09:15",
		End:          "15:15",
		ExitOnlyFrom: "15:00",
	})
	require.NoError(t, err)

	f := &serviceFixture{store: st, exec: new(MockExecutor), market: new(MockMarket), now: now}
	clock := func() time.Time { return f.now }
	f.ledger = ledger.NewService(st, ledger.Policy{MaxDailyLoss: 300, MaxTrades: 5}, time.UTC, clock)
	eng := engine.NewEngine(engine.EngineParams{
		Mode:     config.EngineModeBestOfN,
		Universe: symbols{"AAA", "BBB"},
		Market:   f.market,
		Executor: f.exec,
		Ledger:   f.ledger,
		Store:    st,
		Session:  session,
		Now:      clock,
	})
	f.svc = NewLiveService(LiveServiceParams{
		Engine:   eng,
		Loop:     scheduler.NewLoop(time.Hour),
		Session:  session,
		Ledger:   f.ledger,
		Executor: f.exec,
		HITL:     hitl.NewService(st, f.ledger, nil),
		Store:    st,
		Now:      clock,
	})
	return f
}

// pending stores a proposal held for review the way the cycle engine does.
func (f *serviceFixture) pending(t *testing.T, symbol string) types.Decision {
	t.Helper()
	ctx := context.Background()
	p := types.Proposal{
		TraceID:    symbol + "-trace",
		StrategyID: "momentum_breakout",
		Symbol:     symbol,
		Side:       types.SideBuy,
		Style:      types.OrderMarket,
		EntryPrice: 100,
		Quantity:   1,
		StopLoss:   types.Price(97),
		Confidence: 0.65,
		Status:     types.ProposalPendingHITL,
		CreatedAt:  f.now,
	}
	d := types.Decision{
		Approved:     true,
		HITLRequired: true,
		HITLReason:   "One of first 2 trades of the day",
		HITLStatus:   types.HITLPending,
		CreatedAt:    f.now,
	}
	require.NoError(t, store.Do(ctx, f.store, func(uow store.UnitOfWork) error {
		if err := uow.Proposals().Insert(ctx, &p); err != nil {
			return err
		}
		d.ProposalID = p.ID
		return uow.Decisions().Insert(ctx, &d)
	}))
	_, err := f.ledger.AdjustHITL(ctx, 1, 0)
	require.NoError(t, err)
	return d
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newServiceFixture(t, time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.exec.On("Monitor", mock.Anything).Run(func(mock.Arguments) { cancel() }).Return(nil, nil).Once()

	require.NoError(t, f.svc.Run(ctx))

	f.exec.AssertExpectations(t)
	f.exec.AssertNotCalled(t, "FlattenAll", mock.Anything, mock.Anything)
}

func TestRun_StopDuringTickFinishesCycle(t *testing.T) {
	f := newServiceFixture(t, time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.exec.On("Monitor", mock.Anything).Run(func(mock.Arguments) { cancel() }).Return(nil, nil).Once()
	f.market.On("Snapshot", mock.Anything, "AAA").Run(func(args mock.Arguments) {
		assert.NoError(t, args.Get(0).(context.Context).Err(), "tick context must outlive the stop")
	}).Return(nil, errors.New("feed down")).Once()
	f.market.On("Snapshot", mock.Anything, "BBB").Return(nil, errors.New("feed down")).Once()

	require.NoError(t, f.svc.Run(ctx))

	f.exec.AssertExpectations(t)
	f.market.AssertExpectations(t)
	f.exec.AssertNotCalled(t, "FlattenAll", mock.Anything, mock.Anything)
}

func TestRun_FlattensAtShutdownInExitOnlyWindow(t *testing.T) {
	f := newServiceFixture(t, time.Date(2026, 10, 15, 15, 5, 0, 0, time.UTC))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.exec.On("Monitor", mock.Anything).Run(func(mock.Arguments) { cancel() }).Return(nil, nil).Once()
	f.exec.On("FlattenAll", mock.Anything, "shutdown").Return(nil, nil).Once()

	require.NoError(t, f.svc.Run(ctx))

	f.exec.AssertExpectations(t)
}

func TestRun_FatalErrorFlattensAndReturns(t *testing.T) {
	f := newServiceFixture(t, time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC))
	boom := errors.New("disk full")
	f.exec.On("Monitor", mock.Anything).Return(nil, boom).Once()
	f.exec.On("FlattenAll", mock.Anything, "loop_error").Return(nil, paper.ErrNoPrices).Once()

	err := f.svc.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	f.exec.AssertExpectations(t)
}

func TestTriggerSafeMode(t *testing.T) {
	f := newServiceFixture(t, time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()

	l, err := f.svc.TriggerSafeMode(ctx, "operator request")
	require.NoError(t, err)
	assert.True(t, l.SafeMode)

	l, err = f.svc.Ledger(ctx)
	require.NoError(t, err)
	assert.True(t, l.SafeMode)
}

func TestResetDay(t *testing.T) {
	f := newServiceFixture(t, time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()
	_, err := f.ledger.ApplyRealized(ctx, -350)
	require.NoError(t, err)

	l, err := f.svc.ResetDay(ctx)
	require.NoError(t, err)
	assert.False(t, l.SafeMode)
	assert.Zero(t, l.RealizedPnL)
	assert.InDelta(t, 300, l.RemainingBudget, 1e-9)
	assert.Equal(t, "2026-10-15", l.Date)
}

func TestFlattenAll_DefaultsReason(t *testing.T) {
	f := newServiceFixture(t, time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC))
	exits := []paper.Exit{{Symbol: "MCX", Reason: "manual", Quantity: 2}}
	f.exec.On("FlattenAll", mock.Anything, "manual").Return(exits, nil).Once()

	got, err := f.svc.FlattenAll(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, exits, got)
}

func TestApproveNext(t *testing.T) {
	f := newServiceFixture(t, time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := f.svc.ApproveNext(ctx)
	assert.ErrorIs(t, err, ErrNoPending)

	first := f.pending(t, "MCX")
	f.pending(t, "RADICO")

	res, err := f.svc.ApproveNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, res.Decision.ID)
	assert.Equal(t, types.HITLApproved, res.Decision.HITLStatus)

	items, err := f.svc.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "RADICO", items[0].Proposal.Symbol)

	l, err := f.svc.Ledger(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, l.HITLPending)
	assert.Equal(t, 1, l.HITLApproved)
}

func TestReject(t *testing.T) {
	f := newServiceFixture(t, time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()
	d := f.pending(t, "MCX")

	res, err := f.svc.Reject(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ProposalHITLRejected, res.Proposal.Status)

	_, err = f.svc.Reject(ctx, d.ID)
	assert.ErrorIs(t, err, hitl.ErrNotPending)
}

func TestPnL(t *testing.T) {
	f := newServiceFixture(t, time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()
	_, err := f.ledger.ApplyRealized(ctx, -40)
	require.NoError(t, err)
	_, err = f.ledger.SetUnrealized(ctx, 15)
	require.NoError(t, err)
	f.exec.On("Positions", mock.Anything).Return([]types.Position{{Symbol: "MCX", Quantity: 1}}, nil)

	sum, err := f.svc.PnL(ctx)

	require.NoError(t, err)
	assert.InDelta(t, -40, sum.Realized, 1e-9)
	assert.InDelta(t, 15, sum.Unrealized, 1e-9)
	assert.InDelta(t, -25, sum.Total, 1e-9)
	assert.InDelta(t, 260, sum.RemainingBudget, 1e-9)
	assert.Equal(t, 1, sum.OpenPositions)
}

func TestRecentViews(t *testing.T) {
	f := newServiceFixture(t, time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()
	f.pending(t, "MCX")
	f.pending(t, "RADICO")

	decisions, err := f.svc.RecentDecisions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, decisions, 1)

	proposals, err := f.svc.RecentProposals(ctx, 0)
	require.NoError(t, err)
	require.Len(t, proposals, 2)
	assert.Equal(t, "RADICO", proposals[0].Symbol)

	orders, err := f.svc.RecentOrders(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, orders)
}
