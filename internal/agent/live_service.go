package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"daybot/internal/agent/engine"
	"daybot/internal/agent/interfaces"
	"daybot/internal/executor/paper"
	"daybot/internal/hitl"
	"daybot/internal/ledger"
	"daybot/internal/logger"
	"daybot/internal/scheduler"
	"daybot/internal/store"
	"daybot/internal/types"
)

// ErrNoPending is returned by ApproveNext when nothing awaits review.
var ErrNoPending = errors.New("agent: no pending approvals")

const (
	flattenTimeout     = 30 * time.Second
	minTickTimeout     = 30 * time.Second
	defaultRecentLimit = 50
)

type LiveServiceParams struct {
	Engine   *engine.Engine
	Loop     *scheduler.Loop
	Session  *scheduler.Session
	Ledger   *ledger.Service
	Executor interfaces.ExecutionService
	HITL     *hitl.Service
	Store    store.Store
	Now      func() time.Time
}

// LiveService drives the cycle engine on the scheduler loop and exposes the
// operational controls. Cycles and mutating controls never interleave.
type LiveService struct {
	mu       sync.Mutex
	engine   *engine.Engine
	loop     *scheduler.Loop
	session  *scheduler.Session
	ledger   *ledger.Service
	executor interfaces.ExecutionService
	hitl     *hitl.Service
	store    store.Store
	now      func() time.Time
}

func NewLiveService(p LiveServiceParams) *LiveService {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &LiveService{
		engine:   p.Engine,
		loop:     p.Loop,
		session:  p.Session,
		ledger:   p.Ledger,
		executor: p.Executor,
		hitl:     p.HITL,
		store:    p.Store,
		now:      now,
	}
}

// Run blocks until ctx is cancelled or a cycle fails. A failed cycle gets a
// best-effort flatten at any time of day before the error is returned.
func (s *LiveService) Run(ctx context.Context) error {
	logger.InfoEvent("trading_loop_started", map[string]any{"interval": s.loop.Interval.String()})
	err := s.loop.Run(ctx, s.tick)
	if err != nil {
		logger.Errorf("trading loop stopped on error: %v", err)
		logger.ErrorEvent("trading_loop_error", map[string]any{"error": err.Error()})
		s.flattenOnExit("loop_error")
		return err
	}
	if s.session.ExitOnly(s.now()) {
		s.flattenOnExit("shutdown")
	}
	logger.InfoEvent("trading_loop_stopped", nil)
	return nil
}

// tick runs a whole cycle even if a stop arrives midway; the loop checks for
// the stop between ticks.
func (s *LiveService) tick(ctx context.Context) error {
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.tickTimeout())
	defer cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.RunCycle(tctx)
}

func (s *LiveService) tickTimeout() time.Duration {
	if s.loop == nil || s.loop.Interval < minTickTimeout {
		return minTickTimeout
	}
	return s.loop.Interval
}

// flattenOnExit runs on a fresh context because the loop's one is usually done.
func (s *LiveService) flattenOnExit(reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), flattenTimeout)
	defer cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	exits, err := s.executor.FlattenAll(ctx, reason)
	if err != nil {
		logger.Errorf("flatten on exit (%s) failed: %v", reason, err)
		return
	}
	logger.Infof("flattened %d positions on exit (%s)", len(exits), reason)
}

// TriggerSafeMode latches safe mode for the rest of the day.
func (s *LiveService) TriggerSafeMode(ctx context.Context, reason string) (types.Ledger, error) {
	if reason == "" {
		reason = "manual"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.ledger.TripSafeMode(ctx, reason)
	if err != nil {
		return l, fmt.Errorf("trigger safe mode: %w", err)
	}
	return l, nil
}

// ResetDay replaces today's ledger with a fresh one at the configured ceilings.
func (s *LiveService) ResetDay(ctx context.Context) (types.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Reset(ctx)
}

// FlattenAll closes every priced position.
func (s *LiveService) FlattenAll(ctx context.Context, reason string) ([]paper.Exit, error) {
	if reason == "" {
		reason = "manual"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executor.FlattenAll(ctx, reason)
}

func (s *LiveService) ListPending(ctx context.Context) ([]hitl.Item, error) {
	return s.hitl.ListPending(ctx)
}

func (s *LiveService) Approve(ctx context.Context, decisionID int64) (hitl.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hitl.Approve(ctx, decisionID)
}

func (s *LiveService) Reject(ctx context.Context, decisionID int64) (hitl.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hitl.Reject(ctx, decisionID)
}

// ApproveNext approves the oldest pending decision.
func (s *LiveService) ApproveNext(ctx context.Context) (hitl.Result, error) {
	items, err := s.hitl.ListPending(ctx)
	if err != nil {
		return hitl.Result{}, err
	}
	if len(items) == 0 {
		return hitl.Result{}, ErrNoPending
	}
	return s.Approve(ctx, items[0].Decision.ID)
}

// Ledger returns today's ledger, creating it on first use.
func (s *LiveService) Ledger(ctx context.Context) (types.Ledger, error) {
	return s.ledger.Current(ctx)
}

func (s *LiveService) Positions(ctx context.Context) ([]types.Position, error) {
	return s.executor.Positions(ctx)
}

func (s *LiveService) RecentOrders(ctx context.Context, limit int) ([]types.Order, error) {
	var out []types.Order
	err := store.Do(ctx, s.store, func(uow store.UnitOfWork) error {
		var err error
		out, err = uow.Orders().ListRecent(ctx, normLimit(limit))
		return err
	})
	return out, err
}

func (s *LiveService) RecentDecisions(ctx context.Context, limit int) ([]types.Decision, error) {
	var out []types.Decision
	err := store.Do(ctx, s.store, func(uow store.UnitOfWork) error {
		var err error
		out, err = uow.Decisions().ListRecent(ctx, normLimit(limit))
		return err
	})
	return out, err
}

func (s *LiveService) RecentProposals(ctx context.Context, limit int) ([]types.Proposal, error) {
	var out []types.Proposal
	err := store.Do(ctx, s.store, func(uow store.UnitOfWork) error {
		var err error
		out, err = uow.Proposals().ListRecent(ctx, normLimit(limit))
		return err
	})
	return out, err
}

// PnLSummary is the day's PnL view.
type PnLSummary struct {
	Date            string  `json:"date"`
	Realized        float64 `json:"realized_pnl"`
	Unrealized      float64 `json:"unrealized_pnl"`
	Total           float64 `json:"total_pnl"`
	RemainingBudget float64 `json:"loss_budget_remaining"`
	TradesCount     int     `json:"trades_count"`
	OpenPositions   int     `json:"open_positions"`
	SafeMode        bool    `json:"safe_mode"`
}

func (s *LiveService) PnL(ctx context.Context) (PnLSummary, error) {
	l, err := s.ledger.Current(ctx)
	if err != nil {
		return PnLSummary{}, err
	}
	positions, err := s.executor.Positions(ctx)
	if err != nil {
		return PnLSummary{}, err
	}
	return PnLSummary{
		Date:            l.Date,
		Realized:        l.RealizedPnL,
		Unrealized:      l.UnrealizedPnL,
		Total:           l.TotalPnL(),
		RemainingBudget: l.RemainingBudget,
		TradesCount:     l.TradesCount,
		OpenPositions:   len(positions),
		SafeMode:        l.SafeMode,
	}, nil
}

func normLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return defaultRecentLimit
	}
	return limit
}
