// Package ledger owns the daily risk ledger: one row per trading date holding
// realized and unrealized PnL, the remaining loss budget, the trade count and
// the safe-mode latch. All mutations are serialized and persisted in a single
// transaction each.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"daybot/internal/logger"
	"daybot/internal/metrics"
	"daybot/internal/store"
	"daybot/internal/types"
)

// Policy holds the ceilings stamped onto each new ledger.
type Policy struct {
	MaxDailyLoss float64
	MaxTrades    int
}

type Service struct {
	mu     sync.Mutex
	store  store.Store
	policy Policy
	loc    *time.Location
	now    func() time.Time
	date   string
}

func NewService(st store.Store, policy Policy, loc *time.Location, nowFn func() time.Time) *Service {
	if loc == nil {
		loc = time.Local
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Service{store: st, policy: policy, loc: loc, now: nowFn}
}

// Today is the trading date in the session timezone.
func (s *Service) Today() string {
	return s.now().In(s.loc).Format(types.DateLayout)
}

func (s *Service) seed(date string) types.Ledger {
	l := types.NewLedger(date, s.policy.MaxDailyLoss, s.policy.MaxTrades)
	l.UpdatedAt = s.now()
	return l
}

// Current returns today's ledger, creating it on first use.
func (s *Service) Current(ctx context.Context) (types.Ledger, error) {
	return s.Update(ctx, nil)
}

// RotateIfNeeded switches the live ledger when the trading date changed since
// the last call. It reports whether a rotation happened.
func (s *Service) RotateIfNeeded(ctx context.Context) (bool, error) {
	today := s.Today()
	s.mu.Lock()
	prev := s.date
	s.mu.Unlock()
	if prev == today {
		return false, nil
	}
	if _, err := s.Rotate(ctx, today); err != nil {
		return false, err
	}
	return prev != "", nil
}

// Rotate makes date the live ledger, loading it or seeding a fresh one.
func (s *Service) Rotate(ctx context.Context, date string) (types.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out types.Ledger
	err := store.Do(ctx, s.store, func(uow store.UnitOfWork) error {
		l, err := uow.Ledgers().GetOrCreate(ctx, s.seed(date))
		out = l
		return err
	})
	if err != nil {
		return types.Ledger{}, fmt.Errorf("rotate ledger to %s: %w", date, err)
	}
	prev := s.date
	s.date = date
	if prev != "" && prev != date {
		logger.InfoEvent("ledger_rotated", map[string]any{"from": prev, "to": date})
	}
	metrics.ObserveLedger(out)
	return out, nil
}

// Reset replaces today's ledger with a fresh one at the configured ceilings.
func (s *Service) Reset(ctx context.Context) (types.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	date := s.Today()
	fresh := s.seed(date)
	err := store.Do(ctx, s.store, func(uow store.UnitOfWork) error {
		return uow.Ledgers().Save(ctx, fresh)
	})
	if err != nil {
		return types.Ledger{}, fmt.Errorf("reset ledger: %w", err)
	}
	s.date = date
	logger.WarnEvent("ledger_reset", map[string]any{"date": date, "max_daily_loss": fresh.MaxDailyLoss})
	metrics.ObserveLedger(fresh)
	return fresh, nil
}

// Update applies fn to today's ledger inside its own transaction. A nil fn
// only loads (and if needed creates) the ledger.
func (s *Service) Update(ctx context.Context, fn func(*types.Ledger) error) (types.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out types.Ledger
	err := store.Do(ctx, s.store, func(uow store.UnitOfWork) error {
		l, err := s.mutateLocked(ctx, uow, fn)
		out = l
		return err
	})
	if err != nil {
		return types.Ledger{}, err
	}
	metrics.ObserveLedger(out)
	return out, nil
}

// UpdateTx is Update inside a caller-owned unit of work, so ledger changes
// commit together with the caller's other writes.
func (s *Service) UpdateTx(ctx context.Context, uow store.UnitOfWork, fn func(*types.Ledger) error) (types.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.mutateLocked(ctx, uow, fn)
	if err == nil {
		metrics.ObserveLedger(l)
	}
	return l, err
}

func (s *Service) mutateLocked(ctx context.Context, uow store.UnitOfWork, fn func(*types.Ledger) error) (types.Ledger, error) {
	date := s.date
	if date == "" {
		date = s.Today()
		s.date = date
	}
	l, err := uow.Ledgers().GetOrCreate(ctx, s.seed(date))
	if err != nil {
		return types.Ledger{}, fmt.Errorf("load ledger %s: %w", date, err)
	}
	if fn == nil {
		return l, nil
	}
	if err := fn(&l); err != nil {
		return types.Ledger{}, err
	}
	l.UpdatedAt = s.now()
	if err := uow.Ledgers().Save(ctx, l); err != nil {
		return types.Ledger{}, fmt.Errorf("save ledger %s: %w", date, err)
	}
	return l, nil
}

// TripSafeMode latches safe mode for the rest of the day.
func (s *Service) TripSafeMode(ctx context.Context, reason string) (types.Ledger, error) {
	var tripped bool
	l, err := s.Update(ctx, func(l *types.Ledger) error {
		tripped = !l.SafeMode
		l.SafeMode = true
		return nil
	})
	if err != nil {
		return l, err
	}
	if tripped {
		EmitSafeMode(l, reason)
	}
	return l, nil
}

// ApplyRealized folds realized PnL into today's ledger, latching safe mode
// when the loss budget is used up.
func (s *Service) ApplyRealized(ctx context.Context, delta float64) (types.Ledger, error) {
	var tripped bool
	l, err := s.Update(ctx, func(l *types.Ledger) error {
		tripped = l.ApplyRealized(delta)
		return nil
	})
	if err == nil && tripped {
		EmitSafeMode(l, "daily loss budget exhausted")
	}
	return l, err
}

func (s *Service) SetUnrealized(ctx context.Context, v float64) (types.Ledger, error) {
	return s.Update(ctx, func(l *types.Ledger) error {
		l.UnrealizedPnL = v
		return nil
	})
}

// AdjustHITL moves the pending and approved HITL counters, flooring at zero.
func (s *Service) AdjustHITL(ctx context.Context, pendingDelta, approvedDelta int) (types.Ledger, error) {
	return s.Update(ctx, func(l *types.Ledger) error {
		l.HITLPending = max(0, l.HITLPending+pendingDelta)
		l.HITLApproved = max(0, l.HITLApproved+approvedDelta)
		return nil
	})
}

// EmitSafeMode logs and emits the safe_mode_triggered event for l.
func EmitSafeMode(l types.Ledger, reason string) {
	logger.Warnf("safe mode latched for %s: %s", l.Date, reason)
	logger.WarnEvent("safe_mode_triggered", map[string]any{
		"date":          l.Date,
		"reason":        reason,
		"realized_pnl":  l.RealizedPnL,
		"budget_remain": l.RemainingBudget,
	})
}
