package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"daybot/internal/agent/interfaces"
	"daybot/internal/config"
	"daybot/internal/executor/paper"
	"daybot/internal/ledger"
	"daybot/internal/logger"
	"daybot/internal/metrics"
	"daybot/internal/scheduler"
	"daybot/internal/store"
	"daybot/internal/strategy/ensemble"
	"daybot/internal/types"
)

const defaultSnapshotTimeout = 10 * time.Second

// Engine runs one decision cycle per tick: housekeeping first, then one
// snapshot, proposal and guardrail pass per instrument.
type Engine struct {
	Mode            string
	Universe        interfaces.Universe
	Market          interfaces.MarketService
	Proposer        interfaces.Proposer
	Gate            interfaces.Gate
	Approver        interfaces.Approver
	Executor        interfaces.ExecutionService
	Ledger          *ledger.Service
	Store           store.Store
	Session         *scheduler.Session
	SnapshotTimeout time.Duration

	now func() time.Time
}

// EngineParams holds dependencies for NewEngine.
type EngineParams struct {
	Mode            string
	Universe        interfaces.Universe
	Market          interfaces.MarketService
	Proposer        interfaces.Proposer
	Gate            interfaces.Gate
	Approver        interfaces.Approver
	Executor        interfaces.ExecutionService
	Ledger          *ledger.Service
	Store           store.Store
	Session         *scheduler.Session
	SnapshotTimeout time.Duration
	Now             func() time.Time
}

func NewEngine(p EngineParams) *Engine {
	mode := p.Mode
	if mode == "" {
		mode = config.EngineModeLayered
	}
	timeout := p.SnapshotTimeout
	if timeout <= 0 {
		timeout = defaultSnapshotTimeout
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		Mode:            mode,
		Universe:        p.Universe,
		Market:          p.Market,
		Proposer:        p.Proposer,
		Gate:            p.Gate,
		Approver:        p.Approver,
		Executor:        p.Executor,
		Ledger:          p.Ledger,
		Store:           p.Store,
		Session:         p.Session,
		SnapshotTimeout: timeout,
		now:             now,
	}
}

// RunCycle executes one tick. Per-instrument data problems are logged and
// skipped; persistence and ledger failures abort the tick.
func (e *Engine) RunCycle(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		metrics.CycleDuration.Observe(time.Since(start).Seconds())
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.CyclesTotal.WithLabelValues(outcome).Inc()
	}()

	if _, err := e.Ledger.RotateIfNeeded(ctx); err != nil {
		return err
	}
	if err := e.monitor(ctx); err != nil {
		return err
	}
	l, err := e.Ledger.Current(ctx)
	if err != nil {
		return err
	}
	if l.SafeMode {
		logger.Warnf("safe mode active, flattening positions")
		if _, err := e.Executor.FlattenAll(ctx, "safe_mode"); err != nil {
			if !errors.Is(err, paper.ErrNoPrices) {
				return fmt.Errorf("flatten in safe mode: %w", err)
			}
			logger.Warnf("safe mode flatten skipped: %v", err)
		}
		return nil
	}

	now := e.now()
	phase, reason := e.Session.Phase(now)
	switch phase {
	case scheduler.PhaseClosed:
		logger.Infof("outside trading hours: %s", reason)
		return nil
	case scheduler.PhaseExitOnly:
		logger.Infof("exit-only window, skipping new entries")
		return nil
	}

	for _, symbol := range e.Universe.Symbols() {
		if err := e.processSymbol(ctx, symbol, now); err != nil {
			return fmt.Errorf("cycle %s: %w", symbol, err)
		}
	}
	return nil
}

func (e *Engine) monitor(ctx context.Context) error {
	exits, err := e.Executor.Monitor(ctx)
	if err != nil {
		if errors.Is(err, paper.ErrNoPrices) {
			logger.Warnf("position monitor skipped: %v", err)
			return nil
		}
		return fmt.Errorf("monitor positions: %w", err)
	}
	for _, ex := range exits {
		logger.Infof("exited %s (%s) qty=%d pnl=%.2f", ex.Symbol, ex.Reason, ex.Quantity, ex.RealizedPnL)
	}
	return nil
}

// processSymbol returns only errors that must abort the tick.
func (e *Engine) processSymbol(ctx context.Context, symbol string, now time.Time) error {
	sctx, cancel := context.WithTimeout(ctx, e.SnapshotTimeout)
	snap, err := e.Market.Snapshot(sctx, symbol)
	cancel()
	if err != nil {
		logger.Warnf("market data unavailable for %s: %v", symbol, err)
		return nil
	}
	if err := store.Do(ctx, e.Store, func(uow store.UnitOfWork) error {
		return uow.Snapshots().Insert(ctx, &snap)
	}); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	p, gated := e.propose(ctx, snap, now)
	if p == nil {
		return nil
	}
	p.SnapshotID = snap.ID
	if gated {
		p.Status = types.ProposalGated
	}
	if err := store.Do(ctx, e.Store, func(uow store.UnitOfWork) error {
		return uow.Proposals().Insert(ctx, p)
	}); err != nil {
		return fmt.Errorf("save proposal: %w", err)
	}
	if gated {
		metrics.ProposalsTotal.WithLabelValues(string(p.StrategyID), string(types.ProposalGated)).Inc()
		return nil
	}

	d, err := e.Approver.Approve(ctx, *p)
	if err != nil {
		return fmt.Errorf("approve proposal %d: %w", p.ID, err)
	}
	d.ProposalID = p.ID
	status := types.ProposalPending
	switch {
	case !d.Approved:
		status = types.ProposalRejected
	case d.HITLRequired:
		status = types.ProposalPendingHITL
	}
	if err := store.Do(ctx, e.Store, func(uow store.UnitOfWork) error {
		if err := uow.Decisions().Insert(ctx, &d); err != nil {
			return err
		}
		if status == types.ProposalPending {
			return nil
		}
		if err := uow.Proposals().UpdateStatus(ctx, p.ID, status); err != nil {
			return err
		}
		if status != types.ProposalPendingHITL {
			return nil
		}
		_, err := e.Ledger.UpdateTx(ctx, uow, func(l *types.Ledger) error {
			l.HITLPending++
			return nil
		})
		return err
	}); err != nil {
		return fmt.Errorf("save decision for proposal %d: %w", p.ID, err)
	}

	switch status {
	case types.ProposalRejected:
		metrics.ProposalsTotal.WithLabelValues(string(p.StrategyID), string(status)).Inc()
		return nil
	case types.ProposalPendingHITL:
		metrics.ProposalsTotal.WithLabelValues(string(p.StrategyID), string(status)).Inc()
		logger.InfoEvent("hitl_pending", map[string]any{
			"decision_id": d.ID,
			"proposal_id": p.ID,
			"symbol":      p.Symbol,
			"reason":      d.HITLReason,
		})
		return nil
	}
	return e.execute(ctx, *p, d)
}

func (e *Engine) execute(ctx context.Context, p types.Proposal, d types.Decision) error {
	order, err := e.Executor.Execute(ctx, p, d)
	if err != nil {
		return fmt.Errorf("execute proposal %d: %w", p.ID, err)
	}
	status := types.ProposalExecutionFailed
	if order != nil && order.Filled() {
		status = types.ProposalExecuted
	}
	if err := store.Do(ctx, e.Store, func(uow store.UnitOfWork) error {
		return uow.Proposals().UpdateStatus(ctx, p.ID, status)
	}); err != nil {
		return fmt.Errorf("mark proposal %d %s: %w", p.ID, status, err)
	}
	metrics.ProposalsTotal.WithLabelValues(string(p.StrategyID), string(status)).Inc()
	return nil
}

// propose produces the instrument's proposal for the configured mode. The
// second result reports a layered proposal the gate held back.
func (e *Engine) propose(ctx context.Context, snap types.MarketSnapshot, now time.Time) (*types.Proposal, bool) {
	switch e.Mode {
	case config.EngineModeBestOfN:
		p, ok := e.Proposer.Evaluate(ctx, snap)
		if !ok {
			return nil, false
		}
		return p, false
	case config.EngineModeConfluence:
		return e.confluence(ctx, snap, now), false
	default:
		p, ok := e.Proposer.Evaluate(ctx, snap)
		if !ok {
			return nil, false
		}
		v := e.Gate.Evaluate(snap, now)
		if open, why := gateOpen(p.Side, v); !open {
			logger.InfoEvent("proposal_gated", map[string]any{
				"symbol":    snap.Symbol,
				"strategy":  string(p.StrategyID),
				"side":      string(p.Side),
				"reason":    why,
				"agreeing":  v.Agreeing,
				"active":    v.Active,
				"regime":    string(v.Regime),
				"warnings":  v.Warnings,
				"gate_conf": v.Confidence,
			})
			return p, true
		}
		return p, false
	}
}

func gateOpen(side types.Side, v ensemble.Verdict) (bool, string) {
	if side == types.SideSell {
		if v.ForcedWait {
			return false, "forced wait window"
		}
		return true, ""
	}
	if v.Action != ensemble.ActionBuy {
		return false, fmt.Sprintf("confluence %d/%d below threshold", v.Agreeing, v.Active)
	}
	return true, ""
}

func (e *Engine) confluence(ctx context.Context, snap types.MarketSnapshot, now time.Time) *types.Proposal {
	v := e.Gate.Evaluate(snap, now)
	if v.Action != ensemble.ActionBuy {
		logger.Infof("confluence WAIT for %s: %d/%d agreeing", snap.Symbol, v.Agreeing, v.Active)
		return nil
	}
	sig, ok := v.Strongest()
	if !ok {
		return nil
	}
	s := signalStrategy{signal: sig, verdict: v}
	p := e.Proposer.Build(ctx, snap, s, s.Score(snap))
	logger.InfoEvent("trade_intent_generated", map[string]any{
		"strategy":      string(p.StrategyID),
		"symbol":        p.Symbol,
		"side":          string(p.Side),
		"confidence":    p.Confidence,
		"expected_risk": p.ExpectedRisk,
		"agreeing":      v.Agreeing,
	})
	return p
}
