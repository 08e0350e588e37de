package app

import (
	"context"
	"fmt"
	"time"

	"daybot/internal/agent"
	"daybot/internal/agent/engine"
	"daybot/internal/config"
	"daybot/internal/executor/paper"
	"daybot/internal/hitl"
	"daybot/internal/ledger"
	"daybot/internal/logger"
	"daybot/internal/risk"
	"daybot/internal/scheduler"
	"daybot/internal/store"
	"daybot/internal/store/sqlite"
	"daybot/internal/strategy"
	"daybot/internal/strategy/ensemble"
	"daybot/internal/universe"
	livehttp "daybot/internal/transport/http/live"
)

type AppBuilder struct {
	cfg *config.Config

	marketStackFn func(config.MarketConfig, time.Duration, *time.Location) (*MarketStack, error)
	rationaleFn   func(context.Context, config.LLMConfig) strategy.Rationale
	dedupFn       func(context.Context, config.PaperConfig) (paper.Dedup, func() error, error)
	liveHTTPFn    func(config.AppConfig, livehttp.Controls) (*livehttp.Server, error)

	storeOverride store.Store
	now           func() time.Time
}

type AppBuilderOption func(*AppBuilder)

// WithStore swaps the sqlite store, mainly for tests.
func WithStore(st store.Store) AppBuilderOption {
	return func(b *AppBuilder) { b.storeOverride = st }
}

// WithClock pins the wall clock used by the ledger, risk engine and simulator.
func WithClock(now func() time.Time) AppBuilderOption {
	return func(b *AppBuilder) { b.now = now }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:           cfg,
		marketStackFn: buildMarketStack,
		rationaleFn:   buildRationale,
		dedupFn:       buildDedup,
		liveHTTPFn:    buildLiveHTTPServer,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (app *App, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	var closers []func() error
	defer func() {
		if err == nil {
			return
		}
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}()

	session, err := scheduler.NewSession(cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	loc := session.Location()
	interval, err := time.ParseDuration(cfg.Engine.LoopInterval)
	if err != nil {
		return nil, fmt.Errorf("engine.loop_interval: %w", err)
	}

	st := b.storeOverride
	if st == nil {
		sq, err := sqlite.NewSqliteStore(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
		}
		st = sq
		closers = append(closers, sq.Close)
		logger.Infof("store opened at %s", cfg.Store.Path)
	}

	reg, err := universe.NewRegistry(cfg.Universe.Path, cfg.Universe.Symbols)
	if err != nil {
		return nil, fmt.Errorf("universe: %w", err)
	}
	reg.OnChange(func(snap universe.Snapshot) {
		logger.InfoEvent("universe_reloaded", map[string]any{"symbols": snap.Symbols(), "source": snap.Source})
	})

	led := ledger.NewService(st, ledger.Policy{
		MaxDailyLoss: cfg.Risk.MaxDailyLoss,
		MaxTrades:    cfg.Risk.MaxTradesPerDay,
	}, loc, b.now)
	today, err := led.Rotate(ctx, led.Today())
	if err != nil {
		return nil, err
	}

	mkt, err := b.marketStackFn(cfg.Market, cfg.Engine.SnapshotTimeout(), loc)
	if err != nil {
		return nil, err
	}
	closers = append(closers, mkt.Candles.Close)

	dedup, closeDedup, err := b.dedupFn(ctx, cfg.Paper)
	if err != nil {
		return nil, err
	}
	if closeDedup != nil {
		closers = append(closers, closeDedup)
	}

	sim := paper.NewSimulator(st, led, mkt.Source, dedup, paper.Config{
		SlippagePct: cfg.Paper.SlippagePct,
		FeePerOrder: cfg.Paper.FeePerOrder,
	}, b.now)

	approver := risk.NewEngine(led, st, reg, risk.Policy{
		PerTradeMaxLossPct:      cfg.Risk.PerTradeMaxLossPct,
		PerTradeMaxLossAbs:      cfg.Risk.PerTradeMaxLossAbs,
		HITLFirstNTrades:        cfg.Risk.HITLFirstNTrades,
		HITLConfidenceThreshold: cfg.Risk.HITLConfidenceThreshold,
		SwitchCooldown:          cfg.Risk.SwitchCooldown(),
		SwitchMinImprovement:    cfg.Risk.StrategySwitchImprovement,
	}, b.now)

	evaluator := strategy.NewEvaluator(strategy.Default(), cfg.Engine.MinConfidence, b.rationaleFn(ctx, cfg.LLM))
	gate := ensemble.NewGate(ensemble.Config{
		MinConfluence:         cfg.Engine.Gate.MinConfluence,
		RequireBiasAlignment:  cfg.Engine.Gate.RequireBiasAlignment,
		RequireTrendAlignment: cfg.Engine.Gate.RequireTrendAlignment,
	}, loc, ensemble.Default()...)

	var approveExec hitl.Executor
	if cfg.Paper.ExecuteOnHITLApprove {
		approveExec = sim
	}
	review := hitl.NewService(st, led, approveExec)

	eng := engine.NewEngine(engine.EngineParams{
		Mode:            cfg.Engine.Mode,
		Universe:        reg,
		Market:          mkt.Source,
		Proposer:        evaluator,
		Gate:            gate,
		Approver:        approver,
		Executor:        sim,
		Ledger:          led,
		Store:           st,
		Session:         session,
		SnapshotTimeout: cfg.Engine.SnapshotTimeout(),
		Now:             b.now,
	})
	live := agent.NewLiveService(agent.LiveServiceParams{
		Engine:   eng,
		Loop:     scheduler.NewLoop(interval),
		Session:  session,
		Ledger:   led,
		Executor: sim,
		HITL:     review,
		Store:    st,
		Now:      b.now,
	})

	server, err := b.liveHTTPFn(cfg.App, live)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		live:     live,
		liveHTTP: server,
		closers:  closers,
		Summary:  newStartupSummary(cfg, reg.Symbols(), today, mkt.Summary, server),
	}, nil
}
