package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"daybot/internal/metrics"
	"daybot/internal/pkg/circuit"
	"daybot/internal/types"
)

// GuardConfig bounds calls into a market Source.
type GuardConfig struct {
	RatePerSecond    float64
	Burst            int
	BreakerThreshold int
	BreakerTimeout   time.Duration
	CallTimeout      time.Duration
}

// Guarded wraps a Source with a rate limiter, a circuit breaker and a per-call
// timeout. A tripped breaker fails fast with circuit.ErrOpen.
type Guarded struct {
	inner   Source
	limiter *rate.Limiter
	breaker *circuit.CircuitBreaker
	timeout time.Duration
}

var _ Source = (*Guarded)(nil)

func NewGuarded(inner Source, cfg GuardConfig) *Guarded {
	limit := rate.Limit(cfg.RatePerSecond)
	if cfg.RatePerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Guarded{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
		breaker: circuit.NewCircuitBreaker("market", cfg.BreakerThreshold, cfg.BreakerTimeout),
		timeout: timeout,
	}
}

func (g *Guarded) Breaker() *circuit.CircuitBreaker {
	return g.breaker
}

func (g *Guarded) LastPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	var out map[string]float64
	err := g.call(ctx, "last_prices", func(ctx context.Context) error {
		var err error
		out, err = g.inner.LastPrices(ctx, symbols)
		return err
	})
	return out, err
}

func (g *Guarded) Snapshot(ctx context.Context, symbol string) (types.MarketSnapshot, error) {
	var snap types.MarketSnapshot
	err := g.call(ctx, "snapshot", func(ctx context.Context) error {
		var err error
		snap, err = g.inner.Snapshot(ctx, symbol)
		return err
	})
	return snap, err
}

func (g *Guarded) call(ctx context.Context, op string, fn func(context.Context) error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		metrics.MarketCalls.WithLabelValues(op, "throttled").Inc()
		return fmt.Errorf("market %s: %w", op, err)
	}
	err := g.breaker.Do(func() error {
		cctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return fn(cctx)
	})
	result := "ok"
	switch {
	case errors.Is(err, circuit.ErrOpen):
		result = "open"
	case err != nil:
		result = "error"
	}
	metrics.MarketCalls.WithLabelValues(op, result).Inc()
	if err != nil {
		return fmt.Errorf("market %s: %w", op, err)
	}
	return nil
}
