package app

import (
	"context"
	"errors"
	"fmt"

	"daybot/internal/agent"
	"daybot/internal/config"
	"daybot/internal/logger"
	livehttp "daybot/internal/transport/http/live"

	"golang.org/x/sync/errgroup"
)

// App owns the wired services: the trading loop and the live HTTP API.
type App struct {
	cfg      *config.Config
	live     *agent.LiveService
	liveHTTP *livehttp.Server
	closers  []func() error
	Summary  *StartupSummary
}

// NewApp builds the application from cfg without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run starts the trading loop and the HTTP server and blocks until both stop.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.live == nil {
		return fmt.Errorf("live service not initialized")
	}
	defer a.Close()

	if a.Summary != nil {
		a.Summary.Print()
	}

	group, ctx := errgroup.WithContext(ctx)
	if a.liveHTTP != nil {
		group.Go(func() error {
			if err := a.liveHTTP.Start(ctx); err != nil {
				return fmt.Errorf("live http server error: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		return a.live.Run(ctx)
	})
	return group.Wait()
}

// Close releases stores and clients in reverse build order.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// LiveService exposes the trading service for tests and replay harnesses.
func (a *App) LiveService() *agent.LiveService {
	if a == nil {
		return nil
	}
	return a.live
}
