// Package paper simulates order execution against live reference prices and
// keeps the position book and daily ledger in step with every fill.
package paper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"daybot/internal/ledger"
	"daybot/internal/logger"
	"daybot/internal/metrics"
	"daybot/internal/store"
	"daybot/internal/types"
)

// ErrNoPrices is a soft failure: the book could not be priced this cycle.
var ErrNoPrices = errors.New("paper: prices unavailable")

// PriceSource supplies last traded prices. Missing symbols are omitted.
type PriceSource interface {
	LastPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

type Config struct {
	SlippagePct float64
	FeePerOrder float64
}

// Exit describes one closed position.
type Exit struct {
	Symbol      string  `json:"symbol"`
	Reason      string  `json:"reason"`
	Quantity    int     `json:"quantity"`
	EntryPrice  float64 `json:"entry_price"`
	ExitPrice   float64 `json:"exit_price"`
	RealizedPnL float64 `json:"realized_pnl"`
	OrderID     string  `json:"order_id"`
}

type Simulator struct {
	mu     sync.Mutex
	store  store.Store
	ledger *ledger.Service
	prices PriceSource
	dedup  Dedup
	cfg    Config
	now    func() time.Time
	newID  func() string
}

func NewSimulator(st store.Store, led *ledger.Service, prices PriceSource, dedup Dedup, cfg Config, nowFn func() time.Time) *Simulator {
	if dedup == nil {
		dedup = NewMemoryDedup(DefaultDedupWindow, DefaultDedupRetention)
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Simulator{
		store:  st,
		ledger: led,
		prices: prices,
		dedup:  dedup,
		cfg:    cfg,
		now:    nowFn,
		newID:  uuid.NewString,
	}
}

// Execute fills an approved proposal. It returns a nil order without error
// when the decision is not approved, the attempt is a duplicate, or no
// reference price is available.
func (s *Simulator) Execute(ctx context.Context, p types.Proposal, d types.Decision) (*types.Order, error) {
	if !d.Approved {
		logger.Errorf("refusing to execute unapproved proposal %d for %s", p.ID, p.Symbol)
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	dup, err := s.dedup.Seen(ctx, p.DedupKey(), now)
	if err != nil {
		return nil, err
	}
	if dup {
		logger.Warnf("duplicate order for %s skipped (%s)", p.Symbol, p.DedupKey())
		return nil, nil
	}

	ltp, ok := s.lastPrice(ctx, p.Symbol)
	if !ok {
		return nil, nil
	}

	qty := d.Quantity(p)
	limit := p.EntryPrice
	if p.Style != types.OrderLimit {
		limit = 0
	}
	res := simulateFill(p.Style, p.Side, limit, ltp, s.cfg.SlippagePct)
	order := types.Order{
		ID:             s.newID(),
		ProposalID:     p.ID,
		Symbol:         p.Symbol,
		Side:           p.Side,
		Quantity:       qty,
		Style:          p.Style,
		LimitPrice:     limit,
		Status:         types.OrderPending,
		ReferencePrice: ltp,
		Purpose:        "entry",
		CreatedAt:      now,
	}
	if res.filled {
		order.Status = types.OrderFilled
		order.FillPrice = res.price
		order.Slippage = res.slippage
		order.Fee = s.cfg.FeePerOrder
		filledAt := now
		order.FilledAt = &filledAt
	}

	err = store.Do(ctx, s.store, func(uow store.UnitOfWork) error {
		if err := uow.Orders().Insert(ctx, &order); err != nil {
			return fmt.Errorf("save order: %w", err)
		}
		if !order.Filled() {
			return nil
		}
		if err := s.bookFill(ctx, uow, order, p, now); err != nil {
			return err
		}
		_, err := s.ledger.UpdateTx(ctx, uow, func(l *types.Ledger) error {
			l.RecordFill(p.StrategyID, now)
			return nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.OrdersTotal.WithLabelValues(string(order.Side), string(order.Status)).Inc()
	if order.Filled() {
		logger.InfoEvent("paper_order_filled", map[string]any{
			"order_id":   order.ID,
			"symbol":     order.Symbol,
			"side":       string(order.Side),
			"quantity":   order.Quantity,
			"fill_price": order.FillPrice,
			"slippage":   order.Slippage,
			"brokerage":  order.Fee,
		})
	} else {
		logger.Infof("paper order %s %s %d %s resting at %.2f (ltp %.2f)",
			order.ID, order.Side, order.Quantity, order.Symbol, order.LimitPrice, ltp)
	}
	return &order, nil
}

func (s *Simulator) bookFill(ctx context.Context, uow store.UnitOfWork, o types.Order, p types.Proposal, now time.Time) error {
	repo := uow.Positions()
	pos, err := repo.Get(ctx, o.Symbol)
	exists := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load position %s: %w", o.Symbol, err)
	}
	next := applyFill(pos, exists, o, p)
	if !exists {
		next.OpenedAt = now
	}
	next.UpdatedAt = now
	if next.Quantity == 0 {
		logger.Infof("position closed: %s", o.Symbol)
		return repo.Delete(ctx, o.Symbol)
	}
	logger.Infof("position %s: %d @ %.2f", next.Symbol, next.Quantity, next.AvgPrice)
	return repo.Upsert(ctx, next)
}

func (s *Simulator) lastPrice(ctx context.Context, symbol string) (float64, bool) {
	px, err := s.prices.LastPrices(ctx, []string{symbol})
	if err != nil {
		logger.Errorf("fetch ltp for %s: %v", symbol, err)
		return 0, false
	}
	v, ok := px[symbol]
	if !ok || v <= 0 {
		logger.Errorf("no ltp for %s", symbol)
		return 0, false
	}
	return v, true
}

// Positions returns the current book ordered by symbol.
func (s *Simulator) Positions(ctx context.Context) ([]types.Position, error) {
	var out []types.Position
	err := store.Do(ctx, s.store, func(uow store.UnitOfWork) error {
		list, err := uow.Positions().List(ctx)
		out = list
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *Simulator) priceBook(ctx context.Context) ([]types.Position, map[string]float64, error) {
	positions, err := s.Positions(ctx)
	if err != nil || len(positions) == 0 {
		return positions, nil, err
	}
	symbols := make([]string, 0, len(positions))
	for _, p := range positions {
		symbols = append(symbols, p.Symbol)
	}
	prices, err := s.prices.LastPrices(ctx, symbols)
	if err != nil {
		return positions, nil, fmt.Errorf("%w: %v", ErrNoPrices, err)
	}
	return positions, prices, nil
}

// Monitor marks every position to market and exits those whose stop or
// target was hit. Price failures return ErrNoPrices.
func (s *Simulator) Monitor(ctx context.Context) ([]Exit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions, prices, err := s.priceBook(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var exits []Exit
	var unrealized float64
	for _, pos := range positions {
		px, ok := prices[pos.Symbol]
		if !ok || px <= 0 {
			logger.Warnf("no ltp for %s, skipping monitoring", pos.Symbol)
			unrealized += pos.UnrealizedPnL
			continue
		}
		pos.Mark(px, now)
		if err := store.Do(ctx, s.store, func(uow store.UnitOfWork) error {
			return uow.Positions().Upsert(ctx, pos)
		}); err != nil {
			return exits, fmt.Errorf("mark %s: %w", pos.Symbol, err)
		}
		reason, hit := exitReason(pos, px)
		if !hit {
			unrealized += pos.UnrealizedPnL
			continue
		}
		ex, err := s.exitLocked(ctx, pos, px, reason)
		if err != nil {
			return exits, err
		}
		exits = append(exits, ex)
	}
	metrics.OpenPositions.Set(float64(len(positions) - len(exits)))
	if _, err := s.ledger.SetUnrealized(ctx, unrealized); err != nil {
		return exits, fmt.Errorf("fold unrealized pnl: %w", err)
	}
	return exits, nil
}

// FlattenAll exits every position that has a price.
func (s *Simulator) FlattenAll(ctx context.Context, reason string) ([]Exit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions, prices, err := s.priceBook(ctx)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		logger.Infof("no positions to flatten")
		return nil, nil
	}
	var exits []Exit
	for _, pos := range positions {
		px, ok := prices[pos.Symbol]
		if !ok || px <= 0 {
			logger.Warnf("could not flatten %s: no ltp", pos.Symbol)
			continue
		}
		ex, err := s.exitLocked(ctx, pos, px, reason)
		if err != nil {
			return exits, err
		}
		exits = append(exits, ex)
	}
	logger.WarnEvent("positions_flattened", map[string]any{"reason": reason, "count": len(exits)})
	metrics.OpenPositions.Set(float64(len(positions) - len(exits)))
	return exits, nil
}

// exitLocked closes pos at px with slippage, books realized PnL and deletes
// the position in one transaction.
func (s *Simulator) exitLocked(ctx context.Context, pos types.Position, px float64, reason string) (Exit, error) {
	now := s.now()
	side := types.SideSell
	if pos.Short() {
		side = types.SideBuy
	}
	qty := pos.AbsQuantity()
	res := simulateFill(types.OrderMarket, side, 0, px, s.cfg.SlippagePct)
	filledAt := now
	order := types.Order{
		ID:             s.newID(),
		Symbol:         pos.Symbol,
		Side:           side,
		Quantity:       qty,
		Style:          types.OrderMarket,
		Status:         types.OrderFilled,
		FillPrice:      res.price,
		FilledAt:       &filledAt,
		Slippage:       res.slippage,
		Fee:            s.cfg.FeePerOrder,
		ReferencePrice: px,
		Purpose:        reason,
		CreatedAt:      now,
	}
	pnl := realizedPnL(pos, res.price, s.cfg.FeePerOrder)

	var tripped bool
	var after types.Ledger
	err := store.Do(ctx, s.store, func(uow store.UnitOfWork) error {
		if err := uow.Orders().Insert(ctx, &order); err != nil {
			return fmt.Errorf("save exit order: %w", err)
		}
		l, err := s.ledger.UpdateTx(ctx, uow, func(l *types.Ledger) error {
			tripped = l.ApplyRealized(pnl)
			return nil
		})
		if err != nil {
			return err
		}
		after = l
		return uow.Positions().Delete(ctx, pos.Symbol)
	})
	if err != nil {
		return Exit{}, fmt.Errorf("exit %s: %w", pos.Symbol, err)
	}
	if tripped {
		ledger.EmitSafeMode(after, "daily loss budget exhausted")
	}

	metrics.OrdersTotal.WithLabelValues(string(side), string(order.Status)).Inc()
	metrics.ExitsTotal.WithLabelValues(reason).Inc()
	logger.InfoEvent("position_exited", map[string]any{
		"symbol":       pos.Symbol,
		"reason":       reason,
		"quantity":     qty,
		"entry_price":  pos.AvgPrice,
		"exit_price":   res.price,
		"realized_pnl": pnl,
	})
	return Exit{
		Symbol:      pos.Symbol,
		Reason:      reason,
		Quantity:    qty,
		EntryPrice:  pos.AvgPrice,
		ExitPrice:   res.price,
		RealizedPnL: pnl,
		OrderID:     order.ID,
	}, nil
}
