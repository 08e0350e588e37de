package store

import (
	"context"
	"errors"
	"fmt"

	"daybot/internal/types"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("store: not found")

// UnitOfWork defines a transaction scope.
type UnitOfWork interface {
	// Commit commits the transaction.
	Commit() error
	// Rollback rolls back the transaction.
	Rollback() error

	Positions() PositionRepository
	Ledgers() LedgerRepository
	Proposals() ProposalRepository
	Decisions() DecisionRepository
	Orders() OrderRepository
	Snapshots() SnapshotRepository
}

// Store is the entry point for database access.
type Store interface {
	// Begin starts a new UnitOfWork (transaction).
	Begin(ctx context.Context) (UnitOfWork, error)
	// Close closes the store connection.
	Close() error
}

// PositionRepository keeps at most one open position per symbol.
type PositionRepository interface {
	Upsert(ctx context.Context, pos types.Position) error
	Get(ctx context.Context, symbol string) (types.Position, error)
	List(ctx context.Context) ([]types.Position, error)
	Delete(ctx context.Context, symbol string) error
}

// LedgerRepository persists one risk ledger per trading date.
type LedgerRepository interface {
	Get(ctx context.Context, date string) (types.Ledger, error)
	// GetOrCreate returns the ledger for seed.Date, inserting seed when absent.
	GetOrCreate(ctx context.Context, seed types.Ledger) (types.Ledger, error)
	Save(ctx context.Context, ledger types.Ledger) error
}

// ProposalRepository is append-only except for the status column.
type ProposalRepository interface {
	Insert(ctx context.Context, p *types.Proposal) error
	Get(ctx context.Context, id int64) (types.Proposal, error)
	UpdateStatus(ctx context.Context, id int64, status types.ProposalStatus) error
	ListRecent(ctx context.Context, limit int) ([]types.Proposal, error)
}

// DecisionRepository is append-only except for the HITL status column.
type DecisionRepository interface {
	Insert(ctx context.Context, d *types.Decision) error
	Get(ctx context.Context, id int64) (types.Decision, error)
	UpdateHITLStatus(ctx context.Context, id int64, status types.HITLStatus) error
	ListPendingHITL(ctx context.Context) ([]types.Decision, error)
	ListRecent(ctx context.Context, limit int) ([]types.Decision, error)
}

type OrderRepository interface {
	Insert(ctx context.Context, o *types.Order) error
	ListRecent(ctx context.Context, limit int) ([]types.Order, error)
}

type SnapshotRepository interface {
	Insert(ctx context.Context, s *types.MarketSnapshot) error
	ListRecent(ctx context.Context, symbol string, limit int) ([]types.MarketSnapshot, error)
}

// Do runs fn inside one unit of work and commits when fn succeeds.
func Do(ctx context.Context, s Store, fn func(UnitOfWork) error) error {
	uow, err := s.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer uow.Rollback()
	if err := fn(uow); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
