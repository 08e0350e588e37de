// Package hitl holds the human sign-off queue for decisions the guardrails
// approved but flagged for review.
package hitl

import (
	"context"
	"errors"
	"fmt"

	"daybot/internal/ledger"
	"daybot/internal/logger"
	"daybot/internal/store"
	"daybot/internal/types"
)

// ErrNotPending is returned when a decision is not awaiting sign-off.
var ErrNotPending = errors.New("hitl: decision is not pending")

// Executor runs an approved proposal.
type Executor interface {
	Execute(ctx context.Context, p types.Proposal, d types.Decision) (*types.Order, error)
}

// Item pairs a pending decision with the proposal it judged.
type Item struct {
	Decision types.Decision `json:"decision"`
	Proposal types.Proposal `json:"proposal"`
}

// Result is the outcome of a sign-off. Order is set when the approved
// proposal was sent to the simulator and produced an order.
type Result struct {
	Item
	Order *types.Order `json:"order,omitempty"`
}

type Service struct {
	store  store.Store
	ledger *ledger.Service
	exec   Executor
}

// NewService builds the queue. A nil exec leaves approved proposals for the
// operator to act on; otherwise approval executes them without re-running
// guardrails.
func NewService(st store.Store, led *ledger.Service, exec Executor) *Service {
	return &Service{store: st, ledger: led, exec: exec}
}

func (s *Service) ListPending(ctx context.Context) ([]Item, error) {
	var items []Item
	err := store.Do(ctx, s.store, func(uow store.UnitOfWork) error {
		decisions, err := uow.Decisions().ListPendingHITL(ctx)
		if err != nil {
			return err
		}
		items = make([]Item, 0, len(decisions))
		for _, d := range decisions {
			p, err := uow.Proposals().Get(ctx, d.ProposalID)
			if err != nil {
				return fmt.Errorf("proposal %d for decision %d: %w", d.ProposalID, d.ID, err)
			}
			items = append(items, Item{Decision: d, Proposal: p})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list pending hitl: %w", err)
	}
	return items, nil
}

func (s *Service) Approve(ctx context.Context, decisionID int64) (Result, error) {
	item, err := s.resolve(ctx, decisionID, types.HITLApproved, types.ProposalHITLApproved, 1)
	if err != nil {
		return Result{}, err
	}
	res := Result{Item: item}
	logger.InfoEvent("hitl_approved", map[string]any{
		"decision_id": decisionID,
		"symbol":      item.Proposal.Symbol,
		"strategy":    string(item.Proposal.StrategyID),
	})
	if s.exec == nil {
		return res, nil
	}

	order, err := s.exec.Execute(ctx, item.Proposal, item.Decision)
	if err != nil {
		return res, fmt.Errorf("execute approved proposal %d: %w", item.Proposal.ID, err)
	}
	status := types.ProposalExecuted
	if order == nil || !order.Filled() {
		status = types.ProposalExecutionFailed
	}
	if err := store.Do(ctx, s.store, func(uow store.UnitOfWork) error {
		return uow.Proposals().UpdateStatus(ctx, item.Proposal.ID, status)
	}); err != nil {
		return res, fmt.Errorf("mark proposal %d %s: %w", item.Proposal.ID, status, err)
	}
	res.Proposal.Status = status
	res.Order = order
	return res, nil
}

func (s *Service) Reject(ctx context.Context, decisionID int64) (Result, error) {
	item, err := s.resolve(ctx, decisionID, types.HITLRejected, types.ProposalHITLRejected, 0)
	if err != nil {
		return Result{}, err
	}
	logger.InfoEvent("hitl_rejected", map[string]any{
		"decision_id": decisionID,
		"symbol":      item.Proposal.Symbol,
		"strategy":    string(item.Proposal.StrategyID),
	})
	return Result{Item: item}, nil
}

// resolve moves a pending decision to its final HITL status, updates the
// proposal and the ledger counters in one transaction.
func (s *Service) resolve(ctx context.Context, decisionID int64, to types.HITLStatus, proposalStatus types.ProposalStatus, approvedDelta int) (Item, error) {
	var item Item
	err := store.Do(ctx, s.store, func(uow store.UnitOfWork) error {
		d, err := uow.Decisions().Get(ctx, decisionID)
		if err != nil {
			return fmt.Errorf("decision %d: %w", decisionID, err)
		}
		if d.HITLStatus != types.HITLPending {
			return fmt.Errorf("decision %d is %q: %w", decisionID, d.HITLStatus, ErrNotPending)
		}
		p, err := uow.Proposals().Get(ctx, d.ProposalID)
		if err != nil {
			return fmt.Errorf("proposal %d: %w", d.ProposalID, err)
		}
		if err := uow.Decisions().UpdateHITLStatus(ctx, d.ID, to); err != nil {
			return err
		}
		if err := uow.Proposals().UpdateStatus(ctx, p.ID, proposalStatus); err != nil {
			return err
		}
		if _, err := s.ledger.UpdateTx(ctx, uow, func(l *types.Ledger) error {
			l.HITLPending = max(0, l.HITLPending-1)
			l.HITLApproved += approvedDelta
			return nil
		}); err != nil {
			return err
		}
		d.HITLStatus = to
		p.Status = proposalStatus
		item = Item{Decision: d, Proposal: p}
		return nil
	})
	return item, err
}
