package livehttp

import (
	"context"

	"daybot/internal/agent"
	"daybot/internal/executor/paper"
	"daybot/internal/hitl"
	"daybot/internal/types"
)

// Controls is everything the live API reads from or drives on the engine.
type Controls interface {
	TriggerSafeMode(ctx context.Context, reason string) (types.Ledger, error)
	ResetDay(ctx context.Context) (types.Ledger, error)
	FlattenAll(ctx context.Context, reason string) ([]paper.Exit, error)

	ListPending(ctx context.Context) ([]hitl.Item, error)
	Approve(ctx context.Context, decisionID int64) (hitl.Result, error)
	Reject(ctx context.Context, decisionID int64) (hitl.Result, error)
	ApproveNext(ctx context.Context) (hitl.Result, error)

	Ledger(ctx context.Context) (types.Ledger, error)
	Positions(ctx context.Context) ([]types.Position, error)
	RecentOrders(ctx context.Context, limit int) ([]types.Order, error)
	RecentDecisions(ctx context.Context, limit int) ([]types.Decision, error)
	RecentProposals(ctx context.Context, limit int) ([]types.Proposal, error)
	PnL(ctx context.Context) (agent.PnLSummary, error)
}

type reasonRequest struct {
	Reason string `json:"reason" form:"reason"`
}

type flattenResponse struct {
	Reason string       `json:"reason"`
	Count  int          `json:"count"`
	Exits  []paper.Exit `json:"exits"`
}

type hitlResponse struct {
	Decision types.Decision `json:"decision"`
	Proposal types.Proposal `json:"proposal"`
	Order    *types.Order   `json:"order,omitempty"`
}

func toHITLResponse(res hitl.Result) hitlResponse {
	return hitlResponse{Decision: res.Decision, Proposal: res.Proposal, Order: res.Order}
}
