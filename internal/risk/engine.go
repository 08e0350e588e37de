// Package risk runs the guardrail battery that decides whether a trade
// proposal may proceed, needs human sign-off, or is rejected.
package risk

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"daybot/internal/ledger"
	"daybot/internal/logger"
	"daybot/internal/metrics"
	"daybot/internal/store"
	"daybot/internal/types"
)

// switchBaseConfidence is the floor a new strategy must clear, before the
// configured improvement margin, to replace the active one.
const switchBaseConfidence = 0.6

// Policy is the guardrail configuration.
type Policy struct {
	PerTradeMaxLossPct      float64
	PerTradeMaxLossAbs      float64
	HITLFirstNTrades        int
	HITLConfidenceThreshold float64
	SwitchCooldown          time.Duration
	SwitchMinImprovement    float64
}

// Universe answers whether an instrument may be traded.
type Universe interface {
	Allowed(symbol string) bool
}

type Engine struct {
	ledger   *ledger.Service
	store    store.Store
	universe Universe
	policy   Policy
	now      func() time.Time
}

func NewEngine(l *ledger.Service, st store.Store, u Universe, policy Policy, nowFn func() time.Time) *Engine {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Engine{ledger: l, store: st, universe: u, policy: policy, now: nowFn}
}

// Approve evaluates p against every guardrail. Rejections come back as a
// decision; an error means the ledger could not be read or written.
func (e *Engine) Approve(ctx context.Context, p types.Proposal) (types.Decision, error) {
	logger.Infof("evaluating proposal: %s %s %s qty=%d", p.StrategyID, p.Side, p.Symbol, p.Quantity)
	if _, err := e.ledger.RotateIfNeeded(ctx); err != nil {
		return types.Decision{}, err
	}
	l, err := e.refreshUnrealized(ctx)
	if err != nil {
		return types.Decision{}, err
	}

	d := types.Decision{
		ProposalID:      p.ID,
		Approved:        true,
		Flags:           make(map[string]any),
		SafeModeActive:  l.SafeMode,
		RemainingBudget: l.RemainingBudget,
		TradesToday:     l.TradesCount,
		ActiveStrategy:  l.ActiveStrategy,
		CreatedAt:       e.now(),
	}

	var hitlReasons []string
	e.checkSafeMode(l, &d)
	e.checkStopLoss(p, &d)
	if err := e.checkLossBudget(ctx, p, l, &d); err != nil {
		return types.Decision{}, err
	}
	maxRisk := e.checkPerTradeRisk(p, l, &d)
	e.checkMaxTrades(l, &d)
	if reason := e.checkStrategySwitch(p, l, &d); reason != "" {
		hitlReasons = append(hitlReasons, reason)
	}
	e.checkSymbol(p, &d)

	if !d.Approved {
		metrics.GuardrailRejections.WithLabelValues(lastFlag(d)).Inc()
		logger.InfoEvent("trade_intent_rejected", map[string]any{
			"symbol":     p.Symbol,
			"strategy":   string(p.StrategyID),
			"reason":     d.RejectionReason,
			"guardrails": d.Flags,
		})
		return d, nil
	}

	hitlReasons = append(hitlReasons, e.hitlReasons(p, l)...)
	if len(hitlReasons) > 0 {
		d.HITLRequired = true
		d.HITLReason = strings.Join(hitlReasons, "; ")
		d.HITLStatus = types.HITLPending
		d.SetFlag(types.FlagHITLRequired, true)
		logger.Infof("HITL approval required: %s", d.HITLReason)
	}
	e.adjustQuantity(p, maxRisk, &d)

	logger.InfoEvent("trade_intent_approved", map[string]any{
		"symbol":        p.Symbol,
		"strategy":      string(p.StrategyID),
		"quantity":      d.Quantity(p),
		"hitl_required": d.HITLRequired,
		"expected_risk": p.ExpectedRisk,
	})
	return d, nil
}

func (e *Engine) refreshUnrealized(ctx context.Context) (types.Ledger, error) {
	var total float64
	err := store.Do(ctx, e.store, func(uow store.UnitOfWork) error {
		positions, err := uow.Positions().List(ctx)
		if err != nil {
			return err
		}
		for _, pos := range positions {
			total += pos.UnrealizedPnL
		}
		return nil
	})
	if err != nil {
		return types.Ledger{}, fmt.Errorf("list positions: %w", err)
	}
	return e.ledger.SetUnrealized(ctx, total)
}

func (e *Engine) checkSafeMode(l types.Ledger, d *types.Decision) {
	if l.SafeMode {
		d.Reject(types.FlagSafeMode, "SAFE_MODE active - max daily loss reached")
		logger.Warnf("trade rejected: SAFE_MODE active")
	}
}

func (e *Engine) checkStopLoss(p types.Proposal, d *types.Decision) {
	stop, ok := p.Stop()
	if !ok {
		d.Reject(types.FlagMissingStopLoss, "Mandatory stop-loss missing")
		logger.Errorf("trade rejected: no stop-loss for %s", p.Symbol)
		return
	}
	switch {
	case p.Side == types.SideBuy && stop >= p.EntryPrice:
		d.Reject(types.FlagInvalidStopLoss, "Stop-loss for BUY must be below entry price")
	case p.Side == types.SideSell && stop <= p.EntryPrice:
		d.Reject(types.FlagInvalidStopLoss, "Stop-loss for SELL must be above entry price")
	default:
		return
	}
	logger.Errorf("trade rejected: stop-loss %.2f on wrong side of %s entry %.2f", stop, p.Side, p.EntryPrice)
}

func (e *Engine) checkLossBudget(ctx context.Context, p types.Proposal, l types.Ledger, d *types.Decision) error {
	if l.RemainingBudget <= 0 {
		d.Reject(types.FlagLossBudgetExhausted, fmt.Sprintf("Daily loss budget exhausted (%.2f remaining)", l.RemainingBudget))
		if !l.SafeMode {
			if _, err := e.ledger.TripSafeMode(ctx, "loss_budget_exhausted"); err != nil {
				return err
			}
		}
		d.SafeModeActive = true
		return nil
	}
	if p.ExpectedRisk > l.RemainingBudget {
		d.Reject(types.FlagRiskExceedsBudget, fmt.Sprintf("Trade risk (%.2f) exceeds remaining budget (%.2f)", p.ExpectedRisk, l.RemainingBudget))
	}
	return nil
}

// checkPerTradeRisk returns the per-trade cap used later to size the order.
func (e *Engine) checkPerTradeRisk(p types.Proposal, l types.Ledger, d *types.Decision) float64 {
	maxRisk := l.RemainingBudget * e.policy.PerTradeMaxLossPct / 100
	if e.policy.PerTradeMaxLossAbs > 0 {
		maxRisk = math.Min(maxRisk, e.policy.PerTradeMaxLossAbs)
	}
	if p.ExpectedRisk > maxRisk {
		d.Reject(types.FlagPerTradeRiskExceeded, fmt.Sprintf(
			"Per-trade risk (%.2f) exceeds limit (%.2f) of remaining budget (%.2f)",
			p.ExpectedRisk, maxRisk, l.RemainingBudget))
		return maxRisk
	}
	d.SetFlag(types.FlagMaxRiskPerTrade, maxRisk)
	return maxRisk
}

func (e *Engine) checkMaxTrades(l types.Ledger, d *types.Decision) {
	if l.TradesCount >= l.MaxTrades {
		d.Reject(types.FlagMaxTradesReached, fmt.Sprintf("Max trades per day (%d) reached", l.MaxTrades))
	}
}

// checkStrategySwitch returns a HITL reason when a permitted switch needs sign-off.
func (e *Engine) checkStrategySwitch(p types.Proposal, l types.Ledger, d *types.Decision) string {
	current := l.ActiveStrategy
	if current == "" || current == p.StrategyID {
		return ""
	}
	logger.Infof("strategy switch detected: %s -> %s", current, p.StrategyID)
	if l.StrategySwitchedAt != nil {
		since := e.now().Sub(*l.StrategySwitchedAt)
		if since < e.policy.SwitchCooldown {
			remaining := e.policy.SwitchCooldown - since
			d.Reject(types.FlagStrategySwitchCooldown, fmt.Sprintf("Strategy switch cooldown active (%d min remaining)", int(remaining.Minutes())))
			return ""
		}
	}
	need := switchBaseConfidence + e.policy.SwitchMinImprovement
	if p.Confidence < need {
		d.Reject(types.FlagStrategySwitchConfidenceLow, fmt.Sprintf("Strategy switch requires confidence >= %.2f", need))
		return ""
	}
	d.SetFlag(types.FlagStrategySwitch, true)
	return fmt.Sprintf("Strategy switch: %s -> %s", current, p.StrategyID)
}

func (e *Engine) checkSymbol(p types.Proposal, d *types.Decision) {
	if e.universe == nil || !e.universe.Allowed(p.Symbol) {
		d.Reject(types.FlagInvalidSymbol, fmt.Sprintf("Symbol %s not in allowed trading list", p.Symbol))
	}
}

func (e *Engine) hitlReasons(p types.Proposal, l types.Ledger) []string {
	var out []string
	if l.TradesCount < e.policy.HITLFirstNTrades {
		out = append(out, fmt.Sprintf("First %d trades require approval (trade #%d)", e.policy.HITLFirstNTrades, l.TradesCount+1))
	}
	if p.Confidence < e.policy.HITLConfidenceThreshold {
		out = append(out, fmt.Sprintf("Low confidence (%.2f < %.2f)", p.Confidence, e.policy.HITLConfidenceThreshold))
	}
	return out
}

// adjustQuantity shrinks the order so its stop distance fits within maxRisk.
// It never grows the quantity and never goes below one unit.
func (e *Engine) adjustQuantity(p types.Proposal, maxRisk float64, d *types.Decision) {
	stop, ok := p.Stop()
	if !ok {
		return
	}
	perUnit := math.Abs(p.EntryPrice - stop)
	if p.EntryPrice == 0 {
		perUnit = math.Abs(stop * 0.01)
	}
	if perUnit <= 0 {
		return
	}
	maxQty := int(maxRisk / perUnit)
	if maxQty < p.Quantity {
		d.AdjustedQuantity = max(1, maxQty)
		d.SetFlag(types.FlagQuantityAdjusted, true)
		logger.Infof("quantity adjusted: %d -> %d (risk limit %.2f)", p.Quantity, d.AdjustedQuantity, maxRisk)
	}
}

var flagOrder = []string{
	types.FlagInvalidSymbol,
	types.FlagStrategySwitchConfidenceLow,
	types.FlagStrategySwitchCooldown,
	types.FlagMaxTradesReached,
	types.FlagPerTradeRiskExceeded,
	types.FlagRiskExceedsBudget,
	types.FlagLossBudgetExhausted,
	types.FlagInvalidStopLoss,
	types.FlagMissingStopLoss,
	types.FlagSafeMode,
}

// lastFlag names the rejection flag matching the winning reason.
func lastFlag(d types.Decision) string {
	for _, f := range flagOrder {
		if d.HasFlag(f) {
			return f
		}
	}
	return "unknown"
}
