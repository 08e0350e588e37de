package strategy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"daybot/internal/gateway/provider"
	"daybot/internal/types"
)

const rationaleSystemPrompt = `You are a professional day trader explaining your trade setup.
Be concise, specific, and focus on key risk/reward factors.
Limit response to 2-3 sentences.`

// Rationale turns a selected setup into a human-readable explanation.
type Rationale interface {
	Explain(ctx context.Context, snap types.MarketSnapshot, score Score, trade Trade) (string, error)
}

// LLMRationale asks a model provider to explain the setup.
type LLMRationale struct {
	Provider    provider.ModelProvider
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

func (r *LLMRationale) Explain(ctx context.Context, snap types.MarketSnapshot, score Score, trade Trade) (string, error) {
	if r == nil || r.Provider == nil || !r.Provider.Enabled() {
		return "", fmt.Errorf("rationale provider unavailable")
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	return r.Provider.Call(ctx, provider.ChatPayload{
		System:      rationaleSystemPrompt,
		User:        rationalePrompt(snap, score, trade),
		Symbol:      snap.Symbol,
		MaxTokens:   r.MaxTokens,
		Temperature: r.Temperature,
	})
}

func rationalePrompt(snap types.MarketSnapshot, score Score, trade Trade) string {
	entry := "at market"
	if trade.Style == types.OrderLimit {
		entry = fmt.Sprintf("limit at ₹%.2f", trade.Entry)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Explain this %s trade setup:\n\n", score.Strategy)
	fmt.Fprintf(&b, "Symbol: %s\n", snap.Symbol)
	fmt.Fprintf(&b, "Current Price: ₹%.2f\n", snap.LastPrice)
	fmt.Fprintf(&b, "VWAP: ₹%.2f\n", snap.VWAP)
	fmt.Fprintf(&b, "Market Regime: %s\n", snap.Regime)
	fmt.Fprintf(&b, "Trend: %s\n\n", snap.TrendDirection)
	fmt.Fprintf(&b, "Trade: %s %s\n", trade.Side, entry)
	fmt.Fprintf(&b, "Stop-Loss: ₹%.2f\n", trade.Stop)
	fmt.Fprintf(&b, "Target: ₹%.2f\n", trade.Target)
	fmt.Fprintf(&b, "Confidence: %.0f%%\n\n", score.Confidence*100)
	fmt.Fprintf(&b, "Strategy Analysis: %s\n\n", score.Rationale)
	b.WriteString("Explain why this trade makes sense and what the key risks are.")
	return b.String()
}
