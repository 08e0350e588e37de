package app

import (
	"fmt"
	"strings"

	"daybot/internal/config"
	"daybot/internal/types"
	livehttp "daybot/internal/transport/http/live"
)

type StartupSummary struct {
	Env      string
	Mode     string
	Interval string
	Symbols  []string
	Session  SessionSummary
	Risk     RiskSummary
	Ledger   types.Ledger
	Market   string
	LLM      string
	HTTPAddr string
}

type SessionSummary struct {
	Timezone     string
	Start        string
	End          string
	ExitOnlyFrom string
}

type RiskSummary struct {
	MaxDailyLoss       float64
	MaxTrades          int
	PerTradeMaxLossPct float64
	PerTradeMaxLossAbs float64
	HITLFirstN         int
	HITLConfidence     float64
}

func newStartupSummary(cfg *config.Config, symbols []string, l types.Ledger, market string, server *livehttp.Server) *StartupSummary {
	llm := "disabled"
	if cfg.LLM.Enabled {
		llm = fmt.Sprintf("%s (%s)", cfg.LLM.Provider, cfg.LLM.Model)
	}
	addr := "disabled"
	if server != nil {
		addr = server.Addr()
	}
	return &StartupSummary{
		Env:      cfg.App.Env,
		Mode:     cfg.Engine.Mode,
		Interval: cfg.Engine.LoopInterval,
		Symbols:  symbols,
		Session: SessionSummary{
			Timezone:     cfg.Session.Timezone,
			Start:        cfg.Session.Start,
			End:          cfg.Session.End,
			ExitOnlyFrom: cfg.Session.ExitOnlyFrom,
		},
		Risk: RiskSummary{
			MaxDailyLoss:       cfg.Risk.MaxDailyLoss,
			MaxTrades:          cfg.Risk.MaxTradesPerDay,
			PerTradeMaxLossPct: cfg.Risk.PerTradeMaxLossPct,
			PerTradeMaxLossAbs: cfg.Risk.PerTradeMaxLossAbs,
			HITLFirstN:         cfg.Risk.HITLFirstNTrades,
			HITLConfidence:     cfg.Risk.HITLConfidenceThreshold,
		},
		Ledger:   l,
		Market:   market,
		LLM:      llm,
		HTTPAddr: addr,
	}
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	title := "STARTUP SUMMARY"
	fmt.Printf("%*s\n", 40+len(title)/2, title)
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("[ENGINE]")
	fmt.Printf("  Env:        %s\n", s.Env)
	fmt.Printf("  Mode:       %s\n", s.Mode)
	fmt.Printf("  Interval:   %s\n", s.Interval)
	fmt.Printf("  Universe:   %s\n", formatList(s.Symbols))
	fmt.Printf("  Market:     %s\n", s.Market)
	fmt.Printf("  Rationale:  %s\n", s.LLM)
	fmt.Printf("  HTTP:       %s\n", s.HTTPAddr)
	fmt.Println()

	fmt.Println("[SESSION]")
	fmt.Printf("  %s %s-%s, exit-only from %s\n", s.Session.Timezone, s.Session.Start, s.Session.End, s.Session.ExitOnlyFrom)
	fmt.Println()

	fmt.Println("[RISK]")
	fmt.Printf("  Max daily loss:   %.2f\n", s.Risk.MaxDailyLoss)
	fmt.Printf("  Max trades:       %d\n", s.Risk.MaxTrades)
	fmt.Printf("  Per-trade cap:    %.1f%% of budget, %.2f absolute\n", s.Risk.PerTradeMaxLossPct, s.Risk.PerTradeMaxLossAbs)
	fmt.Printf("  HITL:             first %d trades, confidence < %.2f\n", s.Risk.HITLFirstN, s.Risk.HITLConfidence)
	fmt.Println()

	fmt.Println("[LEDGER]")
	fmt.Printf("  Date %s  realized %.2f  budget left %.2f  trades %d/%d  safe mode %v\n",
		s.Ledger.Date, s.Ledger.RealizedPnL, s.Ledger.RemainingBudget, s.Ledger.TradesCount, s.Ledger.MaxTrades, s.Ledger.SafeMode)
	fmt.Println(strings.Repeat("=", 80))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
