// Package metrics provides Prometheus instrumentation for daybot.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"daybot/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CyclesTotal counts scheduler ticks by outcome.
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "daybot_cycles_total",
		Help: "Scheduler ticks by outcome",
	}, []string{"outcome"})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "daybot_cycle_duration_seconds",
		Help:    "Wall time spent in one scheduler tick",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// ProposalsTotal counts proposals by strategy and final status.
	ProposalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "daybot_proposals_total",
		Help: "Trade proposals by strategy and status",
	}, []string{"strategy", "status"})

	// GuardrailRejections counts rejections by the flag that decided them.
	GuardrailRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "daybot_guardrail_rejections_total",
		Help: "Proposals rejected by guardrail flag",
	}, []string{"flag"})

	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "daybot_orders_total",
		Help: "Simulated orders by side and status",
	}, []string{"side", "status"})

	ExitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "daybot_exits_total",
		Help: "Position exits by reason",
	}, []string{"reason"})

	RealizedPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "daybot_realized_pnl",
		Help: "Realized PnL for the live trading day",
	})

	UnrealizedPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "daybot_unrealized_pnl",
		Help: "Unrealized PnL across open positions",
	})

	RemainingBudget = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "daybot_loss_budget_remaining",
		Help: "Remaining daily loss budget",
	})

	SafeMode = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "daybot_safe_mode",
		Help: "1 when safe mode is latched for the day",
	})

	TradesToday = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "daybot_trades_today",
		Help: "Filled entries counted against the daily trade limit",
	})

	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "daybot_open_positions",
		Help: "Number of open paper positions",
	})

	// MarketCalls counts market data calls by operation and result.
	MarketCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "daybot_market_calls_total",
		Help: "Market data calls by operation and result",
	}, []string{"op", "result"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "daybot_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "daybot_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// ObserveLedger mirrors the ledger into the gauges.
func ObserveLedger(l types.Ledger) {
	RealizedPnL.Set(l.RealizedPnL)
	UnrealizedPnL.Set(l.UnrealizedPnL)
	RemainingBudget.Set(l.RemainingBudget)
	TradesToday.Set(float64(l.TradesCount))
	if l.SafeMode {
		SafeMode.Set(1)
	} else {
		SafeMode.Set(0)
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// GinMiddleware records request metrics. The route pattern is used as the
// path label to keep cardinality bounded.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
