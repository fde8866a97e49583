// Package metrics exposes Prometheus counters for the signal engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SignalsEvaluated counts pipeline evaluations by resulting direction.
	SignalsEvaluated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smc",
		Name:      "signals_evaluated_total",
		Help:      "Signals produced by the pipeline, labelled by direction.",
	}, []string{"direction"})

	// BacktestJobs counts backtest jobs by final state.
	BacktestJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smc",
		Name:      "backtest_jobs_total",
		Help:      "Backtest jobs by outcome.",
	}, []string{"state"})

	// BacktestWindows counts processed walk-forward windows.
	BacktestWindows = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "smc",
		Name:      "backtest_windows_total",
		Help:      "Walk-forward windows processed.",
	})

	// BacktestTrades counts simulated trades.
	BacktestTrades = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "smc",
		Name:      "backtest_trades_total",
		Help:      "Trades simulated across all backtests.",
	})

	// CandleFetchErrors counts store read failures.
	CandleFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "smc",
		Name:      "candle_fetch_errors_total",
		Help:      "Failed candle loads from the store.",
	})
)

// Handler returns the /metrics scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
