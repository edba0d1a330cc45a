// Package metrics exposes Prometheus counters for backtest runs and sweeps.
package metrics

import (
	"net/http"
	"time"

	"cryptobacktest/internal/engine"
	"cryptobacktest/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds the collectors on their own registry so tests and sweeps never collide
// with the default one. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal   *prometheus.CounterVec // labels: strategy, status
	TradesTotal *prometheus.CounterVec // labels: strategy, side
	RunDuration prometheus.Histogram
	ReturnPct   *prometheus.GaugeVec // labels: strategy
}

// NewMetrics registers and returns all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_runs_total",
			Help: "Completed backtest runs by strategy and outcome",
		}, []string{"strategy", "status"}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_trades_total",
			Help: "Executed trades by strategy and side",
		}, []string{"strategy", "side"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "backtest_run_duration_seconds",
			Help:    "Wall time of a single backtest run",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
		ReturnPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "backtest_return_pct",
			Help: "Return of the latest run in percent",
		}, []string{"strategy"}),
	}

	m.registry.MustRegister(
		m.RunsTotal,
		m.TradesTotal,
		m.RunDuration,
		m.ReturnPct,
	)
	return m
}

// ObserveRun records one finished run. result may be nil when err is set.
func (m *Metrics) ObserveRun(strategy string, elapsed time.Duration, result *engine.Result, err error) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(elapsed.Seconds())
	if err != nil || result == nil {
		m.RunsTotal.WithLabelValues(strategy, StatusError).Inc()
		return
	}
	m.RunsTotal.WithLabelValues(strategy, StatusOK).Inc()

	var buys, sells int
	for _, t := range result.Trades {
		if t.Side == types.SideTypeBuy {
			buys++
		} else {
			sells++
		}
	}
	m.TradesTotal.WithLabelValues(strategy, string(types.SideTypeBuy)).Add(float64(buys))
	m.TradesTotal.WithLabelValues(strategy, string(types.SideTypeSell)).Add(float64(sells))
	m.ReturnPct.WithLabelValues(strategy).Set(result.ReturnPct.InexactFloat64())
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
