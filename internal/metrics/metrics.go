// Package metrics exposes Prometheus instrumentation for backtest and optimizer runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run kinds and outcomes used as label values.
const (
	KindBacktest = "backtest"
	KindOptimize = "optimize"

	ResultOK      = "ok"
	ResultError   = "error"
	ResultPartial = "partial"
)

// Registry holds every collector the service exports.
type Registry struct {
	reg *prometheus.Registry

	Runs          *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
	CacheLookups  *prometheus.CounterVec
	FetchFailures *prometheus.CounterVec
	ReturnPercent *prometheus.GaugeVec
	OptimalStop   *prometheus.GaugeVec
}

// New builds a registry with the Go and process collectors plus the service metrics.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wyckoff_runs_total",
			Help: "Symbol runs by kind and result",
		}, []string{"kind", "result"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wyckoff_run_duration_seconds",
			Help:    "Wall time of one symbol run",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wyckoff_cache_lookups_total",
			Help: "Report cache lookups by kind and outcome",
		}, []string{"kind", "result"}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wyckoff_fetch_failures_total",
			Help: "Bar fetch failures by provider",
		}, []string{"provider"}),
		ReturnPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wyckoff_return_percent",
			Help: "Total return of the latest backtest per symbol",
		}, []string{"symbol"}),
		OptimalStop: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wyckoff_optimal_stop_loss",
			Help: "Overall optimal stop-loss fraction of the latest optimization per symbol",
		}, []string{"symbol"}),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.Runs, r.RunDuration, r.CacheLookups, r.FetchFailures, r.ReturnPercent, r.OptimalStop,
	)
	return r
}

// ObserveRun records the outcome and duration of a run that started at start.
func (r *Registry) ObserveRun(kind, result string, start time.Time) {
	r.Runs.WithLabelValues(kind, result).Inc()
	r.RunDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func (r *Registry) CacheHit(kind string)  { r.CacheLookups.WithLabelValues(kind, "hit").Inc() }
func (r *Registry) CacheMiss(kind string) { r.CacheLookups.WithLabelValues(kind, "miss").Inc() }

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
