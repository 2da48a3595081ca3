package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "xcelerator"

// Registry holds every Prometheus collector of the process.
// A nil *Registry is valid and records nothing.
// ⭐ SSOT: metric names are declared only here
type Registry struct {
	reg *prometheus.Registry

	StepDuration *prometheus.HistogramVec
	Runs         *prometheus.CounterVec
	Orders       *prometheus.CounterVec
	MarketStrong prometheus.Gauge
	Holdings     prometheus.Gauge
	PlanCapital  *prometheus.GaugeVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates a registry with process and Go runtime collectors
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of each live rebalance step in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"step", "result"},
		),

		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rebalance_runs_total",
				Help:      "Live rebalance runs by mode and plan status",
			},
			[]string{"mode", "status"},
		),

		Orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_total",
				Help:      "Broker orders by action and result",
			},
			[]string{"action", "result"},
		),

		MarketStrong: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "market_strong",
				Help:      "Regime at the last run (1=strong, 0=weak)",
			},
		),

		Holdings: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "holdings",
				Help:      "Number of broker holdings at the last run",
			},
		),

		PlanCapital: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "plan_capital_rupees",
				Help:      "Capital figures of the last plan",
			},
			[]string{"field"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "API requests by route and status code",
			},
			[]string{"route", "code"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "API request latency by route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.StepDuration,
		r.Runs,
		r.Orders,
		r.MarketStrong,
		r.Holdings,
		r.PlanCapital,
		r.HTTPRequests,
		r.HTTPDuration,
	)

	return r
}

// Handler serves the registry in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// StepTimer times one step
type StepTimer struct {
	registry *Registry
	step     string
	start    time.Time
}

// StartStep begins timing a step
func (r *Registry) StartStep(step string) *StepTimer {
	return &StepTimer{registry: r, step: step, start: time.Now()}
}

// Stop records the step duration with result "ok" or "error"
func (t *StepTimer) Stop(err error) {
	if t.registry == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	t.registry.StepDuration.WithLabelValues(t.step, result).Observe(time.Since(t.start).Seconds())
}

// RecordRun counts a run; status is the plan status, "NO_CHANGE" or "ERROR"
func (r *Registry) RecordRun(execute bool, status string) {
	if r == nil {
		return
	}
	mode := "dry_run"
	if execute {
		mode = "execute"
	}
	r.Runs.WithLabelValues(mode, status).Inc()
}

// RecordOrder counts one broker order
func (r *Registry) RecordOrder(action string, placed bool) {
	if r == nil {
		return
	}
	result := "placed"
	if !placed {
		result = "rejected"
	}
	r.Orders.WithLabelValues(action, result).Inc()
}

// RecordState sets the regime and holdings gauges
func (r *Registry) RecordState(strong bool, holdings int) {
	if r == nil {
		return
	}
	v := 0.0
	if strong {
		v = 1
	}
	r.MarketStrong.Set(v)
	r.Holdings.Set(float64(holdings))
}

// RecordCapital sets the plan capital gauges
func (r *Registry) RecordCapital(freed, reserved, usable, unspent float64) {
	if r == nil {
		return
	}
	r.PlanCapital.WithLabelValues("freed").Set(freed)
	r.PlanCapital.WithLabelValues("reserved").Set(reserved)
	r.PlanCapital.WithLabelValues("usable").Set(usable)
	r.PlanCapital.WithLabelValues("unspent").Set(unspent)
}

// ObserveHTTP records one API request
func (r *Registry) ObserveHTTP(route string, code int, d time.Duration) {
	if r == nil {
		return
	}
	r.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	r.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}
