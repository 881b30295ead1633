package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "staffing"

// Metrics owns a private registry so that tests can build as many
// instances as they like. All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	transitions  *prometheus.CounterVec
	payments     *prometheus.CounterVec
	paymentTotal prometheus.Counter
	provisioning *prometheus.CounterVec
	reconcile    *prometheus.CounterVec
	reconcileDur prometheus.Histogram
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "applications",
			Name:      "transitions_total",
			Help:      "Application transitions by source state, target state and outcome.",
		}, []string{"from", "to", "outcome"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "payments_total",
			Help:      "Payment recording attempts by outcome.",
		}, []string{"outcome"}),
		paymentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "payment_amount_total",
			Help:      "Sum of recorded payment amounts.",
		}),
		provisioning: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provisioning",
			Name:      "runs_total",
			Help:      "Employee provisioning runs by result (created, merged, failed).",
		}, []string{"result"}),
		reconcile: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "items_total",
			Help:      "Reconciled applications by kind and outcome.",
		}, []string{"kind", "outcome"}),
		reconcileDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "run_duration_seconds",
			Help:      "Duration of reconcile runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		m.transitions,
		m.payments,
		m.paymentTotal,
		m.provisioning,
		m.reconcile,
		m.reconcileDur,
		m.httpRequests,
		m.httpDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Transition(from, to, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to, outcome).Inc()
}

func (m *Metrics) Payment(outcome string, amount float64) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(outcome).Inc()
	if amount > 0 {
		m.paymentTotal.Add(amount)
	}
}

func (m *Metrics) Provisioning(result string) {
	if m == nil {
		return
	}
	m.provisioning.WithLabelValues(result).Inc()
}

func (m *Metrics) Reconciled(kind, outcome string) {
	if m == nil {
		return
	}
	m.reconcile.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ReconcileRun(d time.Duration) {
	if m == nil {
		return
	}
	m.reconcileDur.Observe(d.Seconds())
}

func (m *Metrics) HTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
