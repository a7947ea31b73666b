package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics of a dispatch loop.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	ErrorsTotal        *prometheus.CounterVec
	Pending            prometheus.Gauge
	PendingDuration    prometheus.Histogram
	SendFailuresTotal  prometheus.Counter
	EndpointsConnected prometheus.Gauge
}

// NewMetrics creates and registers the dispatch metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_requests_total",
			Help: "Requests dispatched, by outcome (ok, pending, error, resolved, timeout).",
		}, []string{"outcome"}),

		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_errors_total",
			Help: "Error responses sent, by command error code.",
		}, []string{"code"}),

		Pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_pending",
			Help: "Whether a command is currently pending (0 or 1).",
		}),

		PendingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_pending_seconds",
			Help:    "Time from a command going pending to its resolution.",
			Buckets: prometheus.DefBuckets,
		}),

		SendFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_send_failures_total",
			Help: "Responses that could not be delivered to their endpoint.",
		}),

		EndpointsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_endpoints_connected",
			Help: "Server endpoints currently polled by the loop.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.ErrorsTotal,
		m.Pending,
		m.PendingDuration,
		m.SendFailuresTotal,
		m.EndpointsConnected,
	)

	return m
}
