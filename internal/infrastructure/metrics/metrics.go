// Package metrics provides the prometheus collectors of the service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"foodcoop/internal/domain/orders"
)

const namespace = "foodcoop"

// TransitionMetrics implements orders.TransitionObserver.
type TransitionMetrics struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewTransitionMetrics registers the lifecycle collectors with reg.
func NewTransitionMetrics(reg prometheus.Registerer) *TransitionMetrics {
	m := &TransitionMetrics{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Order lifecycle transitions by outcome (ok or error code).",
		}, []string{"transition", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_transition_duration_seconds",
			Help:      "Duration of order lifecycle transitions.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"transition"}),
	}
	reg.MustRegister(m.total, m.duration)
	return m
}

// ObserveTransition implements orders.TransitionObserver.
func (m *TransitionMetrics) ObserveTransition(t orders.Transition, outcome string, elapsed time.Duration) {
	m.total.WithLabelValues(string(t), outcome).Inc()
	m.duration.WithLabelValues(string(t)).Observe(elapsed.Seconds())
}

// HTTPMetrics counts and times HTTP requests by route template.
type HTTPMetrics struct {
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
}

// NewHTTPMetrics registers the HTTP collectors with reg.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "route", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	reg.MustRegister(requests, latency)
	return &HTTPMetrics{Requests: requests, Latency: latency}
}

// Handler exposes the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
