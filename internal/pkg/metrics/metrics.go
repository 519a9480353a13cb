// Package metrics exposes the Prometheus instruments the HTTP layer and the
// payment flows record into.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	PaymentsStarted *prometheus.CounterVec
	PaymentsSettled *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shop_http_requests_total",
			Help: "HTTP requests by method, route pattern and status class.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shop_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		PaymentsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shop_payments_started_total",
			Help: "Gateway sessions opened, by kind (order or batch).",
		}, []string{"kind"}),
		PaymentsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shop_payments_settled_total",
			Help: "Callback outcomes by result (success or failure reason).",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		m.HTTPRequests, m.HTTPDuration,
		m.PaymentsStarted, m.PaymentsSettled,
	)
	return m
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
