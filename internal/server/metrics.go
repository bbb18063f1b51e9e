package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared by the TCP and HTTP front ends.
type Metrics struct {
	// OperationsTotal counts document operations by operation and outcome.
	OperationsTotal *prometheus.CounterVec
	// OperationDuration is the latency of document operations.
	OperationDuration *prometheus.HistogramVec
	// QueryResults is the number of documents a find returned.
	QueryResults prometheus.Histogram
	// ActiveConnections is the number of open TCP connections.
	ActiveConnections prometheus.Gauge
	// RequestTotal counts HTTP requests by method, route and status.
	RequestTotal *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fawldb_operations_total",
				Help: "Total number of document operations",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fawldb_operation_duration_seconds",
				Help:    "Document operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		QueryResults: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fawldb_query_results",
				Help:    "Number of documents returned by find",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		ActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fawldb_active_connections",
				Help: "Number of open TCP connections",
			},
		),
		RequestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fawldb_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
	}
}

func (m *Metrics) observe(operation string, status string, seconds float64) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(seconds)
}
