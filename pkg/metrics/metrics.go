// Package metrics provides Prometheus metrics for the bridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	UpdatesTotal         *prometheus.CounterVec
	ChunksSentTotal      *prometheus.CounterVec
	SendFallbacksTotal   prometheus.Counter
	PartialFailuresTotal *prometheus.CounterVec
	HistoryReadsTotal    *prometheus.CounterVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatbridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatbridge_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		UpdatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatbridge_updates_total",
				Help: "Webhook updates by outcome",
			},
			[]string{"result"},
		),
		ChunksSentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatbridge_chunks_sent_total",
				Help: "Reply chunks delivered to the Bot API by formatting mode",
			},
			[]string{"mode"},
		),
		SendFallbacksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "chatbridge_send_fallbacks_total",
				Help: "Formatted sends that were retried as plain text",
			},
		),
		PartialFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatbridge_partial_failures_total",
				Help: "Events left half-applied between the Bot API and the message log",
			},
			[]string{"stage"},
		),
		HistoryReadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatbridge_history_reads_total",
				Help: "History reads by cache outcome",
			},
			[]string{"source"},
		),
	}
}

func (m *Metrics) ObserveUpdate(result string) {
	if m == nil {
		return
	}
	m.UpdatesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveChunkSent(mode string) {
	if m == nil {
		return
	}
	m.ChunksSentTotal.WithLabelValues(mode).Inc()
}

func (m *Metrics) ObserveSendFallback() {
	if m == nil {
		return
	}
	m.SendFallbacksTotal.Inc()
}

func (m *Metrics) ObservePartialFailure(stage string) {
	if m == nil {
		return
	}
	m.PartialFailuresTotal.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveHistoryRead(source string) {
	if m == nil {
		return
	}
	m.HistoryReadsTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(seconds)
}
