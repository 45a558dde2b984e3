package loadtest

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes used as the outcome label
const (
	OutcomeSuccess    = "success"
	OutcomeNetwork    = "network_error"
	OutcomeValidation = "validation_error"
)

// Metrics exposes load test progress to Prometheus
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration prometheus.Histogram
	activeUsers     prometheus.Gauge
}

// NewMetrics registers the load test collectors on reg
func NewMetrics(reg prometheus.Registerer) (m *Metrics, err error) {
	// promauto panics on duplicate registration
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("failed to register metrics: %v", r)
		}
	}()

	factory := promauto.With(reg)
	return &Metrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatbench_requests_total",
				Help: "Total number of chat-completion requests sent, by outcome",
			},
			[]string{"outcome"},
		),
		requestDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chatbench_request_duration_seconds",
				Help:    "Chat-completion request duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
		activeUsers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatbench_active_users",
				Help: "Number of simulated users currently running",
			},
		),
	}, nil
}

// RecordRequest records the outcome and duration of one request
func (m *Metrics) RecordRequest(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(outcome).Inc()
	m.requestDuration.Observe(duration.Seconds())
}

// UserStarted increments the active user gauge
func (m *Metrics) UserStarted() {
	if m != nil {
		m.activeUsers.Inc()
	}
}

// UserStopped decrements the active user gauge
func (m *Metrics) UserStopped() {
	if m != nil {
		m.activeUsers.Dec()
	}
}
