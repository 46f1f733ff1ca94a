package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the event stream mirror.
type Metrics struct {
	Published           prometheus.Counter
	Dropped             *prometheus.CounterVec
	CircuitBreakerState prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		Published: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberverify_stream_published_total",
			Help: "Total number of records mirrored to the event stream",
		}),
		Dropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "memberverify_stream_dropped_total",
			Help: "Total number of records dropped before reaching the event stream",
		}, []string{"reason"}),
		CircuitBreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "memberverify_stream_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}),
	}
}

func (m *Metrics) IncPublished() {
	m.Published.Inc()
}

func (m *Metrics) IncDropped(reason string) {
	m.Dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetCircuitBreakerState(open bool) {
	if open {
		m.CircuitBreakerState.Set(1)
	} else {
		m.CircuitBreakerState.Set(0)
	}
}
