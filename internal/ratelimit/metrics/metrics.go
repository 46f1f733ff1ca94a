package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Checks   *prometheus.CounterVec
	Rejected *prometheus.CounterVec
	Errors   prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Checks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "memberverify_ratelimit_checks_total",
			Help: "Total number of rate limit checks by namespace",
		}, []string{"namespace"}),
		Rejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "memberverify_ratelimit_rejected_total",
			Help: "Total number of requests rejected by the rate limiter by namespace",
		}, []string{"namespace"}),
		Errors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberverify_ratelimit_store_errors_total",
			Help: "Total number of rate limit store failures",
		}),
	}
}

func (m *Metrics) ObserveCheck(namespace string, allowed bool) {
	m.Checks.WithLabelValues(namespace).Inc()
	if !allowed {
		m.Rejected.WithLabelValues(namespace).Inc()
	}
}

func (m *Metrics) IncrementErrors() {
	m.Errors.Inc()
}
