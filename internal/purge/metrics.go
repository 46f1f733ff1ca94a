package purge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for badge retention purges.
type Metrics struct {
	Runs        *prometheus.CounterVec
	Purged      prometheus.Counter
	Failures    prometheus.Counter
	LastSuccess prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		Runs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "memberverify_purge_runs_total",
			Help: "Total number of artifact purge runs by outcome",
		}, []string{"outcome"}),
		Purged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberverify_purge_artifacts_deleted_total",
			Help: "Total number of badge photos deleted after their retention window",
		}),
		Failures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberverify_purge_item_failures_total",
			Help: "Total number of per-member purge failures",
		}),
		LastSuccess: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "memberverify_purge_last_success_timestamp_seconds",
			Help: "Unix time of the last purge run that listed candidates successfully",
		}),
	}
}

func (m *Metrics) observe(res Result, err error) {
	if err != nil {
		m.Runs.WithLabelValues("failed").Inc()
		return
	}
	m.Runs.WithLabelValues("completed").Inc()
	m.Purged.Add(float64(res.Deleted))
	m.Failures.Add(float64(res.Errors))
	m.LastSuccess.Set(float64(res.Timestamp.Unix()))
}
