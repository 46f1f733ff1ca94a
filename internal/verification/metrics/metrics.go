package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for verification flows.
type Metrics struct {
	MethodsSelected *prometheus.CounterVec
	BadgeUploads    *prometheus.CounterVec
	EmailPoll       *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		MethodsSelected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "memberverify_verification_methods_selected_total",
			Help: "Total number of verification method selections by method",
		}, []string{"method"}),
		BadgeUploads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "memberverify_verification_badge_uploads_total",
			Help: "Total number of badge uploads by outcome",
		}, []string{"outcome"}),
		EmailPoll: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "memberverify_verification_email_messages_total",
			Help: "Total number of inbox messages processed by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncMethodSelected(method string) {
	m.MethodsSelected.WithLabelValues(method).Inc()
}

func (m *Metrics) IncBadgeUpload(outcome string) {
	m.BadgeUploads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncEmailOutcome(outcome string) {
	m.EmailPoll.WithLabelValues(outcome).Inc()
}
