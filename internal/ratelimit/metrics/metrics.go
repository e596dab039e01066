package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ChecksTotal        *prometheus.CounterVec
	DenialsTotal       *prometheus.CounterVec
	StoreFailuresTotal prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		ChecksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "singluten_ratelimit_checks_total",
			Help: "Total number of rate limit checks by bucket and scope",
		}, []string{"bucket", "scope"}),
		DenialsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "singluten_ratelimit_denials_total",
			Help: "Total number of denied rate limit checks by bucket and scope",
		}, []string{"bucket", "scope"}),
		StoreFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "singluten_ratelimit_store_failures_total",
			Help: "Total number of counter store failures during rate limit checks",
		}),
	}
}

func (m *Metrics) IncrementChecks(bucket, scope string) {
	m.ChecksTotal.WithLabelValues(bucket, scope).Inc()
}

func (m *Metrics) IncrementDenials(bucket, scope string) {
	m.DenialsTotal.WithLabelValues(bucket, scope).Inc()
}

func (m *Metrics) IncrementStoreFailures() {
	m.StoreFailuresTotal.Inc()
}
