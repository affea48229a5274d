package infra

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はサービスのPrometheusメトリクスをまとめる。
type Metrics struct {
	OracleDuration   *prometheus.HistogramVec
	Certifications   *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	RateLimitRejects prometheus.Counter
}

// NewMetrics はメトリクスを生成し、reg に登録する。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OracleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "identity_certifier",
			Name:      "oracle_request_duration_seconds",
			Help:      "Latency of signing oracle requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		Certifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "identity_certifier",
			Name:      "certifications_total",
			Help:      "Certification attempts by outcome.",
		}, []string{"outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "identity_certifier",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "identity_certifier",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RateLimitRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "identity_certifier",
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the per-principal rate limiter.",
		}),
	}
	reg.MustRegister(m.OracleDuration, m.Certifications, m.HTTPRequests, m.HTTPDuration, m.RateLimitRejects)
	return m
}

// ObserveCertification は認証結果を記録する。
func (m *Metrics) ObserveCertification(outcome string) {
	m.Certifications.WithLabelValues(outcome).Inc()
}
