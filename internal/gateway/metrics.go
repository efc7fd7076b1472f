package gateway

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private Prometheus registry for the proxy's counters and
// histograms, served at /metrics alongside the JSON /status endpoint.
type Metrics struct {
	registry *prometheus.Registry

	healthScore      *prometheus.GaugeVec
	rateLimitCurrent *prometheus.GaugeVec
	requestsTotal    *prometheus.CounterVec
	dispatchDuration prometheus.Histogram
}

// NewMetrics registers the counters/gauges/histogram named in
// SPEC_FULL.md §4.14 against a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		healthScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "autoproxy_provider_health_score",
			Help: "Current 0-100 health score per provider.",
		}, []string{"provider"}),
		rateLimitCurrent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "autoproxy_provider_rate_limit_current",
			Help: "Requests counted in the current 60s window per provider.",
		}, []string{"provider"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoproxy_provider_requests_total",
			Help: "Total dispatch attempts per provider, labeled by outcome.",
		}, []string{"provider", "outcome"}),
		dispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "autoproxy_dispatch_duration_seconds",
			Help:    "End-to-end dispatch latency, from inbound accept to relay.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(m.healthScore, m.rateLimitCurrent, m.requestsTotal, m.dispatchDuration)
	return m
}

// Handler returns the HTTP handler that serves this registry's exposition.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveDispatch records one end-to-end dispatch latency sample.
func (m *Metrics) ObserveDispatch(d time.Duration) {
	m.dispatchDuration.Observe(d.Seconds())
}

// ObserveOutcome records one attempt outcome for provider.
func (m *Metrics) ObserveOutcome(provider, outcome string) {
	m.requestsTotal.WithLabelValues(provider, outcome).Inc()
}

// SetGauges updates the per-provider gauges from a snapshot pair. Called on
// each /status or /api/providers read so Prometheus scrapes stay current
// without a separate polling goroutine.
func (m *Metrics) SetGauges(provider string, healthScore, rateLimitCurrent int) {
	m.healthScore.WithLabelValues(provider).Set(float64(healthScore))
	m.rateLimitCurrent.WithLabelValues(provider).Set(float64(rateLimitCurrent))
}
