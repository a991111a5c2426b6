package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the signup gateway. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	SubscribeRequestsTotal  *prometheus.CounterVec
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec
	HealthChecksTotal       *prometheus.CounterVec

	registry *prometheus.Registry
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		SubscribeRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signup_subscribe_requests_total",
				Help: "Subscribe requests by outcome",
			},
			[]string{"outcome"},
		),
		ProviderRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signup_provider_requests_total",
				Help: "Calls to the mailing list provider by operation and result",
			},
			[]string{"operation", "result"},
		),
		ProviderRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signup_provider_request_duration_seconds",
				Help:    "Mailing list provider call latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		HealthChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signup_health_check_total",
				Help: "Provider health verifications by source",
			},
			[]string{"source"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.SubscribeRequestsTotal,
		m.ProviderRequestsTotal,
		m.ProviderRequestDuration,
		m.HealthChecksTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveSubscribe(outcome string) {
	if m == nil {
		return
	}
	m.SubscribeRequestsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveProvider(operation, result string, seconds float64) {
	if m == nil {
		return
	}
	m.ProviderRequestsTotal.WithLabelValues(operation, result).Inc()
	m.ProviderRequestDuration.WithLabelValues(operation).Observe(seconds)
}

// ObserveHealthCheck records whether a verification came from the cache or
// from a live provider call.
func (m *Metrics) ObserveHealthCheck(source string) {
	if m == nil {
		return
	}
	m.HealthChecksTotal.WithLabelValues(source).Inc()
}
