package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Виды запросов к провайдеру
const (
	KindChat  = "chat"
	KindImage = "image"
)

// Metrics — счётчики обращений к провайдеру и предупреждений по результатам.
type Metrics struct {
	registry         *prometheus.Registry
	providerRequests *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	imageWarnings    prometheus.Counter
	activeSessions   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_provider_requests_total",
			Help: "Provider calls by kind and outcome.",
		}, []string{"kind", "outcome"}),
		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "studio_provider_request_duration_seconds",
			Help:    "Provider call latency.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}, []string{"kind"}),
		imageWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studio_image_warnings_total",
			Help: "Per-entry warnings raised while rendering image results.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "studio_active_sessions",
			Help: "Sessions currently held in memory.",
		}),
	}
	m.registry.MustRegister(
		m.providerRequests,
		m.providerDuration,
		m.imageWarnings,
		m.activeSessions,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveProvider фиксирует один вызов провайдера.
func (m *Metrics) ObserveProvider(kind string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.providerRequests.WithLabelValues(kind, outcome).Inc()
	m.providerDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}

func (m *Metrics) AddImageWarnings(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.imageWarnings.Add(float64(n))
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
