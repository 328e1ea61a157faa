package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions  prometheus.Gauge
	SessionEvents   *prometheus.CounterVec
	RealtimeEvents  *prometheus.CounterVec
	HandoffWrites   *prometheus.CounterVec
	CredentialMints *prometheus.CounterVec
	LLMLatency      *prometheus.HistogramVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active realtime interview sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type.",
		}, []string{"event"}),
		RealtimeEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_events_total",
			Help:      "Control-channel events by kind.",
		}, []string{"kind"}),
		HandoffWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoff_writes_total",
			Help:      "Transcript handoff writes by outcome.",
		}, []string{"outcome"}),
		CredentialMints: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_mints_total",
			Help:      "Ephemeral credential mints by outcome.",
		}, []string{"outcome"}),
		LLMLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_ms",
			Help:      "Latency of chat-completion calls in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 5000, 10000, 20000},
		}, []string{"op"}),
	}
}

// ObserveLLMLatency is nil-safe so library code can run without metrics wired.
func (m *Metrics) ObserveLLMLatency(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.LLMLatency.WithLabelValues(op).Observe(float64(d.Milliseconds()))
}

// CountSessionEvent is nil-safe.
func (m *Metrics) CountSessionEvent(event string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
}

// CountRealtimeEvent is nil-safe.
func (m *Metrics) CountRealtimeEvent(kind string) {
	if m == nil {
		return
	}
	m.RealtimeEvents.WithLabelValues(kind).Inc()
}

// CountHandoff is nil-safe.
func (m *Metrics) CountHandoff(outcome string) {
	if m == nil {
		return
	}
	m.HandoffWrites.WithLabelValues(outcome).Inc()
}

// CountCredentialMint is nil-safe.
func (m *Metrics) CountCredentialMint(outcome string) {
	if m == nil {
		return
	}
	m.CredentialMints.WithLabelValues(outcome).Inc()
}

// SetActiveSessions is nil-safe.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
