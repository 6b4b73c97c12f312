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
	ActiveCalls        prometheus.Gauge
	CallEvents         *prometheus.CounterVec
	WSMessages         *prometheus.CounterVec
	CollaboratorErrors *prometheus.CounterVec
	TurnLatency        prometheus.Histogram

	stageWindow *turnStageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveCalls: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Number of active demo calls.",
		}),
		CallEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_events_total",
			Help:      "Call lifecycle events by type.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		CollaboratorErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_errors_total",
			Help:      "External collaborator failures by collaborator and stage.",
		}, []string{"collaborator", "stage"}),
		TurnLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_ms",
			Help:      "Latency of one complete speech turn in milliseconds.",
			Buckets:   []float64{100, 250, 500, 750, 1000, 1500, 2000, 3000, 5000},
		}),
		stageWindow: newTurnStageWindow(256),
	}
}

func (m *Metrics) ObserveTurnLatency(d time.Duration) {
	m.TurnLatency.Observe(float64(d.Milliseconds()))
	m.stageWindow.Observe("turn_total", float64(d.Milliseconds()))
}

// ObserveTurnStage records one pipeline-stage latency sample.
func (m *Metrics) ObserveTurnStage(stage string, d time.Duration) {
	m.stageWindow.Observe(stage, float64(d.Milliseconds()))
}

// ObserveTurnIndicator counts a notable turn event, such as a fallback.
func (m *Metrics) ObserveTurnIndicator(name string) {
	m.stageWindow.ObserveIndicator(name)
}

// TurnStages reports the rolling latency window for the perf endpoint.
func (m *Metrics) TurnStages() TurnStageSnapshot {
	return m.stageWindow.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
