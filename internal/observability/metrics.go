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
	ActiveStreams      prometheus.Gauge
	RoutingDecisions   *prometheus.CounterVec
	TicketValidations  *prometheus.CounterVec
	TicketsCreated     *prometheus.CounterVec
	EscalationEvents   *prometheus.CounterVec
	StreamEvents       *prometheus.CounterVec
	CollaboratorErrors *prometheus.CounterVec
	WSMessages         *prometheus.CounterVec
	RequestLatency     prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveStreams: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Number of sessions with a live delivery channel.",
		}),
		RoutingDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_decisions_total",
			Help:      "Routing decisions by agent and source (llm or fallback).",
		}, []string{"agent", "source"}),
		TicketValidations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticket_validations_total",
			Help:      "Ticket validator outcomes.",
		}, []string{"outcome"}),
		TicketsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_created_total",
			Help:      "Tickets created by outcome (created or failed).",
		}, []string{"outcome"}),
		EscalationEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalation_events_total",
			Help:      "Escalation lifecycle events.",
		}, []string{"event"}),
		StreamEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_events_total",
			Help:      "Stream delivery events by type.",
		}, []string{"type"}),
		CollaboratorErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_errors_total",
			Help:      "External collaborator failures by component.",
		}, []string{"component"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction.",
		}, []string{"direction"}),
		RequestLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_latency_ms",
			Help:      "End-to-end latency of ProcessRequest in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000},
		}),
	}
}

func (m *Metrics) ObserveRequestLatency(d time.Duration) {
	m.RequestLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
