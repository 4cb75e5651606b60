package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the process's Prometheus registry plus every instrument the
// pipeline and dispatcher record against. New wiring: none of the example
// repos that depend on prometheus/client_golang register application
// instruments with it (their usage is confined to integration-test
// scraping), so this registry follows the library's own promauto idiom
// rather than a pack file.
type Metrics struct {
	registry *prometheus.Registry

	EntityGroundingDuration *prometheus.HistogramVec
	EntitiesGrounded        *prometheus.CounterVec
	GroundingRetries        prometheus.Counter

	PipelineRunDuration *prometheus.HistogramVec
	PipelineRunsTotal   *prometheus.CounterVec

	OutboxPending    prometheus.Gauge
	OutboxDeadLetter prometheus.Gauge
	OutboxPublished  *prometheus.CounterVec

	BreakerState *prometheus.GaugeVec
}

// NewMetrics registers every instrument against a fresh registry (never the
// global default, so tests can build independent Metrics instances).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		EntityGroundingDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "eligibility",
			Subsystem: "ground",
			Name:      "entity_duration_seconds",
			Help:      "Time spent grounding one entity against a terminology provider, including agentic retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"entity_type", "method"}),

		EntitiesGrounded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eligibility",
			Subsystem: "ground",
			Name:      "entities_total",
			Help:      "Entities grounded, labeled by outcome (grounded, error, expert_review, skipped).",
		}, []string{"outcome"}),

		GroundingRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "eligibility",
			Subsystem: "ground",
			Name:      "retries_total",
			Help:      "Agentic re-ask attempts issued while grounding low-confidence entities.",
		}),

		PipelineRunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "eligibility",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock time of one protocol's pipeline run, labeled by terminal status.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"status"}),

		PipelineRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eligibility",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs, labeled by terminal status.",
		}, []string{"status"}),

		OutboxPending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "eligibility",
			Subsystem: "outbox",
			Name:      "pending_events",
			Help:      "Outbox events currently in pending or in_flight status.",
		}),

		OutboxDeadLetter: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "eligibility",
			Subsystem: "outbox",
			Name:      "dead_letter_events",
			Help:      "Outbox events currently in dead_letter status, awaiting sweep or operator replay.",
		}),

		OutboxPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eligibility",
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Outbox events successfully published, labeled by event_type.",
		}, []string{"event_type"}),

		BreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "eligibility",
			Subsystem: "resilience",
			Name:      "breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open), labeled by breaker name.",
		}, []string{"breaker"}),
	}
}

// Handler exposes the registry for pkg/httpapi's GET /metrics route.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
