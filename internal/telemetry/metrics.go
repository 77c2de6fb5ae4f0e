package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "biorag"

// Metrics is a private Prometheus registry with the pipeline and ingestion
// collectors. It satisfies usecase.Observer and usecase.IngestObserver.
type Metrics struct {
	registry *prometheus.Registry

	outcomes       *prometheus.CounterVec
	fallbacks      *prometheus.CounterVec
	stageLatency   *prometheus.HistogramVec
	ingestedFiles  *prometheus.CounterVec
	ingestedChunks *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Search requests by outcome.",
		}, []string{"outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answer_fallbacks_total",
			Help:      "Fallback answers by reason.",
		}, []string{"reason"}),
		stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_seconds",
			Help:      "Latency of retrieval pipeline stages.",
			Buckets:   []float64{.001, .005, .025, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		ingestedFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_files_total",
			Help:      "Files handled by ingestion, by status.",
		}, []string{"status"}),
		ingestedChunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_chunks_total",
			Help:      "Chunks written by ingestion, by whether they were embedded.",
		}, []string{"embedded"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.outcomes,
		m.fallbacks,
		m.stageLatency,
		m.ingestedFiles,
		m.ingestedChunks,
	)
	return m
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stageLatency.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) ObserveOutcome(outcome string) {
	m.outcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveFallback(reason string) {
	m.fallbacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveIngest(status string, chunks, embedded int) {
	m.ingestedFiles.WithLabelValues(status).Inc()
	if embedded > 0 {
		m.ingestedChunks.WithLabelValues("true").Add(float64(embedded))
	}
	if rest := chunks - embedded; rest > 0 {
		m.ingestedChunks.WithLabelValues("false").Add(float64(rest))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
