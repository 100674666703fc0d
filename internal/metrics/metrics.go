// Package metrics provides Prometheus metrics for monitoring the
// digest pipeline.
//
// Design Philosophy:
// - RED Method for services: Rate, Errors, Duration
// - Custom registry to avoid global state conflicts
// - Consistent naming: hn_digest_{component}_{metric}_{unit}
// - Low cardinality labels (avoid high-cardinality values)
// - Histogram buckets aligned with each component's expected latency
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the digest service,
// organized by component following the RED methodology.
type Metrics struct {
	registry *prometheus.Registry

	// ============================================
	// Fetcher (RED Method)
	// HN Firebase API and article HTTP calls
	// ============================================
	FetchTotal    *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec

	// ============================================
	// LLM Client (RED Method)
	// Translation, summarization, classification calls
	// ============================================
	LLMTotal    *prometheus.CounterVec
	LLMDuration *prometheus.HistogramVec

	// ============================================
	// Batch Executor (RED Method)
	// Per-story pipeline outcome and whole-batch duration
	// ============================================
	BatchArticlesTotal *prometheus.CounterVec
	BatchDuration      *prometheus.HistogramVec
	BatchSize          prometheus.Histogram

	// ============================================
	// Publisher Fan-out (RED Method)
	// One outcome per sink per publish attempt
	// ============================================
	PublishTotal    *prometheus.CounterVec
	PublishDuration *prometheus.HistogramVec

	// ============================================
	// Task state (point-in-time gauge)
	// ============================================
	TasksByStatus *prometheus.GaugeVec
}

// New creates a new Metrics instance with all metrics registered
// against registry. The caller should register Go/Process collectors
// separately to avoid duplicate registration issues.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,

		// ============================================
		// Fetcher metrics
		// ============================================
		FetchTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "hn_digest_fetch_total",
				Help: "Total outbound HTTP fetches (HN API and article pages)",
			},
			// source: hn_api, article
			// status: success, error, timeout
			[]string{"source", "status"},
		),

		FetchDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "hn_digest_fetch_duration_seconds",
				Help: "Fetch request duration in seconds",
				// Most HN API calls resolve in well under a second;
				// article fetches and crawler fallback can run longer.
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
			},
			[]string{"source"},
		),

		// ============================================
		// LLM metrics
		// ============================================
		LLMTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "hn_digest_llm_total",
				Help: "Total LLM API requests",
			},
			// operation: translate_title, summarize_article, summarize_comments, classify
			// provider: deepseek, openrouter, zhipu
			// status: success, error
			[]string{"operation", "provider", "status"},
		),

		LLMDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hn_digest_llm_duration_seconds",
				Help:    "LLM API request duration in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
			},
			[]string{"operation", "provider"},
		),

		// ============================================
		// Batch Executor metrics
		// ============================================
		BatchArticlesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "hn_digest_batch_articles_total",
				Help: "Total articles processed by the batch executor",
			},
			// outcome: completed, failed
			[]string{"outcome"},
		),

		BatchDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hn_digest_batch_duration_seconds",
				Help:    "Whole-batch run duration in seconds, from claim to drain or deadline",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 240, 480},
			},
			// outcome: completed, deadline_exceeded
			[]string{"outcome"},
		),

		BatchSize: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hn_digest_batch_claimed_size",
				Help:    "Number of articles claimed per batch run",
				Buckets: []float64{0, 1, 2, 5, 10, 20},
			},
		),

		// ============================================
		// Publisher metrics
		// ============================================
		PublishTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "hn_digest_publish_total",
				Help: "Total publish attempts by sink",
			},
			// sink: git, chat, terminal
			// status: success, error
			[]string{"sink", "status"},
		),

		PublishDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hn_digest_publish_duration_seconds",
				Help:    "Publish duration in seconds by sink",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"sink"},
		),

		// ============================================
		// Task state gauge
		// ============================================
		TasksByStatus: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hn_digest_tasks",
				Help: "Current number of tasks by status, as of the last status poll",
			},
			// status: init, listFetched, processing, aggregating, published, failed
			[]string{"status"},
		),
	}

	return m
}

// ============================================
// Fetcher helpers
// ============================================

// RecordFetch records one outbound fetch.
// source: hn_api, article
// status: success, error, timeout
func (m *Metrics) RecordFetch(source, status string, duration float64) {
	m.FetchTotal.WithLabelValues(source, status).Inc()
	m.FetchDuration.WithLabelValues(source).Observe(duration)
}

// ============================================
// LLM helpers
// ============================================

// RecordLLM records one LLM API request.
// operation: translate_title, summarize_article, summarize_comments, classify
// status: success, error
func (m *Metrics) RecordLLM(operation, provider, status string, duration float64) {
	m.LLMTotal.WithLabelValues(operation, provider, status).Inc()
	m.LLMDuration.WithLabelValues(operation, provider).Observe(duration)
}

// ============================================
// Batch Executor helpers
// ============================================

// RecordBatchArticle records one article's terminal outcome within a batch run.
// outcome: completed, failed
func (m *Metrics) RecordBatchArticle(outcome string) {
	m.BatchArticlesTotal.WithLabelValues(outcome).Inc()
}

// RecordBatch records one whole-batch run.
// outcome: completed, deadline_exceeded
func (m *Metrics) RecordBatch(outcome string, duration float64, claimedSize int) {
	m.BatchDuration.WithLabelValues(outcome).Observe(duration)
	m.BatchSize.Observe(float64(claimedSize))
}

// ============================================
// Publisher helpers
// ============================================

// RecordPublish records one sink's publish attempt.
// sink: git, chat, terminal
// status: success, error
func (m *Metrics) RecordPublish(sink, status string, duration float64) {
	m.PublishTotal.WithLabelValues(sink, status).Inc()
	m.PublishDuration.WithLabelValues(sink).Observe(duration)
}

// ============================================
// Task state helpers
// ============================================

// SetTasksByStatus replaces the current task-count gauge for status.
func (m *Metrics) SetTasksByStatus(status string, count int) {
	m.TasksByStatus.WithLabelValues(status).Set(float64(count))
}

// ============================================
// Registry access
// ============================================

// Registry returns the custom Prometheus registry.
// Use with promhttp.HandlerFor() for the metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
