package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNew verifies that all metrics are properly initialized.
func TestNew(t *testing.T) {
	t.Parallel()
	registry := prometheus.NewRegistry()
	m := New(registry)

	if m == nil {
		t.Fatal("New() returned nil")
	}

	tests := []struct {
		name  string
		check func() bool
	}{
		{"FetchTotal", func() bool { return m.FetchTotal != nil }},
		{"FetchDuration", func() bool { return m.FetchDuration != nil }},

		{"LLMTotal", func() bool { return m.LLMTotal != nil }},
		{"LLMDuration", func() bool { return m.LLMDuration != nil }},

		{"BatchArticlesTotal", func() bool { return m.BatchArticlesTotal != nil }},
		{"BatchDuration", func() bool { return m.BatchDuration != nil }},
		{"BatchSize", func() bool { return m.BatchSize != nil }},

		{"PublishTotal", func() bool { return m.PublishTotal != nil }},
		{"PublishDuration", func() bool { return m.PublishDuration != nil }},

		{"TasksByStatus", func() bool { return m.TasksByStatus != nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if !tt.check() {
				t.Errorf("%s is nil", tt.name)
			}
		})
	}
}

// TestRegistry verifies the registry is accessible.
func TestRegistry(t *testing.T) {
	t.Parallel()
	registry := prometheus.NewRegistry()
	m := New(registry)

	if m.Registry() != registry {
		t.Error("Registry() should return the same registry")
	}
}

func TestRecordFetch(t *testing.T) {
	t.Parallel()
	registry := prometheus.NewRegistry()
	m := New(registry)

	testCases := []struct {
		source   string
		status   string
		duration float64
	}{
		{"hn_api", "success", 0.2},
		{"article", "error", 3.0},
		{"article", "timeout", 20.0},
	}

	for _, tc := range testCases {
		m.RecordFetch(tc.source, tc.status, tc.duration)
	}

	if count := countSeries(t, m.FetchTotal); count != len(testCases) {
		t.Errorf("expected %d distinct label combinations recorded, got %d", len(testCases), count)
	}
}

func TestRecordLLM(t *testing.T) {
	t.Parallel()
	registry := prometheus.NewRegistry()
	m := New(registry)

	testCases := []struct {
		operation string
		provider  string
		status    string
		duration  float64
	}{
		{"translate_title", "deepseek", "success", 0.8},
		{"summarize_article", "openrouter", "error", 5.0},
		{"summarize_comments", "zhipu", "success", 1.5},
		{"classify", "deepseek", "success", 0.4},
	}

	for _, tc := range testCases {
		m.RecordLLM(tc.operation, tc.provider, tc.status, tc.duration)
	}

	if count := countSeries(t, m.LLMTotal); count != len(testCases) {
		t.Errorf("expected %d distinct label combinations recorded, got %d", len(testCases), count)
	}
}

func TestRecordBatchArticle(t *testing.T) {
	t.Parallel()
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.RecordBatchArticle("completed")
	m.RecordBatchArticle("completed")
	m.RecordBatchArticle("failed")

	if count := countSeries(t, m.BatchArticlesTotal); count != 2 {
		t.Errorf("expected 2 distinct outcomes recorded, got %d", count)
	}
}

func TestRecordBatch(t *testing.T) {
	t.Parallel()
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.RecordBatch("completed", 12.5, 6)
	m.RecordBatch("deadline_exceeded", 240.0, 6)
}

func TestRecordPublish(t *testing.T) {
	t.Parallel()
	registry := prometheus.NewRegistry()
	m := New(registry)

	testCases := []struct {
		sink     string
		status   string
		duration float64
	}{
		{"git", "success", 1.2},
		{"chat", "error", 0.5},
		{"terminal", "success", 0.01},
	}

	for _, tc := range testCases {
		m.RecordPublish(tc.sink, tc.status, tc.duration)
	}

	if count := countSeries(t, m.PublishTotal); count != len(testCases) {
		t.Errorf("expected %d distinct label combinations recorded, got %d", len(testCases), count)
	}
}

func TestSetTasksByStatus(t *testing.T) {
	t.Parallel()
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.SetTasksByStatus("init", 1)
	m.SetTasksByStatus("processing", 3)
	m.SetTasksByStatus("published", 10)

	if count := countSeries(t, m.TasksByStatus); count != 3 {
		t.Errorf("expected 3 distinct statuses recorded, got %d", count)
	}
}

// countSeries counts how many distinct label-combination series a
// CounterVec or GaugeVec has accumulated.
func countSeries(t *testing.T, collector prometheus.Collector) int {
	t.Helper()
	ch := make(chan prometheus.Metric, 64)
	collector.Collect(ch)
	close(ch)

	count := 0
	for range ch {
		count++
	}
	return count
}
