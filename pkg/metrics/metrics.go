// Package metrics holds the Prometheus counters of the memory pipeline.
// The values are advisory; nothing reads them back.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the chatbot memory pipeline.
// A nil *Metrics is valid and records nothing.
//
// Metrics:
//   - chatbot_write_decisions_total{action} - write decisions by action
//   - chatbot_memories_stored_total{type} - memories persisted by memory type
//   - chatbot_storage_errors_total{op} - failed store operations
//   - chatbot_classifier_fallbacks_total{stage} - classifier answers that needed a fallback
//   - chatbot_searches_total - memory searches
//   - chatbot_memories - last observed number of stored memories
type Metrics struct {
	WriteDecisions      *prometheus.CounterVec
	MemoriesStored      *prometheus.CounterVec
	StorageErrors       *prometheus.CounterVec
	ClassifierFallbacks *prometheus.CounterVec
	Searches            prometheus.Counter
	Memories            prometheus.Gauge
}

// New creates the metrics and registers them on reg. Use a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		WriteDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chatbot_write_decisions_total",
			Help: "Total number of write decisions by action",
		}, []string{"action"}),
		MemoriesStored: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chatbot_memories_stored_total",
			Help: "Total number of memories persisted by type",
		}, []string{"type"}),
		StorageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chatbot_storage_errors_total",
			Help: "Total number of failed memory store operations",
		}, []string{"op"}),
		ClassifierFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chatbot_classifier_fallbacks_total",
			Help: "Total number of classifier answers that needed a fallback",
		}, []string{"stage"}), // "substring", "retry", "default"
		Searches: f.NewCounter(prometheus.CounterOpts{
			Name: "chatbot_searches_total",
			Help: "Total number of memory searches",
		}),
		Memories: f.NewGauge(prometheus.GaugeOpts{
			Name: "chatbot_memories",
			Help: "Last observed number of stored memories",
		}),
	}
}

// RecordDecision counts a write decision.
func (m *Metrics) RecordDecision(action string) {
	if m == nil {
		return
	}
	m.WriteDecisions.WithLabelValues(action).Inc()
}

// RecordStored counts a persisted memory.
func (m *Metrics) RecordStored(memType string) {
	if m == nil {
		return
	}
	m.MemoriesStored.WithLabelValues(memType).Inc()
}

// RecordStorageError counts a failed store operation.
func (m *Metrics) RecordStorageError(op string) {
	if m == nil {
		return
	}
	m.StorageErrors.WithLabelValues(op).Inc()
}

// RecordClassifierFallback counts a classifier fallback at stage.
func (m *Metrics) RecordClassifierFallback(stage string) {
	if m == nil {
		return
	}
	m.ClassifierFallbacks.WithLabelValues(stage).Inc()
}

// RecordSearch counts a memory search.
func (m *Metrics) RecordSearch() {
	if m == nil {
		return
	}
	m.Searches.Inc()
}

// SetMemories sets the stored memory gauge.
func (m *Metrics) SetMemories(n int) {
	if m == nil {
		return
	}
	m.Memories.Set(float64(n))
}
