package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordDecision("store")
	m.RecordDecision("store")
	m.RecordDecision("ignore")
	m.RecordStored("goal")
	m.RecordStorageError("add")
	m.RecordClassifierFallback("default")
	m.RecordSearch()
	m.SetMemories(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.WriteDecisions.WithLabelValues("store")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WriteDecisions.WithLabelValues("ignore")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MemoriesStored.WithLabelValues("goal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StorageErrors.WithLabelValues("add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClassifierFallbacks.WithLabelValues("default")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.Memories))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordDecision("store")
		m.RecordStored("goal")
		m.RecordStorageError("add")
		m.RecordClassifierFallback("retry")
		m.RecordSearch()
		m.SetMemories(1)
	})
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
