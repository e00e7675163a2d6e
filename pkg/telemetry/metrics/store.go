package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics tracks fact storage activity.
//
// Metrics:
//   - factstore_facts_stored_total: facts written by record type
//   - factstore_facts_pruned_total: facts deleted by retention by record type
//   - factstore_storage_errors_total: backend errors by operation
type StoreMetrics struct {
	factsStored   *prometheus.CounterVec
	factsPruned   *prometheus.CounterVec
	storageErrors *prometheus.CounterVec
}

// NewStoreMetrics creates and registers storage metrics with the provided registry.
func NewStoreMetrics(registry *prometheus.Registry) *StoreMetrics {
	sm := &StoreMetrics{
		factsStored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "facts_stored_total",
				Help:      "Total number of facts written to storage",
			},
			[]string{"record_type"},
		),

		factsPruned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "facts_pruned_total",
				Help:      "Total number of facts deleted by retention pruning",
			},
			[]string{"record_type"},
		),

		storageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_errors_total",
				Help:      "Total number of storage backend errors",
			},
			[]string{"operation"},
		),
	}

	registry.MustRegister(
		sm.factsStored,
		sm.factsPruned,
		sm.storageErrors,
	)

	return sm
}

// RecordStored records facts written for a record type.
func (sm *StoreMetrics) RecordStored(recordType string, count int) {
	if count > 0 {
		sm.factsStored.WithLabelValues(recordType).Add(float64(count))
	}
}

// RecordPruned records facts deleted by retention for a record type.
func (sm *StoreMetrics) RecordPruned(recordType string, count int64) {
	if count > 0 {
		sm.factsPruned.WithLabelValues(recordType).Add(float64(count))
	}
}

// RecordError records a storage backend error for an operation.
func (sm *StoreMetrics) RecordError(operation string) {
	sm.storageErrors.WithLabelValues(operation).Inc()
}
