package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "factstore"
)

// QueryMetrics tracks report query execution.
//
// Metrics:
//   - factstore_queries_total: query count by record type, mode, status
//   - factstore_query_duration_seconds: query duration histogram
//   - factstore_query_results: result count histogram per query
type QueryMetrics struct {
	queriesTotal  *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	queryResults  *prometheus.HistogramVec
}

// NewQueryMetrics creates and registers query metrics with the provided registry.
func NewQueryMetrics(registry *prometheus.Registry) *QueryMetrics {
	qm := &QueryMetrics{
		queriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of report queries executed",
			},
			[]string{"record_type", "mode", "status"},
		),

		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Duration of report queries in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"record_type", "mode"},
		),

		queryResults: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_results",
				Help:      "Number of results returned per report query",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8), // 1 to 16K
			},
			[]string{"record_type"},
		),
	}

	registry.MustRegister(
		qm.queriesTotal,
		qm.queryDuration,
		qm.queryResults,
	)

	return qm
}

// RecordQuery records a completed query.
//
// Parameters:
//   - recordType: the record type queried (e.g., "measurement")
//   - mode: the query mode ("list", "grouped", "aggregate")
//   - status: "success", "invalid", or "error"
//   - duration: query execution time
//   - results: number of results returned
func (qm *QueryMetrics) RecordQuery(recordType, mode, status string, duration time.Duration, results int) {
	qm.queriesTotal.WithLabelValues(recordType, mode, status).Inc()
	if status == "success" {
		qm.queryDuration.WithLabelValues(recordType, mode).Observe(duration.Seconds())
		qm.queryResults.WithLabelValues(recordType).Observe(float64(results))
	}
}
