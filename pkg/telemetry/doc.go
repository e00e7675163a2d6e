// Package telemetry provides observability for the fact store.
//
// # Components
//
//   - logging: structured logging over log/slog with runtime level changes
//   - metrics: Prometheus metrics for queries and storage
//   - health: liveness and readiness probe endpoints
//
// # Usage
//
//	logger, err := logging.Setup(cfg.Telemetry.Logging, nil)
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.Queries().RecordQuery("measurement", "grouped", "success", elapsed, 12)
//
//	checker := health.New(0)
//	checker.RegisterCheck("storage", pingFunc)
package telemetry
