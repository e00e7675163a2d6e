// Package metrics provides Prometheus instrumentation for the fact store.
//
// A Collector owns a private registry so tests and embedded use never
// collide with the global default registry. Two subsystems hang off it:
// QueryMetrics for report query execution (count, duration, result sizes)
// and StoreMetrics for storage activity (writes, retention pruning, backend
// errors). Handler exposes the registry in Prometheus exposition format.
package metrics
