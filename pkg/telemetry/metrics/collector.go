package metrics

import (
	"carelog/factstore/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns the Prometheus registry and all fact store metrics.
// Components record through it; the HTTP server exposes it via Handler.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	queryMetrics *QueryMetrics
	storeMetrics *StoreMetrics
}

// NewCollector creates a metrics collector backed by the given registry.
// If registry is nil, a fresh registry is created so the collector never
// collides with the global default registry.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
	}
	c.queryMetrics = NewQueryMetrics(registry)
	c.storeMetrics = NewStoreMetrics(registry)
	return c
}

// Queries returns the query metrics subsystem.
func (c *Collector) Queries() *QueryMetrics {
	return c.queryMetrics
}

// Store returns the storage metrics subsystem.
func (c *Collector) Store() *StoreMetrics {
	return c.storeMetrics
}

// Enabled reports whether metric recording is enabled.
func (c *Collector) Enabled() bool {
	return c.config == nil || c.config.Enabled
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
