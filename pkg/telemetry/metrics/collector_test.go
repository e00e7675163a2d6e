package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"carelog/factstore/pkg/config"
)

func TestCollectorEnabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.MetricsConfig
		want bool
	}{
		{name: "nil config", cfg: nil, want: true},
		{name: "enabled", cfg: &config.MetricsConfig{Enabled: true}, want: true},
		{name: "disabled", cfg: &config.MetricsConfig{Enabled: false}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCollector(tt.cfg, nil)
			if c.Enabled() != tt.want {
				t.Errorf("Enabled() = %v, want %v", c.Enabled(), tt.want)
			}
		})
	}
}

func TestRecordQuery(t *testing.T) {
	c := NewCollector(nil, nil)
	qm := c.Queries()

	qm.RecordQuery("measurement", "list", "success", 5*time.Millisecond, 12)
	qm.RecordQuery("measurement", "list", "success", 7*time.Millisecond, 3)
	qm.RecordQuery("measurement", "grouped", "invalid", time.Millisecond, 0)

	if got := testutil.ToFloat64(qm.queriesTotal.WithLabelValues("measurement", "list", "success")); got != 2 {
		t.Errorf("queries_total{list,success} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(qm.queriesTotal.WithLabelValues("measurement", "grouped", "invalid")); got != 1 {
		t.Errorf("queries_total{grouped,invalid} = %v, want 1", got)
	}
	// Duration and result histograms only observe successful queries.
	if got := testutil.CollectAndCount(qm.queryDuration); got != 1 {
		t.Errorf("query_duration series = %d, want 1", got)
	}
}

func TestStoreMetrics(t *testing.T) {
	c := NewCollector(nil, nil)
	sm := c.Store()

	sm.RecordStored("measurement", 3)
	sm.RecordStored("measurement", 0)
	sm.RecordPruned("audit", 10)
	sm.RecordError("store")

	if got := testutil.ToFloat64(sm.factsStored.WithLabelValues("measurement")); got != 3 {
		t.Errorf("facts_stored_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(sm.factsPruned.WithLabelValues("audit")); got != 10 {
		t.Errorf("facts_pruned_total = %v, want 10", got)
	}
	if got := testutil.ToFloat64(sm.storageErrors.WithLabelValues("store")); got != 1 {
		t.Errorf("storage_errors_total = %v, want 1", got)
	}
}

func TestCollectorHandler(t *testing.T) {
	c := NewCollector(&config.MetricsConfig{Enabled: true, Path: "/metrics"}, nil)
	c.Queries().RecordQuery("measurement", "list", "success", time.Millisecond, 5)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "factstore_queries_total") {
		t.Error("exposition is missing factstore_queries_total")
	}
}
