package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"carelog/factstore/pkg/config"
	"carelog/factstore/pkg/fact"
	"carelog/factstore/pkg/fact/query"
	"carelog/factstore/pkg/fact/render"
	"carelog/factstore/pkg/fact/storage"
	"carelog/factstore/pkg/telemetry/metrics"
)

// errorResponse is the JSON body for error replies.
type errorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response with the given status code.
func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message})
}

// ReportHandler serves report queries over record types. It translates
// URL query parameters into query options, runs a session against the
// backend, and renders the report in the requested format.
type ReportHandler struct {
	registry *fact.Registry
	backend  storage.Backend
	members  query.CarenetMembership
	queryCfg config.QueryConfig
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// NewReportHandler creates a report handler. members may be nil when the
// backend has no carenet membership support.
func NewReportHandler(registry *fact.Registry, backend storage.Backend, members query.CarenetMembership, queryCfg config.QueryConfig, collector *metrics.Collector) *ReportHandler {
	return &ReportHandler{
		registry: registry,
		backend:  backend,
		members:  members,
		queryCfg: queryCfg,
		metrics:  collector,
		logger:   slog.Default().With("component", "api.reports"),
	}
}

// ServeHTTP handles a report request. Routes:
//
//	GET /records/{record}/reports/{type}/          record-scoped report
//	GET /records/{record}/reports/{type}/{fact}/   single fact instance
//	GET /reports/{type}/                           record-agnostic report
func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	recordType := r.PathValue("type")

	schema, err := h.registry.Lookup(recordType)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	opts, err := query.ParseOptions(r.URL.Query())
	if err != nil {
		h.record(recordType, "", "invalid", start, 0)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.clampLimit(opts)

	var scope storage.ScopeFilter
	if carenetID := r.URL.Query().Get("carenet_id"); carenetID != "" {
		if h.members == nil {
			writeError(w, http.StatusBadRequest, "carenet scoping is not available")
			return
		}
		scope, err = query.CarenetScope(r.Context(), h.members, carenetID)
		if err != nil {
			h.record(recordType, "", "error", start, 0)
			writeError(w, http.StatusInternalServerError, "failed to resolve carenet")
			return
		}
	}

	sess := query.New(query.Params{
		Schema:     schema,
		Backend:    h.backend,
		Options:    opts,
		RecordID:   r.PathValue("record"),
		FactID:     r.PathValue("fact"),
		Scope:      scope,
		RequestURL: r.URL.RequestURI(),
	})

	ctx := r.Context()
	if h.queryCfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.queryCfg.Timeout)
		defer cancel()
	}

	report, err := render.BuildReport(ctx, sess)
	if err != nil {
		if fact.IsQueryInputError(err) {
			h.record(recordType, "", "invalid", start, 0)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.record(recordType, "", "error", start, 0)
		h.logger.Error("report query failed",
			"record_type", recordType,
			"request_id", GetRequestID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "report query failed")
		return
	}

	var renderer render.Renderer
	switch format := r.URL.Query().Get("response_format"); format {
	case "", "application/json":
		w.Header().Set("Content-Type", "application/json")
		renderer = render.NewJSONRenderer(false)
	case "text/csv":
		w.Header().Set("Content-Type", "text/csv")
		renderer = render.NewCSVRenderer()
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported response_format: %q", format))
		return
	}

	h.record(recordType, sess.Mode().String(), "success", start, report.Set.Len())

	if err := renderer.Render(ctx, report, w); err != nil {
		// Headers are gone by now; log and give up on the connection.
		h.logger.Error("report rendering failed",
			"record_type", recordType,
			"request_id", GetRequestID(r.Context()),
			"error", err,
		)
	}
}

// clampLimit applies the configured default and maximum page sizes.
func (h *ReportHandler) clampLimit(opts *fact.QueryOptions) {
	if opts.Limit == 0 && h.queryCfg.DefaultLimit > 0 {
		opts.Limit = h.queryCfg.DefaultLimit
	}
	if h.queryCfg.MaxLimit > 0 && opts.Limit > h.queryCfg.MaxLimit {
		opts.Limit = h.queryCfg.MaxLimit
	}
}

// record updates query metrics when a collector is attached.
func (h *ReportHandler) record(recordType, mode, status string, start time.Time, results int) {
	if h.metrics == nil || !h.metrics.Enabled() {
		return
	}
	h.metrics.Queries().RecordQuery(recordType, mode, status, time.Since(start), results)
}

// ingestRequest is the JSON body for storing a fact.
type ingestRequest struct {
	Status string         `json:"status,omitempty"`
	Fields map[string]any `json:"fields"`
}

// ingestResponse is the JSON reply after storing a fact.
type ingestResponse struct {
	ID string `json:"id"`
}

// IngestHandler stores new facts posted as JSON.
type IngestHandler struct {
	registry *fact.Registry
	backend  storage.Backend
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// NewIngestHandler creates an ingest handler.
func NewIngestHandler(registry *fact.Registry, backend storage.Backend, collector *metrics.Collector) *IngestHandler {
	return &IngestHandler{
		registry: registry,
		backend:  backend,
		metrics:  collector,
		logger:   slog.Default().With("component", "api.ingest"),
	}
}

// ServeHTTP handles POST /records/{record}/facts/. The body names the
// record type and carries the typed field values:
//
//	{"fields": {"name": "HBA1C", "value": 5.3, "date_measured": "2010-03-10T00:00:00Z"}}
//
// posted to /records/{record}/facts/?type=measurement.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	recordType := r.URL.Query().Get("type")
	schema, err := h.registry.Lookup(recordType)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	f := &fact.Fact{
		RecordID: r.PathValue("record"),
		Type:     schema.Type,
		Status:   req.Status,
		Fields:   make(map[string]any, len(req.Fields)),
	}
	for name, raw := range req.Fields {
		field, err := schema.Resolve(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		value, err := coerceJSON(field.Type, name, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Fields[name] = value
	}

	if err := h.backend.Store(r.Context(), schema, f); err != nil {
		h.logger.Error("fact ingestion failed",
			"record_type", recordType,
			"request_id", GetRequestID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "failed to store fact")
		return
	}

	if h.metrics != nil && h.metrics.Enabled() {
		h.metrics.Store().RecordStored(recordType, 1)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(ingestResponse{ID: f.ID})
}

// coerceJSON converts a decoded JSON value to the field's storage type.
func coerceJSON(t fact.FieldType, name string, raw any) (any, error) {
	switch t {
	case fact.TypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("field %q expects a string", name)
		}
		return s, nil
	case fact.TypeNumber:
		n, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("field %q expects a number", name)
		}
		return n, nil
	case fact.TypeDate:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("field %q expects an ISO 8601 date string", name)
		}
		parsed, err := fact.ParseISO8601(s)
		if err != nil {
			return nil, fact.NewInvalidFilterValueError(name, fact.TypeDate, s, err)
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("field %q has unsupported type %q", name, t)
	}
}
