package query

import (
	"context"
	"net/url"
	"testing"
	"time"

	"carelog/factstore/pkg/fact"
	"carelog/factstore/pkg/fact/storage"
)

func testSchema(t *testing.T) *fact.Schema {
	t.Helper()
	schema, err := fact.NewRegistry().Lookup("measurement")
	if err != nil {
		t.Fatalf("builtin measurement schema missing: %v", err)
	}
	return schema
}

func seed(t *testing.T, store *storage.MemoryStore, schema *fact.Schema, id, record, name string, value float64, measured time.Time) {
	t.Helper()
	f := &fact.Fact{
		ID:       id,
		RecordID: record,
		Type:     "measurement",
		Fields: map[string]any{
			"name":          name,
			"value":         value,
			"unit":          "mg/dL",
			"date_measured": measured,
		},
	}
	if err := store.Store(context.Background(), schema, f); err != nil {
		t.Fatalf("Store: %v", err)
	}
}

// seedGlucoseSeries stores a spread of glucose readings across two records
// and three months.
func seedGlucoseSeries(t *testing.T, store *storage.MemoryStore, schema *fact.Schema) {
	t.Helper()
	seed(t, store, schema, "f1", "record-1", "glucose", 92, time.Date(2011, 4, 5, 9, 0, 0, 0, time.UTC))
	seed(t, store, schema, "f2", "record-1", "glucose", 110, time.Date(2011, 4, 20, 9, 0, 0, 0, time.UTC))
	seed(t, store, schema, "f3", "record-1", "glucose", 70, time.Date(2011, 5, 2, 9, 0, 0, 0, time.UTC))
	seed(t, store, schema, "f4", "record-1", "glucose", 75, time.Date(2011, 6, 11, 9, 0, 0, 0, time.UTC))
	seed(t, store, schema, "f5", "record-1", "weight", 70, time.Date(2011, 6, 12, 9, 0, 0, 0, time.UTC))
	seed(t, store, schema, "f6", "record-2", "glucose", 140, time.Date(2011, 6, 13, 9, 0, 0, 0, time.UTC))
}

func parseOpts(t *testing.T, query string) *fact.QueryOptions {
	t.Helper()
	values, err := url.ParseQuery(query)
	if err != nil {
		t.Fatalf("bad test query: %v", err)
	}
	opts, err := ParseOptions(values)
	if err != nil {
		t.Fatalf("ParseOptions: %v", err)
	}
	return opts
}

func TestSessionListFilters(t *testing.T) {
	store := storage.NewMemoryStore()
	schema := testSchema(t)
	seedGlucoseSeries(t, store, schema)
	ctx := context.Background()

	// The pipe-delimited value filter compiles to a membership predicate;
	// the record path restricts to record-1.
	s := New(Params{
		Schema:   schema,
		Backend:  store,
		Options:  parseOpts(t, "name=glucose&value=70%7C75"),
		RecordID: "record-1",
	})
	results, err := s.Results(ctx)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if s.Mode() != fact.ModeList {
		t.Errorf("Mode = %v, want list", s.Mode())
	}
	if results.Shape != fact.ShapeFacts || len(results.Facts) != 2 {
		t.Fatalf("got shape %v with %d facts, want 2 facts", results.Shape, len(results.Facts))
	}
	if s.TotalCount() != 2 {
		t.Errorf("TotalCount = %d, want 2", s.TotalCount())
	}
	for _, f := range results.Facts {
		if f.RecordID != "record-1" {
			t.Errorf("fact %s leaked from record %s", f.ID, f.RecordID)
		}
	}
}

func TestSessionListOrdering(t *testing.T) {
	store := storage.NewMemoryStore()
	schema := testSchema(t)
	seedGlucoseSeries(t, store, schema)
	ctx := context.Background()

	s := New(Params{
		Schema:   schema,
		Backend:  store,
		Options:  parseOpts(t, "order_by=-value"),
		RecordID: "record-1",
	})
	results, err := s.Results(ctx)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(results.Facts) != 5 {
		t.Fatalf("got %d facts, want 5", len(results.Facts))
	}

	wantValues := []float64{110, 92, 75, 70, 70}
	for i, f := range results.Facts {
		if f.Fields["value"] != wantValues[i] {
			t.Errorf("facts[%d].value = %v, want %v", i, f.Fields["value"], wantValues[i])
		}
	}
	// Equal primary keys fall back to ID ascending: f3 (glucose 70)
	// precedes f5 (weight 70).
	if results.Facts[3].ID != "f3" || results.Facts[4].ID != "f5" {
		t.Errorf("tie-break order = %s, %s, want f3, f5", results.Facts[3].ID, results.Facts[4].ID)
	}
}

func TestSessionGroupedByField(t *testing.T) {
	store := storage.NewMemoryStore()
	schema := testSchema(t)
	seedGlucoseSeries(t, store, schema)
	ctx := context.Background()

	s := New(Params{
		Schema:   schema,
		Backend:  store,
		Options:  parseOpts(t, "group_by=name&aggregate_by=avg*value&order_by=name"),
		RecordID: "record-1",
	})
	results, err := s.Results(ctx)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if s.Mode() != fact.ModeGrouped {
		t.Errorf("Mode = %v, want grouped", s.Mode())
	}
	if results.Shape != fact.ShapeGroups || len(results.Rows) != 2 {
		t.Fatalf("got shape %v with %d rows, want 2 group rows", results.Shape, len(results.Rows))
	}
	if results.Rows[0]["name"] != "glucose" || results.Rows[0][fact.AggregateKey] != (92.0+110+70+75)/4 {
		t.Errorf("glucose row = %v", results.Rows[0])
	}
	if results.Rows[1]["name"] != "weight" || results.Rows[1][fact.AggregateKey] != 70.0 {
		t.Errorf("weight row = %v", results.Rows[1])
	}
	if s.TotalCount() != 2 {
		t.Errorf("TotalCount = %d, want distinct group count 2", s.TotalCount())
	}
}

func TestSessionGroupedOrderByAggregate(t *testing.T) {
	store := storage.NewMemoryStore()
	schema := testSchema(t)
	seedGlucoseSeries(t, store, schema)
	ctx := context.Background()

	s := New(Params{
		Schema:   schema,
		Backend:  store,
		Options:  parseOpts(t, "name=glucose&date_group=date_measured*month&aggregate_by=count*value&order_by=-value"),
		RecordID: "record-1",
	})
	results, err := s.Results(ctx)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(results.Rows) != 3 {
		t.Fatalf("got %d buckets, want 3", len(results.Rows))
	}
	// April holds two readings; ordering by the aggregate field descending
	// puts it first.
	if results.Rows[0]["month"] != "2011-04" || results.Rows[0][fact.AggregateKey] != int64(2) {
		t.Errorf("rows[0] = %v", results.Rows[0])
	}
}

func TestSessionGroupedOrderRestriction(t *testing.T) {
	store := storage.NewMemoryStore()
	schema := testSchema(t)
	seedGlucoseSeries(t, store, schema)

	s := New(Params{
		Schema:   schema,
		Backend:  store,
		Options:  parseOpts(t, "group_by=name&aggregate_by=count*value&order_by=unit"),
		RecordID: "record-1",
	})
	err := s.Execute(context.Background())
	if err == nil {
		t.Fatal("expected error ordering a grouped query by an unrelated field")
	}
	if _, ok := err.(*fact.InvalidOrderFieldError); !ok {
		t.Errorf("got %T, want *fact.InvalidOrderFieldError", err)
	}
}

func TestSessionDateGroupPagination(t *testing.T) {
	store := storage.NewMemoryStore()
	schema := testSchema(t)
	seedGlucoseSeries(t, store, schema)
	ctx := context.Background()

	requestURL := "/records/record-1/reports/measurement/?name=glucose&date_group=date_measured*month&aggregate_by=count*value&order_by=date_measured&limit=2"
	s := New(Params{
		Schema:     schema,
		Backend:    store,
		Options:    parseOpts(t, "name=glucose&date_group=date_measured*month&aggregate_by=count*value&order_by=date_measured&limit=2"),
		RecordID:   "record-1",
		RequestURL: requestURL,
	})
	results, err := s.Results(ctx)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(results.Rows) != 2 {
		t.Fatalf("got %d rows, want page of 2", len(results.Rows))
	}
	if results.Rows[0]["month"] != "2011-04" || results.Rows[1]["month"] != "2011-05" {
		t.Errorf("page = %v", results.Rows)
	}
	if s.TotalCount() != 3 {
		t.Errorf("TotalCount = %d, want pre-slice 3", s.TotalCount())
	}

	next, err := s.NextPageURL(ctx)
	if err != nil {
		t.Fatalf("NextPageURL: %v", err)
	}
	if next == "" {
		t.Fatal("expected a next page URL")
	}
	u, err := url.Parse(next)
	if err != nil {
		t.Fatalf("parse next URL: %v", err)
	}
	if u.Query().Get("offset") != "2" {
		t.Errorf("next offset = %q, want 2", u.Query().Get("offset"))
	}
	if u.Query().Get("limit") != "2" {
		t.Errorf("next limit = %q, want preserved 2", u.Query().Get("limit"))
	}
}

func TestSessionNoNextPageWithoutLimit(t *testing.T) {
	store := storage.NewMemoryStore()
	schema := testSchema(t)
	seedGlucoseSeries(t, store, schema)
	ctx := context.Background()

	s := New(Params{
		Schema:     schema,
		Backend:    store,
		Options:    parseOpts(t, "name=glucose"),
		RecordID:   "record-1",
		RequestURL: "/records/record-1/reports/measurement/?name=glucose",
	})
	next, err := s.NextPageURL(ctx)
	if err != nil {
		t.Fatalf("NextPageURL: %v", err)
	}
	if next != "" {
		t.Errorf("unbounded query produced next page %q", next)
	}
}

func TestSessionFlatAggregate(t *testing.T) {
	store := storage.NewMemoryStore()
	schema := testSchema(t)
	seedGlucoseSeries(t, store, schema)
	ctx := context.Background()

	s := New(Params{
		Schema:   schema,
		Backend:  store,
		Options:  parseOpts(t, "name=glucose&aggregate_by=max*value"),
		RecordID: "record-1",
	})
	results, err := s.Results(ctx)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if s.Mode() != fact.ModeFlatAggregate {
		t.Errorf("Mode = %v, want aggregate", s.Mode())
	}
	if results.Shape != fact.ShapeScalar || len(results.Rows) != 1 {
		t.Fatalf("got shape %v with %d rows, want one scalar row", results.Shape, len(results.Rows))
	}
	if results.Rows[0][fact.AggregateKey] != 110.0 {
		t.Errorf("max = %v, want 110", results.Rows[0][fact.AggregateKey])
	}
	// A flat aggregation is one row by definition, whatever the input size.
	if s.TotalCount() != 1 {
		t.Errorf("TotalCount = %d, want 1", s.TotalCount())
	}
}

func TestSessionStatusAndDateRange(t *testing.T) {
	store := storage.NewMemoryStore()
	schema := testSchema(t)
	seedGlucoseSeries(t, store, schema)
	ctx := context.Background()

	s := New(Params{
		Schema:   schema,
		Backend:  store,
		Options:  parseOpts(t, "status=active&date_range=date_measured*2011-05-01T00:00:00Z*2011-06-30T00:00:00Z"),
		RecordID: "record-1",
	})
	results, err := s.Results(ctx)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(results.Facts) != 3 {
		t.Errorf("got %d facts in range, want 3", len(results.Facts))
	}
}

func TestSessionInputErrors(t *testing.T) {
	store := storage.NewMemoryStore()
	schema := testSchema(t)
	seedGlucoseSeries(t, store, schema)
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		check func(err error) bool
	}{
		{
			name:  "unknown filter field",
			query: "lab_code=HBA1C",
			check: func(err error) bool { _, ok := err.(*fact.InvalidFieldError); return ok },
		},
		{
			name:  "uncoercible filter value",
			query: "value=high",
			check: func(err error) bool { _, ok := err.(*fact.InvalidFilterValueError); return ok },
		},
		{
			name:  "date range over non-date field",
			query: "date_range=value*2011-01-01T00:00:00Z*",
			check: func(err error) bool { _, ok := err.(*fact.InvalidDateRangeFieldError); return ok },
		},
		{
			name:  "date group over non-date field",
			query: "date_group=name*month&aggregate_by=count*value",
			check: func(err error) bool { _, ok := err.(*fact.InvalidDateGroupFieldError); return ok },
		},
		{
			name:  "aggregate over incompatible type",
			query: "aggregate_by=sum*name",
			check: func(err error) bool { _, ok := err.(*fact.IncompatibleAggregateTypeError); return ok },
		},
		{
			name:  "grouping without aggregation",
			query: "group_by=name",
			check: func(err error) bool { _, ok := err.(*fact.MissingAggregationError); return ok },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Params{
				Schema:   schema,
				Backend:  store,
				Options:  parseOpts(t, tt.query),
				RecordID: "record-1",
			})
			err := s.Execute(ctx)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.check(err) {
				t.Errorf("unexpected error type %T: %v", err, err)
			}
			if !fact.IsQueryInputError(err) {
				t.Errorf("%T should classify as a query input error", err)
			}
		})
	}
}

func TestSessionInstanceLookup(t *testing.T) {
	store := storage.NewMemoryStore()
	schema := testSchema(t)
	seedGlucoseSeries(t, store, schema)
	ctx := context.Background()

	s := New(Params{
		Schema:   schema,
		Backend:  store,
		RecordID: "record-1",
		FactID:   "f3",
	})
	results, err := s.Results(ctx)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(results.Facts) != 1 || results.Facts[0].ID != "f3" {
		t.Fatalf("instance lookup returned %v", results.Facts)
	}
	if s.TotalCount() != 1 {
		t.Errorf("TotalCount = %d, want 1", s.TotalCount())
	}

	missing := New(Params{Schema: schema, Backend: store, FactID: "no-such-fact"})
	results, err = missing.Results(ctx)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(results.Facts) != 0 || missing.TotalCount() != 0 {
		t.Errorf("missing instance returned %d facts, total %d", len(results.Facts), missing.TotalCount())
	}
}

func TestSessionCarenetScope(t *testing.T) {
	store := storage.NewMemoryStore()
	schema := testSchema(t)
	seedGlucoseSeries(t, store, schema)
	ctx := context.Background()

	if err := store.AddToCarenet(ctx, "family", "f1"); err != nil {
		t.Fatalf("AddToCarenet: %v", err)
	}
	if err := store.AddToCarenet(ctx, "family", "f4"); err != nil {
		t.Fatalf("AddToCarenet: %v", err)
	}

	scope, err := CarenetScope(ctx, store, "family")
	if err != nil {
		t.Fatalf("CarenetScope: %v", err)
	}
	s := New(Params{
		Schema:   schema,
		Backend:  store,
		RecordID: "record-1",
		Scope:    scope,
	})
	results, err := s.Results(ctx)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(results.Facts) != 2 {
		t.Fatalf("scoped query returned %d facts, want 2", len(results.Facts))
	}
	for _, f := range results.Facts {
		if f.ID != "f1" && f.ID != "f4" {
			t.Errorf("fact %s is outside the carenet", f.ID)
		}
	}

	// An empty membership yields a filter matching nothing.
	emptyScope, err := CarenetScope(ctx, store, "no-such-carenet")
	if err != nil {
		t.Fatalf("CarenetScope: %v", err)
	}
	none := New(Params{Schema: schema, Backend: store, RecordID: "record-1", Scope: emptyScope})
	results, err = none.Results(ctx)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(results.Facts) != 0 {
		t.Errorf("empty carenet returned %d facts", len(results.Facts))
	}
}

func TestSessionExecuteIdempotent(t *testing.T) {
	store := storage.NewMemoryStore()
	schema := testSchema(t)
	seedGlucoseSeries(t, store, schema)
	ctx := context.Background()

	s := New(Params{
		Schema:   schema,
		Backend:  store,
		Options:  parseOpts(t, "name=glucose"),
		RecordID: "record-1",
	})
	first, err := s.Results(ctx)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}

	// Mutating the store after execution must not change cached results.
	seed(t, store, schema, "f7", "record-1", "glucose", 200, time.Date(2011, 7, 1, 0, 0, 0, 0, time.UTC))

	second, err := s.Results(ctx)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(second.Facts) != len(first.Facts) {
		t.Errorf("re-execution changed results: %d then %d", len(first.Facts), len(second.Facts))
	}
}
