package storage

import (
	"context"
	"testing"
	"time"

	"carelog/factstore/pkg/fact"
)

func measurementSchema(t *testing.T) *fact.Schema {
	t.Helper()
	schema, err := fact.NewRegistry().Lookup("measurement")
	if err != nil {
		t.Fatalf("builtin measurement schema missing: %v", err)
	}
	return schema
}

func storeMeasurement(t *testing.T, s *MemoryStore, schema *fact.Schema, record, name string, value float64, measured time.Time) *fact.Fact {
	t.Helper()
	f := &fact.Fact{
		RecordID: record,
		Type:     "measurement",
		Fields: map[string]any{
			"name":          name,
			"value":         value,
			"unit":          "mg/dL",
			"date_measured": measured,
		},
	}
	if err := s.Store(context.Background(), schema, f); err != nil {
		t.Fatalf("Store: %v", err)
	}
	return f
}

func TestMemoryStoreAssignsDefaults(t *testing.T) {
	s := NewMemoryStore()
	schema := measurementSchema(t)

	f := storeMeasurement(t, s, schema, "record-1", "glucose", 92, time.Date(2011, 6, 17, 0, 0, 0, 0, time.UTC))
	if f.ID == "" {
		t.Error("Store should assign an ID")
	}
	if f.Status != "active" {
		t.Errorf("Status = %q, want %q", f.Status, "active")
	}
	if f.Created.IsZero() {
		t.Error("Store should stamp Created")
	}
	if s.Size(schema.Table) != 1 {
		t.Errorf("Size = %d, want 1", s.Size(schema.Table))
	}
}

func TestMemoryStorePredicates(t *testing.T) {
	s := NewMemoryStore()
	schema := measurementSchema(t)
	ctx := context.Background()

	day := time.Date(2011, 6, 1, 0, 0, 0, 0, time.UTC)
	storeMeasurement(t, s, schema, "record-1", "glucose", 92, day)
	storeMeasurement(t, s, schema, "record-1", "glucose", 110, day.AddDate(0, 0, 10))
	storeMeasurement(t, s, schema, "record-1", "weight", 70, day.AddDate(0, 1, 0))
	storeMeasurement(t, s, schema, "record-2", "glucose", 130, day)

	tests := []struct {
		name string
		rel  *Relation
		want int
	}{
		{
			name: "unrestricted",
			rel:  NewRelation(schema.Table),
			want: 4,
		},
		{
			name: "record scope",
			rel:  NewRelation(schema.Table).Where(Eq(RecordColumn, "record-1")),
			want: 3,
		},
		{
			name: "equality on field column",
			rel:  NewRelation(schema.Table).Where(Eq("name", "weight")),
			want: 1,
		},
		{
			name: "membership",
			rel:  NewRelation(schema.Table).Where(In("value", []any{92.0, 130.0})),
			want: 2,
		},
		{
			name: "date range",
			rel: NewRelation(schema.Table).
				Where(GTE("date_measured", day.AddDate(0, 0, 5))).
				Where(LTE("date_measured", day.AddDate(0, 0, 20))),
			want: 1,
		},
		{
			name: "conjunction",
			rel: NewRelation(schema.Table).
				Where(Eq(RecordColumn, "record-1")).
				Where(Eq("name", "glucose")).
				Where(GTE("value", 100.0)),
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Count(ctx, tt.rel)
			if err != nil {
				t.Fatalf("Count: %v", err)
			}
			if got != tt.want {
				t.Errorf("Count = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMemoryStoreFetchFactsOrderAndSlice(t *testing.T) {
	s := NewMemoryStore()
	schema := measurementSchema(t)
	ctx := context.Background()

	day := time.Date(2011, 6, 1, 0, 0, 0, 0, time.UTC)
	storeMeasurement(t, s, schema, "record-1", "glucose", 110, day)
	storeMeasurement(t, s, schema, "record-1", "glucose", 92, day.AddDate(0, 0, 1))
	storeMeasurement(t, s, schema, "record-1", "glucose", 130, day.AddDate(0, 0, 2))

	rel := NewRelation(schema.Table).
		OrderBy(OrderKey{Column: "value", Desc: true}).
		Slice(0, 2)

	facts, err := s.FetchFacts(ctx, schema, rel)
	if err != nil {
		t.Fatalf("FetchFacts: %v", err)
	}
	if len(facts) != 2 {
		t.Fatalf("got %d facts, want 2", len(facts))
	}
	if facts[0].Fields["value"] != 130.0 || facts[1].Fields["value"] != 110.0 {
		t.Errorf("descending order broken: %v, %v", facts[0].Fields["value"], facts[1].Fields["value"])
	}

	// Offset past the end yields an empty page, not an error.
	empty, err := s.FetchFacts(ctx, schema, NewRelation(schema.Table).Slice(10, 5))
	if err != nil {
		t.Fatalf("FetchFacts: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("got %d facts past the end, want 0", len(empty))
	}
}

func TestMemoryStoreFetchGroups(t *testing.T) {
	s := NewMemoryStore()
	schema := measurementSchema(t)
	ctx := context.Background()

	day := time.Date(2011, 6, 1, 0, 0, 0, 0, time.UTC)
	storeMeasurement(t, s, schema, "record-1", "glucose", 90, day)
	storeMeasurement(t, s, schema, "record-1", "glucose", 110, day)
	storeMeasurement(t, s, schema, "record-1", "weight", 70, day)

	rel := NewRelation(schema.Table).
		GroupBy("name", "name").
		WithAggregate(fact.AggAvg, "value").
		OrderBy(OrderKey{Column: "name"})

	rows, err := s.FetchGroups(ctx, rel)
	if err != nil {
		t.Fatalf("FetchGroups: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d groups, want 2", len(rows))
	}
	if rows[0]["name"] != "glucose" || rows[0][fact.AggregateKey] != 100.0 {
		t.Errorf("glucose group = %v", rows[0])
	}
	if rows[1]["name"] != "weight" || rows[1][fact.AggregateKey] != 70.0 {
		t.Errorf("weight group = %v", rows[1])
	}
	// Group rows carry only the alias and the aggregate value.
	if len(rows[0]) != 2 {
		t.Errorf("group row has %d keys, want 2: %v", len(rows[0]), rows[0])
	}

	count, err := s.Count(ctx, rel)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Errorf("grouped Count = %d, want distinct group keys 2", count)
	}
}

func TestMemoryStoreFetchGroupsBuckets(t *testing.T) {
	s := NewMemoryStore()
	schema := measurementSchema(t)
	ctx := context.Background()

	storeMeasurement(t, s, schema, "record-1", "glucose", 90, time.Date(2011, 5, 2, 0, 0, 0, 0, time.UTC))
	storeMeasurement(t, s, schema, "record-1", "glucose", 110, time.Date(2011, 5, 20, 0, 0, 0, 0, time.UTC))
	storeMeasurement(t, s, schema, "record-1", "glucose", 130, time.Date(2011, 6, 3, 0, 0, 0, 0, time.UTC))

	rel := NewRelation(schema.Table).
		GroupByBucket(DateBucket{Column: "date_measured", Alias: "month", Unit: fact.UnitMonth}).
		WithAggregate(fact.AggCount, "value").
		OrderBy(OrderKey{Column: "month"})

	rows, err := s.FetchGroups(ctx, rel)
	if err != nil {
		t.Fatalf("FetchGroups: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d buckets, want 2", len(rows))
	}
	if rows[0]["month"] != "2011-05" || rows[0][fact.AggregateKey] != int64(2) {
		t.Errorf("may bucket = %v", rows[0])
	}
	if rows[1]["month"] != "2011-06" || rows[1][fact.AggregateKey] != int64(1) {
		t.Errorf("june bucket = %v", rows[1])
	}
}

func TestMemoryStoreFetchScalar(t *testing.T) {
	s := NewMemoryStore()
	schema := measurementSchema(t)
	ctx := context.Background()

	day := time.Date(2011, 6, 1, 0, 0, 0, 0, time.UTC)
	storeMeasurement(t, s, schema, "record-1", "glucose", 90, day)
	storeMeasurement(t, s, schema, "record-1", "glucose", 110, day)

	tests := []struct {
		name string
		op   fact.AggregateOp
		want any
	}{
		{name: "count", op: fact.AggCount, want: int64(2)},
		{name: "sum", op: fact.AggSum, want: 200.0},
		{name: "avg", op: fact.AggAvg, want: 100.0},
		{name: "max", op: fact.AggMax, want: 110.0},
		{name: "min", op: fact.AggMin, want: 90.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rel := NewRelation(schema.Table).WithAggregate(tt.op, "value")
			row, err := s.FetchScalar(ctx, rel)
			if err != nil {
				t.Fatalf("FetchScalar: %v", err)
			}
			if row[fact.AggregateKey] != tt.want {
				t.Errorf("%s = %v (%T), want %v (%T)", tt.op, row[fact.AggregateKey], row[fact.AggregateKey], tt.want, tt.want)
			}
		})
	}

	// Sum over an empty relation yields a null aggregate, as in SQL.
	empty := NewRelation(schema.Table).
		Where(Eq("name", "heart_rate")).
		WithAggregate(fact.AggSum, "value")
	row, err := s.FetchScalar(ctx, empty)
	if err != nil {
		t.Fatalf("FetchScalar: %v", err)
	}
	if row[fact.AggregateKey] != nil {
		t.Errorf("empty sum = %v, want nil", row[fact.AggregateKey])
	}
}

func TestMemoryStoreCarenets(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.AddToCarenet(ctx, "carenet-1", "fact-b"); err != nil {
		t.Fatalf("AddToCarenet: %v", err)
	}
	if err := s.AddToCarenet(ctx, "carenet-1", "fact-a"); err != nil {
		t.Fatalf("AddToCarenet: %v", err)
	}

	ids, err := s.MemberFactIDs(ctx, "carenet-1")
	if err != nil {
		t.Fatalf("MemberFactIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "fact-a" || ids[1] != "fact-b" {
		t.Errorf("MemberFactIDs = %v, want sorted [fact-a fact-b]", ids)
	}

	other, err := s.MemberFactIDs(ctx, "carenet-2")
	if err != nil {
		t.Fatalf("MemberFactIDs: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("unknown carenet returned %v", other)
	}
}

func TestMemoryStoreDeleteOlderThan(t *testing.T) {
	s := NewMemoryStore()
	schema := measurementSchema(t)
	ctx := context.Background()

	storeMeasurement(t, s, schema, "record-1", "glucose", 90, time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC))
	storeMeasurement(t, s, schema, "record-1", "glucose", 110, time.Date(2011, 6, 1, 0, 0, 0, 0, time.UTC))

	// Created is stamped at Store time; age the first fact directly.
	s.mu.Lock()
	s.tables[schema.Table][0].fact.Created = time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	s.mu.Unlock()

	deleted, err := s.DeleteOlderThan(ctx, schema.Table, time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if s.Size(schema.Table) != 1 {
		t.Errorf("Size = %d, want 1", s.Size(schema.Table))
	}
}

func TestMemoryStorePingAndClose(t *testing.T) {
	s := NewMemoryStore()
	schema := measurementSchema(t)

	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}

	storeMeasurement(t, s, schema, "record-1", "glucose", 90, time.Date(2011, 6, 1, 0, 0, 0, 0, time.UTC))
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if s.Size(schema.Table) != 0 {
		t.Errorf("Size after Close = %d, want 0", s.Size(schema.Table))
	}
}
