package storage

import (
	"testing"

	"carelog/factstore/pkg/fact"
)

func TestRelationBuilderCopies(t *testing.T) {
	base := NewRelation("measurement_facts").Where(Eq(StatusColumn, "active"))

	narrowed := base.Where(Eq("name", "hba1c"))
	if len(base.Preds) != 1 {
		t.Errorf("base relation mutated: %d predicates, want 1", len(base.Preds))
	}
	if len(narrowed.Preds) != 2 {
		t.Errorf("narrowed relation has %d predicates, want 2", len(narrowed.Preds))
	}

	ordered := base.OrderBy(OrderKey{Column: "value", Desc: true})
	if len(base.Orders) != 0 {
		t.Error("OrderBy mutated the receiver")
	}
	if len(ordered.Orders) != 1 || !ordered.Orders[0].Desc {
		t.Errorf("ordered.Orders = %+v, want one descending key", ordered.Orders)
	}
	if cleared := ordered.ClearOrder(); len(cleared.Orders) != 0 {
		t.Error("ClearOrder left ordering in place")
	}
}

func TestRelationGrouping(t *testing.T) {
	r := NewRelation("measurement_facts")
	if r.Grouped() {
		t.Error("fresh relation should not be grouped")
	}

	grouped := r.GroupBy("name", "name")
	if !grouped.Grouped() {
		t.Error("GroupBy should mark the relation grouped")
	}
	if grouped.Bucket != nil {
		t.Error("plain GroupBy should not carry a bucket")
	}

	bucketed := grouped.GroupByBucket(DateBucket{
		Column: "date_measured",
		Alias:  "month",
		Unit:   fact.UnitMonth,
	})
	if bucketed.Bucket == nil {
		t.Fatal("GroupByBucket should carry a bucket")
	}
	if bucketed.GroupAlias != "month" {
		t.Errorf("GroupAlias = %q, want %q", bucketed.GroupAlias, "month")
	}
	// Bucket grouping replaces plain grouping on the copy only.
	if grouped.Bucket != nil || grouped.GroupAlias != "name" {
		t.Error("GroupByBucket mutated the receiver")
	}
}

func TestRelationAggregateAndSlice(t *testing.T) {
	r := NewRelation("measurement_facts").
		WithAggregate(fact.AggAvg, "value").
		Slice(20, 10)

	if r.Agg == nil || r.Agg.Op != fact.AggAvg || r.Agg.Column != "value" {
		t.Errorf("Agg = %+v, want avg over value", r.Agg)
	}
	if r.Offset != 20 || r.Limit != 10 {
		t.Errorf("slice = [%d, %d), want [20, 30)", r.Offset, r.Offset+r.Limit)
	}
}

func TestPredicateConstructors(t *testing.T) {
	if p := Eq("status", "active"); p.Op != OpEq || p.Value != "active" {
		t.Errorf("Eq built %+v", p)
	}
	if p := In("value", []any{70.0, 75.0}); p.Op != OpIn || len(p.Values) != 2 {
		t.Errorf("In built %+v", p)
	}
	if p := GTE("value", 70.0); p.Op != OpGTE {
		t.Errorf("GTE built %+v", p)
	}
	if p := LTE("value", 80.0); p.Op != OpLTE {
		t.Errorf("LTE built %+v", p)
	}
}
