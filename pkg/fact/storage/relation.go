package storage

import (
	"context"

	"carelog/factstore/pkg/fact"
)

// Fixed columns every fact table carries.
const (
	IDColumn      = "id"
	RecordColumn  = "record_id"
	StatusColumn  = "status"
	CreatedColumn = "created_at"
)

// PredicateOp is the comparison a predicate applies.
type PredicateOp int

const (
	// OpEq is an equality comparison.
	OpEq PredicateOp = iota
	// OpIn is a membership test against a value set.
	OpIn
	// OpGTE is a greater-than-or-equal comparison.
	OpGTE
	// OpLTE is a less-than-or-equal comparison.
	OpLTE
)

// Predicate restricts a relation to rows whose column satisfies the
// comparison. Value holds the operand for OpEq/OpGTE/OpLTE; Values holds
// the member set for OpIn.
type Predicate struct {
	Column string
	Op     PredicateOp
	Value  any
	Values []any
}

// Eq builds an equality predicate.
func Eq(column string, value any) Predicate {
	return Predicate{Column: column, Op: OpEq, Value: value}
}

// In builds a membership predicate.
func In(column string, values []any) Predicate {
	return Predicate{Column: column, Op: OpIn, Values: values}
}

// GTE builds a greater-than-or-equal predicate.
func GTE(column string, value any) Predicate {
	return Predicate{Column: column, Op: OpGTE, Value: value}
}

// LTE builds a less-than-or-equal predicate.
func LTE(column string, value any) Predicate {
	return Predicate{Column: column, Op: OpLTE, Value: value}
}

// OrderKey is one sort key of a relation. Column names a backing column,
// unless Alias is set, in which case it names a computed result alias (the
// aggregate value or a date-bucket key).
type OrderKey struct {
	Column string
	Alias  bool
	Desc   bool
}

// Aggregate is an aggregate expression over a column.
type Aggregate struct {
	Op     fact.AggregateOp
	Column string
}

// DateBucket groups a date column by a formatted-string expression at the
// unit's granularity. The concrete expression is a property of the
// backend's dialect; the bucketed key appears in results under Alias.
type DateBucket struct {
	Column string
	Alias  string
	Unit   fact.TimeUnit
}

// Relation is a lazily-composed query over one fact table. Builder methods
// return a modified copy; nothing touches the backing store until a
// Backend materializes the relation at a count or fetch. This keeps the
// pre-slice total count correct and the round trips minimal.
type Relation struct {
	Table string

	Preds []Predicate

	// GroupColumn projects the relation down to distinct values of one
	// column, exposed in results under GroupAlias. Empty means ungrouped.
	GroupColumn string
	GroupAlias  string

	// Bucket replaces plain grouping with date bucketing.
	Bucket *DateBucket

	// Agg annotates groups with an aggregate value, or reduces the whole
	// relation when ungrouped.
	Agg *Aggregate

	Orders []OrderKey

	// Limit of 0 means the relation is unsliced.
	Offset int
	Limit  int
}

// NewRelation creates an unrestricted relation over a table.
func NewRelation(table string) *Relation {
	return &Relation{Table: table}
}

func (r *Relation) clone() *Relation {
	c := *r
	c.Preds = append([]Predicate(nil), r.Preds...)
	c.Orders = append([]OrderKey(nil), r.Orders...)
	return &c
}

// Where returns the relation restricted by an additional predicate. All
// predicates combine with logical AND.
func (r *Relation) Where(p Predicate) *Relation {
	c := r.clone()
	c.Preds = append(c.Preds, p)
	return c
}

// GroupBy returns the relation projected to distinct values of column,
// exposed under alias.
func (r *Relation) GroupBy(column, alias string) *Relation {
	c := r.clone()
	c.GroupColumn = column
	c.GroupAlias = alias
	c.Bucket = nil
	return c
}

// GroupByBucket returns the relation grouped by the formatted date bucket
// of a column. Subsequent references to the group key use the bucket alias.
func (r *Relation) GroupByBucket(b DateBucket) *Relation {
	c := r.clone()
	c.GroupColumn = b.Column
	c.GroupAlias = b.Alias
	c.Bucket = &b
	return c
}

// WithAggregate returns the relation annotated with an aggregate
// expression.
func (r *Relation) WithAggregate(op fact.AggregateOp, column string) *Relation {
	c := r.clone()
	c.Agg = &Aggregate{Op: op, Column: column}
	return c
}

// OrderBy returns the relation ordered by the given keys, replacing any
// previous ordering.
func (r *Relation) OrderBy(keys ...OrderKey) *Relation {
	c := r.clone()
	c.Orders = keys
	return c
}

// ClearOrder returns the relation with any incidental ordering removed.
// An explicit clear avoids undefined interaction between default ordering
// and grouping.
func (r *Relation) ClearOrder() *Relation {
	c := r.clone()
	c.Orders = nil
	return c
}

// Slice returns the relation restricted to [offset, offset+limit).
func (r *Relation) Slice(offset, limit int) *Relation {
	c := r.clone()
	c.Offset = offset
	c.Limit = limit
	return c
}

// Grouped reports whether the relation has an active group key.
func (r *Relation) Grouped() bool {
	return r.GroupColumn != ""
}

// ScopeFilter narrows the visible rows of a relation by an externally
// defined authorization boundary. The query engine treats it as opaque
// and composes it before field filters.
type ScopeFilter func(*Relation) *Relation

// Backend is a queryable store of fact relations. Implementations must be
// safe for concurrent use. The Dialect token exists solely to select the
// date-bucket format dialect.
type Backend interface {
	// Dialect identifies the backend's date-formatting dialect.
	Dialect() Dialect

	// Count returns the number of rows in the relation: matching facts
	// when ungrouped, distinct group keys when grouped.
	Count(ctx context.Context, r *Relation) (int, error)

	// FetchFacts materializes an ungrouped relation as fact instances.
	FetchFacts(ctx context.Context, schema *fact.Schema, r *Relation) ([]*fact.Fact, error)

	// FetchGroups materializes a grouped, aggregated relation as one row
	// per distinct group key.
	FetchGroups(ctx context.Context, r *Relation) ([]fact.GroupRow, error)

	// FetchScalar reduces an ungrouped, aggregated relation to a single
	// row holding the aggregate value.
	FetchScalar(ctx context.Context, r *Relation) (fact.GroupRow, error)

	// Store persists a fact, assigning an ID when absent.
	Store(ctx context.Context, schema *fact.Schema, f *fact.Fact) error

	// Close releases resources held by the backend.
	Close() error
}
