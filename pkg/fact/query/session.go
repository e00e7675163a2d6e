package query

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"carelog/factstore/pkg/fact"
	"carelog/factstore/pkg/fact/storage"
)

// Params are the construction parameters of a query session.
type Params struct {
	// Schema is the record type's field schema; every field referenced in
	// the options must resolve through it.
	Schema *fact.Schema

	// Backend is the backing store the compiled relation runs against.
	Backend storage.Backend

	// Options is the parsed, immutable option bag of the request.
	Options *fact.QueryOptions

	// RecordID restricts the query to one record's facts. Ignored for
	// record-type-agnostic schemas such as audit entries.
	RecordID string

	// Scope is an optional opaque access filter (carenet), composed into
	// the relation before field filters.
	Scope storage.ScopeFilter

	// FactID requests a single-instance lookup, bypassing the compilation
	// pipeline.
	FactID string

	// RequestURL is the original request URL, kept for continuation-URL
	// reconstruction.
	RequestURL string
}

// Session compiles and executes one faceted query. Stages run in a fixed
// order (filter, group, aggregate, order, paginate) because later stages
// depend on group-key aliases introduced by earlier ones. A session is
// single-use and not safe for concurrent access.
type Session struct {
	schema     *fact.Schema
	backend    storage.Backend
	opts       *fact.QueryOptions
	recordID   string
	scope      storage.ScopeFilter
	factID     string
	requestURL string
	logger     *slog.Logger

	// Populated by Execute.
	executed bool
	mode     fact.QueryMode
	total    int
	results  *fact.ResultSet
}

// New creates a session from construction parameters. Options may be nil
// for a bare listing.
func New(p Params) *Session {
	opts := p.Options
	if opts == nil {
		opts = &fact.QueryOptions{}
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return &Session{
		schema:     p.Schema,
		backend:    p.Backend,
		opts:       opts,
		recordID:   p.RecordID,
		scope:      p.Scope,
		factID:     p.FactID,
		requestURL: p.RequestURL,
		logger:     slog.Default().With("component", "fact.query", "record_type", p.Schema.Type),
	}
}

// Execute compiles the query plan and materializes results. The first
// call computes and caches; subsequent calls are no-ops reusing the
// cached result set and total count.
func (s *Session) Execute(ctx context.Context) error {
	if s.executed {
		return nil
	}

	if s.factID != "" {
		if err := s.executeInstance(ctx); err != nil {
			return err
		}
		s.executed = true
		return nil
	}

	mode, err := s.opts.Mode()
	if err != nil {
		return err
	}
	s.mode = mode

	rel := storage.NewRelation(s.schema.Table)
	if rel, err = s.applyFilters(rel); err != nil {
		return err
	}
	if rel, err = s.applyGrouping(rel); err != nil {
		return err
	}
	if rel, err = s.applyAggregation(rel); err != nil {
		return err
	}
	// A single scalar has no order.
	if s.mode != fact.ModeFlatAggregate {
		if rel, err = s.applyOrdering(rel); err != nil {
			return err
		}
	}
	if err = s.paginate(ctx, rel); err != nil {
		return err
	}

	s.executed = true
	s.logger.Debug("query executed",
		"mode", s.mode.String(),
		"total", s.total,
		"returned", s.results.Len(),
	)
	return nil
}

// executeInstance is the single-instance lookup path: one ID equality
// predicate, count by materialized length.
func (s *Session) executeInstance(ctx context.Context) error {
	rel := storage.NewRelation(s.schema.Table).Where(storage.Eq(storage.IDColumn, s.factID))
	facts, err := s.backend.FetchFacts(ctx, s.schema, rel)
	if err != nil {
		return err
	}
	s.total = len(facts)
	s.results = &fact.ResultSet{Shape: fact.ShapeFacts, Facts: facts}
	return nil
}

// applyFilters compiles the predicate set: record scope, access scope,
// field filters, status, and date range, combined with logical AND.
func (s *Session) applyFilters(rel *storage.Relation) (*storage.Relation, error) {
	if s.schema.RecordScoped && s.recordID != "" {
		rel = rel.Where(storage.Eq(storage.RecordColumn, s.recordID))
	}
	if s.scope != nil {
		rel = s.scope(rel)
	}

	for name, raw := range s.opts.Filters {
		field, err := s.schema.Resolve(name)
		if err != nil {
			return nil, err
		}
		tokens := strings.Split(raw, fact.FilterSetDelimiter)
		if len(tokens) == 1 {
			v, err := fact.Coerce(field.Type, tokens[0])
			if err != nil {
				return nil, fact.NewInvalidFilterValueError(name, field.Type, raw, err)
			}
			rel = rel.Where(storage.Eq(field.Column, v))
			continue
		}
		members := make([]any, 0, len(tokens))
		for _, token := range tokens {
			v, err := fact.Coerce(field.Type, token)
			if err != nil {
				return nil, fact.NewInvalidFilterValueError(name, field.Type, raw, err)
			}
			members = append(members, v)
		}
		rel = rel.Where(storage.In(field.Column, members))
	}

	if s.opts.Status != "" {
		rel = rel.Where(storage.Eq(storage.StatusColumn, s.opts.Status))
	}

	if dr := s.opts.DateRange; dr != nil {
		field, err := s.schema.Resolve(dr.Field)
		if err != nil {
			return nil, err
		}
		if field.Type != fact.TypeDate {
			return nil, fact.NewInvalidDateRangeFieldError(dr.Field, field.Type)
		}
		if dr.Start != nil {
			rel = rel.Where(storage.GTE(field.Column, *dr.Start))
		}
		if dr.End != nil {
			rel = rel.Where(storage.LTE(field.Column, *dr.End))
		}
	}

	return rel, nil
}

// applyGrouping compiles the group key. Plain grouping projects to
// distinct values of the field's column; date grouping groups by the
// backend-formatted bucket string, aliased by the unit name. An ungrouped
// relation passes through untouched.
func (s *Session) applyGrouping(rel *storage.Relation) (*storage.Relation, error) {
	switch {
	case s.opts.GroupBy != "":
		field, err := s.schema.Resolve(s.opts.GroupBy)
		if err != nil {
			return nil, err
		}
		return rel.GroupBy(field.Column, s.opts.GroupBy), nil

	case s.opts.DateGroup != nil:
		dg := s.opts.DateGroup
		field, err := s.schema.Resolve(dg.Field)
		if err != nil {
			return nil, err
		}
		if field.Type != fact.TypeDate {
			return nil, fact.NewInvalidDateGroupFieldError(dg.Field, field.Type)
		}
		return rel.GroupByBucket(storage.DateBucket{
			Column: field.Column,
			Alias:  dg.Unit.String(),
			Unit:   dg.Unit,
		}), nil

	default:
		return rel, nil
	}
}

// applyAggregation compiles the aggregate expression, either as a
// per-group annotation or as a whole-relation reduction. The mode decision
// already rejected grouping without aggregation.
func (s *Session) applyAggregation(rel *storage.Relation) (*storage.Relation, error) {
	agg := s.opts.AggregateBy
	if agg == nil {
		return rel, nil
	}
	field, err := s.schema.Resolve(agg.Field)
	if err != nil {
		return nil, err
	}
	if !agg.Op.Accepts(field.Type) {
		return nil, fact.NewIncompatibleAggregateTypeError(agg.Op, agg.Field, field.Type)
	}
	return rel.WithAggregate(agg.Op, field.Column), nil
}

// applyOrdering compiles the sort keys. With no order_by, any incidental
// ordering is cleared to avoid undefined interaction with grouping. Under
// aggregation, the order field may only reference the aggregate's field
// (reordered by the computed value) or the group key.
func (s *Session) applyOrdering(rel *storage.Relation) (*storage.Relation, error) {
	if s.opts.OrderBy == "" {
		return rel.ClearOrder(), nil
	}

	orderBy := s.opts.OrderBy
	desc := strings.HasPrefix(orderBy, "-")
	name := strings.TrimPrefix(orderBy, "-")

	field, err := s.schema.Resolve(name)
	if err != nil {
		return nil, err
	}

	var primary storage.OrderKey
	switch {
	case s.opts.AggregateBy != nil && name == s.opts.AggregateBy.Field:
		primary = storage.OrderKey{Column: fact.AggregateKey, Alias: true, Desc: desc}
	case s.mode == fact.ModeGrouped:
		if name != s.opts.GroupField() {
			return nil, fact.NewInvalidOrderFieldError(orderBy)
		}
		primary = storage.OrderKey{Column: rel.GroupAlias, Alias: true, Desc: desc}
	default:
		primary = storage.OrderKey{Column: field.Column, Desc: desc}
	}

	keys := []storage.OrderKey{primary}
	// The backing store does not guarantee stable ordering among equal
	// primary keys; ungrouped rows get the unique identifier as a
	// secondary ascending key. Grouped rows need none: group keys are
	// distinct by construction.
	if !rel.Grouped() {
		keys = append(keys, storage.OrderKey{Column: storage.IDColumn})
	}
	return rel.OrderBy(keys...), nil
}

// paginate captures the pre-slice total, applies the requested slice and
// materializes the result set. A flat aggregation is defined to have a
// total count of 1 and ignores slicing.
func (s *Session) paginate(ctx context.Context, rel *storage.Relation) error {
	if s.mode == fact.ModeFlatAggregate {
		row, err := s.backend.FetchScalar(ctx, rel)
		if err != nil {
			return err
		}
		s.total = 1
		s.results = &fact.ResultSet{Shape: fact.ShapeScalar, Rows: []fact.GroupRow{row}}
		return nil
	}

	// The total must be captured before slicing: the slice destroys the
	// ability to count the universe.
	total, err := s.backend.Count(ctx, rel)
	if err != nil {
		return err
	}
	s.total = total

	if s.opts.Limit > 0 {
		rel = rel.Slice(s.opts.Offset, s.opts.Limit)
	}

	if s.mode == fact.ModeGrouped {
		rows, err := s.backend.FetchGroups(ctx, rel)
		if err != nil {
			return err
		}
		s.results = &fact.ResultSet{Shape: fact.ShapeGroups, Rows: rows}
		return nil
	}

	facts, err := s.backend.FetchFacts(ctx, s.schema, rel)
	if err != nil {
		return err
	}
	s.results = &fact.ResultSet{Shape: fact.ShapeFacts, Facts: facts}
	return nil
}

// Results returns the materialized result set, executing the session
// first if needed.
func (s *Session) Results(ctx context.Context) (*fact.ResultSet, error) {
	if err := s.Execute(ctx); err != nil {
		return nil, err
	}
	return s.results, nil
}

// TotalCount returns the pre-slice total row or group count. Valid after
// Execute.
func (s *Session) TotalCount() int {
	return s.total
}

// Mode returns the query mode decided for this session. Valid after
// Execute.
func (s *Session) Mode() fact.QueryMode {
	return s.mode
}

// Options returns the session's option bag.
func (s *Session) Options() *fact.QueryOptions {
	return s.opts
}

// Schema returns the record type schema the session queries.
func (s *Session) Schema() *fact.Schema {
	return s.schema
}

// NextPageURL reconstructs the request URL with the offset advanced by
// one page, or returns "" when no further page exists. Executes the
// session first if needed. A next page exists iff a limit was requested
// and rows remain beyond the ones returned.
func (s *Session) NextPageURL(ctx context.Context) (string, error) {
	if err := s.Execute(ctx); err != nil {
		return "", err
	}

	if s.opts.Limit <= 0 || s.total <= s.opts.Offset+s.results.Len() {
		return "", nil
	}
	if s.requestURL == "" {
		return "", nil
	}

	u, err := url.Parse(s.requestURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("offset", strconv.Itoa(s.opts.Offset+s.opts.Limit))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
