package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"carelog/factstore/pkg/fact"
)

// MemoryStore implements the Backend interface in memory. It evaluates
// predicates, grouping, aggregation and ordering over Go values and is
// intended for tests.
type MemoryStore struct {
	mu       sync.RWMutex
	tables   map[string][]*memRow
	carenets map[string]map[string]bool
}

// memRow is one stored fact plus its column-addressed values, so
// predicates written against backing columns can be evaluated directly.
type memRow struct {
	fact *fact.Fact
	cols map[string]any
}

// NewMemoryStore creates a new in-memory backend.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables:   make(map[string][]*memRow),
		carenets: make(map[string]map[string]bool),
	}
}

// Dialect identifies the date-bucket format dialect. The memory backend
// mirrors SQLite's bucket keys via BucketTime.
func (s *MemoryStore) Dialect() Dialect {
	return DialectSQLite
}

// Store persists a fact, assigning a UUID when the ID is absent.
func (s *MemoryStore) Store(ctx context.Context, schema *fact.Schema, f *fact.Fact) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Status == "" {
		f.Status = "active"
	}
	if f.Created.IsZero() {
		f.Created = time.Now().UTC()
	}

	cols := map[string]any{
		IDColumn:      f.ID,
		RecordColumn:  f.RecordID,
		StatusColumn:  f.Status,
		CreatedColumn: f.Created.UTC(),
	}
	for name, field := range schema.Fields {
		if v, ok := f.Fields[name]; ok {
			if t, isTime := v.(time.Time); isTime {
				v = t.UTC()
			}
			cols[field.Column] = v
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *f
	s.tables[schema.Table] = append(s.tables[schema.Table], &memRow{fact: &copied, cols: cols})
	return nil
}

// Count returns the number of matching facts, or of distinct group keys
// when the relation is grouped.
func (s *MemoryStore) Count(ctx context.Context, r *Relation) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.matching(r)
	if !r.Grouped() {
		return len(rows), nil
	}
	keys := make(map[string]bool)
	for _, row := range rows {
		key, _ := s.groupValue(r, row)
		keys[key] = true
	}
	return len(keys), nil
}

// FetchFacts materializes an ungrouped relation as fact instances.
func (s *MemoryStore) FetchFacts(ctx context.Context, schema *fact.Schema, r *Relation) ([]*fact.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.matching(r)
	sortRows(rows, r.Orders)
	rows = sliceRows(rows, r)

	facts := make([]*fact.Fact, 0, len(rows))
	for _, row := range rows {
		copied := *row.fact
		facts = append(facts, &copied)
	}
	return facts, nil
}

// FetchGroups materializes a grouped, aggregated relation.
func (s *MemoryStore) FetchGroups(ctx context.Context, r *Relation) ([]fact.GroupRow, error) {
	if !r.Grouped() || r.Agg == nil {
		return nil, fact.NewStorageError("memory", "fetch_groups", fmt.Errorf("relation is not grouped and aggregated"))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.matching(r)
	groups := make(map[string][]*memRow)
	values := make(map[string]any)
	order := []string{}
	for _, row := range rows {
		key, value := s.groupValue(r, row)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
			values[key] = value
		}
		groups[key] = append(groups[key], row)
	}

	out := make([]fact.GroupRow, 0, len(order))
	for _, key := range order {
		agg, err := aggregate(r.Agg, groups[key])
		if err != nil {
			return nil, fact.NewStorageError("memory", "aggregate", err)
		}
		out = append(out, fact.GroupRow{
			r.GroupAlias:      values[key],
			fact.AggregateKey: agg,
		})
	}

	sortGroupRows(out, r.Orders, r.GroupAlias)
	return sliceGroupRows(out, r), nil
}

// FetchScalar reduces an ungrouped, aggregated relation to a single row.
func (s *MemoryStore) FetchScalar(ctx context.Context, r *Relation) (fact.GroupRow, error) {
	if r.Agg == nil {
		return nil, fact.NewStorageError("memory", "fetch_scalar", fmt.Errorf("relation has no aggregate"))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	agg, err := aggregate(r.Agg, s.matching(r))
	if err != nil {
		return nil, fact.NewStorageError("memory", "aggregate", err)
	}
	return fact.GroupRow{fact.AggregateKey: agg}, nil
}

// AddToCarenet records a fact as visible within a carenet.
func (s *MemoryStore) AddToCarenet(ctx context.Context, carenetID, factID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.carenets[carenetID] == nil {
		s.carenets[carenetID] = make(map[string]bool)
	}
	s.carenets[carenetID][factID] = true
	return nil
}

// MemberFactIDs returns the IDs of facts visible within a carenet, sorted
// for determinism.
func (s *MemoryStore) MemberFactIDs(ctx context.Context, carenetID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.carenets[carenetID]))
	for id := range s.carenets[carenetID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteOlderThan removes facts created before the cutoff from a table.
func (s *MemoryStore) DeleteOlderThan(ctx context.Context, table string, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.tables[table][:0]
	var deleted int64
	for _, row := range s.tables[table] {
		if row.fact.Created.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	s.tables[table] = kept
	return deleted, nil
}

// Ping reports the backend as alive. It never fails.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close releases the backend's state.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = make(map[string][]*memRow)
	s.carenets = make(map[string]map[string]bool)
	return nil
}

// Size returns the number of facts in a table (for tests).
func (s *MemoryStore) Size(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[table])
}

// matching returns the table rows satisfying every predicate, in insertion
// order.
func (s *MemoryStore) matching(r *Relation) []*memRow {
	out := []*memRow{}
	for _, row := range s.tables[r.Table] {
		if matches(row, r.Preds) {
			out = append(out, row)
		}
	}
	return out
}

func matches(row *memRow, preds []Predicate) bool {
	for _, p := range preds {
		v := row.cols[p.Column]
		switch p.Op {
		case OpEq:
			if compareValues(v, p.Value) != 0 {
				return false
			}
		case OpIn:
			found := false
			for _, member := range p.Values {
				if compareValues(v, member) == 0 {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case OpGTE:
			if v == nil || compareValues(v, p.Value) < 0 {
				return false
			}
		case OpLTE:
			if v == nil || compareValues(v, p.Value) > 0 {
				return false
			}
		}
	}
	return true
}

// groupValue returns the dedup key and the exposed value of a row's group
// key: the bucketed string for date buckets, the raw column value
// otherwise.
func (s *MemoryStore) groupValue(r *Relation, row *memRow) (string, any) {
	v := row.cols[r.GroupColumn]
	if r.Bucket != nil {
		if t, ok := v.(time.Time); ok {
			key := BucketTime(r.Bucket.Unit, t)
			return key, key
		}
		return "", nil
	}
	return fmt.Sprintf("%v", v), v
}

// aggregate evaluates an aggregate expression over a set of rows. Null
// column values are skipped, matching SQL aggregate semantics.
func aggregate(a *Aggregate, rows []*memRow) (any, error) {
	var values []any
	for _, row := range rows {
		if v, ok := row.cols[a.Column]; ok && v != nil {
			values = append(values, v)
		}
	}

	switch a.Op {
	case fact.AggCount:
		return int64(len(values)), nil
	case fact.AggSum, fact.AggAvg:
		var sum float64
		for _, v := range values {
			n, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("aggregate %s over non-number value %v", a.Op, v)
			}
			sum += n
		}
		if a.Op == fact.AggAvg {
			if len(values) == 0 {
				return nil, nil
			}
			return sum / float64(len(values)), nil
		}
		if len(values) == 0 {
			return nil, nil
		}
		return sum, nil
	case fact.AggMax, fact.AggMin:
		if len(values) == 0 {
			return nil, nil
		}
		best := values[0]
		for _, v := range values[1:] {
			c := compareValues(v, best)
			if (a.Op == fact.AggMax && c > 0) || (a.Op == fact.AggMin && c < 0) {
				best = v
			}
		}
		return best, nil
	default:
		return int64(len(values)), nil
	}
}

// compareValues orders two typed values. Nil sorts first; mixed types
// compare by their formatted form as a last resort.
func compareValues(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			default:
				return 0
			}
		}
	case int64:
		if y, ok := b.(int64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			default:
				return 0
			}
		}
		if y, ok := b.(float64); ok {
			return compareValues(float64(x), y)
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			switch {
			case x.Before(y):
				return -1
			case x.After(y):
				return 1
			default:
				return 0
			}
		}
	case string:
		if y, ok := b.(string); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			default:
				return 0
			}
		}
	}
	as, bs := fmt.Sprintf("%v", a), fmt.Sprintf("%v", b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func sortRows(rows []*memRow, orders []OrderKey) {
	if len(orders) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range orders {
			c := compareValues(rows[i].cols[k.Column], rows[j].cols[k.Column])
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func sortGroupRows(rows []fact.GroupRow, orders []OrderKey, alias string) {
	if len(orders) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range orders {
			key := k.Column
			// Group rows only carry the group alias and the aggregate
			// value; any other key cannot discriminate.
			if key != alias && key != fact.AggregateKey {
				continue
			}
			c := compareValues(rows[i][key], rows[j][key])
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func sliceRows(rows []*memRow, r *Relation) []*memRow {
	if r.Limit <= 0 {
		return rows
	}
	start := r.Offset
	if start > len(rows) {
		return nil
	}
	end := start + r.Limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

func sliceGroupRows(rows []fact.GroupRow, r *Relation) []fact.GroupRow {
	if r.Limit <= 0 {
		return rows
	}
	start := r.Offset
	if start > len(rows) {
		return nil
	}
	end := start + r.Limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}
