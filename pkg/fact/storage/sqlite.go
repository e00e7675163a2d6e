package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // cgo driver, registered as "sqlite3"
	_ "modernc.org/sqlite"          // pure-Go driver, registered as "sqlite"

	"carelog/factstore/pkg/fact"
)

// Driver names selectable in the SQLite configuration.
const (
	// DriverCgo is the mattn/go-sqlite3 driver.
	DriverCgo = "cgo"
	// DriverPure is the modernc.org/sqlite driver, for builds without cgo.
	DriverPure = "pure"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver selects the SQLite driver: "cgo" (default) or "pure".
	Driver string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/facts.db",
		Driver:       DriverCgo,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements the Backend interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite storage backend and initializes the
// fact tables of every record type in the registry.
func NewSQLiteStore(config *SQLiteConfig, registry *fact.Registry) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "fact.storage.sqlite")

	driverName := "sqlite3"
	if config.Driver == DriverPure {
		driverName = "sqlite"
	}

	db, err := sql.Open(driverName, config.Path)
	if err != nil {
		return nil, fact.NewStorageError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(registry); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite storage initialized",
		"path", config.Path,
		"driver", driverName,
		"wal_mode", config.WALMode,
		"record_types", registry.Types(),
	)

	return s, nil
}

// initialize sets up pragmas and creates the fact tables.
func (s *SQLiteStore) initialize(registry *fact.Registry) error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return fact.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return fact.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(baseDDL); err != nil {
		return fact.NewStorageError("sqlite", "create_schema", err)
	}
	for _, schema := range registry.Schemas() {
		if _, err := s.db.Exec(TableDDL(schema)); err != nil {
			return fact.NewStorageError("sqlite", "create_table", fmt.Errorf("%s: %w", schema.Table, err))
		}
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return fact.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return fact.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return fact.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Dialect identifies the date-bucket format dialect.
func (s *SQLiteStore) Dialect() Dialect {
	return DialectSQLite
}

// buildWhere builds a SQL WHERE clause from the relation's predicates.
// Returns the clause (without the WHERE keyword) and the query arguments.
func buildWhere(r *Relation) (string, []any) {
	var conditions []string
	var args []any

	for _, p := range r.Preds {
		switch p.Op {
		case OpEq:
			conditions = append(conditions, p.Column+" = ?")
			args = append(args, bindValue(p.Value))
		case OpIn:
			if len(p.Values) == 0 {
				// Empty membership set matches no rows.
				conditions = append(conditions, "1 = 0")
				continue
			}
			placeholders := make([]string, len(p.Values))
			for i, v := range p.Values {
				placeholders[i] = "?"
				args = append(args, bindValue(v))
			}
			conditions = append(conditions, fmt.Sprintf("%s IN (%s)", p.Column, strings.Join(placeholders, ", ")))
		case OpGTE:
			conditions = append(conditions, p.Column+" >= ?")
			args = append(args, bindValue(p.Value))
		case OpLTE:
			conditions = append(conditions, p.Column+" <= ?")
			args = append(args, bindValue(p.Value))
		}
	}

	return strings.Join(conditions, " AND "), args
}

// bindValue normalizes typed values for the driver. Dates bind as UTC
// ISO-8601 text so comparisons against stored timestamps are lexicographic
// and driver independent.
func bindValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format("2006-01-02 15:04:05")
	}
	return v
}

// groupExpr renders the relation's group-key expression.
func (s *SQLiteStore) groupExpr(r *Relation) string {
	if r.Bucket != nil {
		return s.Dialect().BucketExpr(r.Bucket.Column, r.Bucket.Unit)
	}
	return r.GroupColumn
}

// aggExpr renders the relation's aggregate expression.
func aggExpr(a *Aggregate) string {
	var fn string
	switch a.Op {
	case fact.AggSum:
		fn = "SUM"
	case fact.AggAvg:
		fn = "AVG"
	case fact.AggMax:
		fn = "MAX"
	case fact.AggMin:
		fn = "MIN"
	case fact.AggCount:
		fn = "COUNT"
	}
	return fmt.Sprintf("%s(%s)", fn, a.Column)
}

// orderClause renders the relation's ORDER BY clause, or "" when unordered.
func orderClause(r *Relation) string {
	if len(r.Orders) == 0 {
		return ""
	}
	keys := make([]string, len(r.Orders))
	for i, k := range r.Orders {
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		keys[i] = k.Column + " " + dir
	}
	return " ORDER BY " + strings.Join(keys, ", ")
}

// sliceClause renders the relation's LIMIT/OFFSET clause, or "" when the
// relation is unsliced.
func sliceClause(r *Relation) string {
	if r.Limit <= 0 {
		return ""
	}
	clause := fmt.Sprintf(" LIMIT %d", r.Limit)
	if r.Offset > 0 {
		clause += fmt.Sprintf(" OFFSET %d", r.Offset)
	}
	return clause
}

// Count returns the number of rows in the relation before any slicing:
// matching facts when ungrouped, distinct group keys when grouped.
func (s *SQLiteStore) Count(ctx context.Context, r *Relation) (int, error) {
	where, args := buildWhere(r)

	var query string
	if r.Grouped() {
		inner := fmt.Sprintf("SELECT %s FROM %s", s.groupExpr(r), r.Table)
		if where != "" {
			inner += " WHERE " + where
		}
		inner += " GROUP BY " + s.groupExpr(r)
		query = fmt.Sprintf("SELECT COUNT(*) FROM (%s)", inner)
	} else {
		query = "SELECT COUNT(*) FROM " + r.Table
		if where != "" {
			query += " WHERE " + where
		}
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fact.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// FetchFacts materializes an ungrouped relation as fact instances.
func (s *SQLiteStore) FetchFacts(ctx context.Context, schema *fact.Schema, r *Relation) ([]*fact.Fact, error) {
	cols := tableColumns(schema)
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), r.Table)
	where, args := buildWhere(r)
	if where != "" {
		query += " WHERE " + where
	}
	query += orderClause(r)
	query += sliceClause(r)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fact.NewStorageError("sqlite", "fetch_facts", err)
	}
	defer rows.Close()

	facts := []*fact.Fact{}
	for rows.Next() {
		f, err := scanFact(rows, schema, cols)
		if err != nil {
			return nil, fact.NewStorageError("sqlite", "scan", err)
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fact.NewStorageError("sqlite", "fetch_facts", err)
	}
	return facts, nil
}

// FetchGroups materializes a grouped, aggregated relation as one row per
// distinct group key, the key under the group alias and the aggregate
// under fact.AggregateKey.
func (s *SQLiteStore) FetchGroups(ctx context.Context, r *Relation) ([]fact.GroupRow, error) {
	if !r.Grouped() || r.Agg == nil {
		return nil, fact.NewStorageError("sqlite", "fetch_groups", fmt.Errorf("relation is not grouped and aggregated"))
	}

	query := fmt.Sprintf("SELECT %s AS %s, %s AS %s FROM %s",
		s.groupExpr(r), r.GroupAlias, aggExpr(r.Agg), fact.AggregateKey, r.Table)
	where, args := buildWhere(r)
	if where != "" {
		query += " WHERE " + where
	}
	query += " GROUP BY " + s.groupExpr(r)
	query += orderClause(r)
	query += sliceClause(r)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fact.NewStorageError("sqlite", "fetch_groups", err)
	}
	defer rows.Close()

	out := []fact.GroupRow{}
	for rows.Next() {
		var key, agg any
		if err := rows.Scan(&key, &agg); err != nil {
			return nil, fact.NewStorageError("sqlite", "scan", err)
		}
		out = append(out, fact.GroupRow{
			r.GroupAlias:      normalizeValue(key),
			fact.AggregateKey: normalizeValue(agg),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fact.NewStorageError("sqlite", "fetch_groups", err)
	}
	return out, nil
}

// FetchScalar reduces an ungrouped, aggregated relation to a single row.
func (s *SQLiteStore) FetchScalar(ctx context.Context, r *Relation) (fact.GroupRow, error) {
	if r.Agg == nil {
		return nil, fact.NewStorageError("sqlite", "fetch_scalar", fmt.Errorf("relation has no aggregate"))
	}

	query := fmt.Sprintf("SELECT %s AS %s FROM %s", aggExpr(r.Agg), fact.AggregateKey, r.Table)
	where, args := buildWhere(r)
	if where != "" {
		query += " WHERE " + where
	}

	var v any
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		return nil, fact.NewStorageError("sqlite", "fetch_scalar", err)
	}
	return fact.GroupRow{fact.AggregateKey: normalizeValue(v)}, nil
}

// Store persists a fact, assigning a UUID when the ID is absent and
// defaulting status and creation time.
func (s *SQLiteStore) Store(ctx context.Context, schema *fact.Schema, f *fact.Fact) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Status == "" {
		f.Status = "active"
	}
	if f.Created.IsZero() {
		f.Created = time.Now().UTC()
	}

	cols := tableColumns(schema)
	values := make([]any, 0, len(cols))
	byColumn := fieldValuesByColumn(schema, f)
	for _, col := range cols {
		switch col {
		case IDColumn:
			values = append(values, f.ID)
		case RecordColumn:
			values = append(values, f.RecordID)
		case StatusColumn:
			values = append(values, f.Status)
		case CreatedColumn:
			values = append(values, bindValue(f.Created))
		default:
			values = append(values, bindValue(byColumn[col]))
		}
	}

	placeholders := make([]string, len(cols))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		schema.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	if _, err := s.db.ExecContext(ctx, query, values...); err != nil {
		return fact.NewStorageError("sqlite", "store", err)
	}
	return nil
}

// AddToCarenet records a fact as visible within a carenet.
func (s *SQLiteStore) AddToCarenet(ctx context.Context, carenetID, factID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO carenet_facts (carenet_id, fact_id) VALUES (?, ?)", carenetID, factID)
	if err != nil {
		return fact.NewStorageError("sqlite", "add_to_carenet", err)
	}
	return nil
}

// MemberFactIDs returns the IDs of facts visible within a carenet.
func (s *SQLiteStore) MemberFactIDs(ctx context.Context, carenetID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT fact_id FROM carenet_facts WHERE carenet_id = ?", carenetID)
	if err != nil {
		return nil, fact.NewStorageError("sqlite", "member_fact_ids", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fact.NewStorageError("sqlite", "scan", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fact.NewStorageError("sqlite", "member_fact_ids", err)
	}
	return ids, nil
}

// DeleteOlderThan removes facts created before the cutoff from a table.
// Returns the number of facts deleted. Used by retention enforcement.
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, table string, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s < ?", table, CreatedColumn), bindValue(cutoff))
	if err != nil {
		return 0, fact.NewStorageError("sqlite", "delete", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fact.NewStorageError("sqlite", "delete", err)
	}
	return count, nil
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fact.NewStorageError("sqlite", "ping", err)
	}
	return nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fact.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite storage closed")
	return nil
}

// fieldValuesByColumn maps a fact's typed field values to their backing
// columns.
func fieldValuesByColumn(schema *fact.Schema, f *fact.Fact) map[string]any {
	out := make(map[string]any, len(f.Fields))
	for name, field := range schema.Fields {
		if v, ok := f.Fields[name]; ok {
			out[field.Column] = v
		}
	}
	return out
}

// scanFact scans one row into a Fact, converting column values back to the
// fields' declared types.
func scanFact(rows *sql.Rows, schema *fact.Schema, cols []string) (*fact.Fact, error) {
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	// Reverse map: column -> (exposed name, declared type).
	type fieldRef struct {
		name string
		typ  fact.FieldType
	}
	byColumn := make(map[string]fieldRef, len(schema.Fields))
	for name, field := range schema.Fields {
		byColumn[field.Column] = fieldRef{name: name, typ: field.Type}
	}

	f := &fact.Fact{Type: schema.Type, Fields: make(map[string]any)}
	for i, col := range cols {
		v := normalizeValue(values[i])
		switch col {
		case IDColumn:
			f.ID, _ = v.(string)
		case RecordColumn:
			f.RecordID, _ = v.(string)
		case StatusColumn:
			f.Status, _ = v.(string)
		case CreatedColumn:
			if t, ok := coerceStored(fact.TypeDate, v).(time.Time); ok {
				f.Created = t
			}
		default:
			ref, ok := byColumn[col]
			if !ok || v == nil {
				continue
			}
			f.Fields[ref.name] = coerceStored(ref.typ, v)
		}
	}
	return f, nil
}

// normalizeValue maps driver-specific scan types to the small set the
// engine works with.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	default:
		return v
	}
}

// coerceStored converts a scanned column value to the field's declared
// type. Drivers differ in what they hand back for TIMESTAMP and REAL
// columns, so both native and textual representations are accepted.
func coerceStored(t fact.FieldType, v any) any {
	switch t {
	case fact.TypeDate:
		switch x := v.(type) {
		case time.Time:
			return x.UTC()
		case string:
			if parsed, err := fact.ParseISO8601(x); err == nil {
				return parsed
			}
			return x
		}
	case fact.TypeNumber:
		switch x := v.(type) {
		case int64:
			return float64(x)
		case float64:
			return x
		}
	}
	return v
}
