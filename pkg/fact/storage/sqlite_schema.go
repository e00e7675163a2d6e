package storage

import (
	"fmt"
	"sort"
	"strings"

	"carelog/factstore/pkg/fact"
)

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// baseDDL holds the tables every deployment carries: schema version
// tracking and the carenet membership relation used by the stock access
// scope filter.
const baseDDL = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS carenet_facts (
    carenet_id TEXT NOT NULL,
    fact_id TEXT NOT NULL,
    PRIMARY KEY (carenet_id, fact_id)
);

CREATE INDEX IF NOT EXISTS idx_carenet_facts_fact ON carenet_facts(fact_id);
`

// InsertSchemaVersion records the schema version, ignoring re-runs.
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?);`

// GetSchemaVersion retrieves the highest applied schema version.
const GetSchemaVersion = `SELECT MAX(version) FROM schema_version;`

// columnType maps a declared field type to its SQLite column type.
func columnType(t fact.FieldType) string {
	switch t {
	case fact.TypeNumber:
		return "REAL"
	case fact.TypeDate:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// TableDDL renders the CREATE TABLE statement of a record type's fact
// table: the fixed columns every fact carries plus the schema's typed
// columns, with indexes on the record scope and creation time.
func TableDDL(s *fact.Schema) string {
	cols := []string{
		fmt.Sprintf("%s TEXT PRIMARY KEY", IDColumn),
		fmt.Sprintf("%s TEXT", RecordColumn),
		fmt.Sprintf("%s TEXT NOT NULL DEFAULT 'active'", StatusColumn),
		fmt.Sprintf("%s TIMESTAMP NOT NULL", CreatedColumn),
	}
	fixed := map[string]bool{
		IDColumn: true, RecordColumn: true, StatusColumn: true, CreatedColumn: true,
	}

	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f := s.Fields[name]
		if fixed[f.Column] {
			continue
		}
		fixed[f.Column] = true
		cols = append(cols, fmt.Sprintf("%s %s", f.Column, columnType(f.Type)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n    %s\n);\n", s.Table, strings.Join(cols, ",\n    "))
	fmt.Fprintf(&b, "CREATE INDEX IF NOT EXISTS idx_%s_record ON %s(%s);\n", s.Table, s.Table, RecordColumn)
	fmt.Fprintf(&b, "CREATE INDEX IF NOT EXISTS idx_%s_created ON %s(%s);\n", s.Table, s.Table, CreatedColumn)
	return b.String()
}

// tableColumns returns the physical column list of a record type's table
// in DDL order: the fixed columns first, then the schema's typed columns.
func tableColumns(s *fact.Schema) []string {
	cols := []string{IDColumn, RecordColumn, StatusColumn, CreatedColumn}
	seen := map[string]bool{
		IDColumn: true, RecordColumn: true, StatusColumn: true, CreatedColumn: true,
	}
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f := s.Fields[name]
		if seen[f.Column] {
			continue
		}
		seen[f.Column] = true
		cols = append(cols, f.Column)
	}
	return cols
}
