// Package storage provides the queryable backing store of the fact store.
//
// # Relations
//
// A Relation is a lazily-composed query over one fact table. Each builder
// method returns a modified copy; nothing touches the store until a
// Backend materializes the relation:
//
//	rel := storage.NewRelation("measurements").
//	    Where(storage.Eq("record_id", recordID)).
//	    Where(storage.GTE("date_measured", start)).
//	    GroupBy("name", "name").
//	    WithAggregate(fact.AggAvg, "value").
//	    OrderBy(storage.OrderKey{Column: "name"})
//
//	total, err := backend.Count(ctx, rel)
//	rows, err := backend.FetchGroups(ctx, rel.Slice(0, 10))
//
// Late materialization keeps the pre-slice total count correct and limits
// round trips to exactly one count and one fetch per query.
//
// # Backends
//
//   - SQLite: production backend over database/sql, selectable between the
//     cgo and pure-Go drivers
//   - Memory: in-process evaluation for tests
//
// # Date-Bucket Dialects
//
// Grouping a date field by a time unit formats the column into a bucket
// string. The concrete expression depends on the backend's dialect:
// SQLite's strftime, Postgres's to_char, MySQL's date_format. The Dialect
// enum maps each supported time-bucket unit to the backend's format
// template and is selected once at startup from configuration.
package storage
