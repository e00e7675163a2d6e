// Package fact defines the core types of the clinical fact store: typed
// field schemas per record type, the query option bag, result shapes, and
// the validation errors of the query API.
//
// # Facts and Schemas
//
// A fact is a single record entry of a given record type (a lab result, an
// allergy entry). Each record type exposes a set of typed query fields
// through a Schema, mapping exposed field names to backing columns:
//
//	schema, _ := registry.Lookup("measurement")
//	field, err := schema.Resolve("value") // Field{Column: "value", Type: TypeNumber}
//
// Every field referenced in a query must resolve through the schema; an
// unknown name fails with InvalidFieldError naming the record type and the
// offending field.
//
// # Typed Coercion
//
// Client input arrives as untrusted strings. Coerce converts a raw value
// according to the field's declared type (string: identity, date: ISO-8601
// parse, number: floating-point parse) and reports a precise cause on
// failure instead of silently dropping the filter.
//
// # Query Modes
//
// A query runs in exactly one of three modes, decided up front from the
// option bag by QueryOptions.Mode:
//
//   - ModeList: plain listing of raw fact instances
//   - ModeGrouped: one aggregate value per distinct group key
//   - ModeFlatAggregate: a single scalar reduction of the whole relation
//
// Grouping without an aggregation is rejected (MissingAggregationError),
// as is requesting both plain and date grouping (GroupConflictError).
//
// # Error Handling
//
// All query validation failures are user-input errors carrying the
// offending field, operator or value. They are raised synchronously at the
// stage that detects them and propagate to the caller unchanged;
// IsQueryInputError distinguishes them from backend faults (StorageError).
package fact
