package fact

import (
	"fmt"
	"strings"
)

// The error types below are user-input errors raised during query
// compilation. They are never downgraded or retried: the session lets them
// propagate to the caller, which translates them into the protocol-facing
// error response.

// InvalidFieldError reports a field name absent from the record type's
// schema.
type InvalidFieldError struct {
	RecordType string
	Field      string
}

// Error implements the error interface.
func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid field for fact type %s: %s", e.RecordType, e.Field)
}

// NewInvalidFieldError creates a new InvalidFieldError.
func NewInvalidFieldError(recordType, field string) *InvalidFieldError {
	return &InvalidFieldError{RecordType: recordType, Field: field}
}

// InvalidFilterValueError reports a raw filter value that failed coercion
// to the field's declared type.
type InvalidFilterValueError struct {
	Field string
	Type  FieldType
	Value string
	Cause error
}

// Error implements the error interface.
func (e *InvalidFilterValueError) Error() string {
	return fmt.Sprintf("invalid value for field %s: expected %s, got %q", e.Field, e.Type, e.Value)
}

// Unwrap returns the underlying coercion error.
func (e *InvalidFilterValueError) Unwrap() error {
	return e.Cause
}

// NewInvalidFilterValueError creates a new InvalidFilterValueError.
func NewInvalidFilterValueError(field string, t FieldType, value string, cause error) *InvalidFilterValueError {
	return &InvalidFilterValueError{Field: field, Type: t, Value: value, Cause: cause}
}

// InvalidDateRangeFieldError reports a date-range filter over a field that
// is not of type date.
type InvalidDateRangeFieldError struct {
	Field string
	Type  FieldType
}

// Error implements the error interface.
func (e *InvalidDateRangeFieldError) Error() string {
	return fmt.Sprintf("date ranges may only be calculated over fields of type %q: got %s(%s)", TypeDate, e.Field, e.Type)
}

// NewInvalidDateRangeFieldError creates a new InvalidDateRangeFieldError.
func NewInvalidDateRangeFieldError(field string, t FieldType) *InvalidDateRangeFieldError {
	return &InvalidDateRangeFieldError{Field: field, Type: t}
}

// InvalidDateGroupFieldError reports a date-group over a field that is not
// of type date.
type InvalidDateGroupFieldError struct {
	Field string
	Type  FieldType
}

// Error implements the error interface.
func (e *InvalidDateGroupFieldError) Error() string {
	return fmt.Sprintf("date groups may only be calculated over fields of type %q: got %s(%s)", TypeDate, e.Field, e.Type)
}

// NewInvalidDateGroupFieldError creates a new InvalidDateGroupFieldError.
func NewInvalidDateGroupFieldError(field string, t FieldType) *InvalidDateGroupFieldError {
	return &InvalidDateGroupFieldError{Field: field, Type: t}
}

// InvalidTimeIncrementError reports an unknown time-bucket unit.
type InvalidTimeIncrementError struct {
	Value string
}

// Error implements the error interface.
func (e *InvalidTimeIncrementError) Error() string {
	return fmt.Sprintf("invalid date_group increment %q: must be one of %s", e.Value, strings.Join(TimeUnits, ", "))
}

// NewInvalidTimeIncrementError creates a new InvalidTimeIncrementError.
func NewInvalidTimeIncrementError(value string) *InvalidTimeIncrementError {
	return &InvalidTimeIncrementError{Value: value}
}

// InvalidAggregateOpError reports an unknown aggregation operator.
type InvalidAggregateOpError struct {
	Value string
}

// Error implements the error interface.
func (e *InvalidAggregateOpError) Error() string {
	return fmt.Sprintf("invalid aggregation operator %q: must be one of sum, avg, max, min, count", e.Value)
}

// NewInvalidAggregateOpError creates a new InvalidAggregateOpError.
func NewInvalidAggregateOpError(value string) *InvalidAggregateOpError {
	return &InvalidAggregateOpError{Value: value}
}

// IncompatibleAggregateTypeError reports an aggregate operator applied to
// a field whose declared type it does not accept.
type IncompatibleAggregateTypeError struct {
	Op    AggregateOp
	Field string
	Type  FieldType
}

// Error implements the error interface.
func (e *IncompatibleAggregateTypeError) Error() string {
	return fmt.Sprintf("cannot apply aggregate function %s to field %s (type %s)", e.Op, e.Field, e.Type)
}

// NewIncompatibleAggregateTypeError creates a new IncompatibleAggregateTypeError.
func NewIncompatibleAggregateTypeError(op AggregateOp, field string, t FieldType) *IncompatibleAggregateTypeError {
	return &IncompatibleAggregateTypeError{Op: op, Field: field, Type: t}
}

// InvalidOrderFieldError reports an order field that, while grouping is
// active, references neither the group key nor the aggregate value.
type InvalidOrderFieldError struct {
	Field string
}

// Error implements the error interface.
func (e *InvalidOrderFieldError) Error() string {
	return fmt.Sprintf("order fields in aggregations may only refer to the grouping field or the aggregate field: got %s", e.Field)
}

// NewInvalidOrderFieldError creates a new InvalidOrderFieldError.
func NewInvalidOrderFieldError(field string) *InvalidOrderFieldError {
	return &InvalidOrderFieldError{Field: field}
}

// MissingAggregationError reports a grouped query with no aggregation.
type MissingAggregationError struct{}

// Error implements the error interface.
func (e *MissingAggregationError) Error() string {
	return "cannot make grouped queries without specifying an aggregation"
}

// NewMissingAggregationError creates a new MissingAggregationError.
func NewMissingAggregationError() *MissingAggregationError {
	return &MissingAggregationError{}
}

// GroupConflictError reports a query requesting both plain grouping and
// date grouping at once.
type GroupConflictError struct {
	GroupBy   string
	DateField string
}

// Error implements the error interface.
func (e *GroupConflictError) Error() string {
	return fmt.Sprintf("group_by (%s) and date_group (%s) are mutually exclusive", e.GroupBy, e.DateField)
}

// NewGroupConflictError creates a new GroupConflictError.
func NewGroupConflictError(groupBy, dateField string) *GroupConflictError {
	return &GroupConflictError{GroupBy: groupBy, DateField: dateField}
}

// IsQueryInputError reports whether err is one of the user-input
// validation errors raised during query compilation, as opposed to a
// backend fault.
func IsQueryInputError(err error) bool {
	switch err.(type) {
	case *InvalidFieldError, *InvalidFilterValueError, *InvalidDateRangeFieldError,
		*InvalidDateGroupFieldError, *InvalidTimeIncrementError, *InvalidAggregateOpError,
		*IncompatibleAggregateTypeError, *InvalidOrderFieldError,
		*MissingAggregationError, *GroupConflictError:
		return true
	default:
		return false
	}
}

// StorageError represents an error from the storage backend. These are
// never user-input errors and propagate to the caller as-is.
type StorageError struct {
	Backend   string // Storage backend type ("sqlite", "memory", etc.)
	Operation string // Operation that failed ("count", "fetch", "store", etc.)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// RenderError represents an error while rendering query results.
type RenderError struct {
	Format      string // Output format ("json", "csv", etc.)
	RecordCount int    // Number of results being rendered
	Cause       error  // Underlying error
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	return fmt.Sprintf("render error [format=%s, record_count=%d]: %v", e.Format, e.RecordCount, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *RenderError) Unwrap() error {
	return e.Cause
}

// NewRenderError creates a new RenderError.
func NewRenderError(format string, recordCount int, cause error) *RenderError {
	return &RenderError{
		Format:      format,
		RecordCount: recordCount,
		Cause:       cause,
	}
}
