package fact

import (
	"fmt"
	"time"
)

// FieldType is the declared type of an exposed query field. Every value a
// client supplies for a field is coerced according to its FieldType before
// it reaches the backing store.
type FieldType int

const (
	// TypeString fields pass client values through unchanged.
	TypeString FieldType = iota
	// TypeDate fields coerce client values with the ISO-8601 parser.
	TypeDate
	// TypeNumber fields coerce client values with a floating-point parse.
	TypeNumber
)

// String returns the client-facing name of the field type.
func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeDate:
		return "date"
	case TypeNumber:
		return "number"
	default:
		return fmt.Sprintf("fieldtype(%d)", int(t))
	}
}

// ParseFieldType parses a client-facing field type name.
func ParseFieldType(s string) (FieldType, error) {
	switch s {
	case "string":
		return TypeString, nil
	case "date":
		return TypeDate, nil
	case "number":
		return TypeNumber, nil
	default:
		return TypeString, fmt.Errorf("unknown field type: %q", s)
	}
}

// AggregateOp is an aggregation operator applied either as a per-group
// annotation or as a whole-relation reduction.
type AggregateOp int

const (
	AggSum AggregateOp = iota
	AggAvg
	AggMax
	AggMin
	AggCount
)

// String returns the client-facing operator name.
func (op AggregateOp) String() string {
	switch op {
	case AggSum:
		return "sum"
	case AggAvg:
		return "avg"
	case AggMax:
		return "max"
	case AggMin:
		return "min"
	case AggCount:
		return "count"
	default:
		return fmt.Sprintf("aggregateop(%d)", int(op))
	}
}

// ParseAggregateOp parses a client-facing aggregate operator name.
func ParseAggregateOp(s string) (AggregateOp, bool) {
	switch s {
	case "sum":
		return AggSum, true
	case "avg":
		return AggAvg, true
	case "max":
		return AggMax, true
	case "min":
		return AggMin, true
	case "count":
		return AggCount, true
	default:
		return AggSum, false
	}
}

// Accepts reports whether the operator may be applied to a field of the
// given declared type. Sum and avg only make sense over numbers, max and
// min additionally over dates, and count over anything.
func (op AggregateOp) Accepts(t FieldType) bool {
	switch op {
	case AggSum, AggAvg:
		return t == TypeNumber
	case AggMax, AggMin:
		return t == TypeNumber || t == TypeDate
	case AggCount:
		return true
	default:
		return false
	}
}

// TimeUnit is a named granularity used to bucket date values.
type TimeUnit int

const (
	UnitHour TimeUnit = iota
	UnitDay
	UnitWeek
	UnitMonth
	UnitYear
	UnitHourOfDay
	UnitDayOfWeek
	UnitWeekOfYear
	UnitMonthOfYear
)

// TimeUnits lists every supported bucket unit in client-facing form.
var TimeUnits = []string{
	"hour", "day", "week", "month", "year",
	"hourofday", "dayofweek", "weekofyear", "monthofyear",
}

// String returns the client-facing unit name. The name doubles as the
// column alias under which bucketed group keys appear in results.
func (u TimeUnit) String() string {
	switch u {
	case UnitHour:
		return "hour"
	case UnitDay:
		return "day"
	case UnitWeek:
		return "week"
	case UnitMonth:
		return "month"
	case UnitYear:
		return "year"
	case UnitHourOfDay:
		return "hourofday"
	case UnitDayOfWeek:
		return "dayofweek"
	case UnitWeekOfYear:
		return "weekofyear"
	case UnitMonthOfYear:
		return "monthofyear"
	default:
		return fmt.Sprintf("timeunit(%d)", int(u))
	}
}

// ParseTimeUnit parses a client-facing bucket unit name.
func ParseTimeUnit(s string) (TimeUnit, bool) {
	switch s {
	case "hour":
		return UnitHour, true
	case "day":
		return UnitDay, true
	case "week":
		return UnitWeek, true
	case "month":
		return UnitMonth, true
	case "year":
		return UnitYear, true
	case "hourofday":
		return UnitHourOfDay, true
	case "dayofweek":
		return UnitDayOfWeek, true
	case "weekofyear":
		return UnitWeekOfYear, true
	case "monthofyear":
		return UnitMonthOfYear, true
	default:
		return UnitHour, false
	}
}

// FilterSetDelimiter separates the members of a set-valued filter. A raw
// filter value containing the delimiter produces a membership predicate
// instead of an equality predicate.
const FilterSetDelimiter = "|"

// AggregateKey is the result key under which computed aggregate values
// appear, both in grouped rows and in flat aggregations.
const AggregateKey = "aggregate_value"

// GroupSentinel is the group-field value of an ungrouped relation.
const GroupSentinel = "all"

// DateGroup requests bucketed grouping of a date field.
type DateGroup struct {
	Field string
	Unit  TimeUnit
}

// AggregateBy requests an aggregation of a field.
type AggregateBy struct {
	Field string
	Op    AggregateOp
}

// DateRange restricts a date field to an inclusive interval. Either bound
// may be nil, leaving that side open. The bounds are parsed values, not
// raw client strings.
type DateRange struct {
	Field string
	Start *time.Time
	End   *time.Time
}

// QueryOptions is the full option bag of one query, immutable once parsed.
type QueryOptions struct {
	GroupBy     string
	DateGroup   *DateGroup
	AggregateBy *AggregateBy

	// OrderBy is an exposed field name, optionally prefixed with "-" for
	// descending order.
	OrderBy string

	// Limit of 0 means unbounded. Offset is always non-negative; negative
	// values are normalized to 0 at parse time.
	Limit  int
	Offset int

	Status    string
	DateRange *DateRange

	// Filters maps exposed field names to raw string values. A value may
	// encode a set using FilterSetDelimiter.
	Filters map[string]string
}

// QueryMode is the single up-front decision of how a query executes.
// Exactly one mode applies per query; the stage compilers consult it
// instead of re-deriving the grouping/aggregation state.
type QueryMode int

const (
	// ModeList returns raw fact instances.
	ModeList QueryMode = iota
	// ModeGrouped returns one aggregate value per distinct group key.
	ModeGrouped
	// ModeFlatAggregate reduces the whole relation to a single scalar.
	ModeFlatAggregate
)

// String returns the mode name, used in logs and metrics labels.
func (m QueryMode) String() string {
	switch m {
	case ModeList:
		return "list"
	case ModeGrouped:
		return "grouped"
	case ModeFlatAggregate:
		return "aggregate"
	default:
		return fmt.Sprintf("querymode(%d)", int(m))
	}
}

// Mode decides the query mode from the option bag. Grouping without an
// aggregation is rejected here, as is requesting both plain and date
// grouping at once.
func (o *QueryOptions) Mode() (QueryMode, error) {
	if o.GroupBy != "" && o.DateGroup != nil {
		return ModeList, NewGroupConflictError(o.GroupBy, o.DateGroup.Field)
	}
	grouped := o.GroupBy != "" || o.DateGroup != nil
	if grouped {
		if o.AggregateBy == nil {
			return ModeList, NewMissingAggregationError()
		}
		return ModeGrouped, nil
	}
	if o.AggregateBy != nil {
		return ModeFlatAggregate, nil
	}
	return ModeList, nil
}

// GroupField returns the exposed field the query groups on, or
// GroupSentinel when ungrouped.
func (o *QueryOptions) GroupField() string {
	if o.GroupBy != "" {
		return o.GroupBy
	}
	if o.DateGroup != nil {
		return o.DateGroup.Field
	}
	return GroupSentinel
}

// Fact is a single record entry of a given record type. Fields holds the
// typed values of the schema's exposed fields, keyed by exposed name.
type Fact struct {
	ID       string         `json:"id"`
	RecordID string         `json:"record_id,omitempty"`
	Type     string         `json:"type"`
	Status   string         `json:"status"`
	Created  time.Time      `json:"created"`
	Fields   map[string]any `json:"fields"`
}

// GroupRow is one row of a grouped or flat aggregation result: the group
// key under its alias plus the aggregate value under AggregateKey.
type GroupRow map[string]any

// ResultShape tags the variant held by a ResultSet.
type ResultShape int

const (
	// ShapeFacts is an ordered sequence of raw fact instances.
	ShapeFacts ResultShape = iota
	// ShapeGroups is an ordered sequence of group rows.
	ShapeGroups
	// ShapeScalar is a flat aggregation wrapped in a one-element sequence
	// for uniform rendering.
	ShapeScalar
)

// ResultSet is the materialized result of an executed query.
type ResultSet struct {
	Shape ResultShape
	Facts []*Fact
	Rows  []GroupRow
}

// Len returns the number of materialized results in the set.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	if rs.Shape == ShapeFacts {
		return len(rs.Facts)
	}
	return len(rs.Rows)
}
