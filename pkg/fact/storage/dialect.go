package storage

import (
	"fmt"
	"time"

	"carelog/factstore/pkg/fact"
)

// Dialect identifies a backend's date-formatting dialect. Different
// backends express "truncate to day" differently; the dialect maps each
// time-bucket unit to the backend's format template. It is selected once
// at startup from configuration.
type Dialect int

const (
	// DialectSQLite formats buckets with strftime().
	DialectSQLite Dialect = iota
	// DialectPostgres formats buckets with to_char().
	DialectPostgres
	// DialectMySQL formats buckets with date_format().
	DialectMySQL
)

// String returns the configuration name of the dialect.
func (d Dialect) String() string {
	switch d {
	case DialectSQLite:
		return "sqlite"
	case DialectPostgres:
		return "postgres"
	case DialectMySQL:
		return "mysql"
	default:
		return fmt.Sprintf("dialect(%d)", int(d))
	}
}

// ParseDialect parses a configuration dialect name.
func ParseDialect(s string) (Dialect, error) {
	switch s {
	case "sqlite", "":
		return DialectSQLite, nil
	case "postgres":
		return DialectPostgres, nil
	case "mysql":
		return DialectMySQL, nil
	default:
		return DialectSQLite, fmt.Errorf("unknown storage dialect: %q", s)
	}
}

// BucketFormat returns the dialect-native format string that truncates a
// date to the unit's granularity.
func (d Dialect) BucketFormat(u fact.TimeUnit) string {
	switch d {
	case DialectPostgres:
		switch u {
		case fact.UnitHour:
			return "YYYY-MM-DD-HH24"
		case fact.UnitDay:
			return "YYYY-MM-DD"
		case fact.UnitWeek:
			return "YYYY-WW"
		case fact.UnitMonth:
			return "YYYY-MM"
		case fact.UnitYear:
			return "YYYY"
		case fact.UnitHourOfDay:
			return "HH24"
		case fact.UnitDayOfWeek:
			return "D"
		case fact.UnitWeekOfYear:
			return "WW"
		case fact.UnitMonthOfYear:
			return "MM"
		}
	case DialectSQLite, DialectMySQL:
		// strftime and date_format share the %-style specifiers used here.
		switch u {
		case fact.UnitHour:
			return "%Y-%m-%d-%H"
		case fact.UnitDay:
			return "%Y-%m-%d"
		case fact.UnitWeek:
			return "%Y-%W"
		case fact.UnitMonth:
			return "%Y-%m"
		case fact.UnitYear:
			return "%Y"
		case fact.UnitHourOfDay:
			return "%H"
		case fact.UnitDayOfWeek:
			return "%w"
		case fact.UnitWeekOfYear:
			return "%W"
		case fact.UnitMonthOfYear:
			return "%m"
		}
	}
	return ""
}

// BucketExpr renders the SQL expression grouping a date column at the
// unit's granularity.
func (d Dialect) BucketExpr(column string, u fact.TimeUnit) string {
	format := d.BucketFormat(u)
	switch d {
	case DialectPostgres:
		return fmt.Sprintf("to_char(%s, '%s')", column, format)
	case DialectMySQL:
		return fmt.Sprintf("date_format(%s, '%s')", column, format)
	default:
		return fmt.Sprintf("strftime('%s', %s)", format, column)
	}
}

// BucketTime computes the bucket key of a time value in Go, matching the
// SQLite strftime output for the unit. The memory backend uses this so its
// bucket keys agree with the SQLite backend's.
func BucketTime(u fact.TimeUnit, t time.Time) string {
	t = t.UTC()
	switch u {
	case fact.UnitHour:
		return t.Format("2006-01-02-15")
	case fact.UnitDay:
		return t.Format("2006-01-02")
	case fact.UnitWeek:
		return fmt.Sprintf("%04d-%02d", t.Year(), weekOfYear(t))
	case fact.UnitMonth:
		return t.Format("2006-01")
	case fact.UnitYear:
		return t.Format("2006")
	case fact.UnitHourOfDay:
		return t.Format("15")
	case fact.UnitDayOfWeek:
		return fmt.Sprintf("%d", int(t.Weekday()))
	case fact.UnitWeekOfYear:
		return fmt.Sprintf("%02d", weekOfYear(t))
	case fact.UnitMonthOfYear:
		return t.Format("01")
	default:
		return ""
	}
}

// weekOfYear is the Monday-based week number in 00..53, the strftime %W
// convention: days before the year's first Monday fall in week 0.
func weekOfYear(t time.Time) int {
	yday := t.YearDay() - 1
	wday := (int(t.Weekday()) + 6) % 7 // Monday = 0
	return (yday - wday + 7) / 7
}
