package storage

import (
	"testing"
	"time"

	"carelog/factstore/pkg/fact"
)

func TestParseDialect(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Dialect
		wantErr bool
	}{
		{name: "sqlite", input: "sqlite", want: DialectSQLite},
		{name: "empty defaults to sqlite", input: "", want: DialectSQLite},
		{name: "postgres", input: "postgres", want: DialectPostgres},
		{name: "mysql", input: "mysql", want: DialectMySQL},
		{name: "unknown", input: "oracle", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDialect(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseDialect(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestBucketFormat(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		unit    fact.TimeUnit
		want    string
	}{
		{name: "sqlite month", dialect: DialectSQLite, unit: fact.UnitMonth, want: "%Y-%m"},
		{name: "sqlite hour", dialect: DialectSQLite, unit: fact.UnitHour, want: "%Y-%m-%d-%H"},
		{name: "sqlite week of year", dialect: DialectSQLite, unit: fact.UnitWeekOfYear, want: "%W"},
		{name: "mysql day matches sqlite", dialect: DialectMySQL, unit: fact.UnitDay, want: "%Y-%m-%d"},
		{name: "postgres month", dialect: DialectPostgres, unit: fact.UnitMonth, want: "YYYY-MM"},
		{name: "postgres day of week", dialect: DialectPostgres, unit: fact.UnitDayOfWeek, want: "D"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.BucketFormat(tt.unit); got != tt.want {
				t.Errorf("BucketFormat(%v) = %q, want %q", tt.unit, got, tt.want)
			}
		})
	}
}

func TestBucketExpr(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		want    string
	}{
		{name: "sqlite", dialect: DialectSQLite, want: "strftime('%Y-%m', date_measured)"},
		{name: "postgres", dialect: DialectPostgres, want: "to_char(date_measured, 'YYYY-MM')"},
		{name: "mysql", dialect: DialectMySQL, want: "date_format(date_measured, '%Y-%m')"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.BucketExpr("date_measured", fact.UnitMonth); got != tt.want {
				t.Errorf("BucketExpr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBucketTime(t *testing.T) {
	// 2011-06-17 was a Friday.
	ref := time.Date(2011, 6, 17, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		unit fact.TimeUnit
		t    time.Time
		want string
	}{
		{name: "hour", unit: fact.UnitHour, t: ref, want: "2011-06-17-14"},
		{name: "day", unit: fact.UnitDay, t: ref, want: "2011-06-17"},
		{name: "month", unit: fact.UnitMonth, t: ref, want: "2011-06"},
		{name: "year", unit: fact.UnitYear, t: ref, want: "2011"},
		{name: "hour of day", unit: fact.UnitHourOfDay, t: ref, want: "14"},
		{name: "day of week friday", unit: fact.UnitDayOfWeek, t: ref, want: "5"},
		{name: "month of year", unit: fact.UnitMonthOfYear, t: ref, want: "06"},
		{name: "week", unit: fact.UnitWeek, t: ref, want: "2011-24"},
		{name: "week of year", unit: fact.UnitWeekOfYear, t: ref, want: "24"},
		{
			// 2011-01-01 was a Saturday, which precedes the year's first
			// Monday, so it lands in week zero.
			name: "week of year before first monday",
			unit: fact.UnitWeekOfYear,
			t:    time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC),
			want: "00",
		},
		{
			name: "first monday starts week one",
			unit: fact.UnitWeekOfYear,
			t:    time.Date(2011, 1, 3, 0, 0, 0, 0, time.UTC),
			want: "01",
		},
		{
			name: "non-utc input normalized",
			unit: fact.UnitDay,
			t:    time.Date(2011, 6, 17, 22, 0, 0, 0, time.FixedZone("EST", -5*3600)),
			want: "2011-06-18",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BucketTime(tt.unit, tt.t); got != tt.want {
				t.Errorf("BucketTime(%v, %v) = %q, want %q", tt.unit, tt.t, got, tt.want)
			}
		})
	}
}
