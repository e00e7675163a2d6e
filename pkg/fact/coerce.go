package fact

import (
	"fmt"
	"strconv"
	"time"
)

// iso8601Layouts are the accepted layouts for date values, from most to
// least specific. Date-only values parse to midnight UTC.
var iso8601Layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseISO8601 parses an ISO-8601 date or datetime string. Values without
// an explicit zone are interpreted as UTC.
func ParseISO8601(s string) (time.Time, error) {
	for _, layout := range iso8601Layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("not an ISO-8601 date: %q", s)
}

// Coerce converts a raw client string into the typed value for a field of
// declared type t. Each field type has its own parser so a failure names
// the real cause instead of masking programming errors as input errors.
func Coerce(t FieldType, raw string) (any, error) {
	switch t {
	case TypeString:
		return raw, nil
	case TypeDate:
		v, err := ParseISO8601(raw)
		if err != nil {
			return nil, err
		}
		return v, nil
	case TypeNumber:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", raw)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported field type: %v", t)
	}
}
