package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"carelog/factstore/pkg/fact"
)

// subDelimiter separates the components of compound query parameters,
// e.g. date_range=date_measured*2010-03-10T00:00:00Z*2010-06-17T19:35:00Z.
const subDelimiter = "*"

// reservedParams are the query parameters with dedicated meaning. Every
// other parameter is treated as a field filter.
var reservedParams = map[string]bool{
	"group_by":        true,
	"date_group":      true,
	"aggregate_by":    true,
	"order_by":        true,
	"limit":           true,
	"offset":          true,
	"status":          true,
	"date_range":      true,
	"carenet_id":      true,
	"response_format": true,
}

// ParseOptions builds a QueryOptions bag from raw URL query parameters.
// Compound parameters use "*" as a sub-delimiter:
//
//	aggregate_by = {operator}*{field}
//	date_group   = {field}*{unit}
//	date_range   = {field}*{start}*{end}   (either bound may be empty)
//
// limit and offset parse as integers; a negative or absent offset
// normalizes to 0. Field names referenced here are validated later,
// against the record type's schema, by the query session.
func ParseOptions(values url.Values) (*fact.QueryOptions, error) {
	opts := &fact.QueryOptions{
		GroupBy: values.Get("group_by"),
		OrderBy: values.Get("order_by"),
		Status:  values.Get("status"),
		Filters: make(map[string]string),
	}

	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid limit: %q", raw)
		}
		if n > 0 {
			opts.Limit = n
		}
	}
	if raw := values.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid offset: %q", raw)
		}
		if n > 0 {
			opts.Offset = n
		}
	}

	if raw := values.Get("date_group"); raw != "" {
		parts := strings.Split(raw, subDelimiter)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid date_group %q: expected {field}*{unit}", raw)
		}
		unit, ok := fact.ParseTimeUnit(parts[1])
		if !ok {
			return nil, fact.NewInvalidTimeIncrementError(parts[1])
		}
		opts.DateGroup = &fact.DateGroup{Field: parts[0], Unit: unit}
	}

	if raw := values.Get("aggregate_by"); raw != "" {
		parts := strings.Split(raw, subDelimiter)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid aggregate_by %q: expected {operator}*{field}", raw)
		}
		op, ok := fact.ParseAggregateOp(parts[0])
		if !ok {
			return nil, fact.NewInvalidAggregateOpError(parts[0])
		}
		opts.AggregateBy = &fact.AggregateBy{Field: parts[1], Op: op}
	}

	if raw := values.Get("date_range"); raw != "" {
		parts := strings.Split(raw, subDelimiter)
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid date_range %q: expected {field}*{start}*{end}", raw)
		}
		dr := &fact.DateRange{Field: parts[0]}
		var err error
		if dr.Start, err = parseBound(parts[0], parts[1]); err != nil {
			return nil, err
		}
		if dr.End, err = parseBound(parts[0], parts[2]); err != nil {
			return nil, err
		}
		opts.DateRange = dr
	}

	for key := range values {
		if reservedParams[key] {
			continue
		}
		opts.Filters[key] = values.Get(key)
	}

	return opts, nil
}

// parseBound parses one bound of a date range, allowing it to be absent.
func parseBound(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := fact.ParseISO8601(raw)
	if err != nil {
		return nil, fact.NewInvalidFilterValueError(field, fact.TypeDate, raw, err)
	}
	return &t, nil
}
