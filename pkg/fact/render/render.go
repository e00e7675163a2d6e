package render

import (
	"context"
	"io"

	"carelog/factstore/pkg/fact"
	"carelog/factstore/pkg/fact/query"
)

// Report bundles everything a renderer needs: the materialized result
// set, the schema it was computed against, the pre-slice total, the echo
// of the query options, and the continuation URL if one exists.
type Report struct {
	Schema     *fact.Schema
	Set        *fact.ResultSet
	TotalCount int
	Options    *fact.QueryOptions
	Next       string
}

// Renderer produces the client-facing representation of a report.
type Renderer interface {
	Render(ctx context.Context, report *Report, w io.Writer) error
}

// BuildReport executes a session (if not yet run) and assembles its
// report, including the continuation URL.
func BuildReport(ctx context.Context, s *query.Session) (*Report, error) {
	set, err := s.Results(ctx)
	if err != nil {
		return nil, err
	}
	next, err := s.NextPageURL(ctx)
	if err != nil {
		return nil, err
	}
	return &Report{
		Schema:     s.Schema(),
		Set:        set,
		TotalCount: s.TotalCount(),
		Options:    s.Options(),
		Next:       next,
	}, nil
}
