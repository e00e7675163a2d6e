package query

import (
	"context"

	"carelog/factstore/pkg/fact/storage"
)

// CarenetMembership resolves the fact IDs visible within a carenet. Both
// bundled backends implement it.
type CarenetMembership interface {
	MemberFactIDs(ctx context.Context, carenetID string) ([]string, error)
}

// CarenetScope builds the stock access-scope filter for a carenet: the
// relation is restricted to the facts shared into the carenet. The query
// session composes the returned filter opaquely; an empty membership
// yields a filter matching no rows.
func CarenetScope(ctx context.Context, members CarenetMembership, carenetID string) (storage.ScopeFilter, error) {
	ids, err := members.MemberFactIDs(ctx, carenetID)
	if err != nil {
		return nil, err
	}
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	return func(r *storage.Relation) *storage.Relation {
		return r.Where(storage.In(storage.IDColumn, values))
	}, nil
}
