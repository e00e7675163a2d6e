// Package query compiles and executes faceted queries over the fact
// store.
//
// # The Session Pipeline
//
// One Session drives one request. Execute assembles the query plan in a
// fixed stage order, each stage composing onto a lazy relation:
//
//  1. Filters: record scope, opaque access scope, typed field filters,
//     status, and date range, combined with AND
//  2. Grouping: plain group-by or backend-dialect date bucketing
//  3. Aggregation: per-group annotation or whole-relation reduction
//  4. Ordering: aggregate-aware sort keys with a deterministic tie-break
//  5. Pagination: pre-slice total count, offset/limit slice, fetch
//
// The order is load-bearing: ordering may reference aliases introduced by
// grouping and aggregation, and the total count must be captured before
// the slice is applied.
//
// # Usage
//
//	opts, err := query.ParseOptions(r.URL.Query())
//	if err != nil { ... }
//
//	session := query.New(query.Params{
//	    Schema:     schema,
//	    Backend:    backend,
//	    Options:    opts,
//	    RecordID:   recordID,
//	    RequestURL: r.URL.String(),
//	})
//	results, err := session.Results(ctx)
//	next, err := session.NextPageURL(ctx)
//
// Execute computes once: a session caches its result set and total count,
// and render-time calls reuse them instead of re-querying the store.
//
// # Errors
//
// Validation failures are the typed user-input errors of the fact
// package. The session neither catches nor downgrades them; they abort
// compilation at the detecting stage and propagate to the caller.
package query
