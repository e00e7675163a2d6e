// Package api provides the HTTP surface of the fact store.
//
// The report routes mirror the query engine's three scopes:
//
//	GET /records/{record}/reports/{type}/          record-scoped report
//	GET /records/{record}/reports/{type}/{fact}/   single fact instance
//	GET /reports/{type}/                           record-agnostic report
//
// Query parameters (filters, group_by, date_group, aggregate_by, order_by,
// date_range, limit, offset, status) are parsed into query options and run
// through a session; the result renders as JSON or, with
// response_format=text/csv, as CSV. A carenet_id parameter restricts the
// relation to the facts shared into that carenet. Invalid query input maps
// to 400, unknown record types to 404, backend failures to 500.
//
// POST /records/{record}/facts/?type={type} stores a new fact from a JSON
// body. /healthz and /readyz expose liveness and readiness probes, and the
// configured metrics path serves Prometheus metrics.
//
// Authentication and authorization are deliberately absent: the server
// trusts its deployment boundary, and carenet tokens pass through opaquely.
package api
