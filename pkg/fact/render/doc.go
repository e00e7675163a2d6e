// Package render produces client-facing representations of query
// results.
//
// A Report bundles a session's materialized result set with the schema,
// total count, query echo and continuation URL. Renderers consume
// reports:
//
//	report, err := render.BuildReport(ctx, session)
//	if err != nil { ... }
//	renderer := render.NewJSONRenderer(true)
//	err = renderer.Render(ctx, report, os.Stdout)
//
// All three result shapes render under one uniform results sequence: a
// flat aggregation arrives pre-wrapped as a one-element sequence by the
// query engine.
package render
