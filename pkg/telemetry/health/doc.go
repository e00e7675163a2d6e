// Package health provides liveness and readiness probes for the fact store.
//
// Liveness is a constant "the process is up" answer. Readiness runs every
// registered component check (typically a storage ping) under a per-check
// timeout and reports 503 when any component is unhealthy, so a wedged
// database takes the instance out of rotation without killing it.
package health
