// Package metrics provides Prometheus metrics collection and exposition for
// Warden: locked-memory allocation counts, vault record/revocation gauges,
// active actor count, and snapshot/synchroniser counters, alongside
// process-wide health and readiness handlers.
package metrics
