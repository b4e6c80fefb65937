// Package daemon hosts the long-running translation service: it owns the
// single-instance lock, recovers jobs interrupted by a restart, runs the
// worker pool, and serves the HTTP API including the per-job SSE event
// stream.
package daemon
