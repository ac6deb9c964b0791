// Package observability provides an OpenTelemetry-based metrics extension
// for jsstore. The MetricsExtension implements lifecycle hooks to record
// system-wide counters for request queueing, completion, failure, session
// faults, and protocol violations, plus a queue-wait histogram.
//
// For per-execution tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
