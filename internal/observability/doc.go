// Package observability groups the logging and tracing helpers.
//
// Subpackages:
//   - logging: slog logger construction and context propagation
//   - tracing: OpenTelemetry provider setup and HTTP middleware
//
// Prometheus metrics live next to the code they measure: the inference
// client registers its own collectors, and the HTTP layer records request
// counts and latencies.
package observability
