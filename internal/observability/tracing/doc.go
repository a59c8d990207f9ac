// Package tracing provides OpenTelemetry tracing for the HTTP surface.
//
// Setup installs the process-wide tracer provider; Middleware opens a server
// span per request and returns its trace id in the X-Trace-Id header. The
// inference client opens its own child spans per call and per endpoint attempt.
package tracing
