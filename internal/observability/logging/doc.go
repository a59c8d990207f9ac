// Package logging wraps log/slog with the helpers used across the service.
//
// Loggers travel through request handling in the context: the HTTP layer
// attaches one tagged with the request id, and the inference client derives a
// per-call logger tagged with a call id.
//
//	logger := logging.NewLogger()
//	ctx = logging.WithLogger(ctx, logging.WithRequestID(ctx, logger))
//	logging.FromContext(ctx).Info("chat request accepted")
package logging
