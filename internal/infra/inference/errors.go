package inference

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"pablos-ai/internal/config"
)

// Sentinel errors for inference calls.
var (
	// ErrAllEndpointsExhausted is returned when every endpoint either failed or was
	// in cooldown during a single call.
	ErrAllEndpointsExhausted = errors.New("all inference endpoints exhausted")

	// ErrAllInCooldown is returned when no endpoint was attempted because all of
	// them were cooling down. It wraps ErrAllEndpointsExhausted.
	ErrAllInCooldown = fmt.Errorf("all endpoints in cooldown: %w", ErrAllEndpointsExhausted)

	// ErrResponseFormat is returned when a well-formed response carries neither
	// chat text nor image data.
	ErrResponseFormat = errors.New("unexpected response format")

	// ErrNoEndpoints is returned by the constructor when no endpoint is configured.
	ErrNoEndpoints = config.ErrNoEndpoints

	// ErrClientClosed is returned by calls made after Close.
	ErrClientClosed = errors.New("inference client closed")
)

// ErrorKind classifies why a call against a single endpoint failed.
type ErrorKind string

// Error kinds.
const (
	// KindRateLimited means the endpoint answered 429 on every attempt.
	KindRateLimited ErrorKind = "rate_limited"
	// KindNetwork is a transport failure: refused connection, reset, timeout.
	KindNetwork ErrorKind = "network_error"
	// KindHTTP is any non-2xx status other than 429.
	KindHTTP ErrorKind = "http_error"
	// KindParse is a 2xx response whose body is not valid JSON.
	KindParse ErrorKind = "parse_error"
	// KindCircuitOpen means the endpoint's breaker rejected the call.
	KindCircuitOpen ErrorKind = "circuit_open"
)

// CallError describes the failure of one HTTP attempt against an endpoint.
type CallError struct {
	Kind       ErrorKind
	Endpoint   string
	StatusCode int

	// RetryAfter is the server's numeric Retry-After hint, valid when HasRetryAfter is set.
	RetryAfter    time.Duration
	HasRetryAfter bool

	Err error
}

// Error implements the error interface.
func (e *CallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("endpoint %s: %s (status %d): %v", e.Endpoint, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("endpoint %s: %s: %v", e.Endpoint, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *CallError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same endpoint should be tried again.
// Only rate limits and transport failures are transient.
func (e *CallError) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindNetwork
}

// RetryAfterHint implements the retry package's hint interface.
func (e *CallError) RetryAfterHint() (time.Duration, bool) {
	if e.Kind != KindRateLimited {
		return 0, false
	}
	return e.RetryAfter, e.HasRetryAfter
}

// tripsBreaker reports whether err indicates an unhealthy endpoint.
// Rate limits, client errors and parse errors do not count.
func tripsBreaker(err error) bool {
	var callErr *CallError
	if !errors.As(err, &callErr) {
		return false
	}
	switch callErr.Kind {
	case KindNetwork:
		return true
	case KindHTTP:
		return callErr.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}
