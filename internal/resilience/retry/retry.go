// Package retry provides retry logic with exponential backoff.
// It helps handle transient failures gracefully by automatically retrying failed operations.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// Config holds the configuration for retry logic.
type Config struct {
	// MaxAttempts is the maximum number of attempts, including the first one
	MaxAttempts int

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration

	// MaxDelay caps the computed backoff delay. Zero means no cap.
	// Server-supplied retry hints are never capped.
	MaxDelay time.Duration

	// Multiplier is the multiplier for exponential backoff
	Multiplier float64

	// JitterFraction is the fraction of delay to add as random jitter (0.0 to 1.0)
	JitterFraction float64

	// Sleep overrides the wait between attempts. Nil uses Sleep.
	Sleep Sleeper

	// OnRetry is invoked before each wait with the failed attempt number,
	// the delay about to be slept and the error that caused the retry.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultConfig returns a default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		Multiplier:   2.0,
	}
}

// ChatConfig returns configuration for chat completion calls.
// Three attempts with 1s, 2s backoff between them.
func ChatConfig() Config {
	return DefaultConfig()
}

// ImageConfig returns configuration for image generation calls.
// Image synthesis is slow and expensive, so only one retry is made.
func ImageConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 2
	return cfg
}

// Delay returns the backoff delay to wait after the given failed attempt
// (1-based): InitialDelay * Multiplier^(attempt-1), capped at MaxDelay.
func (c Config) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	multiplier := c.Multiplier
	if multiplier <= 0 {
		multiplier = 1
	}

	delay := time.Duration(float64(c.InitialDelay) * math.Pow(multiplier, float64(attempt-1)))
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}

	return addJitter(delay, c.JitterFraction)
}

// WithBackoff executes the given function with retry logic and exponential backoff.
// It returns nil if the function succeeds, or the last error if all attempts fail.
//
// Each attempt ends in one of three states: success (return nil), a retryable
// failure (wait, then attempt again) or a terminal failure (return immediately).
// A retryable error that carries a retry hint (see RetryAfter) is waited on for
// exactly that long instead of the computed backoff.
func WithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn()

		if lastErr == nil {
			if attempt > 1 {
				slog.Info("operation succeeded after retry",
					slog.Int("attempt", attempt))
			}
			return nil
		}

		if !IsRetryable(lastErr) {
			slog.Debug("non-retryable error, aborting",
				slog.Int("attempt", attempt),
				slog.Any("error", lastErr))
			return lastErr
		}

		// Don't wait after last attempt
		if attempt == maxAttempts {
			break
		}

		delay := cfg.Delay(attempt)
		if hint, ok := RetryAfter(lastErr); ok {
			delay = hint
		}

		slog.Warn("operation failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("delay", delay),
			slog.Any("error", lastErr))

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, delay, lastErr)
		}

		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry aborted: %w", err)
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded: %w", maxAttempts, lastErr)
}

// Sleep blocks for d or until ctx is canceled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRetryable determines if an error is worth retrying on the same target.
//
// Errors that implement Retryable() decide for themselves. Otherwise only
// transport failures and HTTP 429 are retryable; other HTTP statuses are not
// transient from the caller's point of view and fail fast.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}

	// Network errors (timeout)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Syscall errors
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	return false
}

// RetryAfter extracts a server-supplied retry hint from err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var h interface {
		RetryAfterHint() (time.Duration, bool)
	}
	if errors.As(err, &h) {
		return h.RetryAfterHint()
	}
	return 0, false
}

// ParseRetryAfter parses a numeric Retry-After header value in seconds.
// HTTP-date values and negative numbers are rejected.
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	secs, err := strconv.ParseFloat(value, 64)
	if err != nil || secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string

	// RetryAfter is the parsed Retry-After hint; zero when absent.
	RetryAfter    time.Duration
	HasRetryAfter bool
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the status is a rate limit.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// RetryAfterHint returns the Retry-After hint carried by the response.
func (e *HTTPError) RetryAfterHint() (time.Duration, bool) {
	return e.RetryAfter, e.HasRetryAfter
}

// addJitter adds random jitter to a duration to prevent thundering herd.
func addJitter(duration time.Duration, jitterFraction float64) time.Duration {
	if jitterFraction <= 0 {
		return duration
	}
	if jitterFraction > 1.0 {
		jitterFraction = 1.0
	}
	// #nosec G404 -- Using math/rand is acceptable for jitter calculation.
	jitter := time.Duration(rand.Float64() * float64(duration) * jitterFraction)
	return duration + jitter
}
