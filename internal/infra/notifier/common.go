package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"pablos-ai/internal/resilience/retry"
)

// RateLimitError represents a 429 from a webhook service.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (retry after %v)", e.RetryAfter)
}

// ClientError represents a non-429 4xx from a webhook service.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string { return e.Message }

// ServerError represents a 5xx from a webhook service.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string { return e.Message }

// isRetryableError reports whether a failed post is worth repeating.
// Server and network errors are; client errors are not. Rate limits are
// handled separately because they carry their own delay.
func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return false
	}
	var rateLimitErr *RateLimitError
	return !errors.As(err, &rateLimitErr)
}

// truncate cuts s to at most maxRunes runes, ending with suffix when cut.
func truncate(s string, maxRunes int, suffix string) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	keep := maxRunes - utf8.RuneCountInString(suffix)
	if keep < 0 {
		keep = 0
	}
	return string([]rune(s)[:keep]) + suffix
}

// webhook is the transport shared by the Discord and Slack notifiers.
type webhook struct {
	name        string
	url         string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseDelay   time.Duration
	sleep       retry.Sleeper
	logger      *slog.Logger

	// retryAfter extracts the service's own retry hint from a 429 response.
	retryAfter func(resp *http.Response, body []byte) time.Duration
}

// post sends one JSON payload.
func (w *webhook) post(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		// *url.Error quotes the URL, which carries the webhook token.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			Message:    w.name + " rate limit exceeded",
			RetryAfter: w.retryAfter(resp, body),
		}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s API client error: %s", w.name, string(body)),
		}
	case resp.StatusCode >= 500:
		return &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s API server error: %s", w.name, string(body)),
		}
	}
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
}

// send waits for the rate limiter, then posts with retries. A 429 waits for
// the service's retry hint; 5xx and network errors back off linearly.
func (w *webhook) send(ctx context.Context, alert Alert, payload any) error {
	requestID := uuid.NewString()
	logger := w.logger.With(
		slog.String("request_id", requestID),
		slog.String("notifier", w.name),
		slog.String("endpoint", alert.Endpoint),
		slog.Bool("healthy", alert.Healthy))

	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		err := w.post(ctx, payload)
		if err == nil {
			logger.Info("alert sent", slog.Int("attempt", attempt))
			return nil
		}
		lastErr = err

		if attempt == w.maxAttempts {
			break
		}

		var rateLimitErr *RateLimitError
		var delay time.Duration
		switch {
		case errors.As(err, &rateLimitErr):
			delay = rateLimitErr.RetryAfter
		case isRetryableError(err):
			delay = w.baseDelay * time.Duration(attempt)
		default:
			logger.Error("alert failed with non-retryable error", slog.Any("error", err), slog.Int("attempt", attempt))
			return err
		}

		logger.Warn("alert failed, retrying",
			slog.Any("error", err),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay))
		if err := w.sleep(ctx, delay); err != nil {
			return fmt.Errorf("canceled during retry backoff: %w", err)
		}
	}

	logger.Error("alert failed after all retries", slog.Any("error", lastErr), slog.Int("max_attempts", w.maxAttempts))
	return fmt.Errorf("%s notification failed after %d attempts: %w", w.name, w.maxAttempts, lastErr)
}

// headerRetryAfter reads a numeric Retry-After header, defaulting to 5s.
func headerRetryAfter(resp *http.Response) time.Duration {
	if d, ok := retry.ParseRetryAfter(resp.Header.Get("Retry-After")); ok && d > 0 {
		return d
	}
	return 5 * time.Second
}
