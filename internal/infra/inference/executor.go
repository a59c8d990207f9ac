package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pablos-ai/internal/observability/logging"
	"pablos-ai/internal/resilience/circuitbreaker"
	"pablos-ai/internal/resilience/retry"
)

// maxResponseBytes caps how much of a response body is read (image payloads
// are base64 and can be several megabytes).
const maxResponseBytes = 32 << 20

// request is one logical call against a single endpoint.
type request struct {
	operation   string
	path        string
	payload     []byte
	timeout     time.Duration
	maxAttempts int
}

// RetryExecutor performs one logical POST against one endpoint, retrying rate
// limits and transport failures with exponential backoff.
type RetryExecutor struct {
	registry  *Registry
	cooldown  time.Duration
	baseDelay time.Duration
	sleep     retry.Sleeper

	metrics MetricsRecorder
	tracer  trace.Tracer
}

// Execute runs req against ep. Each attempt ends in success, a retryable
// failure (429 or transport error, retried after a delay) or a terminal failure
// (other statuses, malformed body, open breaker). When the final attempt is a
// 429 the endpoint is put into cooldown. A success clears ep's own cooldown.
//
// Caller context errors are returned as-is.
func (x *RetryExecutor) Execute(ctx context.Context, ep *endpoint, req request) ([]byte, error) {
	policy := retry.Config{
		MaxAttempts:  req.maxAttempts,
		InitialDelay: x.baseDelay,
		Multiplier:   2.0,
		Sleep:        x.sleep,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			x.metrics.RecordRetry(ep.name(), req.operation)
			trace.SpanFromContext(ctx).AddEvent("retry", trace.WithAttributes(
				attribute.String("endpoint", ep.name()),
				attribute.Int("attempt", attempt),
				attribute.String("delay", delay.String()),
			))
		},
	}

	var (
		body    []byte
		lastErr error
	)
	attempt := 0
	err := retry.WithBackoff(ctx, policy, func() error {
		attempt++
		b, err := x.attempt(ctx, ep, req, attempt)
		if err != nil {
			lastErr = err
			return err
		}
		body = b
		return nil
	})

	if err == nil {
		x.registry.ClearCooldown(ep.index)
		return body, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	var callErr *CallError
	if errors.As(lastErr, &callErr) && callErr.Kind == KindRateLimited && attempt >= req.maxAttempts {
		x.registry.MarkRateLimited(ep.index, x.cooldown)
	}

	return nil, lastErr
}

// attempt issues a single HTTP request, guarded by the endpoint's throttle and
// circuit breaker.
func (x *RetryExecutor) attempt(ctx context.Context, ep *endpoint, req request, attempt int) ([]byte, error) {
	ctx, span := x.tracer.Start(ctx, "inference.attempt", trace.WithAttributes(
		attribute.String("endpoint", ep.name()),
		attribute.String("operation", req.operation),
		attribute.Int("attempt", attempt),
	))
	defer span.End()

	if ep.limiter != nil {
		if err := ep.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("endpoint %s: rate limiter: %w", ep.name(), err)
		}
	}

	start := time.Now()
	var (
		body []byte
		err  error
	)
	if ep.breaker != nil {
		body, err = circuitbreaker.Do(ep.breaker, func() ([]byte, error) {
			return x.send(ctx, ep, req)
		})
		if circuitbreaker.IsRejected(err) {
			err = &CallError{Kind: KindCircuitOpen, Endpoint: ep.name(), Err: err}
		}
	} else {
		body, err = x.send(ctx, ep, req)
	}

	result := "success"
	var callErr *CallError
	switch {
	case errors.As(err, &callErr):
		result = string(callErr.Kind)
		if callErr.StatusCode != 0 {
			span.SetAttributes(attribute.Int("http.status_code", callErr.StatusCode))
		}
	case err != nil:
		result = "error"
	}
	x.metrics.RecordAttempt(ep.name(), req.operation, result, time.Since(start))

	logger := logging.FromContext(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		logger.Warn("inference attempt failed",
			slog.String("endpoint", ep.name()),
			slog.String("operation", req.operation),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", req.maxAttempts),
			slog.String("result", result),
			slog.Any("error", err))
		return nil, err
	}

	logger.Debug("inference attempt succeeded",
		slog.String("endpoint", ep.name()),
		slog.String("operation", req.operation),
		slog.Int("attempt", attempt))
	return body, nil
}

// send performs the HTTP round trip and classifies the outcome.
func (x *RetryExecutor) send(ctx context.Context, ep *endpoint, req request) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, req.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, ep.url(req.path), bytes.NewReader(req.payload))
	if err != nil {
		return nil, fmt.Errorf("endpoint %s: create request: %w", ep.name(), err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+ep.cfg.Credential)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := ep.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &CallError{Kind: KindNetwork, Endpoint: ep.name(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &CallError{Kind: KindNetwork, Endpoint: ep.name(), StatusCode: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		hint, ok := retry.ParseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &CallError{
			Kind:          KindRateLimited,
			Endpoint:      ep.name(),
			StatusCode:    resp.StatusCode,
			RetryAfter:    hint,
			HasRetryAfter: ok,
			Err:           &retry.HTTPError{StatusCode: resp.StatusCode, Message: truncate(string(body), 200), RetryAfter: hint, HasRetryAfter: ok},
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &CallError{
			Kind:       KindHTTP,
			Endpoint:   ep.name(),
			StatusCode: resp.StatusCode,
			Err:        &retry.HTTPError{StatusCode: resp.StatusCode, Message: truncate(string(body), 200)},
		}
	}

	if !json.Valid(body) {
		return nil, &CallError{
			Kind:       KindParse,
			Endpoint:   ep.name(),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("malformed JSON body: %q", truncate(string(body), 200)),
		}
	}

	return body, nil
}
