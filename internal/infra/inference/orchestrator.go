package inference

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pablos-ai/internal/config"
	"pablos-ai/internal/observability/logging"
)

// Orchestrator walks the registry, skipping endpoints in cooldown, and hands
// each attempt to the RetryExecutor. The first success wins.
type Orchestrator struct {
	registry  *Registry
	endpoints []*endpoint
	executor  *RetryExecutor
}

// payloadFunc builds the request body for a given endpoint.
type payloadFunc func(cfg config.EndpointConfig) ([]byte, error)

// call describes one façade operation before an endpoint is chosen.
type call struct {
	operation   string
	path        string
	build       payloadFunc
	timeout     time.Duration
	maxAttempts int
}

// Call tries endpoints in registry order from the rotation cursor. Each
// available endpoint is tried at most once and at most Len() endpoints are
// tried in total. A failed endpoint moves the cursor past it.
//
// It returns ErrAllInCooldown when nothing could be attempted, and an error
// wrapping ErrAllEndpointsExhausted and the last endpoint error when every
// attempted endpoint failed.
func (o *Orchestrator) Call(ctx context.Context, c call) ([]byte, *endpoint, error) {
	n := o.registry.Len()
	tried := make([]bool, n)
	attempted := 0
	var lastErr error
	logger := logging.FromContext(ctx)

	for i := 0; i < n; i++ {
		pos, ok := o.registry.nextUntried(tried)
		if !ok {
			break
		}
		tried[pos] = true
		attempted++

		ep := o.endpoints[pos]
		payload, err := c.build(ep.cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("build %s payload: %w", c.operation, err)
		}

		logger.Debug("calling inference endpoint",
			slog.String("endpoint", ep.name()),
			slog.String("operation", c.operation),
			slog.Int("position", pos))

		body, err := o.executor.Execute(ctx, ep, request{
			operation:   c.operation,
			path:        c.path,
			payload:     payload,
			timeout:     c.timeout,
			maxAttempts: c.maxAttempts,
		})
		if err == nil {
			return body, ep, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}

		lastErr = err
		o.registry.AdvanceFrom(pos)
		logger.Warn("inference endpoint failed, trying next",
			slog.String("endpoint", ep.name()),
			slog.String("operation", c.operation),
			slog.Any("error", err))
	}

	if attempted == 0 {
		return nil, nil, ErrAllInCooldown
	}
	return nil, nil, fmt.Errorf("%w after %d endpoint(s): %w", ErrAllEndpointsExhausted, attempted, lastErr)
}
