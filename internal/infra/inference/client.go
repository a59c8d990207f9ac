package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"pablos-ai/internal/config"
	"pablos-ai/internal/observability/logging"
	"pablos-ai/internal/resilience/retry"
)

const tracerName = "pablos-ai/inference"

// Request outcomes reported to metrics.
const (
	outcomeSuccess  = "success"
	outcomeFallback = "fallback"
	outcomeFailure  = "failure"
)

// ChatReply is the answer to a chat call. Fallback is set when the text is a
// canned degraded-mode answer rather than model output.
type ChatReply struct {
	Text     string
	Fallback bool
}

// Service is the public surface shared by the network client and the stub.
type Service interface {
	GenerateChatResponse(ctx context.Context, prompt string, temperature float64) (ChatReply, error)
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
	Status() []EndpointStatus
	Probe(ctx context.Context) ([]ProbeResult, error)
	Close() error
}

// EndpointStatus is the externally visible health of one endpoint.
type EndpointStatus struct {
	Name          string     `json:"name"`
	Available     bool       `json:"available"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	CircuitState  string     `json:"circuit_state"`
}

// ProbeResult is the outcome of GET {baseURL}/models against one endpoint.
type ProbeResult struct {
	Name       string        `json:"name"`
	Healthy    bool          `json:"healthy"`
	StatusCode int           `json:"status_code,omitempty"`
	Latency    time.Duration `json:"latency_ns"`
	Error      string        `json:"error,omitempty"`
}

// Option configures a Client.
type Option func(*options)

type options struct {
	clock          Clock
	sleep          retry.Sleeper
	logger         *slog.Logger
	metrics        MetricsRecorder
	tracerProvider trace.TracerProvider
	transport      http.RoundTripper
}

// WithClock sets the clock used for cooldown deadlines.
func WithClock(c Clock) Option { return func(o *options) { o.clock = c } }

// WithSleeper sets the function used for backoff waits.
func WithSleeper(s retry.Sleeper) Option { return func(o *options) { o.sleep = s } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option { return func(o *options) { o.metrics = m } }

// WithTracerProvider sets the OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithTransport makes every endpoint session use rt instead of its own transport.
func WithTransport(rt http.RoundTripper) Option { return func(o *options) { o.transport = rt } }

// Client is the resilient multi-endpoint inference client.
type Client struct {
	cfg       config.InferenceConfig
	registry  *Registry
	endpoints []*endpoint
	orch      *Orchestrator
	fallback  *FallbackResponder

	logger  *slog.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer
	closed  atomic.Bool
}

// NewClient creates a client over cfg.Endpoints. Zero endpoints or duplicate
// names are configuration errors. Zero-valued policy fields take their defaults.
func NewClient(cfg *config.InferenceConfig, opts ...Option) (*Client, error) {
	if cfg == nil || len(cfg.Endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	o := options{
		clock:          SystemClock{},
		sleep:          retry.Sleep,
		logger:         slog.Default(),
		metrics:        NoopMetrics{},
		tracerProvider: otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		cfg:     withDefaults(*cfg),
		logger:  o.logger,
		metrics: o.metrics,
		tracer:  o.tracerProvider.Tracer(tracerName),
	}

	names := make([]string, len(c.cfg.Endpoints))
	for i, ep := range c.cfg.Endpoints {
		names[i] = ep.Name
	}
	registry, err := NewRegistry(names, o.clock, o.logger, o.metrics)
	if err != nil {
		return nil, err
	}
	c.registry = registry

	for i, epCfg := range c.cfg.Endpoints {
		c.endpoints = append(c.endpoints, newEndpoint(i, epCfg, c.cfg.RateLimit, c.cfg.CircuitBreaker, o.transport))
	}

	c.orch = &Orchestrator{
		registry:  registry,
		endpoints: c.endpoints,
		executor: &RetryExecutor{
			registry:  registry,
			cooldown:  c.cfg.EndpointCooldown,
			baseDelay: c.cfg.Retry.BaseDelay,
			sleep:     o.sleep,
			metrics:   o.metrics,
			tracer:    c.tracer,
		},
	}

	if c.cfg.FallbackEnabled {
		responses := c.cfg.FallbackResponses
		if len(responses) == 0 {
			responses = DefaultFallbackResponses
		}
		if c.fallback, err = NewFallbackResponder(responses); err != nil {
			return nil, err
		}
	}

	c.logger.Info("inference client initialized",
		slog.Int("endpoints", len(c.endpoints)),
		slog.Bool("fallback_enabled", c.fallback != nil))
	return c, nil
}

func withDefaults(cfg config.InferenceConfig) config.InferenceConfig {
	cfg.Endpoints = append([]config.EndpointConfig(nil), cfg.Endpoints...)
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 400
	}
	if cfg.EndpointCooldown <= 0 {
		cfg.EndpointCooldown = 300 * time.Second
	}
	if cfg.Timeouts.Chat <= 0 {
		cfg.Timeouts.Chat = 30 * time.Second
	}
	if cfg.Timeouts.Image <= 0 {
		cfg.Timeouts.Image = 60 * time.Second
	}
	if cfg.Timeouts.Download <= 0 {
		cfg.Timeouts.Download = 30 * time.Second
	}
	if cfg.Timeouts.Probe <= 0 {
		cfg.Timeouts.Probe = 10 * time.Second
	}
	if cfg.Retry.ChatMaxAttempts <= 0 {
		cfg.Retry.ChatMaxAttempts = retry.ChatConfig().MaxAttempts
	}
	if cfg.Retry.ImageMaxAttempts <= 0 {
		cfg.Retry.ImageMaxAttempts = retry.ImageConfig().MaxAttempts
	}
	if cfg.Retry.BaseDelay <= 0 {
		cfg.Retry.BaseDelay = retry.DefaultConfig().InitialDelay
	}
	return cfg
}

// begin tags the call with an id, a logger carrying it and a span.
func (c *Client) begin(ctx context.Context, name string) (context.Context, *slog.Logger, trace.Span) {
	callID := uuid.NewString()
	logger := c.logger.With(slog.String("call_id", callID))
	ctx = logging.WithLogger(ctx, logger)
	ctx, span := c.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("call_id", callID)))
	return ctx, logger, span
}

// GenerateChatResponse asks the first healthy endpoint for a chat completion.
//
// When every endpoint fails and fallback is enabled, a canned answer is
// returned with Fallback set. A response without extractable text is an error
// wrapping ErrResponseFormat and never falls back.
func (c *Client) GenerateChatResponse(ctx context.Context, prompt string, temperature float64) (ChatReply, error) {
	if c.closed.Load() {
		return ChatReply{}, ErrClientClosed
	}

	ctx, logger, span := c.begin(ctx, "inference.GenerateChatResponse")
	defer span.End()

	body, ep, err := c.orch.Call(ctx, call{
		operation: "chat",
		path:      chatPath,
		build: func(cfg config.EndpointConfig) ([]byte, error) {
			return buildChatPayload(cfg.ChatModel, prompt, c.cfg.MaxTokens, temperature)
		},
		timeout:     c.cfg.Timeouts.Chat,
		maxAttempts: c.cfg.Retry.ChatMaxAttempts,
	})
	if err != nil {
		if c.fallback != nil && errors.Is(err, ErrAllEndpointsExhausted) {
			text := c.fallback.Next()
			c.metrics.RecordFallback()
			c.metrics.RecordRequest("chat", outcomeFallback)
			span.SetAttributes(attribute.Bool("fallback", true))
			logger.Warn("all inference endpoints failed, using fallback response",
				slog.Any("error", err))
			return ChatReply{Text: text, Fallback: true}, nil
		}
		c.fail(span, "chat", err)
		logger.Error("chat generation failed", slog.Any("error", err))
		return ChatReply{}, err
	}

	span.SetAttributes(attribute.String("endpoint", ep.name()))
	text, err := extractChatText(body)
	if err != nil {
		c.fail(span, "chat", err)
		logger.Error("unexpected chat response format",
			slog.String("endpoint", ep.name()),
			slog.String("body", truncate(string(body), 200)))
		return ChatReply{}, err
	}

	c.metrics.RecordRequest("chat", outcomeSuccess)
	logger.Info("chat response generated",
		slog.String("endpoint", ep.name()),
		slog.Int("length", len(text)))
	return ChatReply{Text: text}, nil
}

// GenerateImage asks the first healthy endpoint for one image and returns its
// bytes. Images have no fallback.
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	ctx, logger, span := c.begin(ctx, "inference.GenerateImage")
	defer span.End()

	body, ep, err := c.orch.Call(ctx, call{
		operation: "image",
		path:      imagePath,
		build: func(cfg config.EndpointConfig) ([]byte, error) {
			return buildImagePayload(cfg.ImageModel, prompt)
		},
		timeout:     c.cfg.Timeouts.Image,
		maxAttempts: c.cfg.Retry.ImageMaxAttempts,
	})
	if err != nil {
		c.fail(span, "image", err)
		logger.Error("image generation failed", slog.Any("error", err))
		return nil, err
	}

	span.SetAttributes(attribute.String("endpoint", ep.name()))
	data, url, err := extractImage(body)
	if err != nil {
		c.fail(span, "image", err)
		logger.Error("could not extract image data from response",
			slog.String("endpoint", ep.name()),
			slog.String("body", truncate(string(body), 200)))
		return nil, err
	}

	if url != "" {
		if data, err = c.download(ctx, ep, url); err != nil {
			c.fail(span, "image", err)
			logger.Error("image download failed",
				slog.String("endpoint", ep.name()),
				slog.Any("error", err))
			return nil, err
		}
	}

	c.metrics.RecordRequest("image", outcomeSuccess)
	logger.Info("image generated",
		slog.String("endpoint", ep.name()),
		slog.Int("bytes", len(data)))
	return data, nil
}

func (c *Client) fail(span trace.Span, operation string, err error) {
	c.metrics.RecordRequest(operation, outcomeFailure)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// download fetches an image URL through the endpoint's authenticated session.
func (c *Client) download(ctx context.Context, ep *endpoint, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.Download)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+ep.cfg.Credential)

	resp, err := ep.http.Do(req)
	if err != nil {
		return nil, &CallError{Kind: KindNetwork, Endpoint: ep.name(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &CallError{
			Kind:       KindHTTP,
			Endpoint:   ep.name(),
			StatusCode: resp.StatusCode,
			Err:        &retry.HTTPError{StatusCode: resp.StatusCode, Message: "image download failed"},
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &CallError{Kind: KindNetwork, Endpoint: ep.name(), StatusCode: resp.StatusCode, Err: err}
	}
	return data, nil
}

// Status returns a snapshot of every endpoint's availability and breaker state.
func (c *Client) Status() []EndpointStatus {
	states := c.registry.Snapshot()
	out := make([]EndpointStatus, len(states))
	for i, st := range states {
		out[i] = EndpointStatus{
			Name:         st.Name,
			Available:    st.Available,
			CircuitState: c.endpoints[i].breakerState(),
		}
		if !st.CooldownUntil.IsZero() {
			until := st.CooldownUntil
			out[i].CooldownUntil = &until
		}
	}
	return out
}

// Probe issues GET {baseURL}/models against every endpoint concurrently.
// Probing is informational and never changes cooldown state.
func (c *Client) Probe(ctx context.Context) ([]ProbeResult, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	results := make([]ProbeResult, len(c.endpoints))
	var g errgroup.Group
	for i, ep := range c.endpoints {
		g.Go(func() error {
			results[i] = c.probe(ctx, ep)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (c *Client) probe(ctx context.Context, ep *endpoint) ProbeResult {
	result := ProbeResult{Name: ep.name()}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.Probe)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.url(modelsPath), nil)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	req.Header.Set("Authorization", "Bearer "+ep.cfg.Credential)

	start := time.Now()
	resp, err := ep.http.Do(req)
	result.Latency = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.Healthy = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !result.Healthy {
		result.Error = http.StatusText(resp.StatusCode)
	}
	return result
}

// Close releases every endpoint's HTTP session. It is safe to call more than once.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	for _, ep := range c.endpoints {
		ep.close()
	}
	c.logger.Info("inference client closed")
	return nil
}
