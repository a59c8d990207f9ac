package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	pkgconfig "pablos-ai/pkg/config"
)

// ErrNoEndpoints is returned when no inference endpoint is configured.
// It is a configuration error and is reported at construction time, never per call.
var ErrNoEndpoints = errors.New("at least one endpoint configuration is required")

const (
	defaultBaseURL    = "https://ai.megallm.io/v1"
	defaultChatModel  = "gpt-4.1"
	defaultImageModel = "stability-image-1"
)

// EndpointConfig describes one OpenAI-compatible backend.
type EndpointConfig struct {
	// Name identifies the endpoint in logs and metrics. Must be unique.
	Name string `yaml:"name"`

	// BaseURL is the API root, e.g. "https://ai.megallm.io/v1".
	BaseURL string `yaml:"base_url"`

	// Credential is the bearer token. Never logged.
	Credential string `yaml:"access_key"`

	// ChatModel and ImageModel are optional; an empty value omits the
	// "model" field from the request so the backend picks its default.
	ChatModel  string `yaml:"model_chat"`
	ImageModel string `yaml:"model_image"`
}

// InferenceConfig holds configuration for the multi-endpoint inference client.
type InferenceConfig struct {
	// Endpoints in failover order.
	Endpoints []EndpointConfig `yaml:"endpoints"`

	// MaxTokens is sent as max_tokens on chat requests. Default: 400
	MaxTokens int `yaml:"max_tokens"`

	// EndpointCooldown is how long an endpoint is skipped after it keeps
	// answering 429 through all attempts. Default: 5m
	EndpointCooldown time.Duration `yaml:"endpoint_cooldown"`

	// FallbackEnabled returns canned answers when every endpoint fails.
	// Chat only. Default: true
	FallbackEnabled bool `yaml:"fallback_enabled"`

	// FallbackResponses overrides the built-in canned answers.
	FallbackResponses []string `yaml:"fallback_responses"`

	// UseMock swaps the network client for a deterministic stub.
	UseMock bool `yaml:"use_mock"`

	Timeouts       InferenceTimeouts    `yaml:"timeouts"`
	Retry          RetryPolicyConfig    `yaml:"retry"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// InferenceTimeouts holds per-HTTP-call timeouts.
type InferenceTimeouts struct {
	// Chat completion call. Default: 30s
	Chat time.Duration `yaml:"chat"`
	// Image generation call. Default: 60s
	Image time.Duration `yaml:"image"`
	// Image URL download. Default: 30s
	Download time.Duration `yaml:"download"`
	// Endpoint health probe. Default: 10s
	Probe time.Duration `yaml:"probe"`
}

// RetryPolicyConfig holds the per-endpoint retry budget.
type RetryPolicyConfig struct {
	// ChatMaxAttempts per endpoint. Default: 3
	ChatMaxAttempts int `yaml:"chat_max_attempts"`
	// ImageMaxAttempts per endpoint. Default: 2
	ImageMaxAttempts int `yaml:"image_max_attempts"`
	// BaseDelay of the exponential backoff. Default: 1s
	BaseDelay time.Duration `yaml:"base_delay"`
}

// RateLimitConfig is an optional client-side throttle applied per endpoint.
type RateLimitConfig struct {
	// RequestsPerSecond; 0 disables throttling.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	// Burst capacity. Default: 1
	Burst int `yaml:"burst"`
}

// CircuitBreakerConfig for per-endpoint resilience.
type CircuitBreakerConfig struct {
	// Enabled toggles the breaker. Default: true
	Enabled bool `yaml:"enabled"`

	// MaxRequests in half-open state.
	MaxRequests uint32 `yaml:"max_requests"`

	// Interval for clearing failure counts.
	Interval time.Duration `yaml:"interval"`

	// Timeout before transitioning from open to half-open.
	Timeout time.Duration `yaml:"timeout"`

	// FailureThreshold ratio to trip circuit (0.0 to 1.0).
	FailureThreshold float64 `yaml:"failure_threshold"`

	// MinRequests before calculating failure ratio.
	MinRequests uint32 `yaml:"min_requests"`
}

// LoadInferenceConfig loads inference configuration from environment variables,
// then applies the YAML file named by INFERENCE_CONFIG_FILE on top, if set.
//
// Endpoints are read from numbered slots: MODEL_ACCESS_KEY, MODEL_BASE_URL,
// MODEL_CHAT and MODEL_IMAGE for the first, the same keys suffixed with _2, _3...
// for the others. Slots without an access key are skipped.
func LoadInferenceConfig() (*InferenceConfig, error) {
	config := &InferenceConfig{
		Endpoints:        loadEndpointsFromEnv(pkgconfig.GetEnvInt("MODEL_ENDPOINT_MAX", 3)),
		MaxTokens:        pkgconfig.GetEnvInt("MAX_TOKENS", 400),
		EndpointCooldown: pkgconfig.GetEnvDuration("ENDPOINT_COOLDOWN", 300*time.Second),
		FallbackEnabled:  pkgconfig.GetEnvBool("INFERENCE_FALLBACK_ENABLED", true),
		UseMock:          pkgconfig.GetEnvBool("INFERENCE_USE_MOCK", false),
		Timeouts: InferenceTimeouts{
			Chat:     pkgconfig.GetEnvDuration("INFERENCE_CHAT_TIMEOUT", 30*time.Second),
			Image:    pkgconfig.GetEnvDuration("INFERENCE_IMAGE_TIMEOUT", 60*time.Second),
			Download: pkgconfig.GetEnvDuration("INFERENCE_DOWNLOAD_TIMEOUT", 30*time.Second),
			Probe:    pkgconfig.GetEnvDuration("INFERENCE_PROBE_TIMEOUT", 10*time.Second),
		},
		Retry: RetryPolicyConfig{
			ChatMaxAttempts:  pkgconfig.GetEnvInt("INFERENCE_CHAT_MAX_ATTEMPTS", 3),
			ImageMaxAttempts: pkgconfig.GetEnvInt("INFERENCE_IMAGE_MAX_ATTEMPTS", 2),
			BaseDelay:        pkgconfig.GetEnvDuration("INFERENCE_BASE_DELAY", 1*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: pkgconfig.GetEnvFloat("INFERENCE_RATE_LIMIT_RPS", 0),
			Burst:             pkgconfig.GetEnvInt("INFERENCE_RATE_LIMIT_BURST", 1),
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          pkgconfig.GetEnvBool("INFERENCE_CB_ENABLED", true),
			MaxRequests:      uint32(pkgconfig.GetEnvInt("INFERENCE_CB_MAX_REQUESTS", 3)),
			Interval:         pkgconfig.GetEnvDuration("INFERENCE_CB_INTERVAL", 30*time.Second),
			Timeout:          pkgconfig.GetEnvDuration("INFERENCE_CB_TIMEOUT", 60*time.Second),
			FailureThreshold: pkgconfig.GetEnvFloat("INFERENCE_CB_FAILURE_THRESHOLD", 0.6),
			MinRequests:      uint32(pkgconfig.GetEnvInt("INFERENCE_CB_MIN_REQUESTS", 5)),
		},
	}

	if path := os.Getenv("INFERENCE_CONFIG_FILE"); path != "" {
		if err := config.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid inference configuration: %w", err)
	}

	return config, nil
}

func loadEndpointsFromEnv(maxSlots int) []EndpointConfig {
	var endpoints []EndpointConfig
	for i := 1; i <= maxSlots; i++ {
		key := os.Getenv(pkgconfig.SuffixedKey("MODEL_ACCESS_KEY", i))
		if key == "" {
			continue
		}

		name := "primary"
		if i > 1 {
			name = fmt.Sprintf("endpoint-%d", i)
		}

		endpoints = append(endpoints, EndpointConfig{
			Name:       name,
			BaseURL:    pkgconfig.GetEnvString(pkgconfig.SuffixedKey("MODEL_BASE_URL", i), defaultBaseURL),
			Credential: key,
			ChatModel:  pkgconfig.GetEnvString(pkgconfig.SuffixedKey("MODEL_CHAT", i), defaultChatModel),
			ImageModel: pkgconfig.GetEnvString(pkgconfig.SuffixedKey("MODEL_IMAGE", i), defaultImageModel),
		})
	}
	return endpoints
}

// applyFile overlays YAML settings onto c. Fields absent from the file keep
// their current values; an endpoints list in the file replaces the env list.
// The path is expected to come from a trusted source (operator-set environment).
func (c *InferenceConfig) applyFile(path string) error {
	// #nosec G304 -- path is provided by the operator, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	// Credentials may be given indirectly so the file can be committed.
	for i := range c.Endpoints {
		c.Endpoints[i].Credential = os.ExpandEnv(c.Endpoints[i].Credential)
	}

	return nil
}

// Validate checks configuration correctness.
func (c *InferenceConfig) Validate() error {
	if len(c.Endpoints) == 0 {
		return ErrNoEndpoints
	}

	seen := make(map[string]struct{}, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		if strings.TrimSpace(ep.Name) == "" {
			return fmt.Errorf("endpoint %d: name cannot be empty", i)
		}
		if _, dup := seen[ep.Name]; dup {
			return fmt.Errorf("endpoint %q: duplicate name", ep.Name)
		}
		seen[ep.Name] = struct{}{}

		u, err := url.ParseRequestURI(ep.BaseURL)
		if err != nil || u.Host == "" {
			return fmt.Errorf("endpoint %q: invalid base url %q", ep.Name, ep.BaseURL)
		}
		if ep.Credential == "" {
			return fmt.Errorf("endpoint %q: access key is required", ep.Name)
		}
	}

	if c.MaxTokens <= 0 {
		return fmt.Errorf("MAX_TOKENS must be positive, got %d", c.MaxTokens)
	}
	if err := pkgconfig.ValidatePositiveDuration(c.EndpointCooldown); err != nil {
		return fmt.Errorf("ENDPOINT_COOLDOWN: %w", err)
	}

	for name, d := range map[string]time.Duration{
		"INFERENCE_CHAT_TIMEOUT":     c.Timeouts.Chat,
		"INFERENCE_IMAGE_TIMEOUT":    c.Timeouts.Image,
		"INFERENCE_DOWNLOAD_TIMEOUT": c.Timeouts.Download,
		"INFERENCE_PROBE_TIMEOUT":    c.Timeouts.Probe,
	} {
		if err := pkgconfig.ValidatePositiveDuration(d); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if c.Retry.ChatMaxAttempts < 1 {
		return fmt.Errorf("INFERENCE_CHAT_MAX_ATTEMPTS must be at least 1")
	}
	if c.Retry.ImageMaxAttempts < 1 {
		return fmt.Errorf("INFERENCE_IMAGE_MAX_ATTEMPTS must be at least 1")
	}
	if err := pkgconfig.ValidatePositiveDuration(c.Retry.BaseDelay); err != nil {
		return fmt.Errorf("INFERENCE_BASE_DELAY: %w", err)
	}

	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("INFERENCE_RATE_LIMIT_RPS cannot be negative")
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst < 1 {
		return fmt.Errorf("INFERENCE_RATE_LIMIT_BURST must be at least 1")
	}

	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.MaxRequests == 0 {
			return fmt.Errorf("INFERENCE_CB_MAX_REQUESTS must be positive")
		}
		if c.CircuitBreaker.Timeout <= 0 {
			return fmt.Errorf("INFERENCE_CB_TIMEOUT must be positive")
		}
		if c.CircuitBreaker.FailureThreshold <= 0 || c.CircuitBreaker.FailureThreshold > 1 {
			return fmt.Errorf("INFERENCE_CB_FAILURE_THRESHOLD must be between 0.0 and 1.0")
		}
	}

	return nil
}
