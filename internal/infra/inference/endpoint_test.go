package inference

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"pablos-ai/internal/config"
)

func TestNewEndpoint(t *testing.T) {
	cfg := config.EndpointConfig{Name: "primary", BaseURL: "https://api.example.com/v1/", Credential: "k"}

	t.Run("plain", func(t *testing.T) {
		ep := newEndpoint(0, cfg, config.RateLimitConfig{}, config.CircuitBreakerConfig{}, nil)
		assert.Equal(t, "primary", ep.name())
		assert.Equal(t, "https://api.example.com/v1/chat/completions", ep.url(chatPath))
		assert.Nil(t, ep.limiter)
		assert.Nil(t, ep.breaker)
		assert.Equal(t, "disabled", ep.breakerState())
	})

	t.Run("throttled with breaker", func(t *testing.T) {
		ep := newEndpoint(1, cfg,
			config.RateLimitConfig{RequestsPerSecond: 2, Burst: 0},
			config.CircuitBreakerConfig{
				Enabled:          true,
				MaxRequests:      1,
				Interval:         time.Minute,
				Timeout:          time.Minute,
				FailureThreshold: 0.5,
				MinRequests:      1,
			}, nil)

		if assert.NotNil(t, ep.limiter) {
			assert.Equal(t, rate.Limit(2), ep.limiter.Limit())
			assert.Equal(t, 1, ep.limiter.Burst(), "burst defaults to one")
		}
		assert.Equal(t, "closed", ep.breakerState())
	})
}
