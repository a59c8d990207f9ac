package inference

import (
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"pablos-ai/internal/config"
	"pablos-ai/internal/resilience/circuitbreaker"
)

// endpoint is the runtime side of one configured backend: its own HTTP session,
// optional client-side throttle and optional circuit breaker. Cooldown state
// lives in the Registry.
type endpoint struct {
	index   int
	cfg     config.EndpointConfig
	baseURL string

	http    *http.Client
	limiter *rate.Limiter
	breaker *circuitbreaker.CircuitBreaker
}

func newEndpoint(index int, cfg config.EndpointConfig, rl config.RateLimitConfig, cb config.CircuitBreakerConfig, transport http.RoundTripper) *endpoint {
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	ep := &endpoint{
		index:   index,
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Transport: transport},
	}

	if rl.RequestsPerSecond > 0 {
		burst := rl.Burst
		if burst < 1 {
			burst = 1
		}
		ep.limiter = rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), burst)
	}

	if cb.Enabled {
		cbCfg := circuitbreaker.EndpointConfig(cfg.Name)
		cbCfg.MaxRequests = cb.MaxRequests
		cbCfg.Interval = cb.Interval
		cbCfg.Timeout = cb.Timeout
		cbCfg.FailureThreshold = cb.FailureThreshold
		cbCfg.MinRequests = cb.MinRequests
		cbCfg.IsFailure = tripsBreaker
		ep.breaker = circuitbreaker.New(cbCfg)
	}

	return ep
}

func (e *endpoint) name() string {
	return e.cfg.Name
}

func (e *endpoint) url(path string) string {
	return e.baseURL + path
}

// breakerState returns the breaker state name, or "disabled".
func (e *endpoint) breakerState() string {
	if e.breaker == nil {
		return "disabled"
	}
	return e.breaker.State().String()
}

// close releases idle connections held by the endpoint's session.
func (e *endpoint) close() {
	e.http.CloseIdleConnections()
}
