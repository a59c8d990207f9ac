// Package circuitbreaker wraps github.com/sony/gobreaker with one breaker per
// inference endpoint. A breaker opens once enough calls have been seen and the
// failure ratio crosses the threshold; while open, calls are rejected without
// touching the endpoint.
package circuitbreaker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name is used in logs and metrics.
	Name string

	// MaxRequests allowed through while half-open.
	MaxRequests uint32

	// Interval after which closed-state counts are cleared.
	Interval time.Duration

	// Timeout spent open before moving to half-open.
	Timeout time.Duration

	// FailureThreshold is the failure ratio (0.0 to 1.0) that trips the breaker.
	FailureThreshold float64

	// MinRequests seen before the ratio is considered.
	MinRequests uint32

	// IsFailure decides whether an error counts against the breaker.
	// Nil counts every non-nil error.
	IsFailure func(err error) bool

	// OnStateChange, when set, is called after every transition.
	OnStateChange func(name string, from, to State)

	// Logger for state transitions. Default: slog.Default()
	Logger *slog.Logger
}

// State mirrors gobreaker.State.
type State = gobreaker.State

// Breaker states.
const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

// EndpointConfig returns the defaults for a single inference endpoint: trip at
// a 60% failure ratio over at least 5 calls, probe again after 60s.
func EndpointConfig(endpoint string) Config {
	return Config{
		Name:             "inference-" + endpoint,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// CircuitBreaker is a named gobreaker.CircuitBreaker.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// New creates a circuit breaker from cfg.
func New(cfg Config) *CircuitBreaker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	}
	if cfg.IsFailure != nil {
		isFailure := cfg.IsFailure
		settings.IsSuccessful = func(err error) bool {
			return err == nil || !isFailure(err)
		}
	}

	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		name:    cfg.Name,
	}
}

// Do runs fn through cb. When the breaker rejects the call, fn is not run and
// the error satisfies IsRejected.
func Do[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	res, err := cb.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	v, _ := res.(T)
	return v, err
}

// IsRejected reports whether err means the breaker refused the call, either
// because it is open or because the half-open quota is used up.
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	return cb.breaker.State()
}

// Counts returns the request counts of the current generation.
func (cb *CircuitBreaker) Counts() gobreaker.Counts {
	return cb.breaker.Counts()
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}
