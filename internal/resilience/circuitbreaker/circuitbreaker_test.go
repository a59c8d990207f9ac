package circuitbreaker

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := EndpointConfig("test")
	cfg.Interval = 10 * time.Second
	cfg.Timeout = 20 * time.Second
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return cfg
}

func fail(err error) func() ([]byte, error) {
	return func() ([]byte, error) { return nil, err }
}

func TestEndpointConfig(t *testing.T) {
	cfg := EndpointConfig("primary")

	assert.Equal(t, "inference-primary", cfg.Name)
	assert.Equal(t, uint32(3), cfg.MaxRequests)
	assert.Equal(t, 0.6, cfg.FailureThreshold)
	assert.Equal(t, uint32(5), cfg.MinRequests)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
}

func TestDo_PassesResultThrough(t *testing.T) {
	cb := New(testConfig())

	body, err := Do(cb, func() ([]byte, error) { return []byte(`{"ok":true}`), nil })

	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(body))
	assert.Equal(t, "inference-test", cb.Name())
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(1), cb.Counts().TotalSuccesses)
}

func TestDo_TripsOpenAndRejects(t *testing.T) {
	cb := New(testConfig())
	upstream := errors.New("502 bad gateway")

	// four failures stay below MinRequests
	for i := 0; i < 4; i++ {
		_, err := Do(cb, fail(upstream))
		assert.ErrorIs(t, err, upstream)
	}
	assert.Equal(t, StateClosed, cb.State())

	_, err := Do(cb, fail(upstream))
	assert.ErrorIs(t, err, upstream)
	require.Equal(t, StateOpen, cb.State())

	called := false
	_, err = Do(cb, func() ([]byte, error) {
		called = true
		return nil, nil
	})
	assert.False(t, called, "open breaker must not call through")
	assert.True(t, IsRejected(err))
	assert.False(t, IsRejected(upstream))
}

func TestDo_IsFailureFilter(t *testing.T) {
	badRequest := errors.New("400 bad request")
	cfg := testConfig()
	cfg.IsFailure = func(err error) bool { return !errors.Is(err, badRequest) }
	cb := New(cfg)

	for i := 0; i < 10; i++ {
		_, err := Do(cb, fail(badRequest))
		assert.ErrorIs(t, err, badRequest)
	}

	assert.Equal(t, StateClosed, cb.State(), "filtered errors must not trip the breaker")
}

func TestDo_HalfOpenRecovery(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRequests = 1
	cfg.Timeout = 100 * time.Millisecond

	var transitions []State
	cfg.OnStateChange = func(_ string, _, to State) { transitions = append(transitions, to) }
	cb := New(cfg)

	for i := 0; i < 5; i++ {
		_, _ = Do(cb, fail(errors.New("timeout")))
	}
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(150 * time.Millisecond)

	_, err := Do(cb, func() ([]byte, error) { return []byte("pong"), nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}
