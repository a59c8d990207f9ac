package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pablos-ai/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// manualClock is a Clock that only moves when told to.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingSleeper records backoff delays without sleeping.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// recordedRequest is what an upstream saw of one request.
type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

// upstream is a fake OpenAI-compatible backend that counts and records requests.
type upstream struct {
	*httptest.Server
	hits atomic.Int64

	mu       sync.Mutex
	requests []recordedRequest
}

func newUpstream(t *testing.T, handler http.HandlerFunc) *upstream {
	t.Helper()
	u := &upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(raw))

		rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization")}
		_ = json.Unmarshal(raw, &rec.Body)
		u.mu.Lock()
		u.requests = append(u.requests, rec)
		u.mu.Unlock()

		u.hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(u.Close)
	return u
}

func (u *upstream) Hits() int64 {
	return u.hits.Load()
}

func (u *upstream) Requests() []recordedRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]recordedRequest(nil), u.requests...)
}

// deadURL returns the address of a server that is no longer listening.
func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func chatOK(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"`+text+`"}}]}`)
	}
}

func statusHandler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status, `{"error":{"message":"nope"}}`)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testInferenceConfig(urls ...string) *config.InferenceConfig {
	cfg := &config.InferenceConfig{
		MaxTokens:        400,
		EndpointCooldown: 300 * time.Second,
		FallbackEnabled:  true,
		Timeouts: config.InferenceTimeouts{
			Chat:     5 * time.Second,
			Image:    5 * time.Second,
			Download: 5 * time.Second,
			Probe:    5 * time.Second,
		},
		Retry: config.RetryPolicyConfig{
			ChatMaxAttempts:  3,
			ImageMaxAttempts: 2,
			BaseDelay:        time.Second,
		},
	}
	for i, u := range urls {
		cfg.Endpoints = append(cfg.Endpoints, config.EndpointConfig{
			Name:       "ep-" + string(rune('a'+i)),
			BaseURL:    u,
			Credential: "sk-test-" + string(rune('a'+i)),
			ChatModel:  "gpt-test",
			ImageModel: "img-test",
		})
	}
	return cfg
}

type testHarness struct {
	client  *Client
	clock   *manualClock
	sleeper *recordingSleeper
	metrics *recordingMetrics
}

func newTestClient(t *testing.T, cfg *config.InferenceConfig, opts ...Option) *testHarness {
	t.Helper()
	h := &testHarness{
		clock:   newManualClock(),
		sleeper: &recordingSleeper{},
		metrics: newRecordingMetrics(),
	}
	base := []Option{
		WithClock(h.clock),
		WithSleeper(h.sleeper.Sleep),
		WithLogger(discardLogger()),
		WithMetrics(h.metrics),
	}
	client, err := NewClient(cfg, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	h.client = client
	return h
}

// recordingMetrics is a MetricsRecorder that counts calls.
type recordingMetrics struct {
	mu        sync.Mutex
	requests  map[string]int
	attempts  map[string]int
	retries   int
	cooldowns map[string]int
	available map[string]bool
	fallbacks int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		requests:  map[string]int{},
		attempts:  map[string]int{},
		cooldowns: map[string]int{},
		available: map[string]bool{},
	}
}

func (m *recordingMetrics) RecordRequest(operation, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[operation+"/"+outcome]++
}

func (m *recordingMetrics) RecordAttempt(endpoint, operation, result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[endpoint+"/"+result]++
}

func (m *recordingMetrics) RecordRetry(string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries++
}

func (m *recordingMetrics) RecordCooldown(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cooldowns[endpoint]++
}

func (m *recordingMetrics) SetEndpointAvailable(endpoint string, available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available[endpoint] = available
}

func (m *recordingMetrics) RecordFallback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks++
}
