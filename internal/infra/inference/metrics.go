package inference

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder abstracts metrics recording so tests can inject a recorder
// and the client works without a Prometheus registry.
type MetricsRecorder interface {
	// RecordRequest counts one façade call by operation ("chat", "image")
	// and outcome ("success", "fallback", "failure").
	RecordRequest(operation, outcome string)

	// RecordAttempt counts one HTTP attempt and observes its latency.
	// result is "success" or an ErrorKind.
	RecordAttempt(endpoint, operation, result string, duration time.Duration)

	// RecordRetry counts a backoff wait before a repeated attempt.
	RecordRetry(endpoint, operation string)

	// RecordCooldown counts an endpoint entering cooldown.
	RecordCooldown(endpoint string)

	// SetEndpointAvailable tracks whether an endpoint is out of cooldown.
	SetEndpointAvailable(endpoint string, available bool)

	// RecordFallback counts a canned answer handed out.
	RecordFallback()
}

// PrometheusMetrics implements MetricsRecorder using Prometheus metrics.
type PrometheusMetrics struct {
	requests        *prometheus.CounterVec
	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	retries         *prometheus.CounterVec
	cooldowns       *prometheus.CounterVec
	available       *prometheus.GaugeVec
	fallbacks       prometheus.Counter
}

var (
	prometheusMetricsInstance *PrometheusMetrics
	prometheusMetricsOnce     sync.Once
)

// register registers c with the default registry, returning the already
// registered collector when an equal one exists.
func register[T prometheus.Collector](c T) T {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// NewPrometheusMetrics returns the process-wide Prometheus recorder.
// Uses singleton pattern to avoid duplicate metric registration in tests.
func NewPrometheusMetrics() *PrometheusMetrics {
	prometheusMetricsOnce.Do(func() {
		prometheusMetricsInstance = &PrometheusMetrics{
			requests: register(prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "inference_requests_total",
					Help: "Total number of inference client calls by operation and outcome",
				},
				[]string{"operation", "outcome"},
			)),
			attempts: register(prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "inference_attempts_total",
					Help: "Total number of HTTP attempts against inference endpoints",
				},
				[]string{"endpoint", "operation", "result"},
			)),
			attemptDuration: register(prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "inference_attempt_duration_seconds",
					Help:    "Latency of single HTTP attempts against inference endpoints",
					Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
				},
				[]string{"endpoint", "operation"},
			)),
			retries: register(prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "inference_retries_total",
					Help: "Total number of backoff retries against the same endpoint",
				},
				[]string{"endpoint", "operation"},
			)),
			cooldowns: register(prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "inference_cooldowns_total",
					Help: "Total number of times an endpoint entered rate-limit cooldown",
				},
				[]string{"endpoint"},
			)),
			available: register(prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "inference_endpoint_available",
					Help: "Whether an endpoint is out of cooldown (1) or cooling down (0)",
				},
				[]string{"endpoint"},
			)),
			fallbacks: register(prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "inference_fallback_responses_total",
					Help: "Total number of canned fallback answers returned",
				},
			)),
		}
	})
	return prometheusMetricsInstance
}

// RecordRequest implements MetricsRecorder.RecordRequest
func (p *PrometheusMetrics) RecordRequest(operation, outcome string) {
	p.requests.WithLabelValues(operation, outcome).Inc()
}

// RecordAttempt implements MetricsRecorder.RecordAttempt
func (p *PrometheusMetrics) RecordAttempt(endpoint, operation, result string, duration time.Duration) {
	p.attempts.WithLabelValues(endpoint, operation, result).Inc()
	p.attemptDuration.WithLabelValues(endpoint, operation).Observe(duration.Seconds())
}

// RecordRetry implements MetricsRecorder.RecordRetry
func (p *PrometheusMetrics) RecordRetry(endpoint, operation string) {
	p.retries.WithLabelValues(endpoint, operation).Inc()
}

// RecordCooldown implements MetricsRecorder.RecordCooldown
func (p *PrometheusMetrics) RecordCooldown(endpoint string) {
	p.cooldowns.WithLabelValues(endpoint).Inc()
}

// SetEndpointAvailable implements MetricsRecorder.SetEndpointAvailable
func (p *PrometheusMetrics) SetEndpointAvailable(endpoint string, available bool) {
	v := 0.0
	if available {
		v = 1.0
	}
	p.available.WithLabelValues(endpoint).Set(v)
}

// RecordFallback implements MetricsRecorder.RecordFallback
func (p *PrometheusMetrics) RecordFallback() {
	p.fallbacks.Inc()
}

// NoopMetrics discards all measurements.
type NoopMetrics struct{}

func (NoopMetrics) RecordRequest(string, string)                       {}
func (NoopMetrics) RecordAttempt(string, string, string, time.Duration) {}
func (NoopMetrics) RecordRetry(string, string)                         {}
func (NoopMetrics) RecordCooldown(string)                              {}
func (NoopMetrics) SetEndpointAvailable(string, bool)                  {}
func (NoopMetrics) RecordFallback()                                    {}
