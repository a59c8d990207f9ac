package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ProbeMetrics are the Prometheus metrics of the probe job.
//
//   - probe_job_runs_total{status}: rounds by outcome (success, partial, failure)
//   - probe_job_duration_seconds: duration of one round
//   - probe_job_last_success_timestamp: unix time of the last successful round
//   - probe_job_endpoints_healthy: endpoints that passed the last round
//   - probe_job_alerts_total{state}: alerts raised (down, recovered)
//   - probe_job_config_fallbacks_total{field}: invalid settings replaced by defaults
type ProbeMetrics struct {
	RunsTotal            *prometheus.CounterVec
	DurationSeconds      prometheus.Histogram
	LastSuccessTimestamp prometheus.Gauge
	EndpointsHealthy     prometheus.Gauge
	AlertsTotal          *prometheus.CounterVec
	ConfigFallbacksTotal *prometheus.CounterVec
}

// NewProbeMetrics creates the metrics and registers them with reg.
func NewProbeMetrics(reg prometheus.Registerer) *ProbeMetrics {
	f := promauto.With(reg)
	return &ProbeMetrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "probe_job_runs_total",
			Help: "Total number of endpoint probe rounds by status (success/partial/failure)",
		}, []string{"status"}),

		DurationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "probe_job_duration_seconds",
			Help:    "Duration of one endpoint probe round in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),

		LastSuccessTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "probe_job_last_success_timestamp",
			Help: "Unix timestamp of the last successful probe round",
		}),

		EndpointsHealthy: f.NewGauge(prometheus.GaugeOpts{
			Name: "probe_job_endpoints_healthy",
			Help: "Number of endpoints that passed the last probe round",
		}),

		AlertsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "probe_job_alerts_total",
			Help: "Endpoint health alerts raised by state (down/recovered)",
		}, []string{"state"}),

		ConfigFallbacksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "probe_job_config_fallbacks_total",
			Help: "Invalid probe settings replaced by their defaults",
		}, []string{"field"}),
	}
}

// Probe round outcomes.
const (
	runSuccess = "success"
	runPartial = "partial"
	runFailure = "failure"
)

// RecordRun counts one round; status is runSuccess, runPartial or runFailure.
// Only a full success moves the last-success timestamp.
func (m *ProbeMetrics) RecordRun(status string, seconds float64) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.DurationSeconds.Observe(seconds)
	if status == runSuccess {
		m.LastSuccessTimestamp.SetToCurrentTime()
	}
}

// RecordFallback counts a configuration fallback for field.
func (m *ProbeMetrics) RecordFallback(field string) {
	m.ConfigFallbacksTotal.WithLabelValues(field).Inc()
}
