package worker

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestProbeConfig_Validate(t *testing.T) {
	cfg := ProbeConfig{Schedule: "not cron", Timezone: "Mars/Olympus", Timeout: 0, AlertTimeout: time.Hour}
	err := cfg.Validate()
	assert.ErrorContains(t, err, "schedule:")
	assert.ErrorContains(t, err, "timezone:")
	assert.ErrorContains(t, err, "timeout:")
	assert.ErrorContains(t, err, "alert timeout:")
}

func TestLoadConfigFromEnv(t *testing.T) {
	tests := []struct {
		name          string
		env           map[string]string
		want          ProbeConfig
		wantFallbacks map[string]float64
	}{
		{
			name: "defaults",
			want: DefaultConfig(),
		},
		{
			name: "valid overrides",
			env: map[string]string{
				"INFERENCE_PROBE_SCHEDULE": "*/10 * * * *",
				"INFERENCE_PROBE_TIMEZONE": "Asia/Jakarta",
				"INFERENCE_PROBE_TIMEOUT":  "30",
				"ALERT_TIMEOUT":            "2m",
			},
			want: ProbeConfig{Schedule: "*/10 * * * *", Timezone: "Asia/Jakarta", Timeout: 30 * time.Second, AlertTimeout: 2 * time.Minute},
		},
		{
			name: "invalid values fall back",
			env: map[string]string{
				"INFERENCE_PROBE_SCHEDULE": "every so often",
				"INFERENCE_PROBE_TIMEZONE": "Nowhere/Land",
				"INFERENCE_PROBE_TIMEOUT":  "1h",
				"ALERT_TIMEOUT":            "soon",
			},
			want: DefaultConfig(),
			wantFallbacks: map[string]float64{
				"schedule": 1, "timezone": 1, "timeout": 1, "alert_timeout": 1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			metrics := NewProbeMetrics(prometheus.NewRegistry())

			got := LoadConfigFromEnv(slog.New(slog.NewTextHandler(io.Discard, nil)), metrics)

			assert.Equal(t, tt.want, got)
			for field, n := range tt.wantFallbacks {
				assert.Equal(t, n, testutil.ToFloat64(metrics.ConfigFallbacksTotal.WithLabelValues(field)), field)
			}
			assert.Equal(t, len(tt.wantFallbacks), testutil.CollectAndCount(metrics.ConfigFallbacksTotal))
		})
	}
}
