package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	pkgconfig "pablos-ai/pkg/config"
)

// ProbeConfig controls the periodic endpoint probe.
type ProbeConfig struct {
	// Schedule is a five-field cron expression or a descriptor such as
	// "@every 5m". Default: "@every 5m"
	Schedule string

	// Timezone is the IANA zone the schedule is evaluated in. Default: UTC
	Timezone string

	// Timeout bounds one probe round. Range: 1s-5m. Default: 10s
	Timeout time.Duration

	// AlertTimeout bounds sending the alerts of one round. Range: 1s-10m. Default: 1m
	AlertTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() ProbeConfig {
	return ProbeConfig{
		Schedule:     "@every 5m",
		Timezone:     "UTC",
		Timeout:      10 * time.Second,
		AlertTimeout: time.Minute,
	}
}

// Validate checks every field and reports all problems at once.
func (c *ProbeConfig) Validate() error {
	var errs []error
	if err := validateSchedule(c.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("schedule: %w", err))
	}
	if err := validateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := pkgconfig.ValidateDurationRange(c.Timeout, time.Second, 5*time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("timeout: %w", err))
	}
	if err := pkgconfig.ValidateDurationRange(c.AlertTimeout, time.Second, 10*time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("alert timeout: %w", err))
	}
	return errors.Join(errs...)
}

// LoadConfigFromEnv reads the probe settings, falling back to the default
// for any value that is set but invalid. Each fallback is logged and counted;
// the loader itself never fails.
//
// Environment variables:
//   - INFERENCE_PROBE_SCHEDULE
//   - INFERENCE_PROBE_TIMEZONE
//   - INFERENCE_PROBE_TIMEOUT
//   - ALERT_TIMEOUT
func LoadConfigFromEnv(logger *slog.Logger, metrics *ProbeMetrics) ProbeConfig {
	cfg := DefaultConfig()

	fallback := func(field, key, value string, err error) {
		metrics.RecordFallback(field)
		logger.Warn("configuration fallback applied",
			slog.String("field", field),
			slog.String("env_key", key),
			slog.String("invalid_value", value),
			slog.String("error", err.Error()))
	}

	if v, ok := os.LookupEnv("INFERENCE_PROBE_SCHEDULE"); ok {
		if err := validateSchedule(v); err != nil {
			fallback("schedule", "INFERENCE_PROBE_SCHEDULE", v, err)
		} else {
			cfg.Schedule = v
		}
	}

	if v, ok := os.LookupEnv("INFERENCE_PROBE_TIMEZONE"); ok {
		if err := validateTimezone(v); err != nil {
			fallback("timezone", "INFERENCE_PROBE_TIMEZONE", v, err)
		} else {
			cfg.Timezone = v
		}
	}

	loadDuration := func(field, key string, dst *time.Duration, lo, hi time.Duration) {
		v, ok := os.LookupEnv(key)
		if !ok {
			return
		}
		d, err := pkgconfig.ParseDuration(v)
		if err == nil {
			err = pkgconfig.ValidateDurationRange(d, lo, hi)
		}
		if err != nil {
			fallback(field, key, v, err)
			return
		}
		*dst = d
	}
	loadDuration("timeout", "INFERENCE_PROBE_TIMEOUT", &cfg.Timeout, time.Second, 5*time.Minute)
	loadDuration("alert_timeout", "ALERT_TIMEOUT", &cfg.AlertTimeout, time.Second, 10*time.Minute)

	return cfg
}

func validateSchedule(schedule string) error {
	if schedule == "" {
		return errors.New("cannot be empty")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

func validateTimezone(tz string) error {
	if tz == "" {
		return errors.New("cannot be empty")
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return nil
}
