// Package worker runs the periodic endpoint probe of the API server.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"pablos-ai/internal/infra/inference"
	"pablos-ai/internal/infra/notifier"
	"pablos-ai/pkg/security"
)

// Prober is the part of the inference client the job needs.
type Prober interface {
	Probe(ctx context.Context) ([]inference.ProbeResult, error)
}

// ProbeJob probes every endpoint, records metrics and hands the outcome to a
// notifier.Watcher, which alerts on health changes.
type ProbeJob struct {
	Prober  Prober
	Watcher *notifier.Watcher
	Metrics *ProbeMetrics
	Config  ProbeConfig
	Logger  *slog.Logger
}

// Run executes one probe round.
//
// A round cut short by its deadline still reports and alerts on the results
// collected so far; endpoints that had not answered count as unhealthy. Such a
// round is recorded as "partial" and Run returns the probe error.
func (j *ProbeJob) Run(ctx context.Context) error {
	start := time.Now()

	probeCtx, cancel := context.WithTimeout(ctx, j.Config.Timeout)
	defer cancel()

	status := runSuccess
	results, probeErr := j.Prober.Probe(probeCtx)
	if probeErr != nil {
		if len(results) == 0 {
			j.Metrics.RecordRun(runFailure, time.Since(start).Seconds())
			j.Logger.Error("endpoint probe failed", slog.String("error", security.SanitizeError(probeErr)))
			return fmt.Errorf("probe: %w", probeErr)
		}
		status = runPartial
		j.Logger.Warn("endpoint probe incomplete, using collected results",
			slog.Int("results", len(results)),
			slog.String("error", security.SanitizeError(probeErr)))
	}

	healthy := 0
	outcomes := make([]notifier.ProbeOutcome, 0, len(results))
	for _, r := range results {
		if r.Name == "" {
			continue
		}
		outcomes = append(outcomes, notifier.ProbeOutcome{
			Endpoint:   r.Name,
			Healthy:    r.Healthy,
			StatusCode: r.StatusCode,
			Error:      r.Error,
		})
		if r.Healthy {
			healthy++
			continue
		}
		j.Logger.Warn("endpoint unhealthy",
			slog.String("endpoint", r.Name),
			slog.Int("status", r.StatusCode),
			slog.String("error", r.Error))
	}

	j.Metrics.EndpointsHealthy.Set(float64(healthy))
	j.Metrics.RecordRun(status, time.Since(start).Seconds())
	j.Logger.Info("endpoint probe completed",
		slog.String("status", status),
		slog.Int("healthy", healthy),
		slog.Int("total", len(outcomes)),
		slog.Duration("duration", time.Since(start)))

	// Alerts get their own deadline; the probe one may be nearly spent.
	alertCtx, alertCancel := context.WithTimeout(ctx, j.Config.AlertTimeout)
	defer alertCancel()
	for _, a := range j.Watcher.Observe(alertCtx, outcomes) {
		state := "down"
		if a.Healthy {
			state = "recovered"
		}
		j.Metrics.AlertsTotal.WithLabelValues(state).Inc()
	}

	if probeErr != nil {
		return fmt.Errorf("probe incomplete: %w", probeErr)
	}
	return nil
}

// Start schedules Run on the configured cron schedule and starts the
// scheduler. Stop the returned scheduler on shutdown.
func (j *ProbeJob) Start() (*cron.Cron, error) {
	loc, err := time.LoadLocation(j.Config.Timezone)
	if err != nil {
		j.Logger.Error("invalid timezone, using UTC", slog.String("timezone", j.Config.Timezone), slog.Any("error", err))
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(j.Config.Schedule, func() {
		_ = j.Run(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("add probe job: %w", err)
	}
	c.Start()

	j.Logger.Info("endpoint probe scheduled",
		slog.String("schedule", j.Config.Schedule),
		slog.String("timezone", loc.String()))
	return c, nil
}
