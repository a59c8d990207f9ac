package notifier

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ProbeOutcome is the result of probing one endpoint.
type ProbeOutcome struct {
	Endpoint   string
	Healthy    bool
	StatusCode int
	Error      string
}

// Watcher remembers the last known health of each endpoint and alerts on
// changes. An endpoint seen for the first time alerts only if it is down.
type Watcher struct {
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.Mutex
	last map[string]bool
}

// NewWatcher creates a Watcher that sends through n.
func NewWatcher(n Notifier, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		notifier: n,
		logger:   logger,
		now:      time.Now,
		last:     make(map[string]bool),
	}
}

// Observe records one probe round and returns the alerts it sent.
// Send failures are logged and the new state is kept anyway.
func (w *Watcher) Observe(ctx context.Context, outcomes []ProbeOutcome) []Alert {
	w.mu.Lock()
	var alerts []Alert
	for _, o := range outcomes {
		prev, seen := w.last[o.Endpoint]
		w.last[o.Endpoint] = o.Healthy
		if (seen && prev == o.Healthy) || (!seen && o.Healthy) {
			continue
		}
		alerts = append(alerts, Alert{
			Endpoint:   o.Endpoint,
			Healthy:    o.Healthy,
			StatusCode: o.StatusCode,
			Error:      o.Error,
			At:         w.now(),
		})
	}
	w.mu.Unlock()

	for _, a := range alerts {
		if err := w.notifier.NotifyEndpoint(ctx, a); err != nil {
			w.logger.Error("failed to send endpoint alert",
				slog.String("endpoint", a.Endpoint),
				slog.Bool("healthy", a.Healthy),
				slog.Any("error", err))
		}
	}
	return alerts
}
