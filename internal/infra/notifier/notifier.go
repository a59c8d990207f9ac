// Package notifier posts endpoint health alerts to chat webhooks.
//
// The probe job feeds every round of results to a Watcher, which forwards
// only state changes (an endpoint going down or coming back) to a Notifier.
// Discord and Slack webhooks are supported; NoOpNotifier is used when no
// webhook is configured.
package notifier

import (
	"context"
	"time"
)

// Alert is one endpoint health transition.
type Alert struct {
	Endpoint string
	// Healthy is the new state: false for "down", true for "recovered".
	Healthy    bool
	StatusCode int
	Error      string
	At         time.Time
}

// Notifier sends endpoint alerts.
// Implementations handle rate limiting and retries internally.
type Notifier interface {
	NotifyEndpoint(ctx context.Context, alert Alert) error
}
