package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"pablos-ai/internal/resilience/retry"
)

// SlackConfig contains configuration for Slack Incoming Webhook notifications.
type SlackConfig struct {
	WebhookURL string
	Timeout    time.Duration
}

// SlackNotifier sends endpoint alerts to Slack using Block Kit.
type SlackNotifier struct {
	hook *webhook
}

// NewSlackNotifier creates a SlackNotifier limited to one message per second.
func NewSlackNotifier(cfg SlackConfig, opts ...Option) *SlackNotifier {
	hook := &webhook{
		name:        "Slack",
		url:         cfg.WebhookURL,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(1, 1),
		maxAttempts: 2,
		baseDelay:   5 * time.Second,
		sleep:       retry.Sleep,
		logger:      slog.Default(),
		retryAfter: func(resp *http.Response, _ []byte) time.Duration {
			return headerRetryAfter(resp)
		},
	}
	for _, opt := range opts {
		opt(hook)
	}
	return &SlackNotifier{hook: hook}
}

// SlackWebhookPayload is the JSON body posted to the webhook.
type SlackWebhookPayload struct {
	Text   string       `json:"text"` // notification fallback
	Blocks []SlackBlock `json:"blocks"`
}

// SlackBlock is a Block Kit block.
type SlackBlock struct {
	Type     string            `json:"type"`
	Text     *SlackTextObject  `json:"text,omitempty"`
	Elements []SlackTextObject `json:"elements,omitempty"`
}

// SlackTextObject is a Block Kit text object.
type SlackTextObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

const maxSectionTextLength = 3000

func (s *SlackNotifier) buildBlockKitPayload(alert Alert) SlackWebhookPayload {
	headline := fmt.Sprintf(":red_circle: Endpoint *%s* is down", alert.Endpoint)
	fallback := fmt.Sprintf("Endpoint %s is down", alert.Endpoint)
	if alert.Healthy {
		headline = fmt.Sprintf(":large_green_circle: Endpoint *%s* recovered", alert.Endpoint)
		fallback = fmt.Sprintf("Endpoint %s recovered", alert.Endpoint)
	}

	section := headline
	if !alert.Healthy && alert.Error != "" {
		section = truncate(fmt.Sprintf("%s\n```%s```", headline, alert.Error), maxSectionTextLength, truncationSuffix)
	}

	ctxText := alert.At.UTC().Format(time.RFC3339)
	if alert.StatusCode != 0 {
		ctxText = fmt.Sprintf("HTTP %d • %s", alert.StatusCode, ctxText)
	}

	return SlackWebhookPayload{
		Text: fallback,
		Blocks: []SlackBlock{
			{Type: "section", Text: &SlackTextObject{Type: "mrkdwn", Text: section}},
			{Type: "context", Elements: []SlackTextObject{{Type: "mrkdwn", Text: ctxText}}},
		},
	}
}

// NotifyEndpoint posts alert as Block Kit blocks.
func (s *SlackNotifier) NotifyEndpoint(ctx context.Context, alert Alert) error {
	return s.hook.send(ctx, alert, s.buildBlockKitPayload(alert))
}
