package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"pablos-ai/internal/resilience/retry"
)

// DiscordConfig contains configuration for Discord webhook notifications.
type DiscordConfig struct {
	// WebhookURL includes the webhook token.
	WebhookURL string

	// Timeout is the HTTP request timeout for Discord API calls.
	Timeout time.Duration
}

// Option customizes a webhook notifier.
type Option func(*webhook)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(w *webhook) { w.logger = l } }

// WithSleeper replaces the backoff sleep; tests use it to avoid waiting.
func WithSleeper(s retry.Sleeper) Option { return func(w *webhook) { w.sleep = s } }

// DiscordNotifier sends endpoint alerts to Discord as embeds.
type DiscordNotifier struct {
	hook *webhook
}

// NewDiscordNotifier creates a DiscordNotifier limited to 0.5 requests per
// second with a burst of 3 (the webhook limit is 30 per minute).
func NewDiscordNotifier(cfg DiscordConfig, opts ...Option) *DiscordNotifier {
	hook := &webhook{
		name:        "Discord",
		url:         cfg.WebhookURL,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(0.5, 3),
		maxAttempts: 2,
		baseDelay:   5 * time.Second,
		sleep:       retry.Sleep,
		logger:      slog.Default(),
		retryAfter:  discordRetryAfter,
	}
	for _, opt := range opts {
		opt(hook)
	}
	return &DiscordNotifier{hook: hook}
}

// DiscordWebhookPayload is the JSON body posted to the webhook.
type DiscordWebhookPayload struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

// DiscordEmbed is one Discord embed message.
type DiscordEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color"`
	Fields      []DiscordEmbedField `json:"fields,omitempty"`
	Footer      DiscordEmbedFooter  `json:"footer"`
	Timestamp   string              `json:"timestamp"`
}

// DiscordEmbedField is a name/value row inside an embed.
type DiscordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// DiscordEmbedFooter is the footer of an embed.
type DiscordEmbedFooter struct {
	Text string `json:"text"`
}

// DiscordErrorResponse is the error body of the Discord API.
type DiscordErrorResponse struct {
	Message    string  `json:"message"`
	Code       int     `json:"code"`
	RetryAfter float64 `json:"retry_after"` // seconds
}

const (
	maxDescriptionLength = 4096
	truncationSuffix     = "..."

	discordRed   = 15548997 // #ED4245
	discordGreen = 5763719  // #57F287
)

func (d *DiscordNotifier) buildEmbedPayload(alert Alert) DiscordWebhookPayload {
	embed := DiscordEmbed{
		Title:     fmt.Sprintf("Endpoint %s is down", alert.Endpoint),
		Color:     discordRed,
		Footer:    DiscordEmbedFooter{Text: "pablos-ai endpoint probe"},
		Timestamp: alert.At.UTC().Format(time.RFC3339),
	}
	if alert.Healthy {
		embed.Title = fmt.Sprintf("Endpoint %s recovered", alert.Endpoint)
		embed.Color = discordGreen
	} else {
		embed.Description = truncate(alert.Error, maxDescriptionLength, truncationSuffix)
		if alert.StatusCode != 0 {
			embed.Fields = []DiscordEmbedField{
				{Name: "Status", Value: fmt.Sprintf("%d %s", alert.StatusCode, http.StatusText(alert.StatusCode)), Inline: true},
			}
		}
	}
	return DiscordWebhookPayload{Embeds: []DiscordEmbed{embed}}
}

// discordRetryAfter prefers retry_after from the JSON body, then the header.
func discordRetryAfter(resp *http.Response, body []byte) time.Duration {
	var discordErr DiscordErrorResponse
	if err := json.Unmarshal(body, &discordErr); err == nil && discordErr.RetryAfter > 0 {
		return time.Duration(discordErr.RetryAfter * float64(time.Second))
	}
	return headerRetryAfter(resp)
}

// NotifyEndpoint posts alert as an embed.
func (d *DiscordNotifier) NotifyEndpoint(ctx context.Context, alert Alert) error {
	return d.hook.send(ctx, alert, d.buildEmbedPayload(alert))
}
