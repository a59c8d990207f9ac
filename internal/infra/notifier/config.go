package notifier

import (
	"fmt"
	"net/url"
	"strings"
)

// Webhook hosts and path prefixes accepted by ValidateWebhookURL.
const (
	DiscordWebhookHost   = "discord.com"
	DiscordWebhookPrefix = "/api/webhooks/"
	SlackWebhookHost     = "hooks.slack.com"
	SlackWebhookPrefix   = "/services/"
)

// ValidateWebhookURL checks that raw is an HTTPS URL on host whose path
// starts with pathPrefix. The returned error never contains the URL, since
// webhook URLs carry their token.
func ValidateWebhookURL(raw, host, pathPrefix string) error {
	if raw == "" {
		return fmt.Errorf("webhook URL is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("webhook URL is malformed")
	}
	if u.Scheme != "https" {
		return fmt.Errorf("webhook URL must use HTTPS")
	}
	if u.Host != host {
		return fmt.Errorf("webhook host must be %s, got %s", host, u.Host)
	}
	if !strings.HasPrefix(u.Path, pathPrefix) {
		return fmt.Errorf("webhook path must start with %s", pathPrefix)
	}
	return nil
}
