package notifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateWebhookURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{"valid discord", "https://discord.com/api/webhooks/123/secret-token", ""},
		{"empty", "", "webhook URL is empty"},
		{"malformed", "https://disc ord.com/%zz", "webhook URL is malformed"},
		{"plain http", "http://discord.com/api/webhooks/123/t", "webhook URL must use HTTPS"},
		{"wrong host", "https://evil.example/api/webhooks/123/t", "webhook host must be discord.com, got evil.example"},
		{"wrong path", "https://discord.com/other/123", "webhook path must start with /api/webhooks/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWebhookURL(tt.raw, DiscordWebhookHost, DiscordWebhookPrefix)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
			assert.NotContains(t, err.Error(), "secret-token")
		})
	}

	assert.NoError(t, ValidateWebhookURL("https://hooks.slack.com/services/T/B/x", SlackWebhookHost, SlackWebhookPrefix))
}
