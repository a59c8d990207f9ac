// Package security masks credentials in text that may reach logs or callers.
package security

import (
	"regexp"
)

var (
	// Bearer credentials in echoed headers or URLs.
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]+`)
	// OpenAI-style keys; skips already masked ones.
	apiKeyPattern = regexp.MustCompile(`sk-[A-Za-z0-9_-]{10,}`)
	// Password inside a DSN.
	dbPasswordPattern = regexp.MustCompile(`://([^:/@]+):([^@]+)@`)
	// Token segment of Discord and Slack webhook URLs.
	webhookPattern = regexp.MustCompile(`(discord\.com/api/webhooks/\d+/|hooks\.slack\.com/services/)[^\s"']+`)
)

// SanitizeError returns the error text with credentials masked.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	msg = bearerPattern.ReplaceAllString(msg, "Bearer ****")
	msg = apiKeyPattern.ReplaceAllString(msg, "sk-****")
	msg = dbPasswordPattern.ReplaceAllString(msg, "://$1:****@")
	msg = webhookPattern.ReplaceAllString(msg, "${1}****")
	return msg
}
