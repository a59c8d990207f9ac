// Package config reads typed settings from environment variables.
//
// Every getter is fail-open: an unset variable yields the default, and a set
// but unparsable one yields the default plus a warning on the default logger.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnvString returns the variable's value, or defaultValue when it is unset or empty.
//
// Example:
//
//	baseURL := GetEnvString("MODEL_BASE_URL", "https://ai.megallm.io/v1")
func GetEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt returns the variable parsed as a base-10 integer.
func GetEnvInt(key string, defaultValue int) int {
	return lookup(key, defaultValue, strconv.Atoi)
}

// GetEnvFloat returns the variable parsed as a float64.
func GetEnvFloat(key string, defaultValue float64) float64 {
	return lookup(key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// GetEnvBool returns the variable parsed by strconv.ParseBool
// (1, t, true, 0, f, false in any of their usual casings).
func GetEnvBool(key string, defaultValue bool) bool {
	return lookup(key, defaultValue, strconv.ParseBool)
}

// GetEnvDuration returns the variable parsed by ParseDuration, so
// ENDPOINT_COOLDOWN=300 and ENDPOINT_COOLDOWN=5m are equivalent.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	return lookup(key, defaultValue, ParseDuration)
}

func lookup[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}

	value, err := parse(raw)
	if err != nil {
		slog.Warn("invalid environment value, using default",
			slog.String("key", key),
			slog.String("value", raw),
			slog.Any("default", defaultValue),
			slog.String("error", err.Error()))
		return defaultValue
	}
	return value
}

// ParseDuration parses a Go duration string or a bare number of seconds.
func ParseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return d, nil
}

// SuffixedKey returns the environment key for the n-th numbered slot.
// Slot 1 uses the bare key, later slots append "_n":
//
//	SuffixedKey("MODEL_ACCESS_KEY", 1) // MODEL_ACCESS_KEY
//	SuffixedKey("MODEL_ACCESS_KEY", 2) // MODEL_ACCESS_KEY_2
func SuffixedKey(key string, n int) string {
	if n <= 1 {
		return key
	}
	return fmt.Sprintf("%s_%d", key, n)
}
