package config

import (
	"fmt"

	pkgconfig "pablos-ai/pkg/config"
)

// History backends.
const (
	HistoryBackendMemory   = "memory"
	HistoryBackendPostgres = "postgres"
	HistoryBackendSQLite   = "sqlite"
)

// HistoryConfig selects and sizes the conversation history store.
type HistoryConfig struct {
	// Backend is "memory", "postgres" or "sqlite". Default: memory
	Backend string

	// DatabaseURL is required for the postgres backend.
	DatabaseURL string

	// SQLitePath is the database file of the sqlite backend. Default: pablos-history.db
	SQLitePath string

	// MaxMessages kept per user. Default: 50
	MaxMessages int

	// PromptMessages is how many recent turns are put into a chat prompt. Default: 8
	PromptMessages int
}

// LoadHistoryConfig loads history configuration from environment variables.
func LoadHistoryConfig() (*HistoryConfig, error) {
	config := &HistoryConfig{
		Backend:        pkgconfig.GetEnvString("HISTORY_BACKEND", HistoryBackendMemory),
		DatabaseURL:    pkgconfig.GetEnvString("DATABASE_URL", ""),
		SQLitePath:     pkgconfig.GetEnvString("HISTORY_SQLITE_PATH", "pablos-history.db"),
		MaxMessages:    pkgconfig.GetEnvInt("HISTORY_MAX_MESSAGES", 50),
		PromptMessages: pkgconfig.GetEnvInt("HISTORY_PROMPT_MESSAGES", 8),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid history configuration: %w", err)
	}

	return config, nil
}

// Validate checks configuration correctness.
func (c *HistoryConfig) Validate() error {
	switch c.Backend {
	case HistoryBackendMemory:
	case HistoryBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres history backend")
		}
	case HistoryBackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("HISTORY_SQLITE_PATH is required for the sqlite history backend")
		}
	default:
		return fmt.Errorf("HISTORY_BACKEND must be %q, %q or %q, got %q",
			HistoryBackendMemory, HistoryBackendPostgres, HistoryBackendSQLite, c.Backend)
	}

	if c.MaxMessages <= 0 {
		return fmt.Errorf("HISTORY_MAX_MESSAGES must be positive")
	}
	if c.PromptMessages < 0 || c.PromptMessages > c.MaxMessages {
		return fmt.Errorf("HISTORY_PROMPT_MESSAGES must be between 0 and HISTORY_MAX_MESSAGES")
	}

	return nil
}
