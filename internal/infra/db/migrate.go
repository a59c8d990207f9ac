package db

import (
	"context"
	"database/sql"
	"fmt"
)

var schemas = map[Dialect][]string{
	Postgres: {
		`CREATE TABLE IF NOT EXISTS conversation_messages (
    id         BIGSERIAL PRIMARY KEY,
    user_id    BIGINT NOT NULL,
    role       TEXT NOT NULL,
    content    TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_messages_user_id ON conversation_messages(user_id, id DESC)`,
	},
	// created_at is unix milliseconds; modernc stores time.Time as text otherwise.
	SQLite: {
		`CREATE TABLE IF NOT EXISTS conversation_messages (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id    INTEGER NOT NULL,
    role       TEXT NOT NULL,
    content    TEXT NOT NULL,
    created_at INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_messages_user_id ON conversation_messages(user_id, id DESC)`,
	},
}

// MigrateUp creates the conversation history schema. It is idempotent.
func MigrateUp(ctx context.Context, db *sql.DB, dialect Dialect) error {
	stmts, ok := schemas[dialect]
	if !ok {
		return fmt.Errorf("migrate: unsupported dialect %q", dialect)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", dialect, err)
		}
	}
	return nil
}
