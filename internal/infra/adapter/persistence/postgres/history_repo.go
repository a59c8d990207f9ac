package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"pablos-ai/internal/domain/entity"
	"pablos-ai/internal/repository"
)

type HistoryRepo struct {
	db  *sql.DB
	max int
}

// NewHistoryRepo returns a history store that trims every user to maxMessages turns.
func NewHistoryRepo(db *sql.DB, maxMessages int) repository.HistoryRepository {
	if maxMessages <= 0 {
		maxMessages = repository.DefaultMaxMessages
	}
	return &HistoryRepo{db: db, max: maxMessages}
}

func (repo *HistoryRepo) Append(ctx context.Context, msg *entity.Message) (err error) {
	if err := msg.Validate(); err != nil {
		return err
	}

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Append: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insert = `
INSERT INTO conversation_messages (user_id, role, content, created_at)
VALUES ($1, $2, $3, $4)`
	if _, err = tx.ExecContext(ctx, insert, msg.UserID, string(msg.Role), msg.Content, msg.CreatedAt); err != nil {
		return fmt.Errorf("Append: insert: %w", err)
	}

	const trim = `
DELETE FROM conversation_messages
WHERE user_id = $1
  AND id NOT IN (
    SELECT id FROM conversation_messages
    WHERE user_id = $1
    ORDER BY id DESC
    LIMIT $2
  )`
	if _, err = tx.ExecContext(ctx, trim, msg.UserID, repo.max); err != nil {
		return fmt.Errorf("Append: trim: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("Append: commit: %w", err)
	}
	return nil
}

func (repo *HistoryRepo) Recent(ctx context.Context, userID int64, limit int) ([]*entity.Message, error) {
	if limit <= 0 {
		return []*entity.Message{}, nil
	}
	// no user holds more than max rows
	limit = min(limit, repo.max)

	const query = `
SELECT user_id, role, content, created_at
FROM conversation_messages
WHERE user_id = $1
ORDER BY id DESC
LIMIT $2`
	rows, err := repo.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("Recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*entity.Message, 0, limit)
	for rows.Next() {
		var m entity.Message
		var role string
		if err := rows.Scan(&m.UserID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("Recent: scan: %w", err)
		}
		m.Role = entity.Role(role)
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Recent: %w", err)
	}

	// 新しい順で取得したので古い順に並べ替える
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (repo *HistoryRepo) Clear(ctx context.Context, userID int64) error {
	const query = `DELETE FROM conversation_messages WHERE user_id = $1`
	if _, err := repo.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("Clear: %w", err)
	}
	return nil
}
