// Package sqlite stores conversation history in a local SQLite file through
// the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pablos-ai/internal/domain/entity"
	"pablos-ai/internal/repository"
)

type HistoryRepo struct {
	db  *sql.DB
	max int
}

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
VALUES (?, ?, ?, ?)`
	if _, err = tx.ExecContext(ctx, insert, msg.UserID, string(msg.Role), msg.Content, msg.CreatedAt.UnixMilli()); err != nil {
		return fmt.Errorf("Append: insert: %w", err)
	}

	const trim = `
DELETE FROM conversation_messages
WHERE user_id = ?
  AND id NOT IN (
    SELECT id FROM conversation_messages
    WHERE user_id = ?
    ORDER BY id DESC
    LIMIT ?
  )`
	if _, err = tx.ExecContext(ctx, trim, msg.UserID, msg.UserID, repo.max); err != nil {
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

	// 内側で最新 N 件を取り、外側で時系列順に戻す
	const query = `
SELECT user_id, role, content, created_at FROM (
  SELECT id, user_id, role, content, created_at
  FROM conversation_messages
  WHERE user_id = ?
  ORDER BY id DESC
  LIMIT ?
) ORDER BY id ASC`
	rows, err := repo.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("Recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*entity.Message, 0, limit)
	for rows.Next() {
		var (
			m         entity.Message
			role      string
			createdMs int64
		)
		if err := rows.Scan(&m.UserID, &role, &m.Content, &createdMs); err != nil {
			return nil, fmt.Errorf("Recent: scan: %w", err)
		}
		m.Role = entity.Role(role)
		m.CreatedAt = time.UnixMilli(createdMs).UTC()
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Recent: %w", err)
	}
	return out, nil
}

func (repo *HistoryRepo) Clear(ctx context.Context, userID int64) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM conversation_messages WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("Clear: %w", err)
	}
	return nil
}
