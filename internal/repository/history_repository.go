package repository

import (
	"context"

	"pablos-ai/internal/domain/entity"
)

// DefaultMaxMessages is the per-user retention cap used when none is given.
const DefaultMaxMessages = 50

// HistoryRepository stores per-user conversation turns.
//
// Implementations keep at most a fixed number of recent messages per user and
// must give read-your-writes consistency for a single user.
type HistoryRepository interface {
	// Append stores a turn, evicting the oldest ones beyond the retention cap.
	Append(ctx context.Context, msg *entity.Message) error
	// Recent returns up to limit of the user's latest turns, oldest first.
	Recent(ctx context.Context, userID int64, limit int) ([]*entity.Message, error)
	// Clear removes the user's whole history.
	Clear(ctx context.Context, userID int64) error
}
