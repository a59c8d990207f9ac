// Package memory keeps conversation history in process memory. It is the
// default backend and loses everything on restart.
package memory

import (
	"context"
	"sync"

	"pablos-ai/internal/domain/entity"
	"pablos-ai/internal/repository"
)


type HistoryRepo struct {
	mu       sync.RWMutex
	max      int
	messages map[int64][]entity.Message
}

// NewHistoryRepo returns a store keeping at most maxMessages turns per user.
func NewHistoryRepo(maxMessages int) repository.HistoryRepository {
	if maxMessages <= 0 {
		maxMessages = repository.DefaultMaxMessages
	}
	return &HistoryRepo{max: maxMessages, messages: make(map[int64][]entity.Message)}
}

func (repo *HistoryRepo) Append(ctx context.Context, msg *entity.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()

	turns := append(repo.messages[msg.UserID], *msg)
	if over := len(turns) - repo.max; over > 0 {
		turns = append([]entity.Message(nil), turns[over:]...)
	}
	repo.messages[msg.UserID] = turns
	return nil
}

func (repo *HistoryRepo) Recent(ctx context.Context, userID int64, limit int) ([]*entity.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []*entity.Message{}, nil
	}

	repo.mu.RLock()
	defer repo.mu.RUnlock()

	turns := repo.messages[userID]
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]*entity.Message, len(turns))
	for i := range turns {
		m := turns[i]
		out[i] = &m
	}
	return out, nil
}

func (repo *HistoryRepo) Clear(ctx context.Context, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	repo.mu.Lock()
	delete(repo.messages, userID)
	repo.mu.Unlock()
	return nil
}
