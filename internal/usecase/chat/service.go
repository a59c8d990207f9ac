// Package chat is the bot-facing use case: it keeps per-user conversation
// history, assembles persona prompts and turns descriptions into images.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"pablos-ai/internal/domain/entity"
	"pablos-ai/internal/infra/inference"
	"pablos-ai/internal/repository"
)

var (
	// ErrInvalidUser is returned for a non-positive user id.
	ErrInvalidUser = errors.New("user id must be positive")
	// ErrEmptyMessage is returned when nothing is left of the input after sanitizing.
	ErrEmptyMessage = errors.New("message cannot be empty")
	// ErrNoAnswer is returned when the model gave no reply and no fallback was available.
	ErrNoAnswer = errors.New("no answer from model")
	// ErrImagePrompt is returned when the image prompt could not be generated.
	ErrImagePrompt = errors.New("could not build image prompt")
	// ErrImageFailed is returned when no image could be generated.
	ErrImageFailed = errors.New("could not generate image")
)

// ThrottledError reports that a user has to wait before the next request.
type ThrottledError struct {
	Remaining time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("too many requests, retry in %.1fs", e.Remaining.Seconds())
}

// Provider is the inference surface the use case depends on.
// *inference.Client and *inference.StubClient satisfy it.
type Provider interface {
	GenerateChatResponse(ctx context.Context, prompt string, temperature float64) (inference.ChatReply, error)
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// Config tunes the use case.
type Config struct {
	// PromptMessages is how many previous turns go into a chat prompt. Default: 8
	PromptMessages int
	// Temperature for chat and image prompt generation. Default: 0.8
	Temperature float64
	// CacheTTL keeps answers per prompt; zero disables caching. Default: 1h
	CacheTTL time.Duration
	// CacheMaxEntries bounds the answer cache. Default: 1000
	CacheMaxEntries int
	// MaxHistory is the largest history page; the store keeps no more turns
	// than this per user anyway. Default: 50
	MaxHistory int
	// UserCooldown is the minimum gap between two requests of one user; zero disables it. Default: 2s
	UserCooldown time.Duration
}

// DefaultConfig returns the settings the bot runs with.
func DefaultConfig() Config {
	return Config{
		PromptMessages:  8,
		Temperature:     0.8,
		CacheTTL:        time.Hour,
		CacheMaxEntries: 1000,
		MaxHistory:      repository.DefaultMaxMessages,
		UserCooldown:    2 * time.Second,
	}
}

// Reply is the answer to one chat message.
type Reply struct {
	Text     string `json:"reply"`
	Fallback bool   `json:"fallback"`
	Cached   bool   `json:"cached"`
}

// Image is a generated picture.
type Image struct {
	Data     []byte
	MIMEType string
	// Prompt is the English prompt the image was generated from.
	Prompt string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// Service implements chat, image and history operations for bot users.
type Service struct {
	provider Provider
	history  repository.HistoryRepository
	cfg      Config
	cache    *replyCache
	throttle *userThrottle
	now      func() time.Time
	logger   *slog.Logger
}

func NewService(provider Provider, history repository.HistoryRepository, cfg Config, opts ...Option) *Service {
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultConfig().Temperature
	}
	if cfg.PromptMessages < 0 {
		cfg.PromptMessages = 0
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = repository.DefaultMaxMessages
	}

	s := &Service{
		provider: provider,
		history:  history,
		cfg:      cfg,
		cache:    newReplyCache(cfg.CacheTTL, cfg.CacheMaxEntries),
		throttle: newUserThrottle(cfg.UserCooldown),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) admit(userID int64) error {
	if userID <= 0 {
		return ErrInvalidUser
	}
	if wait, ok := s.throttle.reserve(userID, s.now()); !ok {
		return &ThrottledError{Remaining: wait}
	}
	return nil
}

// Chat answers message in the context of the user's recent conversation.
//
// The user turn is recorded before the model is called. The answer is only
// recorded when it came from the model, so canned fallback texts never enter
// the history or the cache.
func (s *Service) Chat(ctx context.Context, userID int64, message string) (Reply, error) {
	message = Sanitize(message, MaxMessageRunes)
	if message == "" {
		return Reply{}, ErrEmptyMessage
	}
	if err := s.admit(userID); err != nil {
		return Reply{}, err
	}

	logger := s.logger.With(slog.Int64("user_id", userID))

	var previous []*entity.Message
	if s.cfg.PromptMessages > 0 {
		var err error
		previous, err = s.history.Recent(ctx, userID, s.cfg.PromptMessages)
		if err != nil {
			logger.Warn("could not load conversation history", slog.Any("error", err))
			previous = nil
		}
	}
	s.record(ctx, logger, userID, entity.RoleUser, message)

	prompt := BuildChatPrompt(SystemPrompt, previous, message)

	if text, ok := s.cache.get(prompt, s.now()); ok {
		logger.Info("using cached chat response")
		s.record(ctx, logger, userID, entity.RoleAssistant, text)
		return Reply{Text: text, Cached: true}, nil
	}

	reply, err := s.provider.GenerateChatResponse(ctx, prompt, s.cfg.Temperature)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %w", ErrNoAnswer, err)
	}
	if strings.TrimSpace(reply.Text) == "" {
		return Reply{}, ErrNoAnswer
	}

	if !reply.Fallback {
		s.cache.set(prompt, reply.Text, s.now())
		s.record(ctx, logger, userID, entity.RoleAssistant, reply.Text)
	}

	logger.Info("chat reply ready",
		slog.Bool("fallback", reply.Fallback),
		slog.Int("history_turns", len(previous)))
	return Reply{Text: reply.Text, Fallback: reply.Fallback}, nil
}

// record appends a turn; a failing history store does not fail the chat.
func (s *Service) record(ctx context.Context, logger *slog.Logger, userID int64, role entity.Role, content string) {
	msg, err := entity.NewMessage(userID, role, content, s.now())
	if err != nil {
		logger.Warn("dropping invalid history turn", slog.String("role", string(role)), slog.Any("error", err))
		return
	}
	if err := s.history.Append(ctx, msg); err != nil {
		logger.Warn("could not store conversation turn", slog.String("role", string(role)), slog.Any("error", err))
	}
}

// Imagine turns a free-form description into an image. The chat model first
// rewrites the description into an English image prompt; a fallback answer is
// not a usable prompt and fails the call.
func (s *Service) Imagine(ctx context.Context, userID int64, description string) (*Image, error) {
	description = Sanitize(description, MaxDescriptionRunes)
	if description == "" {
		return nil, ErrEmptyMessage
	}
	if err := s.admit(userID); err != nil {
		return nil, err
	}

	logger := s.logger.With(slog.Int64("user_id", userID))

	reply, err := s.provider.GenerateChatResponse(ctx, BuildImagePrompt(description), s.cfg.Temperature)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImagePrompt, err)
	}
	prompt := strings.TrimSpace(reply.Text)
	if reply.Fallback || prompt == "" {
		return nil, ErrImagePrompt
	}
	logger.Info("image prompt generated", slog.Int("length", len(prompt)))

	data, err := s.provider.GenerateImage(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageFailed, err)
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		logger.Error("upstream returned non-image data", slog.String("mime", mt.String()), slog.Int("bytes", len(data)))
		return nil, fmt.Errorf("%w: got %s", ErrImageFailed, mt.String())
	}

	return &Image{Data: data, MIMEType: mt.String(), Prompt: prompt}, nil
}

// ClearHistory forgets the user's conversation.
func (s *Service) ClearHistory(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return ErrInvalidUser
	}
	if err := s.history.Clear(ctx, userID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// MaxHistory is the largest limit History honours.
func (s *Service) MaxHistory() int { return s.cfg.MaxHistory }

// History returns the user's latest turns, oldest first. Limits above
// MaxHistory are lowered to it.
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]*entity.Message, error) {
	if userID <= 0 {
		return nil, ErrInvalidUser
	}
	limit = min(limit, s.cfg.MaxHistory)
	msgs, err := s.history.Recent(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return msgs, nil
}
