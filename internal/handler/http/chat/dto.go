package chat

import "time"

type chatRequest struct {
	UserID  int64  `json:"user_id"`
	Message string `json:"message"`
}

type chatResponse struct {
	Reply    string `json:"reply"`
	Fallback bool   `json:"fallback"`
	Cached   bool   `json:"cached,omitempty"`
}

type imageRequest struct {
	UserID int64  `json:"user_id"`
	Prompt string `json:"prompt"`
}

// MessageDTO is one conversation turn in GET /v1/history.
type MessageDTO struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
