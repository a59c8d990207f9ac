// Package entity holds the domain types shared by the use cases and adapters.
package entity

import (
	"time"
)

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Label is the speaker name used when the turn is rendered into a prompt.
func (r Role) Label() string {
	if r == RoleAssistant {
		return "Pablos"
	}
	return "User"
}

// Message is one turn of a user's conversation with the bot.
type Message struct {
	UserID    int64
	Role      Role
	Content   string
	CreatedAt time.Time
}

// NewMessage builds a validated message stamped with now.
func NewMessage(userID int64, role Role, content string, now time.Time) (*Message, error) {
	m := &Message{UserID: userID, Role: role, Content: content, CreatedAt: now}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the message fields.
func (m *Message) Validate() error {
	if m.UserID <= 0 {
		return &ValidationError{Field: "user_id", Message: "must be positive"}
	}
	if !m.Role.Valid() {
		return &ValidationError{Field: "role", Message: "must be user or assistant"}
	}
	if m.Content == "" {
		return &ValidationError{Field: "content", Message: "required"}
	}
	return nil
}
