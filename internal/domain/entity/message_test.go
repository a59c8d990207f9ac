package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	m, err := NewMessage(42, RoleUser, "halo", now)
	require.NoError(t, err)
	assert.Equal(t, &Message{UserID: 42, Role: RoleUser, Content: "halo", CreatedAt: now}, m)
}

func TestMessage_Validate(t *testing.T) {
	tests := []struct {
		name  string
		msg   Message
		field string
	}{
		{name: "valid assistant turn", msg: Message{UserID: 1, Role: RoleAssistant, Content: "ok"}},
		{name: "zero user", msg: Message{Role: RoleUser, Content: "x"}, field: "user_id"},
		{name: "negative user", msg: Message{UserID: -5, Role: RoleUser, Content: "x"}, field: "user_id"},
		{name: "unknown role", msg: Message{UserID: 1, Role: "system", Content: "x"}, field: "role"},
		{name: "empty content", msg: Message{UserID: 1, Role: RoleUser}, field: "content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
			assert.ErrorIs(t, err, ErrValidationFailed)
		})
	}
}

func TestRole_Label(t *testing.T) {
	assert.Equal(t, "User", RoleUser.Label())
	assert.Equal(t, "Pablos", RoleAssistant.Label())
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Field: "content", Message: "required"}
	assert.Equal(t, "validation error on field 'content': required", err.Error())
}
