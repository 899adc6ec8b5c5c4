package models

import (
	"strings"
	"time"
)

// Chat represents a conversation stored by the remote API. Its identity is assigned server-side and
// never changes; its message sequence only grows during a session.
type Chat struct {
	ID        int64
	CreatedAt time.Time
	Messages  []Message
}

// Message represents a single exchange within a chat. An assistant message created locally starts as
// a placeholder carrying the user's question and an empty content, and only its content is mutated
// while the answer streams in.
type Message struct {
	ID           int64
	Role         Role
	QuestionText string
	Content      string
	CreatedAt    time.Time
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleUser represents a message authored by the user.
	RoleUser Role = "user"
	// RoleAssistant represents a message produced by the model.
	RoleAssistant Role = "assistant"

	// UserMarker prefixes the response text of historical messages that were authored by the user.
	// The remote API has no other role signal.
	UserMarker = "User:"
)

// Streaming states of a rendered message.
const (
	StreamingStateLoading   = "loading"
	StreamingStateStreaming = "streaming"
	StreamingStateEnded     = "ended"
)

// RoleFromResponse derives the role of a historical response from its text.
func RoleFromResponse(text string) Role {
	if strings.HasPrefix(text, UserMarker) {
		return RoleUser
	}
	return RoleAssistant
}

// Clone returns a copy of the chat whose message slice can be modified independently.
func (c Chat) Clone() Chat {
	msgs := make([]Message, len(c.Messages))
	copy(msgs, c.Messages)
	c.Messages = msgs
	return c
}
