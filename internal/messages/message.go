// Package messages holds the conversation message model, the per-conversation
// Store projection, and the persistence and change-event plumbing behind it.
package messages

import (
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Author identifies who wrote a message.
type Author string

const (
	AuthorUser  Author = "user"
	AuthorAgent Author = "agent"
)

// Status is the delivery state of a locally authored message.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// rank orders the forward progression pending < sent < delivered.
// failed sits outside the progression and ranks 0.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 1
	case StatusSent:
		return 2
	case StatusDelivered:
		return 3
	default:
		return 0
	}
}

// Message is one entry in a conversation.
type Message struct {
	ID             string       `json:"id"`
	ConversationID uuid.UUID    `json:"conversation_id"`
	Author         Author       `json:"author"`
	AgentID        *uuid.UUID   `json:"agent_id,omitempty"`
	Content        string       `json:"content"`
	Rich           *RichContent `json:"rich,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	FileID         *uuid.UUID   `json:"file_id,omitempty"`
	ReplyTo        *string      `json:"reply_to,omitempty"`
	TurnID         *string      `json:"turn_id,omitempty"`
	Status         Status       `json:"status"`
	IsError        bool         `json:"is_error,omitempty"`
}

// NewID returns a new message identifier. IDs are ULIDs: lexically sortable
// and monotonic within a process.
func NewID() string {
	return ulid.Make().String()
}

// Validate checks the structural invariants of a message.
func (m *Message) Validate() error {
	if m.ID == "" {
		return ErrMissingID
	}
	if m.ConversationID == uuid.Nil {
		return ErrMissingConversation
	}
	switch m.Author {
	case AuthorUser:
		if m.AgentID != nil {
			return ErrUnexpectedAgent
		}
	case AuthorAgent:
		if m.AgentID == nil {
			return ErrMissingAgent
		}
	default:
		return ErrInvalidAuthor
	}
	if m.Rich != nil {
		return m.Rich.Validate()
	}
	return nil
}

// before reports whether m sorts ahead of other by timestamp alone.
func (m *Message) before(other *Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}
