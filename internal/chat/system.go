// Package chat is the conversation engine facade: it accepts user turns,
// drives the agent pipeline, and exposes each open conversation's message
// projection and typing state.
package chat

import (
	"context"
	"time"

	"github.com/JaimeStill/agent-chat/internal/messages"
	"github.com/JaimeStill/agent-chat/internal/presence"
	"github.com/JaimeStill/agent-chat/pkg/lifecycle"
	"github.com/google/uuid"
)

// SendCommand is one user turn.
type SendCommand struct {
	ConversationID uuid.UUID   `json:"-"`
	Text           string      `json:"text"`
	AgentIDs       []uuid.UUID `json:"agent_ids"`
	FileID         *uuid.UUID  `json:"file_id,omitempty"`
}

// UpdateKind names what a subscriber Update carries.
type UpdateKind string

const (
	UpdateMessages UpdateKind = "messages"
	UpdateTypers   UpdateKind = "typers"
	UpdateClosed   UpdateKind = "closed"
)

// Update is delivered to Subscribe callbacks.
type Update struct {
	Kind   UpdateKind       `json:"kind"`
	Change *messages.Change `json:"change,omitempty"`
	Typers []presence.Entry `json:"typers,omitempty"`
}

// System is the exposed engine API.
type System interface {
	// SendUserMessage appends the user message optimistically and starts
	// the pipeline in the background. It returns once the message is in
	// the conversation's Store.
	SendUserMessage(ctx context.Context, cmd SendCommand) (*Turn, error)

	// Subscribe delivers Store changes and typing updates for the
	// conversation until the returned function is called.
	Subscribe(ctx context.Context, conversationID uuid.UUID, fn func(Update)) (func(), error)

	// Messages returns the ordered projection of an open conversation.
	Messages(conversationID uuid.UUID) []messages.Message

	// LiveTypers returns the live typers of an open conversation.
	LiveTypers(conversationID uuid.UUID, exclude string) []presence.Entry

	NotifyTyping(ctx context.Context, conversationID uuid.UUID, participantID, displayName string) error

	// LoadPage merges older history into an open conversation's Store.
	LoadPage(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) (int, bool, error)

	// History reads persisted messages without opening a subscription.
	History(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]messages.Message, bool, error)

	// EditMessage replaces the text of a persisted user message. The change
	// is broadcast to every subscriber.
	EditMessage(ctx context.Context, messageID, text string) (*messages.Message, error)

	// DeleteMessage removes a message, including one still awaiting retry.
	DeleteMessage(ctx context.Context, messageID string) error

	Cancel(runID string) error

	// Retry re-persists a failed message under its original id. A user
	// message whose turn never started has its turn started and returned.
	Retry(ctx context.Context, messageID string) (*Turn, error)

	// Forget cancels the conversation's runs and closes its subscription.
	Forget(ctx context.Context, conversationID uuid.UUID)

	Start(lc *lifecycle.Coordinator)
}
