package messages

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// EventKind names a remote change to a persisted message.
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"

	// EventClosed announces that the conversation itself is gone. It
	// carries no message.
	EventClosed EventKind = "closed"
)

// Event is a change notification for one message row, or for the whole
// conversation when Kind is EventClosed.
//
// Message is nil for delete events and for insert or update events whose
// full payload did not fit the transport; receivers fetch the row by ID.
type Event struct {
	Kind           EventKind `json:"kind"`
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	Message        *Message  `json:"message,omitempty"`
}

// Partial reports whether a non-delete event arrived without its row.
func (e Event) Partial() bool {
	return (e.Kind == EventInsert || e.Kind == EventUpdate) && e.Message == nil
}

func (e Event) validate() error {
	switch e.Kind {
	case EventInsert, EventUpdate, EventDelete:
	case EventClosed:
		if e.ConversationID == uuid.Nil {
			return fmt.Errorf("%w: conversation id required", ErrInvalidEvent)
		}
		return nil
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidEvent, e.Kind)
	}
	if e.MessageID == "" {
		return fmt.Errorf("%w: message id required", ErrInvalidEvent)
	}
	if e.Message != nil && e.Message.ID != e.MessageID {
		return fmt.Errorf("%w: message id %q does not match %q", ErrInvalidEvent, e.Message.ID, e.MessageID)
	}
	return nil
}

// EncodeEvent serializes e. When maxBytes is positive and the full payload
// exceeds it, the row is stripped and only the identifying fields are sent.
func EncodeEvent(e Event, maxBytes int) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	if maxBytes <= 0 || len(b) <= maxBytes {
		return b, nil
	}

	e.Message = nil
	b, err = json.Marshal(e)
	if err != nil {
		return nil, err
	}
	if len(b) > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidEvent, len(b), maxBytes)
	}
	return b, nil
}

// DecodeEvent parses and validates a transport payload.
func DecodeEvent(payload []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := e.validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}
