package chat

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/agent-chat/internal/agents"
	"github.com/JaimeStill/agent-chat/internal/conversations"
	"github.com/JaimeStill/agent-chat/internal/files"
	"github.com/JaimeStill/agent-chat/internal/messages"
	"github.com/JaimeStill/agent-chat/internal/subscriptions"
)

var (
	ErrEmptyMessage  = errors.New("message text or file required")
	ErrRunNotFound   = errors.New("run not found")
	ErrNotRetryable  = errors.New("message is not awaiting retry")
	ErrShuttingDown  = errors.New("chat system shutting down")
	ErrMissingSender = errors.New("participant id required")
	ErrNotOpen       = errors.New("conversation is not open")
	ErrNotEditable   = errors.New("only user messages can be edited")
)

func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrEmptyMessage),
		errors.Is(err, ErrMissingSender),
		errors.Is(err, agents.ErrDisabled):
		return http.StatusBadRequest
	case errors.Is(err, ErrRunNotFound),
		errors.Is(err, ErrNotRetryable),
		errors.Is(err, agents.ErrNotFound),
		errors.Is(err, conversations.ErrNotFound),
		errors.Is(err, files.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNotOpen),
		errors.Is(err, ErrNotEditable):
		return http.StatusConflict
	case errors.Is(err, ErrShuttingDown),
		errors.Is(err, subscriptions.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return messages.MapHTTPStatus(err)
}
