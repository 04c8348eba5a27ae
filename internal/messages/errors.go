package messages

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound            = errors.New("message not found")
	ErrDuplicate           = errors.New("message already exists")
	ErrMissingID           = errors.New("message id required")
	ErrMissingConversation = errors.New("conversation id required")
	ErrInvalidAuthor       = errors.New("author must be user or agent")
	ErrMissingAgent        = errors.New("agent messages require an agent id")
	ErrUnexpectedAgent     = errors.New("user messages cannot carry an agent id")
	ErrUnknownContentType  = errors.New("unknown rich content type")
	ErrInvalidRich         = errors.New("invalid rich content")
	ErrInvalidEvent        = errors.New("invalid change event")
)

// MapHTTPStatus maps message errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrMissingID),
		errors.Is(err, ErrMissingConversation),
		errors.Is(err, ErrInvalidAuthor),
		errors.Is(err, ErrMissingAgent),
		errors.Is(err, ErrUnexpectedAgent),
		errors.Is(err, ErrUnknownContentType),
		errors.Is(err, ErrInvalidRich):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
