package conversations

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound     = errors.New("conversation not found")
	ErrDuplicate    = errors.New("conversation already exists")
	ErrInvalidTitle = errors.New("conversation title exceeds 200 characters")
)

func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrInvalidTitle) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
