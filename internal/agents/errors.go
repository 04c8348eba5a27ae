package agents

import (
	"errors"
	"net/http"
)

// Domain errors for agent operations.
var (
	ErrNotFound       = errors.New("agent not found")
	ErrDuplicate      = errors.New("agent name already exists")
	ErrDisabled       = errors.New("agent is disabled")
	ErrMissingName    = errors.New("agent name required")
	ErrInvalidConfig  = errors.New("invalid agent config")
	ErrExecution      = errors.New("agent execution failed")
	ErrMalformed      = errors.New("malformed agent response")
	ErrInvalidMode    = errors.New("selection mode must be single or multi")
	ErrPresetNotFound = errors.New("preset not found")
	ErrInvalidPreset  = errors.New("invalid preset")
	ErrInvalidCatalog = errors.New("invalid agent catalog")
)

// MapHTTPStatus maps domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrPresetNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrDisabled) ||
		errors.Is(err, ErrMissingName) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrInvalidMode) ||
		errors.Is(err, ErrInvalidPreset) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrExecution) || errors.Is(err, ErrMalformed) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
