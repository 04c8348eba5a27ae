package presence

import "errors"

var (
	ErrMissingParticipant = errors.New("participant id required")
	ErrInvalidSignal      = errors.New("invalid typing signal")
)
