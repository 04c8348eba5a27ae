package subscriptions

import "errors"

var (
	ErrClosed      = errors.New("subscription manager closed")
	ErrInvalidated = errors.New("subscription invalidated")
)
