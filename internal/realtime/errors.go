package realtime

import "errors"

var (
	ErrClosed          = errors.New("realtime: transport closed")
	ErrPayloadTooLarge = errors.New("realtime: payload too large")
	ErrUnknownKind     = errors.New("realtime: unknown transport kind")
)
