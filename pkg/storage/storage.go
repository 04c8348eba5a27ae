package storage

import (
	"context"

	"github.com/JaimeStill/agent-chat/pkg/lifecycle"
)

// System stores opaque blobs under slash-separated keys.
type System interface {
	// Store writes data at key, replacing existing contents.
	Store(ctx context.Context, key string, data []byte) error

	// Retrieve returns ErrNotFound when key does not exist.
	Retrieve(ctx context.Context, key string) ([]byte, error)

	// Delete is idempotent.
	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)

	// Start registers lifecycle hooks with the coordinator.
	Start(lc *lifecycle.Coordinator) error
}
