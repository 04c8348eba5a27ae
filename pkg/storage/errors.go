// Package storage persists uploaded file blobs. The filesystem implementation
// suits development and single-node deployments.
package storage

import "errors"

var (
	ErrNotFound         = errors.New("storage: key not found")
	ErrPermissionDenied = errors.New("storage: permission denied")

	// ErrInvalidKey covers empty keys and path traversal attempts.
	ErrInvalidKey = errors.New("storage: invalid key")
)
