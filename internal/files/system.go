package files

import (
	"context"

	"github.com/google/uuid"
)

// System defines attachment operations.
type System interface {
	Find(ctx context.Context, id uuid.UUID) (*File, error)
	Create(ctx context.Context, cmd CreateCommand) (*File, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Text returns the extracted text of a file. Files without extractable
	// text return an empty string.
	Text(ctx context.Context, id uuid.UUID) (string, error)
}
