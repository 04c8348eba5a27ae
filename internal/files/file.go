// Package files stores uploaded attachments and extracts the text agents
// receive when a message references one.
package files

import (
	"time"

	"github.com/google/uuid"
)

// File is an uploaded attachment.
type File struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	PageCount   *int      `json:"page_count,omitempty"`
	StorageKey  string    `json:"storage_key"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateCommand carries an upload. Data holds the raw bytes.
type CreateCommand struct {
	Name        string
	Filename    string
	ContentType string
	Data        []byte
}
