package files

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// prepare validates an upload and derives its metadata.
func prepare(cmd CreateCommand, logger *slog.Logger) (File, error) {
	if len(cmd.Data) == 0 || strings.TrimSpace(cmd.Filename) == "" {
		return File{}, ErrInvalidFile
	}

	contentType := DetectContentType(cmd.ContentType, cmd.Filename, cmd.Data)

	if IsText(contentType) {
		if _, err := ExtractText(contentType, cmd.Data); err != nil {
			return File{}, err
		}
	}

	pageCount, err := PageCount(contentType, cmd.Data)
	if err != nil {
		logger.Warn("failed to read pdf page count", "filename", cmd.Filename, "error", err)
	}

	name := cmd.Name
	if name == "" {
		name = cmd.Filename
	}

	id := uuid.New()
	return File{
		ID:          id,
		Name:        name,
		Filename:    cmd.Filename,
		ContentType: contentType,
		SizeBytes:   int64(len(cmd.Data)),
		PageCount:   pageCount,
		StorageKey:  storageKey(id, cmd.Filename),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func storageKey(id uuid.UUID, filename string) string {
	return fmt.Sprintf("files/%s/%s", id.String(), sanitizeFilename(filename))
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	replacer := strings.NewReplacer(
		" ", "_",
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}
