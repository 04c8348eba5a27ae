package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/agent-chat/pkg/query"
	"github.com/JaimeStill/agent-chat/pkg/repository"
	"github.com/JaimeStill/agent-chat/pkg/storage"
	"github.com/google/uuid"
)

var projection = query.
	NewProjectionMap("public", "files", "f").
	Project("id", "ID").
	Project("name", "Name").
	Project("filename", "Filename").
	Project("content_type", "ContentType").
	Project("size_bytes", "SizeBytes").
	Project("page_count", "PageCount").
	Project("storage_key", "StorageKey").
	Project("created_at", "CreatedAt")

func scanFile(s repository.Scanner) (File, error) {
	var f File
	err := s.Scan(&f.ID, &f.Name, &f.Filename, &f.ContentType, &f.SizeBytes, &f.PageCount, &f.StorageKey, &f.CreatedAt)
	return f, err
}

type repo struct {
	db      *sql.DB
	storage storage.System
	logger  *slog.Logger
}

// New creates a files System backed by PostgreSQL metadata and blob storage.
func New(db *sql.DB, store storage.System, logger *slog.Logger) System {
	return &repo{
		db:      db,
		storage: store,
		logger:  logger.With("system", "files"),
	}
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*File, error) {
	q, args := query.
		NewBuilder(projection, "CreatedAt").
		BuildSingle("ID", id)

	f, err := repository.QueryOne(ctx, r.db, q, args, scanFile)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &f, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*File, error) {
	f, err := prepare(cmd, r.logger)
	if err != nil {
		return nil, err
	}

	if err := r.storage.Store(ctx, f.StorageKey, cmd.Data); err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	q := `INSERT INTO files(id, name, filename, content_type, size_bytes, page_count, storage_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, name, filename, content_type, size_bytes, page_count, storage_key, created_at`

	created, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (File, error) {
		return repository.QueryOne(ctx, tx, q, []any{
			f.ID, f.Name, f.Filename, f.ContentType, f.SizeBytes, f.PageCount, f.StorageKey,
		}, scanFile)
	})
	if err != nil {
		if delErr := r.storage.Delete(ctx, f.StorageKey); delErr != nil {
			r.logger.Error("cleanup failed after db error", "storage_key", f.StorageKey, "error", delErr)
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("file created", "id", created.ID, "content_type", created.ContentType, "size", created.SizeBytes)
	return &created, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	f, err := r.Find(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	q := `DELETE FROM files WHERE id = $1`
	_, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		return struct{}{}, repository.ExecExpectOne(ctx, tx, q, id)
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	if err := r.storage.Delete(ctx, f.StorageKey); err != nil {
		r.logger.Error("storage cleanup failed", "storage_key", f.StorageKey, "error", err)
	}

	r.logger.Info("file deleted", "id", id)
	return nil
}

func (r *repo) Text(ctx context.Context, id uuid.UUID) (string, error) {
	f, err := r.Find(ctx, id)
	if err != nil {
		return "", err
	}
	if !IsText(f.ContentType) {
		return "", nil
	}

	data, err := r.storage.Retrieve(ctx, f.StorageKey)
	if err != nil {
		return "", fmt.Errorf("retrieve file: %w", err)
	}
	return ExtractText(f.ContentType, data)
}

