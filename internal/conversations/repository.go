package conversations

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/agent-chat/pkg/pagination"
	"github.com/JaimeStill/agent-chat/pkg/query"
	"github.com/JaimeStill/agent-chat/pkg/repository"
	"github.com/google/uuid"
)

var projection = query.
	NewProjectionMap("public", "conversations", "c").
	Project("id", "ID").
	Project("title", "Title").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

const returning = `RETURNING id, title, created_at, updated_at`

func scanConversation(s repository.Scanner) (Conversation, error) {
	var c Conversation
	err := s.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates the PostgreSQL conversations repository. Deleting a row
// cascades to its messages.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "conversations"),
		pagination: pagination,
	}
}

func (r *repo) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Conversation], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, "UpdatedAt").
		WhereSearch(page.Search, "Title")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	} else {
		qb.OrderBy("UpdatedAt", true)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count conversations: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanConversation)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	q, args := query.
		NewBuilder(projection, "ID").
		BuildSingle("ID", id)

	c, err := repository.QueryOne(ctx, r.db, q, args, scanConversation)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &c, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Conversation, error) {
	title, err := normalizeTitle(cmd.Title)
	if err != nil {
		return nil, err
	}

	q := `INSERT INTO conversations(id, title) VALUES ($1, $2) ` + returning

	c, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Conversation, error) {
		return repository.QueryOne(ctx, tx, q, []any{uuid.New(), title}, scanConversation)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("conversation created", "id", c.ID)
	return &c, nil
}

func (r *repo) Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Conversation, error) {
	title, err := normalizeTitle(cmd.Title)
	if err != nil {
		return nil, err
	}

	q := `UPDATE conversations SET title = $1, updated_at = NOW() WHERE id = $2 ` + returning

	c, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Conversation, error) {
		return repository.QueryOne(ctx, tx, q, []any{title, id}, scanConversation)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("conversation renamed", "id", c.ID)
	return &c, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	q := `DELETE FROM conversations WHERE id = $1`

	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		return struct{}{}, repository.ExecExpectOne(ctx, tx, q, id)
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("conversation deleted", "id", id)
	return nil
}
