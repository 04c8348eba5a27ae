package messages

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/JaimeStill/agent-chat/pkg/query"
	"github.com/JaimeStill/agent-chat/pkg/repository"
	"github.com/google/uuid"
)

// Repository persists message records.
//
// Append is idempotent by id: appending an id that already exists returns
// the stored row without error, so a retried write never duplicates.
type Repository interface {
	PageLoader
	Append(ctx context.Context, msg Message) (*Message, error)
	Update(ctx context.Context, msg Message) (*Message, error)
	Delete(ctx context.Context, conversationID uuid.UUID, id string) error
	Find(ctx context.Context, id string) (*Message, error)
}

var projection = query.
	NewProjectionMap("public", "messages", "m").
	Project("id", "ID").
	Project("conversation_id", "ConversationID").
	Project("author", "Author").
	Project("agent_id", "AgentID").
	Project("content", "Content").
	Project("rich", "Rich").
	Project("created_at", "CreatedAt").
	Project("file_id", "FileID").
	Project("reply_to", "ReplyTo").
	Project("turn_id", "TurnID").
	Project("status", "Status").
	Project("is_error", "IsError")

const returning = `RETURNING id, conversation_id, author, agent_id, content, rich, created_at,
	file_id, reply_to, turn_id, status, is_error`

func scanMessage(s repository.Scanner) (Message, error) {
	var (
		m    Message
		rich []byte
	)
	err := s.Scan(
		&m.ID, &m.ConversationID, &m.Author, &m.AgentID, &m.Content, &rich, &m.CreatedAt,
		&m.FileID, &m.ReplyTo, &m.TurnID, &m.Status, &m.IsError,
	)
	if err != nil {
		return m, err
	}
	if len(rich) > 0 {
		m.Rich = new(RichContent)
		if err := json.Unmarshal(rich, m.Rich); err != nil {
			return m, fmt.Errorf("decode rich content for %s: %w", m.ID, err)
		}
	}
	return m, nil
}

func encodeRich(rc *RichContent) (any, error) {
	if rc == nil {
		return nil, nil
	}
	b, err := json.Marshal(rc)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates the PostgreSQL message repository.
func New(db *sql.DB, logger *slog.Logger) Repository {
	return &repo{
		db:     db,
		logger: logger.With("system", "messages"),
	}
}

func (r *repo) Page(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]Message, bool, error) {
	qb := query.
		NewBuilder(projection, "CreatedAt").
		WhereEquals("ConversationID", conversationID).
		OrderByFields([]query.SortField{
			{Field: "CreatedAt", Descending: true},
			{Field: "ID", Descending: true},
		})

	if before != nil {
		qb.WhereBefore("CreatedAt", *before)
	}

	q, args := qb.BuildLimit(limit + 1)
	page, err := repository.QueryMany(ctx, r.db, q, args, scanMessage)
	if err != nil {
		return nil, false, fmt.Errorf("query messages: %w", err)
	}

	hasMore := len(page) > limit
	if hasMore {
		page = page[:limit]
	}
	slices.Reverse(page)

	return page, hasMore, nil
}

func (r *repo) Find(ctx context.Context, id string) (*Message, error) {
	q, args := query.NewBuilder(projection, "CreatedAt").BuildSingle("ID", id)

	m, err := repository.QueryOne(ctx, r.db, q, args, scanMessage)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &m, nil
}

func (r *repo) Append(ctx context.Context, msg Message) (*Message, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	rich, err := encodeRich(msg.Rich)
	if err != nil {
		return nil, fmt.Errorf("encode rich content: %w", err)
	}

	q := `
		INSERT INTO messages (id, conversation_id, author, agent_id, content, rich, created_at,
			file_id, reply_to, turn_id, status, is_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
		` + returning

	m, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Message, error) {
		return repository.QueryOne(ctx, tx, q, []any{
			msg.ID, msg.ConversationID, msg.Author, msg.AgentID, msg.Content, rich, msg.CreatedAt,
			msg.FileID, msg.ReplyTo, msg.TurnID, StatusDelivered, msg.IsError,
		}, scanMessage)
	})

	if errors.Is(err, sql.ErrNoRows) {
		r.logger.Debug("message already persisted", "id", msg.ID)
		return r.Find(ctx, msg.ID)
	}
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Debug("message appended", "id", m.ID, "conversation_id", m.ConversationID, "author", m.Author)
	return &m, nil
}

func (r *repo) Update(ctx context.Context, msg Message) (*Message, error) {
	if msg.Rich != nil {
		if err := msg.Rich.Validate(); err != nil {
			return nil, err
		}
	}

	rich, err := encodeRich(msg.Rich)
	if err != nil {
		return nil, fmt.Errorf("encode rich content: %w", err)
	}

	q := `
		UPDATE messages
		SET content = $1, rich = $2, is_error = $3, updated_at = NOW()
		WHERE id = $4
		` + returning

	m, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Message, error) {
		return repository.QueryOne(ctx, tx, q, []any{msg.Content, rich, msg.IsError, msg.ID}, scanMessage)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Debug("message updated", "id", m.ID)
	return &m, nil
}

func (r *repo) Delete(ctx context.Context, conversationID uuid.UUID, id string) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		err := repository.ExecExpectOne(ctx, tx,
			"DELETE FROM messages WHERE id = $1 AND conversation_id = $2", id, conversationID)
		return struct{}{}, err
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Debug("message deleted", "id", id)
	return nil
}
