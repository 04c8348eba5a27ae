package agents

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/agent-chat/pkg/pagination"
	"github.com/JaimeStill/agent-chat/pkg/query"
	"github.com/JaimeStill/agent-chat/pkg/repository"
	"github.com/google/uuid"
)

var projection = query.
	NewProjectionMap("public", "agents", "a").
	Project("id", "ID").
	Project("name", "Name").
	Project("description", "Description").
	Project("enabled", "Enabled").
	Project("weight", "Weight").
	Project("system_prompt", "SystemPrompt").
	Project("config", "Config").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var displayOrder = []query.SortField{
	{Field: "Weight"},
	{Field: "Name"},
	{Field: "ID"},
}

const returning = `RETURNING id, name, description, enabled, weight, system_prompt, config, created_at, updated_at`

func scanAgent(s repository.Scanner) (Agent, error) {
	var (
		a   Agent
		cfg []byte
	)
	err := s.Scan(&a.ID, &a.Name, &a.Description, &a.Enabled, &a.Weight, &a.SystemPrompt, &cfg, &a.CreatedAt, &a.UpdatedAt)
	if len(cfg) > 0 {
		a.Config = json.RawMessage(cfg)
	}
	return a, err
}

// configArg renders an optional config for a JSONB column.
func configArg(cfg json.RawMessage) any {
	if len(cfg) == 0 {
		return nil
	}
	return string(cfg)
}

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates the PostgreSQL agents repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "agents"),
		pagination: pagination,
	}
}

func (r *repo) List(ctx context.Context) ([]Agent, error) {
	q, args := query.
		NewBuilder(projection, "Weight").
		WhereEquals("Enabled", true).
		OrderByFields(displayOrder).
		Build()

	agents, err := repository.QueryMany(ctx, r.db, q, args, scanAgent)
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}
	return agents, nil
}

func (r *repo) Search(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Agent], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, "Name").
		WhereSearch(page.Search, "Name", "Description").
		OrderByFields(displayOrder)

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count agents: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	agents, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanAgent)
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}

	result := pagination.NewPageResult(agents, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Agent, error) {
	q, args := query.NewBuilder(projection, "Name").BuildSingle("ID", id)

	a, err := repository.QueryOne(ctx, r.db, q, args, scanAgent)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &a, nil
}

func (r *repo) Snapshot(ctx context.Context, ids []uuid.UUID) ([]Agent, error) {
	if len(ids) == 0 {
		return []Agent{}, nil
	}

	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}

	q, args := query.NewBuilder(projection, "Name").WhereIn("ID", values).Build()
	rows, err := repository.QueryMany(ctx, r.db, q, args, scanAgent)
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}

	found := make(map[uuid.UUID]Agent, len(rows))
	for _, a := range rows {
		found[a.ID] = a
	}
	return orderSnapshot(ids, found)
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Agent, error) {
	if err := validateName(cmd.Name); err != nil {
		return nil, err
	}
	if err := ValidateConfig(cmd.Config); err != nil {
		return nil, err
	}

	q := `
		INSERT INTO agents (name, description, enabled, weight, system_prompt, config)
		VALUES ($1, $2, $3, $4, $5, $6)
		` + returning

	a, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Agent, error) {
		return repository.QueryOne(ctx, tx, q, []any{
			cmd.Name, cmd.Description, cmd.enabled(), cmd.Weight, cmd.SystemPrompt, configArg(cmd.Config),
		}, scanAgent)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("agent created", "id", a.ID, "name", a.Name)
	return &a, nil
}

func (r *repo) Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Agent, error) {
	if err := validateName(cmd.Name); err != nil {
		return nil, err
	}
	if err := ValidateConfig(cmd.Config); err != nil {
		return nil, err
	}

	q := `
		UPDATE agents
		SET name = $1, description = $2, enabled = $3, weight = $4, system_prompt = $5,
			config = $6, updated_at = NOW()
		WHERE id = $7
		` + returning

	a, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Agent, error) {
		return repository.QueryOne(ctx, tx, q, []any{
			cmd.Name, cmd.Description, cmd.Enabled, cmd.Weight, cmd.SystemPrompt, configArg(cmd.Config), id,
		}, scanAgent)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("agent updated", "id", a.ID, "name", a.Name)
	return &a, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		err := repository.ExecExpectOne(ctx, tx, "DELETE FROM agents WHERE id = $1", id)
		return struct{}{}, err
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("agent deleted", "id", id)
	return nil
}
