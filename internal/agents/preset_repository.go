package agents

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/agent-chat/pkg/query"
	"github.com/JaimeStill/agent-chat/pkg/repository"
)

var presetProjection = query.
	NewProjectionMap("public", "presets", "p").
	Project("id", "ID").
	Project("name", "Name").
	Project("description", "Description").
	Project("agent_ids", "AgentIDs").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

func scanPreset(s repository.Scanner) (Preset, error) {
	var (
		p   Preset
		ids []byte
	)
	if err := s.Scan(&p.ID, &p.Name, &p.Description, &ids, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return p, err
	}
	if err := json.Unmarshal(ids, &p.AgentIDs); err != nil {
		return p, fmt.Errorf("decode preset %s agent ids: %w", p.Name, err)
	}
	return p, nil
}

type presetRepo struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPresets creates the PostgreSQL preset repository.
func NewPresets(db *sql.DB, logger *slog.Logger) Presets {
	return &presetRepo{
		db:     db,
		logger: logger.With("system", "presets"),
	}
}

func (r *presetRepo) List(ctx context.Context) ([]Preset, error) {
	q, args := query.NewBuilder(presetProjection, "Name").Build()

	presets, err := repository.QueryMany(ctx, r.db, q, args, scanPreset)
	if err != nil {
		return nil, fmt.Errorf("query presets: %w", err)
	}
	return presets, nil
}

func (r *presetRepo) Find(ctx context.Context, name string) (*Preset, error) {
	q, args := query.NewBuilder(presetProjection, "Name").BuildSingle("Name", name)

	p, err := repository.QueryOne(ctx, r.db, q, args, scanPreset)
	if err != nil {
		return nil, repository.MapError(err, ErrPresetNotFound, ErrDuplicate)
	}
	return &p, nil
}

func (r *presetRepo) Save(ctx context.Context, cmd PresetCommand) (*Preset, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	ids, err := json.Marshal(NewSelection(cmd.AgentIDs...))
	if err != nil {
		return nil, fmt.Errorf("encode preset agent ids: %w", err)
	}

	q := `
		INSERT INTO presets (name, description, agent_ids)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
		SET description = EXCLUDED.description, agent_ids = EXCLUDED.agent_ids, updated_at = NOW()
		RETURNING id, name, description, agent_ids, created_at, updated_at`

	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Preset, error) {
		return repository.QueryOne(ctx, tx, q, []any{cmd.Name, cmd.Description, string(ids)}, scanPreset)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrPresetNotFound, ErrDuplicate)
	}

	r.logger.Info("preset saved", "name", p.Name, "agents", len(p.AgentIDs))
	return &p, nil
}

func (r *presetRepo) Delete(ctx context.Context, name string) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		err := repository.ExecExpectOne(ctx, tx, "DELETE FROM presets WHERE name = $1", name)
		return struct{}{}, err
	})

	if err != nil {
		return repository.MapError(err, ErrPresetNotFound, ErrDuplicate)
	}

	r.logger.Info("preset deleted", "name", name)
	return nil
}
