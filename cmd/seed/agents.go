package main

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/JaimeStill/agent-chat/internal/agents"
	"github.com/google/uuid"
)

//go:embed catalog.yaml
var defaultCatalog []byte

func init() {
	registerSeeder(&CatalogSeeder{})
}

// CatalogSeeder writes an agent catalog's agents and presets to the
// database. Agents are matched by name so re-running updates in place.
type CatalogSeeder struct {
	file string
}

func (s *CatalogSeeder) Name() string {
	return "catalog"
}

func (s *CatalogSeeder) Description() string {
	return "Seeds agents and presets from a YAML catalog"
}

// SetFile configures an external catalog path, overriding the embedded default.
func (s *CatalogSeeder) SetFile(path string) {
	s.file = path
}

func (s *CatalogSeeder) Seed(ctx context.Context, tx *sql.Tx) error {
	catalog, err := s.load()
	if err != nil {
		return err
	}

	resolved, err := catalog.Resolve()
	if err != nil {
		return err
	}

	ids := make(map[string]uuid.UUID, len(resolved))
	for _, a := range resolved {
		id, err := upsertAgent(ctx, tx, a)
		if err != nil {
			return fmt.Errorf("agent %s: %w", a.Name, err)
		}
		ids[a.Name] = id
	}

	presets, err := catalog.PresetCommands(ids)
	if err != nil {
		return err
	}

	for _, p := range presets {
		if err := upsertPreset(ctx, tx, p); err != nil {
			return fmt.Errorf("preset %s: %w", p.Name, err)
		}
	}

	fmt.Printf("seeded %d agents and %d presets\n", len(resolved), len(presets))
	return nil
}

func (s *CatalogSeeder) load() (*agents.Catalog, error) {
	if s.file == "" {
		return agents.ParseCatalog(defaultCatalog)
	}

	data, err := os.ReadFile(s.file)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return agents.ParseCatalog(data)
}

// upsertAgent returns the stored id, which differs from a.ID when the name
// was already seeded under another id.
func upsertAgent(ctx context.Context, tx *sql.Tx, a agents.Agent) (uuid.UUID, error) {
	config := any(nil)
	if len(a.Config) > 0 {
		config = string(a.Config)
	}

	q := `
		INSERT INTO agents (id, name, description, enabled, weight, system_prompt, config)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7::jsonb, '{}'::jsonb))
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			enabled = EXCLUDED.enabled,
			weight = EXCLUDED.weight,
			system_prompt = EXCLUDED.system_prompt,
			config = EXCLUDED.config,
			updated_at = NOW()
		RETURNING id`

	var id uuid.UUID
	err := tx.QueryRowContext(ctx, q,
		a.ID, a.Name, a.Description, a.Enabled, a.Weight, a.SystemPrompt, config,
	).Scan(&id)
	return id, err
}

func upsertPreset(ctx context.Context, tx *sql.Tx, p agents.PresetCommand) error {
	ids, err := json.Marshal(p.AgentIDs)
	if err != nil {
		return err
	}

	q := `
		INSERT INTO presets (name, description, agent_ids)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			agent_ids = EXCLUDED.agent_ids,
			updated_at = NOW()`

	_, err = tx.ExecContext(ctx, q, p.Name, p.Description, string(ids))
	return err
}
