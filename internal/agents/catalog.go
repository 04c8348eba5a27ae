package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// catalogNamespace derives stable ids for catalog agents declared without one,
// so selections survive a reload.
var catalogNamespace = uuid.MustParse("6f1c2a8e-3d4b-5e6f-8a9b-0c1d2e3f4a5b")

// Catalog is the YAML file format for agents and presets.
//
//	agents:
//	  - name: boq
//	    weight: 10
//	    system_prompt: |
//	      Extract the bill of quantities...
//	presets:
//	  - name: estimate
//	    agents: [boq, price]
type Catalog struct {
	Agents  []CatalogAgent  `yaml:"agents"`
	Presets []CatalogPreset `yaml:"presets"`
}

type CatalogAgent struct {
	ID           string         `yaml:"id"`
	Name         string         `yaml:"name"`
	Description  string         `yaml:"description"`
	Enabled      *bool          `yaml:"enabled"`
	Weight       int            `yaml:"weight"`
	SystemPrompt string         `yaml:"system_prompt"`
	Config       map[string]any `yaml:"config"`
}

// CatalogPreset references agents by name.
type CatalogPreset struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Agents      []string `yaml:"agents"`
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return &c, nil
}

func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// Commands converts catalog agents into create commands.
func (c *Catalog) Commands() ([]CreateCommand, error) {
	cmds := make([]CreateCommand, 0, len(c.Agents))
	for _, a := range c.Agents {
		cfg, err := a.config()
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, CreateCommand{
			Name:         a.Name,
			Description:  a.Description,
			Enabled:      a.Enabled,
			Weight:       a.Weight,
			SystemPrompt: a.SystemPrompt,
			Config:       cfg,
		})
	}
	return cmds, nil
}

// Resolve builds registry agents with stable ids.
func (c *Catalog) Resolve() ([]Agent, error) {
	cmds, err := c.Commands()
	if err != nil {
		return nil, err
	}

	agents := make([]Agent, len(cmds))
	for i, cmd := range cmds {
		id, err := c.Agents[i].id()
		if err != nil {
			return nil, err
		}
		if err := ValidateConfig(cmd.Config); err != nil {
			return nil, fmt.Errorf("agent %s: %w", cmd.Name, err)
		}
		agents[i] = Agent{
			ID:           id,
			Name:         cmd.Name,
			Description:  cmd.Description,
			Enabled:      cmd.enabled(),
			Weight:       cmd.Weight,
			SystemPrompt: cmd.SystemPrompt,
			Config:       cmd.Config,
		}
	}
	return agents, nil
}

// PresetCommands resolves preset agent names through ids.
func (c *Catalog) PresetCommands(ids map[string]uuid.UUID) ([]PresetCommand, error) {
	cmds := make([]PresetCommand, 0, len(c.Presets))
	for _, p := range c.Presets {
		agentIDs := make([]uuid.UUID, 0, len(p.Agents))
		for _, name := range p.Agents {
			id, ok := ids[name]
			if !ok {
				return nil, fmt.Errorf("%w: preset %s references unknown agent %s", ErrInvalidCatalog, p.Name, name)
			}
			agentIDs = append(agentIDs, id)
		}
		cmds = append(cmds, PresetCommand{Name: p.Name, Description: p.Description, AgentIDs: agentIDs})
	}
	return cmds, nil
}

// Apply replaces reg's agents with the catalog's and saves its presets.
func (c *Catalog) Apply(ctx context.Context, reg *Registry, presets Presets) error {
	agents, err := c.Resolve()
	if err != nil {
		return err
	}

	ids := make(map[string]uuid.UUID, len(agents))
	for _, a := range agents {
		ids[a.Name] = a.ID
	}

	cmds, err := c.PresetCommands(ids)
	if err != nil {
		return err
	}

	if err := reg.Replace(agents); err != nil {
		return err
	}

	for _, cmd := range cmds {
		if _, err := presets.Save(ctx, cmd); err != nil {
			return fmt.Errorf("save preset %s: %w", cmd.Name, err)
		}
	}
	return nil
}

func (a CatalogAgent) id() (uuid.UUID, error) {
	if a.ID == "" {
		return uuid.NewSHA1(catalogNamespace, []byte(a.Name)), nil
	}
	id, err := uuid.Parse(a.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: agent %s id: %v", ErrInvalidCatalog, a.Name, err)
	}
	return id, nil
}

func (a CatalogAgent) config() (json.RawMessage, error) {
	if len(a.Config) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(a.Config)
	if err != nil {
		return nil, fmt.Errorf("%w: agent %s config: %v", ErrInvalidCatalog, a.Name, err)
	}
	return b, nil
}
