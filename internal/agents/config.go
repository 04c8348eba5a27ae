package agents

import (
	"encoding/json"
	"fmt"

	"github.com/JaimeStill/go-agents/pkg/agent"
	agtconfig "github.com/JaimeStill/go-agents/pkg/config"
)

// AgentConfig merges raw over the go-agents defaults. An empty raw yields
// the defaults.
func AgentConfig(raw json.RawMessage) (agtconfig.AgentConfig, error) {
	cfg := agtconfig.DefaultAgentConfig()
	if len(raw) == 0 {
		return cfg, nil
	}

	var userCfg agtconfig.AgentConfig
	if err := json.Unmarshal(raw, &userCfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cfg.Merge(&userCfg)
	return cfg, nil
}

// ValidateConfig checks that raw builds a go-agents agent.
func ValidateConfig(raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}

	cfg, err := AgentConfig(raw)
	if err != nil {
		return err
	}
	if _, err := agent.New(&cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
