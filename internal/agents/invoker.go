package agents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/go-agents/pkg/agent"
)

// Invoker executes agents through go-agents chat completions.
type Invoker struct {
	logger *slog.Logger
}

func NewInvoker(logger *slog.Logger) *Invoker {
	return &Invoker{
		logger: logger.With("system", "agents", "component", "invoker"),
	}
}

// Chat sends prompt to a's model with a's system prompt and returns the raw
// reply text.
func (i *Invoker) Chat(ctx context.Context, a Agent, prompt string) (string, error) {
	cfg, err := AgentConfig(a.Config)
	if err != nil {
		return "", err
	}

	agt, err := agent.New(&cfg)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	opts := map[string]any{}
	if a.SystemPrompt != "" {
		opts["system_prompt"] = a.SystemPrompt
	}

	start := time.Now()
	resp, err := agt.Chat(ctx, prompt, opts)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrExecution, a.Name, err)
	}

	i.logger.Debug("agent replied", "agent", a.Name, "duration", time.Since(start))
	return resp.Content(), nil
}

// Invoke runs Chat and parses the reply into a structured Response.
func (i *Invoker) Invoke(ctx context.Context, a Agent, prompt string) (*Response, error) {
	content, err := i.Chat(ctx, a, prompt)
	if err != nil {
		return nil, err
	}
	return ParseResponse(content)
}
