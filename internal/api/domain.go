package api

import (
	"context"
	"fmt"

	"github.com/JaimeStill/agent-chat/internal/agents"
	"github.com/JaimeStill/agent-chat/internal/chat"
	"github.com/JaimeStill/agent-chat/internal/config"
	"github.com/JaimeStill/agent-chat/internal/conversations"
	"github.com/JaimeStill/agent-chat/internal/files"
	"github.com/JaimeStill/agent-chat/internal/messages"
	"github.com/JaimeStill/agent-chat/internal/pipeline"
	"github.com/JaimeStill/agent-chat/internal/subscriptions"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Agents        agents.System
	Presets       agents.Presets
	Conversations conversations.System
	Files         files.System
	Messages      messages.Repository
	Subscriptions *subscriptions.Manager
	Chat          chat.System

	watcher *agents.Watcher
}

// NewDomain creates all domain systems from the API runtime. When a
// catalog path is configured, agents and presets are served from the
// catalog file instead of the database.
func NewDomain(runtime *Runtime, cfg *config.Config) (*Domain, error) {
	db := runtime.Database.Connection()

	d := &Domain{
		Conversations: conversations.New(db, runtime.Logger, runtime.Pagination),
		Files:         files.New(db, runtime.Storage, runtime.Logger),
		Messages: messages.NewPublisher(
			messages.New(db, runtime.Logger),
			runtime.Transport,
			cfg.Realtime.MaxPayload,
			runtime.Logger,
		),
	}

	if cfg.Catalog.Path != "" {
		if err := d.loadCatalog(runtime, cfg.Catalog); err != nil {
			return nil, err
		}
	} else {
		d.Agents = agents.New(db, runtime.Logger, runtime.Pagination)
		d.Presets = agents.NewPresets(db, runtime.Logger)
	}

	budget, err := pipeline.NewBudget(cfg.Chat.ContextTokenBudget)
	if err != nil {
		return nil, fmt.Errorf("context budget: %w", err)
	}

	runner := pipeline.NewRunner(
		pipeline.NewChatInvoker(agents.NewInvoker(runtime.Logger), budget),
		cfg.Chat.StepTimeoutDuration(),
		nil,
		runtime.Logger,
	)

	d.Subscriptions = subscriptions.NewManager(
		runtime.Transport,
		d.Messages,
		subscriptions.ConfigFrom(&cfg.Chat),
		runtime.Logger,
	)

	d.Chat = chat.New(chat.Deps{
		Agents:         d.Agents,
		Conversations:  d.Conversations,
		Files:          d.Files,
		Messages:       d.Messages,
		Subscriptions:  d.Subscriptions,
		Runner:         runner,
		Budget:         budget,
		FileTokenLimit: cfg.Chat.FileTokenLimit,
		PersistTimeout: cfg.Chat.PersistTimeoutDuration(),
		Logger:         runtime.Logger,
	})

	return d, nil
}

// Start registers the domain's lifecycle hooks and starts the catalog
// watcher when one is configured.
func (d *Domain) Start(runtime *Runtime) error {
	d.Chat.Start(runtime.Lifecycle)
	d.Subscriptions.Start(runtime.Lifecycle)

	if d.watcher != nil {
		if err := d.watcher.Start(runtime.Lifecycle); err != nil {
			return err
		}
	}
	return nil
}

func (d *Domain) loadCatalog(runtime *Runtime, cfg config.CatalogConfig) error {
	registry := agents.NewRegistry(runtime.Logger, runtime.Pagination)
	presets := agents.NewPresetStore()

	reload := func() error {
		catalog, err := agents.LoadCatalog(cfg.Path)
		if err != nil {
			return err
		}
		return catalog.Apply(context.Background(), registry, presets)
	}

	if err := reload(); err != nil {
		return fmt.Errorf("load catalog %s: %w", cfg.Path, err)
	}

	d.Agents = registry
	d.Presets = presets

	if cfg.Watch {
		w, err := agents.NewWatcher(cfg.Path, reload, runtime.Logger)
		if err != nil {
			return err
		}
		d.watcher = w
	}
	return nil
}
