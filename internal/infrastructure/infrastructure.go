// Package infrastructure provides core service initialization for application startup.
// It assembles common dependencies (logging, database, storage, realtime transport)
// that domain systems require.
package infrastructure

import (
	"fmt"
	"log/slog"

	"github.com/JaimeStill/agent-chat/internal/config"
	"github.com/JaimeStill/agent-chat/internal/migrations"
	"github.com/JaimeStill/agent-chat/internal/realtime"
	"github.com/JaimeStill/agent-chat/pkg/database"
	"github.com/JaimeStill/agent-chat/pkg/lifecycle"
	"github.com/JaimeStill/agent-chat/pkg/logging"
	"github.com/JaimeStill/agent-chat/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Transport realtime.Transport
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := logging.New(&cfg.Logging)

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	transport, err := realtime.New(cfg.Realtime, db.Connection(), db.Dsn(), logger)
	if err != nil {
		return nil, fmt.Errorf("realtime init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Storage:   store,
		Transport: transport,
	}, nil
}

// Start connects the database, applies pending migrations, and starts
// storage and the realtime transport.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := migrations.Up(i.Database.Dsn(), i.Logger); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	if err := i.Transport.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("realtime start failed: %w", err)
	}
	return nil
}
