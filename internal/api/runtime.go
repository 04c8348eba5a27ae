package api

import (
	"github.com/JaimeStill/agent-chat/internal/config"
	"github.com/JaimeStill/agent-chat/internal/infrastructure"
	"github.com/JaimeStill/agent-chat/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Database:  infra.Database,
			Storage:   infra.Storage,
			Transport: infra.Transport,
		},
		Pagination: cfg.API.Pagination,
	}
}
