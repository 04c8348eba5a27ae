// Package api assembles the domain systems and their HTTP handlers into
// the API module.
package api

import (
	"net/http"

	"github.com/JaimeStill/agent-chat/internal/config"
	"github.com/JaimeStill/agent-chat/internal/infrastructure"
	"github.com/JaimeStill/agent-chat/pkg/middleware"
)

// Module is the mounted API: its handler and the domain behind it.
type Module struct {
	Handler http.Handler
	Domain  *Domain
	runtime *Runtime
}

func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*Module, error) {
	runtime := NewRuntime(cfg, infra)

	domain, err := NewDomain(runtime, cfg)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	if err := registerRoutes(mux, runtime, domain, cfg); err != nil {
		return nil, err
	}

	mw := middleware.New()
	mw.Use(middleware.TrimSlash())
	mw.Use(middleware.CORS(&cfg.API.CORS))
	mw.Use(middleware.Logger(runtime.Logger))

	return &Module{
		Handler: mw.Apply(mux),
		Domain:  domain,
		runtime: runtime,
	}, nil
}

// Start registers the domain's lifecycle hooks.
func (m *Module) Start() error {
	return m.Domain.Start(m.runtime)
}
