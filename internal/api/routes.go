package api

import (
	"net/http"

	"github.com/JaimeStill/agent-chat/internal/agents"
	"github.com/JaimeStill/agent-chat/internal/chat"
	"github.com/JaimeStill/agent-chat/internal/config"
	"github.com/JaimeStill/agent-chat/internal/conversations"
	"github.com/JaimeStill/agent-chat/internal/files"
	"github.com/JaimeStill/agent-chat/pkg/openapi"
	"github.com/JaimeStill/agent-chat/pkg/routes"
)

func registerRoutes(mux *http.ServeMux, runtime *Runtime, domain *Domain, cfg *config.Config) error {
	agentsHandler := agents.NewHandler(domain.Agents, domain.Presets, runtime.Logger, runtime.Pagination)
	conversationsHandler := conversations.NewHandler(
		domain.Conversations,
		runtime.Logger,
		runtime.Pagination,
		domain.Chat.Forget,
	)
	filesHandler := files.NewHandler(domain.Files, runtime.Logger, cfg.Storage.MaxUploadSizeBytes())
	chatHandler := chat.NewHandler(domain.Chat, runtime.Logger, runtime.Pagination)

	groups := []routes.Group{
		agentsHandler.Routes(),
		conversationsHandler.Routes(),
		filesHandler.Routes(),
		chatHandler.Routes(),
	}
	routes.Register(mux, cfg.API.BasePath, groups...)

	spec := openapi.Build(&cfg.API.OpenAPI, cfg.Version, cfg.API.BasePath, groups...)
	serveSpec, err := openapi.Handler(spec)
	if err != nil {
		return err
	}
	mux.HandleFunc("GET "+cfg.API.BasePath+"/openapi.json", serveSpec)
	return nil
}
