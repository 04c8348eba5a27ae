package agents

import (
	"log/slog"
	"net/http"

	"github.com/JaimeStill/agent-chat/pkg/handlers"
	"github.com/JaimeStill/agent-chat/pkg/pagination"
	"github.com/JaimeStill/agent-chat/pkg/routes"
	"github.com/google/uuid"
)

// Handler provides HTTP handlers for agents, selections, and presets.
type Handler struct {
	sys        System
	presets    Presets
	logger     *slog.Logger
	pagination pagination.Config
}

func NewHandler(sys System, presets Presets, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		presets:    presets,
		logger:     logger,
		pagination: pagination,
	}
}

// Routes returns the route group configuration for agent endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:      "/agents",
		Description: "Agent registry, selection, and presets",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "POST", Pattern: "/search", Handler: h.Search},
			{Method: "POST", Pattern: "/select", Handler: h.Select},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "POST", Pattern: "", Handler: h.Create},
			{Method: "PUT", Pattern: "/{id}", Handler: h.Update},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete},
		},
		Children: []routes.Group{
			{
				Prefix:      "/presets",
				Description: "Named agent selections",
				Routes: []routes.Route{
					{Method: "GET", Pattern: "", Handler: h.ListPresets},
					{Method: "GET", Pattern: "/{name}", Handler: h.FindPreset},
					{Method: "PUT", Pattern: "/{name}", Handler: h.SavePreset},
					{Method: "DELETE", Pattern: "/{name}", Handler: h.DeletePreset},
					{Method: "POST", Pattern: "/{name}/apply", Handler: h.ApplyPreset},
				},
			},
		},
	}
}

// List handles GET /agents: enabled agents in display order.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	result, err := h.sys.List(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Search handles POST /agents/search with a page request body.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	page, err := handlers.DecodeJSON[pagination.PageRequest](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.sys.Search(r.Context(), page, FiltersFromQuery(r.URL.Query()))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// SelectRequest toggles one agent within a selection.
type SelectRequest struct {
	Mode    string      `json:"mode"`
	Current []uuid.UUID `json:"current"`
	Toggled uuid.UUID   `json:"toggled"`
}

// Select handles POST /agents/select.
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	req, err := handlers.DecodeJSON[SelectRequest](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	mode, err := ParseMode(req.Mode)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	if _, err := h.sys.Find(r.Context(), req.Toggled); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, Select(mode, NewSelection(req.Current...), req.Toggled))
}

// Find handles GET /agents/{id}.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Create handles POST /agents.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	cmd, err := handlers.DecodeJSON[CreateCommand](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.sys.Create(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, result)
}

// Update handles PUT /agents/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	cmd, err := handlers.DecodeJSON[UpdateCommand](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.sys.Update(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Delete handles DELETE /agents/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	if err := h.sys.Delete(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListPresets(w http.ResponseWriter, r *http.Request) {
	result, err := h.presets.List(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) FindPreset(w http.ResponseWriter, r *http.Request) {
	result, err := h.presets.Find(r.Context(), r.PathValue("name"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// SavePreset handles PUT /agents/presets/{name}. The path name wins over
// any name in the body.
func (h *Handler) SavePreset(w http.ResponseWriter, r *http.Request) {
	cmd, err := handlers.DecodeJSON[PresetCommand](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	cmd.Name = r.PathValue("name")

	if _, err := h.sys.Snapshot(r.Context(), cmd.AgentIDs); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	result, err := h.presets.Save(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) DeletePreset(w http.ResponseWriter, r *http.Request) {
	if err := h.presets.Delete(r.Context(), r.PathValue("name")); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ApplyPreset handles POST /agents/presets/{name}/apply and returns the
// resulting selection.
func (h *Handler) ApplyPreset(w http.ResponseWriter, r *http.Request) {
	p, err := h.presets.Find(r.Context(), r.PathValue("name"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, p.Apply())
}
