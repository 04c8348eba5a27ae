package chat

import (
	"log/slog"
	"net/http"

	"github.com/JaimeStill/agent-chat/internal/messages"
	"github.com/JaimeStill/agent-chat/pkg/handlers"
	"github.com/JaimeStill/agent-chat/pkg/pagination"
	"github.com/JaimeStill/agent-chat/pkg/routes"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handler exposes the engine over HTTP and WebSocket.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
	upgrader   websocket.Upgrader
}

func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "chat"),
		pagination: pagination,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Description: "Conversation engine",
		Children: []routes.Group{
			{
				Prefix: "/conversations/{id}",
				Routes: []routes.Route{
					{Method: "POST", Pattern: "/messages", Handler: h.Send},
					{Method: "GET", Pattern: "/messages", Handler: h.History},
					{Method: "POST", Pattern: "/typing", Handler: h.Typing},
					{Method: "GET", Pattern: "/typers", Handler: h.Typers},
					{Method: "GET", Pattern: "/stream", Handler: h.Stream},
				},
			},
			{
				Prefix: "/runs",
				Routes: []routes.Route{
					{Method: "POST", Pattern: "/{id}/cancel", Handler: h.Cancel},
				},
			},
			{
				Prefix: "/messages",
				Routes: []routes.Route{
					{Method: "POST", Pattern: "/{id}/retry", Handler: h.Retry},
					{Method: "PATCH", Pattern: "/{id}", Handler: h.Edit},
					{Method: "DELETE", Pattern: "/{id}", Handler: h.DeleteMessage},
				},
			},
		},
	}
}

// Send handles POST /conversations/{id}/messages. The turn runs in the
// background; agent replies arrive through the stream.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	cmd, err := handlers.DecodeJSON[SendCommand](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	cmd.ConversationID = id

	turn, err := h.sys.SendUserMessage(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, turn)
}

// HistoryPage is one page of persisted messages, oldest first.
type HistoryPage struct {
	Messages []messages.Message `json:"messages"`
	HasMore  bool               `json:"has_more"`
}

// History handles GET /conversations/{id}/messages?before=&limit=.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	cursor := pagination.CursorRequestFromQuery(r.URL.Query(), h.pagination)

	page, hasMore, err := h.sys.History(r.Context(), id, cursor.Before, cursor.Limit)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	if page == nil {
		page = []messages.Message{}
	}

	handlers.RespondJSON(w, http.StatusOK, HistoryPage{Messages: page, HasMore: hasMore})
}

// TypingRequest signals that a participant is typing.
type TypingRequest struct {
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name"`
}

func (h *Handler) Typing(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	req, err := handlers.DecodeJSON[TypingRequest](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	if err := h.sys.NotifyTyping(r.Context(), id, req.ParticipantID, req.DisplayName); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Typers handles GET /conversations/{id}/typers?exclude=.
func (h *Handler) Typers(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	typers := h.sys.LiveTypers(id, r.URL.Query().Get("exclude"))
	if typers == nil {
		handlers.RespondJSON(w, http.StatusOK, []any{})
		return
	}
	handlers.RespondJSON(w, http.StatusOK, typers)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.sys.Cancel(r.PathValue("id")); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	turn, err := h.sys.Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	if turn == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	handlers.RespondJSON(w, http.StatusAccepted, turn)
}

// EditRequest replaces a user message's text.
type EditRequest struct {
	Text string `json:"text"`
}

func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	req, err := handlers.DecodeJSON[EditRequest](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	msg, err := h.sys.EditMessage(r.Context(), r.PathValue("id"), req.Text)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, msg)
}

func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := h.sys.DeleteMessage(r.Context(), r.PathValue("id")); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
