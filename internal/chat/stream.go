package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/JaimeStill/agent-chat/internal/messages"
	"github.com/JaimeStill/agent-chat/internal/presence"
	"github.com/JaimeStill/agent-chat/pkg/handlers"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 2 * pingInterval
	writeWait    = 10 * time.Second
	sendBuffer   = 256
	readLimit    = 64 * 1024
)

// Frame is one server-to-client stream message.
type Frame struct {
	Kind     string             `json:"kind"`
	Messages []messages.Message `json:"messages,omitempty"`
	Change   *messages.Change   `json:"change,omitempty"`
	Typers   []presence.Entry   `json:"typers,omitempty"`
}

// ClientFrame is one client-to-server stream message.
type ClientFrame struct {
	Type        string `json:"type"`
	DisplayName string `json:"display_name,omitempty"`
}

// Stream handles GET /conversations/{id}/stream?participant_id=. It sends a
// snapshot of the conversation, then every Store change and typing update.
// Clients send {"type":"typing"} frames while composing.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	participant := r.URL.Query().Get("participant_id")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", "error", err)
		return
	}

	out := newOutbox(sendBuffer)
	done := make(chan struct{})

	enqueue := func(f Frame) {
		data, err := json.Marshal(f)
		if err != nil {
			h.logger.Error("failed to marshal frame", "error", err)
			return
		}
		if !out.push(data, done) {
			h.logger.Warn("stream buffer full, closing stream", "conversation_id", id)
		}
	}

	unsubscribe, err := h.sys.Subscribe(r.Context(), id, func(u Update) {
		switch u.Kind {
		case UpdateMessages:
			enqueue(Frame{Kind: string(u.Kind), Change: u.Change})
		case UpdateTypers:
			enqueue(Frame{Kind: string(u.Kind), Typers: excludeTyper(u.Typers, participant)})
		case UpdateClosed:
			enqueue(Frame{Kind: string(u.Kind)})
		}
	})
	if err != nil {
		data, _ := json.Marshal(map[string]string{"kind": "error", "error": err.Error()})
		conn.WriteMessage(websocket.TextMessage, data)
		conn.Close()
		return
	}

	enqueue(Frame{
		Kind:     "snapshot",
		Messages: h.sys.Messages(id),
		Typers:   h.sys.LiveTypers(id, participant),
	})

	go h.writePump(conn, out, done)
	h.readPump(conn, id, participant)

	close(done)
	unsubscribe()
	conn.Close()
}

func (h *Handler) readPump(conn *websocket.Conn, id uuid.UUID, participant string) {
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("stream read error", "conversation_id", id, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var f ClientFrame
		if err := json.Unmarshal(data, &f); err != nil {
			h.logger.Warn("invalid client frame", "conversation_id", id, "error", err)
			continue
		}

		switch f.Type {
		case "typing":
			if participant == "" {
				continue
			}
			if err := h.sys.NotifyTyping(context.Background(), id, participant, f.DisplayName); err != nil {
				h.logger.Warn("typing signal failed", "conversation_id", id, "error", err)
			}
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, out *outbox, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	closeWith := func(code int, text string) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, text),
			time.Now().Add(writeWait))
	}

	for {
		select {
		case <-done:
			closeWith(websocket.CloseNormalClosure, "")
			return
		case <-out.overflow:
			// The client missed a change; it must reconnect for a fresh snapshot.
			closeWith(websocket.ClosePolicyViolation, "stream overflow, resubscribe")
			conn.Close()
			return
		case data := <-out.frames:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				conn.Close()
				return
			}
		case <-out.finished:
			for len(out.frames) > 0 {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, <-out.frames); err != nil {
					break
				}
			}
			closeWith(websocket.CloseNormalClosure, "conversation closed")
			conn.Close()
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}

// outbox buffers encoded frames for one stream. A frame that does not fit
// overflows the outbox; nothing is queued after that.
type outbox struct {
	frames   chan []byte
	overflow chan struct{}
	finished chan struct{}

	overflowOnce sync.Once
	finishOnce   sync.Once
}

func newOutbox(size int) *outbox {
	return &outbox{
		frames:   make(chan []byte, size),
		overflow: make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// push queues data. It reports false once the outbox has overflowed.
func (o *outbox) push(data []byte, done <-chan struct{}) bool {
	select {
	case <-o.overflow:
		return false
	default:
	}

	select {
	case o.frames <- data:
		return true
	case <-done:
		return true
	default:
		o.overflowOnce.Do(func() { close(o.overflow) })
		return false
	}
}

// finish ends the stream once the queued frames are written.
func (o *outbox) finish() {
	o.finishOnce.Do(func() { close(o.finished) })
}

func excludeTyper(entries []presence.Entry, participant string) []presence.Entry {
	if participant == "" {
		return entries
	}
	out := make([]presence.Entry, 0, len(entries))
	for _, e := range entries {
		if e.ParticipantID != participant {
			out = append(out, e)
		}
	}
	return out
}
