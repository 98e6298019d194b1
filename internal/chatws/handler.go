// Package chatws exposes the chat exchange over a WebSocket so web clients
// can hold one connection per conversation instead of polling POST /query.
package chatws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/pilhia/pilhia/internal/dialogue"
	"github.com/pilhia/pilhia/internal/session"
	"github.com/pilhia/pilhia/internal/transcript"
)

// queryFrame is one inbound client message.
type queryFrame struct {
	Query  string `json:"query"`
	ChatID string `json:"chat_id,omitempty"`
}

// answerFrame is one outbound server message.
type answerFrame struct {
	Answer string `json:"answer,omitempty"`
	ChatID string `json:"chat_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Handler upgrades /ws/chat and runs the read loop. Each frame goes through
// the same engine and session path as POST /query.
type Handler struct {
	store         *session.Store
	engine        *dialogue.Engine
	transcripts   *transcript.Logger
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a WebSocket chat handler. The transcript logger may be
// nil when transcripts are disabled.
func NewHandler(store *session.Store, engine *dialogue.Engine, transcripts *transcript.Logger, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		store:         store,
		engine:        engine,
		transcripts:   transcripts,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	slog.Info("WebSocket chat connection request", "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.readLoop(ctx, ws)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client")
			} else {
				slog.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var frame queryFrame
		if err := json.Unmarshal(message, &frame); err != nil || frame.Query == "" {
			if err := h.writeJSON(ws, answerFrame{Error: "Query vazia"}); err != nil {
				slog.Debug("Failed to send error frame", "error", err)
				return
			}
			continue
		}

		sess := h.store.ResolveOrCreate(frame.ChatID)

		sess.Mu.Lock()
		answer := h.engine.Respond(ctx, sess, frame.Query)
		state := sess.State.String()
		sess.Mu.Unlock()

		h.transcripts.Log(transcript.Event{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			ChatID:    sess.ID,
			Query:     frame.Query,
			Answer:    answer,
			State:     state,
		})

		if err := h.writeJSON(ws, answerFrame{Answer: answer, ChatID: sess.ID}); err != nil {
			slog.Debug("Failed to send answer frame", "error", err)
			return
		}
	}
}

func (h *Handler) writeJSON(ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(context.Background(), websocket.MessageText, data)
}
