package api

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pilhia/pilhia/internal/dialogue"
	"github.com/pilhia/pilhia/internal/domain"
	"github.com/pilhia/pilhia/internal/session"
	"github.com/pilhia/pilhia/internal/transcript"
)

// maxRequestBodySize caps inbound JSON bodies (64KB is generous for a
// 500-rune query).
const maxRequestBodySize = 64 << 10

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Query  string `json:"query"`
	ChatID string `json:"chat_id,omitempty"`
}

// QueryResponse is the body of a successful POST /query.
type QueryResponse struct {
	Answer string `json:"answer"`
	ChatID string `json:"chat_id"`
}

// ChatHandler serves the conversational endpoints.
type ChatHandler struct {
	store       *session.Store
	engine      *dialogue.Engine
	limiter     *RateLimiter
	transcripts *transcript.Logger
}

// NewChatHandler wires the chat endpoints over their collaborators. The
// transcript logger may be nil when transcripts are disabled.
func NewChatHandler(store *session.Store, engine *dialogue.Engine, limiter *RateLimiter, transcripts *transcript.Logger) *ChatHandler {
	return &ChatHandler{
		store:       store,
		engine:      engine,
		limiter:     limiter,
		transcripts: transcripts,
	}
}

// RegisterRoutes registers the chat routes. Every handler is wrapped so the
// response is a JSON envelope even on a panic.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Post("/create_chat", Recover(h.HandleCreateChat))
	r.Post("/query", Recover(h.HandleQuery))
	r.Post("/clear_history", Recover(h.HandleClearHistory))
	r.Get("/history", Recover(h.HandleHistory))
	r.Get("/sessions", Recover(h.HandleSessions))
}

// HandleCreateChat handles POST /create_chat.
func (h *ChatHandler) HandleCreateChat(w http.ResponseWriter, r *http.Request) {
	sess := h.store.ResolveOrCreate("")
	slog.Info("Chat created", "chat_id", sess.ID)
	JSON(w, http.StatusOK, map[string]string{
		"chat_id":    sess.ID,
		"created_at": sess.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// HandleQuery handles POST /query. A missing chat id mints a new session;
// an unknown one is honored so clients survive server restarts. Engine
// failures never reach the wire as anything but a JSON envelope.
func (h *ChatHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest

	// The reply must be a JSON envelope even on a panic; chi's Recoverer
	// alone would write plain text. The chat id is included when known so the
	// client can retry with continuity.
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Query handler panicked", "panic", rec, "chat_id", req.ChatID)
			JSON(w, http.StatusInternalServerError, map[string]string{
				"answer":  "Erro interno",
				"chat_id": req.ChatID,
			})
		}
	}()

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "Query vazia")
		return
	}
	if req.Query == "" {
		Error(w, http.StatusBadRequest, "Query vazia")
		return
	}

	// Without a chat id, throttle by client host. RemoteAddr carries the
	// ephemeral port, which would give every connection its own bucket.
	limitKey := req.ChatID
	if limitKey == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			limitKey = host
		} else {
			limitKey = r.RemoteAddr
		}
	}
	if h.limiter != nil && !h.limiter.Allow(limitKey) {
		Error(w, http.StatusTooManyRequests, "Muitas requisições. Aguarde um momento.")
		return
	}

	sess := h.store.ResolveOrCreate(req.ChatID)

	// One turn at a time per session. The lock spans the completion call so
	// interleaved turns cannot corrupt the quiz state.
	sess.Mu.Lock()
	answer := h.engine.Respond(r.Context(), sess, req.Query)
	state := sess.State.String()
	sess.Mu.Unlock()

	h.transcripts.Log(transcript.Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		ChatID:    sess.ID,
		Query:     req.Query,
		Answer:    answer,
		State:     state,
	})

	JSON(w, http.StatusOK, QueryResponse{Answer: answer, ChatID: sess.ID})
}

// HandleClearHistory handles POST /clear_history. Unknown ids are a 404 and
// never create a session as a side effect.
func (h *ChatHandler) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID string `json:"chat_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChatID == "" {
		Error(w, http.StatusBadRequest, "chat_id é obrigatório")
		return
	}

	if !h.store.ClearHistory(req.ChatID) {
		Error(w, http.StatusNotFound, "Chat não encontrado")
		return
	}
	slog.Info("Chat history cleared", "chat_id", req.ChatID)
	JSON(w, http.StatusOK, map[string]string{"status": "Histórico limpo"})
}

// HandleHistory handles GET /history?chat_id=.
func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	chatID := r.URL.Query().Get("chat_id")
	if chatID == "" {
		Error(w, http.StatusBadRequest, "chat_id é obrigatório")
		return
	}

	sess, ok := h.store.Get(chatID)
	if !ok {
		Error(w, http.StatusNotFound, "Chat não encontrado")
		return
	}

	sess.Mu.Lock()
	turns := sess.RecentTurns(len(sess.History))
	sess.Mu.Unlock()
	if turns == nil {
		turns = []domain.Turn{}
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"chat_id": chatID,
		"history": turns,
	})
}

// HandleSessions handles GET /sessions, an operator summary of the live
// session population.
func (h *ChatHandler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"count":    h.store.Len(),
		"sessions": h.store.List(),
	})
}
