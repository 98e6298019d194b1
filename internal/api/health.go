package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pilhia/pilhia/internal/completion"
	"github.com/pilhia/pilhia/internal/knowledge"
	"github.com/pilhia/pilhia/internal/potentials"
	"github.com/pilhia/pilhia/internal/session"
)

// HealthHandler reports liveness plus the loaded-data counts operators watch
// after a deploy.
type HealthHandler struct {
	store *session.Store
	bank  *knowledge.Store
	table *potentials.Table
	llm   *completion.Client
}

// NewHealthHandler creates a health handler over the live components.
func NewHealthHandler(store *session.Store, bank *knowledge.Store, table *potentials.Table, llm *completion.Client) *HealthHandler {
	return &HealthHandler{
		store: store,
		bank:  bank,
		table: table,
		llm:   llm,
	}
}

// RegisterRoutes registers the health route.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", Recover(h.HandleHealth))
}

// HandleHealth handles GET /health.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"chats":         h.store.Len(),
		"questions":     h.bank.QuestionCount(),
		"potentials":    h.table.Len(),
		"corpus_loaded": h.bank.HasCorpus(),
		"ai_available":  h.llm.Available(),
	})
}
