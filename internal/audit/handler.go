package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/platform/httpx"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/shared"
)

// RepositoryPort abstracts audit storage for the handler.
type RepositoryPort interface {
	List(ctx context.Context, filter Filter) ([]Record, error)
}

// Handler serves the audit trail.
type Handler struct {
	logger *slog.Logger
	repo   RepositoryPort
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, repo RepositoryPort) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers audit endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
}

type recordResponse struct {
	ID         int64          `json:"id"`
	ActorID    int64          `json:"actor_id"`
	Action     string         `json:"action"`
	Entity     string         `json:"entity"`
	EntityID   string         `json:"entity_id"`
	Meta       map[string]any `json:"meta,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor.CompanyID == 0 {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity headers")
		return
	}

	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	records, err := h.repo.List(r.Context(), Filter{
		CompanyID: actor.CompanyID,
		Entity:    query.Get("entity"),
		EntityID:  query.Get("entity_id"),
		Action:    query.Get("action"),
		Limit:     limit,
	})
	if err != nil {
		h.logger.Error("list audit trail", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	out := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, recordResponse{
			ID:         rec.ID,
			ActorID:    rec.ActorID,
			Action:     rec.Action,
			Entity:     rec.Entity,
			EntityID:   rec.EntityID,
			Meta:       rec.Meta,
			OccurredAt: rec.OccurredAt,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"records": out})
}
