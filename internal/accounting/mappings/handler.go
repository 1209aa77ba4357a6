package mappings

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/platform/httpx"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Handler wires HTTP endpoints for account mapping administration.
type Handler struct {
	logger    *slog.Logger
	repo      *Repository
	resolver  *Resolver
	audit     AuditPort
	validator *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, repo *Repository, resolver *Resolver, audit AuditPort) *Handler {
	return &Handler{logger: logger, repo: repo, resolver: resolver, audit: audit, validator: validator.New()}
}

// MountRoutes registers mapping routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Put("/", h.handleUpsert)
}

type upsertMappingRequest struct {
	Code      string `json:"code" validate:"required"`
	AccountID int64  `json:"account_id" validate:"required,gt=0"`
}

type mappingResponse struct {
	Code      string `json:"code"`
	AccountID int64  `json:"account_id"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor.CompanyID == 0 {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "caller identity missing")
		return
	}
	list, err := h.repo.List(r.Context(), actor.CompanyID)
	if err != nil {
		h.logger.Error("list mappings", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make([]mappingResponse, 0, len(list))
	for _, m := range list {
		out = append(out, mappingResponse{Code: string(m.Code), AccountID: m.AccountID})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"mappings": out})
}

func (h *Handler) handleUpsert(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor.CompanyID == 0 || actor.UserID == 0 {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "caller identity missing")
		return
	}
	var req upsertMappingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	code := Code(req.Code)
	if !code.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown mapping code")
		return
	}

	if err := h.repo.Upsert(r.Context(), AccountMapping{
		CompanyID: actor.CompanyID,
		Code:      code,
		AccountID: req.AccountID,
	}); err != nil {
		h.logger.Error("upsert mapping", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	h.resolver.Invalidate(r.Context(), actor.CompanyID, code)
	if h.audit != nil {
		_ = h.audit.Record(r.Context(), shared.AuditLog{
			ActorID:   actor.UserID,
			CompanyID: actor.CompanyID,
			Action:    "mapping.upsert",
			Entity:    "account_mapping",
			EntityID:  string(code),
			Meta:      map[string]any{"account_id": req.AccountID},
		})
	}
	httpx.JSON(w, http.StatusOK, mappingResponse{Code: string(code), AccountID: req.AccountID})
}
