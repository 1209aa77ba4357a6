package journals

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	accshared "github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/accounting/shared"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/platform/httpx"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/shared"
)

// Handler wires read endpoints for posted journals. Posting happens through
// the document orchestrator.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers journal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
}

type lineResponse struct {
	AccountID int64  `json:"account_id"`
	Debit     string `json:"debit"`
	Credit    string `json:"credit"`
	Memo      string `json:"memo,omitempty"`
}

type entryResponse struct {
	ID        int64          `json:"id"`
	JournalNo string         `json:"journal_no"`
	Date      string         `json:"date"`
	RefType   string         `json:"ref_type"`
	RefID     string         `json:"ref_id"`
	RefNumber string         `json:"ref_number,omitempty"`
	Memo      string         `json:"memo,omitempty"`
	Lines     []lineResponse `json:"lines,omitempty"`
}

func toResponse(e Entry) entryResponse {
	out := entryResponse{
		ID:        e.ID,
		JournalNo: e.JournalNo,
		Date:      e.Date.Format("2006-01-02"),
		RefType:   e.RefType,
		RefID:     e.RefID,
		RefNumber: e.RefNumber,
		Memo:      e.Memo,
	}
	for _, line := range e.Lines {
		out.Lines = append(out.Lines, lineResponse{
			AccountID: line.AccountID,
			Debit:     line.Debit.String(),
			Credit:    line.Credit.String(),
			Memo:      line.Memo,
		})
	}
	return out
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor.CompanyID == 0 {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "caller identity missing")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.service.List(r.Context(), actor.CompanyID, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]entryResponse, 0, len(list))
	for _, e := range list {
		out = append(out, toResponse(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"journals": out})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor.CompanyID == 0 {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "caller identity missing")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid journal id")
		return
	}
	entry, err := h.service.Get(r.Context(), actor.CompanyID, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(entry))
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, accshared.ErrJournalNotFound):
		httpx.Problem(w, http.StatusNotFound, "Journal Not Found", err.Error())
	default:
		h.logger.Error("journal request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
