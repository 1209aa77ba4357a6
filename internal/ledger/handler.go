package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/accounting/periods"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/platform/httpx"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/shared"
)

// Handler wires read endpoints for the ledger. Writes go through the
// posting module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/balance", h.handleBalance)
	r.Get("/history", h.handleHistory)
}

type balanceResponse struct {
	Class      Class  `json:"class"`
	ItemID     int64  `json:"item_id"`
	LocationID int64  `json:"location_id"`
	Qty        string `json:"qty"`
	AvgCost    string `json:"avg_cost"`
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor.CompanyID == 0 {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "caller identity missing")
		return
	}
	q := r.URL.Query()
	class := Class(q.Get("class"))
	itemID, _ := strconv.ParseInt(q.Get("item_id"), 10, 64)
	locationID, _ := strconv.ParseInt(q.Get("location_id"), 10, 64)

	balance, err := h.service.Balance(r.Context(), actor.CompanyID, class, itemID, locationID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balanceResponse{
		Class:      balance.Class,
		ItemID:     balance.ItemID,
		LocationID: balance.LocationID,
		Qty:        balance.Qty.String(),
		AvgCost:    balance.AvgCost.String(),
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor.CompanyID == 0 {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "caller identity missing")
		return
	}
	q := r.URL.Query()
	filter := Filter{CompanyID: actor.CompanyID, Class: Class(q.Get("class"))}
	filter.ItemID, _ = strconv.ParseInt(q.Get("item_id"), 10, 64)
	filter.LocationID, _ = strconv.ParseInt(q.Get("location_id"), 10, 64)
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	if from := q.Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid from date")
			return
		}
		filter.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid to date")
			return
		}
		filter.To = t
	}

	entries, err := h.service.History(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var insufficient *InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		httpx.JSON(w, http.StatusConflict, map[string]any{
			"title":     "Insufficient Stock",
			"status":    http.StatusConflict,
			"available": insufficient.Available.String(),
			"requested": insufficient.Requested.String(),
		})
	case errors.Is(err, periods.ErrPeriodClosed):
		httpx.Problem(w, http.StatusConflict, "Period Closed", err.Error())
	case errors.Is(err, periods.ErrPeriodNotFound):
		httpx.Problem(w, http.StatusNotFound, "Period Not Found", err.Error())
	case errors.Is(err, ErrMissingKey), errors.Is(err, ErrInvalidClass),
		errors.Is(err, ErrInvalidKind), errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidUnitCost), errors.Is(err, ErrMissingDate):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("ledger request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
