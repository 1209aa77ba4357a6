package posting

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/accounting/mappings"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/accounting/periods"
	accshared "github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/accounting/shared"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/ledger"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/platform/httpx"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/shared"
)

// Handler wires HTTP endpoints for stock movements and document posting.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers posting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/receipts", h.handleReceive)
	r.Post("/issues", h.handleIssue)
	r.Post("/sales-issues", h.handleIssueForSale)

	r.Post("/goods-receipts", h.handleCreateGoodsReceipt)
	r.Post("/goods-receipts/{id}/post", h.handlePostGoodsReceipt)
	r.Post("/transfers", h.handleCreateTransfer)
	r.Post("/transfers/{id}/post", h.handlePostTransfer)
	r.Post("/adjustments", h.handleCreateAdjustment)
	r.Post("/adjustments/{id}/post", h.handlePostAdjustment)
}

type receiveRequest struct {
	Class       string `json:"class" validate:"required,oneof=RAW WIP FINISHED"`
	ItemID      int64  `json:"item_id" validate:"required,gt=0"`
	LocationID  int64  `json:"location_id" validate:"required,gt=0"`
	Date        string `json:"date" validate:"required"`
	Qty         string `json:"qty" validate:"required"`
	UnitCost    string `json:"unit_cost" validate:"required"`
	SupplierRef string `json:"supplier_ref"`
}

type issueRequest struct {
	Class      string `json:"class" validate:"required,oneof=RAW WIP FINISHED"`
	ItemID     int64  `json:"item_id" validate:"required,gt=0"`
	LocationID int64  `json:"location_id" validate:"required,gt=0"`
	Date       string `json:"date" validate:"required"`
	Qty        string `json:"qty" validate:"required"`
	Ref        string `json:"ref"`
}

type saleIssueRequest struct {
	ItemID     int64  `json:"item_id" validate:"required,gt=0"`
	LocationID int64  `json:"location_id" validate:"required,gt=0"`
	Date       string `json:"date" validate:"required"`
	Qty        string `json:"qty" validate:"required"`
	SaleAmount string `json:"sale_amount" validate:"required"`
	Ref        string `json:"ref"`
}

type goodsReceiptLineRequest struct {
	ItemID     int64  `json:"item_id" validate:"required,gt=0"`
	LocationID int64  `json:"location_id" validate:"required,gt=0"`
	Qty        string `json:"qty" validate:"required"`
	UnitCost   string `json:"unit_cost" validate:"required"`
}

type createGoodsReceiptRequest struct {
	Class       string                    `json:"class" validate:"required,oneof=RAW WIP FINISHED"`
	SupplierRef string                    `json:"supplier_ref"`
	Date        string                    `json:"date" validate:"required"`
	Lines       []goodsReceiptLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type transferLineRequest struct {
	ItemID        int64  `json:"item_id" validate:"required,gt=0"`
	Qty           string `json:"qty" validate:"required"`
	SrcClass      string `json:"src_class" validate:"required,oneof=RAW WIP FINISHED"`
	SrcLocationID int64  `json:"src_location_id" validate:"required,gt=0"`
	DstClass      string `json:"dst_class" validate:"required,oneof=RAW WIP FINISHED"`
	DstLocationID int64  `json:"dst_location_id" validate:"required,gt=0"`
}

type createTransferRequest struct {
	Date  string                `json:"date" validate:"required"`
	Note  string                `json:"note"`
	Lines []transferLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type adjustmentLineRequest struct {
	ItemID     int64  `json:"item_id" validate:"required,gt=0"`
	LocationID int64  `json:"location_id" validate:"required,gt=0"`
	Class      string `json:"class" validate:"required,oneof=RAW WIP FINISHED"`
	QtyDelta   string `json:"qty_delta" validate:"required"`
	UnitCost   string `json:"unit_cost"`
}

type createAdjustmentRequest struct {
	Date   string                  `json:"date" validate:"required"`
	Reason string                  `json:"reason" validate:"required"`
	Lines  []adjustmentLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	var req receiveRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, ok := h.parseDate(w, req.Date)
	if !ok {
		return
	}
	qty, ok := h.parseAmount(w, "qty", req.Qty)
	if !ok {
		return
	}
	unitCost, ok := h.parseAmount(w, "unit_cost", req.UnitCost)
	if !ok {
		return
	}

	entry, err := h.service.Receive(r.Context(), ReceiveInput{
		CompanyID:   actor.CompanyID,
		Class:       ledger.Class(req.Class),
		ItemID:      req.ItemID,
		LocationID:  req.LocationID,
		Date:        date,
		Qty:         qty,
		UnitCost:    unitCost,
		SupplierRef: req.SupplierRef,
		CreatedBy:   actor.UserID,
	})
	h.respondEntry(w, entry, err)
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	var req issueRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, ok := h.parseDate(w, req.Date)
	if !ok {
		return
	}
	qty, ok := h.parseAmount(w, "qty", req.Qty)
	if !ok {
		return
	}

	entry, err := h.service.Issue(r.Context(), IssueInput{
		CompanyID:  actor.CompanyID,
		Class:      ledger.Class(req.Class),
		ItemID:     req.ItemID,
		LocationID: req.LocationID,
		Date:       date,
		Qty:        qty,
		Ref:        req.Ref,
		CreatedBy:  actor.UserID,
	})
	h.respondEntry(w, entry, err)
}

func (h *Handler) handleIssueForSale(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	var req saleIssueRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, ok := h.parseDate(w, req.Date)
	if !ok {
		return
	}
	qty, ok := h.parseAmount(w, "qty", req.Qty)
	if !ok {
		return
	}
	saleAmount, ok := h.parseAmount(w, "sale_amount", req.SaleAmount)
	if !ok {
		return
	}

	entry, err := h.service.IssueForSale(r.Context(), SaleIssueInput{
		CompanyID:  actor.CompanyID,
		ItemID:     req.ItemID,
		LocationID: req.LocationID,
		Date:       date,
		Qty:        qty,
		SaleAmount: saleAmount,
		Ref:        req.Ref,
		CreatedBy:  actor.UserID,
	})
	h.respondEntry(w, entry, err)
}

func (h *Handler) handleCreateGoodsReceipt(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	var req createGoodsReceiptRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, ok := h.parseDate(w, req.Date)
	if !ok {
		return
	}
	input := CreateGoodsReceiptInput{
		CompanyID:   actor.CompanyID,
		Class:       ledger.Class(req.Class),
		SupplierRef: req.SupplierRef,
		Date:        date,
		CreatedBy:   actor.UserID,
	}
	for _, line := range req.Lines {
		qty, ok := h.parseAmount(w, "qty", line.Qty)
		if !ok {
			return
		}
		unitCost, ok := h.parseAmount(w, "unit_cost", line.UnitCost)
		if !ok {
			return
		}
		input.Lines = append(input.Lines, GoodsReceiptLine{
			ItemID:     line.ItemID,
			LocationID: line.LocationID,
			Qty:        qty,
			UnitCost:   unitCost,
		})
	}

	doc, err := h.service.CreateGoodsReceipt(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":     doc.ID,
		"number": doc.Number,
		"status": doc.Status,
	})
}

func (h *Handler) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	var req createTransferRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, ok := h.parseDate(w, req.Date)
	if !ok {
		return
	}
	input := CreateTransferInput{
		CompanyID: actor.CompanyID,
		Date:      date,
		Note:      req.Note,
		CreatedBy: actor.UserID,
	}
	for _, line := range req.Lines {
		qty, ok := h.parseAmount(w, "qty", line.Qty)
		if !ok {
			return
		}
		input.Lines = append(input.Lines, StockTransferLine{
			ItemID:        line.ItemID,
			Qty:           qty,
			SrcClass:      ledger.Class(line.SrcClass),
			SrcLocationID: line.SrcLocationID,
			DstClass:      ledger.Class(line.DstClass),
			DstLocationID: line.DstLocationID,
		})
	}

	doc, err := h.service.CreateTransfer(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":     doc.ID,
		"number": doc.Number,
		"status": doc.Status,
	})
}

func (h *Handler) handleCreateAdjustment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	var req createAdjustmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, ok := h.parseDate(w, req.Date)
	if !ok {
		return
	}
	input := CreateAdjustmentInput{
		CompanyID: actor.CompanyID,
		Date:      date,
		Reason:    req.Reason,
		CreatedBy: actor.UserID,
	}
	for _, line := range req.Lines {
		delta, ok := h.parseSigned(w, "qty_delta", line.QtyDelta)
		if !ok {
			return
		}
		unitCost := decimal.Zero
		if line.UnitCost != "" {
			unitCost, ok = h.parseAmount(w, "unit_cost", line.UnitCost)
			if !ok {
				return
			}
		}
		input.Lines = append(input.Lines, StockAdjustmentLine{
			ItemID:     line.ItemID,
			LocationID: line.LocationID,
			Class:      ledger.Class(line.Class),
			QtyDelta:   delta,
			UnitCost:   unitCost,
		})
	}

	doc, err := h.service.CreateAdjustment(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":     doc.ID,
		"number": doc.Number,
		"status": doc.Status,
	})
}

func (h *Handler) handlePostGoodsReceipt(w http.ResponseWriter, r *http.Request) {
	h.handlePostDocument(w, r, h.service.PostGoodsReceipt)
}

func (h *Handler) handlePostTransfer(w http.ResponseWriter, r *http.Request) {
	h.handlePostDocument(w, r, h.service.PostTransfer)
}

func (h *Handler) handlePostAdjustment(w http.ResponseWriter, r *http.Request) {
	h.handlePostDocument(w, r, h.service.PostAdjustment)
}

func (h *Handler) handlePostDocument(w http.ResponseWriter, r *http.Request,
	post func(ctx context.Context, companyID int64, id uuid.UUID, actor shared.Actor) (PostResult, error)) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return
	}

	result, err := post(r.Context(), actor.CompanyID, id, actor)
	if err != nil {
		if IsPartialJournalFailure(err) {
			httpx.JSON(w, http.StatusBadGateway, map[string]any{
				"status":      "posted_with_remediation",
				"document_id": result.DocumentID,
				"number":      result.Number,
				"entries":     len(result.Entries),
				"detail":      err.Error(),
			})
			return
		}
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":      "posted",
		"document_id": result.DocumentID,
		"number":      result.Number,
		"entries":     len(result.Entries),
		"journal_nos": result.JournalNos,
	})
}

func (h *Handler) requireActor(w http.ResponseWriter, r *http.Request) (shared.Actor, bool) {
	actor := shared.ActorFromContext(r.Context())
	if actor.CompanyID == 0 || actor.UserID == 0 {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "caller identity missing")
		return shared.Actor{}, false
	}
	return actor, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) parseDate(w http.ResponseWriter, raw string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid date, want YYYY-MM-DD")
		return time.Time{}, false
	}
	return t, true
}

func (h *Handler) parseAmount(w http.ResponseWriter, field, raw string) (decimal.Decimal, bool) {
	d, ok := h.parseSigned(w, field, raw)
	if !ok {
		return decimal.Decimal{}, false
	}
	if d.IsNegative() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", field+" must not be negative")
		return decimal.Decimal{}, false
	}
	return d, true
}

func (h *Handler) parseSigned(w http.ResponseWriter, field, raw string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+field)
		return decimal.Decimal{}, false
	}
	return d, true
}

func (h *Handler) respondEntry(w http.ResponseWriter, entry ledger.Entry, err error) {
	if err != nil {
		if IsPartialJournalFailure(err) {
			httpx.JSON(w, http.StatusBadGateway, map[string]any{
				"status":   "posted_with_remediation",
				"entry_id": entry.ID,
				"detail":   err.Error(),
			})
			return
		}
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"entry_id":         entry.ID,
		"kind":             entry.Kind,
		"qty_in":           entry.QtyIn.String(),
		"qty_out":          entry.QtyOut.String(),
		"unit_cost":        entry.UnitCost.String(),
		"total_cost":       entry.TotalCost.String(),
		"running_qty":      entry.RunningQty.String(),
		"running_avg_cost": entry.RunningAvgCost.String(),
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var insufficient *ledger.InsufficientStockError
	var missing *mappings.MissingMappingError
	switch {
	case errors.As(err, &insufficient):
		httpx.JSON(w, http.StatusConflict, map[string]any{
			"title":     "Insufficient Stock",
			"status":    http.StatusConflict,
			"available": insufficient.Available.String(),
			"requested": insufficient.Requested.String(),
		})
	case errors.As(err, &missing):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Missing Account Mapping", err.Error())
	case errors.Is(err, ErrDocumentNotFound):
		httpx.Problem(w, http.StatusNotFound, "Document Not Found", err.Error())
	case errors.Is(err, ErrAlreadyPosted):
		httpx.Problem(w, http.StatusConflict, "Already Posted", err.Error())
	case errors.Is(err, periods.ErrPeriodClosed):
		httpx.Problem(w, http.StatusConflict, "Period Closed", err.Error())
	case errors.Is(err, periods.ErrPeriodNotFound):
		httpx.Problem(w, http.StatusNotFound, "Period Not Found", err.Error())
	case errors.Is(err, ErrEmptyDocument), errors.Is(err, ErrSameLocation),
		errors.Is(err, ErrZeroDelta), errors.Is(err, errMissingFields),
		errors.Is(err, accshared.ErrUnbalanced), errors.Is(err, accshared.ErrDateOutOfRange),
		errors.Is(err, ledger.ErrMissingKey), errors.Is(err, ledger.ErrInvalidClass),
		errors.Is(err, ledger.ErrInvalidKind), errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrInvalidUnitCost), errors.Is(err, ledger.ErrMissingDate):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("posting request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
