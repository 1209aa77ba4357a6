package posting

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/accounting/journals"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/accounting/mappings"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/ledger"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/observability"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/platform/db"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/shared"
)

// RepositoryPort abstracts document storage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	RecordRemediation(ctx context.Context, rem Remediation) error
}

// JournalPort posts double-entry journals.
type JournalPort interface {
	Post(ctx context.Context, input journals.PostingInput) (journals.Entry, error)
}

// ResolverPort resolves account mapping codes.
type ResolverPort interface {
	Resolve(ctx context.Context, companyID int64, codes ...mappings.Code) (map[mappings.Code]int64, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// RemediationNotifier hands a remediation flag to the background worker.
type RemediationNotifier interface {
	NotifyJournalRemediation(ctx context.Context, rem Remediation) error
}

// Service orchestrates document posting: stock movements through the ledger
// and their accounting journals. The ledger transaction is the primary
// effect; journal posting runs after commit and is never allowed to undo a
// committed stock movement.
type Service struct {
	repo     RepositoryPort
	journals JournalPort
	resolver ResolverPort
	audit    AuditPort
	notifier RemediationNotifier
	metrics  *observability.Metrics
	logger   *slog.Logger
	retry    db.RetryOptions
}

// NewService builds Service. notifier and metrics may be nil.
func NewService(repo RepositoryPort, journalSvc JournalPort, resolver ResolverPort, audit AuditPort, notifier RemediationNotifier, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		journals: journalSvc,
		resolver: resolver,
		audit:    audit,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
	}
}

// SetRetryOptions overrides the serialization retry policy. Zero values keep
// the defaults.
func (s *Service) SetRetryOptions(opts db.RetryOptions) {
	s.retry = opts
}

func inventoryCode(class ledger.Class) mappings.Code {
	switch class {
	case ledger.ClassRaw:
		return mappings.InventoryRawMaterials
	case ledger.ClassWIP:
		return mappings.InventoryWIP
	default:
		return mappings.InventoryFinishedGoods
	}
}

// Receive appends a receipt entry and posts Dr inventory / Cr GRN clearing.
func (s *Service) Receive(ctx context.Context, in ReceiveInput) (ledger.Entry, error) {
	if err := in.validate(); err != nil {
		return ledger.Entry{}, err
	}
	accounts, err := s.resolver.Resolve(ctx, in.CompanyID, inventoryCode(in.Class), mappings.GRNClearing)
	if err != nil {
		return ledger.Entry{}, err
	}

	refID := uuid.New().String()
	entry, err := s.appendOne(ctx, ledger.Draft{
		CompanyID:  in.CompanyID,
		Class:      in.Class,
		ItemID:     in.ItemID,
		LocationID: in.LocationID,
		TxDate:     in.Date,
		Kind:       ledger.KindReceipt,
		QtyIn:      in.Qty,
		UnitCost:   in.UnitCost,
		Ref:        ledger.Reference{Type: RefTypeReceipt, ID: refID, Number: in.SupplierRef},
		CreatedBy:  in.CreatedBy,
	})
	if err != nil {
		return ledger.Entry{}, err
	}
	s.metrics.RecordLedgerEntry(string(ledger.KindReceipt))

	b := newJournalBuilder()
	b.debit(accounts[inventoryCode(in.Class)], entry.TotalCost)
	b.credit(accounts[mappings.GRNClearing], entry.TotalCost)
	if _, err := s.postJournal(ctx, journalRequest{
		CompanyID: in.CompanyID,
		Date:      in.Date,
		RefType:   RefTypeReceipt,
		RefID:     refID,
		Memo:      "stock receipt",
		CreatedBy: in.CreatedBy,
		Builder:   b,
	}); err != nil {
		return entry, err
	}
	return entry, nil
}

// Issue appends an issue entry at the running average cost and posts
// Dr work-in-progress / Cr source inventory.
func (s *Service) Issue(ctx context.Context, in IssueInput) (ledger.Entry, error) {
	if err := in.validate(); err != nil {
		return ledger.Entry{}, err
	}
	accounts, err := s.resolver.Resolve(ctx, in.CompanyID, mappings.InventoryWIP, inventoryCode(in.Class))
	if err != nil {
		return ledger.Entry{}, err
	}

	refID := uuid.New().String()
	entry, err := s.appendOne(ctx, ledger.Draft{
		CompanyID:  in.CompanyID,
		Class:      in.Class,
		ItemID:     in.ItemID,
		LocationID: in.LocationID,
		TxDate:     in.Date,
		Kind:       ledger.KindIssue,
		QtyOut:     in.Qty,
		Ref:        ledger.Reference{Type: RefTypeIssue, ID: refID, Number: in.Ref},
		CreatedBy:  in.CreatedBy,
	})
	if err != nil {
		return ledger.Entry{}, err
	}
	s.metrics.RecordLedgerEntry(string(ledger.KindIssue))

	b := newJournalBuilder()
	b.debit(accounts[mappings.InventoryWIP], entry.TotalCost)
	b.credit(accounts[inventoryCode(in.Class)], entry.TotalCost)
	if _, err := s.postJournal(ctx, journalRequest{
		CompanyID: in.CompanyID,
		Date:      in.Date,
		RefType:   RefTypeIssue,
		RefID:     refID,
		Memo:      "issue to production",
		CreatedBy: in.CreatedBy,
		Builder:   b,
	}); err != nil {
		return entry, err
	}
	return entry, nil
}

// IssueForSale appends a finished-goods sales issue and posts two journals:
// cost of goods sold at cost and revenue at the sale amount.
func (s *Service) IssueForSale(ctx context.Context, in SaleIssueInput) (ledger.Entry, error) {
	if err := in.validate(); err != nil {
		return ledger.Entry{}, err
	}
	accounts, err := s.resolver.Resolve(ctx, in.CompanyID,
		mappings.CostOfGoodsSold, mappings.InventoryFinishedGoods,
		mappings.AccountsReceivable, mappings.SalesRevenue)
	if err != nil {
		return ledger.Entry{}, err
	}

	refID := uuid.New().String()
	entry, err := s.appendOne(ctx, ledger.Draft{
		CompanyID:  in.CompanyID,
		Class:      ledger.ClassFinished,
		ItemID:     in.ItemID,
		LocationID: in.LocationID,
		TxDate:     in.Date,
		Kind:       ledger.KindSalesOut,
		QtyOut:     in.Qty,
		Ref:        ledger.Reference{Type: RefTypeSale, ID: refID, Number: in.Ref},
		CreatedBy:  in.CreatedBy,
	})
	if err != nil {
		return ledger.Entry{}, err
	}
	s.metrics.RecordLedgerEntry(string(ledger.KindSalesOut))

	cogs := newJournalBuilder()
	cogs.debit(accounts[mappings.CostOfGoodsSold], entry.TotalCost)
	cogs.credit(accounts[mappings.InventoryFinishedGoods], entry.TotalCost)
	if _, err := s.postJournal(ctx, journalRequest{
		CompanyID: in.CompanyID,
		Date:      in.Date,
		RefType:   RefTypeSale,
		RefID:     refID,
		Memo:      "cost of goods sold",
		CreatedBy: in.CreatedBy,
		Builder:   cogs,
	}); err != nil {
		return entry, err
	}

	revenue := newJournalBuilder()
	revenue.debit(accounts[mappings.AccountsReceivable], in.SaleAmount)
	revenue.credit(accounts[mappings.SalesRevenue], in.SaleAmount)
	if _, err := s.postJournal(ctx, journalRequest{
		CompanyID: in.CompanyID,
		Date:      in.Date,
		RefType:   RefTypeSale,
		RefID:     refID,
		Memo:      "sales revenue",
		CreatedBy: in.CreatedBy,
		Builder:   revenue,
	}); err != nil {
		return entry, err
	}
	return entry, nil
}

// CreateGoodsReceipt stores a draft receipt with a sequential number.
func (s *Service) CreateGoodsReceipt(ctx context.Context, in CreateGoodsReceiptInput) (GoodsReceipt, error) {
	if err := in.validate(); err != nil {
		return GoodsReceipt{}, err
	}
	doc := GoodsReceipt{
		ID:          uuid.New(),
		CompanyID:   in.CompanyID,
		Class:       in.Class,
		SupplierRef: in.SupplierRef,
		Date:        in.Date,
		Status:      StatusDraft,
		CreatedBy:   in.CreatedBy,
		Lines:       in.Lines,
	}
	err := db.WithRetry(ctx, s.retry, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			number, err := tx.NextDocumentNumber(ctx, in.CompanyID, in.Date.Year(), shared.SequenceKindGoodsReceipt)
			if err != nil {
				return err
			}
			doc.Number = FormatDocumentNo(shared.SequenceKindGoodsReceipt, in.Date.Year(), number)
			return tx.InsertGoodsReceipt(ctx, doc)
		})
	})
	if err != nil {
		return GoodsReceipt{}, err
	}
	s.recordAudit(ctx, in.CreatedBy, in.CompanyID, "grn.create", "goods_receipt", doc.ID.String(), map[string]any{"number": doc.Number})
	return doc, nil
}

// CreateTransfer stores a draft transfer with a sequential number.
func (s *Service) CreateTransfer(ctx context.Context, in CreateTransferInput) (StockTransfer, error) {
	if err := in.validate(); err != nil {
		return StockTransfer{}, err
	}
	doc := StockTransfer{
		ID:        uuid.New(),
		CompanyID: in.CompanyID,
		Date:      in.Date,
		Note:      in.Note,
		Status:    StatusDraft,
		CreatedBy: in.CreatedBy,
		Lines:     in.Lines,
	}
	err := db.WithRetry(ctx, s.retry, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			number, err := tx.NextDocumentNumber(ctx, in.CompanyID, in.Date.Year(), shared.SequenceKindTransfer)
			if err != nil {
				return err
			}
			doc.Number = FormatDocumentNo(shared.SequenceKindTransfer, in.Date.Year(), number)
			return tx.InsertTransfer(ctx, doc)
		})
	})
	if err != nil {
		return StockTransfer{}, err
	}
	s.recordAudit(ctx, in.CreatedBy, in.CompanyID, "transfer.create", "stock_transfer", doc.ID.String(), map[string]any{"number": doc.Number})
	return doc, nil
}

// CreateAdjustment stores a draft adjustment with a sequential number.
func (s *Service) CreateAdjustment(ctx context.Context, in CreateAdjustmentInput) (StockAdjustment, error) {
	if err := in.validate(); err != nil {
		return StockAdjustment{}, err
	}
	doc := StockAdjustment{
		ID:        uuid.New(),
		CompanyID: in.CompanyID,
		Date:      in.Date,
		Reason:    in.Reason,
		Status:    StatusDraft,
		CreatedBy: in.CreatedBy,
		Lines:     in.Lines,
	}
	err := db.WithRetry(ctx, s.retry, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			number, err := tx.NextDocumentNumber(ctx, in.CompanyID, in.Date.Year(), shared.SequenceKindAdjustment)
			if err != nil {
				return err
			}
			doc.Number = FormatDocumentNo(shared.SequenceKindAdjustment, in.Date.Year(), number)
			return tx.InsertAdjustment(ctx, doc)
		})
	})
	if err != nil {
		return StockAdjustment{}, err
	}
	s.recordAudit(ctx, in.CreatedBy, in.CompanyID, "adjustment.create", "stock_adjustment", doc.ID.String(), map[string]any{"number": doc.Number})
	return doc, nil
}

// PostGoodsReceipt posts a draft receipt: one receipt entry per line, the
// status flip and all balance updates in one transaction, then a single
// aggregated journal.
func (s *Service) PostGoodsReceipt(ctx context.Context, companyID int64, id uuid.UUID, actor shared.Actor) (PostResult, error) {
	var (
		result  PostResult
		docDate time.Time
		builder *journalBuilder
	)
	err := db.WithRetry(ctx, s.retry, func(ctx context.Context) error {
		result = PostResult{}
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			doc, err := tx.GetGoodsReceiptForUpdate(ctx, companyID, id)
			if err != nil {
				return err
			}
			if doc.Status != StatusDraft {
				return ErrAlreadyPosted
			}
			if len(doc.Lines) == 0 {
				return ErrEmptyDocument
			}
			accounts, err := s.resolver.Resolve(ctx, companyID, inventoryCode(doc.Class), mappings.GRNClearing)
			if err != nil {
				return err
			}

			builder = newJournalBuilder()
			for _, line := range doc.Lines {
				entry, err := ledger.AppendTx(ctx, tx, ledger.Draft{
					CompanyID:  companyID,
					Class:      doc.Class,
					ItemID:     line.ItemID,
					LocationID: line.LocationID,
					TxDate:     doc.Date,
					Kind:       ledger.KindReceipt,
					QtyIn:      line.Qty,
					UnitCost:   line.UnitCost,
					Ref:        ledger.Reference{Type: RefTypeGoodsReceipt, ID: doc.ID.String(), Number: doc.Number},
					CreatedBy:  actor.UserID,
				})
				if err != nil {
					return err
				}
				result.Entries = append(result.Entries, entry)
				builder.debit(accounts[inventoryCode(doc.Class)], entry.TotalCost)
				builder.credit(accounts[mappings.GRNClearing], entry.TotalCost)
			}
			if err := tx.MarkPosted(ctx, "goods_receipts", companyID, doc.ID); err != nil {
				return err
			}
			result.DocumentID = doc.ID
			result.Number = doc.Number
			docDate = doc.Date
			return nil
		})
	})
	if err != nil {
		return PostResult{}, err
	}
	s.finishDocument(ctx, actor, "grn", "goods_receipt", result)

	journalNo, err := s.postJournal(ctx, journalRequest{
		CompanyID: companyID,
		Date:      docDate,
		RefType:   RefTypeGoodsReceipt,
		RefID:     id.String(),
		RefNumber: result.Number,
		Memo:      "goods receipt " + result.Number,
		CreatedBy: actor.UserID,
		Builder:   builder,
	})
	if err != nil {
		return result, err
	}
	if journalNo != "" {
		result.JournalNos = append(result.JournalNos, journalNo)
	}
	return result, nil
}

// PostTransfer posts a draft transfer: a TRANSFER_OUT and a TRANSFER_IN per
// line, all-or-nothing. The inbound entry carries the outbound entry's unit
// cost, so value moves with the stock. The journal only moves value between
// inventory accounts that actually differ.
func (s *Service) PostTransfer(ctx context.Context, companyID int64, id uuid.UUID, actor shared.Actor) (PostResult, error) {
	var (
		result  PostResult
		docDate time.Time
		builder *journalBuilder
	)
	err := db.WithRetry(ctx, s.retry, func(ctx context.Context) error {
		result = PostResult{}
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			doc, err := tx.GetTransferForUpdate(ctx, companyID, id)
			if err != nil {
				return err
			}
			if doc.Status != StatusDraft {
				return ErrAlreadyPosted
			}
			if len(doc.Lines) == 0 {
				return ErrEmptyDocument
			}

			codes := make([]mappings.Code, 0, 3)
			seen := make(map[mappings.Code]bool)
			for _, line := range doc.Lines {
				for _, code := range []mappings.Code{inventoryCode(line.SrcClass), inventoryCode(line.DstClass)} {
					if !seen[code] {
						seen[code] = true
						codes = append(codes, code)
					}
				}
			}
			accounts, err := s.resolver.Resolve(ctx, companyID, codes...)
			if err != nil {
				return err
			}

			builder = newJournalBuilder()
			ref := ledger.Reference{Type: RefTypeTransfer, ID: doc.ID.String(), Number: doc.Number}
			for _, line := range doc.Lines {
				out, err := ledger.AppendTx(ctx, tx, ledger.Draft{
					CompanyID:  companyID,
					Class:      line.SrcClass,
					ItemID:     line.ItemID,
					LocationID: line.SrcLocationID,
					TxDate:     doc.Date,
					Kind:       ledger.KindTransferOut,
					QtyOut:     line.Qty,
					Ref:        ref,
					CreatedBy:  actor.UserID,
				})
				if err != nil {
					return err
				}
				in, err := ledger.AppendTx(ctx, tx, ledger.Draft{
					CompanyID:  companyID,
					Class:      line.DstClass,
					ItemID:     line.ItemID,
					LocationID: line.DstLocationID,
					TxDate:     doc.Date,
					Kind:       ledger.KindTransferIn,
					QtyIn:      line.Qty,
					UnitCost:   out.UnitCost,
					Ref:        ref,
					CreatedBy:  actor.UserID,
				})
				if err != nil {
					return err
				}
				result.Entries = append(result.Entries, out, in)

				src := accounts[inventoryCode(line.SrcClass)]
				dst := accounts[inventoryCode(line.DstClass)]
				if src != dst {
					builder.debit(dst, out.TotalCost)
					builder.credit(src, out.TotalCost)
				}
			}
			if err := tx.MarkPosted(ctx, "stock_transfers", companyID, doc.ID); err != nil {
				return err
			}
			result.DocumentID = doc.ID
			result.Number = doc.Number
			docDate = doc.Date
			return nil
		})
	})
	if err != nil {
		return PostResult{}, err
	}
	s.finishDocument(ctx, actor, "transfer", "stock_transfer", result)

	journalNo, err := s.postJournal(ctx, journalRequest{
		CompanyID: companyID,
		Date:      docDate,
		RefType:   RefTypeTransfer,
		RefID:     id.String(),
		RefNumber: result.Number,
		Memo:      "stock transfer " + result.Number,
		CreatedBy: actor.UserID,
		Builder:   builder,
	})
	if err != nil {
		return result, err
	}
	if journalNo != "" {
		result.JournalNos = append(result.JournalNos, journalNo)
	}
	return result, nil
}

// PostAdjustment posts a draft adjustment: ADJUST_IN or ADJUST_OUT per line,
// journaled against the adjustment gain and loss accounts.
func (s *Service) PostAdjustment(ctx context.Context, companyID int64, id uuid.UUID, actor shared.Actor) (PostResult, error) {
	var (
		result  PostResult
		docDate time.Time
		builder *journalBuilder
	)
	err := db.WithRetry(ctx, s.retry, func(ctx context.Context) error {
		result = PostResult{}
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			doc, err := tx.GetAdjustmentForUpdate(ctx, companyID, id)
			if err != nil {
				return err
			}
			if doc.Status != StatusDraft {
				return ErrAlreadyPosted
			}
			if len(doc.Lines) == 0 {
				return ErrEmptyDocument
			}

			codes := []mappings.Code{mappings.AdjustmentGain, mappings.AdjustmentLoss}
			seen := make(map[mappings.Code]bool)
			for _, line := range doc.Lines {
				code := inventoryCode(line.Class)
				if !seen[code] {
					seen[code] = true
					codes = append(codes, code)
				}
			}
			accounts, err := s.resolver.Resolve(ctx, companyID, codes...)
			if err != nil {
				return err
			}

			builder = newJournalBuilder()
			ref := ledger.Reference{Type: RefTypeAdjustment, ID: doc.ID.String(), Number: doc.Number}
			for _, line := range doc.Lines {
				draft := ledger.Draft{
					CompanyID:  companyID,
					Class:      line.Class,
					ItemID:     line.ItemID,
					LocationID: line.LocationID,
					TxDate:     doc.Date,
					Ref:        ref,
					CreatedBy:  actor.UserID,
				}
				if line.QtyDelta.IsPositive() {
					draft.Kind = ledger.KindAdjustIn
					draft.QtyIn = line.QtyDelta
					draft.UnitCost = line.UnitCost
				} else {
					draft.Kind = ledger.KindAdjustOut
					draft.QtyOut = line.QtyDelta.Neg()
				}
				entry, err := ledger.AppendTx(ctx, tx, draft)
				if err != nil {
					return err
				}
				result.Entries = append(result.Entries, entry)

				inv := accounts[inventoryCode(line.Class)]
				if line.QtyDelta.IsPositive() {
					builder.debit(inv, entry.TotalCost)
					builder.credit(accounts[mappings.AdjustmentGain], entry.TotalCost)
				} else {
					builder.debit(accounts[mappings.AdjustmentLoss], entry.TotalCost)
					builder.credit(inv, entry.TotalCost)
				}
			}
			if err := tx.MarkPosted(ctx, "stock_adjustments", companyID, doc.ID); err != nil {
				return err
			}
			result.DocumentID = doc.ID
			result.Number = doc.Number
			docDate = doc.Date
			return nil
		})
	})
	if err != nil {
		return PostResult{}, err
	}
	s.finishDocument(ctx, actor, "adjustment", "stock_adjustment", result)

	journalNo, err := s.postJournal(ctx, journalRequest{
		CompanyID: companyID,
		Date:      docDate,
		RefType:   RefTypeAdjustment,
		RefID:     id.String(),
		RefNumber: result.Number,
		Memo:      "stock adjustment " + result.Number,
		CreatedBy: actor.UserID,
		Builder:   builder,
	})
	if err != nil {
		return result, err
	}
	if journalNo != "" {
		result.JournalNos = append(result.JournalNos, journalNo)
	}
	return result, nil
}

// appendOne commits a single entry in its own retryable transaction.
func (s *Service) appendOne(ctx context.Context, draft ledger.Draft) (ledger.Entry, error) {
	var entry ledger.Entry
	err := db.WithRetry(ctx, s.retry, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			appended, err := ledger.AppendTx(ctx, tx, draft)
			if err != nil {
				return err
			}
			entry = appended
			return nil
		})
	})
	if err != nil {
		return ledger.Entry{}, err
	}
	return entry, nil
}

func (s *Service) finishDocument(ctx context.Context, actor shared.Actor, docType, entity string, result PostResult) {
	for _, entry := range result.Entries {
		s.metrics.RecordLedgerEntry(string(entry.Kind))
	}
	s.metrics.RecordDocumentPosted(docType)
	s.recordAudit(ctx, actor.UserID, actor.CompanyID, docType+".post", entity, result.DocumentID.String(), map[string]any{
		"number":  result.Number,
		"entries": len(result.Entries),
	})
}

func (s *Service) recordAudit(ctx context.Context, actorID, companyID int64, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:   actorID,
		CompanyID: companyID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Meta:      meta,
	})
}

type journalRequest struct {
	CompanyID int64
	Date      time.Time
	RefType   string
	RefID     string
	RefNumber string
	Memo      string
	CreatedBy int64
	Builder   *journalBuilder
}

// postJournal posts the aggregated journal for an already-committed ledger
// effect. A failure here leaves a remediation flag and surfaces as
// PartialJournalFailure; the stock movement stands.
func (s *Service) postJournal(ctx context.Context, req journalRequest) (string, error) {
	lines := req.Builder.lines()
	if len(lines) == 0 {
		return "", nil
	}
	posted, err := s.journals.Post(ctx, journals.PostingInput{
		CompanyID: req.CompanyID,
		Date:      req.Date,
		RefType:   req.RefType,
		RefID:     req.RefID,
		RefNumber: req.RefNumber,
		Memo:      req.Memo,
		CreatedBy: req.CreatedBy,
		Lines:     lines,
	})
	if err != nil {
		s.metrics.RecordJournalPosting("failed")
		return "", s.remediate(ctx, req.CompanyID, req.RefType, req.RefID, err)
	}
	s.metrics.RecordJournalPosting("posted")
	return posted.JournalNo, nil
}

// remediate flags a committed ledger write whose journal failed. Runs on a
// cancellation-free context so caller timeouts cannot lose the flag.
func (s *Service) remediate(ctx context.Context, companyID int64, refType, refID string, cause error) error {
	ctx = context.WithoutCancel(ctx)
	rem := Remediation{
		ID:        uuid.New(),
		CompanyID: companyID,
		RefType:   refType,
		RefID:     refID,
		Reason:    cause.Error(),
	}
	if err := s.repo.RecordRemediation(ctx, rem); err != nil && s.logger != nil {
		s.logger.Error("record journal remediation",
			slog.String("ref_type", refType), slog.String("ref_id", refID), slog.Any("error", err))
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyJournalRemediation(ctx, rem); err != nil && s.logger != nil {
			s.logger.Error("notify journal remediation",
				slog.String("ref_type", refType), slog.String("ref_id", refID), slog.Any("error", err))
		}
	}
	s.metrics.RecordRemediation()
	if s.logger != nil {
		s.logger.Error("journal posting failed after ledger commit",
			slog.String("ref_type", refType), slog.String("ref_id", refID), slog.Any("error", cause))
	}
	return &PartialJournalFailure{RefType: refType, RefID: refID, Err: cause}
}

// journalBuilder accumulates debit and credit amounts per account, merging
// repeated postings to the same account and dropping zero amounts.
type journalBuilder struct {
	debits  map[int64]decimal.Decimal
	credits map[int64]decimal.Decimal
	order   []int64
}

func newJournalBuilder() *journalBuilder {
	return &journalBuilder{
		debits:  make(map[int64]decimal.Decimal),
		credits: make(map[int64]decimal.Decimal),
	}
}

func (b *journalBuilder) touch(account int64) {
	if _, dOK := b.debits[account]; dOK {
		return
	}
	if _, cOK := b.credits[account]; cOK {
		return
	}
	b.order = append(b.order, account)
}

func (b *journalBuilder) debit(account int64, amount decimal.Decimal) {
	if amount.IsZero() {
		return
	}
	b.touch(account)
	b.debits[account] = b.debits[account].Add(amount)
}

func (b *journalBuilder) credit(account int64, amount decimal.Decimal) {
	if amount.IsZero() {
		return
	}
	b.touch(account)
	b.credits[account] = b.credits[account].Add(amount)
}

// lines renders the accumulated amounts in first-seen account order. An
// account with both sides nets to the larger side.
func (b *journalBuilder) lines() []journals.LineInput {
	if b == nil {
		return nil
	}
	var out []journals.LineInput
	for _, account := range b.order {
		net := b.debits[account].Sub(b.credits[account])
		switch {
		case net.IsPositive():
			out = append(out, journals.LineInput{AccountID: account, Debit: net})
		case net.IsNegative():
			out = append(out, journals.LineInput{AccountID: account, Credit: net.Neg()})
		}
	}
	if len(out) < 2 {
		return nil
	}
	return out
}
