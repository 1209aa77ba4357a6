package posting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/ledger"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/shared"
)

// Repository persists business documents and remediation flags.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository is the document-posting transaction surface. It embeds the
// ledger transaction operations so a document's entries, balances and status
// flip commit as one unit.
type TxRepository interface {
	ledger.TxRepository
	NextDocumentNumber(ctx context.Context, companyID int64, fiscalYear int, kind string) (int64, error)
	GetGoodsReceiptForUpdate(ctx context.Context, companyID int64, id uuid.UUID) (GoodsReceipt, error)
	GetTransferForUpdate(ctx context.Context, companyID int64, id uuid.UUID) (StockTransfer, error)
	GetAdjustmentForUpdate(ctx context.Context, companyID int64, id uuid.UUID) (StockAdjustment, error)
	InsertGoodsReceipt(ctx context.Context, doc GoodsReceipt) error
	InsertTransfer(ctx context.Context, doc StockTransfer) error
	InsertAdjustment(ctx context.Context, doc StockAdjustment) error
	MarkPosted(ctx context.Context, table string, companyID int64, id uuid.UUID) error
}

type txRepo struct {
	ledger.TxRepository
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	wrapper := &txRepo{TxRepository: ledger.NewTxRepository(tx), tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Remediation is the loud flag left behind when a committed ledger write
// could not get its journal posted.
type Remediation struct {
	ID        uuid.UUID
	CompanyID int64
	RefType   string
	RefID     string
	Reason    string
	CreatedAt time.Time
}

// RecordRemediation persists the flag outside the posting transaction; the
// ledger effect it describes has already committed.
func (r *Repository) RecordRemediation(ctx context.Context, rem Remediation) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO journal_remediations (id, company_id, ref_type, ref_id, reason)
VALUES ($1,$2,$3,$4,$5)`, rem.ID, rem.CompanyID, rem.RefType, rem.RefID, rem.Reason)
	return err
}

func (r *txRepo) NextDocumentNumber(ctx context.Context, companyID int64, fiscalYear int, kind string) (int64, error) {
	return shared.NextSequence(ctx, r.tx, companyID, fiscalYear, kind)
}

func (r *txRepo) GetGoodsReceiptForUpdate(ctx context.Context, companyID int64, id uuid.UUID) (GoodsReceipt, error) {
	var doc GoodsReceipt
	err := r.tx.QueryRow(ctx, `SELECT id, company_id, number, class, supplier_ref, doc_date, status, created_by, created_at, posted_at
FROM goods_receipts WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id).
		Scan(&doc.ID, &doc.CompanyID, &doc.Number, &doc.Class, &doc.SupplierRef, &doc.Date, &doc.Status, &doc.CreatedBy, &doc.CreatedAt, &doc.PostedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GoodsReceipt{}, ErrDocumentNotFound
		}
		return GoodsReceipt{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id, item_id, location_id, qty, unit_cost
FROM goods_receipt_lines WHERE receipt_id=$1 ORDER BY id`, id)
	if err != nil {
		return GoodsReceipt{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line GoodsReceiptLine
		if err := rows.Scan(&line.ID, &line.ItemID, &line.LocationID, &line.Qty, &line.UnitCost); err != nil {
			return GoodsReceipt{}, err
		}
		doc.Lines = append(doc.Lines, line)
	}
	return doc, rows.Err()
}

func (r *txRepo) GetTransferForUpdate(ctx context.Context, companyID int64, id uuid.UUID) (StockTransfer, error) {
	var doc StockTransfer
	err := r.tx.QueryRow(ctx, `SELECT id, company_id, number, doc_date, note, status, created_by, created_at, posted_at
FROM stock_transfers WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id).
		Scan(&doc.ID, &doc.CompanyID, &doc.Number, &doc.Date, &doc.Note, &doc.Status, &doc.CreatedBy, &doc.CreatedAt, &doc.PostedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockTransfer{}, ErrDocumentNotFound
		}
		return StockTransfer{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id, item_id, qty, src_class, src_location_id, dst_class, dst_location_id
FROM stock_transfer_lines WHERE transfer_id=$1 ORDER BY id`, id)
	if err != nil {
		return StockTransfer{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line StockTransferLine
		if err := rows.Scan(&line.ID, &line.ItemID, &line.Qty, &line.SrcClass, &line.SrcLocationID, &line.DstClass, &line.DstLocationID); err != nil {
			return StockTransfer{}, err
		}
		doc.Lines = append(doc.Lines, line)
	}
	return doc, rows.Err()
}

func (r *txRepo) GetAdjustmentForUpdate(ctx context.Context, companyID int64, id uuid.UUID) (StockAdjustment, error) {
	var doc StockAdjustment
	err := r.tx.QueryRow(ctx, `SELECT id, company_id, number, doc_date, reason, status, created_by, created_at, posted_at
FROM stock_adjustments WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id).
		Scan(&doc.ID, &doc.CompanyID, &doc.Number, &doc.Date, &doc.Reason, &doc.Status, &doc.CreatedBy, &doc.CreatedAt, &doc.PostedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockAdjustment{}, ErrDocumentNotFound
		}
		return StockAdjustment{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id, item_id, location_id, class, qty_delta, unit_cost
FROM stock_adjustment_lines WHERE adjustment_id=$1 ORDER BY id`, id)
	if err != nil {
		return StockAdjustment{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line StockAdjustmentLine
		if err := rows.Scan(&line.ID, &line.ItemID, &line.LocationID, &line.Class, &line.QtyDelta, &line.UnitCost); err != nil {
			return StockAdjustment{}, err
		}
		doc.Lines = append(doc.Lines, line)
	}
	return doc, rows.Err()
}

func (r *txRepo) InsertGoodsReceipt(ctx context.Context, doc GoodsReceipt) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO goods_receipts (id, company_id, number, class, supplier_ref, doc_date, status, created_by)
VALUES ($1,$2,$3,$4,$5,$6,'DRAFT',$7)`,
		doc.ID, doc.CompanyID, doc.Number, doc.Class, doc.SupplierRef, doc.Date, doc.CreatedBy)
	if err != nil {
		return err
	}
	for _, line := range doc.Lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO goods_receipt_lines (receipt_id, item_id, location_id, qty, unit_cost)
VALUES ($1,$2,$3,$4,$5)`, doc.ID, line.ItemID, line.LocationID, line.Qty, line.UnitCost); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepo) InsertTransfer(ctx context.Context, doc StockTransfer) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_transfers (id, company_id, number, doc_date, note, status, created_by)
VALUES ($1,$2,$3,$4,$5,'DRAFT',$6)`,
		doc.ID, doc.CompanyID, doc.Number, doc.Date, doc.Note, doc.CreatedBy)
	if err != nil {
		return err
	}
	for _, line := range doc.Lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO stock_transfer_lines (transfer_id, item_id, qty, src_class, src_location_id, dst_class, dst_location_id)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, doc.ID, line.ItemID, line.Qty, line.SrcClass, line.SrcLocationID, line.DstClass, line.DstLocationID); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepo) InsertAdjustment(ctx context.Context, doc StockAdjustment) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_adjustments (id, company_id, number, doc_date, reason, status, created_by)
VALUES ($1,$2,$3,$4,$5,'DRAFT',$6)`,
		doc.ID, doc.CompanyID, doc.Number, doc.Date, doc.Reason, doc.CreatedBy)
	if err != nil {
		return err
	}
	for _, line := range doc.Lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO stock_adjustment_lines (adjustment_id, item_id, location_id, class, qty_delta, unit_cost)
VALUES ($1,$2,$3,$4,$5,$6)`, doc.ID, line.ItemID, line.LocationID, line.Class, line.QtyDelta, line.UnitCost); err != nil {
			return err
		}
	}
	return nil
}

// MarkPosted flips a draft document to POSTED. The WHERE status='DRAFT'
// clause keeps the transition one-way.
func (r *txRepo) MarkPosted(ctx context.Context, table string, companyID int64, id uuid.UUID) error {
	switch table {
	case "goods_receipts", "stock_transfers", "stock_adjustments":
	default:
		return fmt.Errorf("posting: unknown document table %q", table)
	}
	cmd, err := r.tx.Exec(ctx, `UPDATE `+table+` SET status='POSTED', posted_at=NOW()
WHERE company_id=$1 AND id=$2 AND status='DRAFT'`, companyID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlreadyPosted
	}
	return nil
}
