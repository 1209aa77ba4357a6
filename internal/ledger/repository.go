package ledger

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/accounting/periods"
)

// ErrBalanceNotFound indicates the key has no balance row yet.
var ErrBalanceNotFound = errors.New("ledger: balance not found")

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations available inside one append
// transaction. Entry inserts are reachable only through here, so the balance
// and period checks cannot be bypassed.
type TxRepository interface {
	GetPeriodForPosting(ctx context.Context, companyID int64, date time.Time) (periods.Period, error)
	GetBalanceForUpdate(ctx context.Context, companyID int64, class Class, itemID, locationID int64) (Balance, error)
	UpsertBalance(ctx context.Context, balance Balance) error
	InsertEntry(ctx context.Context, entry Entry) (int64, error)
}

type txRepo struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open transaction so other modules (document
// posting) can append entries inside their own atomic unit.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepo{tx: tx}
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

	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetBalance returns the maintained balance for a key, or a zero balance
// when the key has no entries yet.
func (r *Repository) GetBalance(ctx context.Context, companyID int64, class Class, itemID, locationID int64) (Balance, error) {
	balance := Balance{CompanyID: companyID, Class: class, ItemID: itemID, LocationID: locationID}
	err := r.pool.QueryRow(ctx, `SELECT qty, avg_cost, updated_at
FROM stock_balances WHERE company_id=$1 AND class=$2 AND item_id=$3 AND location_id=$4`,
		companyID, class, itemID, locationID).
		Scan(&balance.Qty, &balance.AvgCost, &balance.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return balance, nil
		}
		return Balance{}, err
	}
	return balance, nil
}

// History lists entries newest-first. Pure query, restartable.
func (r *Repository) History(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `SELECT id, company_id, class, item_id, location_id, period_id, tx_date, kind,
qty_in, qty_out, unit_cost, total_cost, running_qty, running_avg_cost,
ref_type, ref_id, ref_number, created_by, created_at
FROM ledger_entries WHERE company_id=$1`
	args := []any{filter.CompanyID}
	if filter.Class != "" {
		args = append(args, filter.Class)
		query += ` AND class=$` + itoa(len(args))
	}
	if filter.ItemID != 0 {
		args = append(args, filter.ItemID)
		query += ` AND item_id=$` + itoa(len(args))
	}
	if filter.LocationID != 0 {
		args = append(args, filter.LocationID)
		query += ` AND location_id=$` + itoa(len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += ` AND tx_date >= $` + itoa(len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += ` AND tx_date <= $` + itoa(len(args))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	args = append(args, limit)
	query += ` ORDER BY id DESC LIMIT $` + itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.Class, &e.ItemID, &e.LocationID, &e.PeriodID,
			&e.TxDate, &e.Kind, &e.QtyIn, &e.QtyOut, &e.UnitCost, &e.TotalCost,
			&e.RunningQty, &e.RunningAvgCost, &e.Ref.Type, &e.Ref.ID, &e.Ref.Number,
			&e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetPeriodForPosting fetches the period containing date with FOR SHARE, so
// a concurrent close of the same period blocks until this transaction ends.
func (r *txRepo) GetPeriodForPosting(ctx context.Context, companyID int64, date time.Time) (periods.Period, error) {
	var p periods.Period
	err := r.tx.QueryRow(ctx, `SELECT id, company_id, code, start_date, end_date, status, closed_at, closed_by
FROM accounting_periods WHERE company_id=$1 AND $2 BETWEEN start_date AND end_date
ORDER BY start_date LIMIT 1 FOR SHARE`, companyID, date).
		Scan(&p.ID, &p.CompanyID, &p.Code, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.ClosedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return periods.Period{}, periods.ErrPeriodNotFound
		}
		return periods.Period{}, err
	}
	return p, nil
}

func (r *txRepo) GetBalanceForUpdate(ctx context.Context, companyID int64, class Class, itemID, locationID int64) (Balance, error) {
	balance := Balance{CompanyID: companyID, Class: class, ItemID: itemID, LocationID: locationID}
	err := r.tx.QueryRow(ctx, `SELECT qty, avg_cost, updated_at
FROM stock_balances WHERE company_id=$1 AND class=$2 AND item_id=$3 AND location_id=$4 FOR UPDATE`,
		companyID, class, itemID, locationID).
		Scan(&balance.Qty, &balance.AvgCost, &balance.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return balance, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	return balance, nil
}

func (r *txRepo) UpsertBalance(ctx context.Context, balance Balance) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_balances (company_id, class, item_id, location_id, qty, avg_cost, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW())
ON CONFLICT (company_id, class, item_id, location_id)
DO UPDATE SET qty=EXCLUDED.qty, avg_cost=EXCLUDED.avg_cost, updated_at=NOW()`,
		balance.CompanyID, balance.Class, balance.ItemID, balance.LocationID, balance.Qty, balance.AvgCost)
	return err
}

func (r *txRepo) InsertEntry(ctx context.Context, entry Entry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO ledger_entries
(company_id, class, item_id, location_id, period_id, tx_date, kind,
 qty_in, qty_out, unit_cost, total_cost, running_qty, running_avg_cost,
 ref_type, ref_id, ref_number, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
RETURNING id`,
		entry.CompanyID, entry.Class, entry.ItemID, entry.LocationID, entry.PeriodID,
		entry.TxDate, entry.Kind, entry.QtyIn, entry.QtyOut, entry.UnitCost, entry.TotalCost,
		entry.RunningQty, entry.RunningAvgCost, entry.Ref.Type, entry.Ref.ID, entry.Ref.Number,
		entry.CreatedBy).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
