package journals

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/accounting/periods"
	accshared "github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/accounting/shared"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/shared"
)

// Repository encapsulates DB operations for journals.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes methods available within a posting transaction.
// Number allocation and the header/line writes share the transaction, so a
// failed attempt can waste a number but never exposes one as posted.
type TxRepository interface {
	GetPeriodForPosting(ctx context.Context, companyID int64, date time.Time) (periods.Period, error)
	NextJournalNumber(ctx context.Context, companyID int64, fiscalYear int) (int64, error)
	InsertEntry(ctx context.Context, entry Entry) (Entry, error)
	InsertLines(ctx context.Context, journalID int64, lines []LineInput) ([]Line, error)
}

// WithTx executes the callback inside a read-committed transaction. The
// number allocation relies on the counter row lock: at ReadCommitted a
// concurrent allocator waits for the lock instead of failing with a
// serialization conflict, so two posts for the same (company, year) both
// succeed with consecutive numbers.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const entryColumns = `id, company_id, fiscal_year, number, journal_no, period_id, entry_date,
ref_type, ref_id, ref_number, memo, created_by, posted_at`

// Get returns one journal with its lines.
func (r *Repository) Get(ctx context.Context, companyID, journalID int64) (Entry, error) {
	var e Entry
	err := r.pool.QueryRow(ctx, `SELECT `+entryColumns+`
FROM journal_entries WHERE company_id=$1 AND id=$2`, companyID, journalID).
		Scan(&e.ID, &e.CompanyID, &e.FiscalYear, &e.Number, &e.JournalNo, &e.PeriodID, &e.Date,
			&e.RefType, &e.RefID, &e.RefNumber, &e.Memo, &e.CreatedBy, &e.PostedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, accshared.ErrJournalNotFound
		}
		return Entry{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, journal_id, account_id, debit, credit, memo
FROM journal_lines WHERE journal_id=$1 ORDER BY id`, journalID)
	if err != nil {
		return Entry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.JournalID, &line.AccountID, &line.Debit, &line.Credit, &line.Memo); err != nil {
			return Entry{}, err
		}
		e.Lines = append(e.Lines, line)
	}
	return e, rows.Err()
}

// List returns journal headers for a company, newest first.
func (r *Repository) List(ctx context.Context, companyID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+`
FROM journal_entries WHERE company_id=$1 ORDER BY id DESC LIMIT $2`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.FiscalYear, &e.Number, &e.JournalNo, &e.PeriodID, &e.Date,
			&e.RefType, &e.RefID, &e.RefNumber, &e.Memo, &e.CreatedBy, &e.PostedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

// GetPeriodForPosting locks the covering period FOR SHARE inside this
// transaction, the same gate the ledger append takes.
func (r *txRepository) GetPeriodForPosting(ctx context.Context, companyID int64, date time.Time) (periods.Period, error) {
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

func (r *txRepository) NextJournalNumber(ctx context.Context, companyID int64, fiscalYear int) (int64, error) {
	return shared.NextSequence(ctx, r.tx, companyID, fiscalYear, shared.SequenceKindJournal)
}

func (r *txRepository) InsertEntry(ctx context.Context, entry Entry) (Entry, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entries
(company_id, fiscal_year, number, journal_no, period_id, entry_date, ref_type, ref_id, ref_number, memo, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
RETURNING id, posted_at`,
		entry.CompanyID, entry.FiscalYear, entry.Number, entry.JournalNo, entry.PeriodID,
		entry.Date, entry.RefType, entry.RefID, entry.RefNumber, entry.Memo, entry.CreatedBy).
		Scan(&entry.ID, &entry.PostedAt)
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertLines(ctx context.Context, journalID int64, lines []LineInput) ([]Line, error) {
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		var id int64
		err := r.tx.QueryRow(ctx, `INSERT INTO journal_lines (journal_id, account_id, debit, credit, memo)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
			journalID, line.AccountID, line.Debit, line.Credit, line.Memo).Scan(&id)
		if err != nil {
			return nil, err
		}
		out = append(out, Line{
			ID:        id,
			JournalID: journalID,
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
			Memo:      line.Memo,
		})
	}
	return out, nil
}
