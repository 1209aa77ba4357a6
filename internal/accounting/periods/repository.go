package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists accounting periods.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const periodColumns = `id, company_id, code, start_date, end_date, status, closed_at, closed_by`

// FindByDate returns the period covering date for the company regardless of
// status. Status checks belong to the service.
func (r *Repository) FindByDate(ctx context.Context, companyID int64, date time.Time) (Period, error) {
	var p Period
	err := r.pool.QueryRow(ctx, `SELECT `+periodColumns+`
FROM accounting_periods WHERE company_id=$1 AND $2 BETWEEN start_date AND end_date
ORDER BY start_date LIMIT 1`, companyID, date).
		Scan(&p.ID, &p.CompanyID, &p.Code, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.ClosedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrPeriodNotFound
		}
		return Period{}, err
	}
	return p, nil
}

// Insert creates a new open period.
func (r *Repository) Insert(ctx context.Context, p Period) (Period, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO accounting_periods (company_id, code, start_date, end_date, status)
VALUES ($1,$2,$3,$4,'OPEN') RETURNING id`, p.CompanyID, p.Code, p.StartDate, p.EndDate).Scan(&p.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
			return Period{}, ErrPeriodOverlap
		}
		return Period{}, err
	}
	p.Status = StatusOpen
	return p, nil
}

// Close flips an open period to CLOSED. The WHERE status='OPEN' clause makes
// the transition one-way even under concurrent close attempts.
func (r *Repository) Close(ctx context.Context, companyID, periodID, actorID int64) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE accounting_periods
SET status='CLOSED', closed_at=NOW(), closed_by=$3
WHERE company_id=$1 AND id=$2 AND status='OPEN'`, companyID, periodID, actorID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var status Status
		err := r.pool.QueryRow(ctx, `SELECT status FROM accounting_periods WHERE company_id=$1 AND id=$2`,
			companyID, periodID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPeriodNotFound
		}
		if err != nil {
			return err
		}
		return ErrPeriodAlreadyClosed
	}
	return nil
}

// List returns the company's periods, most recent first.
func (r *Repository) List(ctx context.Context, companyID int64) ([]Period, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+periodColumns+`
FROM accounting_periods WHERE company_id=$1 ORDER BY start_date DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		var p Period
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Code, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.ClosedBy); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
