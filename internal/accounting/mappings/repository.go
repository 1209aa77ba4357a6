package mappings

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads account mappings from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetMany returns the configured mappings among codes. Absent codes are
// simply absent from the result; the resolver decides how loud to be.
func (r *Repository) GetMany(ctx context.Context, companyID int64, codes []Code) (map[Code]int64, error) {
	if len(codes) == 0 {
		return map[Code]int64{}, nil
	}
	names := make([]string, len(codes))
	for i, c := range codes {
		names[i] = string(c)
	}
	rows, err := r.pool.Query(ctx, `SELECT code, account_id FROM account_mappings
WHERE company_id=$1 AND code = ANY($2)`, companyID, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[Code]int64, len(codes))
	for rows.Next() {
		var code string
		var accountID int64
		if err := rows.Scan(&code, &accountID); err != nil {
			return nil, err
		}
		out[Code(code)] = accountID
	}
	return out, rows.Err()
}

// List returns every configured mapping for the company.
func (r *Repository) List(ctx context.Context, companyID int64) ([]AccountMapping, error) {
	rows, err := r.pool.Query(ctx, `SELECT company_id, code, account_id, updated_at
FROM account_mappings WHERE company_id=$1 ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AccountMapping
	for rows.Next() {
		var m AccountMapping
		var code string
		if err := rows.Scan(&m.CompanyID, &code, &m.AccountID, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.Code = Code(code)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Upsert stores or replaces a mapping.
func (r *Repository) Upsert(ctx context.Context, m AccountMapping) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO account_mappings (company_id, code, account_id, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (company_id, code)
DO UPDATE SET account_id = EXCLUDED.account_id, updated_at = NOW()`,
		m.CompanyID, string(m.Code), m.AccountID)
	return err
}
