// Package audit exposes the audit trail written by the other modules:
// every posting, close and mapping change lands in audit_logs, and this
// package serves it back out for review.
package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Record is one audit trail row.
type Record struct {
	ID         int64
	ActorID    int64
	CompanyID  int64
	Action     string
	Entity     string
	EntityID   string
	Meta       map[string]any
	OccurredAt time.Time
}

// Filter narrows listings. Zero fields are ignored.
type Filter struct {
	CompanyID int64
	Entity    string
	EntityID  string
	Action    string
	Limit     int
}

// Repository reads audit_logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns audit records newest first.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Record, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, actor_id, company_id, action, entity, entity_id, meta, occurred_at
FROM audit_logs
WHERE company_id = $1
  AND ($2 = '' OR entity = $2)
  AND ($3 = '' OR entity_id = $3)
  AND ($4 = '' OR action = $4)
ORDER BY id DESC
LIMIT $5`, filter.CompanyID, filter.Entity, filter.EntityID, filter.Action, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.ActorID, &rec.CompanyID, &rec.Action,
			&rec.Entity, &rec.EntityID, &rec.Meta, &rec.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
