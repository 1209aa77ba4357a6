package shared

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// Sequence kinds allocated from sequence_counters.
const (
	SequenceKindJournal      = "JV"
	SequenceKindGoodsReceipt = "GRN"
	SequenceKindTransfer     = "TRF"
	SequenceKindAdjustment   = "ADJ"
)

// NextSequence returns the next value of the (company, fiscal year, kind)
// counter, creating it at 1 on first use. The upsert takes a row lock, so
// concurrent allocations for the same counter are linearized. Callers must
// run this inside the same transaction as the write that consumes the
// number: a rolled-back posting may waste a value but never publishes it.
func NextSequence(ctx context.Context, tx pgx.Tx, companyID int64, fiscalYear int, kind string) (int64, error) {
	if kind == "" {
		return 0, errors.New("shared: sequence kind required")
	}
	var value int64
	err := tx.QueryRow(ctx, `INSERT INTO sequence_counters (company_id, fiscal_year, kind, value)
VALUES ($1, $2, $3, 1)
ON CONFLICT (company_id, fiscal_year, kind)
DO UPDATE SET value = sequence_counters.value + 1
RETURNING value`, companyID, fiscalYear, kind).Scan(&value)
	if err != nil {
		return 0, err
	}
	return value, nil
}
