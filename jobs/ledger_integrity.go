package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/observability"
)

// LedgerIntegrityPayload carries scheduling metadata.
type LedgerIntegrityPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLedgerIntegrityTask constructs an Asynq task for the integrity scan.
func NewLedgerIntegrityTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LedgerIntegrityPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, body, asynq.Queue(QueueDefault)), nil
}

// IntegrityScanner cross-checks the ledger and journal tables. It is a
// tripwire: findings are logged and counted, never auto-corrected.
type IntegrityScanner struct {
	pool    *pgxpool.Pool
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewIntegrityScanner constructs IntegrityScanner.
func NewIntegrityScanner(pool *pgxpool.Pool, metrics *observability.Metrics, logger *slog.Logger) *IntegrityScanner {
	return &IntegrityScanner{pool: pool, metrics: metrics, logger: logger}
}

// Handle processes TaskLedgerIntegrity tasks.
func (s *IntegrityScanner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	return s.Run(ctx)
}

// Run executes the three checks concurrently: every journal balances, every
// stock balance equals the sum of its entries, no balance is negative.
func (s *IntegrityScanner) Run(ctx context.Context) error {
	started := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.checkJournalBalance(ctx) })
	g.Go(func() error { return s.checkBalanceDrift(ctx) })
	g.Go(func() error { return s.checkNegativeBalances(ctx) })
	if err := g.Wait(); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("ledger integrity scan finished",
			slog.Duration("elapsed", time.Since(started)))
	}
	return nil
}

func (s *IntegrityScanner) checkJournalBalance(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, `SELECT je.id, je.journal_no, SUM(jl.debit) - SUM(jl.credit)
FROM journal_entries je
JOIN journal_lines jl ON jl.journal_id = je.id
GROUP BY je.id, je.journal_no
HAVING ABS(SUM(jl.debit) - SUM(jl.credit)) > 0.01`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id        int64
			journalNo string
			diff      float64
		)
		if err := rows.Scan(&id, &journalNo, &diff); err != nil {
			return err
		}
		s.metrics.RecordIntegrityFinding("journal_unbalanced")
		if s.logger != nil {
			s.logger.Error("unbalanced journal found",
				slog.Int64("journal_id", id),
				slog.String("journal_no", journalNo),
				slog.Float64("difference", diff))
		}
	}
	return rows.Err()
}

func (s *IntegrityScanner) checkBalanceDrift(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, `SELECT b.company_id, b.class, b.item_id, b.location_id, b.qty, COALESCE(e.total, 0)
FROM stock_balances b
LEFT JOIN (
  SELECT company_id, class, item_id, location_id, SUM(qty_in - qty_out) AS total
  FROM ledger_entries
  GROUP BY company_id, class, item_id, location_id
) e USING (company_id, class, item_id, location_id)
WHERE b.qty <> COALESCE(e.total, 0)`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			companyID, itemID, locationID int64
			class                         string
			qty, total                    float64
		)
		if err := rows.Scan(&companyID, &class, &itemID, &locationID, &qty, &total); err != nil {
			return err
		}
		s.metrics.RecordIntegrityFinding("balance_drift")
		if s.logger != nil {
			s.logger.Error("stock balance drifted from entries",
				slog.Int64("company_id", companyID),
				slog.String("class", class),
				slog.Int64("item_id", itemID),
				slog.Int64("location_id", locationID),
				slog.Float64("balance", qty),
				slog.Float64("entry_sum", total))
		}
	}
	return rows.Err()
}

func (s *IntegrityScanner) checkNegativeBalances(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, `SELECT company_id, class, item_id, location_id, qty
FROM stock_balances WHERE qty < 0`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			companyID, itemID, locationID int64
			class                         string
			qty                           float64
		)
		if err := rows.Scan(&companyID, &class, &itemID, &locationID, &qty); err != nil {
			return err
		}
		s.metrics.RecordIntegrityFinding("negative_balance")
		if s.logger != nil {
			s.logger.Error("negative stock balance found",
				slog.Int64("company_id", companyID),
				slog.String("class", class),
				slog.Int64("item_id", itemID),
				slog.Int64("location_id", locationID),
				slog.Float64("qty", qty))
		}
	}
	return rows.Err()
}
