package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/accounting/periods"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/platform/db"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBalance(ctx context.Context, companyID int64, class Class, itemID, locationID int64) (Balance, error)
	History(ctx context.Context, filter Filter) ([]Entry, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service appends ledger entries while holding the balance and period
// invariants. All ledger writes in the system go through Append.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	retry  db.RetryOptions
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// SetRetryOptions overrides the serialization retry policy. Zero values keep
// the defaults.
func (s *Service) SetRetryOptions(opts db.RetryOptions) {
	s.retry = opts
}

// Append validates the draft and commits it atomically with the new running
// balance. The (company, class, item, location) key is the serialization
// unit: the balance row lock linearizes concurrent writers, so the second
// writer always computes from the first writer's result. Rejections
// (insufficient stock, closed or missing period) leave no trace; only
// transient serialization conflicts are retried.
func (s *Service) Append(ctx context.Context, draft Draft) (Entry, error) {
	if err := draft.Validate(); err != nil {
		return Entry{}, err
	}

	var entry Entry
	err := db.WithRetry(ctx, s.retry, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			appended, err := AppendTx(ctx, tx, draft)
			if err != nil {
				return err
			}
			entry = appended
			return nil
		})
	})
	if err != nil {
		if db.IsSerializationFailure(err) {
			return Entry{}, fmt.Errorf("ledger: storage contention: %w", err)
		}
		return Entry{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:   draft.CreatedBy,
			CompanyID: draft.CompanyID,
			Action:    fmt.Sprintf("ledger.%s", draft.Kind),
			Entity:    "ledger_entry",
			EntityID:  fmt.Sprintf("%d", entry.ID),
			Meta: map[string]any{
				"class":       draft.Class,
				"item_id":     draft.ItemID,
				"location_id": draft.LocationID,
				"qty_in":      draft.QtyIn.String(),
				"qty_out":     draft.QtyOut.String(),
				"ref_type":    draft.Ref.Type,
				"ref_id":      draft.Ref.ID,
			},
		})
	}
	return entry, nil
}

// Balance returns the current balance for a key, zero when unseen.
func (s *Service) Balance(ctx context.Context, companyID int64, class Class, itemID, locationID int64) (Balance, error) {
	if companyID == 0 || itemID == 0 || locationID == 0 {
		return Balance{}, ErrMissingKey
	}
	if !class.Valid() {
		return Balance{}, ErrInvalidClass
	}
	return s.repo.GetBalance(ctx, companyID, class, itemID, locationID)
}

// History lists entries newest-first for the filter.
func (s *Service) History(ctx context.Context, filter Filter) ([]Entry, error) {
	if filter.CompanyID == 0 {
		return nil, ErrMissingKey
	}
	return s.repo.History(ctx, filter)
}

// AppendTx runs the guarded read-compute-write cycle inside the caller's
// transaction: period gate, balance row lock, invariant check, entry insert,
// balance upsert. Document posting uses this to commit several entries as
// one atomic unit.
func AppendTx(ctx context.Context, tx TxRepository, draft Draft) (Entry, error) {
	if err := draft.Validate(); err != nil {
		return Entry{}, err
	}
	period, err := tx.GetPeriodForPosting(ctx, draft.CompanyID, draft.TxDate)
	if err != nil {
		return Entry{}, err
	}
	if period.Status == periods.StatusClosed {
		return Entry{}, periods.ErrPeriodClosed
	}

	balance, err := tx.GetBalanceForUpdate(ctx, draft.CompanyID, draft.Class, draft.ItemID, draft.LocationID)
	if err != nil && !errors.Is(err, ErrBalanceNotFound) {
		return Entry{}, err
	}

	computed, err := apply(balance, draft)
	if err != nil {
		return Entry{}, err
	}
	computed.entry.PeriodID = period.ID

	id, err := tx.InsertEntry(ctx, computed.entry)
	if err != nil {
		return Entry{}, err
	}
	computed.entry.ID = id

	if err := tx.UpsertBalance(ctx, computed.balance); err != nil {
		return Entry{}, err
	}
	return computed.entry, nil
}

type computation struct {
	entry   Entry
	balance Balance
}

// apply computes the entry's running figures and the updated balance from
// the locked prior balance. Inbound movements fold the draft cost into the
// moving average; outbound movements consume at the current average.
func apply(prior Balance, draft Draft) (computation, error) {
	newQty := prior.Qty.Add(draft.QtyIn).Sub(draft.QtyOut)
	if newQty.IsNegative() {
		return computation{}, &InsufficientStockError{
			Available: prior.Qty,
			Requested: draft.QtyOut,
		}
	}

	unitCost := draft.UnitCost
	newAvg := prior.AvgCost
	if draft.QtyIn.IsPositive() {
		totalValue := prior.Qty.Mul(prior.AvgCost).Add(draft.QtyIn.Mul(unitCost))
		if newQty.IsPositive() {
			newAvg = totalValue.DivRound(newQty, 6)
		} else {
			newAvg = decimal.Zero
		}
	} else {
		// Outbound entries leave cost to the moving average, regardless of
		// what the caller supplied.
		unitCost = prior.AvgCost
		if newQty.IsZero() {
			newAvg = decimal.Zero
		}
	}

	qty := draft.QtyIn
	if draft.QtyOut.IsPositive() {
		qty = draft.QtyOut
	}

	entry := Entry{
		CompanyID:      draft.CompanyID,
		Class:          draft.Class,
		ItemID:         draft.ItemID,
		LocationID:     draft.LocationID,
		TxDate:         draft.TxDate,
		Kind:           draft.Kind,
		QtyIn:          draft.QtyIn,
		QtyOut:         draft.QtyOut,
		UnitCost:       unitCost,
		TotalCost:      qty.Mul(unitCost),
		RunningQty:     newQty,
		RunningAvgCost: newAvg,
		Ref:            draft.Ref,
		CreatedBy:      draft.CreatedBy,
		CreatedAt:      time.Now().UTC(),
	}
	balance := Balance{
		CompanyID:  draft.CompanyID,
		Class:      draft.Class,
		ItemID:     draft.ItemID,
		LocationID: draft.LocationID,
		Qty:        newQty,
		AvgCost:    newAvg,
	}
	return computation{entry: entry, balance: balance}, nil
}
