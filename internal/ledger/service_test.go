package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/accounting/periods"
)

type memoryRepo struct {
	mu       sync.Mutex
	periods  []periods.Period
	balances map[string]Balance
	entries  []Entry
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		balances: make(map[string]Balance),
		periods: []periods.Period{{
			ID:        1,
			CompanyID: 1,
			Code:      "2026-03",
			StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
			Status:    periods.StatusOpen,
		}},
	}
}

func balanceKey(companyID int64, class Class, itemID, locationID int64) string {
	return fmt.Sprintf("%d:%s:%d:%d", companyID, class, itemID, locationID)
}

type memoryTx struct {
	repo *memoryRepo
}

// WithTx serializes callers the way the balance row lock does in Postgres.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetBalance(ctx context.Context, companyID int64, class Class, itemID, locationID int64) (Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if bal, ok := r.balances[balanceKey(companyID, class, itemID, locationID)]; ok {
		return bal, nil
	}
	return Balance{CompanyID: companyID, Class: class, ItemID: itemID, LocationID: locationID}, nil
}

func (r *memoryRepo) History(ctx context.Context, filter Filter) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.entries))
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.CompanyID != filter.CompanyID {
			continue
		}
		if filter.Class != "" && e.Class != filter.Class {
			continue
		}
		if filter.ItemID != 0 && e.ItemID != filter.ItemID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (tx *memoryTx) GetPeriodForPosting(ctx context.Context, companyID int64, date time.Time) (periods.Period, error) {
	for _, p := range tx.repo.periods {
		if p.CompanyID == companyID && p.Contains(date) {
			return p, nil
		}
	}
	return periods.Period{}, periods.ErrPeriodNotFound
}

func (tx *memoryTx) GetBalanceForUpdate(ctx context.Context, companyID int64, class Class, itemID, locationID int64) (Balance, error) {
	if bal, ok := tx.repo.balances[balanceKey(companyID, class, itemID, locationID)]; ok {
		return bal, nil
	}
	return Balance{CompanyID: companyID, Class: class, ItemID: itemID, LocationID: locationID}, ErrBalanceNotFound
}

func (tx *memoryTx) UpsertBalance(ctx context.Context, balance Balance) error {
	tx.repo.balances[balanceKey(balance.CompanyID, balance.Class, balance.ItemID, balance.LocationID)] = balance
	return nil
}

func (tx *memoryTx) InsertEntry(ctx context.Context, entry Entry) (int64, error) {
	tx.repo.nextID++
	entry.ID = tx.repo.nextID
	tx.repo.entries = append(tx.repo.entries, entry)
	return entry.ID, nil
}

func testDate() time.Time {
	return time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
}

func receiptDraft(qty, unitCost string) Draft {
	return Draft{
		CompanyID:  1,
		Class:      ClassRaw,
		ItemID:     1,
		LocationID: 1,
		TxDate:     testDate(),
		Kind:       KindReceipt,
		QtyIn:      decimal.RequireFromString(qty),
		UnitCost:   decimal.RequireFromString(unitCost),
		CreatedBy:  7,
	}
}

func issueDraft(qty string) Draft {
	return Draft{
		CompanyID:  1,
		Class:      ClassRaw,
		ItemID:     1,
		LocationID: 1,
		TxDate:     testDate(),
		Kind:       KindIssue,
		QtyOut:     decimal.RequireFromString(qty),
		CreatedBy:  7,
	}
}

func TestMovingAverageCost(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	entry, err := svc.Append(ctx, receiptDraft("10", "100"))
	require.NoError(t, err)
	require.True(t, entry.RunningQty.Equal(decimal.RequireFromString("10")))
	require.True(t, entry.RunningAvgCost.Equal(decimal.RequireFromString("100")))

	entry, err = svc.Append(ctx, receiptDraft("5", "120"))
	require.NoError(t, err)
	require.True(t, entry.RunningQty.Equal(decimal.RequireFromString("15")))
	require.True(t, entry.RunningAvgCost.Equal(decimal.RequireFromString("106.666667")))

	entry, err = svc.Append(ctx, issueDraft("8"))
	require.NoError(t, err)
	require.True(t, entry.RunningQty.Equal(decimal.RequireFromString("7")))
	require.True(t, entry.UnitCost.Equal(decimal.RequireFromString("106.666667")))
	require.True(t, entry.RunningAvgCost.Equal(decimal.RequireFromString("106.666667")))
}

func TestOutboundIgnoresCallerCost(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Append(ctx, receiptDraft("10", "50"))
	require.NoError(t, err)

	draft := issueDraft("4")
	draft.UnitCost = decimal.RequireFromString("999")
	entry, err := svc.Append(ctx, draft)
	require.NoError(t, err)
	require.True(t, entry.UnitCost.Equal(decimal.RequireFromString("50")))
	require.True(t, entry.TotalCost.Equal(decimal.RequireFromString("200")))
}

func TestInsufficientStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Append(ctx, receiptDraft("10", "100"))
	require.NoError(t, err)

	_, err = svc.Append(ctx, issueDraft("11"))
	require.Error(t, err)
	require.True(t, IsInsufficientStock(err))

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.True(t, insufficient.Available.Equal(decimal.RequireFromString("10")))
	require.True(t, insufficient.Requested.Equal(decimal.RequireFromString("11")))

	// rejection leaves no trace
	require.Len(t, repo.entries, 1)
	bal, err := svc.Balance(ctx, 1, ClassRaw, 1, 1)
	require.NoError(t, err)
	require.True(t, bal.Qty.Equal(decimal.RequireFromString("10")))
}

func TestInterleavedMovements(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Append(ctx, receiptDraft("100", "10"))
	require.NoError(t, err)
	_, err = svc.Append(ctx, issueDraft("30"))
	require.NoError(t, err)
	entry, err := svc.Append(ctx, receiptDraft("20", "10"))
	require.NoError(t, err)
	require.True(t, entry.RunningQty.Equal(decimal.RequireFromString("90")))
}

func TestClosedPeriodRejected(t *testing.T) {
	repo := newMemoryRepo()
	repo.periods[0].Status = periods.StatusClosed
	svc := NewService(repo, nil, nil)

	_, err := svc.Append(context.Background(), receiptDraft("10", "100"))
	require.ErrorIs(t, err, periods.ErrPeriodClosed)
	require.Empty(t, repo.entries)
}

func TestMissingPeriodRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	draft := receiptDraft("10", "100")
	draft.TxDate = time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.Append(context.Background(), draft)
	require.ErrorIs(t, err, periods.ErrPeriodNotFound)
	require.Empty(t, repo.entries)
}

func TestDraftValidation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Draft)
		wantErr error
	}{
		{"missing item", func(d *Draft) { d.ItemID = 0 }, ErrMissingKey},
		{"unknown class", func(d *Draft) { d.Class = "SCRAP" }, ErrInvalidClass},
		{"unknown kind", func(d *Draft) { d.Kind = "TELEPORT" }, ErrInvalidKind},
		{"both sides zero", func(d *Draft) { d.QtyIn = decimal.Zero }, ErrInvalidQuantity},
		{"both sides positive", func(d *Draft) { d.QtyOut = decimal.NewFromInt(1) }, ErrInvalidQuantity},
		{"direction mismatch", func(d *Draft) {
			d.QtyIn = decimal.Zero
			d.QtyOut = decimal.NewFromInt(1)
		}, ErrInvalidQuantity},
		{"negative cost", func(d *Draft) { d.UnitCost = decimal.NewFromInt(-1) }, ErrInvalidUnitCost},
		{"missing date", func(d *Draft) { d.TxDate = time.Time{} }, ErrMissingDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			draft := receiptDraft("10", "100")
			tc.mutate(&draft)
			require.ErrorIs(t, draft.Validate(), tc.wantErr)
		})
	}
}

// wrappingTx wraps the not-found sentinel the way a repository layer that
// annotates errors with fmt.Errorf("%w") would.
type wrappingTx struct {
	*memoryTx
}

func (tx *wrappingTx) GetBalanceForUpdate(ctx context.Context, companyID int64, class Class, itemID, locationID int64) (Balance, error) {
	bal, err := tx.memoryTx.GetBalanceForUpdate(ctx, companyID, class, itemID, locationID)
	if err != nil {
		return bal, fmt.Errorf("balance for update: %w", err)
	}
	return bal, nil
}

func TestAppendTxTreatsWrappedMissingBalanceAsZero(t *testing.T) {
	repo := newMemoryRepo()
	tx := &wrappingTx{memoryTx: &memoryTx{repo: repo}}

	entry, err := AppendTx(context.Background(), tx, receiptDraft("10", "100"))
	require.NoError(t, err)
	require.True(t, entry.RunningQty.Equal(decimal.RequireFromString("10")))
	require.True(t, entry.RunningAvgCost.Equal(decimal.RequireFromString("100")))
}

func TestConcurrentIssueOneSucceeds(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Append(ctx, receiptDraft("10", "100"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Append(ctx, issueDraft("10"))
		}(i)
	}
	wg.Wait()

	var succeeded, failed int
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.True(t, IsInsufficientStock(err))
			failed++
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, failed)

	bal, err := svc.Balance(ctx, 1, ClassRaw, 1, 1)
	require.NoError(t, err)
	require.True(t, bal.Qty.IsZero())
}
