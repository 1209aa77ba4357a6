package posting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/accounting/journals"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/accounting/mappings"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/accounting/periods"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/ledger"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/shared"
)

// storeState is everything one posting transaction can touch. WithTx runs
// the callback against a clone and only swaps it in on success, so a failed
// posting leaves no trace, same as a rolled-back database transaction.
type storeState struct {
	balances    map[string]ledger.Balance
	entries     []ledger.Entry
	receipts    map[uuid.UUID]GoodsReceipt
	transfers   map[uuid.UUID]StockTransfer
	adjustments map[uuid.UUID]StockAdjustment
	sequences   map[string]int64
}

func newStoreState() *storeState {
	return &storeState{
		balances:    make(map[string]ledger.Balance),
		receipts:    make(map[uuid.UUID]GoodsReceipt),
		transfers:   make(map[uuid.UUID]StockTransfer),
		adjustments: make(map[uuid.UUID]StockAdjustment),
		sequences:   make(map[string]int64),
	}
}

func (s *storeState) clone() *storeState {
	out := newStoreState()
	for k, v := range s.balances {
		out.balances[k] = v
	}
	out.entries = append(out.entries, s.entries...)
	for k, v := range s.receipts {
		out.receipts[k] = v
	}
	for k, v := range s.transfers {
		out.transfers[k] = v
	}
	for k, v := range s.adjustments {
		out.adjustments[k] = v
	}
	for k, v := range s.sequences {
		out.sequences[k] = v
	}
	return out
}

type memoryRepo struct {
	mu           sync.Mutex
	state        *storeState
	periods      []periods.Period
	remediations []Remediation
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		state: newStoreState(),
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

// WithTx serializes callers the way the sequence and balance row locks do
// in Postgres.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	staged := r.state.clone()
	if err := fn(ctx, &memoryTx{repo: r, state: staged}); err != nil {
		return err
	}
	r.state = staged
	return nil
}

func (r *memoryRepo) RecordRemediation(ctx context.Context, rem Remediation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remediations = append(r.remediations, rem)
	return nil
}

func balanceKey(companyID int64, class ledger.Class, itemID, locationID int64) string {
	return fmt.Sprintf("%d:%s:%d:%d", companyID, class, itemID, locationID)
}

type memoryTx struct {
	repo  *memoryRepo
	state *storeState
}

func (tx *memoryTx) GetPeriodForPosting(ctx context.Context, companyID int64, date time.Time) (periods.Period, error) {
	for _, p := range tx.repo.periods {
		if p.CompanyID == companyID && p.Contains(date) {
			return p, nil
		}
	}
	return periods.Period{}, periods.ErrPeriodNotFound
}

func (tx *memoryTx) GetBalanceForUpdate(ctx context.Context, companyID int64, class ledger.Class, itemID, locationID int64) (ledger.Balance, error) {
	if bal, ok := tx.state.balances[balanceKey(companyID, class, itemID, locationID)]; ok {
		return bal, nil
	}
	return ledger.Balance{CompanyID: companyID, Class: class, ItemID: itemID, LocationID: locationID}, ledger.ErrBalanceNotFound
}

func (tx *memoryTx) UpsertBalance(ctx context.Context, balance ledger.Balance) error {
	tx.state.balances[balanceKey(balance.CompanyID, balance.Class, balance.ItemID, balance.LocationID)] = balance
	return nil
}

func (tx *memoryTx) InsertEntry(ctx context.Context, entry ledger.Entry) (int64, error) {
	entry.ID = int64(len(tx.state.entries) + 1)
	tx.state.entries = append(tx.state.entries, entry)
	return entry.ID, nil
}

func (tx *memoryTx) NextDocumentNumber(ctx context.Context, companyID int64, fiscalYear int, kind string) (int64, error) {
	key := fmt.Sprintf("%d:%d:%s", companyID, fiscalYear, kind)
	tx.state.sequences[key]++
	return tx.state.sequences[key], nil
}

func (tx *memoryTx) GetGoodsReceiptForUpdate(ctx context.Context, companyID int64, id uuid.UUID) (GoodsReceipt, error) {
	doc, ok := tx.state.receipts[id]
	if !ok || doc.CompanyID != companyID {
		return GoodsReceipt{}, ErrDocumentNotFound
	}
	return doc, nil
}

func (tx *memoryTx) GetTransferForUpdate(ctx context.Context, companyID int64, id uuid.UUID) (StockTransfer, error) {
	doc, ok := tx.state.transfers[id]
	if !ok || doc.CompanyID != companyID {
		return StockTransfer{}, ErrDocumentNotFound
	}
	return doc, nil
}

func (tx *memoryTx) GetAdjustmentForUpdate(ctx context.Context, companyID int64, id uuid.UUID) (StockAdjustment, error) {
	doc, ok := tx.state.adjustments[id]
	if !ok || doc.CompanyID != companyID {
		return StockAdjustment{}, ErrDocumentNotFound
	}
	return doc, nil
}

func (tx *memoryTx) InsertGoodsReceipt(ctx context.Context, doc GoodsReceipt) error {
	tx.state.receipts[doc.ID] = doc
	return nil
}

func (tx *memoryTx) InsertTransfer(ctx context.Context, doc StockTransfer) error {
	tx.state.transfers[doc.ID] = doc
	return nil
}

func (tx *memoryTx) InsertAdjustment(ctx context.Context, doc StockAdjustment) error {
	tx.state.adjustments[doc.ID] = doc
	return nil
}

func (tx *memoryTx) MarkPosted(ctx context.Context, table string, companyID int64, id uuid.UUID) error {
	now := time.Now()
	switch table {
	case "goods_receipts":
		doc, ok := tx.state.receipts[id]
		if !ok || doc.Status != StatusDraft {
			return ErrAlreadyPosted
		}
		doc.Status = StatusPosted
		doc.PostedAt = &now
		tx.state.receipts[id] = doc
	case "stock_transfers":
		doc, ok := tx.state.transfers[id]
		if !ok || doc.Status != StatusDraft {
			return ErrAlreadyPosted
		}
		doc.Status = StatusPosted
		doc.PostedAt = &now
		tx.state.transfers[id] = doc
	case "stock_adjustments":
		doc, ok := tx.state.adjustments[id]
		if !ok || doc.Status != StatusDraft {
			return ErrAlreadyPosted
		}
		doc.Status = StatusPosted
		doc.PostedAt = &now
		tx.state.adjustments[id] = doc
	default:
		return fmt.Errorf("unknown table %s", table)
	}
	return nil
}

type journalStub struct {
	fail   bool
	posted []journals.PostingInput
	number int64
}

func (j *journalStub) Post(ctx context.Context, input journals.PostingInput) (journals.Entry, error) {
	if err := input.Validate(); err != nil {
		return journals.Entry{}, err
	}
	if j.fail {
		return journals.Entry{}, errors.New("journal store unavailable")
	}
	j.posted = append(j.posted, input)
	j.number++
	return journals.Entry{
		CompanyID:  input.CompanyID,
		FiscalYear: input.Date.Year(),
		Number:     j.number,
		JournalNo:  journals.FormatJournalNo(input.Date.Year(), j.number),
	}, nil
}

type resolverStub struct {
	accounts map[mappings.Code]int64
}

func newResolverStub() *resolverStub {
	return &resolverStub{accounts: map[mappings.Code]int64{
		mappings.InventoryRawMaterials:  1101,
		mappings.InventoryWIP:           1102,
		mappings.InventoryFinishedGoods: 1103,
		mappings.AccountsReceivable:     1201,
		mappings.GRNClearing:            2101,
		mappings.SalesRevenue:           4101,
		mappings.CostOfGoodsSold:        5101,
		mappings.AdjustmentGain:         7101,
		mappings.AdjustmentLoss:         7102,
	}}
}

func (r *resolverStub) Resolve(ctx context.Context, companyID int64, codes ...mappings.Code) (map[mappings.Code]int64, error) {
	out := make(map[mappings.Code]int64, len(codes))
	var missing []mappings.Code
	for _, code := range codes {
		if id, ok := r.accounts[code]; ok {
			out[code] = id
			continue
		}
		missing = append(missing, code)
	}
	if len(missing) > 0 {
		return nil, &mappings.MissingMappingError{CompanyID: companyID, Codes: missing}
	}
	return out, nil
}

type notifierStub struct {
	notified []Remediation
}

func (n *notifierStub) NotifyJournalRemediation(ctx context.Context, rem Remediation) error {
	n.notified = append(n.notified, rem)
	return nil
}

type fixture struct {
	repo     *memoryRepo
	journals *journalStub
	resolver *resolverStub
	notifier *notifierStub
	svc      *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:     newMemoryRepo(),
		journals: &journalStub{},
		resolver: newResolverStub(),
		notifier: &notifierStub{},
	}
	f.svc = NewService(f.repo, f.journals, f.resolver, nil, f.notifier, nil, nil)
	return f
}

func (f *fixture) balance(class ledger.Class, itemID, locationID int64) ledger.Balance {
	return f.repo.state.balances[balanceKey(1, class, itemID, locationID)]
}

func docDate() time.Time {
	return time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
}

func actor() shared.Actor { return shared.Actor{UserID: 7, CompanyID: 1} }

func (f *fixture) receive(t *testing.T, class ledger.Class, itemID, locationID int64, qty, unitCost string) ledger.Entry {
	t.Helper()
	entry, err := f.svc.Receive(context.Background(), ReceiveInput{
		CompanyID:  1,
		Class:      class,
		ItemID:     itemID,
		LocationID: locationID,
		Date:       docDate(),
		Qty:        decimal.RequireFromString(qty),
		UnitCost:   decimal.RequireFromString(unitCost),
		CreatedBy:  7,
	})
	require.NoError(t, err)
	return entry
}

func TestReceiveThenIssue(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.receive(t, ledger.ClassRaw, 1, 1, "100", "100")

	entry, err := f.svc.Issue(ctx, IssueInput{
		CompanyID:  1,
		Class:      ledger.ClassRaw,
		ItemID:     1,
		LocationID: 1,
		Date:       docDate(),
		Qty:        decimal.RequireFromString("50"),
		CreatedBy:  7,
	})
	require.NoError(t, err)
	require.True(t, entry.UnitCost.Equal(decimal.RequireFromString("100")))
	require.True(t, entry.RunningQty.Equal(decimal.RequireFromString("50")))

	bal := f.balance(ledger.ClassRaw, 1, 1)
	require.True(t, bal.Qty.Equal(decimal.RequireFromString("50")))
	require.True(t, bal.AvgCost.Equal(decimal.RequireFromString("100")))

	require.Len(t, f.journals.posted, 2)
	receipt := f.journals.posted[0]
	require.Equal(t, RefTypeReceipt, receipt.RefType)
	require.Equal(t, int64(1101), receipt.Lines[0].AccountID)
	require.True(t, receipt.Lines[0].Debit.Equal(decimal.RequireFromString("10000")))
	require.Equal(t, int64(2101), receipt.Lines[1].AccountID)
	require.True(t, receipt.Lines[1].Credit.Equal(decimal.RequireFromString("10000")))

	issue := f.journals.posted[1]
	require.Equal(t, int64(1102), issue.Lines[0].AccountID)
	require.True(t, issue.Lines[0].Debit.Equal(decimal.RequireFromString("5000")))
	require.Equal(t, int64(1101), issue.Lines[1].AccountID)
	require.True(t, issue.Lines[1].Credit.Equal(decimal.RequireFromString("5000")))
}

func TestGoodsReceiptLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	doc, err := f.svc.CreateGoodsReceipt(ctx, CreateGoodsReceiptInput{
		CompanyID:   1,
		Class:       ledger.ClassRaw,
		SupplierRef: "PO-991",
		Date:        docDate(),
		CreatedBy:   7,
		Lines: []GoodsReceiptLine{
			{ItemID: 1, LocationID: 1, Qty: decimal.RequireFromString("10"), UnitCost: decimal.RequireFromString("100")},
			{ItemID: 2, LocationID: 1, Qty: decimal.RequireFromString("4"), UnitCost: decimal.RequireFromString("250")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "GRN-2026-00001", doc.Number)
	require.Equal(t, StatusDraft, f.repo.state.receipts[doc.ID].Status)

	result, err := f.svc.PostGoodsReceipt(ctx, 1, doc.ID, actor())
	require.NoError(t, err)
	require.Equal(t, doc.ID, result.DocumentID)
	require.Len(t, result.Entries, 2)
	require.Equal(t, []string{"JV-2026-00001"}, result.JournalNos)
	require.Equal(t, StatusPosted, f.repo.state.receipts[doc.ID].Status)

	// both lines aggregate into one journal: Dr inventory 2000, Cr clearing
	require.Len(t, f.journals.posted, 1)
	journal := f.journals.posted[0]
	require.Len(t, journal.Lines, 2)
	require.True(t, journal.Lines[0].Debit.Equal(decimal.RequireFromString("2000")))
	require.True(t, journal.Lines[1].Credit.Equal(decimal.RequireFromString("2000")))
}

func TestPostGoodsReceiptTwiceRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	doc, err := f.svc.CreateGoodsReceipt(ctx, CreateGoodsReceiptInput{
		CompanyID: 1,
		Class:     ledger.ClassRaw,
		Date:      docDate(),
		CreatedBy: 7,
		Lines:     []GoodsReceiptLine{{ItemID: 1, LocationID: 1, Qty: decimal.RequireFromString("10"), UnitCost: decimal.RequireFromString("100")}},
	})
	require.NoError(t, err)

	_, err = f.svc.PostGoodsReceipt(ctx, 1, doc.ID, actor())
	require.NoError(t, err)
	entriesAfterFirst := len(f.repo.state.entries)

	_, err = f.svc.PostGoodsReceipt(ctx, 1, doc.ID, actor())
	require.ErrorIs(t, err, ErrAlreadyPosted)
	require.Len(t, f.repo.state.entries, entriesAfterFirst)
	require.Len(t, f.journals.posted, 1)
}

func TestPostUnknownDocument(t *testing.T) {
	f := newFixture()
	_, err := f.svc.PostGoodsReceipt(context.Background(), 1, uuid.New(), actor())
	require.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestTransferAllOrNothing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.receive(t, ledger.ClassRaw, 1, 1, "10", "100")
	entriesBefore := len(f.repo.state.entries)

	doc, err := f.svc.CreateTransfer(ctx, CreateTransferInput{
		CompanyID: 1,
		Date:      docDate(),
		CreatedBy: 7,
		Lines: []StockTransferLine{
			{ItemID: 1, Qty: decimal.RequireFromString("5"), SrcClass: ledger.ClassRaw, SrcLocationID: 1, DstClass: ledger.ClassRaw, DstLocationID: 2},
			{ItemID: 2, Qty: decimal.RequireFromString("5"), SrcClass: ledger.ClassRaw, SrcLocationID: 1, DstClass: ledger.ClassRaw, DstLocationID: 2},
		},
	})
	require.NoError(t, err)

	// item 2 has no stock: the whole document fails, line 1 included
	_, err = f.svc.PostTransfer(ctx, 1, doc.ID, actor())
	require.True(t, ledger.IsInsufficientStock(err))

	require.Len(t, f.repo.state.entries, entriesBefore)
	require.Equal(t, StatusDraft, f.repo.state.transfers[doc.ID].Status)
	require.True(t, f.balance(ledger.ClassRaw, 1, 1).Qty.Equal(decimal.RequireFromString("10")))
	require.True(t, f.balance(ledger.ClassRaw, 1, 2).Qty.IsZero())
}

func TestTransferMovesValueAtAverage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.receive(t, ledger.ClassRaw, 1, 1, "10", "100")
	journalsBefore := len(f.journals.posted)

	doc, err := f.svc.CreateTransfer(ctx, CreateTransferInput{
		CompanyID: 1,
		Date:      docDate(),
		CreatedBy: 7,
		Lines: []StockTransferLine{
			{ItemID: 1, Qty: decimal.RequireFromString("4"), SrcClass: ledger.ClassRaw, SrcLocationID: 1, DstClass: ledger.ClassRaw, DstLocationID: 2},
		},
	})
	require.NoError(t, err)

	result, err := f.svc.PostTransfer(ctx, 1, doc.ID, actor())
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)

	out, in := result.Entries[0], result.Entries[1]
	require.Equal(t, ledger.KindTransferOut, out.Kind)
	require.Equal(t, ledger.KindTransferIn, in.Kind)
	require.True(t, in.UnitCost.Equal(out.UnitCost))
	require.True(t, in.UnitCost.Equal(decimal.RequireFromString("100")))

	require.True(t, f.balance(ledger.ClassRaw, 1, 1).Qty.Equal(decimal.RequireFromString("6")))
	require.True(t, f.balance(ledger.ClassRaw, 1, 2).Qty.Equal(decimal.RequireFromString("4")))
	require.True(t, f.balance(ledger.ClassRaw, 1, 2).AvgCost.Equal(decimal.RequireFromString("100")))

	// same inventory account on both sides: nothing to journal
	require.Len(t, f.journals.posted, journalsBefore)
	require.Empty(t, result.JournalNos)
}

func TestTransferAcrossClassesJournals(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.receive(t, ledger.ClassRaw, 1, 1, "10", "100")
	journalsBefore := len(f.journals.posted)

	doc, err := f.svc.CreateTransfer(ctx, CreateTransferInput{
		CompanyID: 1,
		Date:      docDate(),
		CreatedBy: 7,
		Lines: []StockTransferLine{
			{ItemID: 1, Qty: decimal.RequireFromString("4"), SrcClass: ledger.ClassRaw, SrcLocationID: 1, DstClass: ledger.ClassWIP, DstLocationID: 2},
		},
	})
	require.NoError(t, err)

	result, err := f.svc.PostTransfer(ctx, 1, doc.ID, actor())
	require.NoError(t, err)
	require.Len(t, result.JournalNos, 1)

	require.Len(t, f.journals.posted, journalsBefore+1)
	journal := f.journals.posted[len(f.journals.posted)-1]
	require.Equal(t, int64(1102), journal.Lines[0].AccountID)
	require.True(t, journal.Lines[0].Debit.Equal(decimal.RequireFromString("400")))
	require.Equal(t, int64(1101), journal.Lines[1].AccountID)
	require.True(t, journal.Lines[1].Credit.Equal(decimal.RequireFromString("400")))
}

func TestAdjustmentBothDirections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.receive(t, ledger.ClassFinished, 1, 1, "10", "80")

	doc, err := f.svc.CreateAdjustment(ctx, CreateAdjustmentInput{
		CompanyID: 1,
		Date:      docDate(),
		Reason:    "cycle count",
		CreatedBy: 7,
		Lines: []StockAdjustmentLine{
			{ItemID: 1, LocationID: 1, Class: ledger.ClassFinished, QtyDelta: decimal.RequireFromString("-3")},
			{ItemID: 2, LocationID: 1, Class: ledger.ClassFinished, QtyDelta: decimal.RequireFromString("5"), UnitCost: decimal.RequireFromString("60")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "ADJ-2026-00001", doc.Number)

	result, err := f.svc.PostAdjustment(ctx, 1, doc.ID, actor())
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)

	outEntry, inEntry := result.Entries[0], result.Entries[1]
	require.Equal(t, ledger.KindAdjustOut, outEntry.Kind)
	// shortage valued at the running average, not a caller cost
	require.True(t, outEntry.UnitCost.Equal(decimal.RequireFromString("80")))
	require.True(t, outEntry.TotalCost.Equal(decimal.RequireFromString("240")))
	require.Equal(t, ledger.KindAdjustIn, inEntry.Kind)
	require.True(t, inEntry.TotalCost.Equal(decimal.RequireFromString("300")))

	require.True(t, f.balance(ledger.ClassFinished, 1, 1).Qty.Equal(decimal.RequireFromString("7")))
	require.True(t, f.balance(ledger.ClassFinished, 2, 1).Qty.Equal(decimal.RequireFromString("5")))

	journal := f.journals.posted[len(f.journals.posted)-1]
	byAccount := make(map[int64]journals.LineInput)
	for _, line := range journal.Lines {
		byAccount[line.AccountID] = line
	}
	require.True(t, byAccount[7102].Debit.Equal(decimal.RequireFromString("240")))
	require.True(t, byAccount[7101].Credit.Equal(decimal.RequireFromString("300")))
}

func TestMissingMappingBlocksPosting(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	delete(f.resolver.accounts, mappings.GRNClearing)

	doc, err := f.svc.CreateGoodsReceipt(ctx, CreateGoodsReceiptInput{
		CompanyID: 1,
		Class:     ledger.ClassRaw,
		Date:      docDate(),
		CreatedBy: 7,
		Lines:     []GoodsReceiptLine{{ItemID: 1, LocationID: 1, Qty: decimal.RequireFromString("10"), UnitCost: decimal.RequireFromString("100")}},
	})
	require.NoError(t, err)

	_, err = f.svc.PostGoodsReceipt(ctx, 1, doc.ID, actor())
	var missing *mappings.MissingMappingError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, []mappings.Code{mappings.GRNClearing}, missing.Codes)

	// nothing moved, nothing journaled, the draft survives
	require.Empty(t, f.repo.state.entries)
	require.Equal(t, StatusDraft, f.repo.state.receipts[doc.ID].Status)
	require.Empty(t, f.journals.posted)
}

func TestPartialJournalFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.journals.fail = true

	doc, err := f.svc.CreateGoodsReceipt(ctx, CreateGoodsReceiptInput{
		CompanyID: 1,
		Class:     ledger.ClassRaw,
		Date:      docDate(),
		CreatedBy: 7,
		Lines:     []GoodsReceiptLine{{ItemID: 1, LocationID: 1, Qty: decimal.RequireFromString("10"), UnitCost: decimal.RequireFromString("100")}},
	})
	require.NoError(t, err)

	result, err := f.svc.PostGoodsReceipt(ctx, 1, doc.ID, actor())
	require.True(t, IsPartialJournalFailure(err))

	// the stock movement stands
	require.Len(t, result.Entries, 1)
	require.Len(t, f.repo.state.entries, 1)
	require.Equal(t, StatusPosted, f.repo.state.receipts[doc.ID].Status)
	require.True(t, f.balance(ledger.ClassRaw, 1, 1).Qty.Equal(decimal.RequireFromString("10")))

	// and the failure is flagged loudly
	require.Len(t, f.repo.remediations, 1)
	require.Equal(t, RefTypeGoodsReceipt, f.repo.remediations[0].RefType)
	require.Equal(t, doc.ID.String(), f.repo.remediations[0].RefID)
	require.Len(t, f.notifier.notified, 1)
}

func TestSaleIssuePostsCostAndRevenue(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.receive(t, ledger.ClassFinished, 1, 1, "10", "80")
	journalsBefore := len(f.journals.posted)

	entry, err := f.svc.IssueForSale(ctx, SaleIssueInput{
		CompanyID:  1,
		ItemID:     1,
		LocationID: 1,
		Date:       docDate(),
		Qty:        decimal.RequireFromString("4"),
		SaleAmount: decimal.RequireFromString("500"),
		Ref:        "SO-15",
		CreatedBy:  7,
	})
	require.NoError(t, err)
	require.Equal(t, ledger.KindSalesOut, entry.Kind)
	require.True(t, entry.TotalCost.Equal(decimal.RequireFromString("320")))

	require.Len(t, f.journals.posted, journalsBefore+2)
	cogs := f.journals.posted[journalsBefore]
	require.Equal(t, int64(5101), cogs.Lines[0].AccountID)
	require.True(t, cogs.Lines[0].Debit.Equal(decimal.RequireFromString("320")))
	require.Equal(t, int64(1103), cogs.Lines[1].AccountID)

	revenue := f.journals.posted[journalsBefore+1]
	require.Equal(t, int64(1201), revenue.Lines[0].AccountID)
	require.True(t, revenue.Lines[0].Debit.Equal(decimal.RequireFromString("500")))
	require.Equal(t, int64(4101), revenue.Lines[1].AccountID)
	require.True(t, revenue.Lines[1].Credit.Equal(decimal.RequireFromString("500")))
}

func TestSaleIssueStopsAfterFirstJournalFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.receive(t, ledger.ClassFinished, 1, 1, "10", "80")
	f.journals.fail = true

	_, err := f.svc.IssueForSale(ctx, SaleIssueInput{
		CompanyID:  1,
		ItemID:     1,
		LocationID: 1,
		Date:       docDate(),
		Qty:        decimal.RequireFromString("4"),
		SaleAmount: decimal.RequireFromString("500"),
		CreatedBy:  7,
	})
	require.True(t, IsPartialJournalFailure(err))

	// cost journal failed, so the revenue journal is never attempted
	require.Len(t, f.repo.remediations, 1)
	require.True(t, f.balance(ledger.ClassFinished, 1, 1).Qty.Equal(decimal.RequireFromString("6")))
}

func TestZeroValueReceiptSkipsJournal(t *testing.T) {
	f := newFixture()

	entry := f.receive(t, ledger.ClassRaw, 1, 1, "5", "0")
	require.True(t, entry.TotalCost.IsZero())
	require.Empty(t, f.journals.posted)
	require.Empty(t, f.repo.remediations)
}

func TestDocumentNumbersIncrease(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for i, want := range []string{"GRN-2026-00001", "GRN-2026-00002", "GRN-2026-00003"} {
		doc, err := f.svc.CreateGoodsReceipt(ctx, CreateGoodsReceiptInput{
			CompanyID: 1,
			Class:     ledger.ClassRaw,
			Date:      docDate(),
			CreatedBy: 7,
			Lines:     []GoodsReceiptLine{{ItemID: int64(i + 1), LocationID: 1, Qty: decimal.RequireFromString("1"), UnitCost: decimal.RequireFromString("1")}},
		})
		require.NoError(t, err)
		require.Equal(t, want, doc.Number)
	}
}

func TestConcurrentReceiptsGetUniqueNumbers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	const docs = 8
	var wg sync.WaitGroup
	errs := make([]error, docs)
	numbers := make([]string, docs)
	for i := 0; i < docs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc, err := f.svc.CreateGoodsReceipt(ctx, CreateGoodsReceiptInput{
				CompanyID: 1,
				Class:     ledger.ClassRaw,
				Date:      docDate(),
				CreatedBy: 7,
				Lines:     []GoodsReceiptLine{{ItemID: int64(i + 1), LocationID: 1, Qty: decimal.RequireFromString("1"), UnitCost: decimal.RequireFromString("1")}},
			})
			errs[i] = err
			numbers[i] = doc.Number
		}(i)
	}
	wg.Wait()

	want := make([]string, 0, docs)
	for i := 1; i <= docs; i++ {
		want = append(want, FormatDocumentNo(shared.SequenceKindGoodsReceipt, 2026, int64(i)))
	}
	for i, err := range errs {
		require.NoError(t, err, "receipt %d", i)
	}
	require.ElementsMatch(t, want, numbers)
	require.Len(t, f.repo.state.receipts, docs)
}
