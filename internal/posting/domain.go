package posting

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/ledger"
)

// DocumentStatus tracks the two-state document lifecycle. A posting attempt
// either flips DRAFT to POSTED or leaves the document untouched.
type DocumentStatus string

const (
	StatusDraft  DocumentStatus = "DRAFT"
	StatusPosted DocumentStatus = "POSTED"
)

// Reference types stamped on ledger entries and journals.
const (
	RefTypeGoodsReceipt = "GRN"
	RefTypeTransfer     = "TRANSFER"
	RefTypeAdjustment   = "ADJUSTMENT"
	RefTypeReceipt      = "RECEIPT"
	RefTypeIssue        = "ISSUE"
	RefTypeSale         = "SALE"
)

// GoodsReceipt records inbound stock from a supplier, one ledger entry per
// line when posted.
type GoodsReceipt struct {
	ID          uuid.UUID
	CompanyID   int64
	Number      string
	Class       ledger.Class
	SupplierRef string
	Date        time.Time
	Status      DocumentStatus
	CreatedBy   int64
	CreatedAt   time.Time
	PostedAt    *time.Time
	Lines       []GoodsReceiptLine
}

// GoodsReceiptLine is one received item.
type GoodsReceiptLine struct {
	ID         int64
	ItemID     int64
	LocationID int64
	Qty        decimal.Decimal
	UnitCost   decimal.Decimal
}

// StockTransfer moves stock between locations and possibly between
// inventory classes; posting emits one OUT and one IN entry per line.
type StockTransfer struct {
	ID        uuid.UUID
	CompanyID int64
	Number    string
	Date      time.Time
	Note      string
	Status    DocumentStatus
	CreatedBy int64
	CreatedAt time.Time
	PostedAt  *time.Time
	Lines     []StockTransferLine
}

// StockTransferLine is one moved item.
type StockTransferLine struct {
	ID            int64
	ItemID        int64
	Qty           decimal.Decimal
	SrcClass      ledger.Class
	SrcLocationID int64
	DstClass      ledger.Class
	DstLocationID int64
}

// StockAdjustment corrects stock up or down; posting emits an ADJUST_IN or
// ADJUST_OUT entry per line.
type StockAdjustment struct {
	ID        uuid.UUID
	CompanyID int64
	Number    string
	Date      time.Time
	Reason    string
	Status    DocumentStatus
	CreatedBy int64
	CreatedAt time.Time
	PostedAt  *time.Time
	Lines     []StockAdjustmentLine
}

// StockAdjustmentLine adjusts one item at one location. QtyDelta > 0 adds
// stock at UnitCost; QtyDelta < 0 removes stock at the running average.
type StockAdjustmentLine struct {
	ID         int64
	ItemID     int64
	LocationID int64
	Class      ledger.Class
	QtyDelta   decimal.Decimal
	UnitCost   decimal.Decimal
}

// PostResult reports what a document posting created.
type PostResult struct {
	DocumentID uuid.UUID
	Number     string
	Entries    []ledger.Entry
	JournalNos []string
}

var (
	// ErrDocumentNotFound indicates an unknown document id for the company.
	ErrDocumentNotFound = errors.New("posting: document not found")
	// ErrAlreadyPosted indicates the document has left DRAFT.
	ErrAlreadyPosted = errors.New("posting: document already posted")
	// ErrEmptyDocument indicates a document without lines.
	ErrEmptyDocument = errors.New("posting: document has no lines")
	// ErrSameLocation indicates a transfer line moving stock onto itself.
	ErrSameLocation = errors.New("posting: source and destination must differ")
	// ErrZeroDelta indicates an adjustment line with no effect.
	ErrZeroDelta = errors.New("posting: adjustment delta must be non-zero")
)

// PartialJournalFailure reports a committed ledger write whose accounting
// side effect failed. The stock movement stands; the journal needs a manual
// reconciling entry. Never retried automatically.
type PartialJournalFailure struct {
	RefType string
	RefID   string
	Err     error
}

func (e *PartialJournalFailure) Error() string {
	return fmt.Sprintf("posting: %s %s committed but journal posting failed: %v", e.RefType, e.RefID, e.Err)
}

func (e *PartialJournalFailure) Unwrap() error {
	return e.Err
}

// IsPartialJournalFailure reports whether err wraps a PartialJournalFailure.
func IsPartialJournalFailure(err error) bool {
	var target *PartialJournalFailure
	return errors.As(err, &target)
}
