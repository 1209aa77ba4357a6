package posting

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/ledger"
)

// ReceiveInput describes a direct stock receipt without a draft document.
type ReceiveInput struct {
	CompanyID   int64
	Class       ledger.Class
	ItemID      int64
	LocationID  int64
	Date        time.Time
	Qty         decimal.Decimal
	UnitCost    decimal.Decimal
	SupplierRef string
	CreatedBy   int64
}

// IssueInput describes a direct issue to production, costed at the running
// average.
type IssueInput struct {
	CompanyID  int64
	Class      ledger.Class
	ItemID     int64
	LocationID int64
	Date       time.Time
	Qty        decimal.Decimal
	Ref        string
	CreatedBy  int64
}

// SaleIssueInput describes a finished-goods issue for a sale. SaleAmount is
// the revenue side; cost comes from the running average.
type SaleIssueInput struct {
	CompanyID  int64
	ItemID     int64
	LocationID int64
	Date       time.Time
	Qty        decimal.Decimal
	SaleAmount decimal.Decimal
	Ref        string
	CreatedBy  int64
}

// CreateGoodsReceiptInput creates a draft receipt.
type CreateGoodsReceiptInput struct {
	CompanyID   int64
	Class       ledger.Class
	SupplierRef string
	Date        time.Time
	CreatedBy   int64
	Lines       []GoodsReceiptLine
}

// CreateTransferInput creates a draft transfer.
type CreateTransferInput struct {
	CompanyID int64
	Date      time.Time
	Note      string
	CreatedBy int64
	Lines     []StockTransferLine
}

// CreateAdjustmentInput creates a draft adjustment.
type CreateAdjustmentInput struct {
	CompanyID int64
	Date      time.Time
	Reason    string
	CreatedBy int64
	Lines     []StockAdjustmentLine
}

var errMissingFields = errors.New("posting: company, date and creator required")

func (in ReceiveInput) validate() error {
	if in.CompanyID == 0 || in.Date.IsZero() || in.CreatedBy == 0 {
		return errMissingFields
	}
	if !in.Class.Valid() {
		return ledger.ErrInvalidClass
	}
	if !in.Qty.IsPositive() {
		return ledger.ErrInvalidQuantity
	}
	if in.UnitCost.IsNegative() {
		return ledger.ErrInvalidUnitCost
	}
	return nil
}

func (in IssueInput) validate() error {
	if in.CompanyID == 0 || in.Date.IsZero() || in.CreatedBy == 0 {
		return errMissingFields
	}
	if !in.Class.Valid() {
		return ledger.ErrInvalidClass
	}
	if !in.Qty.IsPositive() {
		return ledger.ErrInvalidQuantity
	}
	return nil
}

func (in SaleIssueInput) validate() error {
	if in.CompanyID == 0 || in.Date.IsZero() || in.CreatedBy == 0 {
		return errMissingFields
	}
	if !in.Qty.IsPositive() {
		return ledger.ErrInvalidQuantity
	}
	if in.SaleAmount.IsNegative() {
		return ledger.ErrInvalidUnitCost
	}
	return nil
}

func (in CreateGoodsReceiptInput) validate() error {
	if in.CompanyID == 0 || in.Date.IsZero() || in.CreatedBy == 0 {
		return errMissingFields
	}
	if !in.Class.Valid() {
		return ledger.ErrInvalidClass
	}
	if len(in.Lines) == 0 {
		return ErrEmptyDocument
	}
	for idx, line := range in.Lines {
		if line.ItemID == 0 || line.LocationID == 0 {
			return fmt.Errorf("posting: line %d: %w", idx, ledger.ErrMissingKey)
		}
		if !line.Qty.IsPositive() {
			return fmt.Errorf("posting: line %d: %w", idx, ledger.ErrInvalidQuantity)
		}
		if line.UnitCost.IsNegative() {
			return fmt.Errorf("posting: line %d: %w", idx, ledger.ErrInvalidUnitCost)
		}
	}
	return nil
}

func (in CreateTransferInput) validate() error {
	if in.CompanyID == 0 || in.Date.IsZero() || in.CreatedBy == 0 {
		return errMissingFields
	}
	if len(in.Lines) == 0 {
		return ErrEmptyDocument
	}
	for idx, line := range in.Lines {
		if line.ItemID == 0 || line.SrcLocationID == 0 || line.DstLocationID == 0 {
			return fmt.Errorf("posting: line %d: %w", idx, ledger.ErrMissingKey)
		}
		if !line.SrcClass.Valid() || !line.DstClass.Valid() {
			return fmt.Errorf("posting: line %d: %w", idx, ledger.ErrInvalidClass)
		}
		if !line.Qty.IsPositive() {
			return fmt.Errorf("posting: line %d: %w", idx, ledger.ErrInvalidQuantity)
		}
		if line.SrcClass == line.DstClass && line.SrcLocationID == line.DstLocationID {
			return fmt.Errorf("posting: line %d: %w", idx, ErrSameLocation)
		}
	}
	return nil
}

func (in CreateAdjustmentInput) validate() error {
	if in.CompanyID == 0 || in.Date.IsZero() || in.CreatedBy == 0 {
		return errMissingFields
	}
	if len(in.Lines) == 0 {
		return ErrEmptyDocument
	}
	for idx, line := range in.Lines {
		if line.ItemID == 0 || line.LocationID == 0 {
			return fmt.Errorf("posting: line %d: %w", idx, ledger.ErrMissingKey)
		}
		if !line.Class.Valid() {
			return fmt.Errorf("posting: line %d: %w", idx, ledger.ErrInvalidClass)
		}
		if line.QtyDelta.IsZero() {
			return fmt.Errorf("posting: line %d: %w", idx, ErrZeroDelta)
		}
		if line.UnitCost.IsNegative() {
			return fmt.Errorf("posting: line %d: %w", idx, ledger.ErrInvalidUnitCost)
		}
	}
	return nil
}

// FormatDocumentNo renders a sequential document number, e.g. GRN-2026-00007.
func FormatDocumentNo(kind string, year int, number int64) string {
	return fmt.Sprintf("%s-%d-%05d", kind, year, number)
}
