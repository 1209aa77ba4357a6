package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Class enumerates the inventory ledgers kept per company.
type Class string

const (
	// ClassRaw is the raw-materials ledger.
	ClassRaw Class = "RAW"
	// ClassWIP is the work-in-progress ledger.
	ClassWIP Class = "WIP"
	// ClassFinished is the finished-goods ledger.
	ClassFinished Class = "FINISHED"
)

// Valid reports whether c is a known inventory class.
func (c Class) Valid() bool {
	switch c {
	case ClassRaw, ClassWIP, ClassFinished:
		return true
	}
	return false
}

// Kind enumerates supported inventory movements.
type Kind string

const (
	KindReceipt       Kind = "RECEIPT"
	KindIssue         Kind = "ISSUE"
	KindTransferIn    Kind = "TRANSFER_IN"
	KindTransferOut   Kind = "TRANSFER_OUT"
	KindAdjustIn      Kind = "ADJUST_IN"
	KindAdjustOut     Kind = "ADJUST_OUT"
	KindProductionIn  Kind = "PRODUCTION_IN"
	KindProductionOut Kind = "PRODUCTION_OUT"
	KindSalesOut      Kind = "SALES_OUT"
)

// Inbound reports whether the kind increases stock.
func (k Kind) Inbound() bool {
	switch k {
	case KindReceipt, KindTransferIn, KindAdjustIn, KindProductionIn:
		return true
	}
	return false
}

// Valid reports whether k is a known movement kind.
func (k Kind) Valid() bool {
	switch k {
	case KindReceipt, KindIssue, KindTransferIn, KindTransferOut,
		KindAdjustIn, KindAdjustOut, KindProductionIn, KindProductionOut, KindSalesOut:
		return true
	}
	return false
}

// Reference points a ledger entry back at the business document that
// produced it.
type Reference struct {
	Type   string
	ID     string
	Number string
}

// Entry is one immutable inventory movement. Entries are only created by
// Service.Append and are never updated or deleted; corrections are new
// offsetting entries.
type Entry struct {
	ID             int64
	CompanyID      int64
	Class          Class
	ItemID         int64
	LocationID     int64
	PeriodID       int64
	TxDate         time.Time
	Kind           Kind
	QtyIn          decimal.Decimal
	QtyOut         decimal.Decimal
	UnitCost       decimal.Decimal
	TotalCost      decimal.Decimal
	RunningQty     decimal.Decimal
	RunningAvgCost decimal.Decimal
	Ref            Reference
	CreatedBy      int64
	CreatedAt      time.Time
}

// Draft is the caller-supplied part of an entry. Exactly one of QtyIn and
// QtyOut must be positive.
type Draft struct {
	CompanyID  int64
	Class      Class
	ItemID     int64
	LocationID int64
	TxDate     time.Time
	Kind       Kind
	QtyIn      decimal.Decimal
	QtyOut     decimal.Decimal
	UnitCost   decimal.Decimal
	Ref        Reference
	CreatedBy  int64
}

// Balance summarises stock on hand for one (company, class, item, location)
// key. Maintained atomically with every appended entry.
type Balance struct {
	CompanyID  int64
	Class      Class
	ItemID     int64
	LocationID int64
	Qty        decimal.Decimal
	AvgCost    decimal.Decimal
	UpdatedAt  time.Time
}

// Filter narrows History queries. Zero fields are ignored.
type Filter struct {
	CompanyID  int64
	Class      Class
	ItemID     int64
	LocationID int64
	From       time.Time
	To         time.Time
	Limit      int
}

// Validation errors returned before any write.
var (
	ErrMissingKey      = errors.New("ledger: company, item and location required")
	ErrInvalidClass    = errors.New("ledger: unknown inventory class")
	ErrInvalidKind     = errors.New("ledger: unknown movement kind")
	ErrInvalidQuantity = errors.New("ledger: exactly one of qty_in and qty_out must be positive")
	ErrInvalidUnitCost = errors.New("ledger: unit cost must be >= 0")
	ErrMissingDate     = errors.New("ledger: transaction date required")
)

// InsufficientStockError is returned when an entry would drive the running
// balance below zero. Nothing is written.
type InsufficientStockError struct {
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("ledger: insufficient stock: available %s, requested %s",
		e.Available.String(), e.Requested.String())
}

// IsInsufficientStock reports whether err is an InsufficientStockError.
func IsInsufficientStock(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}

// Validate rejects malformed drafts before any storage work happens.
func (d Draft) Validate() error {
	if d.CompanyID == 0 || d.ItemID == 0 || d.LocationID == 0 {
		return ErrMissingKey
	}
	if !d.Class.Valid() {
		return ErrInvalidClass
	}
	if !d.Kind.Valid() {
		return ErrInvalidKind
	}
	if d.TxDate.IsZero() {
		return ErrMissingDate
	}
	inPositive := d.QtyIn.IsPositive()
	outPositive := d.QtyOut.IsPositive()
	if inPositive == outPositive || d.QtyIn.IsNegative() || d.QtyOut.IsNegative() {
		return ErrInvalidQuantity
	}
	if inPositive != d.Kind.Inbound() {
		return ErrInvalidQuantity
	}
	if d.UnitCost.IsNegative() {
		return ErrInvalidUnitCost
	}
	return nil
}
