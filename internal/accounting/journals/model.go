package journals

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Entry captures one posted journal. Immutable after posting.
type Entry struct {
	ID         int64
	CompanyID  int64
	FiscalYear int
	Number     int64
	JournalNo  string
	PeriodID   int64
	Date       time.Time
	RefType    string
	RefID      string
	RefNumber  string
	Memo       string
	CreatedBy  int64
	PostedAt   time.Time
	Lines      []Line
}

// Line stores a debit or credit amount for an account. Exactly one side is
// nonzero.
type Line struct {
	ID        int64
	JournalID int64
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Memo      string
}

// FormatJournalNo renders the sequential journal number, e.g. JV-2026-00042.
func FormatJournalNo(year int, number int64) string {
	return fmt.Sprintf("JV-%d-%05d", year, number)
}
