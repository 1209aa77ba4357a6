package journals

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/accounting/shared"
)

// Epsilon absorbs currency rounding when comparing debit and credit totals.
var Epsilon = decimal.New(1, -2) // 0.01

// LineInput describes a journal line for a posting request.
type LineInput struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Memo      string
}

// PostingInput groups fields required to post a journal.
type PostingInput struct {
	CompanyID int64
	Date      time.Time
	RefType   string
	RefID     string
	RefNumber string
	Memo      string
	CreatedBy int64
	Lines     []LineInput
}

// Validate checks the posting before any write: at least two lines, each
// line exactly one of debit/credit > 0, totals balanced within Epsilon.
func (in PostingInput) Validate() error {
	if in.CompanyID == 0 {
		return errors.New("accounting: company required")
	}
	if in.Date.IsZero() {
		return errors.New("accounting: date required")
	}
	if in.RefType == "" || in.RefID == "" {
		return errors.New("accounting: reference required")
	}
	if len(in.Lines) < 2 {
		return shared.ErrTooFewLines
	}
	debit, credit := decimal.Zero, decimal.Zero
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("accounting: line %d missing account: %w", idx, shared.ErrInvalidLine)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("accounting: line %d negative amount: %w", idx, shared.ErrInvalidLine)
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return fmt.Errorf("accounting: line %d: %w", idx, shared.ErrInvalidLine)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if debit.Sub(credit).Abs().GreaterThan(Epsilon) {
		return shared.ErrUnbalanced
	}
	return nil
}
