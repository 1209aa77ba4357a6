package periods

import (
	"errors"
	"time"
)

// Status enumerates valid period states. Closing is one-way: there is no
// CLOSED to OPEN transition anywhere in the codebase.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Period represents one accounting period window for a company. Dates are
// calendar dates; the range is inclusive on both ends.
type Period struct {
	ID        int64
	CompanyID int64
	Code      string
	StartDate time.Time
	EndDate   time.Time
	Status    Status
	ClosedAt  *time.Time
	ClosedBy  *int64
}

// Contains reports whether the calendar date falls inside the period range.
func (p Period) Contains(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}

var (
	// ErrPeriodNotFound indicates no period covers the transaction date.
	ErrPeriodNotFound = errors.New("accounting: no period for date")
	// ErrPeriodClosed indicates the covering period no longer accepts postings.
	ErrPeriodClosed = errors.New("accounting: period closed")
	// ErrPeriodAlreadyClosed indicates a second close attempt.
	ErrPeriodAlreadyClosed = errors.New("accounting: period already closed")
	// ErrPeriodOverlap indicates the new period overlaps an existing one.
	ErrPeriodOverlap = errors.New("accounting: period overlaps existing period")
	// ErrInvalidRange indicates end date before start date.
	ErrInvalidRange = errors.New("accounting: period end before start")
)
