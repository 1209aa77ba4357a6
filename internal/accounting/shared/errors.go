package shared

import "errors"

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrInvalidLine indicates a line with both or neither side populated.
	ErrInvalidLine = errors.New("accounting: line must carry exactly one of debit and credit")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")
	// ErrDateOutOfRange indicates journal date outside its period.
	ErrDateOutOfRange = errors.New("accounting: date outside period")
)
