package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrUnidentified indicates the identity headers were missing or invalid.
	ErrUnidentified = errors.New("caller identity missing")
)
