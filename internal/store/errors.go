package store

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicateClaim is returned when an identical (subject, body,
	// creator) triple is resubmitted inside the de-duplication window.
	ErrDuplicateClaim = errors.New("duplicate claim")
)
