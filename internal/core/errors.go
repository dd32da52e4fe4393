package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a lookup by id or unique key finds no
	// record. A normal outcome for single-record reads; callers classify it
	// with errors.Is.
	ErrNotFound = errors.New("record not found")

	// ErrNoMatch is returned by Update and Destroy when their predicate
	// matches zero records. Zero-match mutations are failures, never silent
	// no-ops. ErrNoMatch wraps ErrNotFound.
	ErrNoMatch = fmt.Errorf("no records matched: %w", ErrNotFound)

	// ErrConflict is returned when a repository-level uniqueness rule is
	// violated (duplicate SKU, email, username).
	ErrConflict = errors.New("unique constraint conflict")

	// ErrInvariant is returned when a domain rule fails, such as a stock
	// subtraction that would go negative. The collection directly touched is
	// left unmodified.
	ErrInvariant = errors.New("domain invariant violated")

	// ErrStorage wraps collection-file read/write failures. Callers must not
	// assume partial success.
	ErrStorage = errors.New("storage failure")
)
