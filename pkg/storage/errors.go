package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a query result does not exist.
	ErrNotFound = errors.New("query result not found")

	// ErrConflict is returned when a result with the given ID already exists.
	ErrConflict = errors.New("query result already exists")
)
