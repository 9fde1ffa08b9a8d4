package repository

import "errors"

// Common repository errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateState is returned when a flow state value is already stored
	ErrDuplicateState = errors.New("flow state already exists")
)
