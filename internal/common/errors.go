// Package common defines sentinel errors shared by the storage layer and the
// services built on top of it. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Validation errors.
	ErrInvalidEntry    = errors.New("invalid entry")
	ErrInvalidReminder = errors.New("invalid reminder")

	// ErrUnsupportedDriver is returned when a store is opened with a driver name
	// that has no repository implementation.
	ErrUnsupportedDriver = errors.New("unsupported store driver")
)
