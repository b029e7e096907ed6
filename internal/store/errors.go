// Package store defines the appointment persistence boundary: the interfaces
// the booking service talks to and the sentinel errors every implementation
// maps its failures onto.
package store

import "errors"

var (
	// ErrConflict: the slot is taken. Raised when the exclusion constraint
	// rejects an overlapping occupying appointment.
	ErrConflict = errors.New("appointment slot conflict")

	// ErrNotFound: no appointment with that id, or it no longer occupies a
	// slot (already cancelled or finished).
	ErrNotFound = errors.New("appointment not found")

	// ErrIdempotencyConflict: the idempotency key was already used for a
	// different booking draft.
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
)
