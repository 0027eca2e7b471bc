// Package database defines the contract errors of the durable store.
// A short code is resolvable if and only if it has an active record here;
// the resolution cache is a performance artifact on top, never a source of
// truth.
package database

import "errors"

var (
	// ErrShortCodeExists is returned when an attempt is made to persist
	// a record whose short code is already active.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrURLNotFound is returned when no record exists for a short code.
	// It is a terminal outcome, distinct from the store being unreachable.
	ErrURLNotFound = errors.New("url not found")
)
