// Package data provides the domain records and their MongoDB stores.
package data

import "errors"

// Store-level sentinels. Services translate these into apperr kinds.
var (
	ErrNotFound    = errors.New("record not found")
	ErrDuplicate   = errors.New("record already exists")
	ErrOverlap     = errors.New("booking overlaps an existing reservation")
	ErrStaleStatus = errors.New("booking status changed concurrently")
	ErrLockBusy    = errors.New("resource locked by a concurrent booking request")
)
