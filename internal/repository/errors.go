// Package repository defines error types that are reused across the
// store implementations.  These sentinel values allow higher layers
// such as services and handlers to distinguish between different
// failure scenarios without knowing which backend is in use.
package repository

import "errors"

// ErrNotFound is returned when a looked-up row does not exist.  Both
// the MySQL and the in-memory store translate their native "no rows"
// condition into this value.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when inserting a user whose email is
// already taken.  Handlers should translate this into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrTxConflict is returned by WithTransaction when the database kept
// reporting deadlocks or lock wait timeouts after the configured
// number of retries.  Nothing was committed; the caller may try again.
var ErrTxConflict = errors.New("transaction conflict")
