// Package service holds the booking domain: the credit ledger, the
// reservation lifecycle, the access policy and the reporting and
// notification services built on top of the repository.Store.
package service

import "errors"

// Client errors.  Handlers map each of these to a 4xx status; none of
// them is ever retried.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrForbidden           = errors.New("forbidden")
	ErrClassNotFound       = errors.New("class not found")
	ErrClassInactive       = errors.New("class is not active")
	ErrClassFull           = errors.New("class is full")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserInactive        = errors.New("user is not active")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrDuplicateBooking    = errors.New("already booked for this date")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrAlreadyCancelled    = errors.New("reservation already cancelled")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrNotFound            = errors.New("not found")
)
