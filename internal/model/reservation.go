package model

import "time"

// Reservation statuses.  Cancelled and completed are terminal.
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// IsValidStatus reports whether s is a known reservation status.
func IsValidStatus(s string) bool {
	return s == StatusConfirmed || s == StatusCancelled || s == StatusCompleted
}

// Reservation records a user's booking for one dated occurrence of
// a class.  ProfessorID is copied from the class at creation so that
// teacher-scoped listings and reports need no join.
//
// Fields:
//  ID          – UUID primary key.
//  ClassID     – class being booked.
//  UserID      – student holding the reservation.
//  ProfessorID – teacher of the class at booking time.
//  Date        – booked occurrence, UTC, second precision.
//  Status      – confirmed, cancelled or completed.
//  CreditsUsed – credits debited when the booking was created.
//  Refunded    – true when cancellation returned CreditsUsed.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Reservation struct {
	ID          string    // reservations.id
	ClassID     string    // reservations.class_id
	UserID      string    // reservations.user_id
	ProfessorID string    // reservations.professor_id
	Date        time.Time // reservations.date
	Status      string    // reservations.status
	CreditsUsed int       // reservations.credits_used
	Refunded    bool      // reservations.refunded
	CreatedAt   time.Time // reservations.created_at
	UpdatedAt   time.Time // reservations.updated_at
}

// NormalizeDate converts a booking date into the canonical form used
// for equality checks: UTC, truncated to whole seconds.
func NormalizeDate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
