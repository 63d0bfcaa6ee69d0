package repository

import (
	"context"
	"time"

	"github.com/iliyamo/dance-booking/internal/model"
)

// ReservationFilter narrows ListReservations.  Zero values mean "any".
// From is inclusive and To is exclusive; both compare against the
// reservation date.
type ReservationFilter struct {
	UserID      string
	ProfessorID string
	ClassID     string
	Status      string
	From        time.Time
	To          time.Time
}

// UserFilter narrows ListUsers.
type UserFilter struct {
	Role       string
	MinCredits int // users with credits >= MinCredits; 0 means any
	ActiveOnly bool
}

// Queries are the reads usable outside a transaction.  Results are
// materialised slices ordered as documented per method.
type Queries interface {
	GetUser(ctx context.Context, id string) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	// ListUsers orders by created_at ascending.
	ListUsers(ctx context.Context, f UserFilter) ([]model.User, error)

	GetClass(ctx context.Context, id string) (model.Class, error)
	// ListClasses orders by name.
	ListClasses(ctx context.Context, activeOnly bool) ([]model.Class, error)

	GetReservation(ctx context.Context, id string) (model.Reservation, error)
	// ListReservations orders by date descending, then created_at descending.
	ListReservations(ctx context.Context, f ReservationFilter) ([]model.Reservation, error)
	// LastReservationAt returns the creation time of the user's newest
	// reservation and false when the user never booked.
	LastReservationAt(ctx context.Context, userID string) (time.Time, bool, error)

	// ListCreditEntries orders by created_at ascending.
	ListCreditEntries(ctx context.Context, userID string) ([]model.CreditEntry, error)

	GetNotification(ctx context.Context, id string) (model.Notification, error)
	// ListNotifications orders by created_at descending; limit <= 0 means no limit.
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error)

	GetReport(ctx context.Context, id string) (model.Report, error)
	// ListReports orders by generated_at descending.  An empty
	// professorID lists every report.
	ListReports(ctx context.Context, professorID string) ([]model.Report, error)

	// ValidateRefresh returns the owner of a non-revoked, non-expired token.
	ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (string, error)
}

// Tx is the unit of work handed to WithTransaction.  The *ForUpdate
// reads lock the returned row until the transaction ends; counting
// reads lock the scanned range so concurrent writers serialise.
type Tx interface {
	Queries

	GetUserForUpdate(ctx context.Context, id string) (model.User, error)
	GetClassForUpdate(ctx context.Context, id string) (model.Class, error)
	GetReservationForUpdate(ctx context.Context, id string) (model.Reservation, error)
	// LastReservationAtForUpdate is LastReservationAt as a locking read,
	// so it sees bookings committed after the transaction's snapshot.
	LastReservationAtForUpdate(ctx context.Context, userID string) (time.Time, bool, error)

	// CountConfirmed counts confirmed reservations for one class occurrence.
	CountConfirmed(ctx context.Context, classID string, date time.Time) (int, error)
	// HasConfirmed reports whether the user already holds a confirmed
	// reservation at date.
	HasConfirmed(ctx context.Context, userID string, date time.Time) (bool, error)

	CreateUser(ctx context.Context, u model.User) error
	SetUserActive(ctx context.Context, id string, active bool, at time.Time) error
	SetCredits(ctx context.Context, userID string, credits int, at time.Time) error
	AppendCreditEntry(ctx context.Context, e model.CreditEntry) error

	CreateClass(ctx context.Context, c model.Class) error
	UpdateClass(ctx context.Context, c model.Class) error

	InsertReservation(ctx context.Context, r model.Reservation) error
	UpdateReservationStatus(ctx context.Context, id, status string, refunded bool, at time.Time) error

	InsertNotification(ctx context.Context, n model.Notification) error
	MarkNotificationRead(ctx context.Context, id string, at time.Time) error

	InsertReport(ctx context.Context, r model.Report) error

	StoreRefresh(ctx context.Context, t model.RefreshToken) error
	RevokeRefresh(ctx context.Context, tokenHash string, at time.Time) error
	RevokeAllRefresh(ctx context.Context, userID string, at time.Time) error
}

// TxFunc is the body of a transaction.  Returning an error rolls back
// every write made through tx.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is the persistence boundary of the application.  WithTransaction
// runs fn atomically: either every write inside fn becomes visible or
// none does.  Implementations may run fn more than once when the
// backend reports a transient conflict, so fn must not have side
// effects outside tx.
type Store interface {
	Queries
	WithTransaction(ctx context.Context, fn TxFunc) error
	Ping(ctx context.Context) error
}
