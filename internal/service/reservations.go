package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/dance-booking/internal/metrics"
	"github.com/iliyamo/dance-booking/internal/model"
	"github.com/iliyamo/dance-booking/internal/repository"
)

// Messages returned with a status change.
const (
	MsgCancelledRefunded = "Reservation cancelled and credit refunded"
	MsgCancelledNoRefund = "Reservation cancelled (no refund - too close to class time)"
	MsgUpdated           = "Reservation updated successfully"
	MsgCreated           = "Reservation created successfully"
)

// DefaultRefundWindow is how long before the class a cancellation
// still earns a refund.
const DefaultRefundWindow = 2 * time.Hour

// CreateReservationInput is the validated body of a booking request.
type CreateReservationInput struct {
	ClassID string
	UserID  string
	Date    time.Time
}

// StatusOutcome describes the result of UpdateStatus.
type StatusOutcome struct {
	Reservation model.Reservation
	Refunded    bool
	Message     string
}

// ReservationManager runs the reservation lifecycle.  Every check and
// write of one operation happens inside a single store transaction;
// notifications go out only after that transaction committed.
type ReservationManager struct {
	store  repository.Store
	ledger *CreditLedger
	emit   emitter
	rec    metrics.Recorder
	log    *slog.Logger

	// RefundWindow is the minimum time between cancellation and class
	// start for the credits to be returned.
	RefundWindow time.Duration
	// Now is the clock; tests replace it.
	Now func() time.Time
}

// NewReservationManager wires a manager.  A nil notifier disables
// notifications; nil rec and log fall back to no-op and slog.Default.
func NewReservationManager(store repository.Store, ledger *CreditLedger, notifier Notifier, rec metrics.Recorder, log *slog.Logger, refundWindow time.Duration) *ReservationManager {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	if refundWindow <= 0 {
		refundWindow = DefaultRefundWindow
	}
	return &ReservationManager{
		store:        store,
		ledger:       ledger,
		emit:         emitter{notifier: notifier, log: log, rec: rec},
		rec:          rec,
		log:          log,
		RefundWindow: refundWindow,
		Now:          func() time.Time { return time.Now().UTC() },
	}
}

// Create books one class occurrence for in.UserID.  The checks run in
// this order: class exists and is active, capacity, user balance,
// duplicate booking.  The first failing check decides the error.
func (m *ReservationManager) Create(ctx context.Context, caller model.Identity, in CreateReservationInput) (model.Reservation, error) {
	in.ClassID = strings.TrimSpace(in.ClassID)
	in.UserID = strings.TrimSpace(in.UserID)
	if in.ClassID == "" || in.UserID == "" || in.Date.IsZero() {
		return model.Reservation{}, fmt.Errorf("%w: classId, userId and date are required", ErrInvalidInput)
	}
	if err := Authorize(caller, ActionCreateReservation, Resource{OwnerID: in.UserID}); err != nil {
		return model.Reservation{}, err
	}
	date := model.NormalizeDate(in.Date)

	var res model.Reservation
	err := m.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		// lock the class row so concurrent bookings of it queue up
		class, err := tx.GetClassForUpdate(ctx, in.ClassID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrClassNotFound
		}
		if err != nil {
			return fmt.Errorf("load class: %w", err)
		}
		if !class.IsActive {
			return ErrClassInactive
		}

		// capacity of this occurrence
		booked, err := tx.CountConfirmed(ctx, class.ID, date)
		if err != nil {
			return fmt.Errorf("count confirmed: %w", err)
		}
		if booked >= class.MaxStudents {
			return ErrClassFull
		}

		// balance and active flag; this also locks the user row
		if _, err := m.ledger.Check(ctx, tx, in.UserID); err != nil {
			return err
		}

		// one confirmed booking per user and date
		dup, err := tx.HasConfirmed(ctx, in.UserID, date)
		if err != nil {
			return fmt.Errorf("check duplicate: %w", err)
		}
		if dup {
			return ErrDuplicateBooking
		}

		now := m.Now()
		res = model.Reservation{
			ID:          uuid.NewString(),
			ClassID:     class.ID,
			UserID:      in.UserID,
			ProfessorID: class.ProfessorID,
			Date:        date,
			Status:      model.StatusConfirmed,
			CreditsUsed: m.ledger.Cost,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.InsertReservation(ctx, res); err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}
		// debit after the insert so the ledger entry can reference it
		used, err := m.ledger.Reserve(ctx, tx, in.UserID, res.ID)
		if err != nil {
			return err
		}
		res.CreditsUsed = used
		return nil
	})
	if err != nil {
		if reason := rejectionReason(err); reason != "" {
			m.rec.BookingRejected(reason)
		}
		return model.Reservation{}, err
	}

	// side effects only after commit
	m.rec.ReservationCreated()
	m.log.Info("reservation confirmed",
		slog.String("reservation_id", res.ID),
		slog.String("class_id", res.ClassID),
		slog.String("user_id", res.UserID),
		slog.Time("date", res.Date),
	)
	m.emit.emit(ctx, NewNotification(res.UserID, "Reservation confirmed",
		fmt.Sprintf("Your class on %s is booked.", res.Date.Format(time.RFC1123)),
		model.NotifyReservationConfirmed, m.Now()))
	return res, nil
}

// UpdateStatus moves a reservation to status.  Allowed transitions are
// confirmed to cancelled and confirmed to completed.  Cancelling at
// least RefundWindow before the class returns CreditsUsed; cancelling
// later returns nothing.  Either way the status change and the refund
// commit together.
func (m *ReservationManager) UpdateStatus(ctx context.Context, caller model.Identity, id, status string) (StatusOutcome, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !model.IsValidStatus(status) {
		return StatusOutcome{}, ErrInvalidStatus
	}

	var out StatusOutcome
	err := m.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		out = StatusOutcome{}
		// lock the reservation; a second cancel waits here and then sees it cancelled
		r, err := tx.GetReservationForUpdate(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrReservationNotFound
		}
		if err != nil {
			return fmt.Errorf("load reservation: %w", err)
		}
		if err := Authorize(caller, ActionUpdateReservation, Resource{OwnerID: r.UserID, ProfessorID: r.ProfessorID}); err != nil {
			return err
		}

		now := m.Now()
		switch {
		case status == model.StatusCancelled:
			switch r.Status {
			case model.StatusCancelled:
				return ErrAlreadyCancelled
			case model.StatusCompleted:
				return ErrInvalidTransition
			}
			// refund window is inclusive
			refund := r.Date.Sub(now) >= m.RefundWindow
			if err := tx.UpdateReservationStatus(ctx, r.ID, model.StatusCancelled, refund, now); err != nil {
				return fmt.Errorf("update status: %w", err)
			}
			if refund {
				if err := m.ledger.Refund(ctx, tx, r.UserID, r.CreditsUsed, r.ID); err != nil {
					return err
				}
				out.Message = MsgCancelledRefunded
			} else {
				out.Message = MsgCancelledNoRefund
			}
			r.Refunded = refund
			out.Refunded = refund

		case status == model.StatusCompleted && r.Status == model.StatusConfirmed:
			if err := tx.UpdateReservationStatus(ctx, r.ID, model.StatusCompleted, r.Refunded, now); err != nil {
				return fmt.Errorf("update status: %w", err)
			}
			out.Message = MsgUpdated

		default:
			return ErrInvalidTransition
		}

		r.Status = status
		r.UpdatedAt = now
		out.Reservation = r
		return nil
	})
	if err != nil {
		return StatusOutcome{}, err
	}

	// log, count and notify after commit
	r := out.Reservation
	m.log.Info("reservation status changed",
		slog.String("reservation_id", r.ID),
		slog.String("status", r.Status),
		slog.Bool("refunded", out.Refunded),
	)
	if r.Status == model.StatusCancelled {
		m.rec.ReservationCancelled(out.Refunded)
		body := "Your reservation was cancelled. No credits were refunded."
		if out.Refunded {
			body = fmt.Sprintf("Your reservation was cancelled and %d credit(s) were refunded.", r.CreditsUsed)
		}
		m.emit.emit(ctx, NewNotification(r.UserID, "Reservation cancelled", body, model.NotifyReservationCancelled, m.Now()))
	} else {
		m.rec.ReservationCompleted(1)
	}
	return out, nil
}

// List returns the reservations visible to caller, newest date first:
// students see their own, teachers the ones for classes they teach,
// admins everything.
func (m *ReservationManager) List(ctx context.Context, caller model.Identity) ([]model.Reservation, error) {
	var f repository.ReservationFilter
	switch caller.Role {
	case model.RoleStudent:
		f.UserID = caller.UserID
	case model.RoleTeacher:
		f.ProfessorID = caller.UserID
	case model.RoleAdmin:
	default:
		return nil, ErrForbidden
	}
	if caller.UserID == "" {
		return nil, ErrForbidden
	}
	return m.store.ListReservations(ctx, f)
}

// Get returns one reservation if caller may see it.
func (m *ReservationManager) Get(ctx context.Context, caller model.Identity, id string) (model.Reservation, error) {
	r, err := m.store.GetReservation(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Reservation{}, ErrReservationNotFound
	}
	if err != nil {
		return model.Reservation{}, err
	}
	if err := Authorize(caller, ActionViewReservation, Resource{OwnerID: r.UserID, ProfessorID: r.ProfessorID}); err != nil {
		return model.Reservation{}, err
	}
	return r, nil
}

// CompleteExpired marks every confirmed reservation whose date is more
// than grace in the past as completed.  It returns how many changed.
func (m *ReservationManager) CompleteExpired(ctx context.Context, grace time.Duration) (int, error) {
	now := m.Now()
	cutoff := now.Add(-grace)
	var n int
	err := m.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		n = 0
		due, err := tx.ListReservations(ctx, repository.ReservationFilter{Status: model.StatusConfirmed, To: cutoff})
		if err != nil {
			return err
		}
		for _, r := range due {
			if err := tx.UpdateReservationStatus(ctx, r.ID, model.StatusCompleted, r.Refunded, now); err != nil {
				return fmt.Errorf("complete %s: %w", r.ID, err)
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.rec.ReservationCompleted(n)
	}
	return n, nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrClassNotFound):
		return "class_not_found"
	case errors.Is(err, ErrClassInactive):
		return "class_inactive"
	case errors.Is(err, ErrClassFull):
		return "class_full"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrUserInactive):
		return "user_inactive"
	case errors.Is(err, ErrInsufficientCredits):
		return "insufficient_credits"
	case errors.Is(err, ErrDuplicateBooking):
		return "duplicate_booking"
	case errors.Is(err, repository.ErrTxConflict):
		return "tx_conflict"
	}
	return ""
}
