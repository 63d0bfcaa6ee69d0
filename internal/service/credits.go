package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/dance-booking/internal/metrics"
	"github.com/iliyamo/dance-booking/internal/model"
	"github.com/iliyamo/dance-booking/internal/repository"
)

// Payment event types accepted from the payment provider.
const (
	PaymentCreated   = "payment.created"
	PaymentApproved  = "payment.approved"
	PaymentCancelled = "payment.cancelled"
	PaymentRejected  = "payment.rejected"
)

// PaymentEvent is a payment provider callback.
type PaymentEvent struct {
	Type         string
	UserID       string
	Amount       string
	CreditsToAdd int
	Reason       string
}

// PaymentResult reports what ApplyPayment did.
type PaymentResult struct {
	Handled      bool
	CreditsAdded int
	Balance      int
}

// CreditService exposes the ledger to admins, the payment webhook and
// the expiration job.
type CreditService struct {
	store  repository.Store
	ledger *CreditLedger
	emit   emitter
	log    *slog.Logger
	Now    func() time.Time
}

// NewCreditService wires a CreditService.
func NewCreditService(store repository.Store, ledger *CreditLedger, notifier Notifier, rec metrics.Recorder, log *slog.Logger) *CreditService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &CreditService{
		store:  store,
		ledger: ledger,
		emit:   emitter{notifier: notifier, log: log, rec: rec},
		log:    log,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// Grant adds amount credits to userID on behalf of caller.
func (s *CreditService) Grant(ctx context.Context, caller model.Identity, userID string, amount int, reason string) (model.User, error) {
	if err := Authorize(caller, ActionGrantCredits, Resource{OwnerID: userID}); err != nil {
		return model.User{}, err
	}
	if strings.TrimSpace(reason) == "" {
		reason = "manual top-up"
	}
	var u model.User
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		u, err = s.ledger.Grant(ctx, tx, userID, amount, reason)
		return err
	})
	if err != nil {
		return model.User{}, err
	}
	s.log.Info("credits granted",
		slog.String("user_id", userID),
		slog.Int("amount", amount),
		slog.String("by", caller.UserID),
	)
	return u, nil
}

// ApplyPayment credits the user for created or approved payments and
// notifies them of failed ones.  Unknown event types are ignored.
func (s *CreditService) ApplyPayment(ctx context.Context, ev PaymentEvent) (PaymentResult, error) {
	if strings.TrimSpace(ev.UserID) == "" {
		return PaymentResult{}, fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	switch ev.Type {
	case PaymentCreated, PaymentApproved:
		if ev.CreditsToAdd <= 0 {
			return PaymentResult{}, fmt.Errorf("%w: creditsToAdd must be positive", ErrInvalidInput)
		}
		reason := ev.Reason
		if reason == "" {
			reason = "credit purchase"
		}
		var u model.User
		err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
			var err error
			u, err = s.ledger.Grant(ctx, tx, ev.UserID, ev.CreditsToAdd, reason)
			return err
		})
		if err != nil {
			return PaymentResult{}, err
		}
		s.log.Info("payment applied",
			slog.String("user_id", ev.UserID),
			slog.Int("credits", ev.CreditsToAdd),
			slog.String("amount", ev.Amount),
		)
		s.emit.emit(ctx, NewNotification(ev.UserID, "Payment received",
			fmt.Sprintf("%d credit(s) were added to your account.", ev.CreditsToAdd),
			model.NotifyPaymentSuccess, s.Now()))
		return PaymentResult{Handled: true, CreditsAdded: ev.CreditsToAdd, Balance: u.Credits}, nil

	case PaymentCancelled, PaymentRejected:
		s.emit.emit(ctx, NewNotification(ev.UserID, "Payment failed",
			"Your payment could not be processed. No credits were added.",
			model.NotifyPaymentFailed, s.Now()))
		return PaymentResult{Handled: true}, nil
	}
	s.log.Warn("unhandled payment event", slog.String("type", ev.Type))
	return PaymentResult{}, nil
}

// ExpireInactive zeroes the balance of students who still hold credits
// but have not booked since cutoff (or never booked) and tells them.
// It returns the number of users whose credits expired.
//
// Each candidate is locked before its last booking is read.  Create
// locks the same user row, so a booking racing the job either commits
// first and is seen here, or waits until the expiry is done.
func (s *CreditService) ExpireInactive(ctx context.Context, cutoff time.Time) (int, error) {
	type expiry struct {
		userID  string
		credits int
	}
	var expired []expiry
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		expired = expired[:0]
		students, err := tx.ListUsers(ctx, repository.UserFilter{Role: model.RoleStudent, MinCredits: 1})
		if err != nil {
			return err
		}
		for _, u := range students {
			// Lock the user, then re-read activity with a locking read.
			if _, err := tx.GetUserForUpdate(ctx, u.ID); err != nil {
				return err
			}
			last, ok, err := tx.LastReservationAtForUpdate(ctx, u.ID)
			if err != nil {
				return err
			}
			if ok && !last.Before(cutoff) {
				continue
			}
			n, err := s.ledger.Expire(ctx, tx, u.ID, "inactivity expiration")
			if err != nil {
				return err
			}
			if n > 0 {
				expired = append(expired, expiry{userID: u.ID, credits: n})
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, e := range expired {
		s.emit.emit(ctx, NewNotification(e.userID, "Credits expired",
			fmt.Sprintf("%d unused credit(s) expired after a period without bookings.", e.credits),
			model.NotifyCreditExpiration, s.Now()))
	}
	return len(expired), nil
}
