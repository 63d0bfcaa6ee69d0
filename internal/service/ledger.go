package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/dance-booking/internal/model"
	"github.com/iliyamo/dance-booking/internal/repository"
)

// CreditLedger owns every change to a user's credit balance.  Each
// method works on the caller's transaction so the balance change and
// the write that caused it commit or roll back together, and each
// mutation appends one audit entry.
type CreditLedger struct {
	// Cost is the number of credits one booking consumes.
	Cost int
	// Now is the clock used for timestamps.
	Now func() time.Time
}

// NewCreditLedger returns a ledger charging cost credits per booking.
func NewCreditLedger(cost int) *CreditLedger {
	if cost < 1 {
		cost = 1
	}
	return &CreditLedger{Cost: cost, Now: func() time.Time { return time.Now().UTC() }}
}

// Check locks the user row and verifies the user can pay for one
// booking.  Nothing is written.
func (l *CreditLedger) Check(ctx context.Context, tx repository.Tx, userID string) (model.User, error) {
	u, err := l.lockUser(ctx, tx, userID)
	if err != nil {
		return model.User{}, err
	}
	if !u.IsActive {
		return model.User{}, ErrUserInactive
	}
	if u.Credits < l.Cost {
		return model.User{}, ErrInsufficientCredits
	}
	return u, nil
}

// Reserve debits Cost credits for reservationID and returns the
// amount debited.
func (l *CreditLedger) Reserve(ctx context.Context, tx repository.Tx, userID, reservationID string) (int, error) {
	u, err := l.lockUser(ctx, tx, userID)
	if err != nil {
		return 0, err
	}
	if u.Credits < l.Cost {
		return 0, ErrInsufficientCredits
	}
	if err := l.apply(ctx, tx, u, -l.Cost, model.CreditDebit, reservationID, "class booking"); err != nil {
		return 0, err
	}
	return l.Cost, nil
}

// Refund returns amount credits for a cancelled reservation.  The
// caller guarantees it runs at most once per reservation.
func (l *CreditLedger) Refund(ctx context.Context, tx repository.Tx, userID string, amount int, reservationID string) error {
	if amount <= 0 {
		return nil
	}
	u, err := l.lockUser(ctx, tx, userID)
	if err != nil {
		return err
	}
	return l.apply(ctx, tx, u, amount, model.CreditRefund, reservationID, "cancellation refund")
}

// Grant adds purchased or gifted credits.
func (l *CreditLedger) Grant(ctx context.Context, tx repository.Tx, userID string, amount int, reason string) (model.User, error) {
	if amount <= 0 {
		return model.User{}, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	u, err := l.lockUser(ctx, tx, userID)
	if err != nil {
		return model.User{}, err
	}
	if err := l.apply(ctx, tx, u, amount, model.CreditGrant, "", reason); err != nil {
		return model.User{}, err
	}
	u.Credits += amount
	return u, nil
}

// Expire zeroes the balance and returns how many credits were removed.
func (l *CreditLedger) Expire(ctx context.Context, tx repository.Tx, userID, reason string) (int, error) {
	u, err := l.lockUser(ctx, tx, userID)
	if err != nil {
		return 0, err
	}
	if u.Credits <= 0 {
		return 0, nil
	}
	expired := u.Credits
	if err := l.apply(ctx, tx, u, -expired, model.CreditExpire, "", reason); err != nil {
		return 0, err
	}
	return expired, nil
}

func (l *CreditLedger) lockUser(ctx context.Context, tx repository.Tx, userID string) (model.User, error) {
	u, err := tx.GetUserForUpdate(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("lock user: %w", err)
	}
	return u, nil
}

func (l *CreditLedger) apply(ctx context.Context, tx repository.Tx, u model.User, delta int, kind, reservationID, reason string) error {
	balance := u.Credits + delta
	if balance < 0 {
		return ErrInsufficientCredits
	}
	now := l.Now()
	if err := tx.SetCredits(ctx, u.ID, balance, now); err != nil {
		return fmt.Errorf("set credits: %w", err)
	}
	entry := model.CreditEntry{
		ID:            uuid.NewString(),
		UserID:        u.ID,
		Delta:         delta,
		BalanceAfter:  balance,
		Kind:          kind,
		ReservationID: reservationID,
		Reason:        reason,
		CreatedAt:     now,
	}
	if err := tx.AppendCreditEntry(ctx, entry); err != nil {
		return fmt.Errorf("append credit entry: %w", err)
	}
	return nil
}
