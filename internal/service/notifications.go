package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/dance-booking/internal/metrics"
	"github.com/iliyamo/dance-booking/internal/model"
	"github.com/iliyamo/dance-booking/internal/repository"
)

// NotificationLimit caps how many notifications List returns.
const NotificationLimit = 50

// NotificationService serves a user's inbox and admin broadcasts.
type NotificationService struct {
	store repository.Store
	emit  emitter
	Now   func() time.Time
}

// NewNotificationService wires a NotificationService.  Messages sent
// through it go to notifier, which may be a broker publisher.
func NewNotificationService(store repository.Store, notifier Notifier, rec metrics.Recorder, log *slog.Logger) *NotificationService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &NotificationService{
		store: store,
		emit:  emitter{notifier: notifier, log: log, rec: rec},
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

// List returns the caller's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, caller model.Identity, unreadOnly bool) ([]model.Notification, error) {
	return s.store.ListNotifications(ctx, caller.UserID, unreadOnly, NotificationLimit)
}

// MarkRead flags one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, caller model.Identity, id string) error {
	return s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		n, err := tx.GetNotification(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if n.UserID != caller.UserID {
			return ErrForbidden
		}
		return tx.MarkNotificationRead(ctx, id, s.Now())
	})
}

// Create stores a notification for userID on behalf of an admin.  It
// is written directly so the admin gets its id back.
func (s *NotificationService) Create(ctx context.Context, caller model.Identity, userID, title, body, typ string) (model.Notification, error) {
	if err := Authorize(caller, ActionCreateNotification, Resource{OwnerID: userID}); err != nil {
		return model.Notification{}, err
	}
	userID, title, body = strings.TrimSpace(userID), strings.TrimSpace(title), strings.TrimSpace(body)
	if userID == "" || title == "" || body == "" {
		return model.Notification{}, fmt.Errorf("%w: userId, title and body are required", ErrInvalidInput)
	}
	n := NewNotification(userID, title, body, typ, s.Now())
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		return tx.InsertNotification(ctx, n)
	})
	if err != nil {
		return model.Notification{}, err
	}
	return n, nil
}

// SendClassReminder notifies every user holding a confirmed reservation
// for classID and returns how many were notified.
func (s *NotificationService) SendClassReminder(ctx context.Context, classID, message string) (int, error) {
	classID, message = strings.TrimSpace(classID), strings.TrimSpace(message)
	if classID == "" || message == "" {
		return 0, fmt.Errorf("%w: classId and message are required", ErrInvalidInput)
	}
	class, err := s.store.GetClass(ctx, classID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, ErrClassNotFound
	}
	if err != nil {
		return 0, err
	}
	reservations, err := s.store.ListReservations(ctx, repository.ReservationFilter{ClassID: classID, Status: model.StatusConfirmed})
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(reservations))
	for _, r := range reservations {
		if seen[r.UserID] {
			continue
		}
		seen[r.UserID] = true
		s.emit.emit(ctx, NewNotification(r.UserID, "Reminder: "+class.Name, message, model.NotifyClassReminder, s.Now()))
	}
	return len(seen), nil
}
