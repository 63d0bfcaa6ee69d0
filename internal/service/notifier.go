package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/dance-booking/internal/metrics"
	"github.com/iliyamo/dance-booking/internal/model"
	"github.com/iliyamo/dance-booking/internal/repository"
)

// Notifier delivers a notification.  Delivery is best effort: callers
// log a failure and carry on.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// StoreNotifier writes notifications straight into the store.  It is
// used when no message broker is configured.
type StoreNotifier struct {
	Store repository.Store
}

// Notify inserts n in its own transaction.
func (s StoreNotifier) Notify(ctx context.Context, n model.Notification) error {
	return s.Store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.InsertNotification(ctx, n)
	})
}

// NewNotification fills in id, read flag and creation time.
func NewNotification(userID, title, body, typ string, now time.Time) model.Notification {
	if typ == "" {
		typ = model.NotifyGeneral
	}
	return model.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Body:      body,
		Type:      typ,
		CreatedAt: now.UTC(),
	}
}

// emitter sends notifications after the owning transaction committed.
// The request context may already be done by then, so delivery runs
// on a detached context with its own deadline.
type emitter struct {
	notifier Notifier
	log      *slog.Logger
	rec      metrics.Recorder
}

func (e emitter) emit(ctx context.Context, n model.Notification) {
	if e.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := e.notifier.Notify(ctx, n); err != nil {
		e.log.Warn("notification dispatch failed",
			slog.String("user_id", n.UserID),
			slog.String("type", n.Type),
			slog.Any("err", err),
		)
		e.rec.NotificationEmitted(false)
		return
	}
	e.rec.NotificationEmitted(true)
}
