// Package queue carries notifications over RabbitMQ: the publisher is a
// service.Notifier, the consumer writes each message to the store.
package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/dance-booking/internal/model"
)

// NotificationEvent is the JSON payload of one queued notification.
type NotificationEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
}

// EventFrom converts a notification into its wire form.
func EventFrom(n model.Notification) NotificationEvent {
	return NotificationEvent{
		ID:         n.ID,
		UserID:     n.UserID,
		Title:      n.Title,
		Body:       n.Body,
		Type:       n.Type,
		OccurredAt: n.CreatedAt,
	}
}

// Notification converts the event back, checking the fields the
// notifications table requires.
func (e NotificationEvent) Notification() (model.Notification, error) {
	if strings.TrimSpace(e.ID) == "" || strings.TrimSpace(e.UserID) == "" || strings.TrimSpace(e.Title) == "" {
		return model.Notification{}, fmt.Errorf("notification event: id, userId and title are required")
	}
	typ := e.Type
	if typ == "" {
		typ = model.NotifyGeneral
	}
	created := e.OccurredAt.UTC()
	if e.OccurredAt.IsZero() {
		created = time.Now().UTC()
	}
	return model.Notification{
		ID:        e.ID,
		UserID:    e.UserID,
		Title:     e.Title,
		Body:      e.Body,
		Type:      typ,
		CreatedAt: created,
	}, nil
}
