package model

import "time"

// Notification types written by the backend.
const (
	NotifyGeneral              = "general"
	NotifyReservationConfirmed = "reservation_confirmed"
	NotifyReservationCancelled = "reservation_cancelled"
	NotifyPaymentSuccess       = "payment_success"
	NotifyPaymentFailed        = "payment_failed"
	NotifyClassReminder        = "class_reminder"
	NotifyCreditExpiration     = "credit_expiration"
)

// Notification is an in-app message addressed to one user.
type Notification struct {
	ID        string     // notifications.id
	UserID    string     // notifications.user_id
	Title     string     // notifications.title
	Body      string     // notifications.body
	Type      string     // notifications.type
	IsRead    bool       // notifications.is_read
	ReadAt    *time.Time // notifications.read_at (nullable)
	CreatedAt time.Time  // notifications.created_at
}
