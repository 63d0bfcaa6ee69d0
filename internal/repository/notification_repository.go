package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/dance-booking/internal/model"
)

const notificationColumns = "id,user_id,title,body,type,is_read,read_at,created_at"

func scanNotification(r rowScanner) (model.Notification, error) {
	var (
		n      model.Notification
		readAt sql.NullTime
	)
	if err := r.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.Type, &n.IsRead, &readAt, &n.CreatedAt); err != nil {
		return n, err
	}
	if readAt.Valid {
		t := readAt.Time
		n.ReadAt = &t
	}
	return n, nil
}

// GetNotification fetches a notification by id.
func (r sqlQueries) GetNotification(ctx context.Context, id string) (model.Notification, error) {
	n, err := scanNotification(r.q.QueryRowContext(ctx,
		"SELECT "+notificationColumns+" FROM notifications WHERE id=? LIMIT 1", id))
	return n, notFound(err)
}

// ListNotifications returns a user's notifications, newest first.
func (r sqlQueries) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	q := "SELECT " + notificationColumns + " FROM notifications WHERE user_id=?"
	args := []any{userID}
	if unreadOnly {
		q += " AND is_read=0"
	}
	q += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// InsertNotification stores a notification.
func (t *sqlTx) InsertNotification(ctx context.Context, n model.Notification) error {
	_, err := t.q.ExecContext(ctx,
		"INSERT INTO notifications (id, user_id, title, body, type, is_read, created_at) VALUES (?,?,?,?,?,?,?)",
		n.ID, n.UserID, n.Title, n.Body, n.Type, n.IsRead, n.CreatedAt)
	return err
}

// MarkNotificationRead flags a notification as read.
func (t *sqlTx) MarkNotificationRead(ctx context.Context, id string, at time.Time) error {
	return checkAffected(t.q.ExecContext(ctx,
		"UPDATE notifications SET is_read=1, read_at=? WHERE id=?", at, id))
}
