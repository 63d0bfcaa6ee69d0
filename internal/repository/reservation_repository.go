package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/dance-booking/internal/model"
)

const reservationColumns = "id,class_id,user_id,professor_id,date,status,credits_used,refunded,created_at,updated_at"

func scanReservation(r rowScanner) (model.Reservation, error) {
	var res model.Reservation
	err := r.Scan(&res.ID, &res.ClassID, &res.UserID, &res.ProfessorID, &res.Date, &res.Status,
		&res.CreditsUsed, &res.Refunded, &res.CreatedAt, &res.UpdatedAt)
	return res, err
}

// GetReservation fetches a reservation by id.
func (r sqlQueries) GetReservation(ctx context.Context, id string) (model.Reservation, error) {
	res, err := scanReservation(r.q.QueryRowContext(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE id=? LIMIT 1", id))
	return res, notFound(err)
}

// ListReservations returns reservations matching f, newest date first.
func (r sqlQueries) ListReservations(ctx context.Context, f ReservationFilter) ([]model.Reservation, error) {
	q := "SELECT " + reservationColumns + " FROM reservations WHERE 1=1"
	var args []any
	if f.UserID != "" {
		q += " AND user_id=?"
		args = append(args, f.UserID)
	}
	if f.ProfessorID != "" {
		q += " AND professor_id=?"
		args = append(args, f.ProfessorID)
	}
	if f.ClassID != "" {
		q += " AND class_id=?"
		args = append(args, f.ClassID)
	}
	if f.Status != "" {
		q += " AND status=?"
		args = append(args, f.Status)
	}
	if !f.From.IsZero() {
		q += " AND date>=?"
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		q += " AND date<?"
		args = append(args, f.To.UTC())
	}
	q += " ORDER BY date DESC, created_at DESC, id DESC"

	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// LastReservationAt returns the creation time of the user's newest reservation.
func (r sqlQueries) LastReservationAt(ctx context.Context, userID string) (time.Time, bool, error) {
	var last sql.NullTime
	err := r.q.QueryRowContext(ctx,
		"SELECT MAX(created_at) FROM reservations WHERE user_id=?", userID).Scan(&last)
	if err != nil {
		return time.Time{}, false, err
	}
	return last.Time, last.Valid, nil
}

// LastReservationAtForUpdate locks the user's reservation rows and
// returns the newest creation time among them.
func (t *sqlTx) LastReservationAtForUpdate(ctx context.Context, userID string) (time.Time, bool, error) {
	var last sql.NullTime
	err := t.q.QueryRowContext(ctx,
		"SELECT MAX(created_at) FROM reservations WHERE user_id=? FOR UPDATE", userID).Scan(&last)
	if err != nil {
		return time.Time{}, false, err
	}
	return last.Time, last.Valid, nil
}

// GetReservationForUpdate reads and locks a reservation row.
func (t *sqlTx) GetReservationForUpdate(ctx context.Context, id string) (model.Reservation, error) {
	res, err := scanReservation(t.q.QueryRowContext(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE id=? FOR UPDATE", id))
	return res, notFound(err)
}

// CountConfirmed counts confirmed reservations for a class occurrence.
// FOR UPDATE takes next-key locks on the (class_id, date, status)
// index so a concurrent insert into the same occurrence waits.
func (t *sqlTx) CountConfirmed(ctx context.Context, classID string, date time.Time) (int, error) {
	var n int
	err := t.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reservations WHERE class_id=? AND date=? AND status=? FOR UPDATE",
		classID, model.NormalizeDate(date), model.StatusConfirmed).Scan(&n)
	return n, err
}

// HasConfirmed reports whether the user holds a confirmed reservation at date.
func (t *sqlTx) HasConfirmed(ctx context.Context, userID string, date time.Time) (bool, error) {
	var n int
	err := t.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reservations WHERE user_id=? AND date=? AND status=? FOR UPDATE",
		userID, model.NormalizeDate(date), model.StatusConfirmed).Scan(&n)
	return n > 0, err
}

// InsertReservation inserts a new reservation row.
func (t *sqlTx) InsertReservation(ctx context.Context, res model.Reservation) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO reservations (id, class_id, user_id, professor_id, date, status, credits_used, refunded, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		res.ID, res.ClassID, res.UserID, res.ProfessorID, model.NormalizeDate(res.Date), res.Status,
		res.CreditsUsed, res.Refunded, res.CreatedAt, res.UpdatedAt)
	return err
}

// UpdateReservationStatus sets status and refund flag.
func (t *sqlTx) UpdateReservationStatus(ctx context.Context, id, status string, refunded bool, at time.Time) error {
	return checkAffected(t.q.ExecContext(ctx,
		"UPDATE reservations SET status=?, refunded=?, updated_at=? WHERE id=?",
		status, refunded, at, id))
}
