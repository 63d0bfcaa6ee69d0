package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/dance-booking/internal/model"
)

// AppendCreditEntry adds one audit line.  Entries are never updated.
func (t *sqlTx) AppendCreditEntry(ctx context.Context, e model.CreditEntry) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO credit_entries (id, user_id, delta, balance_after, kind, reservation_id, reason, created_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		e.ID, e.UserID, e.Delta, e.BalanceAfter, e.Kind, nullString(e.ReservationID), e.Reason, e.CreatedAt)
	return err
}

// ListCreditEntries returns a user's audit trail, oldest first.
func (r sqlQueries) ListCreditEntries(ctx context.Context, userID string) ([]model.CreditEntry, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, user_id, delta, balance_after, kind, reservation_id, reason, created_at
		 FROM credit_entries WHERE user_id=? ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.CreditEntry{}
	for rows.Next() {
		var (
			e     model.CreditEntry
			resID sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Delta, &e.BalanceAfter, &e.Kind, &resID, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ReservationID = resID.String
		out = append(out, e)
	}
	return out, rows.Err()
}
