package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/dance-booking/internal/model"
)

// StoreRefresh inserts a refresh token hash row.
func (t *sqlTx) StoreRefresh(ctx context.Context, tok model.RefreshToken) error {
	_, err := t.q.ExecContext(ctx,
		"INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at) VALUES (?,?,?,?)",
		tok.ID, tok.UserID, tok.TokenHash, tok.ExpiresAt)
	return err
}

// ValidateRefresh returns the user id if a non-revoked, non-expired token exists.
func (r sqlQueries) ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	var (
		userID    string
		expiresAt time.Time
		revokedAt sql.NullTime
	)
	err := r.q.QueryRowContext(ctx,
		"SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&userID, &expiresAt, &revokedAt)
	if err != nil {
		return "", notFound(err)
	}
	if revokedAt.Valid || now.UTC().After(expiresAt) {
		return "", ErrNotFound
	}
	return userID, nil
}

// RevokeRefresh marks a token as revoked.
func (t *sqlTx) RevokeRefresh(ctx context.Context, tokenHash string, at time.Time) error {
	_, err := t.q.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE token_hash=? AND revoked_at IS NULL",
		at, tokenHash)
	return err
}

// RevokeAllRefresh revokes all of a user's active tokens.
func (t *sqlTx) RevokeAllRefresh(ctx context.Context, userID string, at time.Time) error {
	_, err := t.q.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL",
		at, userID)
	return err
}
