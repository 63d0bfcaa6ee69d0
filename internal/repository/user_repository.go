package repository

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/dance-booking/internal/model"
)

const userColumns = "id,email,password_hash,name,phone,role,credits,is_active,created_at,updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(r rowScanner) (model.User, error) {
	var u model.User
	err := r.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Phone, &u.Role,
		&u.Credits, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetUser fetches a user by id.
func (r sqlQueries) GetUser(ctx context.Context, id string) (model.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	return u, notFound(err)
}

// GetUserByEmail fetches a user by normalized email.
func (r sqlQueries) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
	return u, notFound(err)
}

// ListUsers returns users matching f ordered by creation time.
func (r sqlQueries) ListUsers(ctx context.Context, f UserFilter) ([]model.User, error) {
	q := "SELECT " + userColumns + " FROM users WHERE 1=1"
	var args []any
	if f.Role != "" {
		q += " AND role=?"
		args = append(args, f.Role)
	}
	if f.MinCredits > 0 {
		q += " AND credits>=?"
		args = append(args, f.MinCredits)
	}
	if f.ActiveOnly {
		q += " AND is_active=1"
	}
	q += " ORDER BY created_at ASC, id ASC"

	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// GetUserForUpdate reads and locks a user row.
func (t *sqlTx) GetUserForUpdate(ctx context.Context, id string) (model.User, error) {
	u, err := scanUser(t.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? FOR UPDATE", id))
	return u, notFound(err)
}

// CreateUser inserts a user.  A taken email yields ErrEmailExists.
func (t *sqlTx) CreateUser(ctx context.Context, u model.User) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, name, phone, role, credits, is_active, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		u.ID, strings.ToLower(strings.TrimSpace(u.Email)), u.PasswordHash, u.Name, u.Phone, u.Role,
		u.Credits, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if isDuplicate(err) {
		return ErrEmailExists
	}
	return err
}

// SetUserActive toggles the soft-deactivation flag.
func (t *sqlTx) SetUserActive(ctx context.Context, id string, active bool, at time.Time) error {
	return checkAffected(t.q.ExecContext(ctx,
		"UPDATE users SET is_active=?, updated_at=? WHERE id=?", active, at, id))
}

// SetCredits overwrites the balance.  Callers hold the row lock taken
// by GetUserForUpdate.
func (t *sqlTx) SetCredits(ctx context.Context, userID string, credits int, at time.Time) error {
	return checkAffected(t.q.ExecContext(ctx,
		"UPDATE users SET credits=?, updated_at=? WHERE id=?", credits, at, userID))
}
