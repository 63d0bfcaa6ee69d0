package repository

import (
	"context"

	"github.com/iliyamo/dance-booking/internal/model"
)

const classColumns = "id,name,description,professor_id,professor_name,max_students,duration_minutes,price,is_active,created_at,updated_at"

func scanClass(r rowScanner) (model.Class, error) {
	var c model.Class
	err := r.Scan(&c.ID, &c.Name, &c.Description, &c.ProfessorID, &c.ProfessorName,
		&c.MaxStudents, &c.DurationMinutes, &c.Price, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// GetClass fetches a class by id.
func (r sqlQueries) GetClass(ctx context.Context, id string) (model.Class, error) {
	c, err := scanClass(r.q.QueryRowContext(ctx,
		"SELECT "+classColumns+" FROM classes WHERE id=? LIMIT 1", id))
	return c, notFound(err)
}

// ListClasses returns classes ordered by name.
func (r sqlQueries) ListClasses(ctx context.Context, activeOnly bool) ([]model.Class, error) {
	q := "SELECT " + classColumns + " FROM classes"
	if activeOnly {
		q += " WHERE is_active=1"
	}
	q += " ORDER BY name ASC, id ASC"
	rows, err := r.q.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Class
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetClassForUpdate reads and locks a class row.  Holding this lock
// serialises bookings for the same class.
func (t *sqlTx) GetClassForUpdate(ctx context.Context, id string) (model.Class, error) {
	c, err := scanClass(t.q.QueryRowContext(ctx,
		"SELECT "+classColumns+" FROM classes WHERE id=? FOR UPDATE", id))
	return c, notFound(err)
}

// CreateClass inserts a class.
func (t *sqlTx) CreateClass(ctx context.Context, c model.Class) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO classes (id, name, description, professor_id, professor_name, max_students,
		                      duration_minutes, price, is_active, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.Name, c.Description, c.ProfessorID, c.ProfessorName, c.MaxStudents,
		c.DurationMinutes, c.Price, c.IsActive, c.CreatedAt, c.UpdatedAt)
	return err
}

// UpdateClass overwrites the mutable columns of a class.
func (t *sqlTx) UpdateClass(ctx context.Context, c model.Class) error {
	return checkAffected(t.q.ExecContext(ctx,
		`UPDATE classes SET name=?, description=?, professor_id=?, professor_name=?, max_students=?,
		                    duration_minutes=?, price=?, is_active=?, updated_at=?
		 WHERE id=?`,
		c.Name, c.Description, c.ProfessorID, c.ProfessorName, c.MaxStudents,
		c.DurationMinutes, c.Price, c.IsActive, c.UpdatedAt, c.ID))
}
