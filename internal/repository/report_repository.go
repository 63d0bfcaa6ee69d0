package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/dance-booking/internal/model"
)

const reportColumns = "id,professor_id,type,period_start,period_end,total_classes,unique_students,total_earnings,generated_by,generated_at"

func scanReport(r rowScanner) (model.Report, error) {
	var (
		rep model.Report
		by  sql.NullString
	)
	err := r.Scan(&rep.ID, &rep.ProfessorID, &rep.Type, &rep.PeriodStart, &rep.PeriodEnd,
		&rep.TotalClasses, &rep.UniqueStudents, &rep.TotalEarnings, &by, &rep.GeneratedAt)
	rep.GeneratedBy = by.String
	return rep, err
}

// GetReport fetches a report by id.
func (r sqlQueries) GetReport(ctx context.Context, id string) (model.Report, error) {
	rep, err := scanReport(r.q.QueryRowContext(ctx,
		"SELECT "+reportColumns+" FROM reports WHERE id=? LIMIT 1", id))
	return rep, notFound(err)
}

// ListReports returns reports newest first, optionally for one teacher.
func (r sqlQueries) ListReports(ctx context.Context, professorID string) ([]model.Report, error) {
	q := "SELECT " + reportColumns + " FROM reports"
	var args []any
	if professorID != "" {
		q += " WHERE professor_id=?"
		args = append(args, professorID)
	}
	q += " ORDER BY generated_at DESC, id DESC"
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Report{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

// InsertReport stores a generated report.
func (t *sqlTx) InsertReport(ctx context.Context, rep model.Report) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO reports (id, professor_id, type, period_start, period_end, total_classes,
		                      unique_students, total_earnings, generated_by, generated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		rep.ID, rep.ProfessorID, rep.Type, rep.PeriodStart, rep.PeriodEnd, rep.TotalClasses,
		rep.UniqueStudents, rep.TotalEarnings, nullString(rep.GeneratedBy), rep.GeneratedAt)
	return err
}
