package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/dance-booking/internal/model"
	"github.com/iliyamo/dance-booking/internal/repository"
)

// DefaultRatePerClass is what a teacher earns per completed reservation.
var DefaultRatePerClass = decimal.NewFromInt(10)

// ReportService aggregates completed reservations into teacher reports.
// It only reads reservations; it never changes ledger state.
type ReportService struct {
	store        repository.Store
	ratePerClass decimal.Decimal
	log          *slog.Logger
	Now          func() time.Time
}

// NewReportService wires a ReportService.
func NewReportService(store repository.Store, ratePerClass decimal.Decimal, log *slog.Logger) *ReportService {
	if ratePerClass.IsZero() {
		ratePerClass = DefaultRatePerClass
	}
	if log == nil {
		log = slog.Default()
	}
	return &ReportService{store: store, ratePerClass: ratePerClass, log: log, Now: func() time.Time { return time.Now().UTC() }}
}

// List returns reports visible to caller: teachers see their own,
// admins see all, students nothing.
func (s *ReportService) List(ctx context.Context, caller model.Identity) ([]model.Report, error) {
	if err := Authorize(caller, ActionListReports, Resource{}); err != nil {
		return nil, err
	}
	professorID := ""
	if !caller.IsAdmin() {
		professorID = caller.UserID
	}
	return s.store.ListReports(ctx, professorID)
}

// Get returns one report if caller may see it.
func (s *ReportService) Get(ctx context.Context, caller model.Identity, id string) (model.Report, error) {
	r, err := s.store.GetReport(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Report{}, ErrNotFound
	}
	if err != nil {
		return model.Report{}, err
	}
	if err := Authorize(caller, ActionViewReport, Resource{ProfessorID: r.ProfessorID}); err != nil {
		return model.Report{}, err
	}
	return r, nil
}

// GenerateMonthly builds and stores the report of professorID for
// month, given as "YYYY-MM".
func (s *ReportService) GenerateMonthly(ctx context.Context, caller model.Identity, month, professorID string) (model.Report, error) {
	if err := Authorize(caller, ActionGenerateReport, Resource{ProfessorID: professorID}); err != nil {
		return model.Report{}, err
	}
	professorID = strings.TrimSpace(professorID)
	if professorID == "" {
		return model.Report{}, fmt.Errorf("%w: professorId is required", ErrInvalidInput)
	}
	start, err := time.ParseInLocation("2006-01", strings.TrimSpace(month), time.UTC)
	if err != nil {
		return model.Report{}, fmt.Errorf("%w: month must be YYYY-MM", ErrInvalidInput)
	}
	return s.generate(ctx, model.ReportMonthly, professorID, start, start.AddDate(0, 1, 0), caller.UserID)
}

// GenerateDaily stores one daily report per teacher who had completed
// reservations on the UTC day containing day.
func (s *ReportService) GenerateDaily(ctx context.Context, day time.Time) ([]model.Report, error) {
	start := truncateDay(day)
	end := start.AddDate(0, 0, 1)
	done, err := s.store.ListReservations(ctx, repository.ReservationFilter{Status: model.StatusCompleted, From: start, To: end})
	if err != nil {
		return nil, err
	}
	var professors []string
	seen := map[string]bool{}
	for _, r := range done {
		if !seen[r.ProfessorID] {
			seen[r.ProfessorID] = true
			professors = append(professors, r.ProfessorID)
		}
	}
	return s.generateMany(ctx, model.ReportDaily, professors, start, end)
}

// GenerateWeekly stores a report covering the seven days before end
// for every teacher, including teachers with no completed classes.
func (s *ReportService) GenerateWeekly(ctx context.Context, end time.Time) ([]model.Report, error) {
	end = truncateDay(end)
	start := end.AddDate(0, 0, -7)
	teachers, err := s.store.ListUsers(ctx, repository.UserFilter{Role: model.RoleTeacher})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(teachers))
	for _, t := range teachers {
		ids = append(ids, t.ID)
	}
	return s.generateMany(ctx, model.ReportWeekly, ids, start, end)
}

func (s *ReportService) generateMany(ctx context.Context, typ string, professors []string, start, end time.Time) ([]model.Report, error) {
	out := make([]model.Report, 0, len(professors))
	var errs []error
	for _, p := range professors {
		r, err := s.generate(ctx, typ, p, start, end, "")
		if err != nil {
			s.log.Error("report generation failed",
				slog.String("type", typ),
				slog.String("professor_id", p),
				slog.Any("err", err),
			)
			errs = append(errs, err)
			continue
		}
		out = append(out, r)
	}
	return out, errors.Join(errs...)
}

func (s *ReportService) generate(ctx context.Context, typ, professorID string, start, end time.Time, by string) (model.Report, error) {
	done, err := s.store.ListReservations(ctx, repository.ReservationFilter{
		ProfessorID: professorID,
		Status:      model.StatusCompleted,
		From:        start,
		To:          end,
	})
	if err != nil {
		return model.Report{}, err
	}
	students := map[string]bool{}
	for _, r := range done {
		students[r.UserID] = true
	}
	rep := model.Report{
		ID:             uuid.NewString(),
		ProfessorID:    professorID,
		Type:           typ,
		PeriodStart:    start,
		PeriodEnd:      end,
		TotalClasses:   len(done),
		UniqueStudents: len(students),
		TotalEarnings:  s.ratePerClass.Mul(decimal.NewFromInt(int64(len(done)))),
		GeneratedBy:    by,
		GeneratedAt:    s.Now(),
	}
	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.InsertReport(ctx, rep)
	})
	if err != nil {
		return model.Report{}, err
	}
	return rep, nil
}

// ExportXLSX writes report id and its underlying reservations as an
// Excel workbook to w.
func (s *ReportService) ExportXLSX(ctx context.Context, caller model.Identity, id string, w io.Writer) error {
	rep, err := s.Get(ctx, caller, id)
	if err != nil {
		return err
	}
	done, err := s.store.ListReservations(ctx, repository.ReservationFilter{
		ProfessorID: rep.ProfessorID,
		Status:      model.StatusCompleted,
		From:        rep.PeriodStart,
		To:          rep.PeriodEnd,
	})
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const summary = "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return err
	}
	rows := [][]any{
		{"Report ID", rep.ID},
		{"Professor ID", rep.ProfessorID},
		{"Type", rep.Type},
		{"Period start", rep.PeriodStart.Format(time.RFC3339)},
		{"Period end", rep.PeriodEnd.Format(time.RFC3339)},
		{"Total classes", rep.TotalClasses},
		{"Unique students", rep.UniqueStudents},
		{"Total earnings", rep.TotalEarnings.StringFixed(2)},
		{"Generated at", rep.GeneratedAt.Format(time.RFC3339)},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summary, cell, &row); err != nil {
			return err
		}
	}

	const detail = "Reservations"
	if _, err := f.NewSheet(detail); err != nil {
		return err
	}
	header := []any{"Reservation ID", "Class ID", "User ID", "Date", "Credits used"}
	if err := f.SetSheetRow(detail, "A1", &header); err != nil {
		return err
	}
	for i, r := range done {
		row := []any{r.ID, r.ClassID, r.UserID, r.Date.Format(time.RFC3339), r.CreditsUsed}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(detail, cell, &row); err != nil {
			return err
		}
	}
	_, err = f.WriteTo(w)
	return err
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
