package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/dance-booking/internal/config"
	"github.com/iliyamo/dance-booking/internal/metrics"
	"github.com/iliyamo/dance-booking/internal/model"
	"github.com/iliyamo/dance-booking/internal/repository"
	"github.com/iliyamo/dance-booking/internal/service"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type jobRecorder struct {
	metrics.Nop
	mu   sync.Mutex
	runs map[string][]bool
}

func (r *jobRecorder) JobRun(name string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runs == nil {
		r.runs = map[string][]bool{}
	}
	r.runs[name] = append(r.runs[name], ok)
}

func TestScheduler_RunNowRecordsOutcome(t *testing.T) {
	rec := &jobRecorder{}
	s := NewScheduler(quiet, rec)

	require.NoError(t, s.RunNow(context.Background(), Job{Name: "ok", Run: func(context.Context) error { return nil }}))
	err := s.RunNow(context.Background(), Job{Name: "fails", Run: func(context.Context) error { return errors.New("boom") }})
	assert.EqualError(t, err, "boom")
	err = s.RunNow(context.Background(), Job{Name: "panics", Run: func(context.Context) error { panic("bad") }})
	assert.ErrorContains(t, err, "panic: bad")

	assert.Equal(t, map[string][]bool{"ok": {true}, "fails": {false}, "panics": {false}}, rec.runs)
}

func TestScheduler_Add(t *testing.T) {
	s := NewScheduler(quiet, nil)
	noop := func(context.Context) error { return nil }

	assert.NoError(t, s.Add(Job{Name: "off", Run: noop}))
	assert.NoError(t, s.Add(Job{Name: "nightly", Spec: "0 2 * * *", Run: noop}))
	assert.Error(t, s.Add(Job{Name: "bad", Spec: "every day", Run: noop}))
	assert.Len(t, s.cron.Entries(), 1)
}

func TestScheduler_RunStopsWithContext(t *testing.T) {
	s := NewScheduler(quiet, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestStandardJobs(t *testing.T) {
	now := time.Date(2026, 5, 4, 3, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := repository.NewMemory()
	ctx := context.Background()

	require.NoError(t, store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		for _, u := range []model.User{
			{ID: "prof", Email: "prof@studio.test", Role: model.RoleTeacher, IsActive: true},
			{ID: "s1", Email: "s1@studio.test", Role: model.RoleStudent, Credits: 3, IsActive: true},
			{ID: "idle", Email: "idle@studio.test", Role: model.RoleStudent, Credits: 2, IsActive: true},
		} {
			if err := tx.CreateUser(ctx, u); err != nil {
				return err
			}
		}
		return tx.CreateClass(ctx, model.Class{ID: "c1", Name: "Salsa", ProfessorID: "prof", MaxStudents: 5, IsActive: true})
	}))

	ledger := service.NewCreditLedger(1)
	ledger.Now = clock
	mgr := service.NewReservationManager(store, ledger, nil, nil, quiet, 0)
	mgr.Now = clock
	reports := service.NewReportService(store, decimal.NewFromInt(10), quiet)
	reports.Now = clock
	credits := service.NewCreditService(store, ledger, nil, nil, quiet)
	credits.Now = clock

	s1 := model.Identity{UserID: "s1", Role: model.RoleStudent}
	yesterday := time.Date(2026, 5, 3, 1, 0, 0, 0, time.UTC)
	r, err := mgr.Create(ctx, s1, service.CreateReservationInput{ClassID: "c1", UserID: "s1", Date: yesterday})
	require.NoError(t, err)

	jobs := Standard(config.JobsConfig{
		CompletionSpec:   "0 2 * * *",
		DailyReportSpec:  "0 3 * * *",
		WeeklyReportSpec: "0 1 * * 0",
		CreditExpirySpec: "0 1 1 * *",
		CompletionGrace:  time.Hour,
	}, Deps{Reservations: mgr, Reports: reports, Credits: credits, CreditExpiryMonths: 3, Log: quiet, Now: clock})
	require.Len(t, jobs, 4)
	byName := map[string]Job{}
	for _, j := range jobs {
		byName[j.Name] = j
	}

	rec := &jobRecorder{}
	s := NewScheduler(quiet, rec)
	for _, name := range []string{NameCompletion, NameDailyReport, NameWeeklyReport, NameCreditExpiry} {
		require.NoError(t, s.RunNow(ctx, byName[name]), name)
	}

	got, err := store.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)

	all, err := store.ListReports(ctx, "prof")
	require.NoError(t, err)
	types := map[string]int{}
	for _, rep := range all {
		types[rep.Type] = rep.TotalClasses
	}
	assert.Equal(t, map[string]int{model.ReportDaily: 1, model.ReportWeekly: 1}, types)

	idle, err := store.GetUser(ctx, "idle")
	require.NoError(t, err)
	assert.Equal(t, 0, idle.Credits)
	active, err := store.GetUser(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, active.Credits)

	assert.Len(t, rec.runs, 4)
}
