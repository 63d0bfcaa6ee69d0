package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/dance-booking/internal/metrics"
	"github.com/iliyamo/dance-booking/internal/model"
	"github.com/iliyamo/dance-booking/internal/repository"
)

var (
	testNow   = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	classDate = testNow.Add(72 * time.Hour)
	quietLog  = slog.New(slog.NewTextHandler(io.Discard, nil))
)

// recordingNotifier keeps every notification it was asked to send.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []model.Notification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, n model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sent))
	for _, n := range r.sent {
		out = append(out, n.Type)
	}
	return out
}

type fixture struct {
	store    *repository.Memory
	ledger   *CreditLedger
	notifier *recordingNotifier
	mgr      *ReservationManager
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    repository.NewMemory(),
		notifier: &recordingNotifier{},
		now:      testNow,
	}
	f.ledger = NewCreditLedger(1)
	f.ledger.Now = f.clock
	f.mgr = NewReservationManager(f.store, f.ledger, f.notifier, metrics.Nop{}, quietLog, 2*time.Hour)
	f.mgr.Now = f.clock
	return f
}

func (f *fixture) clock() time.Time { return f.now }

func (f *fixture) addUser(t *testing.T, id, role string, credits int) model.Identity {
	t.Helper()
	require.NoError(t, f.store.WithTransaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.CreateUser(ctx, model.User{
			ID: id, Email: id + "@studio.test", Name: id, Role: role,
			Credits: credits, IsActive: true, CreatedAt: f.now, UpdatedAt: f.now,
		})
	}))
	return model.Identity{UserID: id, Role: role}
}

func (f *fixture) addClass(t *testing.T, id, professorID string, max int, active bool) {
	t.Helper()
	require.NoError(t, f.store.WithTransaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.CreateClass(ctx, model.Class{
			ID: id, Name: "Class " + id, ProfessorID: professorID, MaxStudents: max,
			DurationMinutes: 60, Price: decimal.NewFromInt(15), IsActive: active,
			CreatedAt: f.now, UpdatedAt: f.now,
		})
	}))
}

func (f *fixture) credits(t *testing.T, userID string) int {
	t.Helper()
	u, err := f.store.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return u.Credits
}

func (f *fixture) book(t *testing.T, caller model.Identity, classID string, date time.Time) model.Reservation {
	t.Helper()
	r, err := f.mgr.Create(context.Background(), caller, CreateReservationInput{ClassID: classID, UserID: caller.UserID, Date: date})
	require.NoError(t, err)
	return r
}

var errNotifyDown = errors.New("broker down")
