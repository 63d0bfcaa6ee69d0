package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/dance-booking/internal/model"
	"github.com/iliyamo/dance-booking/internal/repository"
)

func TestCreate_HappyPath(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "prof", model.RoleTeacher, 0)
	s1 := f.addUser(t, "s1", model.RoleStudent, 3)
	f.addClass(t, "c1", "prof", 10, true)

	r := f.book(t, s1, "c1", classDate)

	assert.Equal(t, model.StatusConfirmed, r.Status)
	assert.Equal(t, "prof", r.ProfessorID)
	assert.Equal(t, 1, r.CreditsUsed)
	assert.Equal(t, 2, f.credits(t, "s1"))
	assert.Equal(t, []string{model.NotifyReservationConfirmed}, f.notifier.types())
}

func TestCreate_CheckOrder(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "prof", model.RoleTeacher, 0)
	rich := f.addUser(t, "rich", model.RoleStudent, 10)
	broke := f.addUser(t, "broke", model.RoleStudent, 0)
	f.addClass(t, "open", "prof", 5, true)
	f.addClass(t, "closed", "prof", 5, false)
	f.addClass(t, "tiny", "prof", 1, true)
	f.book(t, rich, "tiny", classDate)
	f.book(t, rich, "open", classDate.Add(24*time.Hour))
	admin := model.Identity{UserID: "root", Role: model.RoleAdmin}

	tests := map[string]struct {
		caller model.Identity
		in     CreateReservationInput
		want   error
	}{
		"missing class": {
			caller: rich,
			in:     CreateReservationInput{ClassID: "nope", UserID: "rich", Date: classDate},
			want:   ErrClassNotFound,
		},
		"inactive class beats no credits": {
			caller: broke,
			in:     CreateReservationInput{ClassID: "closed", UserID: "broke", Date: classDate},
			want:   ErrClassInactive,
		},
		"full class beats no credits": {
			caller: broke,
			in:     CreateReservationInput{ClassID: "tiny", UserID: "broke", Date: classDate},
			want:   ErrClassFull,
		},
		"no credits beats duplicate": {
			caller: broke,
			in:     CreateReservationInput{ClassID: "open", UserID: "broke", Date: classDate},
			want:   ErrInsufficientCredits,
		},
		"unknown user": {
			caller: admin,
			in:     CreateReservationInput{ClassID: "open", UserID: "ghost", Date: classDate},
			want:   ErrUserNotFound,
		},
		"duplicate same date": {
			caller: rich,
			in:     CreateReservationInput{ClassID: "open", UserID: "rich", Date: classDate.Add(24 * time.Hour)},
			want:   ErrDuplicateBooking,
		},
		"booking for someone else": {
			caller: broke,
			in:     CreateReservationInput{ClassID: "open", UserID: "rich", Date: classDate},
			want:   ErrForbidden,
		},
		"missing date": {
			caller: rich,
			in:     CreateReservationInput{ClassID: "open", UserID: "rich"},
			want:   ErrInvalidInput,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			before := f.credits(t, "rich")
			_, err := f.mgr.Create(context.Background(), tt.caller, tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, before, f.credits(t, "rich"), "rejected booking must not touch credits")
		})
	}
}

func TestCreate_DuplicateIgnoresSubSecondDifference(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "prof", model.RoleTeacher, 0)
	s1 := f.addUser(t, "s1", model.RoleStudent, 5)
	f.addClass(t, "c1", "prof", 5, true)
	f.addClass(t, "c2", "prof", 5, true)

	f.book(t, s1, "c1", classDate)
	_, err := f.mgr.Create(context.Background(), s1, CreateReservationInput{
		ClassID: "c2", UserID: "s1", Date: classDate.Add(300 * time.Millisecond).In(time.FixedZone("X", 3600)),
	})
	assert.ErrorIs(t, err, ErrDuplicateBooking)
}

func TestCreate_AdminBooksForStudent(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "prof", model.RoleTeacher, 0)
	f.addUser(t, "s1", model.RoleStudent, 1)
	f.addClass(t, "c1", "prof", 5, true)

	r, err := f.mgr.Create(context.Background(), model.Identity{UserID: "root", Role: model.RoleAdmin},
		CreateReservationInput{ClassID: "c1", UserID: "s1", Date: classDate})
	require.NoError(t, err)
	assert.Equal(t, "s1", r.UserID)
	assert.Equal(t, 0, f.credits(t, "s1"))
}

func TestCreate_NotifierFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errNotifyDown
	f.addUser(t, "prof", model.RoleTeacher, 0)
	s1 := f.addUser(t, "s1", model.RoleStudent, 1)
	f.addClass(t, "c1", "prof", 5, true)

	r := f.book(t, s1, "c1", classDate)
	assert.Equal(t, model.StatusConfirmed, r.Status)
	assert.Equal(t, 0, f.credits(t, "s1"))
}

func TestCreate_ConcurrentLastSeat(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "prof", model.RoleTeacher, 0)
	f.addClass(t, "c1", "prof", 1, true)

	const n = 20
	callers := make([]model.Identity, n)
	for i := range callers {
		callers[i] = f.addUser(t, string(rune('a'+i)), model.RoleStudent, 1)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.mgr.Create(context.Background(), callers[i],
				CreateReservationInput{ClassID: "c1", UserID: callers[i].UserID, Date: classDate})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrClassFull)
	}
	assert.Equal(t, 1, ok)

	count, err := f.store.ListReservations(context.Background(), repository.ReservationFilter{ClassID: "c1", Status: model.StatusConfirmed})
	require.NoError(t, err)
	assert.Len(t, count, 1)
}

func TestCreate_ConcurrentDuplicate(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "prof", model.RoleTeacher, 0)
	s1 := f.addUser(t, "s1", model.RoleStudent, 50)
	f.addClass(t, "c1", "prof", 100, true)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.mgr.Create(context.Background(), s1,
				CreateReservationInput{ClassID: "c1", UserID: "s1", Date: classDate})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrDuplicateBooking)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 49, f.credits(t, "s1"))
}

func TestCreate_ConcurrentLastCredit(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "prof", model.RoleTeacher, 0)
	s1 := f.addUser(t, "s1", model.RoleStudent, 1)
	for _, id := range []string{"c1", "c2", "c3", "c4"} {
		f.addClass(t, id, "prof", 10, true)
	}

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i, id := range []string{"c1", "c2", "c3", "c4"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.mgr.Create(context.Background(), s1,
				CreateReservationInput{ClassID: id, UserID: "s1", Date: classDate.Add(time.Duration(i) * 24 * time.Hour)})
		}(i, id)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrInsufficientCredits)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 0, f.credits(t, "s1"))
}

func TestUpdateStatus_RefundWindowBoundary(t *testing.T) {
	tests := map[string]struct {
		until      time.Duration
		wantRefund bool
	}{
		"exactly two hours":      {2 * time.Hour, true},
		"a day ahead":            {24 * time.Hour, true},
		"one millisecond short":  {2*time.Hour - time.Millisecond, false},
		"1.999 hours":            {time.Duration(1.999 * float64(time.Hour)), false},
		"class already happened": {-time.Hour, false},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.addUser(t, "prof", model.RoleTeacher, 0)
			s1 := f.addUser(t, "s1", model.RoleStudent, 1)
			f.addClass(t, "c1", "prof", 5, true)
			r := f.book(t, s1, "c1", classDate)

			f.now = classDate.Add(-tt.until)
			out, err := f.mgr.UpdateStatus(context.Background(), s1, r.ID, model.StatusCancelled)
			require.NoError(t, err)

			assert.Equal(t, tt.wantRefund, out.Refunded)
			assert.Equal(t, model.StatusCancelled, out.Reservation.Status)
			if tt.wantRefund {
				assert.Equal(t, MsgCancelledRefunded, out.Message)
				assert.Equal(t, 1, f.credits(t, "s1"))
			} else {
				assert.Equal(t, MsgCancelledNoRefund, out.Message)
				assert.Equal(t, 0, f.credits(t, "s1"))
			}
		})
	}
}

func TestUpdateStatus_CancelIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "prof", model.RoleTeacher, 0)
	s1 := f.addUser(t, "s1", model.RoleStudent, 1)
	f.addClass(t, "c1", "prof", 5, true)
	r := f.book(t, s1, "c1", classDate)

	_, err := f.mgr.UpdateStatus(context.Background(), s1, r.ID, model.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, 1, f.credits(t, "s1"))

	_, err = f.mgr.UpdateStatus(context.Background(), s1, r.ID, model.StatusCancelled)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
	assert.Equal(t, 1, f.credits(t, "s1"), "second cancel must not refund again")
}

func TestUpdateStatus_ConcurrentCancelRefundsOnce(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "prof", model.RoleTeacher, 0)
	s1 := f.addUser(t, "s1", model.RoleStudent, 1)
	f.addClass(t, "c1", "prof", 5, true)
	r := f.book(t, s1, "c1", classDate)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.mgr.UpdateStatus(context.Background(), s1, r.ID, model.StatusCancelled)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyCancelled)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, f.credits(t, "s1"))
}

func TestUpdateStatus_Transitions(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "prof", model.RoleTeacher, 0)
	s1 := f.addUser(t, "s1", model.RoleStudent, 5)
	other := f.addUser(t, "s2", model.RoleStudent, 5)
	prof := model.Identity{UserID: "prof", Role: model.RoleTeacher}
	stranger := f.addUser(t, "prof2", model.RoleTeacher, 0)
	f.addClass(t, "c1", "prof", 5, true)
	r := f.book(t, s1, "c1", classDate)

	_, err := f.mgr.UpdateStatus(context.Background(), s1, r.ID, "paused")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.mgr.UpdateStatus(context.Background(), s1, "missing", model.StatusCancelled)
	assert.ErrorIs(t, err, ErrReservationNotFound)

	_, err = f.mgr.UpdateStatus(context.Background(), other, r.ID, model.StatusCancelled)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.mgr.UpdateStatus(context.Background(), stranger, r.ID, model.StatusCompleted)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.mgr.UpdateStatus(context.Background(), s1, r.ID, model.StatusConfirmed)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	out, err := f.mgr.UpdateStatus(context.Background(), prof, r.ID, "  COMPLETED ")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, out.Reservation.Status)
	assert.Equal(t, MsgUpdated, out.Message)

	_, err = f.mgr.UpdateStatus(context.Background(), s1, r.ID, model.StatusCancelled)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 4, f.credits(t, "s1"))
}

func TestList_ScopedAndNewestFirst(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "prof", model.RoleTeacher, 0)
	f.addUser(t, "prof2", model.RoleTeacher, 0)
	s1 := f.addUser(t, "s1", model.RoleStudent, 5)
	s2 := f.addUser(t, "s2", model.RoleStudent, 5)
	f.addClass(t, "c1", "prof", 5, true)
	f.addClass(t, "c2", "prof2", 5, true)

	early := f.book(t, s1, "c1", classDate)
	late := f.book(t, s1, "c2", classDate.Add(48*time.Hour))
	theirs := f.book(t, s2, "c1", classDate.Add(24*time.Hour))

	ids := func(rs []model.Reservation) []string {
		out := make([]string, 0, len(rs))
		for _, r := range rs {
			out = append(out, r.ID)
		}
		return out
	}

	got, err := f.mgr.List(context.Background(), s1)
	require.NoError(t, err)
	assert.Equal(t, []string{late.ID, early.ID}, ids(got))

	got, err = f.mgr.List(context.Background(), model.Identity{UserID: "prof", Role: model.RoleTeacher})
	require.NoError(t, err)
	assert.Equal(t, []string{theirs.ID, early.ID}, ids(got))

	got, err = f.mgr.List(context.Background(), model.Identity{UserID: "root", Role: model.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, []string{late.ID, theirs.ID, early.ID}, ids(got))

	_, err = f.mgr.List(context.Background(), model.Identity{UserID: "x", Role: "guest"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGet_Visibility(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "prof", model.RoleTeacher, 0)
	s1 := f.addUser(t, "s1", model.RoleStudent, 5)
	s2 := f.addUser(t, "s2", model.RoleStudent, 5)
	f.addClass(t, "c1", "prof", 5, true)
	r := f.book(t, s1, "c1", classDate)

	_, err := f.mgr.Get(context.Background(), s1, r.ID)
	assert.NoError(t, err)
	_, err = f.mgr.Get(context.Background(), model.Identity{UserID: "prof", Role: model.RoleTeacher}, r.ID)
	assert.NoError(t, err)
	_, err = f.mgr.Get(context.Background(), s2, r.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.mgr.Get(context.Background(), s2, "missing")
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestCompleteExpired(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "prof", model.RoleTeacher, 0)
	s1 := f.addUser(t, "s1", model.RoleStudent, 5)
	f.addClass(t, "c1", "prof", 5, true)
	past := f.book(t, s1, "c1", testNow.Add(-6*time.Hour))
	soon := f.book(t, s1, "c1", testNow.Add(-30*time.Minute))
	future := f.book(t, s1, "c1", classDate)
	cancelled := f.book(t, s1, "c1", testNow.Add(-48*time.Hour))
	_, err := f.mgr.UpdateStatus(context.Background(), s1, cancelled.ID, model.StatusCancelled)
	require.NoError(t, err)

	n, err := f.mgr.CompleteExpired(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	want := map[string]string{
		past.ID:      model.StatusCompleted,
		soon.ID:     model.StatusConfirmed,
		future.ID:   model.StatusConfirmed,
		cancelled.ID: model.StatusCancelled,
	}
	for id, status := range want {
		r, err := f.store.GetReservation(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, status, r.Status, id)
	}
}

// The four walkthroughs below follow a student through the common
// booking flows end to end.

func TestScenario_BookThenCancelEarly(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "prof", model.RoleTeacher, 0)
	s1 := f.addUser(t, "s1", model.RoleStudent, 3)
	f.addClass(t, "c1", "prof", 10, true)

	r := f.book(t, s1, "c1", classDate)
	assert.Equal(t, 2, f.credits(t, "s1"))

	out, err := f.mgr.UpdateStatus(context.Background(), s1, r.ID, model.StatusCancelled)
	require.NoError(t, err)
	assert.True(t, out.Refunded)
	assert.Equal(t, 3, f.credits(t, "s1"))
	assert.Equal(t, []string{model.NotifyReservationConfirmed, model.NotifyReservationCancelled}, f.notifier.types())
}

func TestScenario_LateCancelKeepsCredit(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "prof", model.RoleTeacher, 0)
	s1 := f.addUser(t, "s1", model.RoleStudent, 1)
	f.addClass(t, "c1", "prof", 10, true)
	r := f.book(t, s1, "c1", testNow.Add(time.Hour))

	out, err := f.mgr.UpdateStatus(context.Background(), s1, r.ID, model.StatusCancelled)
	require.NoError(t, err)
	assert.False(t, out.Refunded)
	assert.Equal(t, 0, f.credits(t, "s1"))
}

func TestScenario_FullClassTurnsAwaySecondStudent(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "prof", model.RoleTeacher, 0)
	s1 := f.addUser(t, "s1", model.RoleStudent, 1)
	s2 := f.addUser(t, "s2", model.RoleStudent, 1)
	f.addClass(t, "c1", "prof", 1, true)

	f.book(t, s1, "c1", classDate)
	_, err := f.mgr.Create(context.Background(), s2, CreateReservationInput{ClassID: "c1", UserID: "s2", Date: classDate})
	assert.ErrorIs(t, err, ErrClassFull)
	assert.Equal(t, 1, f.credits(t, "s2"))

	// A different date of the same class is a separate occurrence.
	f.book(t, s2, "c1", classDate.Add(7*24*time.Hour))
}

func TestScenario_CancelFreesTheSeat(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "prof", model.RoleTeacher, 0)
	s1 := f.addUser(t, "s1", model.RoleStudent, 1)
	s2 := f.addUser(t, "s2", model.RoleStudent, 1)
	f.addClass(t, "c1", "prof", 1, true)

	r := f.book(t, s1, "c1", classDate)
	_, err := f.mgr.UpdateStatus(context.Background(), s1, r.ID, model.StatusCancelled)
	require.NoError(t, err)

	f.book(t, s2, "c1", classDate)
	// s1 can book again once their earlier booking is cancelled.
	f.book(t, s1, "c1", classDate.Add(time.Hour))
}

// failingStore always reports a conflict to check error propagation.
type failingStore struct {
	repository.Store
}

func (failingStore) WithTransaction(context.Context, repository.TxFunc) error {
	return repository.ErrTxConflict
}

func TestCreate_SurfacesTxConflict(t *testing.T) {
	f := newFixture(t)
	m := NewReservationManager(failingStore{f.store}, f.ledger, nil, nil, nil, 0)
	_, err := m.Create(context.Background(), model.Identity{UserID: "s1", Role: model.RoleStudent},
		CreateReservationInput{ClassID: "c1", UserID: "s1", Date: classDate})
	assert.True(t, errors.Is(err, repository.ErrTxConflict))
	assert.Equal(t, DefaultRefundWindow, m.RefundWindow)
}
