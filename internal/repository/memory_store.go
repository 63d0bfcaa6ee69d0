package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/dance-booking/internal/model"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is a Store held in process memory.  Transactions are fully
// serialised: WithTransaction holds the write lock for the whole of fn
// and works on a private copy of the state that replaces the live
// state only when fn returns nil.  Calling the Memory's own Queries
// methods from inside fn deadlocks; use the Tx instead.
type Memory struct {
	mu sync.RWMutex
	st *memState
}

type memState struct {
	users         map[string]model.User
	classes       map[string]model.Class
	reservations  map[string]model.Reservation
	credits       []model.CreditEntry
	notifications map[string]model.Notification
	reports       map[string]model.Report
	tokens        map[string]model.RefreshToken // keyed by token hash
}

// memTx is the Tx handed to WithTransaction.
type memTx struct{ *memState }

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{st: &memState{
		users:         map[string]model.User{},
		classes:       map[string]model.Class{},
		reservations:  map[string]model.Reservation{},
		notifications: map[string]model.Notification{},
		reports:       map[string]model.Report{},
		tokens:        map[string]model.RefreshToken{},
	}}
}

func (s *memState) clone() *memState {
	c := &memState{
		users:         make(map[string]model.User, len(s.users)),
		classes:       make(map[string]model.Class, len(s.classes)),
		reservations:  make(map[string]model.Reservation, len(s.reservations)),
		credits:       append([]model.CreditEntry(nil), s.credits...),
		notifications: make(map[string]model.Notification, len(s.notifications)),
		reports:       make(map[string]model.Report, len(s.reports)),
		tokens:        make(map[string]model.RefreshToken, len(s.tokens)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.classes {
		c.classes[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.notifications {
		c.notifications[k] = v
	}
	for k, v := range s.reports {
		c.reports[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	return c
}

// WithTransaction runs fn against a copy of the state and publishes
// the copy only on success.
func (m *Memory) WithTransaction(ctx context.Context, fn TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.st.clone()
	if err := fn(ctx, &memTx{work}); err != nil {
		return err
	}
	m.st = work
	return nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// ---- Queries on the live state ----

func (m *Memory) GetUser(ctx context.Context, id string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetUser(ctx, id)
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetUserByEmail(ctx, email)
}

func (m *Memory) ListUsers(ctx context.Context, f UserFilter) ([]model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListUsers(ctx, f)
}

func (m *Memory) GetClass(ctx context.Context, id string) (model.Class, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetClass(ctx, id)
}

func (m *Memory) ListClasses(ctx context.Context, activeOnly bool) ([]model.Class, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListClasses(ctx, activeOnly)
}

func (m *Memory) GetReservation(ctx context.Context, id string) (model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetReservation(ctx, id)
}

func (m *Memory) ListReservations(ctx context.Context, f ReservationFilter) ([]model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListReservations(ctx, f)
}

func (m *Memory) LastReservationAt(ctx context.Context, userID string) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.LastReservationAt(ctx, userID)
}

func (m *Memory) ListCreditEntries(ctx context.Context, userID string) ([]model.CreditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListCreditEntries(ctx, userID)
}

func (m *Memory) GetNotification(ctx context.Context, id string) (model.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetNotification(ctx, id)
}

func (m *Memory) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListNotifications(ctx, userID, unreadOnly, limit)
}

func (m *Memory) GetReport(ctx context.Context, id string) (model.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetReport(ctx, id)
}

func (m *Memory) ListReports(ctx context.Context, professorID string) ([]model.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListReports(ctx, professorID)
}

func (m *Memory) ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ValidateRefresh(ctx, tokenHash, now)
}

// ---- reads shared by Memory and memTx ----

func (s *memState) GetUser(_ context.Context, id string) (model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (s *memState) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (s *memState) ListUsers(_ context.Context, f UserFilter) ([]model.User, error) {
	out := []model.User{}
	for _, u := range s.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.MinCredits > 0 && u.Credits < f.MinCredits {
			continue
		}
		if f.ActiveOnly && !u.IsActive {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memState) GetClass(_ context.Context, id string) (model.Class, error) {
	c, ok := s.classes[id]
	if !ok {
		return model.Class{}, ErrNotFound
	}
	return c, nil
}

func (s *memState) ListClasses(_ context.Context, activeOnly bool) ([]model.Class, error) {
	out := []model.Class{}
	for _, c := range s.classes {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memState) GetReservation(_ context.Context, id string) (model.Reservation, error) {
	r, ok := s.reservations[id]
	if !ok {
		return model.Reservation{}, ErrNotFound
	}
	return r, nil
}

func (s *memState) ListReservations(_ context.Context, f ReservationFilter) ([]model.Reservation, error) {
	out := []model.Reservation{}
	for _, r := range s.reservations {
		switch {
		case f.UserID != "" && r.UserID != f.UserID,
			f.ProfessorID != "" && r.ProfessorID != f.ProfessorID,
			f.ClassID != "" && r.ClassID != f.ClassID,
			f.Status != "" && r.Status != f.Status,
			!f.From.IsZero() && r.Date.Before(f.From),
			!f.To.IsZero() && !r.Date.Before(f.To):
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return out, nil
}

func (s *memState) LastReservationAt(_ context.Context, userID string) (time.Time, bool, error) {
	var (
		last  time.Time
		found bool
	)
	for _, r := range s.reservations {
		if r.UserID == userID && (!found || r.CreatedAt.After(last)) {
			last, found = r.CreatedAt, true
		}
	}
	return last, found, nil
}

func (s *memState) ListCreditEntries(_ context.Context, userID string) ([]model.CreditEntry, error) {
	out := []model.CreditEntry{}
	for _, e := range s.credits {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memState) GetNotification(_ context.Context, id string) (model.Notification, error) {
	n, ok := s.notifications[id]
	if !ok {
		return model.Notification{}, ErrNotFound
	}
	return n, nil
}

func (s *memState) ListNotifications(_ context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	out := []model.Notification{}
	for _, n := range s.notifications {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memState) GetReport(_ context.Context, id string) (model.Report, error) {
	r, ok := s.reports[id]
	if !ok {
		return model.Report{}, ErrNotFound
	}
	return r, nil
}

func (s *memState) ListReports(_ context.Context, professorID string) ([]model.Report, error) {
	out := []model.Report{}
	for _, r := range s.reports {
		if professorID != "" && r.ProfessorID != professorID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].GeneratedAt.Equal(out[j].GeneratedAt) {
			return out[i].GeneratedAt.After(out[j].GeneratedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *memState) ValidateRefresh(_ context.Context, tokenHash string, now time.Time) (string, error) {
	t, ok := s.tokens[tokenHash]
	if !ok || t.RevokedAt != nil || now.After(t.ExpiresAt) {
		return "", ErrNotFound
	}
	return t.UserID, nil
}

// ---- transactional writes ----

// Locking reads are plain reads: the whole transaction already runs
// under the store's write lock.

func (t *memTx) GetUserForUpdate(ctx context.Context, id string) (model.User, error) {
	return t.GetUser(ctx, id)
}

func (t *memTx) GetClassForUpdate(ctx context.Context, id string) (model.Class, error) {
	return t.GetClass(ctx, id)
}

func (t *memTx) GetReservationForUpdate(ctx context.Context, id string) (model.Reservation, error) {
	return t.GetReservation(ctx, id)
}

func (t *memTx) LastReservationAtForUpdate(ctx context.Context, userID string) (time.Time, bool, error) {
	return t.LastReservationAt(ctx, userID)
}

func (t *memTx) CountConfirmed(_ context.Context, classID string, date time.Time) (int, error) {
	date = model.NormalizeDate(date)
	n := 0
	for _, r := range t.reservations {
		if r.ClassID == classID && r.Status == model.StatusConfirmed && r.Date.Equal(date) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) HasConfirmed(_ context.Context, userID string, date time.Time) (bool, error) {
	date = model.NormalizeDate(date)
	for _, r := range t.reservations {
		if r.UserID == userID && r.Status == model.StatusConfirmed && r.Date.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) CreateUser(_ context.Context, u model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range t.users {
		if existing.Email == u.Email {
			return ErrEmailExists
		}
	}
	t.users[u.ID] = u
	return nil
}

func (t *memTx) SetUserActive(_ context.Context, id string, active bool, at time.Time) error {
	u, ok := t.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsActive, u.UpdatedAt = active, at
	t.users[id] = u
	return nil
}

func (t *memTx) SetCredits(_ context.Context, userID string, credits int, at time.Time) error {
	u, ok := t.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Credits, u.UpdatedAt = credits, at
	t.users[userID] = u
	return nil
}

func (t *memTx) AppendCreditEntry(_ context.Context, e model.CreditEntry) error {
	t.credits = append(t.credits, e)
	return nil
}

func (t *memTx) CreateClass(_ context.Context, c model.Class) error {
	t.classes[c.ID] = c
	return nil
}

func (t *memTx) UpdateClass(_ context.Context, c model.Class) error {
	if _, ok := t.classes[c.ID]; !ok {
		return ErrNotFound
	}
	t.classes[c.ID] = c
	return nil
}

func (t *memTx) InsertReservation(_ context.Context, r model.Reservation) error {
	r.Date = model.NormalizeDate(r.Date)
	t.reservations[r.ID] = r
	return nil
}

func (t *memTx) UpdateReservationStatus(_ context.Context, id, status string, refunded bool, at time.Time) error {
	r, ok := t.reservations[id]
	if !ok {
		return ErrNotFound
	}
	r.Status, r.Refunded, r.UpdatedAt = status, refunded, at
	t.reservations[id] = r
	return nil
}

func (t *memTx) InsertNotification(_ context.Context, n model.Notification) error {
	t.notifications[n.ID] = n
	return nil
}

func (t *memTx) MarkNotificationRead(_ context.Context, id string, at time.Time) error {
	n, ok := t.notifications[id]
	if !ok {
		return ErrNotFound
	}
	n.IsRead, n.ReadAt = true, &at
	t.notifications[id] = n
	return nil
}

func (t *memTx) InsertReport(_ context.Context, r model.Report) error {
	t.reports[r.ID] = r
	return nil
}

func (t *memTx) StoreRefresh(_ context.Context, tok model.RefreshToken) error {
	t.tokens[tok.TokenHash] = tok
	return nil
}

func (t *memTx) RevokeRefresh(_ context.Context, tokenHash string, at time.Time) error {
	if tok, ok := t.tokens[tokenHash]; ok && tok.RevokedAt == nil {
		tok.RevokedAt = &at
		t.tokens[tokenHash] = tok
	}
	return nil
}

func (t *memTx) RevokeAllRefresh(_ context.Context, userID string, at time.Time) error {
	for h, tok := range t.tokens {
		if tok.UserID == userID && tok.RevokedAt == nil {
			tok.RevokedAt = &at
			t.tokens[h] = tok
		}
	}
	return nil
}

var (
	_ Store = (*Memory)(nil)
	_ Tx    = (*memTx)(nil)
	_ Store = (*SQLStore)(nil)
	_ Tx    = (*sqlTx)(nil)
)
