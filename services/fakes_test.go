package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"ledgerly/backend/common"
	"ledgerly/backend/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memStorage struct {
	mu   sync.Mutex
	data map[string]map[string]string
}

func newMemStorage() *memStorage {
	return &memStorage{data: map[string]map[string]string{}}
}

func (m *memStorage) Get(_ context.Context, ns, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[ns][key]
	return v, ok, nil
}

func (m *memStorage) Set(_ context.Context, ns, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(ns, key, value)
	return nil
}

func (m *memStorage) set(ns, key, value string) {
	if m.data[ns] == nil {
		m.data[ns] = map[string]string{}
	}
	m.data[ns][key] = value
}

func (m *memStorage) Update(_ context.Context, ns, key string, fn func(string, bool) (string, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[ns][key]
	next, err := fn(v, ok)
	if err != nil {
		return err
	}
	m.set(ns, key, next)
	return nil
}

func (m *memStorage) Delete(_ context.Context, ns, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[ns], key)
	return nil
}

func (m *memStorage) Clear(_ context.Context, ns string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, ns)
	return nil
}

// fakeTransactions is an in-memory TransactionRepository. failOn makes Create fail
// for the n-th call (1-based).
type fakeTransactions struct {
	mu       sync.Mutex
	items    []models.Transaction
	nextID   int
	calls    int
	failOn   map[int]bool
	countErr error
}

func (f *fakeTransactions) List(_ context.Context, owner string, filter models.TransactionFilter) ([]models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Transaction{}
	for _, t := range f.items {
		if t.OwnerID == owner && filter.Matches(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredOn.After(out[j].OccurredOn) })
	return out, nil
}

func (f *fakeTransactions) ListByMonth(ctx context.Context, owner string, year int, month time.Month) ([]models.Transaction, error) {
	all, err := f.List(ctx, owner, models.TransactionFilter{})
	if err != nil {
		return nil, err
	}
	return MonthSubset(all, year, month), nil
}

func (f *fakeTransactions) Get(_ context.Context, owner, id string) (models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.items {
		if t.ID == id && t.OwnerID == owner {
			return t, nil
		}
	}
	return models.Transaction{}, common.ErrNotFound
}

func (f *fakeTransactions) Create(_ context.Context, owner string, in models.TransactionInput) (models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn[f.calls] {
		return models.Transaction{}, errors.New("store unavailable")
	}
	f.nextID++
	t := models.Transaction{ID: fmt.Sprintf("tx-%d", f.nextID), OwnerID: owner, CreatedAt: time.Now()}
	in.Apply(&t)
	f.items = append(f.items, t)
	return t, nil
}

func (f *fakeTransactions) Update(_ context.Context, owner, id string, in models.TransactionInput) (models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id && f.items[i].OwnerID == owner {
			in.Apply(&f.items[i])
			return f.items[i], nil
		}
	}
	return models.Transaction{}, common.ErrNotFound
}

func (f *fakeTransactions) Delete(_ context.Context, owner, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id && f.items[i].OwnerID == owner {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return common.ErrNotFound
}

func (f *fakeTransactions) Count(_ context.Context, owner string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	n := 0
	for _, t := range f.items {
		if t.OwnerID == owner {
			n++
		}
	}
	return n, nil
}

type fakeGoals struct {
	items []models.Goal
}

func (f *fakeGoals) List(_ context.Context, owner string) ([]models.Goal, error) {
	return f.items, nil
}

func (f *fakeGoals) Get(_ context.Context, owner, id string) (models.Goal, error) {
	for _, g := range f.items {
		if g.ID == id {
			return g, nil
		}
	}
	return models.Goal{}, common.ErrNotFound
}

func (f *fakeGoals) Create(_ context.Context, owner string, in models.GoalInput) (models.Goal, error) {
	g := models.Goal{ID: fmt.Sprintf("goal-%d", len(f.items)+1), OwnerID: owner, Title: in.Title, TargetAmount: in.TargetAmount, Deadline: in.Deadline}
	f.items = append(f.items, g)
	return g, nil
}

func (f *fakeGoals) Update(_ context.Context, owner, id string, in models.GoalInput) (models.Goal, error) {
	return models.Goal{}, common.ErrNotFound
}

func (f *fakeGoals) Delete(_ context.Context, owner, id string) error {
	return common.ErrNotFound
}

func (f *fakeGoals) AddMoney(_ context.Context, owner, id string, req models.AddMoneyRequest) (models.Goal, error) {
	return models.Goal{}, common.ErrNotFound
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]models.UserProfile
	deleted  []string
	setErr   error
}

func newFakeProfiles(profiles ...models.UserProfile) *fakeProfiles {
	f := &fakeProfiles{profiles: map[string]models.UserProfile{}}
	for _, p := range profiles {
		f.profiles[p.ID] = p
	}
	return f
}

func (f *fakeProfiles) Get(_ context.Context, uid string) (models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[uid]
	if !ok {
		return models.UserProfile{}, common.ErrNotFound
	}
	return p, nil
}

func (f *fakeProfiles) Ensure(_ context.Context, uid, name, email string) (models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.profiles[uid]; ok {
		return p, nil
	}
	p := models.UserProfile{ID: uid, Name: name, Email: email, Plan: models.PlanFree, Preferences: models.DefaultPreferences}
	f.profiles[uid] = p
	return p, nil
}

func (f *fakeProfiles) UpdateProfile(_ context.Context, uid string, update models.ProfileUpdate) (models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[uid]
	if !ok {
		return models.UserProfile{}, common.ErrNotFound
	}
	p.Name = update.Name
	f.profiles[uid] = p
	return p, nil
}

func (f *fakeProfiles) UpdatePreferences(_ context.Context, uid string, prefs models.Preferences) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.profiles[uid]
	p.ID = uid
	p.Preferences = prefs
	f.profiles[uid] = p
	return nil
}

func (f *fakeProfiles) SetPlan(_ context.Context, uid string, plan models.Plan, subscriptionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	p, ok := f.profiles[uid]
	if !ok {
		return fmt.Errorf("profile %s: %w", uid, common.ErrNotFound)
	}
	p.Plan = plan
	p.StripeSubscriptionID = subscriptionID
	f.profiles[uid] = p
	return nil
}

func (f *fakeProfiles) LinkCustomer(_ context.Context, uid, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[uid]
	if !ok {
		return common.ErrNotFound
	}
	p.StripeCustomerID = customerID
	f.profiles[uid] = p
	return nil
}

func (f *fakeProfiles) FindByCustomerID(_ context.Context, customerID string) (models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if p.StripeCustomerID == customerID {
			return p, nil
		}
	}
	return models.UserProfile{}, common.ErrNotFound
}

func (f *fakeProfiles) DeleteUserData(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.profiles, uid)
	f.deleted = append(f.deleted, uid)
	return nil
}

type fakeLedger struct {
	mu            sync.Mutex
	processed     map[string]bool
	letters       []models.DeadLetter
	subscriptions map[string][2]int64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{processed: map[string]bool{}, subscriptions: map[string][2]int64{}}
}

func (f *fakeLedger) AdvanceSubscription(_ context.Context, subscriptionID string, created int64, rank int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	last, ok := f.subscriptions[subscriptionID]
	if ok && (created < last[0] || (created == last[0] && int64(rank) < last[1])) {
		return false, nil
	}
	f.subscriptions[subscriptionID] = [2]int64{created, int64(rank)}
	return true, nil
}

func (f *fakeLedger) MarkProcessed(_ context.Context, eventID, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.processed[eventID] {
		return false, nil
	}
	f.processed[eventID] = true
	return true, nil
}

func (f *fakeLedger) AddDeadLetter(_ context.Context, eventID, eventType string, payload []byte, lastErr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.letters = append(f.letters, models.DeadLetter{
		ID:        int64(len(f.letters) + 1),
		EventID:   eventID,
		EventType: eventType,
		Payload:   payload,
		LastError: lastErr,
		Attempts:  1,
		Status:    models.DeadLetterPending,
	})
	return nil
}

func (f *fakeLedger) PendingDeadLetters(_ context.Context, limit int) ([]models.DeadLetter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.DeadLetter
	for _, l := range f.letters {
		if l.Status == models.DeadLetterPending && len(out) < limit {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLedger) ResolveDeadLetter(_ context.Context, id int64) error {
	return f.update(id, func(l *models.DeadLetter) {
		l.Attempts++
		l.Status = models.DeadLetterResolved
	})
}

func (f *fakeLedger) FailDeadLetter(_ context.Context, id int64, lastErr string, abandon bool) error {
	return f.update(id, func(l *models.DeadLetter) {
		l.Attempts++
		l.LastError = lastErr
		if abandon {
			l.Status = models.DeadLetterAbandoned
		}
	})
}

func (f *fakeLedger) update(id int64, fn func(*models.DeadLetter)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.letters {
		if f.letters[i].ID == id {
			fn(&f.letters[i])
			return nil
		}
	}
	return common.ErrNotFound
}
