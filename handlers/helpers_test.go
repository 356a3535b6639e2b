package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"ledgerly/backend/common"
	"ledgerly/backend/database"
	"ledgerly/backend/middleware"
	"ledgerly/backend/models"
	"ledgerly/backend/services"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

// TestUserID is the authenticated user used across handler tests.
const TestUserID = "test-user-id"

const testGuestSession = "guest-session-1"

var testNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv is a Handlers instance backed by an in-memory SQLite database for guest
// storage and the billing ledger, and in-memory fakes for the document store.
type testEnv struct {
	h            *Handlers
	kv           *database.KVStore
	ledger       *database.BillingLedger
	transactions *memTransactions
	goals        *memGoals
	profiles     *memProfiles
	cookies      *recordingCookies
}

func newTestEnv(t *testing.T, policy services.MigrationPolicy) *testEnv {
	t.Helper()
	db, err := database.OpenLocal("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(testLogger()))

	transactions := &memTransactions{}
	env := &testEnv{
		kv:           database.NewKVStore(db),
		ledger:       database.NewBillingLedger(db),
		transactions: transactions,
		goals:        &memGoals{transactions: transactions},
		profiles:     newMemProfiles(),
		cookies:      &recordingCookies{},
	}
	plans := services.NewPlans(services.DefaultFreeMaxTransactions)

	env.h = New(Options{
		Sources: &services.Sources{
			Transactions:  env.transactions,
			Storage:       env.kv,
			Plans:         plans,
			GuestCapacity: services.DefaultGuestCapacity,
		},
		Goals:       env.goals,
		Profiles:    env.profiles,
		Preferences: services.NewPreferencesService(env.profiles, env.kv),
		Billing: services.NewBillingService(env.profiles, env.ledger, nil, services.BillingOptions{
			WebhookSecret: testWebhookSecret,
			MaxAttempts:   3,
			Retry:         common.RetryOptions{MaxAttempts: 1},
		}, testLogger()),
		Accounts:        services.NewAccountService(env.profiles, nil, testLogger()),
		Plans:           plans,
		Cookies:         env.cookies,
		MigrationPolicy: policy,
		Version:         "test",
		Now:             func() time.Time { return testNow },
		Logger:          testLogger(),
	})

	// testGuestSession is a guest that already went through /guest/enable
	require.NoError(t, env.h.sources.Guest(testGuestSession).Enable(context.Background()))
	return env
}

func userSession(plan models.Plan) services.Session {
	return services.Session{
		Identity: &services.Identity{UID: TestUserID, Email: "test@example.com", Name: "Test User"},
		Plan:     plan,
	}
}

func guestSession() services.Session {
	return services.Session{GuestSessionID: testGuestSession}
}

// newRequest builds a request carrying session, JSON body and mux vars.
func newRequest(t *testing.T, method, target string, body any, session *services.Session, vars map[string]string) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if session != nil {
		req = req.WithContext(middleware.WithSession(req.Context(), *session))
	}
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	return req
}

func serve(handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), rr.Body.String())
	return v
}

func expense(amount float64, category models.Category, day models.Date) models.TransactionInput {
	return models.TransactionInput{
		Kind:       models.KindExpense,
		Category:   category,
		Amount:     amount,
		OccurredOn: day,
	}
}

type recordingCookies struct {
	issued  []string
	cleared int
}

func (c *recordingCookies) IssueGuestCookie(w http.ResponseWriter, sessionID string) error {
	c.issued = append(c.issued, sessionID)
	return nil
}

func (c *recordingCookies) ClearGuestCookie(w http.ResponseWriter) {
	c.cleared++
}

type memTransactions struct {
	mu     sync.Mutex
	items  []models.Transaction
	nextID int
}

func (m *memTransactions) List(_ context.Context, owner string, filter models.TransactionFilter) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Transaction
	for _, t := range m.items {
		if t.OwnerID == owner && filter.Matches(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredOn.After(out[j].OccurredOn) })
	return out, nil
}

func (m *memTransactions) ListByMonth(ctx context.Context, owner string, year int, month time.Month) ([]models.Transaction, error) {
	all, err := m.List(ctx, owner, models.TransactionFilter{})
	if err != nil {
		return nil, err
	}
	return services.MonthSubset(all, year, month), nil
}

func (m *memTransactions) Get(_ context.Context, owner, id string) (models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.items {
		if t.ID == id && t.OwnerID == owner {
			return t, nil
		}
	}
	return models.Transaction{}, common.ErrNotFound
}

func (m *memTransactions) Create(_ context.Context, owner string, in models.TransactionInput) (models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t := models.Transaction{ID: fmt.Sprintf("tx-%d", m.nextID), OwnerID: owner, CreatedAt: testNow}
	in.Apply(&t)
	m.items = append(m.items, t)
	return t, nil
}

func (m *memTransactions) Update(_ context.Context, owner, id string, in models.TransactionInput) (models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].OwnerID == owner {
			in.Apply(&m.items[i])
			return m.items[i], nil
		}
	}
	return models.Transaction{}, common.ErrNotFound
}

func (m *memTransactions) Delete(_ context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].OwnerID == owner {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return common.ErrNotFound
}

func (m *memTransactions) Count(_ context.Context, owner string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.items {
		if t.OwnerID == owner {
			n++
		}
	}
	return n, nil
}

type memGoals struct {
	mu           sync.Mutex
	items        []models.Goal
	transactions *memTransactions
}

func (m *memGoals) List(_ context.Context, owner string) ([]models.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Goal
	for _, g := range m.items {
		if g.OwnerID == owner {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *memGoals) find(owner, id string) int {
	for i, g := range m.items {
		if g.ID == id && g.OwnerID == owner {
			return i
		}
	}
	return -1
}

func (m *memGoals) Get(_ context.Context, owner, id string) (models.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.find(owner, id); i >= 0 {
		return m.items[i], nil
	}
	return models.Goal{}, common.ErrNotFound
}

func (m *memGoals) Create(_ context.Context, owner string, in models.GoalInput) (models.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := models.Goal{
		ID:           fmt.Sprintf("goal-%d", len(m.items)+1),
		OwnerID:      owner,
		Title:        in.Title,
		TargetAmount: in.TargetAmount,
		Deadline:     in.Deadline,
		Description:  in.Description,
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
	m.items = append(m.items, g)
	return g, nil
}

func (m *memGoals) Update(_ context.Context, owner, id string, in models.GoalInput) (models.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(owner, id)
	if i < 0 {
		return models.Goal{}, common.ErrNotFound
	}
	m.items[i].Title = in.Title
	m.items[i].TargetAmount = in.TargetAmount
	m.items[i].Deadline = in.Deadline
	m.items[i].Description = in.Description
	return m.items[i], nil
}

func (m *memGoals) Delete(_ context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(owner, id)
	if i < 0 {
		return common.ErrNotFound
	}
	m.items = append(m.items[:i], m.items[i+1:]...)
	return nil
}

func (m *memGoals) AddMoney(ctx context.Context, owner, id string, req models.AddMoneyRequest) (models.Goal, error) {
	m.mu.Lock()
	i := m.find(owner, id)
	if i < 0 {
		m.mu.Unlock()
		return models.Goal{}, common.ErrNotFound
	}
	m.items[i].CurrentAmount += req.Amount
	goal := m.items[i]
	m.mu.Unlock()

	if req.FromBalance && m.transactions != nil {
		_, err := m.transactions.Create(ctx, owner, database.OffsetExpense(goal.Title, req, testNow))
		if err != nil {
			return models.Goal{}, err
		}
	}
	return goal, nil
}

type memProfiles struct {
	mu       sync.Mutex
	profiles map[string]models.UserProfile
	deleted  []string
}

func newMemProfiles() *memProfiles {
	return &memProfiles{profiles: map[string]models.UserProfile{
		TestUserID: {ID: TestUserID, Name: "Test User", Email: "test@example.com", Plan: models.PlanFree, CreatedAt: testNow},
	}}
}

func (m *memProfiles) Get(_ context.Context, uid string) (models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[uid]
	if !ok {
		return models.UserProfile{}, common.ErrNotFound
	}
	return p, nil
}

func (m *memProfiles) Ensure(_ context.Context, uid, name, email string) (models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[uid]; ok {
		return p, nil
	}
	p := models.UserProfile{ID: uid, Name: name, Email: email, Plan: models.PlanFree}
	m.profiles[uid] = p
	return p, nil
}

func (m *memProfiles) UpdateProfile(_ context.Context, uid string, update models.ProfileUpdate) (models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[uid]
	if !ok {
		return models.UserProfile{}, common.ErrNotFound
	}
	p.Name = update.Name
	m.profiles[uid] = p
	return p, nil
}

func (m *memProfiles) UpdatePreferences(_ context.Context, uid string, prefs models.Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[uid]
	if !ok {
		return common.ErrNotFound
	}
	p.Preferences = prefs
	m.profiles[uid] = p
	return nil
}

func (m *memProfiles) SetPlan(_ context.Context, uid string, plan models.Plan, subscriptionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[uid]
	if !ok {
		return common.ErrNotFound
	}
	p.Plan = plan
	p.StripeSubscriptionID = subscriptionID
	m.profiles[uid] = p
	return nil
}

func (m *memProfiles) LinkCustomer(_ context.Context, uid, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[uid]
	if !ok {
		return common.ErrNotFound
	}
	p.StripeCustomerID = customerID
	m.profiles[uid] = p
	return nil
}

func (m *memProfiles) FindByCustomerID(_ context.Context, customerID string) (models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.StripeCustomerID == customerID {
			return p, nil
		}
	}
	return models.UserProfile{}, common.ErrNotFound
}

func (m *memProfiles) DeleteUserData(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.profiles, uid)
	m.deleted = append(m.deleted, uid)
	return nil
}
