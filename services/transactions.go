package services

import (
	"context"
	"fmt"
	"time"

	"ledgerly/backend/common"
	"ledgerly/backend/models"
)

// TransactionSource is the single transaction surface handlers talk to. Guest and
// account sessions get different implementations.
type TransactionSource interface {
	List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error)
	ListByMonth(ctx context.Context, year int, month time.Month) ([]models.Transaction, error)
	Get(ctx context.Context, id string) (models.Transaction, error)
	Add(ctx context.Context, in models.TransactionInput) (models.Transaction, error)
	Update(ctx context.Context, id string, in models.TransactionInput) (models.Transaction, error)
	Remove(ctx context.Context, id string) error
	// CanAdd reports whether one more transaction would be accepted.
	CanAdd(ctx context.Context) (models.Decision, error)
}

// AccountSource serves an authenticated owner from the persistent store and applies
// plan gating on creation.
type AccountSource struct {
	repo    TransactionRepository
	plans   *Plans
	ownerID string
	plan    models.Plan
}

// NewAccountSource returns the source for ownerID on plan.
func NewAccountSource(repo TransactionRepository, plans *Plans, ownerID string, plan models.Plan) *AccountSource {
	if plans == nil {
		plans = DefaultPlans
	}
	return &AccountSource{repo: repo, plans: plans, ownerID: ownerID, plan: plan}
}

func (s *AccountSource) List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	return s.repo.List(ctx, s.ownerID, filter)
}

func (s *AccountSource) ListByMonth(ctx context.Context, year int, month time.Month) ([]models.Transaction, error) {
	return s.repo.ListByMonth(ctx, s.ownerID, year, month)
}

func (s *AccountSource) Get(ctx context.Context, id string) (models.Transaction, error) {
	return s.repo.Get(ctx, s.ownerID, id)
}

// Add validates, checks the plan ceiling, then creates the transaction.
func (s *AccountSource) Add(ctx context.Context, in models.TransactionInput) (models.Transaction, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return models.Transaction{}, err
	}

	decision, err := s.CanAdd(ctx)
	if err != nil {
		return models.Transaction{}, err
	}
	if !decision.Allowed {
		return models.Transaction{}, models.NewPlanLimitError(decision)
	}

	return s.repo.Create(ctx, s.ownerID, in)
}

func (s *AccountSource) Update(ctx context.Context, id string, in models.TransactionInput) (models.Transaction, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return models.Transaction{}, err
	}
	return s.repo.Update(ctx, s.ownerID, id, in)
}

func (s *AccountSource) Remove(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, s.ownerID, id)
}

func (s *AccountSource) CanAdd(ctx context.Context) (models.Decision, error) {
	count, err := s.repo.Count(ctx, s.ownerID)
	if err != nil {
		return models.Decision{}, fmt.Errorf("failed to count transactions: %w", err)
	}
	return s.plans.CanCreateTransaction(s.plan, count), nil
}

// GuestSource serves a guest session from the local store.
type GuestSource struct {
	store *GuestStore
}

// NewGuestSource wraps store.
func NewGuestSource(store *GuestStore) *GuestSource {
	return &GuestSource{store: store}
}

func (s *GuestSource) List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Transaction, 0, len(list))
	for _, t := range list {
		if filter.Matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *GuestSource) ListByMonth(ctx context.Context, year int, month time.Month) ([]models.Transaction, error) {
	return s.store.ListByMonth(ctx, year, month)
}

func (s *GuestSource) Get(ctx context.Context, id string) (models.Transaction, error) {
	return s.store.Get(ctx, id)
}

func (s *GuestSource) Add(ctx context.Context, in models.TransactionInput) (models.Transaction, error) {
	return s.store.Add(ctx, in)
}

func (s *GuestSource) Update(ctx context.Context, id string, in models.TransactionInput) (models.Transaction, error) {
	return s.store.Update(ctx, id, in)
}

func (s *GuestSource) Remove(ctx context.Context, id string) error {
	return s.store.Remove(ctx, id)
}

func (s *GuestSource) CanAdd(ctx context.Context) (models.Decision, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return models.Decision{}, err
	}
	if count >= s.store.Capacity() {
		return models.NewGuestCapacityError(s.store.Capacity()).Decision, nil
	}
	return models.Allow(), nil
}

// Sources builds the TransactionSource for a session.
type Sources struct {
	Transactions  TransactionRepository
	Storage       LocalStorage
	Plans         *Plans
	GuestCapacity int
}

// For selects the account source for authenticated sessions and the guest source
// for guest sessions. A guest session is only served while guest mode is on.
func (s *Sources) For(ctx context.Context, session Session) (TransactionSource, error) {
	switch {
	case session.IsAuthenticated():
		return NewAccountSource(s.Transactions, s.Plans, session.Identity.UID, session.Plan), nil
	case session.IsGuest():
		store, err := s.ActiveGuest(ctx, session.GuestSessionID)
		if err != nil {
			return nil, err
		}
		return NewGuestSource(store), nil
	default:
		return nil, common.ErrUnauthorized
	}
}

// ActiveGuest returns the guest store of sessionID, or ErrUnauthorized when guest
// mode was never enabled or has been disabled for it.
func (s *Sources) ActiveGuest(ctx context.Context, sessionID string) (*GuestStore, error) {
	store := s.Guest(sessionID)
	enabled, err := store.IsEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read guest mode: %w", err)
	}
	if !enabled {
		return nil, fmt.Errorf("%w: guest mode is not enabled", common.ErrUnauthorized)
	}
	return store, nil
}

// Guest returns the guest store of a guest session id.
func (s *Sources) Guest(sessionID string) *GuestStore {
	return NewGuestStore(s.Storage, sessionID, s.GuestCapacity)
}
