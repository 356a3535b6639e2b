package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"ledgerly/backend/common"
	"ledgerly/backend/models"

	"github.com/google/uuid"
)

// Storage keys inside a guest namespace.
const (
	GuestTransactionsKey = "guest_transactions"
	GuestModeKey         = "guest_mode"
	GuestPreferencesKey  = "preferences"
)

// DefaultGuestCapacity is the hard ceiling of guest transactions.
const DefaultGuestCapacity = 3

// GuestStore keeps a small transaction list for an unauthenticated visitor. The list is
// stored as one JSON array under GuestTransactionsKey.
type GuestStore struct {
	storage  LocalStorage
	session  string
	capacity int
	now      func() time.Time
}

// NewGuestStore returns the store for one guest session.
func NewGuestStore(storage LocalStorage, sessionID string, capacity int) *GuestStore {
	if capacity <= 0 {
		capacity = DefaultGuestCapacity
	}
	return &GuestStore{
		storage:  storage,
		session:  sessionID,
		capacity: capacity,
		now:      time.Now,
	}
}

// SessionID returns the guest namespace.
func (g *GuestStore) SessionID() string {
	return g.session
}

// Capacity returns the transaction ceiling.
func (g *GuestStore) Capacity() int {
	return g.capacity
}

// Enable turns guest mode on for the session.
func (g *GuestStore) Enable(ctx context.Context) error {
	return g.storage.Set(ctx, g.session, GuestModeKey, "true")
}

// IsEnabled reports whether guest mode is on.
func (g *GuestStore) IsEnabled(ctx context.Context) (bool, error) {
	v, ok, err := g.storage.Get(ctx, g.session, GuestModeKey)
	if err != nil {
		return false, err
	}
	return ok && v == "true", nil
}

// Disable drops every piece of guest state, transactions included.
func (g *GuestStore) Disable(ctx context.Context) error {
	return g.storage.Clear(ctx, g.session)
}

// List returns the guest transactions, newest occurrence first.
func (g *GuestStore) List(ctx context.Context) ([]models.Transaction, error) {
	list, err := g.Stored(ctx)
	if err != nil {
		return nil, err
	}
	sortByOccurredDesc(list)
	return list, nil
}

// Stored returns the guest transactions in the order they were added.
func (g *GuestStore) Stored(ctx context.Context) ([]models.Transaction, error) {
	raw, ok, err := g.storage.Get(ctx, g.session, GuestTransactionsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read guest transactions: %w", err)
	}
	return decodeGuestList(raw, ok)
}

// ListByMonth returns the guest transactions dated in year/month.
func (g *GuestStore) ListByMonth(ctx context.Context, year int, month time.Month) ([]models.Transaction, error) {
	list, err := g.List(ctx)
	if err != nil {
		return nil, err
	}
	return MonthSubset(list, year, month), nil
}

// Count returns how many transactions the guest holds.
func (g *GuestStore) Count(ctx context.Context) (int, error) {
	list, err := g.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

// Get returns one guest transaction.
func (g *GuestStore) Get(ctx context.Context, id string) (models.Transaction, error) {
	list, err := g.List(ctx)
	if err != nil {
		return models.Transaction{}, err
	}
	for _, t := range list {
		if t.ID == id {
			return t, nil
		}
	}
	return models.Transaction{}, fmt.Errorf("guest transaction %s: %w", id, common.ErrNotFound)
}

// Add stores a new transaction. A full store returns a *models.CapacityError and the
// stored list is left unchanged.
func (g *GuestStore) Add(ctx context.Context, in models.TransactionInput) (models.Transaction, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return models.Transaction{}, err
	}

	tx := models.Transaction{
		ID:        uuid.NewString(),
		OwnerID:   models.GuestOwnerID,
		CreatedAt: g.now().UTC(),
	}
	in.Apply(&tx)

	err := g.storage.Update(ctx, g.session, GuestTransactionsKey, func(current string, ok bool) (string, error) {
		list, err := decodeGuestList(current, ok)
		if err != nil {
			return "", err
		}
		if len(list) >= g.capacity {
			return "", models.NewGuestCapacityError(g.capacity)
		}
		return encodeGuestList(append(list, tx))
	})
	if err != nil {
		return models.Transaction{}, err
	}
	return tx, nil
}

// Update edits a guest transaction in place.
func (g *GuestStore) Update(ctx context.Context, id string, in models.TransactionInput) (models.Transaction, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return models.Transaction{}, err
	}

	var updated models.Transaction
	err := g.storage.Update(ctx, g.session, GuestTransactionsKey, func(current string, ok bool) (string, error) {
		list, err := decodeGuestList(current, ok)
		if err != nil {
			return "", err
		}
		for i := range list {
			if list[i].ID == id {
				in.Apply(&list[i])
				updated = list[i]
				return encodeGuestList(list)
			}
		}
		return "", fmt.Errorf("guest transaction %s: %w", id, common.ErrNotFound)
	})
	if err != nil {
		return models.Transaction{}, err
	}
	return updated, nil
}

// Remove deletes guest transactions by id. Unknown ids are ignored unless none match.
func (g *GuestStore) Remove(ctx context.Context, ids ...string) error {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	return g.storage.Update(ctx, g.session, GuestTransactionsKey, func(current string, ok bool) (string, error) {
		list, err := decodeGuestList(current, ok)
		if err != nil {
			return "", err
		}
		kept := list[:0]
		for _, t := range list {
			if !drop[t.ID] {
				kept = append(kept, t)
			}
		}
		if len(kept) == len(list) {
			return "", fmt.Errorf("guest transaction %v: %w", ids, common.ErrNotFound)
		}
		return encodeGuestList(kept)
	})
}

// Clear removes all guest transactions but leaves guest mode untouched.
func (g *GuestStore) Clear(ctx context.Context) error {
	return g.storage.Delete(ctx, g.session, GuestTransactionsKey)
}

func decodeGuestList(raw string, ok bool) ([]models.Transaction, error) {
	if !ok || raw == "" {
		return []models.Transaction{}, nil
	}
	var list []models.Transaction
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("corrupt guest transaction list: %w", err)
	}
	return list, nil
}

func encodeGuestList(list []models.Transaction) (string, error) {
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("failed to encode guest transactions: %w", err)
	}
	return string(data), nil
}

func sortByOccurredDesc(list []models.Transaction) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].OccurredOn.Equal(list[j].OccurredOn.Time) {
			return list[i].OccurredOn.After(list[j].OccurredOn)
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
