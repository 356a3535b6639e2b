package services

import (
	"context"
	"time"

	"ledgerly/backend/models"
)

// TransactionRepository is the persistent store of account transactions. Every call
// is scoped to one owner.
type TransactionRepository interface {
	List(ctx context.Context, ownerID string, filter models.TransactionFilter) ([]models.Transaction, error)
	ListByMonth(ctx context.Context, ownerID string, year int, month time.Month) ([]models.Transaction, error)
	Get(ctx context.Context, ownerID, id string) (models.Transaction, error)
	Create(ctx context.Context, ownerID string, in models.TransactionInput) (models.Transaction, error)
	Update(ctx context.Context, ownerID, id string, in models.TransactionInput) (models.Transaction, error)
	Delete(ctx context.Context, ownerID, id string) error
	Count(ctx context.Context, ownerID string) (int, error)
}

// GoalRepository is the persistent store of savings goals.
type GoalRepository interface {
	List(ctx context.Context, ownerID string) ([]models.Goal, error)
	Get(ctx context.Context, ownerID, id string) (models.Goal, error)
	Create(ctx context.Context, ownerID string, in models.GoalInput) (models.Goal, error)
	Update(ctx context.Context, ownerID, id string, in models.GoalInput) (models.Goal, error)
	Delete(ctx context.Context, ownerID, id string) error
	// AddMoney increments the goal and, when req.FromBalance is set, records the
	// offsetting expense in the same atomic write.
	AddMoney(ctx context.Context, ownerID, id string, req models.AddMoneyRequest) (models.Goal, error)
}

// ProfileRepository is the persistent store of user profiles.
type ProfileRepository interface {
	Get(ctx context.Context, uid string) (models.UserProfile, error)
	Ensure(ctx context.Context, uid, name, email string) (models.UserProfile, error)
	UpdateProfile(ctx context.Context, uid string, update models.ProfileUpdate) (models.UserProfile, error)
	UpdatePreferences(ctx context.Context, uid string, prefs models.Preferences) error
	SetPlan(ctx context.Context, uid string, plan models.Plan, subscriptionID string) error
	LinkCustomer(ctx context.Context, uid, customerID string) error
	FindByCustomerID(ctx context.Context, customerID string) (models.UserProfile, error)
	DeleteUserData(ctx context.Context, uid string) error
}
