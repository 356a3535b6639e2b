package database

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"ledgerly/backend/common"
	"ledgerly/backend/models"

	"cloud.google.com/go/firestore"
)

// GoalStore persists savings goals in the goals collection.
type GoalStore struct {
	client *firestore.Client
	logger *slog.Logger
	now    func() time.Time
}

func (s *GoalStore) col() *firestore.CollectionRef {
	return s.client.Collection(goalsCollection)
}

// List returns the owner's goals, nearest deadline first.
func (s *GoalStore) List(ctx context.Context, ownerID string) ([]models.Goal, error) {
	docs, err := collect(s.col().Where("ownerId", "==", ownerID).Documents(ctx))
	if err != nil {
		return nil, classify(err, "list goals")
	}

	goals := make([]models.Goal, 0, len(docs))
	for _, doc := range docs {
		g, err := decodeGoal(doc.Ref.ID, doc.Data())
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	sortGoals(goals)
	return goals, nil
}

// Get returns one goal of the owner.
func (s *GoalStore) Get(ctx context.Context, ownerID, id string) (models.Goal, error) {
	doc, err := s.col().Doc(id).Get(ctx)
	if err != nil {
		return models.Goal{}, classify(err, "goal "+id)
	}
	return ownedGoal(doc, ownerID)
}

func ownedGoal(doc *firestore.DocumentSnapshot, ownerID string) (models.Goal, error) {
	g, err := decodeGoal(doc.Ref.ID, doc.Data())
	if err != nil {
		return models.Goal{}, err
	}
	if g.OwnerID != ownerID {
		return models.Goal{}, fmt.Errorf("goal %s: %w", doc.Ref.ID, common.ErrNotFound)
	}
	return g, nil
}

// Create stores a new goal with nothing saved yet.
func (s *GoalStore) Create(ctx context.Context, ownerID string, in models.GoalInput) (models.Goal, error) {
	ref := s.col().NewDoc()
	now := s.now().UTC()
	if _, err := ref.Create(ctx, goalData(ownerID, in, now)); err != nil {
		return models.Goal{}, classify(err, "create goal")
	}
	return models.Goal{
		ID:           ref.ID,
		OwnerID:      ownerID,
		Title:        in.Title,
		TargetAmount: in.TargetAmount,
		Deadline:     in.Deadline,
		Description:  in.Description,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Update replaces the editable fields of a goal. The saved amount is untouched.
func (s *GoalStore) Update(ctx context.Context, ownerID, id string, in models.GoalInput) (models.Goal, error) {
	g, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return models.Goal{}, err
	}

	now := s.now().UTC()
	_, err = s.col().Doc(id).Update(ctx, []firestore.Update{
		{Path: "title", Value: in.Title},
		{Path: "targetAmount", Value: in.TargetAmount},
		{Path: "deadline", Value: dateTimestamp(in.Deadline)},
		{Path: "description", Value: in.Description},
		{Path: "updatedAt", Value: now},
	})
	if err != nil {
		return models.Goal{}, classify(err, "update goal "+id)
	}

	g.Title = in.Title
	g.TargetAmount = in.TargetAmount
	g.Deadline = in.Deadline
	g.Description = in.Description
	g.UpdatedAt = now
	return g, nil
}

// Delete removes a goal of the owner.
func (s *GoalStore) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	if _, err := s.col().Doc(id).Delete(ctx); err != nil {
		return classify(err, "delete goal "+id)
	}
	return nil
}

// AddMoney increments the saved amount and, for contributions taken from the
// balance, creates the offsetting expense in the same Firestore transaction.
func (s *GoalStore) AddMoney(ctx context.Context, ownerID, id string, req models.AddMoneyRequest) (models.Goal, error) {
	ref := s.col().Doc(id)
	var updated models.Goal

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			return classify(err, "goal "+id)
		}
		g, err := ownedGoal(doc, ownerID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if err := tx.Update(ref, []firestore.Update{
			{Path: "currentAmount", Value: firestore.Increment(req.Amount)},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}

		if req.FromBalance {
			expense := OffsetExpense(g.Title, req, s.now())
			txRef := s.client.Collection(transactionsCollection).NewDoc()
			if err := tx.Create(txRef, transactionData(ownerID, expense, now)); err != nil {
				return err
			}
		}

		g.CurrentAmount += req.Amount
		g.UpdatedAt = now
		updated = g
		return nil
	})
	if err != nil {
		return models.Goal{}, fmt.Errorf("failed to add money to goal %s: %w", id, err)
	}

	s.logger.Info("Added money to goal",
		"owner_id", ownerID,
		"goal_id", id,
		"amount", req.Amount,
		"from_balance", req.FromBalance)
	return updated, nil
}

// OffsetLabel is the custom label of the expense recorded when money moves from the
// balance into a goal.
func OffsetLabel(goalTitle string) string {
	return "Goal: " + goalTitle
}

// OffsetExpense is the expense recorded for a contribution taken from the balance.
// It is dated on the caller's calendar day, or on now's day in now's location when
// the request carries no date.
func OffsetExpense(goalTitle string, req models.AddMoneyRequest, now time.Time) models.TransactionInput {
	day := req.OccurredOn
	if day.IsZero() {
		day = models.DateOf(now)
	}
	return models.TransactionInput{
		Kind:        models.KindExpense,
		Category:    models.CategoryOther,
		CustomLabel: OffsetLabel(goalTitle),
		Amount:      req.Amount,
		OccurredOn:  day,
	}
}

func sortGoals(goals []models.Goal) {
	sort.SliceStable(goals, func(i, j int) bool {
		return goals[i].Deadline.Before(goals[j].Deadline)
	})
}
