package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ledgerly/backend/common"
	"ledgerly/backend/models"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ProfileStore persists user profiles in the users collection, keyed by uid.
type ProfileStore struct {
	client *firestore.Client
	logger *slog.Logger
	now    func() time.Time
}

func (s *ProfileStore) doc(uid string) *firestore.DocumentRef {
	return s.client.Collection(usersCollection).Doc(uid)
}

// Get returns the profile of uid.
func (s *ProfileStore) Get(ctx context.Context, uid string) (models.UserProfile, error) {
	doc, err := s.doc(uid).Get(ctx)
	if err != nil {
		return models.UserProfile{}, classify(err, "profile "+uid)
	}
	return decodeProfile(doc.Ref.ID, doc.Data())
}

// Ensure returns the profile of uid, creating a free profile on first sign-in.
func (s *ProfileStore) Ensure(ctx context.Context, uid, name, email string) (models.UserProfile, error) {
	ref := s.doc(uid)
	var profile models.UserProfile

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err == nil {
			profile, err = decodeProfile(doc.Ref.ID, doc.Data())
			return err
		}
		if status.Code(err) != codes.NotFound {
			return err
		}

		profile = models.UserProfile{
			ID:          uid,
			Name:        name,
			Email:       email,
			Plan:        models.PlanFree,
			Preferences: models.DefaultPreferences,
			CreatedAt:   s.now().UTC(),
		}
		return tx.Create(ref, map[string]any{
			"name":        profile.Name,
			"email":       profile.Email,
			"plan":        string(profile.Plan),
			"preferences": preferencesData(profile.Preferences),
			"createdAt":   profile.CreatedAt,
		})
	})
	if err != nil {
		return models.UserProfile{}, classify(err, "ensure profile "+uid)
	}
	return profile, nil
}

// UpdateProfile changes the display name.
func (s *ProfileStore) UpdateProfile(ctx context.Context, uid string, update models.ProfileUpdate) (models.UserProfile, error) {
	if _, err := s.doc(uid).Update(ctx, []firestore.Update{{Path: "name", Value: update.Name}}); err != nil {
		return models.UserProfile{}, classify(err, "update profile "+uid)
	}
	return s.Get(ctx, uid)
}

// UpdatePreferences replaces the stored preferences.
func (s *ProfileStore) UpdatePreferences(ctx context.Context, uid string, prefs models.Preferences) error {
	_, err := s.doc(uid).Set(ctx, map[string]any{
		"preferences": preferencesData(prefs),
	}, firestore.MergeAll)
	if err != nil {
		return classify(err, "update preferences "+uid)
	}
	return nil
}

// SetPlan writes the billing plan. Only billing calls this.
func (s *ProfileStore) SetPlan(ctx context.Context, uid string, plan models.Plan, subscriptionID string) error {
	if !plan.Valid() {
		return fmt.Errorf("unknown plan %q", plan)
	}
	updates := []firestore.Update{
		{Path: "plan", Value: string(plan)},
		{Path: "planUpdatedAt", Value: s.now().UTC()},
	}
	if subscriptionID != "" {
		updates = append(updates, firestore.Update{Path: "stripeSubscriptionId", Value: subscriptionID})
	}
	if _, err := s.doc(uid).Update(ctx, updates); err != nil {
		return classify(err, "set plan of "+uid)
	}
	s.logger.Info("Plan updated", "owner_id", uid, "plan", string(plan))
	return nil
}

// LinkCustomer stores the payment processor customer id of uid.
func (s *ProfileStore) LinkCustomer(ctx context.Context, uid, customerID string) error {
	_, err := s.doc(uid).Update(ctx, []firestore.Update{{Path: "stripeCustomerId", Value: customerID}})
	if err != nil {
		return classify(err, "link customer of "+uid)
	}
	return nil
}

// FindByCustomerID returns the profile linked to a payment processor customer.
func (s *ProfileStore) FindByCustomerID(ctx context.Context, customerID string) (models.UserProfile, error) {
	docs, err := collect(s.client.Collection(usersCollection).
		Where("stripeCustomerId", "==", customerID).
		Limit(1).
		Documents(ctx))
	if err != nil {
		return models.UserProfile{}, classify(err, "find customer "+customerID)
	}
	if len(docs) == 0 {
		return models.UserProfile{}, fmt.Errorf("customer %s: %w", customerID, common.ErrNotFound)
	}
	return decodeProfile(docs[0].Ref.ID, docs[0].Data())
}

// DeleteUserData removes every transaction, goal and the profile of uid. The
// identity record is deleted separately, after this succeeds.
func (s *ProfileStore) DeleteUserData(ctx context.Context, uid string) error {
	bw := s.client.BulkWriter(ctx)

	var jobs []*firestore.BulkWriterJob
	for _, collection := range []string{transactionsCollection, goalsCollection} {
		queued, err := deleteWhere(ctx, s.client, bw, collection, uid)
		if err != nil {
			bw.End()
			return err
		}
		jobs = append(jobs, queued...)
	}
	profileJob, err := bw.Delete(s.doc(uid))
	if err != nil {
		bw.End()
		return fmt.Errorf("failed to queue profile delete: %w", err)
	}
	jobs = append(jobs, profileJob)
	bw.End()

	var errs []error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil && status.Code(err) != codes.NotFound {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to delete data of %s: %w", uid, errors.Join(errs...))
	}

	s.logger.Info("Deleted user data", "owner_id", uid, "documents", len(jobs))
	return nil
}
