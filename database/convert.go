package database

import (
	"fmt"
	"time"

	"ledgerly/backend/models"
)

// Documents store dates as Firestore Timestamps. Older documents hold ISO-8601
// strings instead; both are accepted on read.

func timeValue(v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return t, nil
	case *time.Time:
		if t == nil {
			return time.Time{}, nil
		}
		return *t, nil
	case string:
		if t == "" {
			return time.Time{}, nil
		}
		for _, layout := range []string{time.RFC3339Nano, models.DateLayout, "2006-01-02T15:04:05"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable time %q", t)
	}
	return time.Time{}, fmt.Errorf("unsupported time value %T", v)
}

func dateValue(v any) (models.Date, error) {
	t, err := timeValue(v)
	if err != nil || t.IsZero() {
		return models.Date{}, err
	}
	return models.DateOf(t.UTC()), nil
}

// dateTimestamp is the stored form of a date: midnight UTC.
func dateTimestamp(d models.Date) time.Time {
	return d.In(time.UTC)
}

func floatValue(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func transactionData(ownerID string, in models.TransactionInput, createdAt time.Time) map[string]any {
	return map[string]any{
		"ownerId":     ownerID,
		"kind":        string(in.Kind),
		"category":    string(in.Category),
		"customLabel": in.CustomLabel,
		"amount":      in.Amount,
		"occurredOn":  dateTimestamp(in.OccurredOn),
		"createdAt":   createdAt,
	}
}

func decodeTransaction(id string, data map[string]any) (models.Transaction, error) {
	occurred, err := dateValue(data["occurredOn"])
	if err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %s: occurredOn: %w", id, err)
	}
	created, err := timeValue(data["createdAt"])
	if err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %s: createdAt: %w", id, err)
	}
	return models.Transaction{
		ID:          id,
		OwnerID:     stringValue(data["ownerId"]),
		Kind:        models.Kind(stringValue(data["kind"])),
		Category:    models.Category(stringValue(data["category"])),
		CustomLabel: stringValue(data["customLabel"]),
		Amount:      floatValue(data["amount"]),
		OccurredOn:  occurred,
		CreatedAt:   created,
	}, nil
}

func goalData(ownerID string, in models.GoalInput, now time.Time) map[string]any {
	return map[string]any{
		"ownerId":       ownerID,
		"title":         in.Title,
		"targetAmount":  in.TargetAmount,
		"currentAmount": 0.0,
		"deadline":      dateTimestamp(in.Deadline),
		"description":   in.Description,
		"createdAt":     now,
		"updatedAt":     now,
	}
}

func decodeGoal(id string, data map[string]any) (models.Goal, error) {
	deadline, err := dateValue(data["deadline"])
	if err != nil {
		return models.Goal{}, fmt.Errorf("goal %s: deadline: %w", id, err)
	}
	created, err := timeValue(data["createdAt"])
	if err != nil {
		return models.Goal{}, fmt.Errorf("goal %s: createdAt: %w", id, err)
	}
	updated, err := timeValue(data["updatedAt"])
	if err != nil {
		return models.Goal{}, fmt.Errorf("goal %s: updatedAt: %w", id, err)
	}
	return models.Goal{
		ID:            id,
		OwnerID:       stringValue(data["ownerId"]),
		Title:         stringValue(data["title"]),
		TargetAmount:  floatValue(data["targetAmount"]),
		CurrentAmount: floatValue(data["currentAmount"]),
		Deadline:      deadline,
		Description:   stringValue(data["description"]),
		CreatedAt:     created,
		UpdatedAt:     updated,
	}, nil
}

func preferencesData(p models.Preferences) map[string]any {
	return map[string]any{
		"theme":    p.Theme,
		"language": p.Language,
		"currency": p.Currency,
	}
}

func decodeProfile(id string, data map[string]any) (models.UserProfile, error) {
	created, err := timeValue(data["createdAt"])
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("profile %s: createdAt: %w", id, err)
	}

	prefs := models.DefaultPreferences
	if raw, ok := data["preferences"].(map[string]any); ok {
		prefs = prefs.Merge(models.Preferences{
			Theme:    stringValue(raw["theme"]),
			Language: stringValue(raw["language"]),
			Currency: stringValue(raw["currency"]),
		})
	}

	plan := models.Plan(stringValue(data["plan"]))
	if !plan.Valid() {
		plan = models.PlanFree
	}

	return models.UserProfile{
		ID:                   id,
		Name:                 stringValue(data["name"]),
		Email:                stringValue(data["email"]),
		Plan:                 plan,
		Preferences:          prefs,
		StripeCustomerID:     stringValue(data["stripeCustomerId"]),
		StripeSubscriptionID: stringValue(data["stripeSubscriptionId"]),
		CreatedAt:            created,
	}, nil
}
