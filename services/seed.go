package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"ledgerly/backend/models"

	"github.com/brianvoe/gofakeit/v6"
)

// SeedOptions controls demo data generation.
type SeedOptions struct {
	Transactions int
	Goals        int
	Months       int
	Seed         int64
}

// SeedResult counts the generated records.
type SeedResult struct {
	Transactions int
	Goals        int
}

// RandomTransactionInput returns a valid transaction dated within the last months.
func RandomTransactionInput(f *gofakeit.Faker, now time.Time, months int) models.TransactionInput {
	if months <= 0 {
		months = 6
	}
	start := now.AddDate(0, -months, 0)
	in := models.TransactionInput{
		Kind:       models.KindExpense,
		Category:   models.Categories[f.Number(0, len(models.Categories)-1)],
		Amount:     math.Round(f.Float64Range(5, 400)*100) / 100,
		OccurredOn: models.DateOf(f.DateRange(start, now)),
	}
	if f.Number(1, 5) == 1 {
		in.Kind = models.KindIncome
		in.Amount = math.Round(f.Float64Range(800, 4000)*100) / 100
	}
	if in.Category == models.CategoryOther {
		in.CustomLabel = f.BuzzWord()
	}
	return in
}

// RandomGoalInput returns a valid goal with a deadline up to a year ahead.
func RandomGoalInput(f *gofakeit.Faker, now time.Time) models.GoalInput {
	return models.GoalInput{
		Title:        fmt.Sprintf("%s fund", f.Hobby()),
		TargetAmount: float64(f.Number(5, 100)) * 100,
		Deadline:     models.DateOf(f.DateRange(now.AddDate(0, 1, 0), now.AddDate(1, 0, 0))),
		Description:  f.Sentence(6),
	}
}

// Seed writes random demo data for ownerID straight to the repositories.
func Seed(ctx context.Context, transactions TransactionRepository, goals GoalRepository, ownerID string, opts SeedOptions, now time.Time) (SeedResult, error) {
	var result SeedResult
	f := gofakeit.New(opts.Seed)

	for i := 0; i < opts.Transactions; i++ {
		if _, err := transactions.Create(ctx, ownerID, RandomTransactionInput(f, now, opts.Months)); err != nil {
			return result, fmt.Errorf("failed to seed transaction %d: %w", i, err)
		}
		result.Transactions++
	}
	for i := 0; i < opts.Goals; i++ {
		if _, err := goals.Create(ctx, ownerID, RandomGoalInput(f, now)); err != nil {
			return result, fmt.Errorf("failed to seed goal %d: %w", i, err)
		}
		result.Goals++
	}
	return result, nil
}
