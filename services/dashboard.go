package services

import (
	"context"
	"fmt"
	"time"

	"ledgerly/backend/models"
)

// Dashboard is the aggregated view of an owner's transactions. Gated sections are nil
// when the plan does not include them and are listed in LockedFeatures.
type Dashboard struct {
	Month          string                  `json:"month"`
	Summary        models.MonthSummary     `json:"summary"`
	ByCategory     []models.CategoryAmount `json:"byCategory"`
	MonthlySeries  []models.MonthBucket    `json:"monthlySeries"`
	Comparison     *models.MonthComparison `json:"comparison,omitempty"`
	CategoryTotals []models.CategoryTotal  `json:"categoryTotals,omitempty"`
	HighExpenses   []models.ExpenseOutlier `json:"highExpenses,omitempty"`
	LockedFeatures []models.Feature        `json:"lockedFeatures"`
	CanAdd         models.Decision         `json:"canAdd"`
}

// BuildDashboard aggregates transactions as of now for plan.
func BuildDashboard(transactions []models.Transaction, plans *Plans, plan models.Plan, now time.Time) Dashboard {
	if plans == nil {
		plans = DefaultPlans
	}
	current := CurrentMonthSubset(transactions, now)

	d := Dashboard{
		Month:          fmt.Sprintf("%04d-%02d", now.Year(), int(now.Month())),
		Summary:        Summarize(current),
		ByCategory:     GroupExpensesByCategory(current),
		MonthlySeries:  GroupByMonth(transactions),
		LockedFeatures: plans.LockedFeatures(plan),
	}

	if plans.IsFeatureAvailable(plan, models.FeatureMonthlyComparison) {
		cmp := CompareMonths(current, PreviousMonthSubset(transactions, now))
		d.Comparison = &cmp
	}
	if plans.IsFeatureAvailable(plan, models.FeatureCategoryTotals) {
		d.CategoryTotals = CategoryTotals(current)
	}
	if plans.IsFeatureAvailable(plan, models.FeatureHighExpensesAlert) {
		d.HighExpenses = HighExpenseOutliers(current, DefaultOutlierMultiplier)
	}
	return d
}

// DashboardFor loads every transaction from source and builds the dashboard.
func DashboardFor(ctx context.Context, source TransactionSource, plans *Plans, plan models.Plan, now time.Time) (Dashboard, error) {
	transactions, err := source.List(ctx, models.TransactionFilter{})
	if err != nil {
		return Dashboard{}, err
	}
	decision, err := source.CanAdd(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	d := BuildDashboard(transactions, plans, plan, now)
	d.CanAdd = decision
	return d, nil
}
