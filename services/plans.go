package services

import (
	"fmt"

	"ledgerly/backend/models"
)

// DefaultFreeMaxTransactions is the free plan's transaction ceiling.
const DefaultFreeMaxTransactions = 10

// Plans is the static plan table.
type Plans struct {
	table map[models.Plan]models.PlanLimits
}

// NewPlans builds the plan table with the given free-plan ceiling.
func NewPlans(freeMaxTransactions int) *Plans {
	if freeMaxTransactions <= 0 {
		freeMaxTransactions = DefaultFreeMaxTransactions
	}
	return &Plans{
		table: map[models.Plan]models.PlanLimits{
			models.PlanFree: {
				Plan:            models.PlanFree,
				MaxTransactions: freeMaxTransactions,
				Features: map[models.Feature]bool{
					models.FeatureDashboard:         true,
					models.FeatureTransactions:      true,
					models.FeatureGoals:             true,
					models.FeatureCharts:            true,
					models.FeatureMonthlyComparison: false,
					models.FeatureCategoryTotals:    false,
					models.FeatureHighExpensesAlert: false,
					models.FeatureExport:            false,
				},
			},
			models.PlanPremium: {
				Plan:            models.PlanPremium,
				MaxTransactions: models.Unlimited,
				Features: map[models.Feature]bool{
					models.FeatureDashboard:         true,
					models.FeatureTransactions:      true,
					models.FeatureGoals:             true,
					models.FeatureCharts:            true,
					models.FeatureMonthlyComparison: true,
					models.FeatureCategoryTotals:    true,
					models.FeatureHighExpensesAlert: true,
					models.FeatureExport:            true,
				},
			},
		},
	}
}

// DefaultPlans uses the default free-plan ceiling.
var DefaultPlans = NewPlans(DefaultFreeMaxTransactions)

// LimitsFor returns the limits of plan. Unknown plans get the free limits.
func (p *Plans) LimitsFor(plan models.Plan) models.PlanLimits {
	if limits, ok := p.table[plan]; ok {
		return limits
	}
	return p.table[models.PlanFree]
}

// CanCreateTransaction decides whether one more transaction fits in plan.
func (p *Plans) CanCreateTransaction(plan models.Plan, currentCount int) models.Decision {
	limits := p.LimitsFor(plan)
	if limits.Unlimited() || currentCount < limits.MaxTransactions {
		return models.Allow()
	}
	return models.Deny(fmt.Sprintf(
		"The free plan is limited to %d transactions. Upgrade to premium for unlimited transactions.",
		limits.MaxTransactions))
}

// IsFeatureAvailable looks feature up in plan's table.
func (p *Plans) IsFeatureAvailable(plan models.Plan, feature models.Feature) bool {
	return p.LimitsFor(plan).Features[feature]
}

// LockedFeatures lists the features plan does not include, in a stable order.
func (p *Plans) LockedFeatures(plan models.Plan) []models.Feature {
	all := []models.Feature{
		models.FeatureMonthlyComparison,
		models.FeatureCategoryTotals,
		models.FeatureHighExpensesAlert,
		models.FeatureExport,
	}
	locked := make([]models.Feature, 0)
	for _, f := range all {
		if !p.IsFeatureAvailable(plan, f) {
			locked = append(locked, f)
		}
	}
	return locked
}

// CanCreateTransaction checks against the default plan table.
func CanCreateTransaction(plan models.Plan, currentCount int) models.Decision {
	return DefaultPlans.CanCreateTransaction(plan, currentCount)
}

// IsFeatureAvailable checks against the default plan table.
func IsFeatureAvailable(plan models.Plan, feature models.Feature) bool {
	return DefaultPlans.IsFeatureAvailable(plan, feature)
}
