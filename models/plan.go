package models

// Plan is the billing tier of a user.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	return p == PlanFree || p == PlanPremium
}

// Feature keys gated by plan.
type Feature string

const (
	FeatureDashboard         Feature = "dashboard"
	FeatureTransactions      Feature = "transactions"
	FeatureGoals             Feature = "goals"
	FeatureCharts            Feature = "charts"
	FeatureMonthlyComparison Feature = "monthlyComparison"
	FeatureCategoryTotals    Feature = "categoryTotals"
	FeatureHighExpensesAlert Feature = "highExpensesAlert"
	FeatureExport            Feature = "export"
)

// Unlimited marks a plan without a transaction ceiling.
const Unlimited = -1

// PlanLimits describes what a plan allows.
type PlanLimits struct {
	Plan            Plan             `json:"plan"`
	MaxTransactions int              `json:"maxTransactions"`
	Features        map[Feature]bool `json:"features"`
}

// Unlimited reports whether the plan has no transaction ceiling.
func (l PlanLimits) Unlimited() bool {
	return l.MaxTransactions == Unlimited
}
