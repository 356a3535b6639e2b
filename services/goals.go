package services

import (
	"math"
	"time"

	"ledgerly/backend/models"

	"github.com/shopspring/decimal"
)

// DefaultNearDeadlineDays is the window in which a goal counts as close to its deadline.
const DefaultNearDeadlineDays = 30

// GoalProgress computes the derived state of goal. Income transactions dated within
// [createdAt, min(today, deadline)] count towards the goal on top of the manually added
// amount. An income that was also added by hand is counted twice; the two sources are
// additive.
func GoalProgress(goal models.Goal, transactions []models.Transaction, today time.Time) models.GoalProgress {
	start := models.DateOf(goal.CreatedAt.In(today.Location()))
	end := models.DateOf(today)
	if !goal.Deadline.IsZero() && goal.Deadline.Before(end) {
		end = goal.Deadline
	}

	contribution := decimal.Zero
	if !end.Before(start) {
		for _, t := range transactions {
			if t.Kind != models.KindIncome {
				continue
			}
			if t.OccurredOn.Before(start) || t.OccurredOn.After(end) {
				continue
			}
			contribution = contribution.Add(decimal.NewFromFloat(t.Amount))
		}
	}

	effective := decimal.NewFromFloat(goal.CurrentAmount).Add(contribution)
	target := decimal.NewFromFloat(goal.TargetAmount)

	var percentage float64
	if target.IsPositive() {
		pct := effective.Div(target).Mul(decimal.NewFromInt(100)).Round(2)
		percentage = math.Min(pct.InexactFloat64(), 100)
	}

	remaining := target.Sub(effective)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	return models.GoalProgress{
		IncomeContribution: contribution.InexactFloat64(),
		EffectiveAmount:    effective.InexactFloat64(),
		Percentage:         percentage,
		Remaining:          remaining.InexactFloat64(),
		IsCompleted:        effective.GreaterThanOrEqual(target),
	}
}

// DaysRemaining is the number of calendar days from today until deadline.
// Negative values mean the deadline has passed.
func DaysRemaining(deadline models.Date, today time.Time) int {
	from := models.DateOf(today)
	return int(math.Round(deadline.Sub(from.Time).Hours() / 24))
}

// IsOverdue reports whether deadline is before today.
func IsOverdue(deadline models.Date, today time.Time) bool {
	return DaysRemaining(deadline, today) < 0
}

// IsNearDeadline reports whether deadline falls within the next thresholdDays days,
// excluding today. A non-positive threshold uses DefaultNearDeadlineDays.
func IsNearDeadline(deadline models.Date, today time.Time, thresholdDays int) bool {
	if thresholdDays <= 0 {
		thresholdDays = DefaultNearDeadlineDays
	}
	days := DaysRemaining(deadline, today)
	return days > 0 && days <= thresholdDays
}

// GoalStatus bundles a goal with its derived progress and deadline state.
type GoalStatus struct {
	Goal           models.Goal         `json:"goal"`
	Progress       models.GoalProgress `json:"progress"`
	DaysRemaining  int                 `json:"daysRemaining"`
	IsOverdue      bool                `json:"isOverdue"`
	IsNearDeadline bool                `json:"isNearDeadline"`
}

// GoalsOverview derives the status of every goal against the same transaction list.
func GoalsOverview(goals []models.Goal, transactions []models.Transaction, today time.Time) []GoalStatus {
	out := make([]GoalStatus, 0, len(goals))
	for _, g := range goals {
		progress := GoalProgress(g, transactions, today)
		days := DaysRemaining(g.Deadline, today)
		out = append(out, GoalStatus{
			Goal:           g,
			Progress:       progress,
			DaysRemaining:  days,
			IsOverdue:      days < 0,
			IsNearDeadline: days > 0 && days <= DefaultNearDeadlineDays,
		})
	}
	return out
}
