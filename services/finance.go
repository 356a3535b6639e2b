package services

import (
	"math"
	"sort"
	"time"

	"ledgerly/backend/models"

	"github.com/shopspring/decimal"
)

// DefaultOutlierMultiplier flags expenses at or above 1.5x the average expense.
const DefaultOutlierMultiplier = 1.5

// monthsInSeries is how many month buckets GroupByMonth returns.
const monthsInSeries = 6

// The functions in this file are pure projections over transactions already scoped to
// one owner. They assume validated input and never mutate their arguments.

// CurrentMonthSubset returns the transactions dated inside ref's calendar month.
func CurrentMonthSubset(transactions []models.Transaction, ref time.Time) []models.Transaction {
	return monthSubset(transactions, ref.Year(), ref.Month())
}

// PreviousMonthSubset returns the transactions dated inside the calendar month before ref's.
func PreviousMonthSubset(transactions []models.Transaction, ref time.Time) []models.Transaction {
	prev := time.Date(ref.Year(), ref.Month()-1, 1, 0, 0, 0, 0, ref.Location())
	return monthSubset(transactions, prev.Year(), prev.Month())
}

// MonthSubset returns the transactions dated inside year/month.
func MonthSubset(transactions []models.Transaction, year int, month time.Month) []models.Transaction {
	return monthSubset(transactions, year, month)
}

func monthSubset(transactions []models.Transaction, year int, month time.Month) []models.Transaction {
	out := make([]models.Transaction, 0)
	for _, t := range transactions {
		if t.OccurredOn.Year() == year && t.OccurredOn.Month() == month {
			out = append(out, t)
		}
	}
	return out
}

// TotalByKind sums the amounts of transactions of the given kind.
func TotalByKind(transactions []models.Transaction, kind models.Kind) float64 {
	sum := decimal.Zero
	for _, t := range transactions {
		if t.Kind == kind {
			sum = sum.Add(decimal.NewFromFloat(t.Amount))
		}
	}
	return sum.InexactFloat64()
}

// Balance is total income minus total expense.
func Balance(transactions []models.Transaction) float64 {
	return TotalByKind(transactions, models.KindIncome) - TotalByKind(transactions, models.KindExpense)
}

// Summarize returns income, expense and balance for transactions.
func Summarize(transactions []models.Transaction) models.MonthSummary {
	income := TotalByKind(transactions, models.KindIncome)
	expense := TotalByKind(transactions, models.KindExpense)
	return models.MonthSummary{
		Income:  income,
		Expense: expense,
		Balance: income - expense,
	}
}

// GroupExpensesByCategory sums expenses per category, largest first.
func GroupExpensesByCategory(transactions []models.Transaction) []models.CategoryAmount {
	sums := make(map[models.Category]decimal.Decimal)
	for _, t := range transactions {
		if t.Kind != models.KindExpense {
			continue
		}
		sums[t.Category] = sums[t.Category].Add(decimal.NewFromFloat(t.Amount))
	}

	out := make([]models.CategoryAmount, 0, len(sums))
	for category, sum := range sums {
		out = append(out, models.CategoryAmount{Category: category, Value: sum.InexactFloat64()})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return categoryRank(out[i].Category) < categoryRank(out[j].Category)
	})
	return out
}

// GroupByMonth buckets transactions by calendar month and returns the most recent six
// buckets in ascending order. Months without transactions are not filled in.
func GroupByMonth(transactions []models.Transaction) []models.MonthBucket {
	type key struct {
		year  int
		month time.Month
	}
	type sums struct {
		income  decimal.Decimal
		expense decimal.Decimal
	}

	buckets := make(map[key]*sums)
	for _, t := range transactions {
		k := key{t.OccurredOn.Year(), t.OccurredOn.Month()}
		b, ok := buckets[k]
		if !ok {
			b = &sums{}
			buckets[k] = b
		}
		amount := decimal.NewFromFloat(t.Amount)
		if t.Kind == models.KindIncome {
			b.income = b.income.Add(amount)
		} else {
			b.expense = b.expense.Add(amount)
		}
	}

	out := make([]models.MonthBucket, 0, len(buckets))
	for k, b := range buckets {
		out = append(out, models.MonthBucket{
			Year:    k.year,
			Month:   int(k.month),
			Income:  b.income.InexactFloat64(),
			Expense: b.expense.InexactFloat64(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})

	if len(out) > monthsInSeries {
		out = out[len(out)-monthsInSeries:]
	}
	return out
}

// CompareMonths compares two periods. When the previous value is zero the percent
// change cannot be computed; it is 0 if the current value is also zero, and otherwise
// +100 (or -100 for a negative current balance).
func CompareMonths(current, previous []models.Transaction) models.MonthComparison {
	cur := Summarize(current)
	prev := Summarize(previous)

	return models.MonthComparison{
		Current:  cur,
		Previous: prev,
		Diff: models.MonthSummary{
			Income:  cur.Income - prev.Income,
			Expense: cur.Expense - prev.Expense,
			Balance: cur.Balance - prev.Balance,
		},
		Percent: models.MonthSummary{
			Income:  percentChange(cur.Income, prev.Income),
			Expense: percentChange(cur.Expense, prev.Expense),
			Balance: balancePercentChange(cur.Balance, prev.Balance),
		},
	}
}

// percentChange covers income and expense, which are never negative.
func percentChange(current, previous float64) float64 {
	if previous == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	return round2((current - previous) / previous * 100)
}

// balancePercentChange divides by |previous| so that moving from -200 to -100
// reads as an improvement.
func balancePercentChange(current, previous float64) float64 {
	if previous == 0 {
		switch {
		case current > 0:
			return 100
		case current < 0:
			return -100
		default:
			return 0
		}
	}
	return round2((current - previous) / math.Abs(previous) * 100)
}

// CategoryTotals nets income against expense per category, ordered by |total| descending.
func CategoryTotals(transactions []models.Transaction) []models.CategoryTotal {
	type sums struct {
		income  decimal.Decimal
		expense decimal.Decimal
	}
	byCategory := make(map[models.Category]*sums)
	for _, t := range transactions {
		s, ok := byCategory[t.Category]
		if !ok {
			s = &sums{}
			byCategory[t.Category] = s
		}
		amount := decimal.NewFromFloat(t.Amount)
		if t.Kind == models.KindIncome {
			s.income = s.income.Add(amount)
		} else {
			s.expense = s.expense.Add(amount)
		}
	}

	out := make([]models.CategoryTotal, 0, len(byCategory))
	for category, s := range byCategory {
		out = append(out, models.CategoryTotal{
			Category: category,
			Income:   s.income.InexactFloat64(),
			Expense:  s.expense.InexactFloat64(),
			Total:    s.income.Sub(s.expense).InexactFloat64(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].Total), math.Abs(out[j].Total)
		if ai != aj {
			return ai > aj
		}
		return categoryRank(out[i].Category) < categoryRank(out[j].Category)
	})
	return out
}

// HighExpenseOutliers annotates every expense against the average expense amount.
// Expenses at or above average*multiplier are flagged. A non-positive multiplier
// uses DefaultOutlierMultiplier. No expenses means an empty result.
func HighExpenseOutliers(transactions []models.Transaction, multiplier float64) []models.ExpenseOutlier {
	if multiplier <= 0 {
		multiplier = DefaultOutlierMultiplier
	}

	expenses := make([]models.Transaction, 0)
	for _, t := range transactions {
		if t.Kind == models.KindExpense {
			expenses = append(expenses, t)
		}
	}
	if len(expenses) == 0 {
		return []models.ExpenseOutlier{}
	}

	average := TotalByKind(expenses, models.KindExpense) / float64(len(expenses))
	if average <= 0 {
		return []models.ExpenseOutlier{}
	}
	threshold := average * multiplier

	out := make([]models.ExpenseOutlier, 0, len(expenses))
	for _, t := range expenses {
		out = append(out, models.ExpenseOutlier{
			Transaction:         t,
			IsHigh:              t.Amount >= threshold,
			PercentageOfAverage: int(math.Round(t.Amount / average * 100)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Transaction.Amount > out[j].Transaction.Amount
	})
	return out
}

// CategoryLabel is the display label of a transaction's category.
func CategoryLabel(t models.Transaction) string {
	if t.Category == models.CategoryOther && t.CustomLabel != "" {
		return t.CustomLabel
	}
	return string(t.Category)
}

func categoryRank(c models.Category) int {
	for i, known := range models.Categories {
		if known == c {
			return i
		}
	}
	return len(models.Categories)
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
